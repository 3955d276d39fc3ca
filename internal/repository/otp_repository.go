package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/grievance-desk/internal/domain"
)

// OTPRepository persists one-time login codes, one live code per mobile number.
type OTPRepository interface {
	Upsert(ctx context.Context, otp *domain.OTP) error
	GetByMobile(ctx context.Context, mobile string) (*domain.OTP, error)
	DeleteByMobile(ctx context.Context, mobile string) error
	// DeleteExpired removes codes that expired before the given instant.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type otpRepository struct {
	pool *pgxpool.Pool
}

// NewOTPRepository constructs repository.
func NewOTPRepository(pool *pgxpool.Pool) OTPRepository {
	return &otpRepository{pool: pool}
}

func (r *otpRepository) Upsert(ctx context.Context, otp *domain.OTP) error {
	const query = `
        INSERT INTO otps (mobile, otp, expires_at)
        VALUES ($1,$2,$3)
        ON CONFLICT (mobile) DO UPDATE SET otp=EXCLUDED.otp, expires_at=EXCLUDED.expires_at, updated_at=NOW()
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		otp.Mobile,
		otp.Code,
		otp.ExpiresAt,
	).Scan(&otp.ID, &otp.CreatedAt, &otp.UpdatedAt)
}

func (r *otpRepository) GetByMobile(ctx context.Context, mobile string) (*domain.OTP, error) {
	const query = `
        SELECT id, mobile, otp, expires_at, created_at, updated_at
        FROM otps WHERE mobile=$1`
	var otp domain.OTP
	if err := r.pool.QueryRow(ctx, query, mobile).Scan(
		&otp.ID,
		&otp.Mobile,
		&otp.Code,
		&otp.ExpiresAt,
		&otp.CreatedAt,
		&otp.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &otp, nil
}

func (r *otpRepository) DeleteByMobile(ctx context.Context, mobile string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM otps WHERE mobile=$1`, mobile)
	return err
}

func (r *otpRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM otps WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
