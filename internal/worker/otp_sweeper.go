package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-desk/internal/repository"
)

// OTPSweeper periodically deletes expired login codes.
type OTPSweeper struct {
	otps     repository.OTPRepository
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewOTPSweeper builds a sweeper; a non-positive interval makes Run return immediately.
func NewOTPSweeper(otps repository.OTPRepository, interval time.Duration, logger *zap.Logger) *OTPSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OTPSweeper{otps: otps, interval: interval, logger: logger, now: time.Now}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *OTPSweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce deletes every code that has already expired and reports how many went.
func (s *OTPSweeper) SweepOnce(ctx context.Context) int64 {
	removed, err := s.otps.DeleteExpired(ctx, s.now())
	if err != nil {
		s.logger.Warn("otp sweep failed", zap.Error(err))
		return 0
	}
	if removed > 0 {
		s.logger.Debug("expired otps removed", zap.Int64("count", removed))
	}
	return removed
}
