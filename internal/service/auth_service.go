package service

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-desk/internal/auth"
	"github.com/spec-kit/grievance-desk/internal/config"
	"github.com/spec-kit/grievance-desk/internal/domain"
	"github.com/spec-kit/grievance-desk/internal/events"
	"github.com/spec-kit/grievance-desk/internal/repository"
	apperrors "github.com/spec-kit/grievance-desk/pkg/util/errorutil"
	"github.com/spec-kit/grievance-desk/pkg/util/validation"
)

const invalidCredentials = "These credentials do not match our records."

// LoginInput carries either email+password or phone+otp.
type LoginInput struct {
	Email    string `json:"email" validate:"required_without=Phone,omitempty,email"`
	Password string `json:"password" validate:"required_with=Email"`
	Phone    string `json:"phone" validate:"required_without=Email"`
	OTP      string `json:"otp" validate:"required_with=Phone"`
	IP       string `json:"-"`
}

// LoginResult is a successful login.
type LoginResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// OTPIssued describes a freshly generated code. Code is set only when echoing is enabled.
type OTPIssued struct {
	Mobile    string
	ExpiresAt time.Time
	Code      string
}

// AuthService coordinates password and OTP logins.
type AuthService struct {
	users      repository.UserRepository
	otps       repository.OTPRepository
	throttle   auth.Throttle
	dispatcher events.Dispatcher
	logger     *zap.Logger
	tokenMgr   *auth.TokenManager
	bcryptCost int
	otpCfg     config.OTPConfig
	now        func() time.Time
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	OTPRepo    repository.OTPRepository
	Throttle   auth.Throttle
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	otpCfg := cfg.OTP
	if otpCfg.Length <= 0 {
		otpCfg.Length = 6
	}
	if otpCfg.TTL <= 0 {
		otpCfg.TTL = 5 * time.Minute
	}
	return &AuthService{
		users:      deps.UserRepo,
		otps:       deps.OTPRepo,
		throttle:   deps.Throttle,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
		otpCfg:     otpCfg,
		now:        clock,
	}
}

// Login authenticates with email+password or phone+otp. A verified phone without an account
// registers a new end user.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Phone = strings.TrimSpace(input.Phone)
	input.OTP = strings.TrimSpace(input.OTP)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	identifier := input.Email
	if identifier == "" {
		identifier = input.Phone
	}
	key := auth.ThrottleKey(identifier, input.IP)
	if err := s.ensureNotThrottled(ctx, key); err != nil {
		return nil, err
	}

	var (
		user *domain.User
		err  error
	)
	if input.Email != "" {
		user, err = s.passwordLogin(ctx, input.Email, input.Password)
	} else {
		user, err = s.otpLogin(ctx, input.Phone, input.OTP)
	}
	if err != nil {
		if isCredentialFailure(err) {
			s.hit(ctx, key)
		}
		return nil, err
	}
	s.clear(ctx, key)

	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{User: user, Token: token, ExpiresAt: exp}, nil
}

func (s *AuthService) passwordLogin(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewFieldError("email", invalidCredentials)
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewFieldError("email", invalidCredentials)
	}
	return user, nil
}

func (s *AuthService) otpLogin(ctx context.Context, phone, code string) (*domain.User, error) {
	otp, err := s.otps.GetByMobile(ctx, phone)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewFieldError("otp", invalidCredentials)
		}
		return nil, apperrors.MapError(err)
	}
	if otp.Code != code || otp.Expired(s.now()) {
		return nil, apperrors.NewFieldError("otp", invalidCredentials)
	}
	if err := s.otps.DeleteByMobile(ctx, phone); err != nil {
		s.logger.Warn("failed to consume otp", zap.String("mobile", phone), zap.Error(err))
	}

	user, err := s.users.GetByPhone(ctx, phone)
	if err == nil {
		return user, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.UnusablePasswordHash(s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user = &domain.User{
		Name:         "User " + phone,
		Phone:        &phone,
		PasswordHash: hash,
		Role:         domain.RoleEndUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("registered end user from otp login", zap.Int64("user_id", user.ID))
	return user, nil
}

// SendOTP issues a login code for a 10 digit mobile number and hands it to the SMS sink.
func (s *AuthService) SendOTP(ctx context.Context, mobile string) (*OTPIssued, error) {
	mobile = strings.TrimSpace(mobile)
	if !validation.IsMobile(mobile) {
		return nil, apperrors.NewFieldError("mobile", "mobile must be a 10 digit mobile number")
	}

	code, err := generateOTP(s.otpCfg.Length)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	otp := &domain.OTP{
		Mobile:    mobile,
		Code:      code,
		ExpiresAt: s.now().Add(s.otpCfg.TTL),
	}
	if err := s.otps.Upsert(ctx, otp); err != nil {
		return nil, apperrors.MapError(err)
	}

	// Delivery failures are logged by the notification sink; the code stays valid.
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:    events.EventOTPRequested,
		Payload: events.OTPRequestedPayload{Mobile: mobile, Code: code},
	})

	issued := &OTPIssued{Mobile: mobile, ExpiresAt: otp.ExpiresAt}
	if s.otpCfg.EchoInResponse {
		issued.Code = code
	}
	return issued, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) ensureNotThrottled(ctx context.Context, key string) error {
	if s.throttle == nil {
		return nil
	}
	retry, blocked, err := s.throttle.Blocked(ctx, key)
	if err != nil {
		s.logger.Warn("login throttle unavailable", zap.Error(err))
		return nil
	}
	if !blocked {
		return nil
	}
	seconds := int(math.Ceil(retry.Seconds()))
	return apperrors.NewTooManyRequests("Too many login attempts. Please try again later.", seconds)
}

func (s *AuthService) hit(ctx context.Context, key string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.Hit(ctx, key); err != nil {
		s.logger.Warn("failed to record login failure", zap.Error(err))
	}
}

func (s *AuthService) clear(ctx context.Context, key string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.Clear(ctx, key); err != nil {
		s.logger.Warn("failed to clear login throttle", zap.Error(err))
	}
}

func isCredentialFailure(err error) bool {
	domainErr := apperrors.ToDomainError(err)
	return domainErr != nil && domainErr.Code == "VALIDATION_FAILED"
}

func generateOTP(length int) (string, error) {
	const digits = "0123456789"
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		out[i] = digits[n.Int64()]
	}
	return string(out), nil
}
