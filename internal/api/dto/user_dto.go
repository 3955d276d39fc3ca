package dto

import (
	"time"

	"github.com/spec-kit/grievance-desk/internal/domain"
)

// LoginRequest accepts email+password or phone+otp.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	OTP      string `json:"otp"`
}

// SendOTPRequest payload.
type SendOTPRequest struct {
	Mobile string `json:"mobile"`
}

// AuthResponse returns token details.
type AuthResponse struct {
	AccessToken string        `json:"access_token"`
	ExpiresAt   time.Time     `json:"expires_at"`
	TokenType   string        `json:"token_type"`
	User        *UserResponse `json:"user"`
}

// OTPResponse acknowledges an issued code.
type OTPResponse struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
	OTP       string    `json:"otp,omitempty"`
}

// UserResponse represents an account.
type UserResponse struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Email     *string     `json:"email"`
	Phone     *string     `json:"phone"`
	RoleID    domain.Role `json:"role_id"`
	Role      string      `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// UserSummary is the compact form embedded in tickets and comments.
type UserSummary struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}
