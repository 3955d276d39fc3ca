package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/grievance-desk/internal/api/dto"
	"github.com/spec-kit/grievance-desk/internal/service"
	apperrors "github.com/spec-kit/grievance-desk/pkg/util/errorutil"
)

// AuthHandler exposes login and OTP endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.auth.Login(c.UserContext(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		OTP:      req.OTP,
		IP:       c.IP(),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuthResponse{
		AccessToken: result.Token,
		ExpiresAt:   result.ExpiresAt,
		TokenType:   "Bearer",
		User:        userResponse(result.User),
	}})
}

// SendOTP handles POST /send-otp.
func (h *AuthHandler) SendOTP(c *fiber.Ctx) error {
	var req dto.SendOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	issued, err := h.auth.SendOTP(c.UserContext(), req.Mobile)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(dto.OTPResponse{
		Message:   "OTP sent successfully",
		ExpiresAt: issued.ExpiresAt,
		OTP:       issued.Code,
	})
}
