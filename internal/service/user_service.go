package service

import (
	"context"
	"errors"
	"strings"

	"github.com/spec-kit/grievance-desk/internal/auth"
	"github.com/spec-kit/grievance-desk/internal/config"
	"github.com/spec-kit/grievance-desk/internal/domain"
	"github.com/spec-kit/grievance-desk/internal/repository"
	apperrors "github.com/spec-kit/grievance-desk/pkg/util/errorutil"
	"github.com/spec-kit/grievance-desk/pkg/util/sanitize"
	"github.com/spec-kit/grievance-desk/pkg/util/validation"
)

// manageableRoles are the roles administered through the staff screens.
var manageableRoles = []domain.Role{domain.RoleAdmin, domain.RoleSupportAgent}

// StaffCreateInput is the payload for a new staff account.
type StaffCreateInput struct {
	Name                 string      `json:"name" validate:"required,max=255"`
	Email                string      `json:"email" validate:"required,email,max=255"`
	Phone                string      `json:"phone" validate:"omitempty,max=15"`
	Password             string      `json:"password" validate:"required,min=8"`
	PasswordConfirmation string      `json:"password_confirmation" validate:"required,eqfield=Password"`
	Role                 domain.Role `json:"role" validate:"required,oneof=2 3"`
}

// StaffUpdateInput is the payload for editing a staff account.
type StaffUpdateInput struct {
	Name  string      `json:"name" validate:"required,max=255"`
	Email string      `json:"email" validate:"required,email,max=255"`
	Phone string      `json:"phone" validate:"omitempty,max=15"`
	Role  domain.Role `json:"role" validate:"required,oneof=2 3"`
}

// UserService manages staff accounts.
type UserService struct {
	users      repository.UserRepository
	bcryptCost int
}

// NewUserService constructs the service.
func NewUserService(cfg config.Config, users repository.UserRepository) *UserService {
	return &UserService{users: users, bcryptCost: cfg.Auth.BcryptCost}
}

// ListStaff returns administrators and support agents, newest first.
func (s *UserService) ListStaff(ctx context.Context, actor *domain.User) ([]domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.users.ListByRoles(ctx, manageableRoles)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// CreateStaff adds a new staff account.
func (s *UserService) CreateStaff(ctx context.Context, actor *domain.User, input StaffCreateInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	input.Name = sanitize.Text(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Phone = strings.TrimSpace(input.Phone)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		Name:         input.Name,
		Email:        &input.Email,
		Phone:        optionalString(input.Phone),
		PasswordHash: hash,
		Role:         input.Role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, userWriteError(err)
	}
	return user, nil
}

// UpdateStaff edits a staff account.
func (s *UserService) UpdateStaff(ctx context.Context, actor *domain.User, id int64, input StaffUpdateInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	input.Name = sanitize.Text(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Phone = strings.TrimSpace(input.Phone)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	user, err := s.getManageable(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Name = input.Name
	user.Email = &input.Email
	user.Phone = optionalString(input.Phone)
	user.Role = input.Role
	if err := s.users.Update(ctx, user); err != nil {
		return nil, userWriteError(err)
	}
	return user, nil
}

// DeleteStaff removes a staff account. Super admins and end users cannot be removed here.
func (s *UserService) DeleteStaff(ctx context.Context, actor *domain.User, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if actor.ID == id {
		return apperrors.NewForbidden("you cannot delete your own account")
	}
	if _, err := s.getManageable(ctx, id); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrReferenced) {
			return apperrors.NewConflict("user still owns tickets or comments", map[string]any{"user_id": id})
		}
		return apperrors.MapError(err)
	}
	return nil
}

func (s *UserService) getManageable(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	if user.Role == domain.RoleSuperAdmin || user.Role == domain.RoleEndUser {
		return nil, apperrors.NewForbidden("you cannot modify this user")
	}
	return user, nil
}

func userWriteError(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		field, msg := "email", "This email is already taken."
		if strings.Contains(err.Error(), "phone") {
			field, msg = "phone", "This phone number is already in use."
		}
		return apperrors.NewDomainError("CONFLICT", msg, 409, map[string]any{
			"fields": map[string]string{field: msg},
		})
	}
	return apperrors.MapError(err)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
