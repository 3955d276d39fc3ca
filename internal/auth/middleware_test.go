package auth

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/grievance-desk/internal/domain"
	"github.com/spec-kit/grievance-desk/internal/repository"
	apperrors "github.com/spec-kit/grievance-desk/pkg/util/errorutil"
)

// stubUsers serves GetByID from a map; other repository methods are not used here.
type stubUsers struct {
	repository.UserRepository
	users map[int64]*domain.User
}

func (s stubUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func newGuardedApp(t *testing.T, users map[int64]*domain.User) (*fiber.App, *TokenManager) {
	t.Helper()
	tokens := NewTokenManager("middleware-secret", 30)
	mw := NewAuthMiddleware(tokens, stubUsers{users: users})

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).SendString(domainErr.Code)
		},
	})
	app.Get("/me", mw.Handle, func(c *fiber.Ctx) error {
		return c.SendString(CurrentUser(c).Name)
	})
	app.Get("/admin", mw.Handle, RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendString("admin area")
	})
	app.Get("/staff", mw.Handle, RequireStaff(), func(c *fiber.Ctx) error {
		return c.SendString("staff area")
	})
	app.Get("/anonymous", RequireAuthenticated(), func(c *fiber.Ctx) error {
		return c.SendString("unreachable")
	})
	return app, tokens
}

func get(t *testing.T, app *fiber.App, path, authorization string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestAuthMiddleware(t *testing.T) {
	agent := &domain.User{ID: 3, Name: "Agent", Role: domain.RoleSupportAgent}
	admin := &domain.User{ID: 2, Name: "Admin", Role: domain.RoleAdmin}
	citizen := &domain.User{ID: 4, Name: "Citizen", Role: domain.RoleEndUser}
	ghost := &domain.User{ID: 99, Name: "Ghost", Role: domain.RoleAdmin}
	app, tokens := newGuardedApp(t, map[int64]*domain.User{2: admin, 3: agent, 4: citizen})

	bearer := func(u *domain.User) string {
		token, _, err := tokens.GenerateToken(u)
		require.NoError(t, err)
		return "Bearer " + token
	}

	tests := []struct {
		name          string
		path          string
		authorization string
		status        int
	}{
		{"no header", "/me", "", fiber.StatusUnauthorized},
		{"wrong scheme", "/me", "Basic abc", fiber.StatusUnauthorized},
		{"garbage token", "/me", "Bearer not-a-jwt", fiber.StatusUnauthorized},
		{"deleted user", "/me", bearer(ghost), fiber.StatusUnauthorized},
		{"end user", "/me", bearer(citizen), fiber.StatusOK},
		{"end user on staff route", "/staff", bearer(citizen), fiber.StatusForbidden},
		{"agent on staff route", "/staff", bearer(agent), fiber.StatusOK},
		{"agent on admin route", "/admin", bearer(agent), fiber.StatusForbidden},
		{"admin on admin route", "/admin", bearer(admin), fiber.StatusOK},
		{"no principal", "/anonymous", "", fiber.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, get(t, app, tt.path, tt.authorization))
		})
	}
}

func TestAuthMiddleware_RoleIsReadFromDirectory(t *testing.T) {
	demoted := &domain.User{ID: 2, Name: "Admin", Role: domain.RoleAdmin}
	users := map[int64]*domain.User{2: demoted}
	app, tokens := newGuardedApp(t, users)

	token, _, err := tokens.GenerateToken(demoted)
	require.NoError(t, err)
	users[2] = &domain.User{ID: 2, Name: "Admin", Role: domain.RoleSupportAgent}

	assert.Equal(t, fiber.StatusForbidden, get(t, app, "/admin", "Bearer "+token))
}
