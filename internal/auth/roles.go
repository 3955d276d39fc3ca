package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/grievance-desk/internal/domain"
	apperrors "github.com/spec-kit/grievance-desk/pkg/util/errorutil"
)

// RequireRoles ensures the caller holds one of the allowed roles.
func RequireRoles(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if _, exists := allowedSet[principal.Role()]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireAdmin allows super admins and admins.
func RequireAdmin() fiber.Handler {
	return RequireRoles(domain.RoleSuperAdmin, domain.RoleAdmin)
}

// RequireStaff allows every helpdesk role.
func RequireStaff() fiber.Handler {
	return RequireRoles(domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleSupportAgent)
}

// RequireAuthenticated ensures a caller is present.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
