package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	apperrors "github.com/vicmordi/AIHelpdesk/pkg/util/errorutil"
)

// RequireRole ensures the principal holds one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireStaff admits support and super admins.
func RequireStaff() fiber.Handler {
	return RequireRole(domain.RoleSupportAdmin, domain.RoleSuperAdmin)
}

// RequireSuperAdmin admits super admins only.
func RequireSuperAdmin() fiber.Handler {
	return RequireRole(domain.RoleSuperAdmin)
}
