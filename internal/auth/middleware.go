package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/repository"
	apperrors "github.com/vicmordi/AIHelpdesk/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	UserID         string
	OrganizationID string
	Name           string
	Role           domain.Role
}

// Actor converts the principal for service calls.
func (p *Principal) Actor() domain.Actor {
	return domain.Actor{UserID: p.UserID, OrganizationID: p.OrganizationID, Name: p.Name, Role: p.Role}
}

// AuthMiddleware validates bearer tokens and resolves the caller's membership.
type AuthMiddleware struct {
	tokens  *TokenManager
	members repository.MemberRepository
	logger  *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, members repository.MemberRepository, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, members: members, logger: logger}
}

// Handle enforces authentication for protected routes. A stored membership
// overrides the role in the token; unknown members are recorded from the
// token so they can be validated as assignees later.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	principal := &Principal{
		UserID:         claims.Subject,
		OrganizationID: claims.OrganizationID,
		Name:           claims.Name,
		Role:           claims.Role,
	}

	if m.members != nil {
		member, err := m.members.Get(c.UserContext(), claims.OrganizationID, claims.Subject)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			if err := m.members.Upsert(c.UserContext(), &domain.Member{
				UserID:         principal.UserID,
				OrganizationID: principal.OrganizationID,
				Name:           principal.Name,
				Role:           principal.Role,
				Active:         true,
			}); err != nil {
				m.logger.Warn("recording member failed", zap.String("user_id", principal.UserID), zap.Error(err))
			}
		case err != nil:
			return apperrors.MapError(err)
		case !member.Active:
			return apperrors.NewUnauthorized("membership inactive")
		default:
			principal.Role = member.Role
			if member.Name != "" {
				principal.Name = member.Name
			}
		}
	}

	switch principal.Role {
	case domain.RoleEmployee, domain.RoleSupportAdmin, domain.RoleSuperAdmin:
	default:
		return apperrors.NewUnauthorized("unknown role")
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
