package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/repository/memory"
	apperrors "github.com/vicmordi/AIHelpdesk/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	actor := domain.Actor{UserID: "u-1", OrganizationID: "org-1", Name: "Ada", Role: domain.RoleSupportAdmin}

	token, expires, err := tm.Issue(actor)
	require.NoError(t, err)
	assert.False(t, expires.IsZero())

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "org-1", claims.OrganizationID)
	assert.Equal(t, domain.RoleSupportAdmin, claims.Role)

	_, err = NewTokenManager("other", 5).ParseToken(token)
	assert.Error(t, err)
}

func testApp(t *testing.T, mw *AuthMiddleware, guards ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		de := apperrors.ToDomainError(err)
		return c.Status(de.HTTPStatus).JSON(fiber.Map{"code": de.Code})
	}})
	handlers := append([]fiber.Handler{mw.Handle}, guards...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		p, ok := PrincipalFromContext(c)
		require.True(t, ok)
		return c.SendString(string(p.Role))
	})
	app.Get("/", handlers...)
	return app
}

func TestMiddlewareUsesStoredMembership(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	members := memory.NewStore().Repositories().Members
	require.NoError(t, members.Upsert(context.Background(), &domain.Member{
		UserID: "u-1", OrganizationID: "org-1", Role: domain.RoleSuperAdmin, Active: true,
	}))
	app := testApp(t, NewAuthMiddleware(tm, members, nil), RequireSuperAdmin())

	token, _, err := tm.Issue(domain.Actor{UserID: "u-1", OrganizationID: "org-1", Role: domain.RoleEmployee})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMiddlewareRecordsNewMembersAndGuardsRoles(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	members := memory.NewStore().Repositories().Members
	app := testApp(t, NewAuthMiddleware(tm, members, nil), RequireStaff())

	token, _, err := tm.Issue(domain.Actor{UserID: "u-2", OrganizationID: "org-1", Role: domain.RoleEmployee})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	member, err := members.Get(context.Background(), "org-1", "u-2")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleEmployee, member.Role)
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	app := testApp(t, NewAuthMiddleware(NewTokenManager("secret", 5), nil, nil))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
