package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/vicmordi/AIHelpdesk/internal/auth"
	"github.com/vicmordi/AIHelpdesk/internal/domain"
	apperrors "github.com/vicmordi/AIHelpdesk/pkg/util/errorutil"
)

func actorFrom(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor(), nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func parseTime(val string) (*time.Time, error) {
	if val == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, apperrors.NewValidationError("timestamps must be RFC3339", map[string]any{"value": val})
	}
	return &t, nil
}

func parseBool(val string) (*bool, error) {
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, apperrors.NewValidationError("expected a boolean", map[string]any{"value": val})
	}
	return &b, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

// pagination reads page/page_size into limit and offset.
func pagination(c *fiber.Ctx, defaultSize int) (limit, offset int) {
	page := parseInt(c.Query("page"), 1)
	size := parseInt(c.Query("page_size"), defaultSize)
	if size > 100 {
		size = 100
	}
	return size, (page - 1) * size
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
