package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vicmordi/AIHelpdesk/internal/service"
)

// NotificationsHandler answers badge count queries.
type NotificationsHandler struct {
	service *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notificationService *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{service: notificationService}
}

// Unread GET /notifications/unread.
func (h *NotificationsHandler) Unread(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	counts, err := h.service.UnreadCounts(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": counts})
}
