package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-session/internal/service"
)

// NotificationsHandler lists recent session banners.
type NotificationsHandler struct {
	notifications *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

// List handles GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.notifications.Recent()})
}
