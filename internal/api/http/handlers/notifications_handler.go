package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// NotificationsHandler exposes the per-user notification inbox.
type NotificationsHandler struct {
	notifications *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

// List handles GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	unreadOnly := c.QueryBool("unread", false)
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	notifications, err := h.notifications.List(c.UserContext(), actor, unreadOnly, limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{"notifications": dto.NewNotificationList(notifications)},
	})
}

// MarkRead handles POST /notifications/:id/read. Re-reading an already read
// notification succeeds without change.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	if err := h.notifications.MarkRead(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"marked": true}})
}

// MarkAllRead handles POST /notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	if err := h.notifications.MarkAllRead(c.UserContext(), actor); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"marked": true}})
}
