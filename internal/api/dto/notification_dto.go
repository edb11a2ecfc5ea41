package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// NotificationResponse is the wire view of a durable notification.
type NotificationResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id,omitempty"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotificationResponse maps a notification to its wire view.
func NewNotificationResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		TicketID:  n.TicketID,
		Type:      string(n.Type),
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

// NewNotificationList maps a notification slice to wire views.
func NewNotificationList(notifications []domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(notifications))
	for i := range notifications {
		out = append(out, NewNotificationResponse(&notifications[i]))
	}
	return out
}
