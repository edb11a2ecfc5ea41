package domain

import "time"

// NotificationType tags the origin of a notification.
type NotificationType string

const (
	NotificationTicketOpened   NotificationType = "TICKET_OPENED"
	NotificationTicketAssigned NotificationType = "TICKET_ASSIGNED"
	NotificationTicketClosed   NotificationType = "TICKET_CLOSED"
	NotificationTicketMessage  NotificationType = "TICKET_MESSAGE"
)

// Notification is a durable per-user notice. Mutated only by mark-read.
type Notification struct {
	ID        string
	UserID    string
	TicketID  string
	Type      NotificationType
	Message   string
	Read      bool
	CreatedAt time.Time
}
