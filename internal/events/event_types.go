package events

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketOpened        EventType = "ticket_opened"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketClosed        EventType = "ticket_closed"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketMessageAdded  EventType = "ticket_message_added"
	EventSLAAlert            EventType = "sla_alert"
)

// Event is a domain event emitted by services. Ticket carries the full
// post-transition snapshot so subscribers never re-read racy state.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	TicketID  string         `json:"ticket_id,omitempty"`
	ActorID   string         `json:"actor_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Ticket    *domain.Ticket `json:"ticket,omitempty"`
	Payload   interface{}    `json:"payload,omitempty"`
}

// StatusChangedPayload accompanies EventTicketStatusChanged.
type StatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Override  bool                `json:"override,omitempty"`
}

// MessageAddedPayload accompanies EventTicketMessageAdded.
type MessageAddedPayload struct {
	MessageID   string `json:"message_id"`
	AuthorID    string `json:"author_id"`
	BodyPreview string `json:"body_preview"`
}

// AlertPayload accompanies EventSLAAlert.
type AlertPayload struct {
	Alert domain.Alert `json:"alert"`
}
