package domain

import "time"

// TicketMessage captures chat content exchanged on an in-progress ticket.
// AttachmentPath references external file storage and never gates lifecycle
// correctness.
type TicketMessage struct {
	ID             string
	TicketID       string
	AuthorID       string
	Body           string
	AttachmentPath *string
	CreatedAt      time.Time
}
