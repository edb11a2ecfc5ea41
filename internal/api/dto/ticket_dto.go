package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketOpenRequest is the payload for opening a ticket.
type TicketOpenRequest struct {
	TypeID      string `json:"type_id"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// TicketUpdateRequest is a partial ticket edit. Status is honored only for
// admins.
type TicketUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

// MessageCreateRequest is the payload for posting to a ticket thread.
type MessageCreateRequest struct {
	Body           string  `json:"body"`
	AttachmentPath *string `json:"attachment_path"`
}

// TicketResponse is the wire view of a ticket.
type TicketResponse struct {
	ID          string     `json:"id"`
	Key         string     `json:"key"`
	RequesterID string     `json:"requester_id"`
	HelperID    *string    `json:"helper_id,omitempty"`
	TypeID      string     `json:"type_id"`
	Category    string     `json:"category,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	OpenedAt    time.Time  `json:"opened_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewTicketResponse maps a ticket to its wire view.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		Key:         t.Key,
		RequesterID: t.RequesterID,
		HelperID:    t.HelperID,
		TypeID:      t.TypeID,
		Category:    t.Category,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		OpenedAt:    t.OpenedAt,
		StartedAt:   t.StartedAt,
		ClosedAt:    t.ClosedAt,
		Version:     t.Version,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// NewTicketList maps a ticket slice to wire views.
func NewTicketList(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// MessageResponse is the wire view of a thread message.
type MessageResponse struct {
	ID             string    `json:"id"`
	TicketID       string    `json:"ticket_id"`
	AuthorID       string    `json:"author_id"`
	Body           string    `json:"body"`
	AttachmentPath *string   `json:"attachment_path,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewMessageResponse maps a message to its wire view.
func NewMessageResponse(m *domain.TicketMessage) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		TicketID:       m.TicketID,
		AuthorID:       m.AuthorID,
		Body:           m.Body,
		AttachmentPath: m.AttachmentPath,
		CreatedAt:      m.CreatedAt,
	}
}

// NewMessageList maps a message slice to wire views.
func NewMessageList(messages []domain.TicketMessage) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, NewMessageResponse(&messages[i]))
	}
	return out
}
