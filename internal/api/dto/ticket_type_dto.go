package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketTypeRequest is the payload for creating or updating a ticket type.
// Pointer fields distinguish "omitted" from an explicit zero; sla_minutes 0
// means the default deadline budget applies.
type TicketTypeRequest struct {
	Name          string `json:"name"`
	Active        *bool  `json:"active"`
	PriorityLevel *int   `json:"priority_level"`
	SLAMinutes    *int   `json:"sla_minutes"`
}

// TicketTypeResponse is the wire view of a ticket type.
type TicketTypeResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Active        bool      `json:"active"`
	PriorityLevel int       `json:"priority_level"`
	SLAMinutes    int       `json:"sla_minutes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewTicketTypeResponse maps a ticket type to its wire view.
func NewTicketTypeResponse(t *domain.TicketType) TicketTypeResponse {
	return TicketTypeResponse{
		ID:            t.ID,
		Name:          t.Name,
		Active:        t.Active,
		PriorityLevel: t.PriorityLevel,
		SLAMinutes:    t.SLAMinutes,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// NewTicketTypeList maps a ticket type slice to wire views.
func NewTicketTypeList(types []domain.TicketType) []TicketTypeResponse {
	out := make([]TicketTypeResponse, 0, len(types))
	for i := range types {
		out = append(out, NewTicketTypeResponse(&types[i]))
	}
	return out
}
