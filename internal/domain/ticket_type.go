package domain

import "time"

// DefaultSLAMinutes applies when a ticket type is missing or carries no
// positive SLA budget.
const DefaultSLAMinutes = 480

// TicketType is read-mostly reference data carrying the SLA budget and
// priority weight for tickets of that type.
type TicketType struct {
	ID            string
	Name          string
	Active        bool
	PriorityLevel int
	SLAMinutes    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EffectiveSLAMinutes resolves the deadline budget, falling back to the
// default when the type has none configured.
func (t *TicketType) EffectiveSLAMinutes() int {
	if t == nil || t.SLAMinutes <= 0 {
		return DefaultSLAMinutes
	}
	return t.SLAMinutes
}
