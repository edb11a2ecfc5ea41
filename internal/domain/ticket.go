package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// ValidStatus reports whether s is a known ticket status.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusClosed:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
//
// Invariants maintained by the store and lifecycle service: StartedAt and
// HelperID are set iff status is IN_PROGRESS or CLOSED, ClosedAt is set iff
// status is CLOSED, and no transition leaves CLOSED.
type Ticket struct {
	ID          string
	Key         string
	RequesterID string
	HelperID    *string
	TypeID      string
	Category    string
	Title       string
	Description string
	Status      TicketStatus
	OpenedAt    time.Time
	StartedAt   *time.Time
	ClosedAt    *time.Time
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a deep copy so read paths never share mutable state with
// the store.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	copied := *t
	if t.HelperID != nil {
		helper := *t.HelperID
		copied.HelperID = &helper
	}
	if t.StartedAt != nil {
		started := *t.StartedAt
		copied.StartedAt = &started
	}
	if t.ClosedAt != nil {
		closed := *t.ClosedAt
		copied.ClosedAt = &closed
	}
	return &copied
}
