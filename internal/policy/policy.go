// Package policy implements the pure access decision function gating every
// ticket operation. It holds no state and performs no I/O: callers pass the
// acting user and a ticket snapshot and receive a tagged decision.
package policy

import (
	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// Action enumerates the gated ticket operations.
type Action string

const (
	ActionRead    Action = "READ"
	ActionUpdate  Action = "UPDATE"
	ActionAssign  Action = "ASSIGN"
	ActionClose   Action = "CLOSE"
	ActionMessage Action = "MESSAGE"
)

// Effect tags a decision outcome.
type Effect int

const (
	// EffectAllow permits the action.
	EffectAllow Effect = iota
	// EffectForbid is an authorization denial; callers surface it as a
	// FORBIDDEN error and never retry.
	EffectForbid
	// EffectConflict is a business-rule rejection caused by ticket state;
	// callers surface it as a CONFLICT and may retry after re-reading.
	EffectConflict
)

// Decision is the tagged result of a policy check.
type Decision struct {
	Effect Effect
	Reason string
}

// Allowed reports whether the action may proceed.
func (d Decision) Allowed() bool {
	return d.Effect == EffectAllow
}

// Err maps a denying decision onto the error taxonomy. Allowed decisions
// map to nil.
func (d Decision) Err() error {
	switch d.Effect {
	case EffectAllow:
		return nil
	case EffectConflict:
		return apperrors.NewConflict(d.Reason, nil)
	default:
		return apperrors.NewForbidden(d.Reason)
	}
}

func allow() Decision {
	return Decision{Effect: EffectAllow}
}

func forbid(reason string) Decision {
	return Decision{Effect: EffectForbid, Reason: reason}
}

func conflict(reason string) Decision {
	return Decision{Effect: EffectConflict, Reason: reason}
}

// Check evaluates whether actor may perform action on the ticket snapshot.
func Check(actor *domain.User, ticket *domain.Ticket, action Action) Decision {
	if actor == nil {
		return forbid("actor required")
	}
	if ticket == nil {
		return forbid("ticket required")
	}

	switch action {
	case ActionRead, ActionUpdate:
		return checkReadUpdate(actor, ticket)
	case ActionAssign:
		return checkAssign(actor, ticket)
	case ActionClose:
		return checkClose(actor, ticket)
	case ActionMessage:
		return checkMessage(actor, ticket)
	default:
		return forbid("unknown action")
	}
}

func checkReadUpdate(actor *domain.User, ticket *domain.Ticket) Decision {
	if actor.HasRole(domain.RoleAdmin) {
		return allow()
	}
	if ticket.RequesterID == actor.ID {
		return allow()
	}
	if isAssignedHelper(actor, ticket) {
		return allow()
	}
	// Helpers may view unclaimed work.
	if ticket.Status == domain.TicketStatusOpen && actor.HasRole(domain.RoleHelper) {
		return allow()
	}
	return forbid("no access to this ticket")
}

func checkAssign(actor *domain.User, ticket *domain.Ticket) Decision {
	if !actor.HasRole(domain.RoleHelper) && !actor.HasRole(domain.RoleAdmin) {
		return forbid("helper role required to claim tickets")
	}
	if ticket.Status != domain.TicketStatusOpen {
		return conflict("ticket is not open")
	}
	return allow()
}

func checkClose(actor *domain.User, ticket *domain.Ticket) Decision {
	if actor.HasRole(domain.RoleAdmin) {
		return allow()
	}
	if !isAssignedHelper(actor, ticket) {
		return forbid("only the assigned helper may close this ticket")
	}
	if ticket.Status != domain.TicketStatusInProgress {
		return conflict("ticket is not in progress")
	}
	return allow()
}

func checkMessage(actor *domain.User, ticket *domain.Ticket) Decision {
	participant := actor.HasRole(domain.RoleAdmin) ||
		isAssignedHelper(actor, ticket) ||
		ticket.RequesterID == actor.ID
	if !participant {
		return forbid("not a participant of this ticket")
	}
	if ticket.Status != domain.TicketStatusInProgress {
		return conflict("ticket is not in progress")
	}
	return allow()
}

func isAssignedHelper(actor *domain.User, ticket *domain.Ticket) bool {
	return ticket.HelperID != nil && *ticket.HelperID == actor.ID
}
