package policy_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/policy"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

func userWith(id string, roles ...domain.Role) *domain.User {
	return &domain.User{ID: id, Username: id, Enabled: true, Roles: roles}
}

func ticketWith(requesterID string, helperID *string, status domain.TicketStatus) *domain.Ticket {
	return &domain.Ticket{
		ID:          "t1",
		RequesterID: requesterID,
		HelperID:    helperID,
		Status:      status,
	}
}

func TestCheckDecisions(t *testing.T) {
	helperID := "helper-1"
	requester := userWith("req-1")
	stranger := userWith("req-2")
	helper := userWith(helperID, domain.RoleHelper)
	otherHelper := userWith("helper-2", domain.RoleHelper)
	admin := userWith("admin-1", domain.RoleAdmin)

	tests := []struct {
		name   string
		actor  *domain.User
		ticket *domain.Ticket
		action policy.Action
		want   policy.Effect
	}{
		{"requester reads own ticket", requester, ticketWith("req-1", nil, domain.TicketStatusOpen), policy.ActionRead, policy.EffectAllow},
		{"stranger cannot read", stranger, ticketWith("req-1", nil, domain.TicketStatusInProgress), policy.ActionRead, policy.EffectForbid},
		{"helper views open unclaimed work", otherHelper, ticketWith("req-1", nil, domain.TicketStatusOpen), policy.ActionRead, policy.EffectAllow},
		{"helper cannot view claimed work of others", otherHelper, ticketWith("req-1", &helperID, domain.TicketStatusInProgress), policy.ActionRead, policy.EffectForbid},
		{"assigned helper reads", helper, ticketWith("req-1", &helperID, domain.TicketStatusInProgress), policy.ActionRead, policy.EffectAllow},
		{"admin reads anything", admin, ticketWith("req-1", &helperID, domain.TicketStatusClosed), policy.ActionRead, policy.EffectAllow},

		{"requester cannot assign", requester, ticketWith("req-1", nil, domain.TicketStatusOpen), policy.ActionAssign, policy.EffectForbid},
		{"helper assigns open ticket", helper, ticketWith("req-1", nil, domain.TicketStatusOpen), policy.ActionAssign, policy.EffectAllow},
		{"assign non-open ticket conflicts", helper, ticketWith("req-1", &helperID, domain.TicketStatusInProgress), policy.ActionAssign, policy.EffectConflict},
		{"assign closed ticket conflicts", admin, ticketWith("req-1", &helperID, domain.TicketStatusClosed), policy.ActionAssign, policy.EffectConflict},

		{"assigned helper closes in progress", helper, ticketWith("req-1", &helperID, domain.TicketStatusInProgress), policy.ActionClose, policy.EffectAllow},
		{"other helper cannot close", otherHelper, ticketWith("req-1", &helperID, domain.TicketStatusInProgress), policy.ActionClose, policy.EffectForbid},
		{"requester cannot close", requester, ticketWith("req-1", &helperID, domain.TicketStatusInProgress), policy.ActionClose, policy.EffectForbid},
		{"assigned helper close open ticket conflicts", helper, ticketWith("req-1", &helperID, domain.TicketStatusOpen), policy.ActionClose, policy.EffectConflict},
		{"admin closes regardless of state", admin, ticketWith("req-1", nil, domain.TicketStatusOpen), policy.ActionClose, policy.EffectAllow},

		{"requester messages in progress", requester, ticketWith("req-1", &helperID, domain.TicketStatusInProgress), policy.ActionMessage, policy.EffectAllow},
		{"assigned helper messages in progress", helper, ticketWith("req-1", &helperID, domain.TicketStatusInProgress), policy.ActionMessage, policy.EffectAllow},
		{"non participant cannot message", otherHelper, ticketWith("req-1", &helperID, domain.TicketStatusInProgress), policy.ActionMessage, policy.EffectForbid},
		{"message on open ticket conflicts", requester, ticketWith("req-1", nil, domain.TicketStatusOpen), policy.ActionMessage, policy.EffectConflict},
		{"message on closed ticket conflicts", helper, ticketWith("req-1", &helperID, domain.TicketStatusClosed), policy.ActionMessage, policy.EffectConflict},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := policy.Check(tc.actor, tc.ticket, tc.action)
			require.Equal(t, tc.want, got.Effect, "reason: %s", got.Reason)
		})
	}
}

func TestCheckNilActorOrTicket(t *testing.T) {
	ticket := ticketWith("req-1", nil, domain.TicketStatusOpen)
	require.Equal(t, policy.EffectForbid, policy.Check(nil, ticket, policy.ActionRead).Effect)
	require.Equal(t, policy.EffectForbid, policy.Check(userWith("u1"), nil, policy.ActionRead).Effect)
}

func TestDecisionErrMapping(t *testing.T) {
	helperID := "helper-1"
	helper := userWith(helperID, domain.RoleHelper)
	requester := userWith("req-1")

	// State-based rejection is retryable.
	conflictDec := policy.Check(helper, ticketWith("req-1", &helperID, domain.TicketStatusInProgress), policy.ActionAssign)
	require.True(t, apperrors.IsConflict(conflictDec.Err()))

	// Role-based rejection is not.
	forbidDec := policy.Check(requester, ticketWith("req-1", nil, domain.TicketStatusOpen), policy.ActionAssign)
	require.True(t, apperrors.IsForbidden(forbidDec.Err()))

	allowDec := policy.Check(helper, ticketWith("req-1", nil, domain.TicketStatusOpen), policy.ActionAssign)
	require.NoError(t, allowDec.Err())
}
