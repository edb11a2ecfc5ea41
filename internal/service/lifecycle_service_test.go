package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// captureDispatcher records published events for assertions.
type captureDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *captureDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *captureDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *captureDispatcher) byType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, event := range d.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

type lifecycleFixture struct {
	svc        *service.LifecycleService
	tickets    *memory.TicketRepository
	types      *memory.TicketTypeRepository
	dispatcher *captureDispatcher
	now        time.Time
	typeID     string
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	ctx := context.Background()

	tickets := memory.NewTicketRepository()
	messages := memory.NewTicketMessageRepository()
	types := memory.NewTicketTypeRepository()
	dispatcher := &captureDispatcher{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	ticketType := &domain.TicketType{Name: "incident", Active: true, PriorityLevel: 2, SLAMinutes: 240}
	require.NoError(t, types.Create(ctx, ticketType))

	svc := service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo:  tickets,
		MessageRepo: messages,
		Types:       types,
		Dispatcher:  dispatcher,
		Now:         func() time.Time { return now },
	})
	return &lifecycleFixture{svc: svc, tickets: tickets, types: types, dispatcher: dispatcher, now: now, typeID: ticketType.ID}
}

func requester() *domain.User {
	return &domain.User{ID: "req-1", Username: "req", Enabled: true}
}

func helper(id string) *domain.User {
	return &domain.User{ID: id, Username: id, Enabled: true, Roles: []domain.Role{domain.RoleHelper}}
}

func admin() *domain.User {
	return &domain.User{ID: "admin-1", Username: "admin", Enabled: true, Roles: []domain.Role{domain.RoleAdmin}}
}

func (f *lifecycleFixture) openTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket, err := f.svc.Open(context.Background(), requester(), service.TicketOpenInput{
		TypeID:      f.typeID,
		Category:    "network",
		Title:       "VPN down",
		Description: "cannot connect since this morning",
	})
	require.NoError(t, err)
	return ticket
}

func TestOpenCreatesTicketAndEmitsEvent(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.openTicket(t)

	require.Equal(t, domain.TicketStatusOpen, ticket.Status)
	require.Equal(t, "req-1", ticket.RequesterID)
	require.Nil(t, ticket.HelperID)
	require.Equal(t, f.now, ticket.OpenedAt)
	require.NotEmpty(t, ticket.Key)

	opened := f.dispatcher.byType(events.EventTicketOpened)
	require.Len(t, opened, 1)
	require.Equal(t, ticket.ID, opened[0].TicketID)
	require.Equal(t, "req-1", opened[0].ActorID)
	require.NotNil(t, opened[0].Ticket)
	require.Equal(t, domain.TicketStatusOpen, opened[0].Ticket.Status)
}

func TestOpenRejectsUnknownOrInactiveType(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	_, err := f.svc.Open(ctx, requester(), service.TicketOpenInput{
		TypeID: "missing", Title: "x", Description: "y",
	})
	require.Error(t, err)

	inactive := &domain.TicketType{Name: "legacy", Active: false}
	require.NoError(t, f.types.Create(ctx, inactive))
	_, err = f.svc.Open(ctx, requester(), service.TicketOpenInput{
		TypeID: inactive.ID, Title: "x", Description: "y",
	})
	require.Error(t, err)
}

func TestOpenRequiresTitleAndDescription(t *testing.T) {
	f := newLifecycleFixture(t)
	_, err := f.svc.Open(context.Background(), requester(), service.TicketOpenInput{
		TypeID: f.typeID, Title: "   ", Description: "y",
	})
	require.Error(t, err)
}

func TestAssignClaimsTicket(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.openTicket(t)

	claimed, err := f.svc.Assign(context.Background(), helper("helper-1"), ticket.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusInProgress, claimed.Status)
	require.NotNil(t, claimed.HelperID)
	require.Equal(t, "helper-1", *claimed.HelperID)
	require.NotNil(t, claimed.StartedAt)

	assigned := f.dispatcher.byType(events.EventTicketAssigned)
	require.Len(t, assigned, 1)
	require.Equal(t, domain.TicketStatusInProgress, assigned[0].Ticket.Status)
}

func TestSecondAssignConflicts(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.openTicket(t)
	ctx := context.Background()

	_, err := f.svc.Assign(ctx, helper("helper-1"), ticket.ID)
	require.NoError(t, err)

	_, err = f.svc.Assign(ctx, helper("helper-2"), ticket.ID)
	require.True(t, apperrors.IsConflict(err))

	// Loser never mutated the ticket.
	current, _, getErr := f.svc.Get(ctx, admin(), ticket.ID)
	require.NoError(t, getErr)
	require.Equal(t, "helper-1", *current.HelperID)
	require.Len(t, f.dispatcher.byType(events.EventTicketAssigned), 1)
}

func TestAssignByRequesterForbidden(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.openTicket(t)

	_, err := f.svc.Assign(context.Background(), requester(), ticket.ID)
	require.True(t, apperrors.IsForbidden(err))
}

func TestCloseCompletesTicket(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.openTicket(t)
	ctx := context.Background()

	_, err := f.svc.Assign(ctx, helper("helper-1"), ticket.ID)
	require.NoError(t, err)

	closed, err := f.svc.Close(ctx, helper("helper-1"), ticket.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	require.Len(t, f.dispatcher.byType(events.EventTicketClosed), 1)
}

func TestCloseOpenTicketConflictsForAdmin(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.openTicket(t)

	// Admin passes policy but the store precondition still rejects.
	_, err := f.svc.Close(context.Background(), admin(), ticket.ID)
	require.True(t, apperrors.IsConflict(err))
}

func TestCloseByUnassignedHelperForbidden(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.openTicket(t)
	ctx := context.Background()

	_, err := f.svc.Assign(ctx, helper("helper-1"), ticket.ID)
	require.NoError(t, err)

	_, err = f.svc.Close(ctx, helper("helper-2"), ticket.ID)
	require.True(t, apperrors.IsForbidden(err))
}

func TestUpdateEditsFields(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.openTicket(t)

	title := "VPN outage"
	updated, err := f.svc.Update(context.Background(), requester(), ticket.ID, service.TicketUpdateInput{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "VPN outage", updated.Title)
	require.Greater(t, updated.Version, ticket.Version)
}

func TestStatusOverrideAdminOnly(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.openTicket(t)
	ctx := context.Background()

	status := domain.TicketStatusClosed
	_, err := f.svc.Update(ctx, requester(), ticket.ID, service.TicketUpdateInput{Status: &status})
	require.True(t, apperrors.IsForbidden(err))

	updated, err := f.svc.Update(ctx, admin(), ticket.ID, service.TicketUpdateInput{Status: &status})
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusClosed, updated.Status)
	// Forcing a close on unassigned work still keeps the invariants.
	require.NotNil(t, updated.HelperID)
	require.NotNil(t, updated.StartedAt)
	require.NotNil(t, updated.ClosedAt)

	changed := f.dispatcher.byType(events.EventTicketStatusChanged)
	require.Len(t, changed, 1)
	payload, ok := changed[0].Payload.(events.StatusChangedPayload)
	require.True(t, ok)
	require.Equal(t, domain.TicketStatusOpen, payload.OldStatus)
	require.Equal(t, domain.TicketStatusClosed, payload.NewStatus)
}

func TestStatusOverrideClosedIsTerminal(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.openTicket(t)
	ctx := context.Background()

	closed := domain.TicketStatusClosed
	_, err := f.svc.Update(ctx, admin(), ticket.ID, service.TicketUpdateInput{Status: &closed})
	require.NoError(t, err)

	reopen := domain.TicketStatusOpen
	_, err = f.svc.Update(ctx, admin(), ticket.ID, service.TicketUpdateInput{Status: &reopen})
	require.True(t, apperrors.IsConflict(err))
}

func TestAddMessageRequiresInProgress(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.openTicket(t)
	ctx := context.Background()

	_, err := f.svc.AddMessage(ctx, requester(), ticket.ID, "hello?", nil)
	require.True(t, apperrors.IsConflict(err))

	_, err = f.svc.Assign(ctx, helper("helper-1"), ticket.ID)
	require.NoError(t, err)

	message, err := f.svc.AddMessage(ctx, requester(), ticket.ID, "hello?", nil)
	require.NoError(t, err)
	require.Equal(t, "req-1", message.AuthorID)

	_, err = f.svc.AddMessage(ctx, helper("helper-2"), ticket.ID, "let me in", nil)
	require.True(t, apperrors.IsForbidden(err))

	added := f.dispatcher.byType(events.EventTicketMessageAdded)
	require.Len(t, added, 1)
}

func TestAddMessagePreviewKeepsRuneBoundaries(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.openTicket(t)
	ctx := context.Background()

	_, err := f.svc.Assign(ctx, helper("helper-1"), ticket.ID)
	require.NoError(t, err)

	body := strings.Repeat("é", 200)
	_, err = f.svc.AddMessage(ctx, requester(), ticket.ID, body, nil)
	require.NoError(t, err)

	added := f.dispatcher.byType(events.EventTicketMessageAdded)
	require.Len(t, added, 1)
	payload := added[0].Payload.(events.MessageAddedPayload)
	require.True(t, utf8.ValidString(payload.BodyPreview))
	require.Equal(t, strings.Repeat("é", 117)+"...", payload.BodyPreview)
}

func TestGetReturnsThread(t *testing.T) {
	f := newLifecycleFixture(t)
	ticket := f.openTicket(t)
	ctx := context.Background()

	_, err := f.svc.Assign(ctx, helper("helper-1"), ticket.ID)
	require.NoError(t, err)
	_, err = f.svc.AddMessage(ctx, requester(), ticket.ID, "first", nil)
	require.NoError(t, err)
	_, err = f.svc.AddMessage(ctx, helper("helper-1"), ticket.ID, "second", nil)
	require.NoError(t, err)

	got, messages, err := f.svc.Get(ctx, requester(), ticket.ID)
	require.NoError(t, err)
	require.Equal(t, ticket.ID, got.ID)
	require.Len(t, messages, 2)

	_, _, err = f.svc.Get(ctx, &domain.User{ID: "stranger", Enabled: true}, ticket.ID)
	require.True(t, apperrors.IsForbidden(err))
}

func TestListVisiblePerRole(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	mine := f.openTicket(t)
	other, err := f.svc.Open(ctx, &domain.User{ID: "req-2", Enabled: true}, service.TicketOpenInput{
		TypeID: f.typeID, Title: "printer", Description: "jammed",
	})
	require.NoError(t, err)
	_, err = f.svc.Assign(ctx, helper("helper-1"), other.ID)
	require.NoError(t, err)

	// Requester sees only their own work.
	visible, err := f.svc.ListVisible(ctx, requester(), nil, 50, 0)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	require.Equal(t, mine.ID, visible[0].ID)

	// An uninvolved helper sees open unclaimed work but not claimed work.
	visible, err = f.svc.ListVisible(ctx, helper("helper-2"), nil, 50, 0)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	require.Equal(t, mine.ID, visible[0].ID)

	// The assigned helper sees the claimed ticket and open work.
	visible, err = f.svc.ListVisible(ctx, helper("helper-1"), nil, 50, 0)
	require.NoError(t, err)
	require.Len(t, visible, 2)

	// Admin sees everything.
	visible, err = f.svc.ListVisible(ctx, admin(), nil, 50, 0)
	require.NoError(t, err)
	require.Len(t, visible, 2)

	// Status filter narrows.
	visible, err = f.svc.ListVisible(ctx, admin(), []domain.TicketStatus{domain.TicketStatusInProgress}, 50, 0)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	require.Equal(t, other.ID, visible[0].ID)
}
