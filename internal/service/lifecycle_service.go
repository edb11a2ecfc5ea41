package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/policy"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// TicketTypeResolver resolves ticket type reference data. Satisfied by the
// repository directly and by the Redis read-through cache.
type TicketTypeResolver interface {
	GetByID(ctx context.Context, id string) (*domain.TicketType, error)
}

// LifecycleService drives the OPEN -> IN_PROGRESS -> CLOSED state machine.
// Every status-changing write goes through the store's atomic Transition,
// and every successful transition emits an event carrying the
// post-transition snapshot before the operation returns.
type LifecycleService struct {
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	types      TicketTypeResolver
	dispatcher events.Dispatcher
	nowFn      func() time.Time
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.TicketMessageRepository
	Types       TicketTypeResolver
	Dispatcher  events.Dispatcher
	Now         func() time.Time
}

// TicketOpenInput describes ticket creation payload.
type TicketOpenInput struct {
	TypeID      string
	Category    string
	Title       string
	Description string
}

// TicketUpdateInput describes a partial update. Status is honored only for
// admins as a direct override.
type TicketUpdateInput struct {
	Title       *string
	Description *string
	Status      *domain.TicketStatus
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	nowFn := deps.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &LifecycleService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		types:      deps.Types,
		dispatcher: deps.Dispatcher,
		nowFn:      nowFn,
	}
}

// Open validates input and creates a ticket in OPEN status.
func (s *LifecycleService) Open(ctx context.Context, requester *domain.User, input TicketOpenInput) (*domain.Ticket, error) {
	if requester == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}
	if input.TypeID == "" {
		return nil, apperrors.NewValidationError("type_id required", nil)
	}
	ticketType, err := s.types.GetByID(ctx, input.TypeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewValidationError("unknown ticket type", map[string]any{"type_id": input.TypeID})
		}
		return nil, apperrors.MapError(err)
	}
	if !ticketType.Active {
		return nil, apperrors.NewValidationError("ticket type inactive", map[string]any{"type_id": input.TypeID})
	}

	ticket := &domain.Ticket{
		Key:         generateTicketKey(),
		RequesterID: requester.ID,
		TypeID:      input.TypeID,
		Category:    strings.TrimSpace(input.Category),
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusOpen,
		OpenedAt:    s.nowFn(),
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketOpened,
		TicketID: ticket.ID,
		ActorID:  requester.ID,
		Ticket:   ticket.Clone(),
	})
	return ticket, nil
}

// Assign lets a helper or admin claim an OPEN ticket. When two callers race
// on the same ticket, the store guarantees exactly one success; the loser
// receives a Conflict.
func (s *LifecycleService) Assign(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	snapshot, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.Check(actor, snapshot, policy.ActionAssign).Err(); err != nil {
		return nil, err
	}

	now := s.nowFn()
	ticket, err := s.tickets.Transition(ctx, ticketID, domain.TicketStatusOpen, func(t *domain.Ticket) error {
		if t.HelperID != nil {
			return repository.ErrPreconditionFailed
		}
		helperID := actor.ID
		t.HelperID = &helperID
		t.Status = domain.TicketStatusInProgress
		t.StartedAt = &now
		return nil
	})
	if err != nil {
		return nil, mapTransitionError(err, ticketID, "ticket already claimed")
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Ticket:   ticket.Clone(),
	})
	return ticket, nil
}

// Close completes an IN_PROGRESS ticket. Policy admits admins and the
// assigned helper; the store enforces the state precondition so closing a
// ticket that is not in progress is always a Conflict and never mutates.
func (s *LifecycleService) Close(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	snapshot, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.Check(actor, snapshot, policy.ActionClose).Err(); err != nil {
		return nil, err
	}

	now := s.nowFn()
	ticket, err := s.tickets.Transition(ctx, ticketID, domain.TicketStatusInProgress, func(t *domain.Ticket) error {
		t.Status = domain.TicketStatusClosed
		t.ClosedAt = &now
		return nil
	})
	if err != nil {
		return nil, mapTransitionError(err, ticketID, "ticket is not in progress")
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Ticket:   ticket.Clone(),
	})
	return ticket, nil
}

// Update edits title/description for permitted actors. A status change is
// an admin-only direct override that bypasses the usual preconditions but
// still never resurrects a CLOSED ticket; it emits TicketStatusChanged only
// when the status actually differs.
func (s *LifecycleService) Update(ctx context.Context, actor *domain.User, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	snapshot, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.Check(actor, snapshot, policy.ActionUpdate).Err(); err != nil {
		return nil, err
	}

	statusChange := input.Status != nil && *input.Status != snapshot.Status
	if statusChange {
		if !actor.HasRole(domain.RoleAdmin) {
			return nil, apperrors.NewForbidden("only admins may override ticket status")
		}
		if !domain.ValidStatus(*input.Status) {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": *input.Status})
		}
		if snapshot.Status == domain.TicketStatusClosed {
			return nil, apperrors.NewConflict("closed tickets are terminal", nil)
		}
	}

	now := s.nowFn()
	oldStatus := snapshot.Status
	ticket, err := s.tickets.Transition(ctx, ticketID, snapshot.Status, func(t *domain.Ticket) error {
		if input.Title != nil {
			title := strings.TrimSpace(*input.Title)
			if title == "" {
				return apperrors.NewValidationError("title cannot be empty", nil)
			}
			t.Title = title
		}
		if input.Description != nil {
			description := strings.TrimSpace(*input.Description)
			if description == "" {
				return apperrors.NewValidationError("description cannot be empty", nil)
			}
			t.Description = description
		}
		if statusChange {
			applyStatusOverride(t, *input.Status, actor.ID, now)
		}
		return nil
	})
	if err != nil {
		return nil, mapTransitionError(err, ticketID, "ticket changed concurrently")
	}

	if statusChange {
		s.publish(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			ActorID:  actor.ID,
			Ticket:   ticket.Clone(),
			Payload: events.StatusChangedPayload{
				OldStatus: oldStatus,
				NewStatus: ticket.Status,
				Override:  true,
			},
		})
	}
	return ticket, nil
}

// AddMessage appends chat content to an in-progress ticket.
func (s *LifecycleService) AddMessage(ctx context.Context, actor *domain.User, ticketID, body string, attachmentPath *string) (*domain.TicketMessage, error) {
	snapshot, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.Check(actor, snapshot, policy.ActionMessage).Err(); err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("body required", nil)
	}

	message := &domain.TicketMessage{
		TicketID:       snapshot.ID,
		AuthorID:       actor.ID,
		Body:           body,
		AttachmentPath: attachmentPath,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: snapshot.ID,
		ActorID:  actor.ID,
		Ticket:   snapshot.Clone(),
		Payload: events.MessageAddedPayload{
			MessageID:   message.ID,
			AuthorID:    actor.ID,
			BodyPreview: stringPreview(body, 120),
		},
	})
	return message, nil
}

// Get returns a ticket with its message thread after a READ check.
func (s *LifecycleService) Get(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, []domain.TicketMessage, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if err := policy.Check(actor, ticket, policy.ActionRead).Err(); err != nil {
		return nil, nil, err
	}
	messages, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return ticket, messages, nil
}

// ListVisible returns the tickets the actor may see: everything for admins,
// own plus assigned plus unclaimed open work for helpers, own tickets for
// plain requesters.
func (s *LifecycleService) ListVisible(ctx context.Context, actor *domain.User, statuses []domain.TicketStatus, limit, offset int) ([]domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	filter := repository.TicketFilter{Statuses: statuses, Limit: limit, Offset: offset}
	if actor.HasRole(domain.RoleAdmin) {
		tickets, err := s.tickets.ListWithFilter(ctx, filter)
		return tickets, apperrors.MapError(err)
	}

	// Non-admins: fetch a wide superset and filter through the policy so
	// visibility rules live in exactly one place.
	filter.Limit = 10000
	filter.Offset = 0
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	visible := make([]domain.Ticket, 0, len(tickets))
	for i := range tickets {
		if policy.Check(actor, &tickets[i], policy.ActionRead).Allowed() {
			visible = append(visible, tickets[i])
		}
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(visible) {
		return nil, nil
	}
	visible = visible[offset:]
	if limit > 0 && limit < len(visible) {
		visible = visible[:limit]
	}
	return visible, nil
}

func (s *LifecycleService) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *LifecycleService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.nowFn()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// applyStatusOverride keeps the ticket invariants intact while an admin
// forces a status: IN_PROGRESS and CLOSED always carry a helper and a start
// time, OPEN carries neither.
func applyStatusOverride(t *domain.Ticket, status domain.TicketStatus, actorID string, now time.Time) {
	t.Status = status
	switch status {
	case domain.TicketStatusOpen:
		t.HelperID = nil
		t.StartedAt = nil
		t.ClosedAt = nil
	case domain.TicketStatusInProgress:
		if t.HelperID == nil {
			helperID := actorID
			t.HelperID = &helperID
		}
		if t.StartedAt == nil {
			t.StartedAt = &now
		}
		t.ClosedAt = nil
	case domain.TicketStatusClosed:
		if t.HelperID == nil {
			helperID := actorID
			t.HelperID = &helperID
		}
		if t.StartedAt == nil {
			t.StartedAt = &now
		}
		t.ClosedAt = &now
	}
}

func mapTransitionError(err error, ticketID, conflictMessage string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	case errors.Is(err, repository.ErrPreconditionFailed):
		return apperrors.NewConflict(conflictMessage, map[string]any{"ticket_id": ticketID})
	default:
		return apperrors.MapError(err)
	}
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// stringPreview truncates on rune boundaries so multi-byte content never
// yields a broken trailing character.
func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
