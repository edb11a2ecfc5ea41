package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/realtime"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// NotificationService turns lifecycle and SLA events into durable per-user
// notifications plus best-effort live pushes. Persistence failures surface
// to the caller of Notify; push failures are logged and swallowed.
type NotificationService struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	hub           *realtime.Hub
	dispatcher    events.Dispatcher
	logger        *zap.Logger
}

// NotificationDependencies bundles collaborators.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	UserRepo         repository.UserRepository
	Hub              *realtime.Hub
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{
		notifications: deps.NotificationRepo,
		users:         deps.UserRepo,
		hub:           deps.Hub,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
	}
}

// RegisterHandlers subscribes to lifecycle and SLA events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketOpened, n.handleTicketOpened)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketClosed, n.handleTicketClosed)
	n.dispatcher.Subscribe(events.EventTicketMessageAdded, n.handleMessageAdded)
	n.dispatcher.Subscribe(events.EventSLAAlert, n.handleSLAAlert)

	// Every ticket-scoped event is also mirrored to the per-ticket topic so
	// both parties see chat and status changes live.
	for _, eventType := range []events.EventType{
		events.EventTicketOpened,
		events.EventTicketAssigned,
		events.EventTicketClosed,
		events.EventTicketStatusChanged,
		events.EventTicketMessageAdded,
	} {
		n.dispatcher.Subscribe(eventType, n.broadcastToTicketTopic)
	}
}

// Notify persists a notification and attempts a live push to every session
// of the target user. The durable record is authoritative: a failed push
// never rolls it back.
func (n *NotificationService) Notify(ctx context.Context, userID, ticketID string, notificationType domain.NotificationType, message string) error {
	notification := &domain.Notification{
		UserID:   userID,
		TicketID: ticketID,
		Type:     notificationType,
		Message:  message,
	}
	if err := n.notifications.Create(ctx, notification); err != nil {
		return apperrors.MapError(err)
	}
	if n.hub != nil {
		n.hub.PushUser(userID, notificationView(notification))
	}
	return nil
}

// List returns the actor's notifications.
func (n *NotificationService) List(ctx context.Context, actor *domain.User, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	result, err := n.notifications.ListByUser(ctx, actor.ID, unreadOnly, limit, offset)
	return result, apperrors.MapError(err)
}

// MarkRead marks one notification read. Idempotent for already-read ones.
func (n *NotificationService) MarkRead(ctx context.Context, actor *domain.User, notificationID string) error {
	if actor == nil {
		return apperrors.NewUnauthorized("actor required")
	}
	if err := n.notifications.MarkRead(ctx, notificationID, actor.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("notification", map[string]any{"notification_id": notificationID})
		}
		return apperrors.MapError(err)
	}
	return nil
}

// MarkAllRead marks every notification of the actor read. Idempotent.
func (n *NotificationService) MarkAllRead(ctx context.Context, actor *domain.User) error {
	if actor == nil {
		return apperrors.NewUnauthorized("actor required")
	}
	return apperrors.MapError(n.notifications.MarkAllRead(ctx, actor.ID))
}

func (n *NotificationService) handleTicketOpened(ctx context.Context, event events.Event) error {
	pool, err := n.users.ListDispatchPool(ctx)
	if err != nil {
		return err
	}
	ticket := event.Ticket
	for _, member := range pool {
		if member.ID == event.ActorID {
			continue
		}
		message := fmt.Sprintf("New ticket %s: %s", ticket.Key, ticket.Title)
		if err := n.Notify(ctx, member.ID, ticket.ID, domain.NotificationTicketOpened, message); err != nil {
			n.logger.Warn("dispatch pool notification failed",
				zap.String("user_id", member.ID),
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
		}
	}
	return nil
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	ticket := event.Ticket
	helperName := event.ActorID
	if helper, err := n.users.GetByID(ctx, event.ActorID); err == nil {
		helperName = helper.Name
	}
	message := fmt.Sprintf("Your ticket %s is being attended by %s", ticket.Key, helperName)
	return n.Notify(ctx, ticket.RequesterID, ticket.ID, domain.NotificationTicketAssigned, message)
}

func (n *NotificationService) handleTicketClosed(ctx context.Context, event events.Event) error {
	ticket := event.Ticket
	message := fmt.Sprintf("Your ticket %s has been closed", ticket.Key)
	return n.Notify(ctx, ticket.RequesterID, ticket.ID, domain.NotificationTicketClosed, message)
}

// handleMessageAdded notifies the participant who did not send the message.
func (n *NotificationService) handleMessageAdded(ctx context.Context, event events.Event) error {
	ticket := event.Ticket
	var target string
	switch {
	case event.ActorID != ticket.RequesterID:
		target = ticket.RequesterID
	case ticket.HelperID != nil:
		target = *ticket.HelperID
	default:
		return nil
	}
	message := fmt.Sprintf("New message on ticket %s", ticket.Key)
	return n.Notify(ctx, target, ticket.ID, domain.NotificationTicketMessage, message)
}

// handleSLAAlert broadcasts to the admin-only channel; alerts are ephemeral
// and never persisted as per-user notifications.
func (n *NotificationService) handleSLAAlert(ctx context.Context, event events.Event) error {
	if n.hub == nil {
		return nil
	}
	n.hub.Publish(realtime.TopicAdmin, event.Payload)
	return nil
}

func (n *NotificationService) broadcastToTicketTopic(ctx context.Context, event events.Event) error {
	if n.hub == nil || event.TicketID == "" {
		return nil
	}
	n.hub.Publish(realtime.TicketTopic(event.TicketID), event)
	return nil
}

func notificationView(notification *domain.Notification) map[string]any {
	return map[string]any{
		"id":         notification.ID,
		"ticket_id":  notification.TicketID,
		"type":       notification.Type,
		"message":    notification.Message,
		"created_at": notification.CreatedAt,
	}
}
