// Package memory provides in-memory implementations of the repository
// interfaces. The service falls back to them when no POSTGRES_DSN is
// configured; tests use them as fixtures. The ticket store honors the same
// compare-and-transition contract as the Postgres implementation: all
// status-changing writes go through Transition under the store lock, so two
// racing claims on one ticket can never both succeed.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// TicketRepository is a mutex-guarded ticket store.
type TicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
}

// NewTicketRepository builds an empty store.
func NewTicketRepository() *TicketRepository {
	return &TicketRepository{tickets: make(map[string]*domain.Ticket)}
}

// Create stores a new ticket, assigning an id when absent.
func (r *TicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	now := time.Now()
	ticket.Version = 1
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	r.tickets[ticket.ID] = ticket.Clone()
	return nil
}

// GetByID returns a snapshot of the ticket.
func (r *TicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return ticket.Clone(), nil
}

// Transition applies mutate atomically when the ticket is in the expected
// status, bumping the version. Precondition failures map to
// repository.ErrPreconditionFailed.
func (r *TicketRepository) Transition(ctx context.Context, id string, expected domain.TicketStatus, mutate func(*domain.Ticket) error) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if current.Status != expected {
		return nil, repository.ErrPreconditionFailed
	}
	candidate := current.Clone()
	if err := mutate(candidate); err != nil {
		return nil, err
	}
	candidate.Version = current.Version + 1
	candidate.UpdatedAt = time.Now()
	r.tickets[id] = candidate
	return candidate.Clone(), nil
}

// ListWithFilter returns matching ticket snapshots.
func (r *TicketRepository) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.RequesterID != nil && ticket.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.HelperID != nil && (ticket.HelperID == nil || *ticket.HelperID != *filter.HelperID) {
			continue
		}
		if len(filter.Statuses) > 0 && !statusIn(ticket.Status, filter.Statuses) {
			continue
		}
		result = append(result, *ticket.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenedAt.After(result[j].OpenedAt)
	})

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// CountByStatus counts tickets in the given status.
func (r *TicketRepository) CountByStatus(ctx context.Context, status domain.TicketStatus) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, ticket := range r.tickets {
		if ticket.Status == status {
			count++
		}
	}
	return count, nil
}

// CountUnassignedOpen counts OPEN tickets with no helper.
func (r *TicketRepository) CountUnassignedOpen(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, ticket := range r.tickets {
		if ticket.Status == domain.TicketStatusOpen && ticket.HelperID == nil {
			count++
		}
	}
	return count, nil
}

// CountCreatedSince counts tickets opened at or after the given time.
func (r *TicketRepository) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, ticket := range r.tickets {
		if !ticket.OpenedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// CountInProgressByHelper groups IN_PROGRESS tickets by assigned helper.
func (r *TicketRepository) CountInProgressByHelper(ctx context.Context) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int)
	for _, ticket := range r.tickets {
		if ticket.Status == domain.TicketStatusInProgress && ticket.HelperID != nil {
			counts[*ticket.HelperID]++
		}
	}
	return counts, nil
}

func statusIn(status domain.TicketStatus, statuses []domain.TicketStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// UserRepository is a mutex-guarded account store.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewUserRepository builds an empty store.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*domain.User)}
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

// GetByID returns the user with the given id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

// GetByUsername returns the user with the given username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Username, username) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ListDispatchPool returns enabled users holding a helper or admin role.
func (r *UserRepository) ListDispatchPool(ctx context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.User
	for _, user := range r.users {
		if user.Enabled && user.IsStaff() {
			result = append(result, *user)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Username < result[j].Username
	})
	return result, nil
}

// TicketTypeRepository is a mutex-guarded ticket type store.
type TicketTypeRepository struct {
	mu    sync.RWMutex
	types map[string]*domain.TicketType
}

// NewTicketTypeRepository builds an empty store.
func NewTicketTypeRepository() *TicketTypeRepository {
	return &TicketTypeRepository{types: make(map[string]*domain.TicketType)}
}

// Create stores a new ticket type.
func (r *TicketTypeRepository) Create(ctx context.Context, ticketType *domain.TicketType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticketType.ID == "" {
		ticketType.ID = uuid.NewString()
	}
	now := time.Now()
	ticketType.CreatedAt = now
	ticketType.UpdatedAt = now
	copied := *ticketType
	r.types[ticketType.ID] = &copied
	return nil
}

// Update replaces an existing ticket type.
func (r *TicketTypeRepository) Update(ctx context.Context, ticketType *domain.TicketType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.types[ticketType.ID]
	if !ok {
		return repository.ErrNotFound
	}
	ticketType.CreatedAt = existing.CreatedAt
	ticketType.UpdatedAt = time.Now()
	copied := *ticketType
	r.types[ticketType.ID] = &copied
	return nil
}

// GetByID returns the ticket type with the given id.
func (r *TicketTypeRepository) GetByID(ctx context.Context, id string) (*domain.TicketType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticketType, ok := r.types[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *ticketType
	return &copied, nil
}

// List returns all ticket types ordered by priority.
func (r *TicketTypeRepository) List(ctx context.Context) ([]domain.TicketType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.TicketType
	for _, ticketType := range r.types {
		result = append(result, *ticketType)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].PriorityLevel != result[j].PriorityLevel {
			return result[i].PriorityLevel > result[j].PriorityLevel
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// NotificationRepository is a mutex-guarded notification store.
type NotificationRepository struct {
	mu            sync.RWMutex
	notifications map[string]*domain.Notification
}

// NewNotificationRepository builds an empty store.
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{notifications: make(map[string]*domain.Notification)}
}

// Create stores a new notification.
func (r *NotificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	notification.CreatedAt = time.Now()
	copied := *notification
	r.notifications[notification.ID] = &copied
	return nil
}

// ListByUser returns notifications for the user, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Notification
	for _, notification := range r.notifications {
		if notification.UserID != userID {
			continue
		}
		if unreadOnly && notification.Read {
			continue
		}
		result = append(result, *notification)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit <= 0 {
		limit = 50
	}
	if limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// MarkRead flips the read flag; already-read notifications are a no-op.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	notification, ok := r.notifications[id]
	if !ok || notification.UserID != userID {
		return repository.ErrNotFound
	}
	notification.Read = true
	return nil
}

// MarkAllRead marks every notification of the user read. Idempotent.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, notification := range r.notifications {
		if notification.UserID == userID {
			notification.Read = true
		}
	}
	return nil
}

// CountUnread counts unread notifications for the user.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, notification := range r.notifications {
		if notification.UserID == userID && !notification.Read {
			count++
		}
	}
	return count, nil
}

// TicketMessageRepository is a mutex-guarded message store.
type TicketMessageRepository struct {
	mu       sync.RWMutex
	messages map[string]*domain.TicketMessage
}

// NewTicketMessageRepository builds an empty store.
func NewTicketMessageRepository() *TicketMessageRepository {
	return &TicketMessageRepository{messages: make(map[string]*domain.TicketMessage)}
}

// Create stores a new message.
func (r *TicketMessageRepository) Create(ctx context.Context, message *domain.TicketMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	message.CreatedAt = time.Now()
	copied := *message
	r.messages[message.ID] = &copied
	return nil
}

// ListByTicket returns messages for the ticket, oldest first.
func (r *TicketMessageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.TicketMessage
	for _, message := range r.messages {
		if message.TicketID == ticketID {
			result = append(result, *message)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
