package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/realtime"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// Snapshot is the periodically recomputed fleet view. Purely derived.
type Snapshot struct {
	OpenCount        int       `json:"open_count"`
	InProgressCount  int       `json:"in_progress_count"`
	CreatedLastHour  int       `json:"created_last_hour"`
	TicketsPerMinute float64   `json:"tickets_per_minute"`
	UnassignedOpen   int       `json:"unassigned_open"`
	ComputedAt       time.Time `json:"computed_at"`
}

// MetricsService recomputes the fleet snapshot on a timer, publishes it to
// the admin broadcast channel and the Prometheus gauges, and serves it on
// demand, computing lazily when no snapshot exists yet.
type MetricsService struct {
	tickets repository.TicketRepository
	hub     *realtime.Hub
	metrics *observability.Metrics
	logger  *zap.Logger
	nowFn   func() time.Time

	mu     sync.RWMutex
	latest *Snapshot
}

// MetricsDependencies bundles collaborators.
type MetricsDependencies struct {
	TicketRepo repository.TicketRepository
	Hub        *realtime.Hub
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewMetricsService constructs the service.
func NewMetricsService(deps MetricsDependencies) *MetricsService {
	nowFn := deps.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &MetricsService{
		tickets: deps.TicketRepo,
		hub:     deps.Hub,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		nowFn:   nowFn,
	}
}

// RunOnce recomputes and publishes the snapshot.
func (s *MetricsService) RunOnce(ctx context.Context) error {
	snapshot, err := s.compute(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.latest = snapshot
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.TicketsOpen.Set(float64(snapshot.OpenCount))
		s.metrics.TicketsInProgress.Set(float64(snapshot.InProgressCount))
		s.metrics.TicketsUnassigned.Set(float64(snapshot.UnassignedOpen))
		s.metrics.TicketsPerMinute.Set(snapshot.TicketsPerMinute)
	}
	if s.hub != nil {
		s.hub.Publish(realtime.TopicAdmin, map[string]any{
			"type":     "metrics_snapshot",
			"snapshot": snapshot,
		})
	}
	return nil
}

// Latest serves the most recent snapshot, computing one lazily when the
// periodic job has not run yet.
func (s *MetricsService) Latest(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest != nil {
		return latest, nil
	}

	snapshot, err := s.compute(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.mu.Lock()
	if s.latest == nil {
		s.latest = snapshot
	} else {
		snapshot = s.latest
	}
	s.mu.Unlock()
	return snapshot, nil
}

func (s *MetricsService) compute(ctx context.Context) (*Snapshot, error) {
	now := s.nowFn()

	openCount, err := s.tickets.CountByStatus(ctx, domain.TicketStatusOpen)
	if err != nil {
		return nil, err
	}
	inProgressCount, err := s.tickets.CountByStatus(ctx, domain.TicketStatusInProgress)
	if err != nil {
		return nil, err
	}
	createdLastHour, err := s.tickets.CountCreatedSince(ctx, now.Add(-time.Hour))
	if err != nil {
		return nil, err
	}
	unassignedOpen, err := s.tickets.CountUnassignedOpen(ctx)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		OpenCount:        openCount,
		InProgressCount:  inProgressCount,
		CreatedLastHour:  createdLastHour,
		TicketsPerMinute: float64(createdLastHour) / 60.0,
		UnassignedOpen:   unassignedOpen,
		ComputedAt:       now,
	}, nil
}
