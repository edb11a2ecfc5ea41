package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/realtime"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	"github.com/spec-kit/helpdesk/internal/service"
)

type metricsFixture struct {
	svc     *service.MetricsService
	tickets *memory.TicketRepository
	now     time.Time
}

func newMetricsFixture(t *testing.T) *metricsFixture {
	t.Helper()
	logger := zap.NewNop()
	tickets := memory.NewTicketRepository()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	svc := service.NewMetricsService(service.MetricsDependencies{
		TicketRepo: tickets,
		Hub:        realtime.NewHub(realtime.NewRegistry(logger), logger),
		Logger:     logger,
		Now:        func() time.Time { return now },
	})
	return &metricsFixture{svc: svc, tickets: tickets, now: now}
}

func (f *metricsFixture) seed(t *testing.T, minutesAgo int, status domain.TicketStatus, helperID *string) {
	t.Helper()
	require.NoError(t, f.tickets.Create(context.Background(), &domain.Ticket{
		RequesterID: "req-1",
		HelperID:    helperID,
		Title:       "t",
		Description: "d",
		Status:      status,
		OpenedAt:    f.now.Add(-time.Duration(minutesAgo) * time.Minute),
	}))
}

func TestRunOnceComputesSnapshot(t *testing.T) {
	f := newMetricsFixture(t)
	ctx := context.Background()

	helperID := "helper-1"
	f.seed(t, 10, domain.TicketStatusOpen, nil)
	f.seed(t, 20, domain.TicketStatusOpen, nil)
	f.seed(t, 30, domain.TicketStatusInProgress, &helperID)
	f.seed(t, 90, domain.TicketStatusClosed, &helperID) // outside the trailing hour

	require.NoError(t, f.svc.RunOnce(ctx))

	snapshot, err := f.svc.Latest(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, snapshot.OpenCount)
	require.Equal(t, 1, snapshot.InProgressCount)
	require.Equal(t, 2, snapshot.UnassignedOpen)
	require.Equal(t, 3, snapshot.CreatedLastHour)
	require.InDelta(t, 3.0/60.0, snapshot.TicketsPerMinute, 1e-9)
	require.Equal(t, f.now, snapshot.ComputedAt)
}

func TestLatestComputesLazilyBeforeFirstRun(t *testing.T) {
	f := newMetricsFixture(t)
	f.seed(t, 5, domain.TicketStatusOpen, nil)

	snapshot, err := f.svc.Latest(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, snapshot.OpenCount)
}

func TestLatestServesCachedSnapshotUntilNextRun(t *testing.T) {
	f := newMetricsFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RunOnce(ctx))
	before, err := f.svc.Latest(ctx)
	require.NoError(t, err)
	require.Zero(t, before.OpenCount)

	// New work does not appear until the next scheduled recomputation.
	f.seed(t, 1, domain.TicketStatusOpen, nil)
	cached, err := f.svc.Latest(ctx)
	require.NoError(t, err)
	require.Zero(t, cached.OpenCount)

	require.NoError(t, f.svc.RunOnce(ctx))
	after, err := f.svc.Latest(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, after.OpenCount)
}
