package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// SLAClass is the per-ticket deadline classification.
type SLAClass int

const (
	SLAOk SLAClass = iota
	SLAWarning
	SLAViolation
)

// ClassifySLA places a ticket on the OK / WARNING / VIOLATION scale.
// Boundary-exact: minutesOpen >= slaMinutes is a violation, and
// minutesOpen >= warningRatio*slaMinutes is a warning.
func ClassifySLA(minutesOpen int, slaMinutes int, warningRatio float64) SLAClass {
	if minutesOpen >= slaMinutes {
		return SLAViolation
	}
	if float64(minutesOpen) >= warningRatio*float64(slaMinutes) {
		return SLAWarning
	}
	return SLAOk
}

// SLAMonitor periodically classifies open work against its deadline budget
// and raises fleet-level alerts. Each run reads ticket snapshots only; it
// never takes the store's transition path. A run emits at most one alert
// per condition regardless of how many tickets match, and consecutive runs
// re-alert without deduplication.
type SLAMonitor struct {
	tickets    repository.TicketRepository
	types      TicketTypeResolver
	dispatcher events.Dispatcher
	cfg        config.SLAConfig
	metrics    *observability.Metrics
	logger     *zap.Logger
	nowFn      func() time.Time
}

// SLAMonitorDependencies bundles collaborators.
type SLAMonitorDependencies struct {
	TicketRepo repository.TicketRepository
	Types      TicketTypeResolver
	Dispatcher events.Dispatcher
	Config     config.SLAConfig
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewSLAMonitor constructs the monitor.
func NewSLAMonitor(deps SLAMonitorDependencies) *SLAMonitor {
	nowFn := deps.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &SLAMonitor{
		tickets:    deps.TicketRepo,
		types:      deps.Types,
		dispatcher: deps.Dispatcher,
		cfg:        deps.Config,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		nowFn:      nowFn,
	}
}

// RunOnce executes a single scan. Errors are returned for logging by the
// runner and never abort future runs.
func (m *SLAMonitor) RunOnce(ctx context.Context) error {
	now := m.nowFn()

	tickets, err := m.tickets.ListWithFilter(ctx, repository.TicketFilter{
		Statuses: []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress},
		Limit:    10000,
	})
	if err != nil {
		return fmt.Errorf("list open tickets: %w", err)
	}

	openCount := 0
	warnings := 0
	violations := 0
	typeBudgets := make(map[string]int)

	for i := range tickets {
		ticket := &tickets[i]
		if ticket.Status == domain.TicketStatusOpen {
			openCount++
		}
		slaMinutes, ok := typeBudgets[ticket.TypeID]
		if !ok {
			slaMinutes = m.resolveBudget(ctx, ticket.TypeID)
			typeBudgets[ticket.TypeID] = slaMinutes
		}
		minutesOpen := int(now.Sub(ticket.OpenedAt).Minutes())
		switch ClassifySLA(minutesOpen, slaMinutes, m.cfg.WarningRatio) {
		case SLAWarning:
			warnings++
		case SLAViolation:
			violations++
		}
	}

	var alerts []domain.Alert
	if violations > 0 {
		alerts = append(alerts, domain.Alert{
			Type:      domain.AlertSLAViolation,
			Title:     "SLA violation",
			Message:   fmt.Sprintf("%d ticket(s) exceeded their SLA budget", violations),
			Severity:  domain.SeverityHigh,
			Count:     violations,
			Timestamp: now,
		})
	}
	if warnings > 0 {
		alerts = append(alerts, domain.Alert{
			Type:      domain.AlertSLAWarning,
			Title:     "SLA warning",
			Message:   fmt.Sprintf("%d ticket(s) approaching their SLA budget", warnings),
			Severity:  domain.SeverityMedium,
			Count:     warnings,
			Timestamp: now,
		})
	}
	if m.cfg.MaxOpenBacklog > 0 && openCount > m.cfg.MaxOpenBacklog {
		alerts = append(alerts, domain.Alert{
			Type:      domain.AlertBacklogHigh,
			Title:     "Backlog high",
			Message:   fmt.Sprintf("%d tickets open, above the %d threshold", openCount, m.cfg.MaxOpenBacklog),
			Severity:  domain.SeverityHigh,
			Count:     openCount,
			Timestamp: now,
		})
	}

	if m.cfg.MaxHelperLoad > 0 {
		loads, err := m.tickets.CountInProgressByHelper(ctx)
		if err != nil {
			return fmt.Errorf("count helper load: %w", err)
		}
		overloaded := 0
		for _, load := range loads {
			if load > m.cfg.MaxHelperLoad {
				overloaded++
			}
		}
		if overloaded > 0 {
			alerts = append(alerts, domain.Alert{
				Type:      domain.AlertHelperOverloaded,
				Title:     "Helper overloaded",
				Message:   fmt.Sprintf("%d helper(s) carry more than %d tickets in progress", overloaded, m.cfg.MaxHelperLoad),
				Severity:  domain.SeverityMedium,
				Count:     overloaded,
				Timestamp: now,
			})
		}
	}

	for _, alert := range alerts {
		m.publishAlert(ctx, alert)
	}
	if m.metrics != nil {
		m.metrics.SLARuns.Inc()
	}
	m.logger.Debug("sla scan complete",
		zap.Int("scanned", len(tickets)),
		zap.Int("warnings", warnings),
		zap.Int("violations", violations),
		zap.Int("alerts", len(alerts)))
	return nil
}

// resolveBudget looks up the SLA budget for a type, falling back to the
// default when the type is missing or carries no positive budget.
func (m *SLAMonitor) resolveBudget(ctx context.Context, typeID string) int {
	if typeID == "" || m.types == nil {
		return domain.DefaultSLAMinutes
	}
	ticketType, err := m.types.GetByID(ctx, typeID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			m.logger.Warn("resolve ticket type failed", zap.String("type_id", typeID), zap.Error(err))
		}
		return domain.DefaultSLAMinutes
	}
	return ticketType.EffectiveSLAMinutes()
}

func (m *SLAMonitor) publishAlert(ctx context.Context, alert domain.Alert) {
	if m.metrics != nil {
		m.metrics.SLAAlerts.WithLabelValues(string(alert.Type)).Inc()
	}
	if m.dispatcher == nil {
		return
	}
	_ = m.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventSLAAlert,
		Timestamp: alert.Timestamp,
		Payload:   events.AlertPayload{Alert: alert},
	})
}
