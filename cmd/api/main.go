package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk/internal/api/http"
	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/cache"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/realtime"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	"github.com/spec-kit/helpdesk/internal/runner"
	"github.com/spec-kit/helpdesk/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.PoolHandle() != nil {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var (
		ticketRepo       repository.TicketRepository
		userRepo         repository.UserRepository
		ticketTypeRepo   repository.TicketTypeRepository
		notificationRepo repository.NotificationRepository
		messageRepo      repository.TicketMessageRepository
	)
	if pool := pg.PoolHandle(); pool != nil {
		ticketRepo = repository.NewTicketRepository(pool)
		userRepo = repository.NewUserRepository(pool)
		ticketTypeRepo = repository.NewTicketTypeRepository(pool)
		notificationRepo = repository.NewNotificationRepository(pool)
		messageRepo = repository.NewTicketMessageRepository(pool)
	} else {
		ticketRepo = memory.NewTicketRepository()
		userRepo = memory.NewUserRepository()
		ticketTypeRepo = memory.NewTicketTypeRepository()
		notificationRepo = memory.NewNotificationRepository()
		messageRepo = memory.NewTicketMessageRepository()
	}

	metrics := observability.NewMetrics("helpdesk")
	dispatcher := events.NewInMemoryDispatcher(logger)
	registry := realtime.NewRegistry(logger)
	hub := realtime.NewHub(registry, logger)
	typeCache := cache.NewTicketTypeCache(redis.Client, ticketTypeRepo, cfg.Cache.TicketTypeTTL(), logger)

	authService := service.NewAuthService(cfg.Auth, userRepo)
	lifecycleService := service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo:  ticketRepo,
		MessageRepo: messageRepo,
		Types:       typeCache,
		Dispatcher:  dispatcher,
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: notificationRepo,
		UserRepo:         userRepo,
		Hub:              hub,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})
	notificationService.RegisterHandlers()

	slaMonitor := service.NewSLAMonitor(service.SLAMonitorDependencies{
		TicketRepo: ticketRepo,
		Types:      typeCache,
		Dispatcher: dispatcher,
		Config:     cfg.SLA,
		Metrics:    metrics,
		Logger:     logger,
	})
	metricsService := service.NewMetricsService(service.MetricsDependencies{
		TicketRepo: ticketRepo,
		Hub:        hub,
		Metrics:    metrics,
		Logger:     logger,
	})

	jobs := runner.New(logger)
	jobs.Register(runner.Job{Name: "sla_scan", Every: cfg.SLA.CheckInterval(), Run: slaMonitor.RunOnce})
	jobs.Register(runner.Job{Name: "metrics_snapshot", Every: cfg.Metrics.SnapshotInterval(), Run: metricsService.RunOnce})
	jobs.Register(runner.Job{Name: "session_sweep", Every: cfg.Metrics.SnapshotInterval(), Run: func(context.Context) error {
		hub.Sweep()
		metrics.SessionsActive.Set(float64(registry.Count()))
		return nil
	}})
	jobs.Start()
	defer jobs.Stop()

	authMiddleware := auth.NewMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(lifecycleService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		Admin:          handlers.NewAdminHandler(metricsService, slaMonitor, ticketTypeRepo, typeCache),
		WS:             handlers.NewWSHandler(hub, lifecycleService, metrics, logger),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
