// Package bootstrap wires configuration, storage and services into a running
// application. The API server and the CLI share it.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/vicmordi/AIHelpdesk/internal/api/http"
	"github.com/vicmordi/AIHelpdesk/internal/api/http/handlers"
	"github.com/vicmordi/AIHelpdesk/internal/auth"
	"github.com/vicmordi/AIHelpdesk/internal/clustering"
	"github.com/vicmordi/AIHelpdesk/internal/config"
	"github.com/vicmordi/AIHelpdesk/internal/embedding"
	"github.com/vicmordi/AIHelpdesk/internal/events"
	"github.com/vicmordi/AIHelpdesk/internal/llm"
	"github.com/vicmordi/AIHelpdesk/internal/lock"
	"github.com/vicmordi/AIHelpdesk/internal/matching"
	"github.com/vicmordi/AIHelpdesk/internal/observability"
	"github.com/vicmordi/AIHelpdesk/internal/persistence"
	"github.com/vicmordi/AIHelpdesk/internal/repository"
	"github.com/vicmordi/AIHelpdesk/internal/repository/memory"
	"github.com/vicmordi/AIHelpdesk/internal/resolution"
	"github.com/vicmordi/AIHelpdesk/internal/service"
	"github.com/vicmordi/AIHelpdesk/internal/worker"
)

// Repositories is the storage the services run on.
type Repositories struct {
	Tickets     repository.TicketRepository
	Messages    repository.TicketMessageRepository
	History     repository.TicketHistoryRepository
	Knowledge   repository.KnowledgeRepository
	Suggestions repository.SuggestionRepository
	Members     repository.MemberRepository
	Analysis    repository.AnalysisStateRepository
	Settings    repository.OrgSettingsRepository
}

// Container holds the wired application.
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Postgres *persistence.Postgres
	Redis    *persistence.Redis
	Repos    Repositories
	Tokens   *auth.TokenManager

	Tickets       *service.TicketService
	Assignments   *service.AssignmentService
	Knowledge     *service.KnowledgeService
	Improvement   *service.ImprovementService
	Review        *service.ReviewService
	Analytics     *service.AnalyticsService
	Notifications *service.NotificationService
	Scheduler     *worker.AnalysisScheduler
}

// New connects storage and builds every service. Without a Postgres DSN the
// repositories live in memory; LOCK_BACKEND=local skips redis entirely.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Container{
		Config: cfg,
		Logger: logger,
		Tokens: auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
	}
	if cfg.App.MetricsEnabled {
		c.Metrics = observability.NewMetrics(nil)
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	c.Postgres = pg
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if _, err := persistence.RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				pg.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		c.Repos = Repositories{
			Tickets:     repository.NewTicketRepository(pg.Pool),
			Messages:    repository.NewTicketMessageRepository(pg.Pool),
			History:     repository.NewTicketHistoryRepository(pg.Pool),
			Knowledge:   repository.NewKnowledgeRepository(pg.Pool),
			Suggestions: repository.NewSuggestionRepository(pg.Pool),
			Members:     repository.NewMemberRepository(pg.Pool),
			Analysis:    repository.NewAnalysisStateRepository(pg.Pool),
			Settings:    repository.NewOrgSettingsRepository(pg.Pool),
		}
	} else {
		r := memory.NewStore().Repositories()
		c.Repos = Repositories(r)
	}

	var (
		locker  lock.Locker
		counter service.ResolvedCounter
	)
	switch cfg.Lock.Backend {
	case "redis":
		c.Redis = persistence.NewRedis(cfg.Redis, logger)
		locker = lock.NewRedisLocker(c.Redis.Client)
		counter = c.Redis
	default:
		locker = lock.NewLocalLocker()
		counter = memory.NewCounter()
	}

	embedder, err := embedding.New(cfg.LLM, cfg.Embedding)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("build embedder: %w", err)
	}
	generator, err := llm.New(cfg.LLM)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("build generator: %w", err)
	}
	matcher := matching.NewMatcher(matching.NewIndex(embedder, logger))
	engine := resolution.NewEngine(resolution.Dependencies{
		Matcher:   matcher,
		Generator: generator,
		Config:    cfg.Engine,
		Logger:    logger,
		Metrics:   c.Metrics,
	})
	dispatcher := events.NewInMemoryDispatcher(logger)

	c.Tickets = service.NewTicketService(service.TicketDependencies{
		TicketRepo:    c.Repos.Tickets,
		MessageRepo:   c.Repos.Messages,
		HistoryRepo:   c.Repos.History,
		KnowledgeRepo: c.Repos.Knowledge,
		SettingsRepo:  c.Repos.Settings,
		Engine:        engine,
		Locker:        locker,
		LockTTL:       cfg.Lock.TicketTTL,
		Dispatcher:    dispatcher,
		Logger:        logger,
	})
	c.Assignments = service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:  c.Repos.Tickets,
		MemberRepo:  c.Repos.Members,
		HistoryRepo: c.Repos.History,
		Locker:      locker,
		LockTTL:     cfg.Lock.TicketTTL,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	c.Knowledge = service.NewKnowledgeService(c.Repos.Knowledge, logger)
	c.Improvement = service.NewImprovementService(service.ImprovementDependencies{
		TicketRepo:      c.Repos.Tickets,
		MessageRepo:     c.Repos.Messages,
		KnowledgeRepo:   c.Repos.Knowledge,
		SuggestionRepo:  c.Repos.Suggestions,
		StateRepo:       c.Repos.Analysis,
		SettingsRepo:    c.Repos.Settings,
		Clusterer:       clustering.NewClusterer(embedder, logger),
		Coverage:        matcher,
		Generator:       generator,
		Locker:          locker,
		Counter:         counter,
		Dispatcher:      dispatcher,
		Metrics:         c.Metrics,
		Logger:          logger,
		Config:          cfg.Analysis,
		LockTTL:         cfg.Lock.AnalysisTTL,
		UpstreamTimeout: cfg.Engine.UpstreamTimeout,
	})
	c.Review = service.NewReviewService(service.ReviewDependencies{
		SuggestionRepo: c.Repos.Suggestions,
		Dispatcher:     dispatcher,
		Metrics:        c.Metrics,
		Logger:         logger,
	})
	c.Analytics = service.NewAnalyticsService(c.Repos.Tickets, c.Repos.Suggestions, c.Repos.Analysis)

	scheduler, err := worker.NewAnalysisScheduler(c.Improvement, c.Repos.Members,
		worker.WithCheckInterval(schedulerCheckInterval(cfg.Analysis)),
		worker.WithLogger(logger))
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Scheduler = scheduler

	notifications := service.NotificationDependencies{
		MessageRepo: c.Repos.Messages,
		Counter:     counter,
		Logger:      logger,
	}
	if cfg.Analysis.SchedulerEnabled {
		notifications.ResolvedThreshold = cfg.Analysis.ResolvedThreshold
		notifications.OnAnalysisDue = scheduler.Trigger
	}
	c.Notifications = service.NewNotificationService(notifications)
	worker.NewNotificationWorker(dispatcher, c.Notifications, service.NotificationEventTypes, logger).Start()
	return c, nil
}

// schedulerCheckInterval polls a few times per analysis interval so a run
// starts soon after it becomes due.
func schedulerCheckInterval(cfg config.AnalysisConfig) time.Duration {
	d := cfg.Interval() / 4
	if d < time.Minute {
		d = time.Minute
	}
	if d > 15*time.Minute {
		d = 15 * time.Minute
	}
	return d
}

// HTTPApp builds the fiber application with middleware and routes.
func (c *Container) HTTPApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               c.Config.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, c.Logger, c.Metrics, c.Config.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(c.Config.App.Name, c.Config.App.Version, c.Postgres, c.Redis),
		Tickets:        handlers.NewTicketsHandler(c.Tickets),
		StaffTickets:   handlers.NewStaffTicketsHandler(c.Tickets, c.Assignments),
		Knowledge:      handlers.NewKnowledgeHandler(c.Knowledge),
		Suggestions:    handlers.NewSuggestionsHandler(c.Review, c.Improvement, c.Analytics),
		Notifications:  handlers.NewNotificationsHandler(c.Notifications),
		AuthMiddleware: auth.NewAuthMiddleware(c.Tokens, c.Repos.Members, c.Logger),
		Metrics:        c.Metrics,
	})
	return app
}

// Close stops the scheduler and releases connections.
func (c *Container) Close() {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	c.Redis.Close()
	c.Postgres.Close()
}
