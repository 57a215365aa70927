package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/english-trainer-backend/internal/data/aggregates"
	"github.com/yungbote/english-trainer-backend/internal/data/db"
	"github.com/yungbote/english-trainer-backend/internal/data/repos"
	httpapi "github.com/yungbote/english-trainer-backend/internal/http"
	httpH "github.com/yungbote/english-trainer-backend/internal/http/handlers"
	httpMW "github.com/yungbote/english-trainer-backend/internal/http/middleware"
	"github.com/yungbote/english-trainer-backend/internal/jobs"
	"github.com/yungbote/english-trainer-backend/internal/jobs/queue"
	"github.com/yungbote/english-trainer-backend/internal/jobs/scheduler"
	"github.com/yungbote/english-trainer-backend/internal/kbimport"
	"github.com/yungbote/english-trainer-backend/internal/observability"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
	"github.com/yungbote/english-trainer-backend/internal/services"
	"github.com/yungbote/english-trainer-backend/internal/trainer/intent"
	"github.com/yungbote/english-trainer-backend/internal/trainer/orchestrator"
	"github.com/yungbote/english-trainer-backend/internal/trainer/quota"
	"github.com/yungbote/english-trainer-backend/internal/trainer/retrieval"
)

type Services struct {
	Sessions     services.SessionService
	Templates    services.TemplateService
	Reports      services.ReportService
	Gate         *quota.Gate
	Orchestrator *orchestrator.Orchestrator
}

type App struct {
	Log       *logger.Logger
	Cfg       Config
	Metrics   *observability.Metrics
	DB        *gorm.DB
	Repos     repos.Set
	Providers Providers
	Queue     queue.Queue
	Enqueuer  *jobs.Enqueuer
	Services  Services

	pg           *db.PostgresService
	redis        *goredis.Client
	shutdownOtel func(context.Context) error
}

func New(ctx context.Context, cfg Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &App{Log: log, Cfg: cfg, Metrics: observability.NewMetrics()}
	a.shutdownOtel = observability.InitOTel(ctx, log, cfg.Otel())

	a.pg, err = db.NewPostgresService(cfg.Postgres(), log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	a.DB = a.pg.DB()
	if cfg.AutoMigrate {
		if err := a.pg.AutoMigrateAll(); err != nil {
			a.Close()
			return nil, fmt.Errorf("postgres automigrate: %w", err)
		}
	}
	a.Repos = repos.NewSet(a.DB, log)

	if a.Providers, err = wireProviders(log, a.Metrics, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if a.Queue, a.redis, err = wireQueue(ctx, log, cfg); err != nil {
		a.Close()
		return nil, fmt.Errorf("init job queue: %w", err)
	}
	a.Enqueuer = jobs.NewEnqueuer(a.Queue)
	a.Services = a.wireServices()
	return a, nil
}

func (a *App) wireServices() Services {
	rs := a.Repos
	gate := quota.NewGate(a.Log, rs.Profiles, rs.Usage, a.Metrics)
	turns := aggregates.NewTurnAggregate(aggregates.TurnAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:    a.DB,
			Log:   a.Log,
			Hooks: aggregates.NewMetricsHooks(a.Metrics, a.Log),
		},
		Sessions:    rs.Sessions,
		Turns:       rs.Turns,
		ErrorEvents: rs.ErrorEvents,
		Profiles:    rs.Profiles,
		Usage:       rs.Usage,
		Quota:       gate,
	})
	store := instrumentKnowledgeStore("postgres", retrieval.NewRepoStore(rs.UserCards, rs.PublicCards), a.Metrics)
	engine := retrieval.NewEngine(a.Log, store, a.Providers.Embedder, a.Metrics)

	orch := orchestrator.New(orchestrator.Deps{
		Log:               a.Log,
		Metrics:           a.Metrics,
		Quota:             gate,
		Sessions:          rs.Sessions,
		Normalizer:        intent.NewNormalizer(),
		Retriever:         engine,
		Generator:         a.Providers.Generator,
		Turns:             turns,
		GenerationTimeout: a.Cfg.GenerationTimeout(),
	})
	return Services{
		Sessions:     services.NewSessionService(a.Log, rs.Sessions, rs.Turns),
		Templates:    services.NewTemplateService(a.Log, rs.UserCards, gate, a.Enqueuer),
		Reports:      services.NewReportService(a.Log, rs.Sessions, rs.Turns, rs.ErrorEvents, rs.Reports, gate),
		Gate:         gate,
		Orchestrator: orch,
	}
}

func (a *App) Server() *httpapi.Server {
	checks := map[string]httpH.Pinger{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}
	serviceName := ""
	if a.Cfg.OtelEnabled {
		serviceName = a.Cfg.OtelServiceName
	}
	svc := a.Services
	return httpapi.NewServer(httpapi.RouterConfig{
		Log:             a.Log,
		Metrics:         a.Metrics,
		ServiceName:     serviceName,
		CORSOrigins:     a.Cfg.CORSOrigins,
		ExposeMetrics:   a.Cfg.MetricsEnabled,
		AuthMiddleware:  httpMW.NewAuthMiddleware(a.Log, a.Cfg.JWTSecretKey),
		SessionHandler:  httpH.NewSessionHandler(a.Log, svc.Sessions),
		TurnHandler:     httpH.NewTurnHandler(a.Log, svc.Orchestrator),
		TemplateHandler: httpH.NewTemplateHandler(a.Log, svc.Templates, svc.Sessions),
		UsageHandler:    httpH.NewUsageHandler(a.Log, svc.Gate),
		ReportHandler:   httpH.NewReportHandler(a.Log, svc.Reports),
		HealthHandler:   httpH.NewHealthHandler(checks),
	})
}

// Serve runs the HTTP API. Without Redis the queue is process-local, so the
// worker pool and scheduler run alongside the server.
func (a *App) Serve(ctx context.Context) error {
	if a.redis != nil {
		return a.Server().Run(ctx, a.Cfg.HTTPAddr)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Server().Run(gctx, a.Cfg.HTTPAddr) })
	g.Go(func() error { return a.RunWorker(gctx) })
	return g.Wait()
}

// RunWorker drains the job queue and runs the cron schedule until ctx ends.
func (a *App) RunWorker(ctx context.Context) error {
	registry := jobs.NewRegistry()
	for _, h := range []jobs.Handler{
		jobs.NewEmbedUserCardHandler(a.Log, a.Repos.UserCards, a.Providers.Embedder),
		jobs.NewEmbedPublicCardHandler(a.Log, a.Repos.PublicCards, a.Providers.Embedder),
	} {
		if err := registry.Register(h); err != nil {
			return err
		}
	}

	sched := scheduler.New(a.Log, a.Metrics)
	if err := sched.Add("embed_backfill", a.Cfg.EmbedBackfillCron, func(ctx context.Context) error {
		_, err := a.Backfill(ctx, a.Cfg.EmbedBackfillSize)
		return err
	}); err != nil {
		return err
	}
	if err := sched.Add("weekly_reports", a.Cfg.ReportCron, func(ctx context.Context) error {
		_, err := a.Services.Reports.GenerateAll(ctx, services.LastWeekStart(time.Now()))
		return err
	}); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	pool := jobs.NewPool(a.Log, a.Queue, registry, a.Metrics, a.Cfg.WorkerConcurrency)
	return pool.Run(ctx)
}

func (a *App) Backfill(ctx context.Context, limit int) (jobs.BackfillResult, error) {
	return jobs.Backfill(ctx, a.Log, a.Enqueuer, a.Repos.UserCards, a.Repos.PublicCards, limit)
}

// ImportCards upserts curated cards. inline embeds them now instead of
// queueing.
func (a *App) ImportCards(ctx context.Context, specs []kbimport.CardSpec, inline bool) (kbimport.Result, error) {
	opts := kbimport.Options{Queue: a.Enqueuer, Concurrency: a.Cfg.WorkerConcurrency * 2}
	if inline {
		opts.Embedder = a.Providers.Embedder
	}
	return kbimport.New(a.Log, a.Repos.PublicCards, opts).Import(ctx, specs)
}

func (a *App) Migrate() error {
	return a.pg.AutoMigrateAll()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.shutdownOtel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.shutdownOtel(ctx)
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
