package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	"RegulatoryRadar/internal/config"
	"RegulatoryRadar/internal/infrastructure/httpapi"
	"RegulatoryRadar/internal/infrastructure/llm"
	"RegulatoryRadar/internal/infrastructure/lock"
	"RegulatoryRadar/internal/infrastructure/ml"
	"RegulatoryRadar/internal/infrastructure/parser"
	"RegulatoryRadar/internal/infrastructure/scheduler"
	"RegulatoryRadar/internal/infrastructure/storage"
	"RegulatoryRadar/internal/infrastructure/storage/memory"
	"RegulatoryRadar/internal/infrastructure/telegram"
	"RegulatoryRadar/internal/logging"
	"RegulatoryRadar/internal/metrics"
	"RegulatoryRadar/internal/ports"
	"RegulatoryRadar/internal/scanner"
	"RegulatoryRadar/internal/usecase"
	"RegulatoryRadar/pkg/logger"
)

const (
	sourceHTTPTimeout = 30 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db    *sqlx.DB
	redis *goredis.Client

	metrics    *metrics.Scan
	pipeline   *usecase.Pipeline
	scheduler  *usecase.Scheduler
	profiles   *usecase.ProfileService
	compliance *usecase.ComplianceService
}

// New opens the store, builds every adapter and wires the use cases.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger, metrics: metrics.New()}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	locker, err := a.buildLocker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	oracle, err := llm.NewOracle(ctx, cfg.LLM, logging.Component(baseLogger, "oracle"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build oracle: %w", err)
	}

	embedder := ml.NewClient(ml.Options{
		Endpoint:  cfg.Embedding.Endpoint,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		BatchSize: cfg.Embedding.BatchSize,
		Timeout:   cfg.Embedding.Timeout,
	})

	httpClient := &http.Client{Timeout: sourceHTTPTimeout}
	registry := scanner.NewRegistry()
	registry.Register(parser.NewRSSScanner(httpClient, logging.Component(baseLogger, "scanner.rss")))
	registry.Register(parser.NewHTMLScanner(httpClient, logging.Component(baseLogger, "scanner.html")))
	source := parser.NewStrategySource(registry, cfg.Sources, a.metrics, logging.Component(baseLogger, "source"))

	var fullText ports.FullTextFetcher
	if cfg.Scan.FetchFullText {
		fullText = parser.NewReadabilityFetcher(httpClient, cfg.Scan.MinBodyLength, logging.Component(baseLogger, "fulltext"))
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:          source,
		FullText:        fullText,
		Store:           store,
		Embedder:        embedder,
		Oracle:          oracle,
		Locker:          locker,
		Notifier:        notifier,
		Observer:        a.metrics,
		Logger:          logging.Component(baseLogger, "pipeline"),
		TopK:            cfg.Scan.TopK,
		SimilarityFloor: cfg.Scan.SimilarityFloor,
		Workers:         cfg.Scan.Workers,
		OracleTimeout:   cfg.Scan.OracleTimeout,
	})

	var driver ports.Scheduler
	if cfg.Scheduler.Enabled {
		driver = scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location(), logger.NewCron(baseLogger, "cron"))
	}
	a.scheduler = usecase.NewScheduler(driver, a.pipeline, logging.Component(baseLogger, "scheduler"))

	a.profiles = usecase.NewProfileService(oracle, embedder, store, logging.Component(baseLogger, "profiles"))
	a.compliance = usecase.NewComplianceService(store, store, nil)

	return a, nil
}

func (a *Application) openStore(ctx context.Context) (ports.Store, error) {
	switch a.cfg.Database.Driver {
	case "memory":
		a.logger.Warn("using in-memory store, data is lost on exit")
		return memory.NewStore(), nil
	case "postgres":
		db, err := storage.Open(ctx, a.cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		a.db = db
		if err := storage.Migrate(ctx, db); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return storage.NewPostgresRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", a.cfg.Database.Driver)
	}
}

func (a *Application) buildLocker(ctx context.Context) (ports.RunLocker, error) {
	log := logging.Component(a.logger, "lock")

	switch a.cfg.Lock.Driver {
	case "local":
		return lock.NewLocal(), nil
	case "postgres":
		if a.db == nil {
			return nil, errors.New("postgres lock requires the postgres database driver")
		}
		return lock.NewPostgres(a.db.DB, a.cfg.Lock.Key, log), nil
	case "redis":
		client, err := lock.DialRedis(ctx, a.cfg.Lock.RedisAddr)
		if err != nil {
			return nil, err
		}
		a.redis = client
		return lock.NewRedis(client, a.cfg.Lock.Key, a.cfg.Lock.TTL, log), nil
	default:
		return nil, fmt.Errorf("unknown lock driver %q", a.cfg.Lock.Driver)
	}
}

// Serve runs the scheduler and the HTTP API until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Profiles:    a.profiles,
		Compliance:  a.compliance,
		Trigger:     a.scheduler,
		Metrics:     a.metrics.Handler(),
		Logger:      logging.Component(a.logger, "http"),
		BaseContext: ctx,
	})
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", "error", err)
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler shutdown", "error", err)
	}

	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}

// ScanOnce runs one synchronous scan.
func (a *Application) ScanOnce(ctx context.Context) error {
	summary, err := a.scheduler.RunNow(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("scan complete",
		"run_id", summary.RunID.String(),
		"new", summary.New,
		"updates", summary.UpdatesRecorded,
		"alerts", summary.AlertsCreated,
	)
	return nil
}

// Profiles exposes the profile use case to the CLI.
func (a *Application) Profiles() *usecase.ProfileService {
	return a.profiles
}

// Close releases database and redis connections.
func (a *Application) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", "error", err)
		}
	}
}
