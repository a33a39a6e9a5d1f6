// Package app wires the application together and owns process startup.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/kaylam/govsignals/internal/cache"
	"github.com/kaylam/govsignals/internal/config"
	"github.com/kaylam/govsignals/internal/database"
	"github.com/kaylam/govsignals/internal/enrich"
	"github.com/kaylam/govsignals/internal/fetch"
	"github.com/kaylam/govsignals/internal/handler"
	"github.com/kaylam/govsignals/internal/logger"
	"github.com/kaylam/govsignals/internal/metrics"
	"github.com/kaylam/govsignals/internal/middleware"
	"github.com/kaylam/govsignals/internal/pipeline"
	"github.com/kaylam/govsignals/internal/registry"
	"github.com/kaylam/govsignals/internal/repository"
	"github.com/kaylam/govsignals/internal/security"
	"github.com/kaylam/govsignals/internal/store"
)

// Init loads the configuration and sets up JSON structured logging.
// When w is non-nil it becomes the log destination.
func Init(w io.Writer) (*config.Config, error) {
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run is the main entry point. It parses the subcommand from the
// arguments and starts the corresponding mode. Pass os.Args[1:].
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck skips full initialization; it runs inside the
	// container image where most env vars are absent.
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// pipelineDeps holds everything both run modes need: the repositories,
// the two orchestrated runners and the public view cache.
type pipelineDeps struct {
	sources   repository.SourceRepository
	signals   repository.SignalRepository
	viewCache *cache.ViewCache
	aggregate *pipeline.Aggregator
	enrich    *pipeline.EnrichRunner
	collector *metrics.Collector
	registry  *prometheus.Registry
}

// buildPipeline wires the full aggregation and enrichment pipeline on
// top of an open database and Redis connection.
func buildPipeline(cfg *config.Config, db *sql.DB, redisClient *redis.Client) *pipelineDeps {
	log := slog.Default()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	sourceRepo := repository.NewPostgresSourceRepo(db)
	signalRepo := repository.NewPostgresSignalRepo(db)

	guard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	fetcher := fetch.NewFetcher(guard, sanitizer, log, cfg.FetchTimeout, cfg.FetchMaxSize)
	upserter := store.NewSignalUpsertService(signalRepo, log)
	viewCache := cache.NewViewCache(redisClient, cfg.ViewCacheTTL, log)

	aggregator := pipeline.NewAggregator(
		sourceRepo,
		fetcher,
		upserter,
		cache.NewRunLease(redisClient, "aggregate"),
		viewCache,
		collector,
		log,
		cfg.FetchMaxConcurrent,
	)

	enrichClient := enrich.NewClient(
		&http.Client{Timeout: cfg.EnrichTimeout},
		cfg.EnrichAPIURL, cfg.EnrichAPIKey, log,
	)
	var imageClient enrich.ImageLooker
	if cfg.ImageAPIURL != "" {
		imageClient = enrich.NewImageClient(
			&http.Client{Timeout: cfg.EnrichTimeout},
			cfg.ImageAPIURL, cfg.ImageAPIKey, log,
		)
	}
	enrichWorker := enrich.NewWorker(signalRepo, enrichClient, imageClient, log, enrich.WorkerConfig{
		BatchSize:    cfg.EnrichBatchSize,
		ItemInterval: cfg.EnrichItemInterval,
	})

	enrichRunner := pipeline.NewEnrichRunner(
		enrichWorker,
		cache.NewRunLease(redisClient, "enrich"),
		collector,
		log,
	)

	return &pipelineDeps{
		sources:   sourceRepo,
		signals:   signalRepo,
		viewCache: viewCache,
		aggregate: aggregator,
		enrich:    enrichRunner,
		collector: collector,
		registry:  reg,
	}
}

// runServe starts the API server: the public signal endpoints, the
// operator endpoints and the scheduler trigger endpoints. Shuts down
// gracefully on SIGINT or SIGTERM.
func runServe(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	slog.Info("database and redis connections established")

	deps := buildPipeline(cfg, db, redisClient)

	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Signals:        deps.signals,
		ViewCache:      deps.viewCache,
		Sources:        deps.sources,
		Aggregate:      deps.aggregate,
		Enrich:         deps.enrich,
		DB:             db,
		SchedulerToken: cfg.SchedulerToken,
		RateLimiter:    rateLimiter,
		MetricsHandler: metrics.Handler(deps.registry),
		Logger:         slog.Default(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // trigger endpoints run a full pass inline
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker starts the self-scheduled mode: it syncs the feed catalog
// into the database, then runs aggregation and enrichment on their cron
// cadences until SIGINT or SIGTERM.
func runWorker(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	slog.Info("database and redis connections established (worker)")

	deps := buildPipeline(cfg, db, redisClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the catalog file is the source of truth for which feeds exist
	catalog, err := registry.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load feed catalog: %w", err)
	}
	syncResult, err := registry.Sync(ctx, deps.sources, catalog, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to sync feed catalog: %w", err)
	}
	slog.Info("feed catalog synced",
		slog.Int("created", syncResult.Created),
		slog.Int("updated", syncResult.Updated),
		slog.Int("deactivated", syncResult.Deactivated),
	)

	scheduler := cron.New()

	runAggregate := func() {
		if _, err := deps.aggregate.Run(ctx); err != nil {
			slog.Error("scheduled aggregation run failed", slog.String("error", err.Error()))
		}
	}
	runEnrich := func() {
		if _, err := deps.enrich.Run(ctx); err != nil {
			slog.Error("scheduled enrichment run failed", slog.String("error", err.Error()))
		}
	}

	if _, err := scheduler.AddFunc(cfg.AggregateSchedule, runAggregate); err != nil {
		return fmt.Errorf("invalid aggregate schedule %q: %w", cfg.AggregateSchedule, err)
	}
	if _, err := scheduler.AddFunc(cfg.EnrichSchedule, runEnrich); err != nil {
		return fmt.Errorf("invalid enrich schedule %q: %w", cfg.EnrichSchedule, err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("worker starting",
		slog.String("aggregate_schedule", cfg.AggregateSchedule),
		slog.String("enrich_schedule", cfg.EnrichSchedule),
	)

	// one aggregation pass right away so a fresh deployment has data
	// before the first cron tick
	go runAggregate()

	scheduler.Start()

	<-stop
	slog.Info("shutting down worker...")
	cancel()

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		slog.Warn("worker shutdown timed out waiting for running jobs")
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate applies all pending database migrations in order.
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck probes the local /health endpoint. Used as the Docker
// healthcheck subcommand in distroless images.
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL hides the credential part of the connection string.
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
