package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/staydex/internal/config"
	dbRedis "github.com/kailas-cloud/staydex/internal/db/redis"
	"github.com/kailas-cloud/staydex/internal/db/sqldb"
	"github.com/kailas-cloud/staydex/internal/extractor"
	logpkg "github.com/kailas-cloud/staydex/internal/logger"
	"github.com/kailas-cloud/staydex/internal/metrics"
	"github.com/kailas-cloud/staydex/internal/repository/entry"
	"github.com/kailas-cloud/staydex/internal/repository/memcache"
	"github.com/kailas-cloud/staydex/internal/repository/ratecounter"
	"github.com/kailas-cloud/staydex/internal/repository/sqlcache"
	"github.com/kailas-cloud/staydex/internal/repository/vectors"
	"github.com/kailas-cloud/staydex/internal/transport/browser"
	chiTransport "github.com/kailas-cloud/staydex/internal/transport/chi"
	"github.com/kailas-cloud/staydex/internal/transport/openai"
	cacheuc "github.com/kailas-cloud/staydex/internal/usecase/cache"
	generativeuc "github.com/kailas-cloud/staydex/internal/usecase/generative"
	healthuc "github.com/kailas-cloud/staydex/internal/usecase/health"
	pipelineuc "github.com/kailas-cloud/staydex/internal/usecase/pipeline"
	"github.com/kailas-cloud/staydex/internal/usecase/ratelimit"
	scrapeuc "github.com/kailas-cloud/staydex/internal/usecase/scrape"
	"github.com/kailas-cloud/staydex/internal/version"
)

// sweepGrace keeps Redis keys alive past their logical TTL so the sweeper, not
// key expiry, removes partition index members.
const sweepGrace = 10 * time.Minute

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting staydex API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("sources", cfg.Scrape.Sources),
	)

	ctx := context.Background()

	st, err := openStorage(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}
	defer st.close()
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterCacheMetrics()
	metrics.RegisterScrapeMetrics()
	metrics.RegisterGenerativeMetrics()
	metrics.RegisterHTTPMetrics()

	// Cache tiers
	cacheSvc := cacheuc.New(
		memcache.New(cfg.Cache.MemoryCapacity, cfg.Cache.MemoryTTL()),
		st.entries, st.vectors,
		cacheuc.Config{
			PersistentTTL:       cfg.Cache.PersistentTTL(),
			VectorTTL:           cfg.Cache.VectorTTL(),
			SimilarityThreshold: cfg.Cache.SimilarityThreshold,
		},
		logger,
	)

	// Rate limiter, restored from persisted windows
	limiter := ratelimit.New(
		cfg.RateLimit.Window(), cfg.RateLimit.MaxRequests, cfg.RateLimit.MaxEntries, logger,
		ratelimit.WithStore(st.counters),
	)
	if err := limiter.Restore(ctx); err != nil {
		logger.Warn("Rate limit windows not restored", zap.Error(err))
	}
	flushCtx, stopFlush := context.WithCancel(ctx)
	flushDone := make(chan struct{})
	go func() {
		defer close(flushDone)
		limiter.Run(flushCtx)
	}()
	clients, err := ratelimit.NewClientIPResolver(cfg.HTTP.TrustedProxies)
	if err != nil {
		logger.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	// Browser pool behind a launch circuit breaker
	launcher := browser.NewChromeLauncher(browser.ChromeConfig{
		ExecPath:  cfg.Browser.ExecPath,
		Headless:  *cfg.Browser.Headless,
		UserAgent: cfg.Browser.UserAgent,
	}, browser.NewRequestFilter(cfg.Scrape.BlockedDomains), logger)
	pool := browser.NewPool(launcher, browser.PoolConfig{
		MaxUses:          cfg.Browser.MaxUses,
		MaxAge:           cfg.Browser.MaxAge(),
		FailureThreshold: uint32(cfg.Browser.FailureThreshold), //nolint:gosec // validated positive
		Cooldown:         cfg.Browser.Cooldown(),
		LaunchTimeout:    cfg.Browser.LaunchTimeout(),
	}, logger)

	scrapeSvc := scrapeuc.New(poolSessions{pool: pool}, extractor.Default(), scrapeuc.Config{
		NavigationTimeout: cfg.Scrape.NavigationTimeout(),
		ExtractionTimeout: cfg.Scrape.ExtractionTimeout(),
	}, logger)

	// Generative fallback
	chat := openai.NewChat(&openai.Config{
		APIKey:    cfg.Generative.APIKey,
		BaseURL:   cfg.Generative.BaseURL,
		Model:     cfg.Generative.Model,
		MaxTokens: cfg.Generative.MaxTokens,
		Logger:    logger,
	})
	generativeSvc := generativeuc.New(chat, generativeuc.Config{
		Timeout:        cfg.Generative.Timeout(),
		MaxRetries:     *cfg.Generative.MaxRetries,
		BackoffBase:    cfg.Generative.BackoffBase(),
		WebSearch:      cfg.Generative.WebSearch,
		AllowedDomains: cfg.Generative.AllowedDomains,
	}, logger)

	pipelineSvc := pipelineuc.New(limiter, cacheSvc, scrapeSvc, generativeSvc, pipelineuc.Config{
		Sources:   cfg.Scrape.Sources,
		Deadline:  cfg.Pipeline.Deadline(),
		Heartbeat: cfg.Pipeline.Heartbeat(),
	}, logger)

	healthSvc := healthuc.New(st.pinger, pool)

	// Background sweep of expired rows
	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweeper := cacheuc.NewPeriodicSweeper(cfg.Cache.SweepInterval(), logger,
		cacheuc.SweepTarget{Name: "entries", Store: st.entries},
		cacheuc.SweepTarget{Name: "vectors", Store: st.vectors},
		cacheuc.SweepTarget{Name: "rate_limits", Store: st.counters},
	)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(sweepCtx)
	}()

	server := chiTransport.NewServer(pipelineSvc, healthSvc, clients, logger)

	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.WideEvent(logger))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error closing browser pool", zap.Error(err))
	}
	stopFlush()
	<-flushDone
	stopSweep()
	<-sweepDone

	logger.Info("Server stopped gracefully")
}

// storage bundles the persistent tiers of one backend.
type storage struct {
	pinger   healthuc.StorePinger
	entries  cacheuc.EntryStore
	vectors  cacheuc.VectorStore
	counters interface {
		ratelimit.CounterStore
		cacheuc.Sweeper
	}
	close func()
}

// openStorage connects the configured backend and waits until it answers.
func openStorage(ctx context.Context, cfg config.DatabaseConfig) (*storage, error) {
	readiness := time.Duration(cfg.ReadinessTimeout) * time.Second

	if cfg.IsRedis() {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("creating %s store: %w", cfg.Driver, err)
		}
		if err := store.WaitForReady(ctx, readiness); err != nil {
			store.Close()
			return nil, fmt.Errorf("database not ready: %w", err)
		}
		return &storage{
			pinger:   store,
			entries:  entry.New(store, cfg.KeyPrefix, sweepGrace),
			vectors:  vectors.New(store, cfg.KeyPrefix, sweepGrace),
			counters: ratecounter.New(store, cfg.KeyPrefix),
			close:    store.Close,
		}, nil
	}

	dialect := sqldb.SQLite
	if cfg.Driver == "postgres" {
		dialect = sqldb.Postgres
	}
	sqlDB, err := sqldb.Open(ctx, sqldb.Config{Dialect: dialect, DSN: cfg.DSN})
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.Driver, err)
	}
	if err := sqlDB.WaitForReady(ctx, readiness); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	return &storage{
		pinger:   sqlDB,
		entries:  sqlcache.NewEntryRepo(sqlDB),
		vectors:  sqlcache.NewVectorRepo(sqlDB),
		counters: sqlcache.NewCounterRepo(sqlDB),
		close:    sqlDB.Close,
	}, nil
}

// poolSessions adapts the browser pool to the scrape orchestrator.
type poolSessions struct {
	pool *browser.Pool
}

func (p poolSessions) Acquire(ctx context.Context) (scrapeuc.Session, error) {
	lease, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err //nolint:wrapcheck // pool errors already carry domain sentinels
	}
	return lease, nil
}
