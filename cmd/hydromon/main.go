package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/couchcryptid/hydro-monitor-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/hydro-monitor-service/internal/adapter/kafka"
	"github.com/couchcryptid/hydro-monitor-service/internal/adapter/sheets"
	"github.com/couchcryptid/hydro-monitor-service/internal/adapter/sqlite"
	"github.com/couchcryptid/hydro-monitor-service/internal/cache"
	"github.com/couchcryptid/hydro-monitor-service/internal/config"
	"github.com/couchcryptid/hydro-monitor-service/internal/domain"
	"github.com/couchcryptid/hydro-monitor-service/internal/observability"
	"github.com/couchcryptid/hydro-monitor-service/internal/pipeline"
	"github.com/couchcryptid/hydro-monitor-service/internal/scheduler"
	"github.com/jonboulle/clockwork"
)

const (
	redisKeyPrefix = "hydromon:"
	syncTimeout    = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Fetch cache (CACHE_BACKEND=memory|redis).
	var store cache.Store
	switch cfg.CacheBackend {
	case "redis":
		rc, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   redisKeyPrefix,
		})
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer rc.Close() //nolint:errcheck // shutting down
		store = rc
		logger.Info("redis fetch cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	default:
		store = cache.NewMemory(cfg.CacheMaxEntries, clockwork.NewRealClock())
		logger.Info("in-memory fetch cache enabled", "max_entries", cfg.CacheMaxEntries, "ttl", cfg.CacheTTL)
	}

	format := domain.Format(cfg.SheetsFormat)
	client := sheets.NewClient(cfg.SheetsBaseURL, format, cfg.FetchTimeout, cfg.FetchRetries, metrics, logger)
	fetcher := sheets.NewCachedClient(client, store, cfg.CacheTTL, metrics, logger)
	transformer := pipeline.NewTransformer(format, cfg.Timezone, logger)

	// Sinks for the background sync.
	var publishers []pipeline.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		publishers = append(publishers, writer)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	if cfg.ArchivePath != "" {
		archive, err := sqlite.Open(ctx, cfg.ArchivePath, logger)
		if err != nil {
			logger.Error("failed to open archive", "path", cfg.ArchivePath, "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := archive.Close(); err != nil {
				logger.Error("archive close error", "error", err)
			}
		}()
		publishers = append(publishers, archive)
	}

	sources := make([]domain.Source, len(cfg.Stations))
	stations := make([]httpadapter.Station, len(cfg.Stations))
	for i, s := range cfg.Stations {
		sources[i] = domain.Source{Station: s.ID, SheetID: s.SheetID, GID: s.GID}
		stations[i] = httpadapter.Station{ID: s.ID, Name: s.Name}
	}

	p := pipeline.New(fetcher, transformer, sources, publishers, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, stations, cfg.Timezone, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start the refresh scheduler (REFRESH_SCHEDULE=off disables it).
	var sched *scheduler.Scheduler
	if cfg.RefreshSchedule != "" {
		sched, err = scheduler.New(cfg.RefreshSchedule, cfg.Timezone, syncTimeout, p.Sync, logger, metrics)
		if err != nil {
			logger.Error("failed to create scheduler", "error", err)
			os.Exit(1)
		}
		sched.Start(ctx)

		// Warm the cache and sinks once instead of waiting for the first tick.
		go func() {
			if err := sched.RunOnce(ctx); err != nil {
				logger.Warn("initial sync failed", "error", err)
			}
		}()
	} else {
		logger.Info("refresh scheduler disabled")
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if sched != nil {
		sched.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
