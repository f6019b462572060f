package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"metricsync/internal/adapter"
	"metricsync/internal/api"
	"metricsync/internal/cache"
	"metricsync/internal/config"
	"metricsync/internal/credentials"
	"metricsync/internal/export"
	"metricsync/internal/logging"
	"metricsync/internal/metrics"
	"metricsync/internal/models"
	"metricsync/internal/queue"
	"metricsync/internal/scheduler"
	"metricsync/internal/sheets"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coord := initCoordinator(ctx, cfg, logger)

	store, err := sheets.NewGoogleStore(ctx, cfg.Google.CredentialsFile)
	if err != nil {
		return err
	}
	engine := sheets.NewEngine(store, logger)

	adapters := buildAdapters(cfg, coord, engine, logger)
	if len(adapters) == 0 {
		logger.Warn().Msg("no sources enabled")
	}

	var journal *queue.Journal
	if cfg.Queue.JournalPath != "" {
		journal, err = queue.OpenJournal(cfg.Queue.JournalPath)
		if err != nil {
			return err
		}
		defer journal.Close()
	}

	q := queue.New(adapters, cfg.Queue.Workers, cfg.Queue.Buffer, journal, logger)
	q.Start(ctx)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(cfg.Scheduler, q, logger)
		if err != nil {
			return err
		}
		go sched.Start(ctx)
	}

	if cfg.API.Enabled {
		headers := make(map[models.Source][]string, len(adapters))
		for _, a := range adapters {
			headers[a.Source()] = a.ColumnHeaders()
		}
		exporter := export.New(cfg.Exports.Path, logger)
		apiServer := api.NewHTTPServer(cfg.API, q, sched, exporter, headers, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = apiServer.Shutdown(shutdownCtx)
		}()
	}

	logger.Info().Msg("metricsync started")
	<-ctx.Done()
	logger.Info().Msg("shutting down")
	q.Wait()
	return nil
}

// initCoordinator connects Redis and wraps it with a memory failover;
// without Redis configured, the process runs on memory alone.
func initCoordinator(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) cache.Coordinator {
	memory := cache.NewMemoryCoordinator()
	if cfg.Redis.Address == "" {
		logger.Warn().Msg("redis not configured, using in-process coordinator")
		return memory
	}

	client := cache.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cache.Ping(pingCtx, client); err != nil {
		logger.Error().Err(err).Msg("redis unreachable at startup, failover will keep probing")
	}
	return cache.NewFailoverCoordinator(cache.NewRedisCoordinator(client), memory, logger)
}

func buildAdapters(cfg *config.Config, coord cache.Coordinator, engine *sheets.Engine, logger *zerolog.Logger) []adapter.Adapter {
	deps := adapter.Deps{
		Cache:         cfg.Cache,
		SpreadsheetID: cfg.Google.SpreadsheetID,
		Coordinator:   coord,
		Engine:        engine,
		Decryptor:     credentials.EnvDecryptor{},
		Logger:        logger,
	}

	var adapters []adapter.Adapter
	if cfg.Sources.Ads.Enabled {
		adapters = append(adapters, adapter.NewAdsAdapter(cfg.Sources.Ads, deps))
	}
	if cfg.Sources.Analytics.Enabled {
		adapters = append(adapters, adapter.NewAnalyticsAdapter(cfg.Sources.Analytics, deps))
	}
	if cfg.Sources.Commerce.Enabled {
		adapters = append(adapters, adapter.NewCommerceAdapter(cfg.Sources.Commerce, deps))
	}
	return adapters
}
