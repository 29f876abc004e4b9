package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/charles-997/budge/internal/amqp"
	"github.com/charles-997/budge/internal/backend"
	"github.com/charles-997/budge/internal/cache"
	"github.com/charles-997/budge/internal/cli"
	"github.com/charles-997/budge/internal/config"
	"github.com/charles-997/budge/internal/core"
	apphttp "github.com/charles-997/budge/internal/http"
	"github.com/charles-997/budge/internal/ledger"
	"github.com/charles-997/budge/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg).WithComponent(log.ComponentApp)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.GracefulShutdown(context.Background(), logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	store, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err)
		}
	}()

	tbbCache := cache.NewLRUCache[core.Money](cfg.TBBCacheSize, cfg.TBBCacheTTL)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(tbbCache)
	cacheManager.StartCleanup(ctx, cfg.CacheCleanupInterval)
	defer cacheManager.Stop()

	engineCfg := ledger.Config{
		Cache:  tbbCache,
		Logger: logger.WithComponent(log.ComponentLedger),
	}

	var events *amqp.Client
	if cfg.AMQPURL != "" {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without ledger events", log.FieldError, err)
		} else {
			defer events.Close()
			engineCfg.Publisher = events
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"origin", events.Origin())
		}
	}

	engine := ledger.NewEngine(store.Store, engineCfg)

	srv, err := apphttp.NewServer(":"+cfg.Port, engine, apphttp.Options{
		Logger: logger,
		Ready:  store.Ping,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting budge server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if events != nil {
		g.Go(func() error {
			err := events.ConsumeLedgerEvents(gctx, amqp.InvalidateCache(engine))
			if err != nil && !errors.Is(err, context.Canceled) {
				// Cached totals still expire by TTL without events.
				logger.Error("Ledger event consumer stopped", log.FieldError, err)
			}
			return nil
		})
	}

	return g.Wait()
}
