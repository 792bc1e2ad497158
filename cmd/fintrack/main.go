package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/dashboard"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/middleware/auth"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/seed"
	"fintrack/internal/services"
	"fintrack/internal/store"
)

const (
	cacheCleanupInterval = time.Minute
	idleUserTimeout      = 30 * time.Minute
	shutdownTimeout      = 30 * time.Second
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, logger *log.Logger, cfg *config.Config) error {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	factory := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger)

	data, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer cli.Cleanup(logger, "data backend", data.Cleanup)

	blobs, err := factory.CreateReceipts(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer cli.Cleanup(logger, "receipts", blobs.Cleanup)

	adapter := store.NewAdapter(data.Repository, logger.WithComponent(log.ComponentStore).Logger)

	// Change events are optional; without a broker the mirror is not fed.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return err
		}
		defer cli.Cleanup(logger, "amqp", client.Close)
		publisher = client
		logger.Info("Publishing change events", "exchange", cfg.AMQPExchange)
	}

	boardOpts := []dashboard.Option{
		dashboard.WithLogger(logger.WithComponent(log.ComponentDashboard).Logger),
		dashboard.WithViewCache(cfg.ViewCacheSize, cfg.ViewCacheTTL),
	}
	if cfg.SeedDemoData {
		boardOpts = append(boardOpts, dashboard.WithSeeder(seed.New(adapter)))
		logger.Info("Demo data seeding enabled")
	}
	board := dashboard.New(adapter, boardOpts...)
	board.StartCleanup(cacheCleanupInterval)
	defer board.Close()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Service:         services.NewTransactionService(adapter, blobs.Store, publisher),
		Board:           board,
		Auth:            auth.New(cfg.JWTSecret),
		Logger:          logger,
		Ready:           data.Repository.Ping,
		MaxReceiptBytes: cfg.ReceiptMaxBytes,
		RateLimit:       ratelimit.DefaultConfig(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting fintrack server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"receipts", cfg.ReceiptsBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(idleUserTimeout / 2)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := board.EvictIdle(idleUserTimeout); n > 0 {
					logger.Debug("Evicted idle dashboards", "count", n)
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
