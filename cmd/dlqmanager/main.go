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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"example.com/activities/internal/config"
	"example.com/activities/internal/logger"
	"example.com/activities/internal/outbox"
)

const (
	defaultDLQBatchSize = 50
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.StoreDriver != config.StorePostgres {
		log.Fatal("dlq manager requires the postgres store", zap.String("driver", cfg.StoreDriver))
	}
	if err := run(cfg, log); err != nil {
		log.Fatal("dlq manager stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay, log)
	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("dlq manager metrics listening", zap.String("address", cfg.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.DLQPollInterval)
		defer ticker.Stop()

		log.Info("dlq manager started",
			zap.Duration("interval", cfg.DLQPollInterval),
			zap.Int("max_retries", cfg.DLQMaxRetries))

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				processed, err := manager.RunOnce(gctx, defaultDLQBatchSize)
				if err != nil {
					log.Error("dlq manager run failed", zap.Error(err))
				} else if processed > 0 {
					log.Info("dlq manager processed entries", zap.Int("processed", processed))
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics server shutdown failed", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}
