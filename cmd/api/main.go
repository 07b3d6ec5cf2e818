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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"example.com/activities/internal/api"
	"example.com/activities/internal/auth"
	"example.com/activities/internal/config"
	"example.com/activities/internal/domain"
	"example.com/activities/internal/geo"
	"example.com/activities/internal/geocoding"
	"example.com/activities/internal/logger"
	"example.com/activities/internal/outbox"
	"example.com/activities/internal/persistence"
	httptransport "example.com/activities/internal/transport/http"
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

	if err := run(cfg, log); err != nil {
		log.Fatal("activities api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := persistence.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(context.Background()); err != nil {
			log.Warn("closing store failed", zap.Error(err))
		}
	}()

	geocoder, closeGeocoder, err := geocoding.FromConfig(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeGeocoder() }()

	service := domain.NewService(backend.Store, geo.NewRanker(geocoder, log),
		domain.WithReferenceCity(cfg.ReferenceCity),
		domain.WithLogger(log))

	mux := http.NewServeMux()
	api.NewHandler(service, log).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress),
		httptransport.Chain(mux,
			httptransport.RequestLogger(log),
			httptransport.CORS(cfg.CORSAllowedOrigins),
			authMiddleware.Wrap,
		))

	g, gctx := errgroup.WithContext(ctx)

	if backend.Pool != nil {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher := outbox.NewDispatcher(backend.Pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize, log)
		g.Go(func() error {
			dispatcher.Start(gctx)
			dispatcher.Wait()
			return nil
		})
	} else {
		log.Info("domain events disabled for store driver", zap.String("driver", backend.Driver))
	}

	g.Go(func() error {
		log.Info("activities api listening",
			zap.String("address", cfg.HTTPAddress),
			zap.String("store", backend.Driver),
			zap.String("reference_city", service.ReferenceCity()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("graceful shutdown failed", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}
