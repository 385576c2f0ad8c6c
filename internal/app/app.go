// Package app wires configuration, storage and transport into runnable components.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"dental-clinic-server/internal/config"
	"dental-clinic-server/internal/events"
	applog "dental-clinic-server/internal/logger"
	"dental-clinic-server/internal/metrics"
	"dental-clinic-server/internal/models"
	"dental-clinic-server/internal/repository"
	"dental-clinic-server/internal/repository/memory"
	"dental-clinic-server/internal/routes"
)

// OpenStore returns the configured store and a function releasing its resources.
func OpenStore(cfg *config.Config, log zerolog.Logger) (repository.Store, func() error, error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return memory.NewStore(), func() error { return nil }, nil
	}

	db, err := models.InitDB(models.DatabaseConfig{
		Driver:      cfg.Database.Driver,
		DSN:         cfg.Database.DSN,
		AutoMigrate: cfg.Database.AutoMigrate,
		Debug:       cfg.Environment == "development",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", cfg.Database.Driver, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("driver", cfg.Database.Driver).Bool("auto_migrate", cfg.Database.AutoMigrate).Msg("database connected")
	return repository.NewGormStore(db), sqlDB.Close, nil
}

// NewMetrics registers the application collectors plus the Go runtime ones.
func NewMetrics() *metrics.Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return metrics.New(reg)
}

// NewRouter builds the gin engine with CORS, logging and metrics middleware.
func NewRouter(cfg *config.Config, store repository.Store, log zerolog.Logger, m *metrics.Metrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))
	router.Use(applog.GinMiddleware(log), m.Middleware())

	routes.SetupRoutes(router, routes.Dependencies{Store: store, Config: cfg, Log: log, Metrics: m})
	return router
}

// NewPublisher returns a Kafka producer, or a log publisher when no brokers are configured.
func NewPublisher(cfg config.KafkaConfig, log zerolog.Logger) (events.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		log.Warn().Msg("KAFKA_BROKERS not set, outbox events are only logged")
		return events.NewLogPublisher(log), nil
	}
	return events.NewProducer(cfg, log)
}

// Serve runs the HTTP server and, when withRelay is set, the outbox relay,
// until ctx is cancelled. In-flight requests get cfg.ShutdownTimeout to finish.
func Serve(ctx context.Context, cfg *config.Config, store repository.Store, log zerolog.Logger, m *metrics.Metrics, withRelay bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(cfg, store, log, m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 2)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Environment).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", err)
			return
		}
		errs <- nil
	}()

	relayDone := make(chan struct{})
	if withRelay {
		go func() {
			defer close(relayDone)
			if err := RunRelay(ctx, cfg, store, log, m); err != nil && !errors.Is(err, context.Canceled) {
				errs <- fmt.Errorf("outbox relay: %w", err)
			}
		}()
	} else {
		close(relayDone)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errs:
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer stop()
	log.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	<-relayDone
	return runErr
}

// RunRelay publishes outbox events until ctx is cancelled.
func RunRelay(ctx context.Context, cfg *config.Config, store repository.Store, log zerolog.Logger, m *metrics.Metrics) error {
	publisher, err := NewPublisher(cfg.Kafka, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("close publisher")
		}
	}()
	return events.NewRelay(store.Outbox(), publisher, cfg.Outbox, log, m).Start(ctx)
}
