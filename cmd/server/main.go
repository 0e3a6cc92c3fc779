package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"dispatch/internal/app"
	"dispatch/internal/config"
	"dispatch/internal/handler"
	"dispatch/internal/logging"
	"dispatch/internal/notify"
	internalRedis "dispatch/internal/redis"
	"dispatch/internal/repository/postgres"
	"dispatch/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()
	logger := logging.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", "error", err)
		} else {
			logger.Info("New Relic enabled", "app", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	// Kafka notification sink is optional; without brokers transitions are
	// still announced over the log and websocket sinks.
	var kafkaSink *notify.KafkaSink
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink = notify.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafkaSink.Close()
		logger.Info("Kafka notification sink enabled", "topic", cfg.Kafka.Topic)
	}

	// Wire dependencies.
	server := wireServer(db, redisClient, kafkaSink, nrApp, logger, cfg)

	// Start server in goroutine.
	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	kafkaSink *notify.KafkaSink,
	nrApp *newrelic.Application,
	logger *slog.Logger,
	cfg *config.Config,
) *http.Server {
	// Initialize Redis stores.
	lockStore := internalRedis.NewLockStore(redisClient)

	// Initialize repositories.
	requestRepo := postgres.NewRequestRepository(db)
	tripRepo := postgres.NewTripRepository(db)
	vehicleRepo := postgres.NewVehicleRepository(db)
	driverRepo := postgres.NewDriverRepository(db)

	// Initialize notification sinks and fanout.
	wsHub := notify.NewWSHub()
	sinks := []notify.Sink{notify.NewLogSink(logger), wsHub}
	if kafkaSink != nil {
		sinks = append(sinks, kafkaSink)
	}
	fanout := service.NewFanout(logger, sinks...)

	// Initialize services.
	capacityService := service.NewCapacityService(requestRepo, vehicleRepo, cfg.Dispatch.FallbackCapacity)
	claimService := service.NewClaimService(requestRepo, capacityService, lockStore, fanout, cfg.Dispatch.VehicleLockTTL)
	tripService := service.NewTripService(db, tripRepo, requestRepo, vehicleRepo, driverRepo, fanout)
	dispatch := service.NewDispatch(claimService, tripService, capacityService, requestRepo, vehicleRepo)

	// Initialize handlers.
	requestHandler := handler.NewRequestHandler(dispatch)
	driverHandler := handler.NewDriverHandler(dispatch, driverRepo)
	tripHandler := handler.NewTripHandler(dispatch)
	vehicleHandler := handler.NewVehicleHandler(dispatch)
	wsHandler := handler.NewWSHandler(wsHub, logger)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		RequestHandler: requestHandler,
		DriverHandler:  driverHandler,
		TripHandler:    tripHandler,
		VehicleHandler: vehicleHandler,
		WSHandler:      wsHandler,
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
