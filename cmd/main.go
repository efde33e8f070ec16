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

	"github.com/manorfm/recoveryM/internal/application"
	"github.com/manorfm/recoveryM/internal/domain"
	"github.com/manorfm/recoveryM/internal/infrastructure/captcha"
	"github.com/manorfm/recoveryM/internal/infrastructure/config"
	"github.com/manorfm/recoveryM/internal/infrastructure/database"
	"github.com/manorfm/recoveryM/internal/infrastructure/email"
	"github.com/manorfm/recoveryM/internal/infrastructure/incident"
	"github.com/manorfm/recoveryM/internal/infrastructure/messaging/rabbitmq"
	"github.com/manorfm/recoveryM/internal/infrastructure/notification"
	"github.com/manorfm/recoveryM/internal/infrastructure/password"
	"github.com/manorfm/recoveryM/internal/infrastructure/pin"
	"github.com/manorfm/recoveryM/internal/infrastructure/repository"
	"github.com/manorfm/recoveryM/internal/infrastructure/scheduler"
	"github.com/manorfm/recoveryM/internal/infrastructure/token"
	httprouter "github.com/manorfm/recoveryM/internal/interfaces/http"
	"go.uber.org/zap"
)

// @title Credential Recovery API
// @version 1.0
// @description Password recovery with membership concealment
// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Create database connection
	ctx := context.Background()
	db, err := database.NewPostgres(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	checks := map[string]httprouter.HealthCheck{"postgres": db.Ping}

	// Process store
	var store domain.ProcessStore
	switch cfg.ProcessStore {
	case config.ProcessStoreRedis:
		client, err := database.NewRedis(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		store = repository.NewRedisProcessRepository(client, "", domain.SystemClock{}, logger)
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	default:
		logger.Warn("Using in-memory process store, processes are lost on restart")
		store = repository.NewMemoryProcessRepository(domain.SystemClock{}, logger)
	}

	// Incidents
	incidentRepo := repository.NewIncidentRepository(db, logger)
	incidents := incident.NewDispatcher(cfg.IncidentBuffer, incident.FanOut{
		incident.NewLogSink(logger),
		incident.NewRepositorySink(incidentRepo, logger),
	})
	defer func() {
		incidents.Close()
		if n := incidents.Dropped(); n > 0 {
			logger.Warn("Incidents dropped", zap.Uint64("count", n))
		}
	}()

	// Pin channels
	var publisher rabbitmq.Publisher
	if cfg.AMQPURL != "" {
		producer, err := rabbitmq.NewEventProducer(cfg.AMQPURL, logger)
		if err != nil {
			logger.Error("Failed to connect to RabbitMQ, SMS pins will not be delivered", zap.Error(err))
			publisher = rabbitmq.NewUnavailablePublisher(logger)
		} else {
			publisher = producer
		}
	} else {
		logger.Warn("AMQP_URL not set, SMS pins will not be delivered")
		publisher = rabbitmq.NewUnavailablePublisher(logger)
	}
	defer publisher.Close()

	channels := notification.NewRouter().
		Bind(domain.FactorEmail, email.NewEmailTemplate(email.NewEmailService(cfg, logger), logger)).
		Bind(domain.FactorPhone, notification.NewSMSChannel(publisher, cfg.AMQPExchange, logger))

	var verifier domain.CaptchaVerifier = captcha.Disabled{}
	if cfg.Policy.RequireCaptcha {
		verifier = captcha.NewSiteVerifier(cfg.CaptchaVerifyURL, cfg.CaptchaSecret, cfg.CaptchaTimeout, logger)
	}

	hasher := password.NewHasher(cfg.BcryptCost)

	recoveryService, err := application.NewRecoveryService(application.RecoveryDeps{
		Store:     store,
		Resolver:  repository.NewFactorRepository(db, logger),
		Accounts:  repository.NewAccountRepository(db, logger),
		Questions: repository.NewSecretQuestionRepository(db, hasher, logger),
		Channel:   channels,
		Captcha:   verifier,
		Tokens:    token.NewGenerator(),
		Pins:      pin.NewGenerator(logger),
		Hasher:    hasher,
		Incidents: incidents,
	}, cfg.Policy, logger)
	if err != nil {
		logger.Fatal("Failed to initialize recovery service", zap.Error(err))
	}

	// Storage hygiene
	sweeper := scheduler.NewScheduler(
		scheduler.NewJobs(store, incidentRepo, cfg.IncidentRetention, domain.SystemClock{}, logger),
		cfg.SweepSchedule,
		logger,
	)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// Create router
	router := httprouter.NewRouter(httprouter.Dependencies{
		Recovery:  recoveryService,
		Incidents: incidentRepo,
		Checks:    checks,
	}, cfg, logger)
	defer router.Close()

	// Start server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", zap.Int("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	select {
	case <-sweeper.Stop().Done():
	case <-shutdownCtx.Done():
	}

	logger.Info("Server exited properly")
}
