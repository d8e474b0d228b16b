package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"branch-queue-engine/config"
	deliveryHttp "branch-queue-engine/internal/delivery/http"
	"branch-queue-engine/internal/delivery/http/handler"
	"branch-queue-engine/internal/delivery/http/middleware"
	"branch-queue-engine/internal/infrastructure/cache"
	"branch-queue-engine/internal/infrastructure/database"
	"branch-queue-engine/internal/repository"
	"branch-queue-engine/internal/service"
	"branch-queue-engine/internal/usecase"
	"branch-queue-engine/pkg/validator"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App holds all dependencies for the application
type App struct {
	Config       *config.Config
	DB           *gorm.DB
	RedisClient  *redis.Client
	Server       *http.Server
	queueUsecase usecase.QueueUsecase
}

// New creates a new App instance with all dependencies initialized
func New() (*App, error) {
	app := &App{}

	// Setup logger
	setupLogger()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg
	logrus.Info("Configuration loaded successfully")

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = db
	logrus.Info("Database connected successfully")

	// Initialize Redis
	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	app.RedisClient = redisClient
	logrus.Info("Redis connected successfully")

	// Initialize all layers
	app.initializeServer()

	return app, nil
}

// setupLogger configures the logrus logger
func setupLogger() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)
}

// initializeServer creates and configures the HTTP server
func (app *App) initializeServer() {
	cfg := app.Config

	// Initialize validator
	customValidator := validator.NewValidator()

	// Initialize repositories
	serviceRepo := repository.NewServiceRepository()
	scheduleRepo := repository.NewScheduleRepository()
	pointRepo := repository.NewServicePointRepository()
	appointmentRepo := repository.NewAppointmentRepository()
	policyRepo := repository.NewBranchPolicyRepository()
	formRepo := repository.NewIntakeFormRepository()

	// Initialize logger
	log := logrus.StandardLogger()

	// Initialize domain services
	intakeValidator := service.NewIntakeValidator()
	sequenceTTL := time.Duration(cfg.Queue.SequenceTTLHours) * time.Hour
	turnSequence := service.NewTurnSequence(app.RedisClient, log, sequenceTTL)

	// Initialize usecases
	availabilityUsecase := usecase.NewAvailabilityUsecase(app.DB, log, serviceRepo, scheduleRepo, pointRepo, appointmentRepo, policyRepo)
	reservationUsecase := usecase.NewReservationUsecase(app.DB, log, serviceRepo, scheduleRepo, pointRepo, appointmentRepo, policyRepo, formRepo, intakeValidator)
	queueUsecase := usecase.NewQueueUsecase(app.DB, log, serviceRepo, pointRepo, appointmentRepo, policyRepo, formRepo, intakeValidator, turnSequence)
	lifecycleUsecase := usecase.NewLifecycleUsecase(app.DB, log, appointmentRepo, policyRepo, queueUsecase, reservationUsecase)
	app.queueUsecase = queueUsecase

	// Initialize handlers
	availabilityHandler := handler.NewAvailabilityHandler(availabilityUsecase)
	appointmentHandler := handler.NewAppointmentHandler(reservationUsecase, lifecycleUsecase, customValidator)
	queueHandler := handler.NewQueueHandler(queueUsecase, customValidator)

	// Initialize middleware
	corsMiddleware := middleware.NewCORSMiddleware()
	loggingMiddleware := middleware.NewLoggingMiddleware(log)

	// Initialize router
	router := deliveryHttp.NewRouter(availabilityHandler, appointmentHandler, queueHandler, corsMiddleware, loggingMiddleware)
	httpRouter := router.Setup()

	// Create server
	serverAddr := fmt.Sprintf(":%s", cfg.App.Port)
	app.Server = &http.Server{
		Addr:    serverAddr,
		Handler: httpRouter,
	}
}

// Run starts the HTTP server and handles graceful shutdown
func (app *App) Run() {
	// Start server in goroutine
	go func() {
		logrus.Infof("Server starting on port %s", app.Config.App.Port)
		logrus.Infof("Environment: %s", app.Config.App.Env)
		if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	app.waitForShutdown()
}

// waitForShutdown blocks until an interrupt signal is received
func (app *App) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server gracefully
	if err := app.Server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	// Close connections
	app.Close()

	logrus.Info("Server shutdown complete")
}

// Close stops background workers and closes all connections
func (app *App) Close() {
	// Stop queue background cleanup
	if app.queueUsecase != nil {
		app.queueUsecase.Stop()
	}

	// Close database connection
	if app.DB != nil {
		sqlDB, err := app.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}

	// Close Redis connection
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}
