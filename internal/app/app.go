package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/temcen/remedy/internal/config"
	"github.com/temcen/remedy/internal/database"
	"github.com/temcen/remedy/internal/handlers"
	"github.com/temcen/remedy/internal/middleware"
	"github.com/temcen/remedy/internal/services"
	"github.com/temcen/remedy/internal/validation"
	"github.com/temcen/remedy/pkg/models"
)

type App struct {
	config     *config.Config
	logger     *logrus.Logger
	db         *database.Database
	services   *services.Services
	handlers   *handlers.Handlers
	validation *middleware.ValidationMiddleware
	router     *gin.Engine

	// cancel stops the background workers started by Start.
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg *config.Config) (*App, error) {
	return newApp(cfg, setupLogger(cfg), prometheus.DefaultRegisterer, gin.WrapH(promhttp.Handler()))
}

func newApp(cfg *config.Config, logger *logrus.Logger, reg prometheus.Registerer, metricsHandler gin.HandlerFunc) (*App, error) {
	app := &App{
		config: cfg,
		logger: logger,
	}

	// Initialize database connections
	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	// Initialize services
	services, err := services.New(cfg, app.logger, db, reg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.services = services

	schemaValidator, err := validation.NewSchemaValidator()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load request schemas: %w", err)
	}
	app.validation = middleware.NewValidationMiddleware(schemaValidator)

	app.handlers = handlers.New(app.logger, services)
	app.setupRouter(metricsHandler)

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Logger() *logrus.Logger {
	return a.logger
}

// Start fits the initial model and launches background workers. It returns
// once the initial fit has been attempted; a failed fit leaves the service
// running without a model.
func (a *App) Start(ctx context.Context) {
	if a.config.Recommender.FitOnStartup {
		if err := a.fitOnStartup(ctx); err != nil {
			a.logger.WithError(err).Warn("Initial model fit failed; serving without a model until one is fitted")
		}
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})

	var workers sync.WaitGroup

	if a.config.Monitoring.Enabled {
		workers.Add(1)
		go func() {
			defer workers.Done()
			a.services.Health.CollectMetrics(workerCtx, 15*time.Second)
		}()
	}

	if a.services.MessageBus != nil {
		workers.Add(1)
		go func() {
			defer workers.Done()
			a.logger.WithField("topic", a.config.Kafka.Topics.RefitRequests).Info("Consuming refit requests")
			err := a.services.MessageBus.ConsumeRefitRequests(workerCtx, a.services.Recommendation.HandleRefitRequest)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.WithError(err).Error("Refit request consumer stopped")
			}
		}()
	}

	go func() {
		workers.Wait()
		close(a.done)
	}()
}

// fitOnStartup prefers the configured CSV dataset and falls back to the interaction store.
func (a *App) fitOnStartup(ctx context.Context) error {
	if path := a.config.Recommender.DatasetPath; path != "" {
		file, err := os.Open(path)
		switch {
		case err == nil:
			defer file.Close()
			status, err := a.services.Recommendation.FitFromCSV(ctx, file, 0)
			if err != nil {
				return fmt.Errorf("failed to fit from %s: %w", path, err)
			}
			a.logger.WithFields(logrus.Fields{
				"dataset":       path,
				"model_version": status.Version,
			}).Info("Initial model fitted from dataset")
			return nil
		case errors.Is(err, os.ErrNotExist):
			a.logger.WithField("dataset", path).Info("Dataset file not found")
		default:
			return fmt.Errorf("failed to open dataset: %w", err)
		}
	}

	if a.services.Store == nil {
		return errors.New("no dataset file and no interaction store configured")
	}

	status, err := a.services.Recommendation.Refit(ctx, 0)
	if err != nil {
		return err
	}
	a.logger.WithField("model_version", status.Version).Info("Initial model fitted from interaction store")
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if a.cancel != nil {
		a.cancel()
		select {
		case <-a.done:
		case <-ctx.Done():
			a.logger.Warn("Background workers did not stop before the shutdown deadline")
		}
	}

	if err := a.services.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing message bus")
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		return err
	}

	return nil
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter(metricsHandler gin.HandlerFunc) {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.CORS(&a.config.Security.CORS))

	// Health check endpoint (no auth required)
	router.GET("/health", a.handlers.Health.Check)

	if a.config.Monitoring.Enabled {
		router.GET(a.config.Monitoring.MetricsPath, metricsHandler)
	}

	api := router.Group("/api/v1")
	{
		api.POST("/auth/token", a.handlers.Auth.IssueToken)

		recommendations := api.Group("/recommendations")
		{
			recommendations.GET("/:machineId", a.handlers.Recommendation.Get)
			recommendations.GET("/:machineId/actions/:actionId/score", a.handlers.Recommendation.GetScore)
		}

		api.GET("/machines", a.handlers.Recommendation.ListMachines)
		api.GET("/actions", a.handlers.Recommendation.ListActions)
		api.GET("/model", a.handlers.Model.Status)
		api.GET("/model/history", a.handlers.Model.History)

		admin := api.Group("")
		admin.Use(middleware.Auth(a.services.Auth, a.logger))
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		{
			admin.POST("/model/fit", a.validation.ValidateFitRequest(), a.handlers.Model.Fit)
			admin.POST("/model/fit/csv", a.handlers.Model.FitCSV)
			admin.POST("/model/refit", a.validation.ValidateRefitRequest(), a.handlers.Model.Refit)
			admin.POST("/interactions", a.validation.ValidateInteractionBatch(), a.handlers.Model.StoreInteractions)
			admin.POST("/auth/revoke", a.handlers.Auth.RevokeToken)
		}
	}

	a.router = router
}
