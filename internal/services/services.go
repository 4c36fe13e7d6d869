package services

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/remedy/internal/config"
	"github.com/temcen/remedy/internal/database"
	"github.com/temcen/remedy/internal/messaging"
	"github.com/temcen/remedy/internal/ml"
)

type Services struct {
	Auth           *AuthService
	Health         *HealthService
	Metrics        *MetricsCollector
	Registry       *ml.ModelRegistry
	Store          *PostgresInteractionStore // nil without PostgreSQL
	MessageBus     *messaging.MessageBus     // nil without Kafka
	Recommendation *RecommendationService
}

func New(cfg *config.Config, logger *logrus.Logger, db *database.Database, reg prometheus.Registerer) (*Services, error) {
	registry := ml.NewModelRegistry(cfg.Recommender.HistorySize)
	metrics := NewMetricsCollector(reg, logger)

	var store *PostgresInteractionStore
	var storeIface InteractionStore
	if db.PG != nil {
		store = NewPostgresInteractionStore(db.PG, logger)
		if err := store.EnsureSchema(context.Background()); err != nil {
			return nil, err
		}
		storeIface = store
	}

	var messageBus *messaging.MessageBus
	var publisher ModelEventPublisher
	if cfg.Kafka.Enabled {
		messageBus = messaging.NewMessageBus(&cfg.Kafka, logger)
		publisher = messageBus
	}

	recommendation, err := NewRecommendationService(
		registry, storeIface, db.Redis, publisher, metrics, &cfg.Recommender, logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create recommendation service: %w", err)
	}

	return &Services{
		Auth:           NewAuthService(&cfg.Auth, logger, db.Redis),
		Health:         NewHealthService(reg, logger, db, registry),
		Metrics:        metrics,
		Registry:       registry,
		Store:          store,
		MessageBus:     messageBus,
		Recommendation: recommendation,
	}, nil
}

func (s *Services) Close() error {
	if s.MessageBus != nil {
		return s.MessageBus.Close()
	}
	return nil
}
