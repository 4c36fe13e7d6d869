package services

import (
	"context"
	"io"

	"github.com/temcen/remedy/internal/messaging"
	"github.com/temcen/remedy/pkg/models"
)

// RemediationRecommenderInterface is the recommendation surface used by the HTTP handlers.
type RemediationRecommenderInterface interface {
	Fit(ctx context.Context, records []models.Interaction, components int, source string) (*models.ModelStatus, error)
	FitFromCSV(ctx context.Context, r io.Reader, components int) (*models.ModelStatus, error)
	Refit(ctx context.Context, components int) (*models.ModelStatus, error)
	StoreInteractions(ctx context.Context, records []models.Interaction) (*models.InteractionBatchResponse, error)
	Recommend(ctx context.Context, machineID string, n int) (*models.RecommendationResponse, error)
	PredictScore(ctx context.Context, machineID string, actionID int) (*models.ScoreResponse, error)
	Machines(ctx context.Context) (*models.MachineListResponse, error)
	Actions(ctx context.Context) *models.ActionListResponse
	Status(ctx context.Context) (*models.ModelStatus, error)
	History(ctx context.Context) *models.ModelHistoryResponse
}

// InteractionStore persists the long-form interaction table the model is fitted from.
type InteractionStore interface {
	LoadInteractions(ctx context.Context) ([]models.Interaction, error)
	SaveInteractions(ctx context.Context, records []models.Interaction) (int64, error)
}

// ModelEventPublisher announces newly fitted models.
type ModelEventPublisher interface {
	PublishModelFitted(ctx context.Context, event messaging.ModelFittedEvent) error
}
