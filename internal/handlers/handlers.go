package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/temcen/remedy/internal/services"
)

type Handlers struct {
	Health         *HealthHandler
	Recommendation *RecommendationHandler
	Model          *ModelHandler
	Auth           *AuthHandler
}

func New(logger *logrus.Logger, services *services.Services) *Handlers {
	return &Handlers{
		Health:         NewHealthHandler(logger, services.Health),
		Recommendation: NewRecommendationHandler(services.Recommendation, logger),
		Model:          NewModelHandler(services.Recommendation, logger),
		Auth:           NewAuthHandler(services.Auth, logger),
	}
}
