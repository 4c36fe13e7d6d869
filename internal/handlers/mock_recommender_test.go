package handlers

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/temcen/remedy/pkg/models"
)

// MockRecommender is a mock implementation of services.RemediationRecommenderInterface
type MockRecommender struct {
	mock.Mock
}

func (m *MockRecommender) Fit(ctx context.Context, records []models.Interaction, components int, source string) (*models.ModelStatus, error) {
	args := m.Called(ctx, records, components, source)
	return statusArg(args, 0), args.Error(1)
}

func (m *MockRecommender) FitFromCSV(ctx context.Context, r io.Reader, components int) (*models.ModelStatus, error) {
	args := m.Called(ctx, r, components)
	return statusArg(args, 0), args.Error(1)
}

func (m *MockRecommender) Refit(ctx context.Context, components int) (*models.ModelStatus, error) {
	args := m.Called(ctx, components)
	return statusArg(args, 0), args.Error(1)
}

func (m *MockRecommender) StoreInteractions(ctx context.Context, records []models.Interaction) (*models.InteractionBatchResponse, error) {
	args := m.Called(ctx, records)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InteractionBatchResponse), args.Error(1)
}

func (m *MockRecommender) Recommend(ctx context.Context, machineID string, n int) (*models.RecommendationResponse, error) {
	args := m.Called(ctx, machineID, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RecommendationResponse), args.Error(1)
}

func (m *MockRecommender) PredictScore(ctx context.Context, machineID string, actionID int) (*models.ScoreResponse, error) {
	args := m.Called(ctx, machineID, actionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ScoreResponse), args.Error(1)
}

func (m *MockRecommender) Machines(ctx context.Context) (*models.MachineListResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MachineListResponse), args.Error(1)
}

func (m *MockRecommender) Actions(ctx context.Context) *models.ActionListResponse {
	args := m.Called(ctx)
	return args.Get(0).(*models.ActionListResponse)
}

func (m *MockRecommender) Status(ctx context.Context) (*models.ModelStatus, error) {
	args := m.Called(ctx)
	return statusArg(args, 0), args.Error(1)
}

func (m *MockRecommender) History(ctx context.Context) *models.ModelHistoryResponse {
	args := m.Called(ctx)
	return args.Get(0).(*models.ModelHistoryResponse)
}

func statusArg(args mock.Arguments, i int) *models.ModelStatus {
	if args.Get(i) == nil {
		return nil
	}
	return args.Get(i).(*models.ModelStatus)
}
