package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/remedy/internal/config"
	"github.com/temcen/remedy/internal/messaging"
	"github.com/temcen/remedy/internal/ml"
	"github.com/temcen/remedy/pkg/models"
)

const algorithmSVD = "svd"

// ErrStoreUnavailable is returned by operations that need the interaction store when none is configured.
var ErrStoreUnavailable = errors.New("interaction store is not configured")

// RecommendationService fits the latent factor model and serves rankings from it.
type RecommendationService struct {
	registry     *ml.ModelRegistry
	store        InteractionStore    // optional
	cache        *redis.Client       // optional
	publisher    ModelEventPublisher // optional
	preprocessor *InteractionPreprocessor
	metrics      *MetricsCollector
	config       *config.RecommenderConfig
	catalog      ml.ActionCatalog
	logger       *logrus.Logger

	// fitMutex serializes fits; readers go through the registry and never wait on it.
	fitMutex sync.Mutex
}

// NewRecommendationService creates the service. store, cache and publisher may be nil.
func NewRecommendationService(
	registry *ml.ModelRegistry,
	store InteractionStore,
	cache *redis.Client,
	publisher ModelEventPublisher,
	metrics *MetricsCollector,
	cfg *config.RecommenderConfig,
	logger *logrus.Logger,
) (*RecommendationService, error) {
	if cfg.Algorithm != "" && cfg.Algorithm != algorithmSVD {
		return nil, fmt.Errorf("unsupported recommender algorithm %q", cfg.Algorithm)
	}

	catalog := ml.DefaultActionCatalog()
	configured, err := cfg.ParseCatalog()
	if err != nil {
		return nil, err
	}
	if configured != nil {
		catalog = ml.ActionCatalog(configured)
	}

	return &RecommendationService{
		registry:     registry,
		store:        store,
		cache:        cache,
		publisher:    publisher,
		preprocessor: NewInteractionPreprocessor(logger),
		metrics:      metrics,
		config:       cfg,
		catalog:      catalog,
		logger:       logger,
	}, nil
}

// Fit builds and publishes a new model from the records. components <= 0
// selects the configured default.
func (s *RecommendationService) Fit(ctx context.Context, records []models.Interaction, components int, source string) (*models.ModelStatus, error) {
	if components <= 0 {
		components = s.config.Components
	}
	records = s.preprocessor.Normalize(records)

	s.fitMutex.Lock()
	defer s.fitMutex.Unlock()

	start := time.Now()
	model, err := ml.FitFromInteractions(records, components,
		ml.WithCatalog(s.catalog),
		ml.WithMeanCentering(s.config.MeanCentering),
	)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.RecordFit(nil, elapsed.Seconds(), err)
		s.logger.WithError(err).WithFields(logrus.Fields{
			"records":    len(records),
			"components": components,
			"source":     source,
		}).Warn("Model fit rejected")
		return nil, err
	}

	snapshot := s.registry.Publish(model, elapsed)
	summary := model.Summary()
	s.metrics.RecordFit(&summary, elapsed.Seconds(), nil)

	s.logger.WithFields(logrus.Fields{
		"model_version":      snapshot.Version,
		"source":             source,
		"machines":           summary.Machines,
		"actions":            summary.Actions,
		"components":         summary.Components,
		"explained_variance": summary.ExplainedVarianceRatio,
		"duration":           elapsed,
	}).Info("Model fitted")

	if s.publisher != nil {
		event := messaging.ModelFittedEvent{
			ModelVersion: snapshot.Version,
			Algorithm:    algorithmSVD,
			Source:       source,
			FittedAt:     snapshot.FittedAt,
			FitDuration:  elapsed,
			Summary:      summary,
		}
		if err := s.publisher.PublishModelFitted(ctx, event); err != nil {
			// The model is already served; a lost event only delays downstream consumers.
			s.logger.WithError(err).Warn("Failed to publish model fitted event")
		}
	}

	return s.statusOf(snapshot), nil
}

// FitFromCSV parses a CSV interaction table and fits on it.
func (s *RecommendationService) FitFromCSV(ctx context.Context, r io.Reader, components int) (*models.ModelStatus, error) {
	records, err := s.preprocessor.ParseCSV(r)
	if err != nil {
		return nil, err
	}
	return s.Fit(ctx, records, components, "csv")
}

// Refit reloads every stored interaction and fits on it.
func (s *RecommendationService) Refit(ctx context.Context, components int) (*models.ModelStatus, error) {
	if s.store == nil {
		return nil, ErrStoreUnavailable
	}
	records, err := s.store.LoadInteractions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load interactions: %w", err)
	}
	return s.Fit(ctx, records, components, "store")
}

// HandleRefitRequest adapts Refit to the message bus consumer.
func (s *RecommendationService) HandleRefitRequest(ctx context.Context, req messaging.RefitRequest) error {
	_, err := s.Refit(ctx, req.Components)
	return err
}

func (s *RecommendationService) StoreInteractions(ctx context.Context, records []models.Interaction) (*models.InteractionBatchResponse, error) {
	if s.store == nil {
		return nil, ErrStoreUnavailable
	}
	if len(records) == 0 {
		return nil, ml.ErrEmptyDataset
	}

	records = s.preprocessor.Normalize(records)
	machines := make(map[string]struct{})
	actions := make(map[int]struct{})
	for i, r := range records {
		if r.MachineID == "" {
			return nil, &ml.SchemaError{Field: "machine_id", Row: i}
		}
		if math.IsNaN(r.Score) || math.IsInf(r.Score, 0) {
			return nil, &ml.SchemaError{Field: "score", Row: i, Reason: "score must be a finite number"}
		}
		machines[r.MachineID] = struct{}{}
		actions[r.ActionID] = struct{}{}
	}

	stored, err := s.store.SaveInteractions(ctx, records)
	if err != nil {
		return nil, err
	}

	return &models.InteractionBatchResponse{
		Stored:   stored,
		StoredAt: time.Now(),
		Machines: len(machines),
		Actions:  len(actions),
	}, nil
}

// Recommend ranks actions for a machine. n <= 0 selects the configured default
// and n is capped at the configured maximum.
func (s *RecommendationService) Recommend(ctx context.Context, machineID string, n int) (*models.RecommendationResponse, error) {
	start := time.Now()
	machineID = NormalizeMachineID(machineID)
	n = s.clampTopN(n)

	snapshot, err := s.registry.Current()
	if err != nil {
		s.metrics.RecordRecommendation("not_fitted", time.Since(start).Seconds())
		return nil, err
	}

	cacheKey := fmt.Sprintf("recommendations:%s:%s:%d", snapshot.Version, machineID, n)
	if cached, err := s.getCachedRecommendations(ctx, cacheKey); err == nil && cached != nil {
		cached.CacheHit = true
		s.metrics.RecordRecommendation("cache_hit", time.Since(start).Seconds())
		return cached, nil
	}

	ranked, err := snapshot.Model.RecommendTopN(machineID, n)
	if err != nil {
		s.metrics.RecordRecommendation("unknown_machine", time.Since(start).Seconds())
		return nil, err
	}

	recommendations := make([]models.Recommendation, len(ranked))
	for i, r := range ranked {
		recommendations[i] = models.Recommendation{
			ActionID:    r.ActionID,
			Score:       roundScore(r.Score),
			Description: r.Description,
			Position:    i + 1,
		}
	}

	response := &models.RecommendationResponse{
		MachineID:       machineID,
		Recommendations: recommendations,
		ModelVersion:    snapshot.Version,
		GeneratedAt:     time.Now(),
	}

	if err := s.cacheRecommendations(ctx, cacheKey, response); err != nil {
		s.logger.WithError(err).Warn("Failed to cache recommendations")
	}

	s.metrics.RecordRecommendation("ok", time.Since(start).Seconds())
	s.logger.WithFields(logrus.Fields{
		"machine_id": machineID,
		"results":    len(recommendations),
	}).Debug("Recommendations generated")

	return response, nil
}

// PredictScore returns the model score for one pair. Unknown ids get the
// global mean and are flagged as cold start.
func (s *RecommendationService) PredictScore(ctx context.Context, machineID string, actionID int) (*models.ScoreResponse, error) {
	snapshot, err := s.registry.Current()
	if err != nil {
		return nil, err
	}

	machineID = NormalizeMachineID(machineID)
	model := snapshot.Model
	coldStart := !model.KnowsMachine(machineID) || !model.KnowsAction(actionID)
	if coldStart {
		s.metrics.RecordColdStart()
	}

	return &models.ScoreResponse{
		MachineID:    machineID,
		ActionID:     actionID,
		Score:        model.PredictScore(machineID, actionID),
		ColdStart:    coldStart,
		ModelVersion: snapshot.Version,
	}, nil
}

func (s *RecommendationService) Machines(ctx context.Context) (*models.MachineListResponse, error) {
	snapshot, err := s.registry.Current()
	if err != nil {
		return nil, err
	}
	return &models.MachineListResponse{
		Machines:     snapshot.Model.MachineIDs(),
		ModelVersion: snapshot.Version,
	}, nil
}

// Actions lists catalog actions plus any action observed by the served model.
func (s *RecommendationService) Actions(ctx context.Context) *models.ActionListResponse {
	known := make(map[int]bool)
	if snapshot, err := s.registry.Current(); err == nil {
		for _, id := range snapshot.Model.ActionIDs() {
			known[id] = true
		}
	}

	ids := s.catalog.IDs()
	for id := range known {
		if _, listed := s.catalog[id]; !listed {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	actions := make([]models.ActionDescriptor, len(ids))
	for i, id := range ids {
		actions[i] = models.ActionDescriptor{
			ActionID:    id,
			Description: s.catalog.Describe(id),
			Known:       known[id],
		}
	}
	return &models.ActionListResponse{Actions: actions}
}

func (s *RecommendationService) Status(ctx context.Context) (*models.ModelStatus, error) {
	snapshot, err := s.registry.Current()
	if err != nil {
		return nil, err
	}
	return s.statusOf(snapshot), nil
}

// History lists recently published models, oldest first.
func (s *RecommendationService) History(ctx context.Context) *models.ModelHistoryResponse {
	infos := s.registry.History()
	entries := make([]models.ModelHistoryEntry, len(infos))
	for i, info := range infos {
		entries[i] = models.ModelHistoryEntry{
			Version:                info.Version,
			FittedAt:               info.FittedAt,
			FitDurationMs:          info.FitDuration.Milliseconds(),
			Machines:               info.Summary.Machines,
			Actions:                info.Summary.Actions,
			Components:             info.Summary.Components,
			ExplainedVarianceRatio: info.Summary.ExplainedVarianceRatio,
		}
	}
	return &models.ModelHistoryResponse{Models: entries}
}

func (s *RecommendationService) statusOf(snapshot *ml.ModelSnapshot) *models.ModelStatus {
	summary := snapshot.Model.Summary()
	return &models.ModelStatus{
		Version:                snapshot.Version,
		Algorithm:              algorithmSVD,
		FittedAt:               snapshot.FittedAt,
		Machines:               summary.Machines,
		Actions:                summary.Actions,
		Components:             summary.Components,
		GlobalMean:             summary.GlobalMean,
		ObservedCells:          summary.ObservedCells,
		Density:                summary.Density,
		ExplainedVarianceRatio: summary.ExplainedVarianceRatio,
		SingularValues:         summary.SingularValues,
		MeanCentered:           summary.MeanCentered,
		FitDurationMs:          snapshot.FitDuration.Milliseconds(),
	}
}

func (s *RecommendationService) clampTopN(n int) int {
	if n <= 0 {
		n = s.config.DefaultTopN
	}
	if s.config.MaxTopN > 0 && n > s.config.MaxTopN {
		n = s.config.MaxTopN
	}
	return n
}

func (s *RecommendationService) getCachedRecommendations(ctx context.Context, key string) (*models.RecommendationResponse, error) {
	if s.cache == nil {
		return nil, nil
	}

	data, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var response models.RecommendationResponse
	if err := json.Unmarshal([]byte(data), &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (s *RecommendationService) cacheRecommendations(ctx context.Context, key string, response *models.RecommendationResponse) error {
	if s.cache == nil || s.config.CacheTTL <= 0 {
		return nil
	}

	data, err := json.Marshal(response)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, data, s.config.CacheTTL).Err()
}

// roundScore rounds to three decimals for display.
func roundScore(score float64) float64 {
	return math.Round(score*1000) / 1000
}
