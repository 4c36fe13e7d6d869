package models

import (
	"time"

	"github.com/google/uuid"
)

type Recommendation struct {
	ActionID    int     `json:"action_id"`
	Score       float64 `json:"score"`
	Description string  `json:"description"`
	Position    int     `json:"position"`
}

type RecommendationResponse struct {
	MachineID       string           `json:"machine_id"`
	Recommendations []Recommendation `json:"recommendations"`
	ModelVersion    uuid.UUID        `json:"model_version"`
	IncidentDate    string           `json:"incident_date,omitempty"`
	GeneratedAt     time.Time        `json:"generated_at"`
	CacheHit        bool             `json:"cache_hit"`
}

type ScoreResponse struct {
	MachineID    string    `json:"machine_id"`
	ActionID     int       `json:"action_id"`
	Score        float64   `json:"score"`
	ColdStart    bool      `json:"cold_start"`
	ModelVersion uuid.UUID `json:"model_version"`
}

type MachineListResponse struct {
	Machines     []string  `json:"machines"`
	ModelVersion uuid.UUID `json:"model_version"`
}

type ActionDescriptor struct {
	ActionID    int    `json:"action_id"`
	Description string `json:"description"`
	Known       bool   `json:"known"`
}

type ActionListResponse struct {
	Actions []ActionDescriptor `json:"actions"`
}

// ModelStatus describes the currently served factor model.
type ModelStatus struct {
	Version                uuid.UUID `json:"version"`
	Algorithm              string    `json:"algorithm"`
	FittedAt               time.Time `json:"fitted_at"`
	Machines               int       `json:"machines"`
	Actions                int       `json:"actions"`
	Components             int       `json:"components"`
	GlobalMean             float64   `json:"global_mean"`
	ObservedCells          int       `json:"observed_cells"`
	Density                float64   `json:"density"`
	ExplainedVarianceRatio float64   `json:"explained_variance_ratio"`
	SingularValues         []float64 `json:"singular_values"`
	MeanCentered           bool      `json:"mean_centered"`
	FitDurationMs          int64     `json:"fit_duration_ms"`
}

type ModelHistoryEntry struct {
	Version                uuid.UUID `json:"version"`
	FittedAt               time.Time `json:"fitted_at"`
	FitDurationMs          int64     `json:"fit_duration_ms"`
	Machines               int       `json:"machines"`
	Actions                int       `json:"actions"`
	Components             int       `json:"components"`
	ExplainedVarianceRatio float64   `json:"explained_variance_ratio"`
}

type ModelHistoryResponse struct {
	Models []ModelHistoryEntry `json:"models"`
}
