package models

import "time"

// Interaction is one observed effectiveness score of a remediation action on a machine.
type Interaction struct {
	MachineID string  `json:"machine_id" db:"machine_id" validate:"required"`
	ActionID  int     `json:"action_id" db:"action_id" validate:"min=0"`
	Score     float64 `json:"score" db:"score"`
}

type InteractionBatchRequest struct {
	Interactions []Interaction `json:"interactions" validate:"required,min=1,max=100000,dive"`
}

type InteractionBatchResponse struct {
	Stored   int64     `json:"stored"`
	StoredAt time.Time `json:"stored_at"`
	Machines int       `json:"machines"`
	Actions  int       `json:"actions"`
}

type FitRequest struct {
	Interactions []Interaction `json:"interactions" validate:"required,min=1,dive"`
	Components   int           `json:"components,omitempty" validate:"omitempty,min=1"`
}

type RefitRequest struct {
	Components int `json:"components,omitempty" validate:"omitempty,min=1"`
}
