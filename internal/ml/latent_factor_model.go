package ml

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/temcen/remedy/pkg/models"
)

// LatentFactorModel is a truncated-SVD factorization of a mean-imputed
// interaction matrix. A fitted model is never mutated, so concurrent calls to
// PredictScore and RecommendTopN are safe.
//
// Scores are globalMean + U[m]·V[a]. By default the decomposition runs on the
// imputed matrix itself, not on a mean-centered copy, so the global mean is
// counted twice for most cells. WithMeanCentering switches to the centered
// variant.
type LatentFactorModel struct {
	machineIDs   []string
	actionIDs    []int
	machineIndex map[string]int
	actionIndex  map[int]int

	globalMean     float64
	machineFactors *mat.Dense // machines x k, scaled by singular values
	actionFactors  *mat.Dense // actions x k

	catalog ActionCatalog
	summary FitSummary
}

// FitSummary holds diagnostic statistics of a fit.
type FitSummary struct {
	Machines               int       `json:"machines"`
	Actions                int       `json:"actions"`
	Components             int       `json:"components"`
	GlobalMean             float64   `json:"global_mean"`
	ObservedCells          int       `json:"observed_cells"`
	Density                float64   `json:"density"`
	ExplainedVarianceRatio float64   `json:"explained_variance_ratio"`
	SingularValues         []float64 `json:"singular_values"`
	MeanCentered           bool      `json:"mean_centered"`
}

// ScoredAction is one ranked recommendation.
type ScoredAction struct {
	ActionID    int
	Score       float64
	Description string
}

type fitOptions struct {
	meanCentering bool
	catalog       ActionCatalog
}

// FitOption customizes Fit.
type FitOption func(*fitOptions)

// WithMeanCentering decomposes the imputed matrix minus the global mean, so
// that the mean is added back exactly once at score time.
func WithMeanCentering(enabled bool) FitOption {
	return func(o *fitOptions) {
		o.meanCentering = enabled
	}
}

// WithCatalog sets the action descriptions used by RecommendTopN.
func WithCatalog(catalog ActionCatalog) FitOption {
	return func(o *fitOptions) {
		if catalog != nil {
			o.catalog = catalog.clone()
		}
	}
}

// FitFromInteractions pivots the records and fits a model on the result.
func FitFromInteractions(records []models.Interaction, components int, opts ...FitOption) (*LatentFactorModel, error) {
	matrix, err := BuildMatrix(records)
	if err != nil {
		return nil, err
	}
	return Fit(matrix, components, opts...)
}

// Fit factorizes the interaction matrix into components latent dimensions.
// components must satisfy 1 <= components < min(machines, actions).
func Fit(matrix *InteractionMatrix, components int, opts ...FitOption) (*LatentFactorModel, error) {
	if matrix == nil || matrix.Values == nil || len(matrix.MachineIDs) == 0 || len(matrix.ActionIDs) == 0 {
		return nil, ErrEmptyDataset
	}

	o := fitOptions{catalog: DefaultActionCatalog()}
	for _, opt := range opts {
		opt(&o)
	}

	rows, cols := matrix.Dims()
	if r, c := matrix.Values.Dims(); r != rows || c != cols {
		return nil, fmt.Errorf("matrix shape %dx%d does not match %d machines and %d actions", r, c, rows, cols)
	}
	if components < 1 || components >= min(rows, cols) {
		return nil, &PrecondRankError{Components: components, Machines: rows, Actions: cols}
	}

	globalMean := positiveMean(matrix.Values)

	decomposed := mat.NewDense(rows, cols, nil)
	decomposed.Apply(func(_, _ int, v float64) float64 {
		if v == 0 {
			v = globalMean
		}
		if o.meanCentering {
			v -= globalMean
		}
		return v
	}, matrix.Values)

	var svd mat.SVD
	if ok := svd.Factorize(decomposed, mat.SVDThin); !ok {
		return nil, errors.New("singular value decomposition failed to converge")
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	singular := svd.Values(nil)[:components]

	machineFactors := mat.DenseCopyOf(u.Slice(0, rows, 0, components))
	for j, s := range singular {
		for i := 0; i < rows; i++ {
			machineFactors.Set(i, j, machineFactors.At(i, j)*s)
		}
	}
	actionFactors := mat.DenseCopyOf(v.Slice(0, cols, 0, components))

	model := &LatentFactorModel{
		machineIDs:     append([]string(nil), matrix.MachineIDs...),
		actionIDs:      append([]int(nil), matrix.ActionIDs...),
		globalMean:     globalMean,
		machineFactors: machineFactors,
		actionFactors:  actionFactors,
		catalog:        o.catalog,
	}
	model.machineIndex = indexOf(model.machineIDs)
	model.actionIndex = indexOf(model.actionIDs)
	model.summary = FitSummary{
		Machines:               rows,
		Actions:                cols,
		Components:             components,
		GlobalMean:             globalMean,
		ObservedCells:          matrix.ObservedCells,
		Density:                float64(matrix.ObservedCells) / float64(rows*cols),
		ExplainedVarianceRatio: explainedVarianceRatio(decomposed, machineFactors),
		SingularValues:         append([]float64(nil), singular...),
		MeanCentered:           o.meanCentering,
	}

	return model, nil
}

// PredictScore returns the predicted effectiveness of an action on a machine.
// Unknown machines or actions fall back to the global mean.
func (m *LatentFactorModel) PredictScore(machineID string, actionID int) float64 {
	mi, ok := m.machineIndex[machineID]
	if !ok {
		return m.globalMean
	}
	ai, ok := m.actionIndex[actionID]
	if !ok {
		return m.globalMean
	}
	return m.predict(mi, ai)
}

func (m *LatentFactorModel) predict(mi, ai int) float64 {
	return m.globalMean + mat.Dot(m.machineFactors.RowView(mi), m.actionFactors.RowView(ai))
}

// RecommendTopN ranks every known action for the machine by descending score,
// ties broken by ascending action id, and returns at most n of them.
func (m *LatentFactorModel) RecommendTopN(machineID string, n int) ([]ScoredAction, error) {
	mi, ok := m.machineIndex[machineID]
	if !ok {
		return nil, &UnknownMachineError{MachineID: machineID}
	}

	ranked := make([]ScoredAction, len(m.actionIDs))
	for ai, actionID := range m.actionIDs {
		ranked[ai] = ScoredAction{
			ActionID:    actionID,
			Score:       m.predict(mi, ai),
			Description: m.catalog.Describe(actionID),
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ActionID < ranked[j].ActionID
	})

	n = max(0, min(n, len(ranked)))
	return ranked[:n], nil
}

// KnowsMachine reports whether the machine was observed at fit time.
func (m *LatentFactorModel) KnowsMachine(machineID string) bool {
	_, ok := m.machineIndex[machineID]
	return ok
}

// KnowsAction reports whether the action was observed at fit time.
func (m *LatentFactorModel) KnowsAction(actionID int) bool {
	_, ok := m.actionIndex[actionID]
	return ok
}

func (m *LatentFactorModel) MachineIDs() []string {
	return append([]string(nil), m.machineIDs...)
}

func (m *LatentFactorModel) ActionIDs() []int {
	return append([]int(nil), m.actionIDs...)
}

func (m *LatentFactorModel) GlobalMean() float64 {
	return m.globalMean
}

// MachineFactors returns a copy of U (machines x k).
func (m *LatentFactorModel) MachineFactors() *mat.Dense {
	return mat.DenseCopyOf(m.machineFactors)
}

// ActionFactors returns a copy of V (actions x k).
func (m *LatentFactorModel) ActionFactors() *mat.Dense {
	return mat.DenseCopyOf(m.actionFactors)
}

func (m *LatentFactorModel) Catalog() ActionCatalog {
	return m.catalog.clone()
}

func (m *LatentFactorModel) Summary() FitSummary {
	s := m.summary
	s.SingularValues = append([]float64(nil), m.summary.SingularValues...)
	return s
}

// positiveMean averages the strictly positive cells, or returns 0 when there are none.
func positiveMean(values mat.Matrix) float64 {
	rows, cols := values.Dims()
	var sum float64
	var count int
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := values.At(i, j); v > 0 {
				sum += v
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// explainedVarianceRatio compares the column variance of the transformed data
// to the column variance of the decomposed matrix.
func explainedVarianceRatio(decomposed, transformed *mat.Dense) float64 {
	total := columnVariances(decomposed)
	if total == 0 {
		return 0
	}
	return columnVariances(transformed) / total
}

func columnVariances(m *mat.Dense) float64 {
	rows, cols := m.Dims()
	column := make([]float64, rows)
	variances := make([]float64, cols)
	for j := 0; j < cols; j++ {
		mat.Col(column, j, m)
		_, variances[j] = stat.PopMeanVariance(column, nil)
	}
	return floats.Sum(variances)
}
