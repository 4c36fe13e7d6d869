package ml

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/temcen/remedy/pkg/models"
)

// InteractionMatrix is the dense machine-by-action pivot of interaction records.
// A cell holds the mean observed score for the pair, or 0 when nothing was observed.
type InteractionMatrix struct {
	MachineIDs []string
	ActionIDs  []int
	Values     *mat.Dense

	// ObservedCells counts the pairs that had at least one record.
	ObservedCells int
}

// Dims returns the number of machines and actions.
func (m *InteractionMatrix) Dims() (machines, actions int) {
	return len(m.MachineIDs), len(m.ActionIDs)
}

// BuildMatrix pivots long-form records into an InteractionMatrix. Rows and
// columns are ordered by ascending identifier so identical input always yields
// the same index assignment.
func BuildMatrix(records []models.Interaction) (*InteractionMatrix, error) {
	if len(records) == 0 {
		return nil, ErrEmptyDataset
	}

	type cell struct {
		machine string
		action  int
	}
	sums := make(map[cell]float64)
	counts := make(map[cell]int)
	machineSet := make(map[string]struct{})
	actionSet := make(map[int]struct{})

	for i, r := range records {
		if strings.TrimSpace(r.MachineID) == "" {
			return nil, &SchemaError{Field: "machine_id", Row: i}
		}
		if math.IsNaN(r.Score) || math.IsInf(r.Score, 0) {
			return nil, &SchemaError{Field: "score", Row: i, Reason: "score must be a finite number"}
		}

		key := cell{machine: r.MachineID, action: r.ActionID}
		sums[key] += r.Score
		counts[key]++
		machineSet[r.MachineID] = struct{}{}
		actionSet[r.ActionID] = struct{}{}
	}

	machineIDs := make([]string, 0, len(machineSet))
	for id := range machineSet {
		machineIDs = append(machineIDs, id)
	}
	sort.Strings(machineIDs)

	actionIDs := make([]int, 0, len(actionSet))
	for id := range actionSet {
		actionIDs = append(actionIDs, id)
	}
	sort.Ints(actionIDs)

	machineIndex := indexOf(machineIDs)
	actionIndex := indexOf(actionIDs)

	values := mat.NewDense(len(machineIDs), len(actionIDs), nil)
	for key, sum := range sums {
		values.Set(machineIndex[key.machine], actionIndex[key.action], sum/float64(counts[key]))
	}

	return &InteractionMatrix{
		MachineIDs:    machineIDs,
		ActionIDs:     actionIDs,
		Values:        values,
		ObservedCells: len(sums),
	}, nil
}

func indexOf[K comparable](ids []K) map[K]int {
	index := make(map[K]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}
	return index
}
