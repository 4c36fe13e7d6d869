package ml

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/remedy/pkg/models"
)

func TestBuildMatrix(t *testing.T) {
	t.Run("sorted distinct identifiers", func(t *testing.T) {
		records := []models.Interaction{
			{MachineID: "srv-web-02", ActionID: 4, Score: 3},
			{MachineID: "srv-db-01", ActionID: 1, Score: 5},
			{MachineID: "srv-web-02", ActionID: 1, Score: 2},
			{MachineID: "srv-app-03", ActionID: 2, Score: 4},
		}

		matrix, err := BuildMatrix(records)
		require.NoError(t, err)

		assert.Equal(t, []string{"srv-app-03", "srv-db-01", "srv-web-02"}, matrix.MachineIDs)
		assert.Equal(t, []int{1, 2, 4}, matrix.ActionIDs)

		rows, cols := matrix.Values.Dims()
		assert.Equal(t, 3, rows)
		assert.Equal(t, 3, cols)
		assert.Equal(t, 4, matrix.ObservedCells)

		assert.Equal(t, 4.0, matrix.Values.At(0, 1))
		assert.Equal(t, 5.0, matrix.Values.At(1, 0))
		assert.Equal(t, 2.0, matrix.Values.At(2, 0))
		assert.Equal(t, 3.0, matrix.Values.At(2, 2))
	})

	t.Run("unobserved cells are zero", func(t *testing.T) {
		matrix, err := BuildMatrix([]models.Interaction{
			{MachineID: "M1", ActionID: 1, Score: 5},
			{MachineID: "M2", ActionID: 2, Score: 1},
		})
		require.NoError(t, err)

		assert.Equal(t, 0.0, matrix.Values.At(0, 1))
		assert.Equal(t, 0.0, matrix.Values.At(1, 0))
	})

	t.Run("duplicates aggregated by mean", func(t *testing.T) {
		matrix, err := BuildMatrix([]models.Interaction{
			{MachineID: "M1", ActionID: 1, Score: 4},
			{MachineID: "M1", ActionID: 1, Score: 2},
			{MachineID: "M1", ActionID: 1, Score: 3},
			{MachineID: "M2", ActionID: 1, Score: 1},
		})
		require.NoError(t, err)

		assert.InDelta(t, 3.0, matrix.Values.At(0, 0), 1e-12)
		assert.Equal(t, 2, matrix.ObservedCells)
	})

	t.Run("input order does not change indexing", func(t *testing.T) {
		records := []models.Interaction{
			{MachineID: "b", ActionID: 3, Score: 1},
			{MachineID: "a", ActionID: 1, Score: 2},
			{MachineID: "c", ActionID: 2, Score: 3},
		}
		reversed := []models.Interaction{records[2], records[1], records[0]}

		first, err := BuildMatrix(records)
		require.NoError(t, err)
		second, err := BuildMatrix(reversed)
		require.NoError(t, err)

		assert.Equal(t, first.MachineIDs, second.MachineIDs)
		assert.Equal(t, first.ActionIDs, second.ActionIDs)
		assert.Equal(t, first.Values.RawMatrix().Data, second.Values.RawMatrix().Data)
	})

	t.Run("empty input", func(t *testing.T) {
		matrix, err := BuildMatrix(nil)
		assert.Nil(t, matrix)
		assert.ErrorIs(t, err, ErrEmptyDataset)
	})

	t.Run("missing machine id", func(t *testing.T) {
		_, err := BuildMatrix([]models.Interaction{
			{MachineID: "M1", ActionID: 1, Score: 2},
			{MachineID: "  ", ActionID: 2, Score: 3},
		})

		var schemaErr *SchemaError
		require.True(t, errors.As(err, &schemaErr))
		assert.Equal(t, "machine_id", schemaErr.Field)
		assert.Equal(t, 1, schemaErr.Row)
	})

	t.Run("non-finite score", func(t *testing.T) {
		_, err := BuildMatrix([]models.Interaction{
			{MachineID: "M1", ActionID: 1, Score: math.NaN()},
		})

		var schemaErr *SchemaError
		require.True(t, errors.As(err, &schemaErr))
		assert.Equal(t, "score", schemaErr.Field)
		assert.Contains(t, err.Error(), "finite")
	})
}
