package services

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/remedy/pkg/models"
)

func newTestStore(t *testing.T) (*PostgresInteractionStore, pgxmock.PgxPoolIface) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockDB.Close)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return NewPostgresInteractionStore(mockDB, logger), mockDB
}

func TestPostgresInteractionStore_EnsureSchema(t *testing.T) {
	store, mockDB := newTestStore(t)

	mockDB.ExpectExec("CREATE TABLE IF NOT EXISTS remediation_interactions").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestPostgresInteractionStore_LoadInteractions(t *testing.T) {
	t.Run("scans every row", func(t *testing.T) {
		store, mockDB := newTestStore(t)

		rows := pgxmock.NewRows([]string{"machine_id", "action_id", "score"}).
			AddRow("M1", 1, 4.0).
			AddRow("M1", 3, 5.0).
			AddRow("M2", 2, 2.0)
		mockDB.ExpectQuery("SELECT machine_id, action_id, score").WillReturnRows(rows)

		records, err := store.LoadInteractions(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []models.Interaction{
			{MachineID: "M1", ActionID: 1, Score: 4.0},
			{MachineID: "M1", ActionID: 3, Score: 5.0},
			{MachineID: "M2", ActionID: 2, Score: 2.0},
		}, records)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("query error is wrapped", func(t *testing.T) {
		store, mockDB := newTestStore(t)

		queryErr := errors.New("connection reset")
		mockDB.ExpectQuery("SELECT machine_id, action_id, score").WillReturnError(queryErr)

		_, err := store.LoadInteractions(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, queryErr)
	})
}

func TestPostgresInteractionStore_SaveInteractions(t *testing.T) {
	t.Run("copies the batch", func(t *testing.T) {
		store, mockDB := newTestStore(t)

		mockDB.ExpectCopyFrom(pgx.Identifier{"remediation_interactions"}, []string{"machine_id", "action_id", "score"}).
			WillReturnResult(2)

		stored, err := store.SaveInteractions(context.Background(), []models.Interaction{
			{MachineID: "M1", ActionID: 1, Score: 4.0},
			{MachineID: "M2", ActionID: 2, Score: 2.0},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), stored)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("empty batch skips the database", func(t *testing.T) {
		store, mockDB := newTestStore(t)

		stored, err := store.SaveInteractions(context.Background(), nil)
		require.NoError(t, err)
		assert.Zero(t, stored)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})
}
