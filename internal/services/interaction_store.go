package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/temcen/remedy/pkg/models"
)

const interactionsTable = "remediation_interactions"

// InteractionQuerier is the subset of pgxpool.Pool used by the store.
type InteractionQuerier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// PostgresInteractionStore keeps interaction records in PostgreSQL.
type PostgresInteractionStore struct {
	db     InteractionQuerier
	logger *logrus.Logger
}

func NewPostgresInteractionStore(db InteractionQuerier, logger *logrus.Logger) *PostgresInteractionStore {
	return &PostgresInteractionStore{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the interactions table when it does not exist.
func (s *PostgresInteractionStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS remediation_interactions (
			id          BIGSERIAL PRIMARY KEY,
			machine_id  TEXT NOT NULL,
			action_id   INTEGER NOT NULL,
			score       DOUBLE PRECISION NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create interactions table: %w", err)
	}
	return nil
}

func (s *PostgresInteractionStore) LoadInteractions(ctx context.Context) ([]models.Interaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT machine_id, action_id, score
		FROM remediation_interactions
		ORDER BY machine_id, action_id, id`)
	if err != nil {
		return nil, fmt.Errorf("interactions query failed: %w", err)
	}
	defer rows.Close()

	var records []models.Interaction
	for rows.Next() {
		var record models.Interaction
		if err := rows.Scan(&record.MachineID, &record.ActionID, &record.Score); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read interactions: %w", err)
	}

	s.logger.WithField("records", len(records)).Debug("Interactions loaded")
	return records, nil
}

func (s *PostgresInteractionStore) SaveInteractions(ctx context.Context, records []models.Interaction) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	copied, err := s.db.CopyFrom(ctx,
		pgx.Identifier{interactionsTable},
		[]string{"machine_id", "action_id", "score"},
		pgx.CopyFromSlice(len(records), func(i int) ([]interface{}, error) {
			return []interface{}{records[i].MachineID, records[i].ActionID, records[i].Score}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to store interactions: %w", err)
	}

	s.logger.WithField("records", copied).Info("Interactions stored")
	return copied, nil
}
