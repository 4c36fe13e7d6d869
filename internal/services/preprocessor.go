package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"

	"github.com/temcen/remedy/internal/ml"
	"github.com/temcen/remedy/pkg/models"
)

var requiredColumns = []string{"machine_id", "action_id", "score"}

// InteractionPreprocessor turns raw tabular input into interaction records.
type InteractionPreprocessor struct {
	logger *logrus.Logger
}

func NewInteractionPreprocessor(logger *logrus.Logger) *InteractionPreprocessor {
	return &InteractionPreprocessor{
		logger: logger,
	}
}

// NormalizeMachineID trims surrounding whitespace and applies Unicode NFC so
// that visually identical host names map to one matrix row.
func NormalizeMachineID(id string) string {
	return norm.NFC.String(strings.TrimSpace(id))
}

// Normalize returns a copy of the records with normalized machine ids.
func (p *InteractionPreprocessor) Normalize(records []models.Interaction) []models.Interaction {
	out := make([]models.Interaction, len(records))
	changed := 0
	for i, r := range records {
		normalized := NormalizeMachineID(r.MachineID)
		if normalized != r.MachineID {
			changed++
		}
		out[i] = models.Interaction{MachineID: normalized, ActionID: r.ActionID, Score: r.Score}
	}

	if changed > 0 {
		p.logger.WithFields(logrus.Fields{
			"records":    len(records),
			"normalized": changed,
		}).Debug("Normalized machine identifiers")
	}
	return out
}

// ParseCSV reads a header row followed by interaction rows. The header must
// name machine_id, action_id and score; other columns are ignored.
func (p *InteractionPreprocessor) ParseCSV(r io.Reader) ([]models.Interaction, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ml.ErrEmptyDataset
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, &ml.SchemaError{Field: name, Row: -1}
		}
	}
	machineCol, actionCol, scoreCol := columns["machine_id"], columns["action_id"], columns["score"]

	var records []models.Interaction
	for row := 0; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", row, err)
		}

		field := func(col int) string {
			if col >= len(fields) {
				return ""
			}
			return strings.TrimSpace(fields[col])
		}

		machineID := NormalizeMachineID(field(machineCol))
		if machineID == "" {
			return nil, &ml.SchemaError{Field: "machine_id", Row: row}
		}

		actionID, err := parseActionID(field(actionCol))
		if err != nil {
			return nil, &ml.SchemaError{Field: "action_id", Row: row, Reason: err.Error()}
		}

		rawScore := field(scoreCol)
		if rawScore == "" {
			return nil, &ml.SchemaError{Field: "score", Row: row}
		}
		score, err := strconv.ParseFloat(rawScore, 64)
		if err != nil {
			return nil, &ml.SchemaError{Field: "score", Row: row, Reason: fmt.Sprintf("invalid number %q", rawScore)}
		}

		records = append(records, models.Interaction{MachineID: machineID, ActionID: actionID, Score: score})
	}

	p.logger.WithField("records", len(records)).Debug("Parsed interaction CSV")
	return records, nil
}

// parseActionID accepts integers, including integral floats such as "3.0".
func parseActionID(raw string) (int, error) {
	if raw == "" {
		return 0, errors.New("required field is missing")
	}
	if id, err := strconv.Atoi(raw); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("invalid action id %q", raw)
	}
	return int(f), nil
}
