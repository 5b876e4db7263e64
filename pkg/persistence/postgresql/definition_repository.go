package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chronoflow/chronoflow/pkg/models"
	"github.com/chronoflow/chronoflow/pkg/persistence"
)

// DefinitionRepository handles workflow definition and timeplan rows.
type DefinitionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDefinitionRepository creates a new definition repository.
func NewDefinitionRepository(db *sql.DB, logger *slog.Logger) *DefinitionRepository {
	return &DefinitionRepository{db: db, logger: logger}
}

// List returns all definitions matching the active flag, ordered by id.
func (dr *DefinitionRepository) List(ctx context.Context, active bool) ([]*models.WorkflowDefinition, error) {
	query := `
		SELECT id, name, master_package_id, fallback_package_id, exclusive,
		       takeover_from, takeover_to, takeover_days, timeplan_id,
		       datasource_id, active, created_at, updated_at
		FROM workflow_definitions
		WHERE active = $1
		ORDER BY id
	`

	rows, err := dr.db.QueryContext(ctx, query, active)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow definitions: %w", err)
	}
	defer rows.Close()

	definitions := make([]*models.WorkflowDefinition, 0)

	for rows.Next() {
		definition, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow definition: %w", err)
		}

		definitions = append(definitions, definition)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workflow definitions: %w", err)
	}

	return definitions, nil
}

// Save upserts a workflow definition.
func (dr *DefinitionRepository) Save(ctx context.Context, definition *models.WorkflowDefinition) error {
	if err := definition.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_definitions (
			id, name, master_package_id, fallback_package_id, exclusive,
			takeover_from, takeover_to, takeover_days, timeplan_id,
			datasource_id, active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			master_package_id = EXCLUDED.master_package_id,
			fallback_package_id = EXCLUDED.fallback_package_id,
			exclusive = EXCLUDED.exclusive,
			takeover_from = EXCLUDED.takeover_from,
			takeover_to = EXCLUDED.takeover_to,
			takeover_days = EXCLUDED.takeover_days,
			timeplan_id = EXCLUDED.timeplan_id,
			datasource_id = EXCLUDED.datasource_id,
			active = EXCLUDED.active,
			updated_at = NOW()
	`

	_, err := dr.db.ExecContext(ctx, query,
		definition.ID,
		definition.Name,
		definition.MasterPackageID,
		definition.FallbackPackageID,
		definition.Exclusive,
		definition.TakeoverFrom,
		definition.TakeoverTo,
		definition.TakeoverDays,
		definition.TimeplanID,
		definition.DatasourceID,
		definition.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow definition %d: %w", definition.ID, err)
	}

	return nil
}

// TimeplanByID returns the timeplan for a reference id. Zero rows yields
// ErrTimeplanNotFound, more than one ErrTimeplanAmbiguous.
func (dr *DefinitionRepository) TimeplanByID(ctx context.Context, id int64) (*models.Timeplan, error) {
	query := `
		SELECT id, kind, start_at, run_immediately, end_at, weekdays, months,
		       last_day_of_month, week_of_month, day_repetitions,
		       week_repetitions, expression, created_at, updated_at
		FROM timeplans
		WHERE id = $1
	`

	rows, err := dr.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeplan %d: %w", id, err)
	}
	defer rows.Close()

	matches := make([]*models.Timeplan, 0, 1)

	for rows.Next() {
		timeplan, err := scanTimeplan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan timeplan %d: %w", id, err)
		}

		matches = append(matches, timeplan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate timeplan rows: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, persistence.NewStoreError("TimeplanByID", 0, persistence.ErrTimeplanNotFound)
	case 1:
		return matches[0], nil
	default:
		return nil, persistence.NewStoreError("TimeplanByID", 0, persistence.ErrTimeplanAmbiguous)
	}
}

// SaveTimeplan replaces the rows stored for the timeplan's reference id.
func (dr *DefinitionRepository) SaveTimeplan(ctx context.Context, timeplan *models.Timeplan) error {
	weekdays, err := json.Marshal(timeplan.Weekdays)
	if err != nil {
		return fmt.Errorf("failed to marshal weekdays: %w", err)
	}

	months, err := json.Marshal(timeplan.Months)
	if err != nil {
		return fmt.Errorf("failed to marshal months: %w", err)
	}

	transaction, err := dr.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin timeplan transaction: %w", err)
	}

	_, err = transaction.ExecContext(ctx, "DELETE FROM timeplans WHERE id = $1", timeplan.ID)
	if err != nil {
		_ = transaction.Rollback()

		return fmt.Errorf("failed to replace timeplan %d: %w", timeplan.ID, err)
	}

	query := `
		INSERT INTO timeplans (
			id, kind, start_at, run_immediately, end_at, weekdays, months,
			last_day_of_month, week_of_month, day_repetitions,
			week_repetitions, expression, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
	`

	_, err = transaction.ExecContext(ctx, query,
		timeplan.ID,
		timeplan.Kind,
		timeplan.Start,
		timeplan.RunImmediately,
		timeplan.End,
		weekdays,
		months,
		timeplan.LastDayOfMonth,
		timeplan.WeekOfMonth,
		timeplan.DayRepetitions,
		timeplan.WeekRepetitions,
		timeplan.Expression,
	)
	if err != nil {
		_ = transaction.Rollback()

		return fmt.Errorf("failed to save timeplan %d: %w", timeplan.ID, err)
	}

	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("failed to commit timeplan %d: %w", timeplan.ID, err)
	}

	return nil
}

func scanDefinition(rows *sql.Rows) (*models.WorkflowDefinition, error) {
	var definition models.WorkflowDefinition

	err := rows.Scan(
		&definition.ID,
		&definition.Name,
		&definition.MasterPackageID,
		&definition.FallbackPackageID,
		&definition.Exclusive,
		&definition.TakeoverFrom,
		&definition.TakeoverTo,
		&definition.TakeoverDays,
		&definition.TimeplanID,
		&definition.DatasourceID,
		&definition.Active,
		&definition.CreatedAt,
		&definition.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrDefinitionNotFound
		}

		return nil, err
	}

	return &definition, nil
}

func scanTimeplan(rows *sql.Rows) (*models.Timeplan, error) {
	var (
		timeplan models.Timeplan
		weekdays []byte
		months   []byte
	)

	err := rows.Scan(
		&timeplan.ID,
		&timeplan.Kind,
		&timeplan.Start,
		&timeplan.RunImmediately,
		&timeplan.End,
		&weekdays,
		&months,
		&timeplan.LastDayOfMonth,
		&timeplan.WeekOfMonth,
		&timeplan.DayRepetitions,
		&timeplan.WeekRepetitions,
		&timeplan.Expression,
		&timeplan.CreatedAt,
		&timeplan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(weekdays, &timeplan.Weekdays); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weekdays: %w", err)
	}

	if err := json.Unmarshal(months, &timeplan.Months); err != nil {
		return nil, fmt.Errorf("failed to unmarshal months: %w", err)
	}

	return &timeplan, nil
}
