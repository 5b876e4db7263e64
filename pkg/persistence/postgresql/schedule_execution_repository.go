package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chronoflow/chronoflow/pkg/models"
	"github.com/chronoflow/chronoflow/pkg/persistence"
)

// ScheduleExecutionRepository handles schedule execution rows.
type ScheduleExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewScheduleExecutionRepository creates a new schedule execution repository.
func NewScheduleExecutionRepository(db *sql.DB, logger *slog.Logger) *ScheduleExecutionRepository {
	return &ScheduleExecutionRepository{db: db, logger: logger}
}

// Create inserts a new execution row and assigns its id.
func (er *ScheduleExecutionRepository) Create(ctx context.Context, execution *models.ScheduleExecution) error {
	query := `
		INSERT INTO schedule_executions (
			workflow_id, timeplan_id, requested_start, actual_start,
			actual_end, executed, successful, datasource_id,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id
	`

	err := er.db.QueryRowContext(ctx, query,
		execution.WorkflowID,
		execution.TimeplanID,
		execution.RequestedStart,
		execution.ActualStart,
		execution.ActualEnd,
		execution.Executed,
		execution.Successful,
		execution.DatasourceID,
	).Scan(&execution.ID)
	if err != nil {
		return fmt.Errorf("failed to create schedule execution for workflow %d: %w", execution.WorkflowID, err)
	}

	return nil
}

// Update overwrites the mutable fields of an existing execution row.
func (er *ScheduleExecutionRepository) Update(ctx context.Context, execution *models.ScheduleExecution) error {
	query := `
		UPDATE schedule_executions SET
			requested_start = $2,
			actual_start = $3,
			actual_end = $4,
			executed = $5,
			successful = $6,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := er.db.ExecContext(ctx, query,
		execution.ID,
		execution.RequestedStart,
		execution.ActualStart,
		execution.ActualEnd,
		execution.Executed,
		execution.Successful,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule execution %d: %w", execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result for execution %d: %w", execution.ID, err)
	}

	if affected == 0 {
		return persistence.NewStoreError("UpdateScheduleExecution", execution.WorkflowID, persistence.ErrScheduleExecutionNotFound)
	}

	return nil
}

// GetByID returns one execution row.
func (er *ScheduleExecutionRepository) GetByID(ctx context.Context, id int64) (*models.ScheduleExecution, error) {
	query := `
		SELECT id, workflow_id, timeplan_id, requested_start, actual_start,
		       actual_end, executed, successful, datasource_id,
		       created_at, updated_at
		FROM schedule_executions
		WHERE id = $1
	`

	execution, err := scanExecution(er.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("ScheduleExecutionByID", 0, persistence.ErrScheduleExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan schedule execution %d: %w", id, err)
	}

	return execution, nil
}

// Pending returns all not-yet-started rows sorted by requested start
// ascending, the dispatch ordering contract.
func (er *ScheduleExecutionRepository) Pending(ctx context.Context) ([]*models.ScheduleExecution, error) {
	query := `
		SELECT id, workflow_id, timeplan_id, requested_start, actual_start,
		       actual_end, executed, successful, datasource_id,
		       created_at, updated_at
		FROM schedule_executions
		WHERE NOT executed AND actual_start IS NULL
		ORDER BY requested_start ASC
	`

	rows, err := er.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending schedule executions: %w", err)
	}
	defer rows.Close()

	executions := make([]*models.ScheduleExecution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending schedule execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending schedule executions: %w", err)
	}

	return executions, nil
}

// ExecutedWorkflowIDs returns the distinct workflow ids with at least one
// executed row.
func (er *ScheduleExecutionRepository) ExecutedWorkflowIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT DISTINCT workflow_id FROM schedule_executions WHERE executed`

	rows, err := er.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query executed workflow ids: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan executed workflow id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate executed workflow ids: %w", err)
	}

	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*models.ScheduleExecution, error) {
	var execution models.ScheduleExecution

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.TimeplanID,
		&execution.RequestedStart,
		&execution.ActualStart,
		&execution.ActualEnd,
		&execution.Executed,
		&execution.Successful,
		&execution.DatasourceID,
		&execution.CreatedAt,
		&execution.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &execution, nil
}
