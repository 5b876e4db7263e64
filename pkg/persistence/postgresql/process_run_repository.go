package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/chronoflow/chronoflow/pkg/models"
	"github.com/chronoflow/chronoflow/pkg/persistence"
)

// ProcessRunRepository handles process run and audit rows.
type ProcessRunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewProcessRunRepository creates a new process run repository.
func NewProcessRunRepository(db *sql.DB, logger *slog.Logger) *ProcessRunRepository {
	return &ProcessRunRepository{db: db, logger: logger}
}

// Create inserts a new run row and assigns its run id.
func (rr *ProcessRunRepository) Create(ctx context.Context, run *models.ProcessRun) error {
	query := `
		INSERT INTO process_runs (
			package_run_id, realization_run_id, step_run_id, workflow_id,
			started_at, ended_at, successful, exclusive
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING run_id
	`

	var runID int64

	err := rr.db.QueryRowContext(ctx, query,
		run.PackageRunID,
		run.RealizationRunID,
		run.StepRunID,
		run.WorkflowID,
		run.StartedAt,
		run.EndedAt,
		run.Successful,
		run.Exclusive,
	).Scan(&runID)
	if err != nil {
		return fmt.Errorf("failed to create process run for workflow %d: %w", run.WorkflowID, err)
	}

	run.RunID = &runID

	return nil
}

// Update overwrites the mutable fields of an existing run row.
func (rr *ProcessRunRepository) Update(ctx context.Context, run *models.ProcessRun) error {
	if run.RunID == nil {
		return persistence.NewStoreError("UpdateProcessRun", run.WorkflowID, persistence.ErrProcessRunNotFound)
	}

	query := `
		UPDATE process_runs SET
			package_run_id = $2,
			realization_run_id = $3,
			step_run_id = $4,
			ended_at = $5,
			successful = $6,
			exclusive = $7
		WHERE run_id = $1
	`

	result, err := rr.db.ExecContext(ctx, query,
		*run.RunID,
		run.PackageRunID,
		run.RealizationRunID,
		run.StepRunID,
		run.EndedAt,
		run.Successful,
		run.Exclusive,
	)
	if err != nil {
		return fmt.Errorf("failed to update process run %d: %w", *run.RunID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result for run %d: %w", *run.RunID, err)
	}

	if affected == 0 {
		return persistence.NewStoreError("UpdateProcessRun", run.WorkflowID, persistence.ErrProcessRunNotFound)
	}

	return nil
}

// AppendAudit stores an insert-only audit row.
func (rr *ProcessRunRepository) AppendAudit(ctx context.Context, audit *models.RunAudit) error {
	query := `
		INSERT INTO run_audits (
			level, run_id, workflow_id, started_at, ended_at,
			successful, message
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := rr.db.QueryRowContext(ctx, query,
		audit.Level,
		audit.RunID,
		audit.WorkflowID,
		audit.StartedAt,
		audit.EndedAt,
		audit.Successful,
		audit.Message,
	).Scan(&audit.ID)
	if err != nil {
		return fmt.Errorf("failed to append run audit for workflow %d: %w", audit.WorkflowID, err)
	}

	return nil
}
