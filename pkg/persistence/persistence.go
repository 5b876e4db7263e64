// Package persistence provides the data storage abstraction for workflow
// definitions, timeplans, schedule executions and process runs.
package persistence

import (
	"context"

	"github.com/chronoflow/chronoflow/pkg/models"
)

type Persistence interface {
	// Definitions returns all workflow definitions matching the active flag.
	Definitions(ctx context.Context, active bool) ([]*models.WorkflowDefinition, error)
	SaveDefinition(ctx context.Context, definition *models.WorkflowDefinition) error

	// TimeplanByID returns the timeplan for a reference. A missing row
	// yields ErrTimeplanNotFound, more than one matching row
	// ErrTimeplanAmbiguous.
	TimeplanByID(ctx context.Context, id int64) (*models.Timeplan, error)
	SaveTimeplan(ctx context.Context, timeplan *models.Timeplan) error

	// CreateScheduleExecution persists a new execution row and assigns its id.
	CreateScheduleExecution(ctx context.Context, execution *models.ScheduleExecution) error
	UpdateScheduleExecution(ctx context.Context, execution *models.ScheduleExecution) error
	ScheduleExecutionByID(ctx context.Context, id int64) (*models.ScheduleExecution, error)

	// PendingScheduleExecutions returns all not-yet-started rows sorted by
	// requested start ascending (the dispatch ordering contract).
	PendingScheduleExecutions(ctx context.Context) ([]*models.ScheduleExecution, error)

	// ExecutedWorkflowIDs returns the ids of workflows with at least one
	// executed schedule execution.
	ExecutedWorkflowIDs(ctx context.Context) ([]int64, error)

	// CreateProcessRun persists a new run row and assigns its run id.
	CreateProcessRun(ctx context.Context, run *models.ProcessRun) error
	UpdateProcessRun(ctx context.Context, run *models.ProcessRun) error

	// AppendRunAudit stores an insert-only audit row for one level's run.
	AppendRunAudit(ctx context.Context, audit *models.RunAudit) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
