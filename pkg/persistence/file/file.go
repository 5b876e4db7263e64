// Package file provides file-based persistence for development and tests.
// Each aggregate is stored as JSON documents under its own subdirectory.
package file

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/chronoflow/chronoflow/pkg/models"
	"github.com/chronoflow/chronoflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root string

	definitions *definitionRepository
	timeplans   *timeplanRepository
	executions  *scheduleExecutionRepository
	runs        *processRunRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	ids := &idAllocator{}

	return &Persistence{
		root:        cleanRoot,
		definitions: &definitionRepository{root: cleanRoot},
		timeplans:   &timeplanRepository{root: cleanRoot},
		executions:  &scheduleExecutionRepository{root: cleanRoot, ids: ids},
		runs:        &processRunRepository{root: cleanRoot, ids: ids},
	}
}

// Close performs any necessary cleanup. Nothing to release for files.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Definitions(ctx context.Context, active bool) ([]*models.WorkflowDefinition, error) {
	return fp.definitions.List(ctx, active)
}

func (fp *Persistence) SaveDefinition(ctx context.Context, definition *models.WorkflowDefinition) error {
	return fp.definitions.Save(ctx, definition)
}

func (fp *Persistence) TimeplanByID(ctx context.Context, id int64) (*models.Timeplan, error) {
	return fp.timeplans.GetByID(ctx, id)
}

func (fp *Persistence) SaveTimeplan(ctx context.Context, timeplan *models.Timeplan) error {
	return fp.timeplans.Save(ctx, timeplan)
}

// AppendTimeplanRow stores an additional row under an existing timeplan id,
// reproducing an ambiguous reference.
func (fp *Persistence) AppendTimeplanRow(id int64, timeplan *models.Timeplan) error {
	return fp.timeplans.Append(id, timeplan)
}

func (fp *Persistence) CreateScheduleExecution(ctx context.Context, execution *models.ScheduleExecution) error {
	return fp.executions.Create(ctx, execution)
}

func (fp *Persistence) UpdateScheduleExecution(ctx context.Context, execution *models.ScheduleExecution) error {
	return fp.executions.Update(ctx, execution)
}

func (fp *Persistence) ScheduleExecutionByID(ctx context.Context, id int64) (*models.ScheduleExecution, error) {
	return fp.executions.GetByID(ctx, id)
}

func (fp *Persistence) PendingScheduleExecutions(ctx context.Context) ([]*models.ScheduleExecution, error) {
	return fp.executions.Pending(ctx)
}

func (fp *Persistence) ExecutedWorkflowIDs(ctx context.Context) ([]int64, error) {
	return fp.executions.ExecutedWorkflowIDs(ctx)
}

func (fp *Persistence) CreateProcessRun(ctx context.Context, run *models.ProcessRun) error {
	return fp.runs.Create(ctx, run)
}

func (fp *Persistence) UpdateProcessRun(ctx context.Context, run *models.ProcessRun) error {
	return fp.runs.Update(ctx, run)
}

func (fp *Persistence) AppendRunAudit(ctx context.Context, audit *models.RunAudit) error {
	return fp.runs.AppendAudit(ctx, audit)
}

var _ persistence.Persistence = (*Persistence)(nil)

// idAllocator hands out process-local sequential ids shared by the row
// repositories. File persistence has no database sequence to lean on.
type idAllocator struct {
	mu   sync.Mutex
	next int64
}

func (a *idAllocator) Next(floor int64) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.next <= floor {
		a.next = floor + 1
	}

	id := a.next
	a.next++

	return id
}
