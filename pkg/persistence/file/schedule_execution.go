package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/chronoflow/chronoflow/pkg/models"
	"github.com/chronoflow/chronoflow/pkg/persistence"
)

// scheduleExecutionRepository stores execution rows as one JSON file per id.
type scheduleExecutionRepository struct {
	root string
	ids  *idAllocator
}

func (er *scheduleExecutionRepository) dir() string {
	return filepath.Join(er.root, "executions")
}

func (er *scheduleExecutionRepository) path(id int64) string {
	return filepath.Join(er.dir(), strconv.FormatInt(id, 10)+".json")
}

func (er *scheduleExecutionRepository) Create(ctx context.Context, execution *models.ScheduleExecution) error {
	if err := os.MkdirAll(er.dir(), 0o755); err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	floor, err := er.maxID(ctx)
	if err != nil {
		return err
	}

	execution.ID = er.ids.Next(floor)
	execution.UpdatedAt = time.Now().UTC()

	return er.write(execution)
}

func (er *scheduleExecutionRepository) Update(_ context.Context, execution *models.ScheduleExecution) error {
	if _, err := os.Stat(er.path(execution.ID)); os.IsNotExist(err) {
		return persistence.NewStoreError("UpdateScheduleExecution", execution.WorkflowID, persistence.ErrScheduleExecutionNotFound)
	}

	execution.UpdatedAt = time.Now().UTC()

	return er.write(execution)
}

func (er *scheduleExecutionRepository) GetByID(_ context.Context, id int64) (*models.ScheduleExecution, error) {
	data, err := os.ReadFile(er.path(id))
	if os.IsNotExist(err) {
		return nil, persistence.NewStoreError("ScheduleExecutionByID", 0, persistence.ErrScheduleExecutionNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read execution %d: %w", id, err)
	}

	var execution models.ScheduleExecution
	if err := json.Unmarshal(data, &execution); err != nil {
		return nil, fmt.Errorf("failed to decode execution %d: %w", id, err)
	}

	return &execution, nil
}

// Pending returns all not-yet-started rows sorted by requested start
// ascending.
func (er *scheduleExecutionRepository) Pending(ctx context.Context) ([]*models.ScheduleExecution, error) {
	all, err := er.list(ctx)
	if err != nil {
		return nil, err
	}

	pending := make([]*models.ScheduleExecution, 0, len(all))

	for _, execution := range all {
		if execution.Pending() {
			pending = append(pending, execution)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].RequestedStart.Before(pending[j].RequestedStart)
	})

	return pending, nil
}

func (er *scheduleExecutionRepository) ExecutedWorkflowIDs(ctx context.Context) ([]int64, error) {
	all, err := er.list(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{})
	ids := make([]int64, 0)

	for _, execution := range all {
		if !execution.Executed {
			continue
		}

		if _, done := seen[execution.WorkflowID]; done {
			continue
		}

		seen[execution.WorkflowID] = struct{}{}
		ids = append(ids, execution.WorkflowID)
	}

	return ids, nil
}

func (er *scheduleExecutionRepository) list(_ context.Context) ([]*models.ScheduleExecution, error) {
	if err := os.MkdirAll(er.dir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create executions directory: %w", err)
	}

	entries, err := fs.Glob(os.DirFS(er.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*models.ScheduleExecution, 0, len(entries))

	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(er.dir(), entry))
		if err != nil {
			return nil, fmt.Errorf("failed to read execution file %s: %w", entry, err)
		}

		var execution models.ScheduleExecution
		if err := json.Unmarshal(data, &execution); err != nil {
			return nil, fmt.Errorf("failed to decode execution file %s: %w", entry, err)
		}

		executions = append(executions, &execution)
	}

	return executions, nil
}

func (er *scheduleExecutionRepository) maxID(ctx context.Context) (int64, error) {
	all, err := er.list(ctx)
	if err != nil {
		return 0, err
	}

	var max int64
	for _, execution := range all {
		if execution.ID > max {
			max = execution.ID
		}
	}

	return max, nil
}

func (er *scheduleExecutionRepository) write(execution *models.ScheduleExecution) error {
	data, err := json.MarshalIndent(execution, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode execution %d: %w", execution.ID, err)
	}

	if err := os.WriteFile(er.path(execution.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write execution %d: %w", execution.ID, err)
	}

	return nil
}
