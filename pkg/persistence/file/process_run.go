package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chronoflow/chronoflow/pkg/models"
	"github.com/chronoflow/chronoflow/pkg/persistence"
)

// processRunRepository stores run rows and appends level audit rows.
type processRunRepository struct {
	root string
	ids  *idAllocator
}

func (rr *processRunRepository) runDir() string {
	return filepath.Join(rr.root, "runs")
}

func (rr *processRunRepository) auditDir() string {
	return filepath.Join(rr.root, "audits")
}

func (rr *processRunRepository) runPath(runID int64) string {
	return filepath.Join(rr.runDir(), strconv.FormatInt(runID, 10)+".json")
}

func (rr *processRunRepository) Create(ctx context.Context, run *models.ProcessRun) error {
	if err := os.MkdirAll(rr.runDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create runs directory: %w", err)
	}

	floor, err := rr.maxRunID(ctx)
	if err != nil {
		return err
	}

	runID := rr.ids.Next(floor)
	run.RunID = &runID

	return rr.write(run)
}

func (rr *processRunRepository) Update(_ context.Context, run *models.ProcessRun) error {
	if run.RunID == nil {
		return persistence.NewStoreError("UpdateProcessRun", run.WorkflowID, persistence.ErrProcessRunNotFound)
	}

	if _, err := os.Stat(rr.runPath(*run.RunID)); os.IsNotExist(err) {
		return persistence.NewStoreError("UpdateProcessRun", run.WorkflowID, persistence.ErrProcessRunNotFound)
	}

	return rr.write(run)
}

func (rr *processRunRepository) AppendAudit(_ context.Context, audit *models.RunAudit) error {
	if err := os.MkdirAll(rr.auditDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create audits directory: %w", err)
	}

	audit.ID = time.Now().UTC().UnixNano()

	data, err := json.MarshalIndent(audit, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode audit row: %w", err)
	}

	name := string(audit.Level) + "-" + strconv.FormatInt(audit.ID, 10) + ".json"

	if err := os.WriteFile(filepath.Join(rr.auditDir(), name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write audit row: %w", err)
	}

	return nil
}

func (rr *processRunRepository) maxRunID(_ context.Context) (int64, error) {
	entries, err := fs.Glob(os.DirFS(rr.runDir()), "*.json")
	if err != nil {
		return 0, fmt.Errorf("failed to list run files: %w", err)
	}

	var max int64

	for _, entry := range entries {
		id, err := strconv.ParseInt(strings.TrimSuffix(entry, ".json"), 10, 64)
		if err != nil {
			continue
		}

		if id > max {
			max = id
		}
	}

	return max, nil
}

func (rr *processRunRepository) write(run *models.ProcessRun) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run %d: %w", *run.RunID, err)
	}

	if err := os.WriteFile(rr.runPath(*run.RunID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write run %d: %w", *run.RunID, err)
	}

	return nil
}
