package models

import "time"

// ProcessRun identifies one concrete execution attempt across the four
// hierarchy levels. Only RunID is assigned by the workflow engine; the
// package/realization/step ids are filled in by the execution layers as
// they start their own runs.
type ProcessRun struct {
	RunID            *int64 `json:"run_id,omitempty"`
	PackageRunID     *int64 `json:"package_run_id,omitempty"`
	RealizationRunID *int64 `json:"realization_run_id,omitempty"`
	StepRunID        *int64 `json:"step_run_id,omitempty"`

	WorkflowID int64      `json:"workflow_id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Successful bool       `json:"successful"`

	// Exclusive records whether the run actually held the workflow-level
	// lock, which may differ from the definition when it is edited mid-run.
	Exclusive bool `json:"exclusive"`
}

// NewProcessRun creates an open run for a workflow. The run id is assigned
// on persistence.
func NewProcessRun(workflowID int64, exclusive bool) *ProcessRun {
	return &ProcessRun{
		WorkflowID: workflowID,
		StartedAt:  time.Now().UTC(),
		Exclusive:  exclusive,
	}
}

// Open reports whether the run tuple is still populated, i.e. a run is in
// flight and a new Init must not start.
func (pr *ProcessRun) Open() bool {
	return pr != nil && pr.RunID != nil && pr.EndedAt == nil
}
