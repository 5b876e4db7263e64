package models

import "time"

// HierarchyLevel names one of the four nested execution levels.
type HierarchyLevel string

const (
	LevelWorkflow    HierarchyLevel = "workflow"
	LevelPackage     HierarchyLevel = "package"
	LevelRealization HierarchyLevel = "realization"
	LevelStep        HierarchyLevel = "step"
)

// RunAudit is an insert-only audit row recording one level's run outcome.
type RunAudit struct {
	ID         int64          `json:"id"`
	Level      HierarchyLevel `json:"level"`
	RunID      int64          `json:"run_id"`
	WorkflowID int64          `json:"workflow_id"`
	StartedAt  time.Time      `json:"started_at"`
	EndedAt    *time.Time     `json:"ended_at,omitempty"`
	Successful bool           `json:"successful"`
	Message    string         `json:"message,omitempty"`
}
