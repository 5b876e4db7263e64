package models

import "time"

// ScheduleExecution is one persisted invocation attempt of a workflow. Rows
// are created by the scheduler when a workflow transitions from idle to
// scheduled, updated by the workflow as the run progresses and never deleted,
// only marked executed.
type ScheduleExecution struct {
	ID             int64      `json:"id"`
	WorkflowID     int64      `json:"workflow_id" validate:"required"`
	TimeplanID     int64      `json:"timeplan_id" validate:"required"`
	RequestedStart time.Time  `json:"requested_start" validate:"required"`
	ActualStart    *time.Time `json:"actual_start,omitempty"`
	ActualEnd      *time.Time `json:"actual_end,omitempty"`
	Executed       bool       `json:"executed"`
	Successful     bool       `json:"successful"`
	DatasourceID   int64      `json:"datasource_id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewScheduleExecution creates a pending execution row for a workflow.
func NewScheduleExecution(workflowID, timeplanID, datasourceID int64, requestedStart time.Time) *ScheduleExecution {
	now := time.Now().UTC()

	return &ScheduleExecution{
		WorkflowID:     workflowID,
		TimeplanID:     timeplanID,
		RequestedStart: requestedStart,
		DatasourceID:   datasourceID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Pending reports whether the execution has neither started nor been
// neutralized.
func (se *ScheduleExecution) Pending() bool {
	return !se.Executed && se.ActualStart == nil
}
