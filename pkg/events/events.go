// Package events defines event types and structures for run lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/chronoflow/chronoflow/pkg/models"
)

type EventType string

// Kafka topics.
const RunTopic = "chronoflow.runs"           // Topic for run lifecycle events
const IncidentTopic = "chronoflow.incidents" // Topic for operational incidents

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Run lifecycle events.
	RunScheduledEvent EventType = "run.scheduled"
	RunStartedEvent   EventType = "run.started"
	RunFinishedEvent  EventType = "run.finished"
	RunFailedEvent    EventType = "run.failed"
	RunRecoveredEvent EventType = "run.recovered"

	// Operational events.
	OperationalIncidentEvent EventType = "operational.incident"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID int64          `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// RunScheduled is published when the scheduler books a workflow for a future start.
type RunScheduled struct {
	BaseEvent

	ScheduleExecutionID int64     `json:"schedule_execution_id"`
	RequestedStart      time.Time `json:"requested_start"`
}

func (r RunScheduled) GetType() EventType {
	return RunScheduledEvent
}

// RunStarted is published once initialization completes and execution begins.
type RunStarted struct {
	BaseEvent

	RunID     int64     `json:"run_id"`
	PackageID int64     `json:"package_id"`
	Exclusive bool      `json:"exclusive"`
	StartedAt time.Time `json:"started_at"`
}

func (r RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunFinished struct {
	BaseEvent

	RunID    int64         `json:"run_id"`
	Duration time.Duration `json:"duration"`
}

func (r RunFinished) GetType() EventType {
	return RunFinishedEvent
}

type RunFailed struct {
	BaseEvent

	RunID    int64         `json:"run_id"`
	Error    string        `json:"error"`
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
}

func (r RunFailed) GetType() EventType {
	return RunFailedEvent
}

// RunRecovered is published when a fallback package completed cleanly after
// the master package failed. The run itself still counts as failed.
type RunRecovered struct {
	BaseEvent

	RunID             int64         `json:"run_id"`
	FallbackPackageID int64         `json:"fallback_package_id"`
	Duration          time.Duration `json:"duration"`
}

func (r RunRecovered) GetType() EventType {
	return RunRecoveredEvent
}

// OperationalIncident reports coordination anomalies that need operator attention,
// such as stale lock flags or a drain timeout during abort.
type OperationalIncident struct {
	BaseEvent

	Level   models.HierarchyLevel `json:"level"`
	Code    string                `json:"code"`
	Message string                `json:"message"`
}

func (o OperationalIncident) GetType() EventType {
	return OperationalIncidentEvent
}

func NewBaseEvent(eventType EventType, workflowID int64) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}
