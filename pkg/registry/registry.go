// Package registry tracks live workflow instances: their stage, the mapping
// between a workflow and its pending schedule execution, and whether a
// workflow has ever executed.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chronoflow/chronoflow/pkg/models"
)

var (
	// ErrMappingExists is returned when registering a workflow that already
	// has a schedule-execution mapping.
	ErrMappingExists = errors.New("workflow already has a schedule execution mapping")

	// ErrWorkflowNotRegistered is returned when looking up an unknown
	// workflow instance.
	ErrWorkflowNotRegistered = errors.New("workflow instance not registered")
)

// Instance is the registry's view of a live workflow.
type Instance interface {
	ID() int64
}

// Registry is the in-memory instance registry. One live instance exists per
// workflow id; stages and mappings are run-scoped and reset each lifecycle.
type Registry struct {
	mu        sync.RWMutex
	mappings  map[int64]int64
	instances map[int64]Instance
	stages    map[int64]models.RunStage
	executed  map[int64]bool
}

func NewRegistry() *Registry {
	return &Registry{
		mappings:  make(map[int64]int64),
		instances: make(map[int64]Instance),
		stages:    make(map[int64]models.RunStage),
		executed:  make(map[int64]bool),
	}
}

// AddMapping registers the workflow to schedule-execution mapping for the
// upcoming run.
func (r *Registry) AddMapping(workflowID, scheduleExecutionID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.mappings[workflowID]; exists {
		return fmt.Errorf("workflow %d: %w", workflowID, ErrMappingExists)
	}

	r.mappings[workflowID] = scheduleExecutionID

	return nil
}

func (r *Registry) RemoveMapping(workflowID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.mappings, workflowID)
}

func (r *Registry) ExistsMapping(workflowID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.mappings[workflowID]

	return exists
}

// ScheduleExecutionID returns the mapped execution id for a workflow.
func (r *Registry) ScheduleExecutionID(workflowID int64) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.mappings[workflowID]

	return id, exists
}

// Register installs a live instance. Re-registering the same id replaces
// the handle but keeps stage and execution bookkeeping.
func (r *Registry) Register(instance Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.instances[instance.ID()] = instance

	if _, exists := r.stages[instance.ID()]; !exists {
		r.stages[instance.ID()] = models.StageIdle
	}
}

func (r *Registry) ExistsWorkflow(workflowID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.instances[workflowID]

	return exists
}

func (r *Registry) GetWorkflow(workflowID int64) (Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance, exists := r.instances[workflowID]
	if !exists {
		return nil, fmt.Errorf("workflow %d: %w", workflowID, ErrWorkflowNotRegistered)
	}

	return instance, nil
}

// GetStage returns the current lifecycle stage; unknown ids are Idle.
func (r *Registry) GetStage(workflowID int64) models.RunStage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stage, exists := r.stages[workflowID]
	if !exists {
		return models.StageIdle
	}

	return stage
}

func (r *Registry) SetScheduled(workflowID int64) {
	r.setStage(workflowID, models.StageScheduled)
}

func (r *Registry) SetInitializing(workflowID int64) {
	r.setStage(workflowID, models.StageInitializing)
}

func (r *Registry) SetExecuting(workflowID int64) {
	r.setStage(workflowID, models.StageExecuting)
}

func (r *Registry) SetFinished(workflowID int64) {
	r.setStage(workflowID, models.StageFinished)
}

func (r *Registry) SetFailed(workflowID int64) {
	r.setStage(workflowID, models.StageFailed)
}

// Neutralize releases a scheduled-but-never-started workflow: its mapping is
// dropped and its stage returns to Idle.
func (r *Registry) Neutralize(workflowID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.mappings, workflowID)
	r.stages[workflowID] = models.StageIdle
}

// WasExecutedOnce reports whether the workflow has ever completed a run.
// Feeds the timeplan resolver's run-immediately fast path.
func (r *Registry) WasExecutedOnce(workflowID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.executed[workflowID]
}

func (r *Registry) MarkExecuted(workflowID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.executed[workflowID] = true
}

// SeedExecuted primes the executed-once bookkeeping from persisted history,
// typically at process start.
func (r *Registry) SeedExecuted(workflowIDs []int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range workflowIDs {
		r.executed[id] = true
	}
}

func (r *Registry) setStage(workflowID int64, stage models.RunStage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stages[workflowID] = stage
}
