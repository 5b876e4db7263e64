// Package scheduler drives workflow instances through their recurrences: it
// polls the active definitions, resolves each next execution through the
// timeplan resolver and keeps one live workflow instance per definition in
// the scheduled stage.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chronoflow/chronoflow/pkg/models"
	"github.com/chronoflow/chronoflow/pkg/persistence"
	"github.com/chronoflow/chronoflow/pkg/registry"
	"github.com/chronoflow/chronoflow/pkg/timeplan"
	"github.com/chronoflow/chronoflow/pkg/workflow"
)

const defaultPollInterval = 1 * time.Minute

// Scheduler owns the poll loop. Workflow instances it creates are registered
// in the shared registry and reused across recurrences.
type Scheduler struct {
	persistence  persistence.Persistence
	registry     *registry.Registry
	deps         workflow.Deps
	opts         workflow.Options
	logger       *slog.Logger
	pollInterval time.Duration

	// processing is the per-id guard: overlapping polls skip, never block,
	// a workflow id another poll is still working on.
	processingMu sync.Mutex
	processing   map[int64]bool

	instancesMu sync.Mutex
	instances   map[int64]*workflow.Workflow

	dispatcher *Dispatcher

	mu      sync.RWMutex
	ticker  *time.Ticker
	done    chan bool
	started bool
}

// NewScheduler creates a scheduler. The workflow deps are handed unchanged
// to every instance it constructs.
func NewScheduler(deps workflow.Deps, opts workflow.Options, pollInterval time.Duration) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	s := &Scheduler{
		persistence:  deps.Persistence,
		registry:     deps.Registry,
		deps:         deps,
		opts:         opts,
		logger:       deps.Logger.With("module", "scheduler"),
		pollInterval: pollInterval,
		processing:   make(map[int64]bool),
		instances:    make(map[int64]*workflow.Workflow),
	}

	s.dispatcher = NewDispatcher(s, deps.Logger)

	return s
}

// Instance returns the live workflow instance for a definition id.
func (s *Scheduler) Instance(workflowID int64) (*workflow.Workflow, bool) {
	s.instancesMu.Lock()
	defer s.instancesMu.Unlock()

	instance, ok := s.instances[workflowID]

	return instance, ok
}

// Poll runs one scheduling pass and returns the pending executions sorted by
// requested start ascending. Per-definition failures are isolated; the pass
// continues and the errors are joined.
func (s *Scheduler) Poll(ctx context.Context) ([]*models.ScheduleExecution, error) {
	var errs []error

	active, err := s.persistence.Definitions(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active definitions: %w", err)
	}

	for _, definition := range active {
		if !s.claim(definition.ID) {
			continue
		}

		err = s.processActive(ctx, definition)
		s.release(definition.ID)

		if err != nil {
			errs = append(errs, fmt.Errorf("workflow %d: %w", definition.ID, err))
		}
	}

	inactive, err := s.persistence.Definitions(ctx, false)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to fetch inactive definitions: %w", err))
	}

	for _, definition := range inactive {
		if !s.claim(definition.ID) {
			continue
		}

		err = s.neutralizeInactive(ctx, definition)
		s.release(definition.ID)

		if err != nil {
			errs = append(errs, fmt.Errorf("workflow %d: %w", definition.ID, err))
		}
	}

	pending, err := s.persistence.PendingScheduleExecutions(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to fetch pending executions: %w", err))
	}

	return pending, errors.Join(errs...)
}

// processActive applies the per-stage scheduling rule for one active
// definition.
func (s *Scheduler) processActive(ctx context.Context, definition *models.WorkflowDefinition) error {
	instance, exists := s.Instance(definition.ID)
	if !exists {
		return s.schedule(ctx, definition, nil)
	}

	stage := s.registry.GetStage(definition.ID)

	switch {
	case stage.Terminal() || stage == models.StageIdle:
		return s.schedule(ctx, definition, instance)
	case stage == models.StageScheduled:
		return s.reschedule(ctx, definition, instance)
	default:
		// Initializing or executing, nothing to do until the run ends.
		return nil
	}
}

// schedule resolves the next execution, persists its row and drives a new or
// reused instance into the scheduled stage.
func (s *Scheduler) schedule(ctx context.Context, definition *models.WorkflowDefinition, instance *workflow.Workflow) error {
	next, err := s.resolveNext(ctx, definition)
	if err != nil {
		return err
	}

	execution := models.NewScheduleExecution(definition.ID, definition.TimeplanID, definition.DatasourceID, next)

	err = s.persistence.CreateScheduleExecution(ctx, execution)
	if err != nil {
		return fmt.Errorf("failed to create schedule execution: %w", err)
	}

	if instance == nil {
		instance = workflow.NewWorkflow(definition, s.deps, s.opts)

		s.instancesMu.Lock()
		s.instances[definition.ID] = instance
		s.instancesMu.Unlock()
	}

	err = instance.Create(ctx, execution)
	if err != nil {
		return fmt.Errorf("failed to schedule workflow: %w", err)
	}

	s.logger.InfoContext(ctx, "workflow scheduled",
		"workflow_id", definition.ID, "requested_start", next)

	return nil
}

// reschedule recomputes the next execution for an already scheduled instance
// and moves its pending row in place when a timeplan edit changed the time.
func (s *Scheduler) reschedule(ctx context.Context, definition *models.WorkflowDefinition, instance *workflow.Workflow) error {
	next, err := s.resolveNext(ctx, definition)
	if err != nil {
		return err
	}

	execution := instance.Execution()
	if execution == nil || execution.RequestedStart.Equal(next) {
		return nil
	}

	err = instance.Reschedule(ctx, next)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "workflow rescheduled",
		"workflow_id", definition.ID, "requested_start", next)

	return nil
}

// neutralizeInactive releases a deactivated definition's scheduled instance.
func (s *Scheduler) neutralizeInactive(ctx context.Context, definition *models.WorkflowDefinition) error {
	instance, exists := s.Instance(definition.ID)
	if !exists {
		return nil
	}

	if s.registry.GetStage(definition.ID) != models.StageScheduled {
		return nil
	}

	err := instance.Neutralize(ctx)
	if err != nil {
		return fmt.Errorf("failed to neutralize workflow: %w", err)
	}

	return nil
}

func (s *Scheduler) resolveNext(ctx context.Context, definition *models.WorkflowDefinition) (time.Time, error) {
	tp, err := s.persistence.TimeplanByID(ctx, definition.TimeplanID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to resolve timeplan %d: %w", definition.TimeplanID, err)
	}

	executedOnce := s.registry.WasExecutedOnce(definition.ID)

	next, err := timeplan.NextExecution(tp, executedOnce, time.Now().UTC())
	if err != nil {
		return time.Time{}, err
	}

	return next, nil
}

// claim takes the per-id processing guard, reporting false when another poll
// holds it.
func (s *Scheduler) claim(workflowID int64) bool {
	s.processingMu.Lock()
	defer s.processingMu.Unlock()

	if s.processing[workflowID] {
		return false
	}

	s.processing[workflowID] = true

	return true
}

func (s *Scheduler) release(workflowID int64) {
	s.processingMu.Lock()
	defer s.processingMu.Unlock()

	delete(s.processing, workflowID)
}

// Start begins the periodic poll loop. Pending executions from each pass are
// handed to the dispatcher.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.InfoContext(ctx, "starting scheduler", "poll_interval", s.pollInterval)

	executed, err := s.persistence.ExecutedWorkflowIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed execution history: %w", err)
	}

	s.registry.SeedExecuted(executed)

	s.ticker = time.NewTicker(s.pollInterval)
	s.done = make(chan bool)
	s.started = true

	go s.loop(ctx)

	return nil
}

// Stop halts the poll loop.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.InfoContext(ctx, "stopping scheduler")

	if s.ticker != nil {
		s.ticker.Stop()
	}

	select {
	case s.done <- true:
	default:
	}

	s.started = false

	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-s.ticker.C:
			pending, err := s.Poll(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "poll pass reported errors", "error", err)
			}

			s.dispatcher.Dispatch(ctx, pending)
		}
	}
}
