// Package workflow implements the per-workflow lifecycle state machine:
// scheduling, the concurrency-gated initialization protocol, supervised
// master package execution and the cascading abort path with optional
// fallback recovery.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/chronoflow/chronoflow/pkg/coordination"
	"github.com/chronoflow/chronoflow/pkg/eventbus"
	"github.com/chronoflow/chronoflow/pkg/events"
	"github.com/chronoflow/chronoflow/pkg/models"
	"github.com/chronoflow/chronoflow/pkg/persistence"
	"github.com/chronoflow/chronoflow/pkg/registry"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultDrainTimeout = 20 * time.Second
)

var (
	// ErrRunInFlight is returned when Init is called while the previous
	// run's process run tuple is still open.
	ErrRunInFlight = errors.New("a process run is already in flight")

	// ErrNotScheduled is returned when a lifecycle transition is attempted
	// from the wrong stage.
	ErrNotScheduled = errors.New("workflow is not in the scheduled stage")
)

// ConfigurationError marks definition or timeplan data problems. It is never
// retried; the run fails immediately.
type ConfigurationError struct {
	WorkflowID int64
	Err        error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for workflow %d: %v", e.WorkflowID, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Deps bundles the collaborators a workflow instance needs.
type Deps struct {
	Persistence persistence.Persistence
	Registry    *registry.Registry
	Coordinator coordination.Coordinator
	Bus         eventbus.EventPublisher
	Packages    PackageFactory
	Renderer    Renderer
	Logger      *slog.Logger
}

// Options tunes the cooperative waits of the lifecycle.
type Options struct {
	// PollInterval is the fixed interval of every cooperative wait.
	PollInterval time.Duration

	// DrainTimeout bounds one iteration of the abort task-drain loop. Tasks
	// still pending at the bound are logged before the next check.
	DrainTimeout time.Duration

	// ShutdownHook is invoked when the abort procedure itself fails, after
	// the operational incident has been published.
	ShutdownHook func(reason string)
}

func (o *Options) withDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}

	if o.DrainTimeout <= 0 {
		o.DrainTimeout = defaultDrainTimeout
	}
}

type trackedTask struct {
	name string
	done chan struct{}
}

// Workflow is one live instance per workflow id. Instances survive across
// runs; all run-scoped fields are reset at the end of every finish or abort
// cycle so the same instance can be driven through another lifecycle.
type Workflow struct {
	definition *models.WorkflowDefinition
	deps       Deps
	opts       Options
	logger     *slog.Logger

	// mu guards the tracking lists, the cancellation pair and the
	// run-scoped fields below. Reschedule runs on the scheduler's poll
	// goroutine while the dispatcher drives the lifecycle, so every
	// execution mutation must hold it. It is never held across a poll
	// or sleep.
	mu        sync.Mutex
	packages  []Package
	tasks     []*trackedTask
	tables    []string
	cancelCtx context.Context
	cancel    context.CancelFunc

	run            *models.ProcessRun
	execution      *models.ScheduleExecution
	requestedStart time.Time
	takeoverFrom   time.Time
	takeoverTo     time.Time
	exclusive      bool
	lockHeld       bool
	queued         bool
	slotHeld       bool
}

// NewWorkflow creates an idle instance for a definition.
func NewWorkflow(definition *models.WorkflowDefinition, deps Deps, opts Options) *Workflow {
	opts.withDefaults()

	if deps.Renderer == nil {
		deps.Renderer = NoopRenderer{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Workflow{
		definition: definition,
		deps:       deps,
		opts:       opts,
		logger:     deps.Logger.With("workflow_id", definition.ID),
		cancelCtx:  ctx,
		cancel:     cancel,
	}
}

func (w *Workflow) ID() int64 {
	return w.definition.ID
}

// Execution returns the schedule execution of the current or upcoming run.
func (w *Workflow) Execution() *models.ScheduleExecution {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.execution
}

// Create registers the workflow to schedule-execution mapping and moves the
// instance from idle to scheduled.
func (w *Workflow) Create(ctx context.Context, execution *models.ScheduleExecution) error {
	w.deps.Registry.Register(w)

	err := w.deps.Registry.AddMapping(w.ID(), execution.ID)
	if err != nil {
		w.deps.Registry.RemoveMapping(w.ID())
		w.deps.Registry.SetFailed(w.ID())

		return &ConfigurationError{WorkflowID: w.ID(), Err: err}
	}

	w.mu.Lock()
	w.execution = execution
	w.mu.Unlock()

	w.deps.Registry.SetScheduled(w.ID())

	event := events.RunScheduled{
		BaseEvent:           events.NewBaseEvent(events.RunScheduledEvent, w.ID()),
		ScheduleExecutionID: execution.ID,
		RequestedStart:      execution.RequestedStart,
	}

	err = w.deps.Bus.Publish(ctx, w.eventKey(), event)
	if err != nil {
		w.logger.WarnContext(ctx, "failed to publish run scheduled event", "error", err)
	}

	return nil
}

// Reschedule moves the pending execution to a new requested start, persisting
// the change. Only valid while the instance is still scheduled.
func (w *Workflow) Reschedule(ctx context.Context, requestedStart time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.deps.Registry.GetStage(w.ID()) != models.StageScheduled || w.execution == nil {
		return fmt.Errorf("workflow %d: %w", w.ID(), ErrNotScheduled)
	}

	w.execution.RequestedStart = requestedStart
	w.execution.UpdatedAt = time.Now().UTC()

	err := w.deps.Persistence.UpdateScheduleExecution(ctx, w.execution)
	if err != nil {
		return fmt.Errorf("failed to reschedule workflow %d: %w", w.ID(), err)
	}

	return nil
}

// Init runs the concurrency-gating phase once per run: it allocates the
// process run row, waits for the requested start, serializes against
// exclusive peers through the fair queue and lock flag, and acquires an
// execution slot. Any failure routes through Abort so no partial state
// survives.
func (w *Workflow) Init(ctx context.Context, requestedStart time.Time) error {
	err := w.init(ctx, requestedStart)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			w.logger.InfoContext(ctx, "initialization cancelled, aborting")
		} else {
			w.logger.ErrorContext(ctx, "initialization failed, aborting", "error", err)
		}

		w.Abort(ctx)

		return err
	}

	return nil
}

func (w *Workflow) init(ctx context.Context, requestedStart time.Time) error {
	w.mu.Lock()
	if w.run.Open() {
		w.mu.Unlock()

		return fmt.Errorf("workflow %d: %w", w.ID(), ErrRunInFlight)
	}

	w.exclusive = w.definition.Exclusive
	w.mu.Unlock()

	run := models.NewProcessRun(w.ID(), w.exclusive)

	err := w.deps.Persistence.CreateProcessRun(ctx, run)
	if err != nil {
		return fmt.Errorf("failed to allocate process run: %w", err)
	}

	w.mu.Lock()
	w.run = run
	w.takeoverFrom, w.takeoverTo = w.definition.TakeoverWindow(run.StartedAt)
	w.requestedStart = requestedStart
	w.mu.Unlock()

	w.deps.Registry.SetInitializing(w.ID())

	err = w.waitUntil(ctx, requestedStart)
	if err != nil {
		return err
	}

	level := models.LevelWorkflow

	announced, err := w.deps.Coordinator.IsAnnounced(ctx, level)
	if err != nil {
		return fmt.Errorf("failed to check lock flag: %w", err)
	}

	if announced && !w.lockHeld {
		err = w.enqueueAndWaitFront(ctx, level)
		if err != nil {
			return err
		}
	}

	if w.exclusive {
		err = w.announceLock(ctx, level)
		if err != nil {
			return err
		}
	} else {
		err = w.waitLockClear(ctx, level)
		if err != nil {
			return err
		}
	}

	err = w.deps.Coordinator.IncreaseNumExecuting(ctx, level, w.ID(), w.exclusive)
	if err != nil {
		return fmt.Errorf("failed to acquire execution slot: %w", err)
	}

	w.slotHeld = true

	if w.queued {
		err = w.deps.Coordinator.RemoveFromQueue(ctx, level, w.ID())
		if err != nil {
			return fmt.Errorf("failed to leave admission queue: %w", err)
		}

		w.queued = false
	}

	return nil
}

// enqueueAndWaitFront joins the level's fair queue and polls until this id is
// at the front. The queue entry is kept until the slot is acquired so later
// arrivals keep their place behind us.
func (w *Workflow) enqueueAndWaitFront(ctx context.Context, level coordination.Level) error {
	err := w.deps.Coordinator.AddToQueue(ctx, level, w.ID())
	if err != nil {
		return fmt.Errorf("failed to join admission queue: %w", err)
	}

	w.queued = true

	return w.pollUntil(ctx, func() (bool, error) {
		return w.deps.Coordinator.CheckQueueFirst(ctx, level, w.ID())
	})
}

// announceLock claims the level's exclusive flag, serializing through the
// fair queue when another holder beats us to it.
func (w *Workflow) announceLock(ctx context.Context, level coordination.Level) error {
	for {
		err := w.deps.Coordinator.AnnounceLock(ctx, level)
		if err == nil {
			w.lockHeld = true

			return nil
		}

		if !errors.Is(err, coordination.ErrLockHeld) {
			return fmt.Errorf("failed to announce lock: %w", err)
		}

		if !w.queued {
			err = w.enqueueAndWaitFront(ctx, level)
			if err != nil {
				return err
			}

			continue
		}

		err = w.sleep(ctx)
		if err != nil {
			return err
		}
	}
}

func (w *Workflow) waitLockClear(ctx context.Context, level coordination.Level) error {
	return w.pollUntil(ctx, func() (bool, error) {
		announced, err := w.deps.Coordinator.IsAnnounced(ctx, level)

		return !announced, err
	})
}

// Start transitions to executing, supervises the master package and calls
// Finish on clean completion. Package failure routes through Abort.
func (w *Workflow) Start(ctx context.Context) error {
	now := time.Now().UTC()

	w.deps.Registry.SetExecuting(w.ID())

	w.mu.Lock()
	if w.execution != nil {
		w.execution.ActualStart = &now
		w.execution.UpdatedAt = now

		err := w.deps.Persistence.UpdateScheduleExecution(ctx, w.execution)
		if err != nil {
			w.mu.Unlock()
			w.Abort(ctx)

			return fmt.Errorf("failed to record actual start: %w", err)
		}
	}
	w.mu.Unlock()

	event := events.RunStarted{
		BaseEvent: events.NewBaseEvent(events.RunStartedEvent, w.ID()),
		RunID:     w.runID(),
		PackageID: w.definition.MasterPackageID,
		Exclusive: w.exclusive,
		StartedAt: now,
	}

	err := w.deps.Bus.Publish(ctx, w.eventKey(), event)
	if err != nil {
		w.logger.WarnContext(ctx, "failed to publish run started event", "error", err)
	}

	err = w.runPackage(ctx, w.definition.MasterPackageID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			w.logger.InfoContext(ctx, "run cancelled, aborting")
		} else {
			w.logger.ErrorContext(ctx, "master package failed, aborting", "error", err)
		}

		w.Abort(ctx)

		return err
	}

	return w.Finish(ctx)
}

// runPackage constructs a package handle, tracks it and blocks until it
// completes under the instance's cancellation signal.
func (w *Workflow) runPackage(ctx context.Context, packageID int64) error {
	pkg, err := w.deps.Packages.Create(ctx, packageID, w)
	if err != nil {
		return &ConfigurationError{WorkflowID: w.ID(), Err: err}
	}

	w.mu.Lock()
	w.packages = append(w.packages, pkg)
	cancelCtx := w.cancelCtx
	w.mu.Unlock()

	result := make(chan error, 1)

	go func() {
		result <- pkg.Run(cancelCtx)
	}()

	select {
	case err = <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finish closes the run as successful: it persists end timestamps, releases
// the lock and slot, publishes the result and resets the instance for the
// next lifecycle.
func (w *Workflow) Finish(ctx context.Context) error {
	now := time.Now().UTC()

	w.mu.Lock()
	duration := w.runDuration(now)

	if w.run != nil {
		w.run.EndedAt = &now
		w.run.Successful = true

		err := w.deps.Persistence.UpdateProcessRun(ctx, w.run)
		if err != nil {
			w.mu.Unlock()

			return fmt.Errorf("failed to close process run: %w", err)
		}

		w.appendAudit(ctx, now, true, "run finished")
	}

	if w.execution != nil {
		w.execution.ActualEnd = &now
		w.execution.Executed = true
		w.execution.Successful = true
		w.execution.UpdatedAt = now

		err := w.deps.Persistence.UpdateScheduleExecution(ctx, w.execution)
		if err != nil {
			w.mu.Unlock()

			return fmt.Errorf("failed to close schedule execution: %w", err)
		}
	}
	w.mu.Unlock()

	w.releaseCoordination(ctx)

	event := events.RunFinished{
		BaseEvent: events.NewBaseEvent(events.RunFinishedEvent, w.ID()),
		RunID:     w.runID(),
		Duration:  duration,
	}

	err := w.deps.Bus.Publish(ctx, w.eventKey(), event)
	if err != nil {
		w.logger.WarnContext(ctx, "failed to publish run finished event", "error", err)
	}

	w.deps.Registry.RemoveMapping(w.ID())
	w.deps.Registry.MarkExecuted(w.ID())
	w.deps.Registry.SetFinished(w.ID())
	w.resetRunScope()

	w.logger.InfoContext(ctx, "run finished", "duration", duration)

	return nil
}

// Abort is the cascading failure path. It is idempotent and safe to invoke
// from any stage; a second call on an already failed and reset instance does
// nothing. Cancellation never short-circuits the cleanup, but a run ended by
// context cancellation is closed quietly: no fallback, no failure event.
func (w *Workflow) Abort(ctx context.Context) {
	w.mu.Lock()
	terminal := w.deps.Registry.GetStage(w.ID()).Terminal() && w.run == nil
	w.mu.Unlock()

	if terminal {
		w.logger.DebugContext(ctx, "abort skipped, instance already terminal and reset")

		return
	}

	defer func() {
		if r := recover(); r != nil {
			w.reportAbortFailure(ctx, fmt.Sprintf("panic during abort: %v", r))
		}
	}()

	now := time.Now().UTC()

	w.mu.Lock()
	duration := w.runDuration(now)
	w.mu.Unlock()

	cancelled := errors.Is(ctx.Err(), context.Canceled)

	w.cancelChildren(ctx)
	w.drainTasks(ctx)

	if tables := w.AccessedTables(); len(tables) > 0 {
		w.logger.WarnContext(ctx, "tables still claimed at abort", "tables", tables)
	}

	recovered := false
	if !cancelled && w.definition.FallbackPackageID != nil {
		recovered = w.runFallback(ctx, *w.definition.FallbackPackageID)
	}

	if w.run != nil {
		err := w.deps.Renderer.Render(ctx, w.run)
		if err != nil {
			w.logger.WarnContext(ctx, "failed to render run artifact", "error", err)
		}
	}

	if !cancelled {
		event := events.RunFailed{
			BaseEvent: events.NewBaseEvent(events.RunFailedEvent, w.ID()),
			RunID:     w.runID(),
			Stage:     string(w.deps.Registry.GetStage(w.ID())),
			Duration:  duration,
		}

		err := w.deps.Bus.Publish(ctx, w.eventKey(), event)
		if err != nil {
			w.logger.WarnContext(ctx, "failed to publish run failed event", "error", err)
		}
	}

	if recovered {
		w.publishRecovered(ctx, duration)
	}

	w.releaseCoordination(ctx)

	if w.deps.Registry.ExistsMapping(w.ID()) {
		w.deps.Registry.RemoveMapping(w.ID())
	}

	persistErr := w.persistFailure(ctx, now)
	if persistErr != nil {
		w.reportAbortFailure(ctx, persistErr.Error())
	}

	w.deps.Registry.SetFailed(w.ID())
	w.resetRunScope()

	if cancelled {
		w.logger.InfoContext(ctx, "run cancelled", "duration", duration)
	} else {
		w.logger.WarnContext(ctx, "run aborted", "duration", duration, "recovered", recovered)
	}
}

// cancelChildren raises the cancellation signal, requests abort on every
// tracked package and raises the signal again to cover packages registered
// in between.
func (w *Workflow) cancelChildren(ctx context.Context) {
	w.cancel()

	w.mu.Lock()
	packages := make([]Package, len(w.packages))
	copy(packages, w.packages)
	w.mu.Unlock()

	for _, pkg := range packages {
		err := pkg.Abort(ctx)
		if err != nil {
			w.logger.WarnContext(ctx, "child package abort failed", "package_id", pkg.ID(), "error", err)
		}
	}

	w.cancel()
}

// drainTasks blocks until every tracked task reached a terminal state,
// re-checking on a bounded interval so a wedged child is logged instead of
// hanging the abort silently.
func (w *Workflow) drainTasks(ctx context.Context) {
	for {
		w.mu.Lock()
		pending := make([]*trackedTask, 0, len(w.tasks))

		for _, task := range w.tasks {
			select {
			case <-task.done:
			default:
				pending = append(pending, task)
			}
		}
		w.mu.Unlock()

		if len(pending) == 0 {
			return
		}

		deadline := time.NewTimer(w.opts.DrainTimeout)

		drained := true

		for _, task := range pending {
			select {
			case <-task.done:
			case <-deadline.C:
				drained = false
			}

			if !drained {
				break
			}
		}

		deadline.Stop()

		if !drained {
			for _, task := range pending {
				select {
				case <-task.done:
				default:
					w.logger.WarnContext(ctx, "task still pending during abort drain", "task", task.name)
				}
			}
		}
	}
}

// runFallback executes the fallback package synchronously with a fresh
// cancellation signal. It reports whether the fallback completed cleanly;
// it never re-throws.
func (w *Workflow) runFallback(ctx context.Context, fallbackID int64) bool {
	w.mu.Lock()
	w.packages = nil
	w.cancel()
	w.cancelCtx, w.cancel = context.WithCancel(context.Background())
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "running fallback package", "package_id", fallbackID)

	err := w.runPackage(ctx, fallbackID)
	if err == nil {
		return true
	}

	w.logger.ErrorContext(ctx, "fallback package failed", "package_id", fallbackID, "error", err)
	w.cancelChildren(ctx)
	w.drainTasks(ctx)

	return false
}

func (w *Workflow) publishRecovered(ctx context.Context, duration time.Duration) {
	event := events.RunRecovered{
		BaseEvent:         events.NewBaseEvent(events.RunRecoveredEvent, w.ID()),
		RunID:             w.runID(),
		FallbackPackageID: *w.definition.FallbackPackageID,
		Duration:          duration,
	}

	err := w.deps.Bus.Publish(ctx, w.eventKey(), event)
	if err != nil {
		w.logger.WarnContext(ctx, "failed to publish run recovered event", "error", err)
	}
}

// releaseCoordination gives back every coordination resource this run still
// holds: the execution slot, the lock flag and the queue entry. Each release
// is guarded by its own flag so repeated calls never double-release.
func (w *Workflow) releaseCoordination(ctx context.Context) {
	level := models.LevelWorkflow

	if w.slotHeld {
		err := w.deps.Coordinator.DecreaseNumExecuting(ctx, level, w.exclusive)
		if err != nil {
			w.logger.WarnContext(ctx, "failed to release execution slot", "error", err)
		}

		w.slotHeld = false
	}

	if w.lockHeld {
		err := w.deps.Coordinator.RemoveLockFlag(ctx, level)
		if err != nil {
			w.logger.WarnContext(ctx, "failed to remove lock flag", "error", err)
		}

		w.lockHeld = false
	}

	if w.queued {
		err := w.deps.Coordinator.RemoveFromQueue(ctx, level, w.ID())
		if err != nil {
			w.logger.WarnContext(ctx, "failed to leave admission queue", "error", err)
		}

		w.queued = false
	}
}

func (w *Workflow) persistFailure(ctx context.Context, now time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.execution != nil {
		w.execution.ActualEnd = &now
		w.execution.Executed = true
		w.execution.Successful = false
		w.execution.UpdatedAt = now

		err := w.deps.Persistence.UpdateScheduleExecution(ctx, w.execution)
		if err != nil {
			return fmt.Errorf("failed to persist execution failure: %w", err)
		}
	}

	if w.run != nil && w.run.RunID != nil {
		w.run.EndedAt = &now
		w.run.Successful = false

		err := w.deps.Persistence.UpdateProcessRun(ctx, w.run)
		if err != nil {
			return fmt.Errorf("failed to persist run failure: %w", err)
		}

		w.appendAudit(ctx, now, false, "run aborted")
	}

	return nil
}

// reportAbortFailure escalates a failure of the abort procedure itself: an
// operational incident is published and the shutdown hook invoked.
func (w *Workflow) reportAbortFailure(ctx context.Context, reason string) {
	w.logger.ErrorContext(ctx, "abort procedure failed", "reason", reason)

	event := events.OperationalIncident{
		BaseEvent: events.NewBaseEvent(events.OperationalIncidentEvent, w.ID()),
		Level:     models.LevelWorkflow,
		Code:      "abort_failed",
		Message:   reason,
	}

	err := w.deps.Bus.Publish(ctx, w.eventKey(), event)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to publish operational incident", "error", err)
	}

	if w.opts.ShutdownHook != nil {
		w.opts.ShutdownHook(reason)
	}
}

// Neutralize releases a scheduled-but-never-started instance: its pending
// execution is marked executed without running and the mapping is dropped.
func (w *Workflow) Neutralize(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.deps.Registry.GetStage(w.ID()) != models.StageScheduled {
		return fmt.Errorf("workflow %d: %w", w.ID(), ErrNotScheduled)
	}

	if w.execution != nil {
		now := time.Now().UTC()
		w.execution.Executed = true
		w.execution.Successful = false
		w.execution.UpdatedAt = now

		err := w.deps.Persistence.UpdateScheduleExecution(ctx, w.execution)
		if err != nil {
			return fmt.Errorf("failed to neutralize execution: %w", err)
		}
	}

	w.deps.Registry.Neutralize(w.ID())
	w.execution = nil

	w.logger.InfoContext(ctx, "workflow neutralized")

	return nil
}

// resetRunScope clears every run-scoped field and issues a fresh
// cancellation signal so the instance is ready for another lifecycle.
func (w *Workflow) resetRunScope() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.packages = nil
	w.tasks = nil
	w.tables = nil
	w.run = nil
	w.execution = nil
	w.requestedStart = time.Time{}
	w.takeoverFrom = time.Time{}
	w.takeoverTo = time.Time{}

	w.cancel()
	w.cancelCtx, w.cancel = context.WithCancel(context.Background())
}

func (w *Workflow) appendAudit(ctx context.Context, endedAt time.Time, successful bool, message string) {
	audit := &models.RunAudit{
		Level:      models.LevelWorkflow,
		RunID:      *w.run.RunID,
		WorkflowID: w.ID(),
		StartedAt:  w.run.StartedAt,
		EndedAt:    &endedAt,
		Successful: successful,
		Message:    message,
	}

	err := w.deps.Persistence.AppendRunAudit(ctx, audit)
	if err != nil {
		w.logger.WarnContext(ctx, "failed to append run audit", "error", err)
	}
}

func (w *Workflow) runID() int64 {
	if w.run == nil || w.run.RunID == nil {
		return 0
	}

	return *w.run.RunID
}

func (w *Workflow) runDuration(now time.Time) time.Duration {
	if w.run == nil {
		return 0
	}

	return now.Sub(w.run.StartedAt)
}

func (w *Workflow) eventKey() string {
	return strconv.FormatInt(w.ID(), 10)
}

// waitUntil sleeps in fixed intervals until the wall clock reaches t.
func (w *Workflow) waitUntil(ctx context.Context, t time.Time) error {
	for time.Now().Before(t) {
		err := w.sleep(ctx)
		if err != nil {
			return err
		}
	}

	return nil
}

// pollUntil re-evaluates check on the fixed interval until it holds.
func (w *Workflow) pollUntil(ctx context.Context, check func() (bool, error)) error {
	for {
		ok, err := check()
		if err != nil {
			return err
		}

		if ok {
			return nil
		}

		err = w.sleep(ctx)
		if err != nil {
			return err
		}
	}
}

func (w *Workflow) sleep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(w.opts.PollInterval):
		return nil
	}
}
