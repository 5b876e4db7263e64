package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronoflow/chronoflow/pkg/coordination"
	"github.com/chronoflow/chronoflow/pkg/eventbus"
	"github.com/chronoflow/chronoflow/pkg/log"
	"github.com/chronoflow/chronoflow/pkg/models"
	"github.com/chronoflow/chronoflow/pkg/persistence/file"
	"github.com/chronoflow/chronoflow/pkg/registry"
	"github.com/chronoflow/chronoflow/pkg/workflow"
)

type sinkBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (b *sinkBus) Publish(_ context.Context, _ string, event eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, event)

	return nil
}

type schedulerEnv struct {
	persistence *file.Persistence
	registry    *registry.Registry
	scheduler   *Scheduler
}

func newSchedulerEnv(t *testing.T) *schedulerEnv {
	t.Helper()

	fp := file.NewPersistence(t.TempDir())
	reg := registry.NewRegistry()

	deps := workflow.Deps{
		Persistence: fp,
		Registry:    reg,
		Coordinator: coordination.NewMemoryCoordinator(4),
		Bus:         &sinkBus{},
		Packages: workflow.FactoryFunc(func(_ context.Context, packageID int64, _ workflow.Host) (workflow.Package, error) {
			return workflow.PackageFunc{
				PackageID: packageID,
				RunFunc:   func(_ context.Context) error { return nil },
			}, nil
		}),
		Logger: log.WithModule("test"),
	}

	opts := workflow.Options{
		PollInterval: 2 * time.Millisecond,
		DrainTimeout: 50 * time.Millisecond,
	}

	return &schedulerEnv{
		persistence: fp,
		registry:    reg,
		scheduler:   NewScheduler(deps, opts, time.Minute),
	}
}

func (env *schedulerEnv) saveDefinition(t *testing.T, id, timeplanID int64, active bool) *models.WorkflowDefinition {
	t.Helper()

	definition := &models.WorkflowDefinition{
		ID:              id,
		Name:            "scheduled definition",
		MasterPackageID: id * 10,
		TimeplanID:      timeplanID,
		Active:          active,
	}
	require.NoError(t, env.persistence.SaveDefinition(context.Background(), definition))

	return definition
}

func (env *schedulerEnv) saveTimeplan(t *testing.T, tp *models.Timeplan) {
	t.Helper()

	require.NoError(t, env.persistence.SaveTimeplan(context.Background(), tp))
}

func dailyAt(id int64, start time.Time) *models.Timeplan {
	return &models.Timeplan{ID: id, Kind: models.TimeplanDaily, Start: start}
}

func TestScheduler_PollSchedulesActiveDefinition(t *testing.T) {
	ctx := context.Background()
	env := newSchedulerEnv(t)

	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	env.saveTimeplan(t, dailyAt(1, start))
	env.saveDefinition(t, 1, 1, true)

	pending, err := env.scheduler.Poll(ctx)
	require.NoError(t, err)

	require.Len(t, pending, 1)
	assert.True(t, pending[0].RequestedStart.Equal(start))
	assert.Equal(t, int64(1), pending[0].WorkflowID)
	assert.Equal(t, models.StageScheduled, env.registry.GetStage(1))

	_, exists := env.scheduler.Instance(1)
	assert.True(t, exists)
}

func TestScheduler_PollIsIdempotentWhileScheduled(t *testing.T) {
	ctx := context.Background()
	env := newSchedulerEnv(t)

	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	env.saveTimeplan(t, dailyAt(1, start))
	env.saveDefinition(t, 1, 1, true)

	_, err := env.scheduler.Poll(ctx)
	require.NoError(t, err)

	pending, err := env.scheduler.Poll(ctx)
	require.NoError(t, err)

	assert.Len(t, pending, 1, "unchanged timeplan never creates a second pending row")
}

func TestScheduler_RescheduleInPlaceOnTimeplanEdit(t *testing.T) {
	ctx := context.Background()
	env := newSchedulerEnv(t)

	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	env.saveTimeplan(t, dailyAt(1, start))
	env.saveDefinition(t, 1, 1, true)

	pending, err := env.scheduler.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	executionID := pending[0].ID

	moved := start.Add(30 * time.Minute)
	env.saveTimeplan(t, dailyAt(1, moved))

	pending, err = env.scheduler.Poll(ctx)
	require.NoError(t, err)

	require.Len(t, pending, 1, "the pending row moves, it is not duplicated")
	assert.Equal(t, executionID, pending[0].ID)
	assert.True(t, pending[0].RequestedStart.Equal(moved))
}

func TestScheduler_SkipsInitializingAndExecuting(t *testing.T) {
	ctx := context.Background()
	env := newSchedulerEnv(t)

	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	env.saveTimeplan(t, dailyAt(1, start))
	env.saveDefinition(t, 1, 1, true)

	_, err := env.scheduler.Poll(ctx)
	require.NoError(t, err)

	env.registry.SetExecuting(1)

	pending, err := env.scheduler.Poll(ctx)
	require.NoError(t, err)

	assert.Len(t, pending, 1, "a running workflow is never rescheduled")
	assert.Equal(t, models.StageExecuting, env.registry.GetStage(1))
}

func TestScheduler_NeutralizesDeactivatedDefinition(t *testing.T) {
	ctx := context.Background()
	env := newSchedulerEnv(t)

	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	env.saveTimeplan(t, dailyAt(1, start))
	definition := env.saveDefinition(t, 1, 1, true)

	_, err := env.scheduler.Poll(ctx)
	require.NoError(t, err)
	require.Equal(t, models.StageScheduled, env.registry.GetStage(1))

	definition.Active = false
	require.NoError(t, env.persistence.SaveDefinition(ctx, definition))

	pending, err := env.scheduler.Poll(ctx)
	require.NoError(t, err)

	assert.Empty(t, pending)
	assert.Equal(t, models.StageIdle, env.registry.GetStage(1))
	assert.False(t, env.registry.ExistsMapping(1))
}

func TestScheduler_PendingSortedByRequestedStart(t *testing.T) {
	ctx := context.Background()
	env := newSchedulerEnv(t)

	now := time.Now().UTC().Truncate(time.Second)
	env.saveTimeplan(t, dailyAt(1, now.Add(2*time.Hour)))
	env.saveTimeplan(t, dailyAt(2, now.Add(time.Hour)))
	env.saveDefinition(t, 1, 1, true)
	env.saveDefinition(t, 2, 2, true)

	pending, err := env.scheduler.Poll(ctx)
	require.NoError(t, err)

	require.Len(t, pending, 2)
	assert.Equal(t, int64(2), pending[0].WorkflowID)
	assert.Equal(t, int64(1), pending[1].WorkflowID)
}

func TestScheduler_DefinitionErrorsAreIsolated(t *testing.T) {
	ctx := context.Background()
	env := newSchedulerEnv(t)

	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	env.saveTimeplan(t, dailyAt(1, start))
	env.saveDefinition(t, 1, 1, true)

	// Definition 2 references a timeplan that does not exist.
	env.saveDefinition(t, 2, 404, true)

	pending, err := env.scheduler.Poll(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workflow 2")

	require.Len(t, pending, 1, "the healthy definition is still scheduled")
	assert.Equal(t, int64(1), pending[0].WorkflowID)
	assert.Equal(t, models.StageScheduled, env.registry.GetStage(1))
}

func TestScheduler_ClaimGuard(t *testing.T) {
	env := newSchedulerEnv(t)

	assert.True(t, env.scheduler.claim(7))
	assert.False(t, env.scheduler.claim(7), "a claimed id is skipped, not blocked on")

	env.scheduler.release(7)
	assert.True(t, env.scheduler.claim(7))
}

func TestScheduler_DispatchRunsPendingExecution(t *testing.T) {
	ctx := context.Background()
	env := newSchedulerEnv(t)

	env.saveTimeplan(t, &models.Timeplan{
		ID:             1,
		Kind:           models.TimeplanDaily,
		Start:          time.Now().UTC().Add(time.Hour),
		RunImmediately: true,
	})
	env.saveDefinition(t, 1, 1, true)

	pending, err := env.scheduler.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	env.scheduler.dispatcher.Dispatch(ctx, pending)
	env.scheduler.dispatcher.Wait()

	assert.Equal(t, models.StageFinished, env.registry.GetStage(1))

	stored, err := env.persistence.ScheduleExecutionByID(ctx, pending[0].ID)
	require.NoError(t, err)
	assert.True(t, stored.Executed)
	assert.True(t, stored.Successful)
}

func TestScheduler_StartSeedsExecutionHistory(t *testing.T) {
	ctx := context.Background()
	env := newSchedulerEnv(t)

	execution := models.NewScheduleExecution(5, 1, 0, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, env.persistence.CreateScheduleExecution(ctx, execution))

	execution.Executed = true
	execution.Successful = true
	require.NoError(t, env.persistence.UpdateScheduleExecution(ctx, execution))

	require.NoError(t, env.scheduler.Start(ctx))
	defer func() { _ = env.scheduler.Stop(ctx) }()

	assert.True(t, env.registry.WasExecutedOnce(5))
}
