package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronoflow/chronoflow/pkg/models"
)

type stubInstance struct {
	id int64
}

func (s stubInstance) ID() int64 {
	return s.id
}

func TestRegistry_Mappings(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.AddMapping(1, 100))
	assert.True(t, reg.ExistsMapping(1))

	executionID, ok := reg.ScheduleExecutionID(1)
	require.True(t, ok)
	assert.Equal(t, int64(100), executionID)

	err := reg.AddMapping(1, 200)
	assert.ErrorIs(t, err, ErrMappingExists, "one pending execution per workflow")

	reg.RemoveMapping(1)
	assert.False(t, reg.ExistsMapping(1))

	require.NoError(t, reg.AddMapping(1, 200))
}

func TestRegistry_Instances(t *testing.T) {
	reg := NewRegistry()

	assert.False(t, reg.ExistsWorkflow(7))

	_, err := reg.GetWorkflow(7)
	assert.ErrorIs(t, err, ErrWorkflowNotRegistered)

	reg.Register(stubInstance{id: 7})
	assert.True(t, reg.ExistsWorkflow(7))

	instance, err := reg.GetWorkflow(7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), instance.ID())
}

func TestRegistry_Stages(t *testing.T) {
	reg := NewRegistry()

	assert.Equal(t, models.StageIdle, reg.GetStage(5), "unknown workflows are idle")

	reg.Register(stubInstance{id: 5})
	assert.Equal(t, models.StageIdle, reg.GetStage(5))

	reg.SetScheduled(5)
	assert.Equal(t, models.StageScheduled, reg.GetStage(5))

	reg.SetInitializing(5)
	reg.SetExecuting(5)
	assert.Equal(t, models.StageExecuting, reg.GetStage(5))

	reg.SetFinished(5)
	assert.True(t, reg.GetStage(5).Terminal())

	reg.SetFailed(5)
	assert.Equal(t, models.StageFailed, reg.GetStage(5))
}

func TestRegistry_Neutralize(t *testing.T) {
	reg := NewRegistry()

	reg.Register(stubInstance{id: 3})
	require.NoError(t, reg.AddMapping(3, 300))
	reg.SetScheduled(3)

	reg.Neutralize(3)

	assert.False(t, reg.ExistsMapping(3))
	assert.Equal(t, models.StageIdle, reg.GetStage(3))
	assert.True(t, reg.ExistsWorkflow(3), "the instance stays registered")
}

func TestRegistry_ExecutedOnce(t *testing.T) {
	reg := NewRegistry()

	assert.False(t, reg.WasExecutedOnce(1))

	reg.MarkExecuted(1)
	assert.True(t, reg.WasExecutedOnce(1))

	reg.SeedExecuted([]int64{4, 5})
	assert.True(t, reg.WasExecutedOnce(4))
	assert.True(t, reg.WasExecutedOnce(5))
	assert.False(t, reg.WasExecutedOnce(6))
}
