package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/chronoflow/chronoflow/pkg/models"
	"github.com/chronoflow/chronoflow/pkg/otelhelper"
)

// Dispatcher hands due schedule executions to their workflow instances. Each
// execution is initialized and started in its own supervised goroutine; the
// workflow itself waits out any lead time before its requested start.
type Dispatcher struct {
	scheduler *Scheduler
	logger    *slog.Logger
	tracer    trace.Tracer

	mu         sync.Mutex
	dispatched map[int64]bool
	wg         sync.WaitGroup
}

func NewDispatcher(scheduler *Scheduler, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		scheduler:  scheduler,
		logger:     logger.With("module", "dispatcher"),
		tracer:     otel.Tracer("chronoflow.scheduler"),
		dispatched: make(map[int64]bool),
	}
}

// Dispatch launches every not-yet-dispatched pending execution, in the
// requested-start order the scheduler produced.
func (d *Dispatcher) Dispatch(ctx context.Context, pending []*models.ScheduleExecution) {
	for _, execution := range pending {
		if !d.markDispatched(execution.ID) {
			continue
		}

		instance, exists := d.scheduler.Instance(execution.WorkflowID)
		if !exists {
			d.logger.WarnContext(ctx, "no live instance for pending execution",
				"workflow_id", execution.WorkflowID, "execution_id", execution.ID)
			d.unmarkDispatched(execution.ID)

			continue
		}

		d.wg.Add(1)

		go func(execution *models.ScheduleExecution) {
			defer d.wg.Done()
			defer d.unmarkDispatched(execution.ID)

			runCtx, span := otelhelper.StartSpan(ctx, d.tracer, "dispatcher.run",
				attribute.Int64(otelhelper.WorkflowIDKey, execution.WorkflowID),
				attribute.Int64(otelhelper.ExecutionIDKey, execution.ID),
			)
			defer span.End()

			err := instance.Init(runCtx, execution.RequestedStart)
			if err != nil {
				d.logger.ErrorContext(runCtx, "workflow initialization failed",
					"workflow_id", execution.WorkflowID, "error", err)
				otelhelper.SetError(span, err)

				return
			}

			err = instance.Start(runCtx)
			if err != nil {
				d.logger.ErrorContext(runCtx, "workflow run failed",
					"workflow_id", execution.WorkflowID, "error", err)
				otelhelper.SetError(span, err)
			}
		}(execution)
	}
}

// Wait blocks until every dispatched run returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) markDispatched(executionID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dispatched[executionID] {
		return false
	}

	d.dispatched[executionID] = true

	return true
}

func (d *Dispatcher) unmarkDispatched(executionID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.dispatched, executionID)
}
