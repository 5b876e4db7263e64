package workflow

import (
	"context"
	"slices"
	"time"
)

// The methods below form the Host surface handed to child packages.

func (w *Workflow) GetID() int64 {
	return w.ID()
}

// GetProcessRunID returns the run id of the current run, nil while no run is
// open.
func (w *Workflow) GetProcessRunID() *int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.run == nil {
		return nil
	}

	return w.run.RunID
}

// GetCancelSource returns the cancellation signal of the current lifecycle.
// Children must observe it cooperatively.
func (w *Workflow) GetCancelSource() context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.cancelCtx
}

// GetTakeoverTime returns the data takeover window resolved for this run.
func (w *Workflow) GetTakeoverTime() (time.Time, time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.takeoverFrom, w.takeoverTo
}

// AddExecutingTask spawns task under the current cancellation signal and
// tracks it so the abort drain loop can wait for it.
func (w *Workflow) AddExecutingTask(name string, task func(ctx context.Context) error) {
	tracked := &trackedTask{
		name: name,
		done: make(chan struct{}),
	}

	w.mu.Lock()
	w.tasks = append(w.tasks, tracked)
	cancelCtx := w.cancelCtx
	w.mu.Unlock()

	go func() {
		defer close(tracked.done)

		err := task(cancelCtx)
		if err != nil {
			w.logger.Warn("executing task failed", "task", name, "error", err)
		}
	}()
}

// AddAccessedTable records a table a child step claimed, for best-effort
// cleanup reporting on failure.
func (w *Workflow) AddAccessedTable(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if slices.Contains(w.tables, name) {
		return
	}

	w.tables = append(w.tables, name)
}

func (w *Workflow) RemoveAccessedTable(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, table := range w.tables {
		if table == name {
			w.tables = append(w.tables[:i], w.tables[i+1:]...)

			return
		}
	}
}

// AccessedTables returns a snapshot of the currently claimed tables.
func (w *Workflow) AccessedTables() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	return slices.Clone(w.tables)
}
