package workflow

import (
	"context"
	"time"

	"github.com/chronoflow/chronoflow/pkg/models"
)

// Host is the surface a workflow instance exposes to its child packages.
// Children register the tasks they spawn and the tables they touch so the
// workflow can drain and clean up on failure, and read the cancellation
// signal and takeover window they must honor.
type Host interface {
	GetID() int64
	GetProcessRunID() *int64
	GetCancelSource() context.Context
	GetTakeoverTime() (time.Time, time.Time)
	AddExecutingTask(name string, task func(ctx context.Context) error)
	AddAccessedTable(name string)
	RemoveAccessedTable(name string)
}

// Package is the handle of one child package execution. Run blocks until the
// package completes; Abort requests a cooperative stop and returns once the
// package acknowledged it.
type Package interface {
	ID() int64
	Run(ctx context.Context) error
	Abort(ctx context.Context) error
}

// PackageFactory constructs package handles bound to a host workflow.
type PackageFactory interface {
	Create(ctx context.Context, packageID int64, host Host) (Package, error)
}

// FactoryFunc adapts a function into a PackageFactory.
type FactoryFunc func(ctx context.Context, packageID int64, host Host) (Package, error)

func (f FactoryFunc) Create(ctx context.Context, packageID int64, host Host) (Package, error) {
	return f(ctx, packageID, host)
}

// Renderer produces a best-effort visualization artifact for a finished or
// failed run. Failures are logged, never fatal.
type Renderer interface {
	Render(ctx context.Context, run *models.ProcessRun) error
}

// NoopRenderer is the default renderer.
type NoopRenderer struct{}

func (NoopRenderer) Render(_ context.Context, _ *models.ProcessRun) error {
	return nil
}

// PackageFunc adapts a plain function into a Package. Abort is a no-op
// beyond the cancellation the host already propagates.
type PackageFunc struct {
	PackageID int64
	RunFunc   func(ctx context.Context) error
}

func (p PackageFunc) ID() int64 {
	return p.PackageID
}

func (p PackageFunc) Run(ctx context.Context) error {
	return p.RunFunc(ctx)
}

func (p PackageFunc) Abort(_ context.Context) error {
	return nil
}
