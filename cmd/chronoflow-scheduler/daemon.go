// Package main provides the chronoflow scheduler daemon.
package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/chronoflow/chronoflow/pkg/cmd"
	"github.com/chronoflow/chronoflow/pkg/otelhelper"
	"github.com/chronoflow/chronoflow/pkg/registry"
	"github.com/chronoflow/chronoflow/pkg/scheduler"
	"github.com/chronoflow/chronoflow/pkg/workflow"
)

// Daemon owns the scheduler loop and the collaborators it wires together.
type Daemon struct {
	logger          *slog.Logger
	databaseURL     string
	eventBusType    string
	kafkaBrokers    string
	coordinationURL string
	maxExecuting    int
	pollInterval    time.Duration
	tracing         bool
}

func NewDaemon(
	logger *slog.Logger,
	databaseURL string,
	eventBusType string,
	kafkaBrokers string,
	coordinationURL string,
	maxExecuting int,
	pollInterval time.Duration,
	tracing bool,
) *Daemon {
	return &Daemon{
		logger:          logger,
		databaseURL:     databaseURL,
		eventBusType:    eventBusType,
		kafkaBrokers:    kafkaBrokers,
		coordinationURL: coordinationURL,
		maxExecuting:    maxExecuting,
		pollInterval:    pollInterval,
		tracing:         tracing,
	}
}

// Run wires persistence, coordination and the event bus together and drives
// the scheduler until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if d.tracing {
		_, err := otelhelper.NewTracer(ctx, "chronoflow-scheduler")
		if err != nil {
			return err
		}
	}

	persistence := cmd.NewPersistence(ctx, d.logger, d.databaseURL)

	defer func() {
		err := persistence.Close(ctx)
		if err != nil {
			d.logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus := cmd.NewEventBus(d.eventBusType, d.kafkaBrokers, d.logger)

	defer func() {
		err := eventBus.Close()
		if err != nil {
			d.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	coordinator := cmd.NewCoordinator(ctx, d.coordinationURL, d.maxExecuting)

	defer func() {
		err := coordinator.Close(ctx)
		if err != nil {
			d.logger.ErrorContext(ctx, "Failed to close coordinator", "error", err)
		}
	}()

	deps := workflow.Deps{
		Persistence: persistence,
		Registry:    registry.NewRegistry(),
		Coordinator: coordinator,
		Bus:         eventBus,
		Packages:    d.packageFactory(),
		Logger:      d.logger,
	}

	opts := workflow.Options{
		ShutdownHook: func(reason string) {
			d.logger.Error("Safe shutdown requested", "reason", reason)
		},
	}

	sched := scheduler.NewScheduler(deps, opts, d.pollInterval)

	err := sched.Start(ctx)
	if err != nil {
		return err
	}

	<-ctx.Done()

	d.logger.InfoContext(ctx, "Shutting down scheduler")

	return sched.Stop(context.WithoutCancel(ctx))
}

// packageFactory returns the default package runner. Package execution lives
// outside this service; the default handle only logs its lifecycle and
// honors cancellation, which keeps the daemon runnable standalone.
func (d *Daemon) packageFactory() workflow.PackageFactory {
	return workflow.FactoryFunc(func(_ context.Context, packageID int64, host workflow.Host) (workflow.Package, error) {
		return workflow.PackageFunc{
			PackageID: packageID,
			RunFunc: func(runCtx context.Context) error {
				from, to := host.GetTakeoverTime()
				d.logger.InfoContext(runCtx, "package run requested",
					"package_id", packageID,
					"workflow_id", host.GetID(),
					"takeover_from", from,
					"takeover_to", to,
				)

				return runCtx.Err()
			},
		}, nil
	})
}
