// Package postgresql provides the PostgreSQL persistence implementation.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/chronoflow/chronoflow/pkg/models"
	"github.com/chronoflow/chronoflow/pkg/persistence"
	"github.com/chronoflow/chronoflow/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	definitions *DefinitionRepository
	executions  *ScheduleExecutionRepository
	runs        *ProcessRunRepository
}

// NewPersistence connects, migrates and returns the PostgreSQL persistence
// layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:          database,
		logger:      logger,
		definitions: NewDefinitionRepository(database, logger),
		executions:  NewScheduleExecutionRepository(database, logger),
		runs:        NewProcessRunRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Definitions(ctx context.Context, active bool) ([]*models.WorkflowDefinition, error) {
	return p.definitions.List(ctx, active)
}

func (p *Persistence) SaveDefinition(ctx context.Context, definition *models.WorkflowDefinition) error {
	return p.definitions.Save(ctx, definition)
}

func (p *Persistence) TimeplanByID(ctx context.Context, id int64) (*models.Timeplan, error) {
	return p.definitions.TimeplanByID(ctx, id)
}

func (p *Persistence) SaveTimeplan(ctx context.Context, timeplan *models.Timeplan) error {
	return p.definitions.SaveTimeplan(ctx, timeplan)
}

func (p *Persistence) CreateScheduleExecution(ctx context.Context, execution *models.ScheduleExecution) error {
	return p.executions.Create(ctx, execution)
}

func (p *Persistence) UpdateScheduleExecution(ctx context.Context, execution *models.ScheduleExecution) error {
	return p.executions.Update(ctx, execution)
}

func (p *Persistence) ScheduleExecutionByID(ctx context.Context, id int64) (*models.ScheduleExecution, error) {
	return p.executions.GetByID(ctx, id)
}

func (p *Persistence) PendingScheduleExecutions(ctx context.Context) ([]*models.ScheduleExecution, error) {
	return p.executions.Pending(ctx)
}

func (p *Persistence) ExecutedWorkflowIDs(ctx context.Context) ([]int64, error) {
	return p.executions.ExecutedWorkflowIDs(ctx)
}

func (p *Persistence) CreateProcessRun(ctx context.Context, run *models.ProcessRun) error {
	return p.runs.Create(ctx, run)
}

func (p *Persistence) UpdateProcessRun(ctx context.Context, run *models.ProcessRun) error {
	return p.runs.Update(ctx, run)
}

func (p *Persistence) AppendRunAudit(ctx context.Context, audit *models.RunAudit) error {
	return p.runs.AppendAudit(ctx, audit)
}

var _ persistence.Persistence = (*Persistence)(nil)
