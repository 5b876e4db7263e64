package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/chronoflow/chronoflow/pkg/models"
	"github.com/chronoflow/chronoflow/pkg/persistence"
	"github.com/chronoflow/chronoflow/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"run_audits", "process_runs", "schedule_executions", "timeplans", "workflow_definitions", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("chronoflow_test"),
			postgres.WithUsername("chronoflow"),
			postgres.WithPassword("chronoflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'workflow_definitions')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "workflow_definitions table should exist")

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'schema_migrations')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "schema_migrations table should exist")

	var version int

	err = db.QueryRowContext(ctx, "SELECT version FROM schema_migrations WHERE version = 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestNewPersistence_SaveAndListDefinitions(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	fallbackID := int64(99)
	active := &models.WorkflowDefinition{
		ID:                1,
		Name:              "Nightly Sales Load",
		MasterPackageID:   10,
		FallbackPackageID: &fallbackID,
		Exclusive:         true,
		TakeoverDays:      3,
		TimeplanID:        1,
		DatasourceID:      7,
		Active:            true,
	}
	inactive := &models.WorkflowDefinition{
		ID:              2,
		Name:            "Retired Inventory Load",
		MasterPackageID: 20,
		TimeplanID:      2,
		Active:          false,
	}

	require.NoError(t, p.SaveDefinition(ctx, active))
	require.NoError(t, p.SaveDefinition(ctx, inactive))

	definitions, err := p.Definitions(ctx, true)
	require.NoError(t, err)
	require.Len(t, definitions, 1)

	retrieved := definitions[0]
	assert.Equal(t, active.ID, retrieved.ID)
	assert.Equal(t, active.Name, retrieved.Name)
	assert.Equal(t, active.MasterPackageID, retrieved.MasterPackageID)
	require.NotNil(t, retrieved.FallbackPackageID)
	assert.Equal(t, fallbackID, *retrieved.FallbackPackageID)
	assert.True(t, retrieved.Exclusive)
	assert.Equal(t, 3, retrieved.TakeoverDays)
	assert.Equal(t, int64(7), retrieved.DatasourceID)

	definitions, err = p.Definitions(ctx, false)
	require.NoError(t, err)
	require.Len(t, definitions, 1)
	assert.Equal(t, inactive.ID, definitions[0].ID)

	// Save is an upsert keyed by id.
	active.Name = "Nightly Sales Load v2"
	require.NoError(t, p.SaveDefinition(ctx, active))

	definitions, err = p.Definitions(ctx, true)
	require.NoError(t, err)
	require.Len(t, definitions, 1)
	assert.Equal(t, "Nightly Sales Load v2", definitions[0].Name)
}

func TestNewPersistence_Timeplans(t *testing.T) {
	p, ctx, databaseURL := setupTestDB(t)

	start := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	tp := &models.Timeplan{
		ID:             1,
		Kind:           models.TimeplanManual,
		Start:          start,
		LastDayOfMonth: true,
	}
	tp.Weekdays[models.WeekdayIndex(time.Friday)] = true
	tp.Months[int(time.June)-1] = true

	require.NoError(t, p.SaveTimeplan(ctx, tp))

	retrieved, err := p.TimeplanByID(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, models.TimeplanManual, retrieved.Kind)
	assert.True(t, retrieved.Start.Equal(start))
	assert.True(t, retrieved.LastDayOfMonth)
	assert.True(t, retrieved.Weekdays[models.WeekdayIndex(time.Friday)])
	assert.True(t, retrieved.MonthEnabled(time.June))
	assert.False(t, retrieved.MonthEnabled(time.July))

	_, err = p.TimeplanByID(ctx, 404)
	assert.True(t, persistence.IsTimeplanNotFound(err))

	// A second row under the same id makes the reference ambiguous.
	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	_, err = db.ExecContext(ctx, `INSERT INTO timeplans (id, kind, start_at, weekdays, months)
		VALUES (1, 'daily', NOW(), '[]', '[]')`)
	require.NoError(t, err)

	_, err = p.TimeplanByID(ctx, 1)
	assert.True(t, persistence.IsTimeplanAmbiguous(err))
}

func TestNewPersistence_ScheduleExecutions(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	now := time.Now().UTC().Truncate(time.Second)

	later := models.NewScheduleExecution(1, 1, 0, now.Add(2*time.Hour))
	earlier := models.NewScheduleExecution(2, 2, 0, now.Add(time.Hour))

	require.NoError(t, p.CreateScheduleExecution(ctx, later))
	require.NoError(t, p.CreateScheduleExecution(ctx, earlier))
	assert.NotZero(t, later.ID)
	assert.NotZero(t, earlier.ID)

	pending, err := p.PendingScheduleExecutions(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, earlier.ID, pending[0].ID, "pending is sorted by requested start")
	assert.Equal(t, later.ID, pending[1].ID)

	started := now.Add(time.Hour)
	ended := started.Add(10 * time.Minute)
	earlier.ActualStart = &started
	earlier.ActualEnd = &ended
	earlier.Executed = true
	earlier.Successful = true

	require.NoError(t, p.UpdateScheduleExecution(ctx, earlier))

	pending, err = p.PendingScheduleExecutions(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, later.ID, pending[0].ID)

	retrieved, err := p.ScheduleExecutionByID(ctx, earlier.ID)
	require.NoError(t, err)
	assert.True(t, retrieved.Executed)
	assert.True(t, retrieved.Successful)
	require.NotNil(t, retrieved.ActualStart)
	assert.True(t, retrieved.ActualStart.Equal(started))

	executed, err := p.ExecutedWorkflowIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, executed)

	_, err = p.ScheduleExecutionByID(ctx, 9999)
	assert.True(t, persistence.IsScheduleExecutionNotFound(err))
}

func TestNewPersistence_ProcessRuns(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	run := models.NewProcessRun(1, true)

	require.NoError(t, p.CreateProcessRun(ctx, run))
	require.NotNil(t, run.RunID)
	assert.True(t, run.Open())

	ended := time.Now().UTC().Truncate(time.Second)
	run.EndedAt = &ended
	run.Successful = true

	require.NoError(t, p.UpdateProcessRun(ctx, run))
	assert.False(t, run.Open())

	missing := models.NewProcessRun(1, false)
	err := p.UpdateProcessRun(ctx, missing)
	assert.ErrorIs(t, err, persistence.ErrProcessRunNotFound)

	audit := &models.RunAudit{
		Level:      models.LevelWorkflow,
		RunID:      *run.RunID,
		WorkflowID: 1,
		StartedAt:  run.StartedAt,
		EndedAt:    &ended,
		Successful: true,
		Message:    "run finished",
	}

	require.NoError(t, p.AppendRunAudit(ctx, audit))
	assert.NotZero(t, audit.ID)
}
