package web_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronoflow/chronoflow/pkg/models"
	"github.com/chronoflow/chronoflow/pkg/persistence/file"
	"github.com/chronoflow/chronoflow/pkg/registry"
	"github.com/chronoflow/chronoflow/pkg/web"
)

type stubInstance struct {
	id int64
}

func (s stubInstance) ID() int64 {
	return s.id
}

func setupApp(t *testing.T) (*fiber.App, *file.Persistence, *registry.Registry) {
	t.Helper()

	fp := file.NewPersistence(t.TempDir())
	reg := registry.NewRegistry()

	app := fiber.New()
	web.NewAPIHandlers(fp, reg, validator.New(validator.WithRequiredStructEnabled())).Register(app)

	return app, fp, reg
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	var body map[string]any

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NoError(t, resp.Body.Close())

	return body
}

func TestGetDefinitions(t *testing.T) {
	ctx := context.Background()
	app, fp, _ := setupApp(t)

	require.NoError(t, fp.SaveDefinition(ctx, &models.WorkflowDefinition{
		ID: 1, Name: "active load", MasterPackageID: 10, TimeplanID: 1, Active: true,
	}))
	require.NoError(t, fp.SaveDefinition(ctx, &models.WorkflowDefinition{
		ID: 2, Name: "retired load", MasterPackageID: 20, TimeplanID: 2, Active: false,
	}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/definitions", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(1), body["count"], "active definitions by default")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/definitions?active=false", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body = decodeBody(t, resp)
	assert.Equal(t, float64(1), body["count"])

	definitions, ok := body["definitions"].([]any)
	require.True(t, ok)
	require.Len(t, definitions, 1)

	definition, ok := definitions[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "retired load", definition["name"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/definitions?active=nope", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestGetExecutions(t *testing.T) {
	ctx := context.Background()
	app, fp, _ := setupApp(t)

	now := time.Now().UTC().Truncate(time.Second)

	later := models.NewScheduleExecution(1, 1, 0, now.Add(2*time.Hour))
	earlier := models.NewScheduleExecution(2, 2, 0, now.Add(time.Hour))
	require.NoError(t, fp.CreateScheduleExecution(ctx, later))
	require.NoError(t, fp.CreateScheduleExecution(ctx, earlier))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/executions", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(2), body["count"])

	executions, ok := body["executions"].([]any)
	require.True(t, ok)
	require.Len(t, executions, 2)

	first, ok := executions[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), first["workflow_id"], "sorted by requested start")
}

func TestGetWorkflowStage(t *testing.T) {
	app, _, reg := setupApp(t)

	reg.Register(stubInstance{id: 1})
	reg.SetScheduled(1)
	reg.MarkExecuted(1)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/workflows/1/stage", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, string(models.StageScheduled), body["stage"])
	assert.Equal(t, true, body["executed_once"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/workflows/99/stage", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/workflows/abc/stage", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/workflows/0/stage", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "zero id fails validation")
	require.NoError(t, resp.Body.Close())
}

func TestGetHealth(t *testing.T) {
	app, _, _ := setupApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "ok", body["status"])
}
