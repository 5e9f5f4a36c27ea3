package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storylab-engine/internal/circuitbreaker"
	"storylab-engine/internal/config"
	"storylab-engine/internal/engine"
	"storylab-engine/internal/models"
	"storylab-engine/internal/objectstore"
	"storylab-engine/internal/providers"
	"storylab-engine/internal/recipe"
	"storylab-engine/internal/testutil"
)

type apiFixture struct {
	router  *mux.Router
	tracker *engine.Tracker
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	storage := testutil.NewMemoryStorage()
	recipes := recipe.NewStore(storage, nil)
	tracker := engine.NewTracker(storage, nil, nil)

	registry := providers.NewRegistry()
	registry.Register(providers.NewStaticProvider("static"))

	breakers, err := circuitbreaker.NewManager(circuitbreaker.DefaultConfig(), nil)
	require.NoError(t, err)

	executor := engine.NewExecutor(registry, breakers, objectstore.NewMemoryStore(), nil)
	orchestrator := engine.NewOrchestrator(recipes, tracker, executor, engine.Options{
		DefaultNodeTimeout: 5 * time.Second,
		MaxConcurrentNodes: 2,
	}, nil)

	h := New(storage, recipes, orchestrator, tracker, registry, config.Load(), nil)

	router := mux.NewRouter()
	h.RegisterRoutes(router)

	return &apiFixture{router: router, tracker: tracker}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) createRecipe(t *testing.T) string {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/v1/recipes", CreateRecipeRequest{
		Name:  "linear",
		Nodes: testutil.LinearRecipe().Nodes,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.Recipe
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	return created.ID
}

func TestAPI_RecipeLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createRecipe(t)

	rec := f.do(t, http.MethodGet, "/api/v1/recipes/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched models.Recipe
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, "linear", fetched.Name)
	assert.Equal(t, 1, fetched.Version)

	rec = f.do(t, http.MethodPut, "/api/v1/recipes/"+id, CreateRecipeRequest{
		Name:  "linear-v2",
		Nodes: testutil.LinearRecipe().Nodes,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated models.Recipe
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, 2, updated.Version)

	rec = f.do(t, http.MethodGet, "/api/v1/recipes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "linear-v2")

	rec = f.do(t, http.MethodDelete, "/api/v1/recipes/"+id, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/recipes/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_CreateRequiresName(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/recipes", CreateRecipeRequest{
		Nodes: testutil.LinearRecipe().Nodes,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_CreateRejectsInvalidGraph(t *testing.T) {
	f := newAPIFixture(t)

	nodes := testutil.LinearRecipe().Nodes
	nodes[0].Dependencies = []string{"second"} // cycle

	rec := f.do(t, http.MethodPost, "/api/v1/recipes", CreateRecipeRequest{
		Name:  "cyclic",
		Nodes: nodes,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "cycle")
}

func TestAPI_ValidateEndpointReportsAllErrors(t *testing.T) {
	f := newAPIFixture(t)

	nodes := testutil.LinearRecipe().Nodes
	nodes[0].OutputKey = ""
	nodes[1].Dependencies = []string{"ghost"}

	rec := f.do(t, http.MethodPost, "/api/v1/recipes/validate", CreateRecipeRequest{
		Name:  "broken",
		Nodes: nodes,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result recipe.ValidationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Valid)
	assert.GreaterOrEqual(t, len(result.Errors), 2)
}

func TestAPI_ExecuteAndPoll(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createRecipe(t)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/recipes/%s/execute", id), ExecuteRequest{
		Input:     map[string]interface{}{"x": 5},
		ProjectID: "proj-1",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var accepted struct {
		ExecutionID string `json:"executionId"`
		Status      string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	require.NotEmpty(t, accepted.ExecutionID)
	assert.Equal(t, "pending", accepted.Status)

	var final models.Execution
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp := f.do(t, http.MethodGet, "/api/v1/executions/"+accepted.ExecutionID, nil)
		require.Equal(t, http.StatusOK, resp.Code)
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &final))
		if final.Status.Terminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("execution never finished, last status %s", final.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	assert.Equal(t, models.ExecutionStatusCompleted, final.Status)
	assert.Contains(t, final.FinalOutput, "secondOut")

	resp := f.do(t, http.MethodGet, "/api/v1/executions/"+accepted.ExecutionID+"/summary", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var summary models.ExecutionSummary
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.NodesCompleted)

	resp = f.do(t, http.MethodGet, "/api/v1/executions?projectId=proj-1", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), accepted.ExecutionID)
}

func TestAPI_ExecuteUnknownRecipe(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/recipes/recipe-nope/execute", ExecuteRequest{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_CancelUnknownExecution(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/executions/exec-nope/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_Providers(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/providers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "static")
}

func TestAPI_Health(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestAPI_RecipeStats(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createRecipe(t)

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/recipes/%s/stats", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats models.RecipeStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, id, stats.RecipeID)
	assert.Zero(t, stats.TotalRuns)
}
