package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/internal/application/orchestrator"
	checkpointmemory "github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/adapters/checkpoint/memory"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/adapters/executors"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/domain"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/ports"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	registry := executors.NewRegistry()
	registry.Register("noop", executors.Func(func(ctx context.Context, input ports.NodeInput) (ports.NodeResult, error) {
		return ports.NodeResult{Output: "ok"}, nil
	}))

	manager := orchestrator.NewManager(
		registry,
		checkpointmemory.NewStore(),
		nil, nil, nil,
		zap.NewNop(),
		time.Minute,
		10*time.Second,
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
	})

	return NewServer(&Config{
		Port:         0,
		Orchestrator: manager,
		Logger:       zap.NewNop(),
	})
}

func graphDocument(t *testing.T) map[string]interface{} {
	t.Helper()
	g, err := domain.NewChainGraph("wf-api", "api chain", []domain.PhaseSpec{
		{ID: "plan", ExecutorRef: "noop"},
		{ID: "build", ExecutorRef: "noop"},
	})
	require.NoError(t, err)
	doc, err := g.ToMap()
	require.NoError(t, err)
	return doc
}

func submitRun(t *testing.T, s *Server) string {
	t.Helper()
	body, err := json.Marshal(RunSubmitRequest{Graph: graphDocument(t)})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp RunSubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ExecutionID)
	assert.Equal(t, "wf-api", resp.WorkflowID)
	return resp.ExecutionID
}

func waitForRun(t *testing.T, s *Server, executionID string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+executionID+"/summary", nil)
		s.router.ServeHTTP(w, req)
		if w.Code == http.StatusOK {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("execution %s did not finish in time", executionID)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestHandleSubmitAndGetRun(t *testing.T) {
	s := newTestServer(t)
	executionID := submitRun(t, s)
	waitForRun(t, s, executionID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+executionID, nil)
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var state domain.RunState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, "wf-api", state.WorkflowID)
	assert.Equal(t, domain.RunStatusCompleted, state.Status)
}

func TestHandleGetSummary(t *testing.T) {
	s := newTestServer(t)
	executionID := submitRun(t, s)
	waitForRun(t, s, executionID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+executionID+"/summary", nil)
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var summary struct {
		Status    string   `json:"status"`
		Completed []string `json:"completed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, "completed", summary.Status)
	assert.Equal(t, []string{"build", "plan"}, summary.Completed)
}

func TestHandleListRuns(t *testing.T) {
	s := newTestServer(t)
	executionID := submitRun(t, s)
	waitForRun(t, s, executionID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs?workflow_id=wf-api", nil)
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Executions []string `json:"executions"`
		Total      int      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, []string{executionID}, resp.Executions)
}

func TestHandleSubmitRunBadRequests(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Structurally valid request carrying a cyclic graph document.
	doc := map[string]interface{}{
		"id":   "wf-cycle",
		"name": "cycle",
		"nodes": map[string]interface{}{
			"A": map[string]interface{}{"id": "A", "executor_ref": "noop", "dependencies": []string{"B"}},
			"B": map[string]interface{}{"id": "B", "executor_ref": "noop", "dependencies": []string{"A"}},
		},
	}
	body, err := json.Marshal(RunSubmitRequest{Graph: doc})
	require.NoError(t, err)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_GRAPH")
}

func TestHandleGetRunNotFound(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/missing", nil)
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestHandleResumeRunNotFound(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs/missing/resume", nil)
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleCancelRunNotFound(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs/missing/cancel", nil)
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}
