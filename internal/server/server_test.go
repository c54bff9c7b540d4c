package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voxctl/voxctl/internal/agent"
)

// MockEngine mocks the TaskEngine interface.
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) ProcessCommand(ctx context.Context, rawInput string) (agent.TaskResult, error) {
	args := m.Called(ctx, rawInput)
	return args.Get(0).(agent.TaskResult), args.Error(1)
}

func (m *MockEngine) Busy() (string, bool) {
	args := m.Called()
	return args.String(0), args.Bool(1)
}

func newTestServer(t *testing.T) (*MockEngine, *httptest.Server) {
	t.Helper()
	engine := &MockEngine{}
	registry := prometheus.NewRegistry()
	NewMetrics(registry)
	srv := httptest.NewServer(NewRouter(engine, registry, zap.NewNop()))
	t.Cleanup(srv.Close)
	return engine, srv
}

func TestPostCommand_ReturnsResult(t *testing.T) {
	engine, srv := newTestServer(t)
	engine.On("ProcessCommand", mock.Anything, "open gmail").Return(agent.TaskResult{
		TaskID:   "t-1",
		Input:    "open gmail",
		Action:   agent.ActionOpenApp,
		Status:   agent.StatusSucceeded,
		Response: "Opened gmail.",
	}, nil)

	resp, err := http.Post(srv.URL+"/v1/command", "application/json",
		strings.NewReader(`{"text": "open gmail"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result agent.TaskResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, agent.StatusSucceeded, result.Status)
	assert.Equal(t, "Opened gmail.", result.Response)
}

func TestPostCommand_BusyIsConflict(t *testing.T) {
	engine, srv := newTestServer(t)
	engine.On("ProcessCommand", mock.Anything, mock.Anything).
		Return(agent.TaskResult{}, agent.ErrAgentBusy)

	resp, err := http.Post(srv.URL+"/v1/command", "application/json",
		strings.NewReader(`{"text": "open gmail"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPostCommand_RejectsEmptyBody(t *testing.T) {
	engine, srv := newTestServer(t)

	for _, body := range []string{``, `{}`, `{"text": ""}`, `not json`} {
		resp, err := http.Post(srv.URL+"/v1/command", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body %q", body)
	}
	engine.AssertNotCalled(t, "ProcessCommand", mock.Anything, mock.Anything)
}

func TestGetStatus(t *testing.T) {
	engine, srv := newTestServer(t)
	engine.On("Busy").Return("task-42", true)

	resp, err := http.Get(srv.URL + "/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var status statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.True(t, status.Busy)
	assert.Equal(t, "task-42", status.TaskID)
}

func TestHealthz(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint_ExposesTaskCounters(t *testing.T) {
	engine := &MockEngine{}
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	srv := httptest.NewServer(NewRouter(engine, registry, zap.NewNop()))
	defer srv.Close()

	hooks := metrics.Hooks()
	hooks.OnTaskDone(agent.TaskResult{
		Status:     agent.StatusSucceeded,
		Iterations: 2,
		Duration:   time.Second,
	})
	hooks.OnTransition("t-1", agent.NodeObserve, agent.NodeAnalyze)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)

	assert.Contains(t, body, "voxctl_tasks_total")
	assert.Contains(t, body, "voxctl_node_transitions_total")
}
