package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/agent"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/insights"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/memory"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/orchestrator"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := memory.NewFileStore(filepath.Join(t.TempDir(), "agent_memory.json"), nil)
	require.NoError(t, err)
	orch, err := orchestrator.New(store, agent.NewOffline(nil))
	require.NoError(t, err)

	server, err := NewServer(orch, zap.NewNop(), nil)
	require.NoError(t, err)
	return server
}

// stubRunner returns fixed results.
type stubRunner struct {
	outcome  *orchestrator.Outcome
	runErr   error
	state    *memory.State
	stateErr error
}

func (s *stubRunner) Run(context.Context, string) (*orchestrator.Outcome, error) {
	return s.outcome, s.runErr
}

func (s *stubRunner) Snapshot(context.Context) (*memory.State, error) {
	return s.state, s.stateErr
}

func (s *stubRunner) Reset(context.Context) (*memory.State, error) {
	return memory.NewState(), s.stateErr
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(&stubRunner{}, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 8080, server.config.Port)
		assert.NotNil(t, server.config.MetricsHandler)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(&stubRunner{}, nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when runner is nil", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), nil)
		assert.Error(t, err)
	})
}

func TestHandleHealth(t *testing.T) {
	server := setupTestServer(t)

	rec := do(server, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleRun(t *testing.T) {
	server := setupTestServer(t)

	rec := do(server, http.MethodPost, "/api/v1/runs", `{"query":"NVIDIA"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Outcome)
	assert.Equal(t, 1, resp.Outcome.Record.RunNumber)
	assert.False(t, resp.Outcome.Record.Success)
	assert.Equal(t, "run failed — policy violation: wrong_tool_sequence, ignored_tool_outputs", resp.Message)
	assert.Empty(t, resp.Warning)
}

func TestHandleRun_Validation(t *testing.T) {
	server := setupTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing query", `{}`},
		{"empty query", `{"query":""}`},
		{"too long", fmt.Sprintf(`{"query":%q}`, strings.Repeat("x", 201))},
		{"malformed", `{"query":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(server, http.MethodPost, "/api/v1/runs", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleRun_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"execution", &orchestrator.ExecutionError{RunNumber: 1, Err: errors.New("tavily down")}, http.StatusBadGateway},
		{"canceled", &orchestrator.ExecutionError{RunNumber: 1, Err: context.Canceled}, http.StatusServiceUnavailable},
		{"corrupt", fmt.Errorf("%w: bad json", memory.ErrStorageCorrupt), http.StatusInternalServerError},
		{"blank", orchestrator.ErrEmptyQuery, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := NewServer(&stubRunner{runErr: tt.err}, zap.NewNop(), nil)
			require.NoError(t, err)

			rec := do(server, http.MethodPost, "/api/v1/runs", `{"query":"AMD"}`)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestHandleRun_PersistWarning(t *testing.T) {
	outcome := &orchestrator.Outcome{
		Record: memory.RunRecord{RunNumber: 4, Success: true},
		State:  orchestrator.StateRecorded,
	}
	server, err := NewServer(&stubRunner{outcome: outcome, runErr: memory.ErrStorageIO}, zap.NewNop(), nil)
	require.NoError(t, err)

	rec := do(server, http.MethodPost, "/api/v1/runs", `{"query":"AMD"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Warning, "not persisted")
	assert.Equal(t, "run 4 succeeded", resp.Message)
}

func TestHandleMemoryAndReset(t *testing.T) {
	server := setupTestServer(t)

	for i := 0; i < 3; i++ {
		rec := do(server, http.MethodPost, "/api/v1/runs", `{"query":"NVIDIA"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := do(server, http.MethodGet, "/api/v1/memory", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var state memory.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, 3, state.TotalRuns)
	assert.Len(t, state.LearnedRules, 1)

	rec = do(server, http.MethodPost, "/api/v1/memory/reset", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "reset requires confirmation")

	rec = do(server, http.MethodPost, "/api/v1/memory/reset", `{"confirm":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(server, http.MethodGet, "/api/v1/memory", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, 0, state.TotalRuns)
	assert.Empty(t, state.LearnedRules)
}

func TestHandleStats(t *testing.T) {
	server := setupTestServer(t)
	for i := 0; i < 4; i++ {
		require.Equal(t, http.StatusOK, do(server, http.MethodPost, "/api/v1/runs", `{"query":"NVIDIA"}`).Code)
	}

	rec := do(server, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report insights.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 4, report.Statistics.TotalRuns)
	assert.Equal(t, 1, report.Statistics.SuccessfulRuns)

	rec = do(server, http.MethodGet, "/api/v1/stats?format=markdown", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/markdown")
	assert.Contains(t, rec.Body.String(), "# Learning Report")

	rec = do(server, http.MethodGet, "/api/v1/stats?format=text", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "LEARNING REPORT")

	rec = do(server, http.MethodGet, "/api/v1/stats?format=xml", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStats_CorruptMemory(t *testing.T) {
	server, err := NewServer(&stubRunner{stateErr: memory.ErrStorageCorrupt}, zap.NewNop(), nil)
	require.NoError(t, err)

	rec := do(server, http.MethodGet, "/api/v1/stats", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "corrupt")
}

func TestMetricsEndpoint(t *testing.T) {
	served := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		served = true
		_, _ = w.Write([]byte("finagent_runs_total 0\n"))
	})
	server, err := NewServer(&stubRunner{}, zap.NewNop(), &Config{Host: "127.0.0.1", Port: 9000, MetricsHandler: handler})
	require.NoError(t, err)

	rec := do(server, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, served)
}

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m := newHTTPMetrics(mp.Meter(httpInstrumentationName), zap.NewNop())

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/ok", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/fail", func(echo.Context) error { return echo.NewHTTPError(http.StatusTeapot) })

	for _, path := range []string{"/ok", "/fail", "/missing"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	statuses := map[int64]bool{}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "finagent.http.requests_total" {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
				if v, ok := dp.Attributes.Value("status"); ok {
					statuses[v.AsInt64()] = true
				}
			}
		}
	}
	assert.Equal(t, int64(3), total)
	assert.True(t, statuses[http.StatusTeapot], "handler errors are recorded with their final status")
	assert.True(t, statuses[http.StatusNotFound])
}
