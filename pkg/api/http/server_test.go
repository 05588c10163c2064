package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aescanero/batchflow/internal/application/orchestrator"
	"github.com/aescanero/batchflow/internal/application/workers"
	"github.com/aescanero/batchflow/internal/stages"
	eventsmemory "github.com/aescanero/batchflow/pkg/adapters/events/memory"
	promcollector "github.com/aescanero/batchflow/pkg/adapters/metrics/prometheus"
	storagememory "github.com/aescanero/batchflow/pkg/adapters/storage/memory"
	"github.com/aescanero/batchflow/pkg/domain"
	"github.com/aescanero/batchflow/pkg/graph"
	"github.com/aescanero/batchflow/pkg/record"
)

type fixture struct {
	server  *Server
	manager *orchestrator.Manager
	store   *graph.Store
}

func newFixture(t *testing.T, pool *workers.Pool) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	reg := prometheus.NewRegistry()
	registry := stages.NewRegistry()
	store := graph.NewStore(nil)

	manager := orchestrator.NewManager(
		store,
		registry,
		nil,
		eventsmemory.NewInMemoryEventBus(),
		storagememory.NewInMemoryStateStorage(),
		promcollector.NewCollector(reg),
		nil,
		logger,
		time.Minute,
		orchestrator.Defaults{BatchSize: 2, MaxConcurrency: 2},
	)
	t.Cleanup(func() { _ = manager.Shutdown(context.Background()) })

	return &fixture{
		server: NewServer(&Config{
			Manager:  manager,
			Stages:   registry,
			Pool:     pool,
			Gatherer: reg,
			Logger:   logger,
		}),
		manager: manager,
		store:   store,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func sampleRecords(t *testing.T) []byte {
	t.Helper()
	rs := record.NewRecordSet()
	for _, row := range [][2]string{{"0", "a"}, {"1", "b"}} {
		rs.Add()
		i := rs.Len() - 1
		rs.Set(i, record.Key(record.Source, record.ID), row[0])
		rs.Set(i, record.Key(record.Source, "name"), row[1])
	}
	rs.Add()
	rs.Set(2, record.Key(record.Source, record.ID), "0")
	rs.Set(2, record.Key(record.Destination, record.ID), "1")
	rs.Set(2, record.Key(record.Relation, "kind"), "knows")

	var buf bytes.Buffer
	require.NoError(t, record.Encode(&buf, rs))
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	t.Run("without pool", func(t *testing.T) {
		w := newFixture(t, nil).do(t, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"healthy"`)
	})

	t.Run("pool not started", func(t *testing.T) {
		pool, err := workers.NewPool(2, nil, nil, 0)
		require.NoError(t, err)
		w := newFixture(t, pool).do(t, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"degraded"`)
	})
}

func TestMetrics(t *testing.T) {
	w := newFixture(t, nil).do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "batchflow_active_jobs")
}

func TestCORSPreflight(t *testing.T) {
	w := newFixture(t, nil).do(t, http.MethodOptions, "/api/v1/jobs", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestListStages(t *testing.T) {
	w := newFixture(t, nil).do(t, http.MethodGet, "/api/v1/stages", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Stages []struct {
			ID string `json:"id"`
		} `json:"stages"`
		Total int `json:"total"`
	}
	decode(t, w, &body)
	assert.Equal(t, 5, body.Total)
	assert.Equal(t, "centrality", body.Stages[0].ID)
}

func TestGraphRecords(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodPost, "/api/v1/graph/records", sampleRecords(t))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var loaded struct {
		Rows         int `json:"rows"`
		NodesCreated int `json:"nodes_created"`
	}
	decode(t, w, &loaded)
	assert.Equal(t, 3, loaded.Rows)
	assert.Equal(t, 2, loaded.NodesCreated)

	w = f.do(t, http.MethodGet, "/api/v1/graph", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary GraphSummary
	decode(t, w, &summary)
	assert.Equal(t, 2, summary.Nodes)
	assert.Equal(t, 1, summary.Relations)
	require.Len(t, summary.NodeAttributes, 1)
	assert.Equal(t, "name", summary.NodeAttributes[0].Name)

	w = f.do(t, http.MethodGet, "/api/v1/graph/records?offset=1&limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rs, err := record.Decode(w.Body)
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())
	id, _ := rs.Row(0).Get(record.Key(record.Source, record.ID))
	assert.Equal(t, "1", id)

	w = f.do(t, http.MethodGet, "/api/v1/graph/records?limit=-3", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/graph/records", []byte("{"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/graph/records", sampleRecords(t)).Code)

	spec := domain.JobSpec{
		Workflow: domain.Workflow{
			Stages:     []string{"tag"},
			Parameters: map[string]any{"attribute": "team", "value": "blue"},
		},
		Selection: domain.SelectionSpec{All: true},
	}
	body, err := json.Marshal(spec)
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/v1/jobs", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var submitted JobSubmitResponse
	decode(t, w, &submitted)
	require.NotEmpty(t, submitted.JobID)
	assert.Equal(t, "submitted", submitted.Status)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = f.manager.Wait(ctx, submitted.JobID)
	require.NoError(t, err)

	w = f.do(t, http.MethodGet, "/api/v1/jobs/"+submitted.JobID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state domain.JobState
	decode(t, w, &state)
	assert.Equal(t, domain.ExecutionStatusCompleted, state.Status)
	assert.Equal(t, int64(1), state.Progress.Merged)

	team, _ := f.store.Snapshot().Value(graph.KindNode, 1, "team")
	assert.Equal(t, "blue", team)

	w = f.do(t, http.MethodGet, "/api/v1/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = f.do(t, http.MethodPost, "/api/v1/jobs/"+submitted.JobID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestJobErrors(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{name: "malformed", method: http.MethodPost, path: "/api/v1/jobs", body: "{", status: http.StatusBadRequest, code: "INVALID_REQUEST"},
		{name: "unknown stage", method: http.MethodPost, path: "/api/v1/jobs", body: `{"workflow":{"stages":["nope"]}}`, status: http.StatusUnprocessableEntity, code: "SUBMISSION_FAILED"},
		{name: "missing job", method: http.MethodGet, path: "/api/v1/jobs/missing", status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "cancel missing job", method: http.MethodPost, path: "/api/v1/jobs/missing/cancel", status: http.StatusNotFound, code: "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.method, tt.path, []byte(tt.body))
			assert.Equal(t, tt.status, w.Code)

			var resp ErrorResponse
			decode(t, w, &resp)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.False(t, strings.TrimSpace(resp.Error.Message) == "")
		})
	}
}
