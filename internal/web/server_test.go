package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/dataimport/internal/config"
	"github.com/JonMunkholm/dataimport/internal/core"
	"github.com/JonMunkholm/dataimport/internal/definition"
	"github.com/JonMunkholm/dataimport/internal/jobs"
	"github.com/JonMunkholm/dataimport/internal/source"
	"github.com/JonMunkholm/dataimport/internal/store"
)

const productsYAML = `
key: products
name: Products
group: Catalog
source:
  query: products.txt
  settings:
    Field Delimiter: ";"
root: /content/products
naming:
  columns: ["0"]
mappings:
  - field: Title
    columns: ["1"]
`

func newTestServer(t *testing.T) (*Server, *jobs.Service) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "products.txt"),
		[]byte("A1;<b>Hammer</b>\nB2;Saw"), 0o644))

	def, err := definition.Parse([]byte(productsYAML))
	require.NoError(t, err)
	catalog := definition.NewCatalog()
	require.NoError(t, catalog.Add(def))

	mem := store.NewMemory("/content/products")
	svc, err := jobs.NewService(jobs.Options{
		Catalog:  catalog,
		NewStore: func(context.Context) (jobs.Store, error) { return mem, nil },
		Env:      source.Env{BaseDir: dir},
	})
	require.NoError(t, err)

	return NewServer(svc, config.ServerConfig{}), svc
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func startRun(t *testing.T, s *Server, svc *jobs.Service) string {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/runs", StartRunRequest{Definition: "products"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	runID := resp["runId"]
	require.NotEmpty(t, runID)
	assert.Equal(t, "/api/runs/"+runID, rec.Header().Get("Location"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := svc.Result(ctx, runID)
	require.NoError(t, err)
	return runID
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestListAndGetDefinitions(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/definitions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var infos []DefinitionInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&infos))
	require.Len(t, infos, 1)
	assert.Equal(t, DefinitionInfo{
		Key: "products", Name: "Products", Group: "Catalog",
		SourceKind: "text", Root: "/content/products", Fields: 1,
	}, infos[0])

	rec = do(t, s, http.MethodGet, "/api/definitions?group=Other", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/definitions/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"root":"/content/products"`)

	rec = do(t, s, http.MethodGet, "/api/definitions/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.Equal(t, "DEF001", errResp.Code)
}

func TestStartRun_Validation(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/runs", StartRunRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/runs", StartRunRequest{Definition: "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunLifecycle(t *testing.T) {
	s, svc := newTestServer(t)
	runID := startRun(t, s, svc)

	rec := do(t, s, http.MethodGet, "/api/runs/"+runID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var run struct {
		RunID    string           `json:"runId"`
		Finished bool             `json:"finished"`
		Summary  *core.RunSummary `json:"summary"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&run))
	assert.Equal(t, runID, run.RunID)
	assert.True(t, run.Finished)
	require.NotNil(t, run.Summary)
	assert.Equal(t, core.RunSucceeded, run.Summary.Status)
	assert.Equal(t, 2, run.Summary.Imported)

	rec = do(t, s, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), runID)

	rec = do(t, s, http.MethodGet, "/api/runs/"+runID+"/log", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []core.LogEntry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entries))
	require.NotEmpty(t, entries)
	assert.Contains(t, entries[0].Message, "Import Started at")

	rec = do(t, s, http.MethodGet, "/api/runs/"+runID+"/log?errors=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	// Cancelling a finished run is accepted and has no effect.
	rec = do(t, s, http.MethodDelete, "/api/runs/"+runID, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestRunEvents_FinishedRun(t *testing.T) {
	s, svc := newTestServer(t)
	runID := startRun(t, s, svc)

	rec := do(t, s, http.MethodGet, "/api/runs/"+runID+"/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "id: 1\nevent: progress\n")
	assert.Contains(t, body, `"status":"succeeded"`)
	assert.True(t, strings.HasSuffix(body, "event: complete\ndata: {}\n\n"))
}

func TestRunEvents_ResumesAfterLastEventID(t *testing.T) {
	s, svc := newTestServer(t)
	runID := startRun(t, s, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+runID+"/events", nil)
	req.Header.Set("Last-Event-ID", "41")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "id: 42\nevent: progress\n")
}

func TestEventSequence(t *testing.T) {
	var seq eventSequence
	steps := []struct {
		p      jobs.Progress
		wantID int
		wantOK bool
	}{
		{jobs.Progress{Total: 4, Current: 2}, 1, true},
		{jobs.Progress{Total: 4, Current: 2}, 0, false},
		{jobs.Progress{Total: 4, Current: 4}, 2, true},
		// Post-processing restarts the count; the event is still sent.
		{jobs.Progress{Total: 2, Current: 0}, 3, true},
		{jobs.Progress{Total: 2, Current: 1}, 4, true},
		{jobs.Progress{Total: 2, Current: 2, Finished: true, Status: core.RunSucceeded}, 5, true},
	}
	for i, st := range steps {
		id, ok := seq.next(st.p)
		assert.Equal(t, st.wantOK, ok, "step %d", i)
		assert.Equal(t, st.wantID, id, "step %d", i)
	}
}

func TestRunReport(t *testing.T) {
	s, svc := newTestServer(t)
	runID := startRun(t, s, svc)

	rec := do(t, s, http.MethodGet, "/api/runs/"+runID+"/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	assert.Contains(t, body, "<h1>Import products</h1>")
	assert.Contains(t, body, "<th>Imported</th><td>2</td>")
	assert.Contains(t, body, "Import Finished at")
	assert.NotContains(t, body, "Used ")
}

func TestRunReport_RunningWithErrors(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	props := ReportProps{
		Progress: jobs.Progress{RunID: "r1", Key: "products", Total: 4, Current: 1, StartedAt: at},
		Entries: []core.LogEntry{
			{Time: at, Category: "Row 1", Status: core.StatusRowError, Message: "<script>bad</script>", ExtraValue: "a;b"},
			{Time: at, Category: core.CategoryPerformance, Status: core.StatusInfo, Message: "Used 0.0010 to process this item."},
			{Time: at, Category: "Row 2", Status: core.StatusInfo, Message: "ok"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, RunReport(props).Render(context.Background(), &buf))
	body := buf.String()

	assert.Contains(t, body, "<p>Running: 1 of 4 rows (25%)</p>")
	assert.NotContains(t, body, "<h2>Summary</h2>")
	assert.Contains(t, body, `<tr class="error"><td>09:30:00</td><td>Row 1</td>`)
	assert.Contains(t, body, "&lt;script&gt;bad&lt;/script&gt;")
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "<tr><td>09:30:00</td><td>Row 2</td>")
	assert.NotContains(t, body, "Used 0.0010")
}

func TestRunNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	for _, path := range []string{"/api/runs/x", "/api/runs/x/log", "/api/runs/x/events", "/api/runs/x/report"} {
		rec := do(t, s, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "RUN001", path)
	}
	rec := do(t, s, http.MethodPost, "/api/runs/x/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"definitions":1`)

	rec = do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dataimport_active_runs")
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err    error
		code   string
		status int
	}{
		{fmt.Errorf("start: %w", jobs.ErrUnknownDefinition), "DEF001", http.StatusNotFound},
		{&definition.ValidationError{Key: "k", Problems: []string{"x"}}, "DEF002", http.StatusUnprocessableEntity},
		{jobs.ErrRunNotFound, "RUN001", http.StatusNotFound},
		{jobs.ErrTooManyRuns, "RUN002", http.StatusServiceUnavailable},
		{core.Unavailable("a.txt", "file not found", nil), "SRC001", http.StatusBadGateway},
		{context.DeadlineExceeded, "RUN003", http.StatusGatewayTimeout},
		{errors.New("dial tcp: Connection Refused"), "DB004", http.StatusServiceUnavailable},
		{errors.New("boom"), "ERR000", http.StatusInternalServerError},
		{nil, "ERR000", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		msg := MapError(tt.err)
		assert.Equal(t, tt.code, msg.Code, "%v", tt.err)
		assert.Equal(t, tt.status, msg.Status, "%v", tt.err)
	}
}
