package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/dataimport/internal/core"
)

func TestHandler_ExposesRunMetrics(t *testing.T) {
	RunStarted()
	RunFinished(core.RunSummary{
		Key:         "metrics_test",
		Status:      core.RunCompletedWithErrors,
		Imported:    3,
		Skipped:     1,
		FieldErrors: 2,
		Duration:    2 * time.Second,
	})
	SetWaiting(0)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	body, _ := io.ReadAll(rec.Body)
	out := string(body)
	for _, want := range []string{
		`dataimport_runs_total{definition="metrics_test",status="completed_with_errors"} 1`,
		`dataimport_rows_total{definition="metrics_test",outcome="imported"} 3`,
		`dataimport_rows_total{definition="metrics_test",outcome="skipped"} 1`,
		`dataimport_field_errors_total{definition="metrics_test"} 2`,
		`dataimport_active_runs 0`,
		`dataimport_waiting_runs 0`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
