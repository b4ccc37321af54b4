package web

//go:generate templ generate -f report.templ

import (
	"fmt"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/dataimport/internal/core"
	"github.com/JonMunkholm/dataimport/internal/jobs"
)

// ReportProps is everything the HTML run report shows.
type ReportProps struct {
	Progress jobs.Progress
	Summary  *core.RunSummary
	Entries  []core.LogEntry
}

type summaryRow struct {
	Label string
	Value string
}

func reportTitle(p ReportProps) string {
	return "Import " + p.Progress.Key
}

func runningText(p jobs.Progress) string {
	return fmt.Sprintf("Running: %d of %d rows (%d%%)", p.Current, p.Total, p.Percent())
}

func summaryRows(s *core.RunSummary) []summaryRow {
	return []summaryRow{
		{"Status", string(s.Status)},
		{"Total rows", fmt.Sprint(s.TotalRows)},
		{"Imported", fmt.Sprint(s.Imported)},
		{"Skipped", fmt.Sprint(s.Skipped)},
		{"Failed", fmt.Sprint(s.Failed)},
		{"Field errors", fmt.Sprint(s.FieldErrors)},
		{"Post-processor errors", fmt.Sprint(s.PostProcessorErrors)},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
	}
}

// reportEntries drops per-row timing entries.
func reportEntries(entries []core.LogEntry) []core.LogEntry {
	out := make([]core.LogEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Category != core.CategoryPerformance {
			out = append(out, entry)
		}
	}
	return out
}

func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	progress, err := s.jobs.Progress(runID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	entries, err := s.jobs.Log(runID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	props := ReportProps{Progress: progress, Entries: entries}
	if progress.Status != "" {
		summary, err := s.jobs.Result(r.Context(), runID)
		if err != nil {
			respondError(w, r, err)
			return
		}
		props.Summary = &summary
	}

	templ.Handler(RunReport(props)).ServeHTTP(w, r)
}
