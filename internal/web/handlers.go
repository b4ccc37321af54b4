package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/dataimport/internal/core"
	"github.com/JonMunkholm/dataimport/internal/definition"
	"github.com/JonMunkholm/dataimport/internal/jobs"
)

// DefinitionInfo is the list view of an import definition.
type DefinitionInfo struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Group       string `json:"group"`
	SourceKind  string `json:"sourceKind"`
	Root        string `json:"root"`
	Fields      int    `json:"fields"`
}

func infoOf(d *definition.Definition) DefinitionInfo {
	return DefinitionInfo{
		Key:         d.Key,
		Name:        d.Name,
		Description: d.Description,
		Group:       d.Group,
		SourceKind:  d.Source.Kind,
		Root:        d.Root,
		Fields:      len(d.Mappings),
	}
}

// StartRunRequest is the body of POST /api/runs.
type StartRunRequest struct {
	Definition string `json:"definition"`
}

// RunResponse describes a run; Summary is set once it has finished.
type RunResponse struct {
	jobs.Progress
	Summary *core.RunSummary `json:"summary,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"definitions": s.jobs.Catalog().Len(),
		"runs":        s.jobs.LimiterStatus(),
	})
}

func (s *Server) handleListDefinitions(w http.ResponseWriter, r *http.Request) {
	defs := s.jobs.Catalog().All()
	if group := r.URL.Query().Get("group"); group != "" {
		defs = s.jobs.Catalog().ByGroup(group)
	}

	infos := make([]DefinitionInfo, len(defs))
	for i, d := range defs {
		infos[i] = infoOf(d)
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleGetDefinition(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	def, ok := s.jobs.Catalog().Get(key)
	if !ok {
		respondError(w, r, fmt.Errorf("%w: %s", jobs.ErrUnknownDefinition, key))
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobs.Runs())
}

// handleStartRun starts a run and returns its ID immediately.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Definition == "" {
		writeBadRequest(w, "definition is required")
		return
	}

	runID, err := s.jobs.Start(r.Context(), req.Definition)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/runs/"+runID)
	writeJSON(w, http.StatusAccepted, map[string]string{"runId": runID})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	progress, err := s.jobs.Progress(runID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := RunResponse{Progress: progress}
	if progress.Status != "" {
		summary, err := s.jobs.Result(r.Context(), runID)
		if err != nil {
			respondError(w, r, err)
			return
		}
		resp.Summary = &summary
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	if err := s.jobs.Cancel(chi.URLParam(r, "runID")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// handleRunLog returns the run log. With ?errors=true only error entries
// are returned.
func (s *Server) handleRunLog(w http.ResponseWriter, r *http.Request) {
	entries, err := s.jobs.Log(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	if onlyErrors, _ := strconv.ParseBool(r.URL.Query().Get("errors")); onlyErrors {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Status.IsError() {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	writeJSON(w, http.StatusOK, entries)
}

// eventSequence numbers progress events. IDs only grow, so a client can
// resume with Last-Event-ID even when the percentage goes down, as it does
// when a run moves from rows to post-processors.
type eventSequence struct {
	id   int
	last jobs.Progress
	sent bool
}

// next returns the ID for p, or false when p repeats the last event.
func (e *eventSequence) next(p jobs.Progress) (int, bool) {
	if e.sent && sameProgress(e.last, p) {
		return 0, false
	}
	e.id++
	e.last = p
	e.sent = true
	return e.id, true
}

func sameProgress(a, b jobs.Progress) bool {
	return a.Total == b.Total &&
		a.Current == b.Current &&
		a.Finished == b.Finished &&
		a.Status == b.Status &&
		a.LastMessage == b.LastMessage
}

// handleRunEvents streams progress as server-sent events until the run
// finishes or the client goes away.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	var seq eventSequence
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			seq.id = n
		}
	}

	progressCh, err := s.jobs.Subscribe(runID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				_ = rc.Flush()
				return
			}

			id, ok := seq.next(progress)
			if !ok {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", id, data)
			_ = rc.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
