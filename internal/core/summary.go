package core

import "time"

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	RunSucceeded           RunStatus = "succeeded"
	RunCompletedWithErrors RunStatus = "completed_with_errors"
	RunAborted             RunStatus = "aborted"
	RunCancelled           RunStatus = "cancelled"
)

// OutcomeKind classifies how a single row ended.
type OutcomeKind int

const (
	RowImported OutcomeKind = iota // Item created or updated; fields may have failed
	RowSkipped                     // NewItemError: no name or no parent
	RowFailed                      // RowError: anything else
)

// RowOutcome is the result of processing one row.
type RowOutcome struct {
	Line        int
	Kind        OutcomeKind
	Item        *Item
	FieldErrors int
	Err         error
}

// RunSummary is built incrementally during a run and finalized at the end.
type RunSummary struct {
	Key                 string        `json:"key"`
	Status              RunStatus     `json:"status"`
	TotalRows           int           `json:"totalRows"`
	RowsProcessed       int           `json:"rowsProcessed"`
	Imported            int           `json:"imported"`
	Skipped             int           `json:"skipped"`
	Failed              int           `json:"failed"`
	FieldErrors         int           `json:"fieldErrors"`
	PostProcessorErrors int           `json:"postProcessorErrors"`
	HasLoggedError      bool          `json:"hasLoggedError"`
	StartedAt           time.Time     `json:"startedAt"`
	FinishedAt          time.Time     `json:"finishedAt"`
	Duration            time.Duration `json:"duration"`
}

// RowsFailed counts rows that did not produce an item.
func (s RunSummary) RowsFailed() int {
	return s.Skipped + s.Failed
}

func (s *RunSummary) record(o RowOutcome) {
	s.RowsProcessed++
	s.FieldErrors += o.FieldErrors
	switch o.Kind {
	case RowImported:
		s.Imported++
	case RowSkipped:
		s.Skipped++
	case RowFailed:
		s.Failed++
	}
}
