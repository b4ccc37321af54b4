package core

import (
	"context"
	"time"
)

// Status classifies a run log entry.
type Status string

const (
	StatusInfo               Status = "info"
	StatusError              Status = "error"
	StatusNewItemError       Status = "new_item_error"
	StatusFieldFillError     Status = "field_fill_error"
	StatusRowError           Status = "row_error"
	StatusPostProcessorError Status = "post_processor_error"
)

// IsError reports whether entries with this status count as logged errors.
func (s Status) IsError() bool {
	return s != StatusInfo && s != ""
}

// Priority is a scheduling hint passed to the host running an import.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

// LogEntry is a single run log record.
type LogEntry struct {
	Time       time.Time `json:"time"`
	Category   string    `json:"category"`
	Message    string    `json:"message"`
	Status     Status    `json:"status"`
	ExtraKey   string    `json:"extraKey,omitempty"`
	ExtraValue string    `json:"extraValue,omitempty"`
}

// Logger records run events. HasLoggedError reports whether any entry with
// an error status has been logged since the logger was created.
type Logger interface {
	Log(entry LogEntry)
	HasLoggedError() bool
}

// ProgressReporter receives fire-and-forget progress notifications from a run.
type ProgressReporter interface {
	SetTotal(n int)
	SetCurrent(i int)
	SetFinished()
	SetPriority(p Priority)
}

// RowRecord is one logical row produced by a DataSource.
type RowRecord interface {
	// Value returns the column identified by key, or "" when the column is
	// absent. It never panics, whatever the key.
	Value(key string) string

	// Describe renders the raw row for diagnostics.
	Describe() string
}

// DataSource produces the rows of one import run.
//
// Fetch is finite and may be eager; calling it again with the same query
// restarts from the beginning. A query that cannot be resolved at all must
// return an error wrapping ErrSourceUnavailable.
type DataSource interface {
	Fetch(ctx context.Context, query string) ([]RowRecord, error)
}

// Item is a handle to an object in the target store.
type Item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// TargetStore is the external collaborator that holds imported items.
type TargetStore interface {
	// ResolveParent locates the container at path. It returns nil, nil when
	// nothing exists there.
	ResolveParent(ctx context.Context, path string) (*Item, error)

	// CreateOrUpdate returns the child of parent called name, creating it
	// when it does not exist yet.
	CreateOrUpdate(ctx context.Context, parent *Item, name string, row RowRecord) (*Item, error)

	SetField(ctx context.Context, item *Item, field, value string) error

	// Field returns a stored value and whether the field has ever been set.
	Field(ctx context.Context, item *Item, field string) (string, bool, error)

	// Walk visits root and every descendant in creation order.
	Walk(ctx context.Context, root *Item, fn func(*Item) error) error

	// BeginBatch and EndBatch bracket a run. Stores may defer expensive
	// per-write bookkeeping until EndBatch.
	BeginBatch(ctx context.Context) error
	EndBatch(ctx context.Context) error
}

// FieldMapper converts one or more source columns into a single target
// field value.
type FieldMapper interface {
	// Field is the target field name.
	Field() string

	// RequiredColumns lists the source column keys read for this field.
	RequiredColumns() []string

	// JoinDelimiter joins multiple column values before FillField.
	JoinDelimiter() string

	FillField(ctx context.Context, ic *ImportContext, item *Item, value string) error
}

// PostProcessor runs once after every row has been processed.
type PostProcessor interface {
	Name() string
	Process(ctx context.Context, ic *ImportContext) error
}
