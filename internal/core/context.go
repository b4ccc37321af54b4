package core

import (
	"errors"
	"time"
)

// DefaultMaxNameLength caps generated item names when NameRule.MaxLength is 0.
const DefaultMaxNameLength = 100

// NameRule describes how an item name is derived from a row.
type NameRule struct {
	Columns   []string // Source columns joined to form the name
	Delimiter string   // Placed between column values
	MaxLength int      // Longer names are truncated (default: DefaultMaxNameLength)
}

// FolderRule optionally places items in a sub-container named after a column.
type FolderRule struct {
	Column string // Empty disables foldering
	Create bool   // Create the folder under the root when it is missing
}

// ImportContext is the shared state of one run.
//
// It is built once before the run and never mutated afterwards; mappers and
// post-processors receive it by pointer and may only change the target store.
type ImportContext struct {
	Key            string // Definition key, used in logs
	Query          string // Source descriptor handed to DataSource.Fetch
	Root           string // Path of the container that receives new items
	Naming         NameRule
	Folder         FolderRule
	Mappers        []FieldMapper
	PostProcessors []PostProcessor
	Store          TargetStore
	Logger         Logger
}

// Validate checks the collaborators a run cannot start without.
func (ic *ImportContext) Validate() error {
	var errs []error
	if ic.Store == nil {
		errs = append(errs, errors.New("import context has no target store"))
	}
	if ic.Logger == nil {
		errs = append(errs, errors.New("import context has no logger"))
	}
	if ic.Root == "" {
		errs = append(errs, errors.New("import context has no root path"))
	}
	if len(ic.Naming.Columns) == 0 {
		errs = append(errs, errors.New("import context has no name columns"))
	}
	return errors.Join(errs...)
}

// Log records an entry on the run logger. Post-processors use it to report
// what they did.
func (ic *ImportContext) Log(category, message string, status Status) {
	ic.Logger.Log(LogEntry{
		Time:     time.Now(),
		Category: category,
		Message:  message,
		Status:   status,
	})
}
