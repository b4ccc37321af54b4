// Package core provides the import orchestration engine.
//
// This package is the heart of the importer, containing the row loop and the
// contracts every source, mapper, post-processor and target store satisfies.
// It has no knowledge of file formats, databases or HTTP and can be driven by
// the jobs service, the CLI, or tests without modification.
//
// # Architecture
//
// The package is organized around a handful of small interfaces:
//
//   - [DataSource]: turns a query descriptor into a finite, ordered slice of
//     [RowRecord] values.
//   - [FieldMapper]: converts one or more source columns into one target
//     field value.
//   - [PostProcessor]: runs once after every row has been consumed.
//   - [TargetStore]: creates, locates and updates target items.
//   - [Logger] and [ProgressReporter]: the reporting surface of a run.
//
// # Run Lifecycle
//
// [Processor.Process] drives a run through a linear state machine:
//
//  1. Start: log the start time and raise the host priority hint
//  2. FetchRows: read every row; failure here is the only fatal abort
//  3. RowLoop: name, parent, create-or-update, fill fields (one row at a time)
//  4. PostProcess: run each post-processor in configured order
//  5. Finalize: success marker, totals, finished timestamp
//
// The whole run executes inside the store's batch scope, which is released on
// every exit path.
//
// # Error Isolation
//
// Failures are contained at the smallest possible boundary:
//
//   - FieldFillError: one field on one item; remaining fields still run
//   - NewItemError: empty name or missing parent; the row is skipped
//   - RowError: any other failure (or panic) while processing a row
//   - PostProcessorError: one post-processor; later ones still run
//
// Only a source that cannot be read at all ([ErrSourceUnavailable]) stops a
// run early. [Processor.Process] never returns an error; callers inspect the
// returned [RunSummary] and the run log.
package core
