package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout formats the start and finish markers in the run log.
const TimestampLayout = "2006-01-02 15:04:05"

// CategoryPerformance tags the per-row timing entries.
const CategoryPerformance = "Performance Statistic"

const (
	categoryNone      = "N/A"
	categorySuccess   = "Success"
	categoryFields    = "Process Fields"
	extraImportValues = "All Import Values"
)

// Processor drives one import run.
type Processor struct {
	ic       *ImportContext
	source   DataSource
	progress ProgressReporter
	now      func() time.Time
}

// NewProcessor creates a Processor for ic reading rows from source.
// A nil progress reporter is replaced with a no-op.
func NewProcessor(ic *ImportContext, source DataSource, progress ProgressReporter) (*Processor, error) {
	if ic == nil {
		return nil, errors.New("the provided import context was nil")
	}
	if source == nil {
		return nil, errors.New("the provided data source was nil")
	}
	if err := ic.Validate(); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = NopProgress{}
	}

	return &Processor{
		ic:       ic,
		source:   source,
		progress: progress,
		now:      time.Now,
	}, nil
}

// Process runs the import to completion and returns its summary.
// It never fails; every problem ends up in the run log.
func (p *Processor) Process(ctx context.Context) RunSummary {
	summary := RunSummary{
		Key:       p.ic.Key,
		StartedAt: p.now(),
	}

	p.logf(categoryNone, StatusInfo, "Import Started at: %s", summary.StartedAt.Format(TimestampLayout))
	p.progress.SetPriority(PriorityHigh)

	summary.Status = p.run(ctx, &summary)

	if summary.Status != RunAborted {
		if !p.ic.Logger.HasLoggedError() {
			p.logf(categorySuccess, StatusInfo, "the import completed successfully")
		}
		p.logf(categoryNone, StatusInfo, "Total Items Processed: %d", summary.TotalRows)
	}

	summary.FinishedAt = p.now()
	summary.Duration = summary.FinishedAt.Sub(summary.StartedAt)
	summary.HasLoggedError = p.ic.Logger.HasLoggedError()
	if summary.Status == RunSucceeded && summary.HasLoggedError {
		summary.Status = RunCompletedWithErrors
	}

	p.logf(categoryNone, StatusInfo, "Import Finished at: %s", summary.FinishedAt.Format(TimestampLayout))
	p.progress.SetFinished()

	return summary
}

// run executes FetchRows, RowLoop and PostProcess inside the batch scope.
// The scope is released on every return path.
func (p *Processor) run(ctx context.Context, summary *RunSummary) RunStatus {
	store := p.ic.Store
	if err := store.BeginBatch(ctx); err != nil {
		p.logf(categoryNone, StatusError, "BeginBatch Failed: %v", err)
		return RunAborted
	}
	defer func() {
		if err := store.EndBatch(context.WithoutCancel(ctx)); err != nil {
			p.logf(categoryNone, StatusError, "EndBatch Failed: %v", err)
		}
	}()

	rows, err := p.fetch(ctx)
	if err != nil {
		p.logf(categoryNone, StatusError, "GetImportData Failed: %v", err)
		return RunAborted
	}

	summary.TotalRows = len(rows)
	p.progress.SetTotal(len(rows))

	for i := range rows {
		line := i + 1

		if err := ctx.Err(); err != nil {
			p.logf(categoryNone, StatusError, "Import cancelled at row %d: %v", line, err)
			return RunCancelled
		}

		start := p.now()
		summary.record(p.processRow(ctx, line, rows[i]))
		rows[i] = nil

		p.logf(CategoryPerformance, StatusInfo, "Used %.4f to process this item.", p.now().Sub(start).Seconds())
		p.progress.SetCurrent(line)
	}

	summary.PostProcessorErrors = p.postProcess(ctx)
	return RunSucceeded
}

// fetch reads every row. A panicking source is reported like an unreadable one.
func (p *Processor) fetch(ctx context.Context) (rows []RowRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Unavailable(p.ic.Query, "source panicked", panicError(r))
		}
	}()
	return p.source.Fetch(ctx, p.ic.Query)
}

// processRow imports a single row. Every failure is logged here and folded
// into the returned outcome; nothing escapes to the row loop.
func (p *Processor) processRow(ctx context.Context, line int, row RowRecord) (out RowOutcome) {
	out.Line = line
	defer func() {
		if r := recover(); r != nil {
			out = p.rowFailed(line, row, panicError(r))
		}
	}()

	name := p.ic.BuildItemName(row)
	if name == "" {
		p.logf(categoryNone, StatusNewItemError, "BuildNewItemName failed on import row %d because the new item name was empty", line)
		return RowOutcome{Line: line, Kind: RowSkipped, Err: fmt.Errorf("row %d: empty item name: %w", line, ErrNewItem)}
	}

	parent, err := p.resolveParent(ctx, row)
	if err != nil {
		if errors.Is(err, ErrNewItem) {
			p.logf(categoryNone, StatusNewItemError, "Get parent failed on import row %d because the new item's parent is null", line)
			return RowOutcome{Line: line, Kind: RowSkipped, Err: err}
		}
		return p.rowFailed(line, row, err)
	}

	item, err := p.ic.Store.CreateOrUpdate(ctx, parent, name, row)
	if err != nil {
		return p.rowFailed(line, row, fmt.Errorf("create item %q: %w", name, err))
	}

	return RowOutcome{
		Line:        line,
		Kind:        RowImported,
		Item:        item,
		FieldErrors: p.fillFields(ctx, row, item),
	}
}

// resolveParent finds the container for a row's item: the import root, or a
// folder below it when a folder rule is configured.
func (p *Processor) resolveParent(ctx context.Context, row RowRecord) (*Item, error) {
	store := p.ic.Store

	root, err := store.ResolveParent(ctx, p.ic.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", p.ic.Root, err)
	}
	if root == nil {
		return nil, fmt.Errorf("root %q not found: %w", p.ic.Root, ErrNewItem)
	}

	folder := p.ic.folderName(row)
	if folder == "" {
		return root, nil
	}

	path := JoinPath(root.Path, folder)
	parent, err := store.ResolveParent(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("resolve folder %q: %w", path, err)
	}
	if parent != nil {
		return parent, nil
	}
	if !p.ic.Folder.Create {
		return nil, fmt.Errorf("folder %q not found: %w", path, ErrNewItem)
	}

	parent, err = store.CreateOrUpdate(ctx, root, folder, nil)
	if err != nil {
		return nil, fmt.Errorf("create folder %q: %w", path, err)
	}
	return parent, nil
}

// fillFields runs every mapper in configured order and returns the number of
// fields that failed.
func (p *Processor) fillFields(ctx context.Context, row RowRecord, item *Item) int {
	failed := 0
	for _, m := range p.ic.Mappers {
		values := make([]string, 0, len(m.RequiredColumns()))
		for _, col := range m.RequiredColumns() {
			values = append(values, row.Value(col))
		}
		value := strings.Join(values, m.JoinDelimiter())

		if err := p.fillField(ctx, m, item, value); err != nil {
			failed++
			p.logf(categoryFields, StatusFieldFillError, "the FillField failed for field %s on item %s: %v", m.Field(), item.Path, err)
		}
	}
	return failed
}

func (p *Processor) fillField(ctx context.Context, m FieldMapper, item *Item, value string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return m.FillField(ctx, p.ic, item, value)
}

func (p *Processor) rowFailed(line int, row RowRecord, err error) RowOutcome {
	p.ic.Logger.Log(LogEntry{
		Time:       p.now(),
		Category:   categoryNone,
		Message:    fmt.Sprintf("Exception thrown on import row %d : %v", line, err),
		Status:     StatusRowError,
		ExtraKey:   extraImportValues,
		ExtraValue: describeRow(row),
	})
	return RowOutcome{Line: line, Kind: RowFailed, Err: err}
}

// describeRow returns the raw row contents, or "" when the row cannot
// describe itself.
func describeRow(row RowRecord) (values string) {
	if row == nil {
		return ""
	}
	defer func() {
		if recover() != nil {
			values = ""
		}
	}()
	return row.Describe()
}

// postProcess runs each post-processor in order and returns how many failed.
func (p *Processor) postProcess(ctx context.Context) int {
	failed := 0
	p.progress.SetTotal(len(p.ic.PostProcessors))

	for i, pp := range p.ic.PostProcessors {
		p.progress.SetCurrent(i + 1)

		if err := p.runPostProcessor(ctx, pp); err != nil {
			failed++
			p.logf(categoryNone, StatusPostProcessorError, "Post Processor of type: %s (%T) failed. Error: %v", pp.Name(), pp, err)
		}
	}
	return failed
}

func (p *Processor) runPostProcessor(ctx context.Context, pp PostProcessor) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return pp.Process(ctx, p.ic)
}

func (p *Processor) logf(category string, status Status, format string, args ...any) {
	p.ic.Logger.Log(LogEntry{
		Time:     p.now(),
		Category: category,
		Message:  fmt.Sprintf(format, args...),
		Status:   status,
	})
}
