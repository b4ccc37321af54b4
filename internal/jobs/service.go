// Package jobs runs imports asynchronously.
//
// A run is started by definition key and gets an ID immediately. Progress is
// pushed to subscribers over channels; the summary and run log stay
// available until the retention window after the run finishes.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/dataimport/internal/core"
	"github.com/JonMunkholm/dataimport/internal/definition"
	"github.com/JonMunkholm/dataimport/internal/logging"
	"github.com/JonMunkholm/dataimport/internal/metrics"
	"github.com/JonMunkholm/dataimport/internal/source"
)

// DefaultRunTimeout bounds a run when Options.RunTimeout is zero.
const DefaultRunTimeout = 30 * time.Minute

// DefaultRetention keeps finished runs when Options.Retention is zero.
const DefaultRetention = time.Hour

var (
	// ErrRunNotFound is returned for unknown or expired run IDs.
	ErrRunNotFound = errors.New("run not found")

	// ErrUnknownDefinition is returned when no definition has the given key.
	ErrUnknownDefinition = errors.New("unknown import definition")
)

// Store is the target store a run writes to. It also serves media items
// to sources.
type Store interface {
	core.TargetStore
	source.MediaLibrary
}

// StoreFactory returns the store for one run.
type StoreFactory func(ctx context.Context) (Store, error)

// Options configures a Service.
type Options struct {
	Catalog       *definition.Catalog
	NewStore      StoreFactory
	Env           source.Env // Media is replaced by the run's store
	MaxConcurrent int
	MaxWait       time.Duration
	RunTimeout    time.Duration
	Retention     time.Duration
}

// Progress is a point-in-time view of a run.
type Progress struct {
	RunID       string         `json:"runId"`
	Key         string         `json:"key"`
	Total       int            `json:"total"`
	Current     int            `json:"current"`
	Finished    bool           `json:"finished"`
	Status      core.RunStatus `json:"status,omitempty"`
	LastMessage string         `json:"lastMessage,omitempty"`
	StartedAt   time.Time      `json:"startedAt"`
}

// Percent returns completion in the range 0-100.
func (p Progress) Percent() int {
	if p.Total <= 0 {
		if p.Finished {
			return 100
		}
		return 0
	}
	return p.Current * 100 / p.Total
}

type activeRun struct {
	id        string
	key       string
	startedAt time.Time
	cancel    context.CancelFunc
	progress  *core.Progress
	log       *core.RunLog
	done      chan struct{}

	mu          sync.Mutex
	summary     *core.RunSummary
	lastMessage string
	listeners   []chan Progress
}

// Service owns every run started through it.
type Service struct {
	catalog    *definition.Catalog
	newStore   StoreFactory
	env        source.Env
	limiter    *RunLimiter
	runTimeout time.Duration
	retention  time.Duration

	mu   sync.RWMutex
	runs map[string]*activeRun
}

// NewService creates a Service.
func NewService(opts Options) (*Service, error) {
	if opts.Catalog == nil {
		return nil, errors.New("jobs: catalog is required")
	}
	if opts.NewStore == nil {
		return nil, errors.New("jobs: store factory is required")
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = DefaultRunTimeout
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}

	limiter := NewRunLimiter(opts.MaxConcurrent, opts.MaxWait)
	limiter.onChange = metrics.SetWaiting

	return &Service{
		catalog:    opts.Catalog,
		newStore:   opts.NewStore,
		env:        opts.Env,
		limiter:    limiter,
		runTimeout: opts.RunTimeout,
		retention:  opts.Retention,
		runs:       make(map[string]*activeRun),
	}, nil
}

// Catalog returns the definitions runs are started from.
func (s *Service) Catalog() *definition.Catalog {
	return s.catalog
}

// Start begins an asynchronous run of the definition with the given key and
// returns its ID. Use Subscribe to follow progress and Result to wait for the
// summary.
//
// Returns ErrTooManyRuns if no slot frees up within the wait time.
func (s *Service) Start(ctx context.Context, key string) (string, error) {
	def, ok := s.catalog.Get(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDefinition, key)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	runID := uuid.New().String()
	runCtx, cancel := context.WithTimeout(context.Background(), s.runTimeout)

	run := &activeRun{
		id:        runID,
		key:       key,
		startedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	run.progress = core.NewProgress(run.notify)
	run.log = core.NewRunLog(logging.ForRun(ctx, runID, key))
	run.log.OnLog(run.setMessage)

	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()

	metrics.RunStarted()

	// Process in background with panic recovery to ensure limiter release
	go func() {
		defer s.limiter.Release()
		defer cancel()

		summary := s.safeExecute(runCtx, run, def)

		metrics.RunFinished(summary)
		run.finish(summary)
		s.cleanup(runID, s.retention)
	}()

	return runID, nil
}

func (s *Service) safeExecute(ctx context.Context, run *activeRun, def *definition.Definition) (summary core.RunSummary) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in import run",
				"run_id", run.id,
				"definition", run.key,
				"panic", r,
			)
			summary = run.abort(fmt.Sprintf("internal error: %v", r))
		}
	}()
	return s.execute(ctx, run, def)
}

func (s *Service) execute(ctx context.Context, run *activeRun, def *definition.Definition) core.RunSummary {
	st, err := s.newStore(ctx)
	if err != nil {
		return run.abort(fmt.Sprintf("open target store: %v", err))
	}

	env := s.env
	env.Media = st

	ic, src, err := def.Build(definition.Runtime{Store: st, Logger: run.log, Env: env})
	if err != nil {
		return run.abort(err.Error())
	}

	p, err := core.NewProcessor(ic, src, run.progress)
	if err != nil {
		return run.abort(err.Error())
	}
	return p.Process(ctx)
}

// abort records a run that could not start.
func (r *activeRun) abort(reason string) core.RunSummary {
	r.log.Log(core.LogEntry{
		Time:     time.Now(),
		Category: "N/A",
		Message:  reason,
		Status:   core.StatusError,
	})
	now := time.Now()
	return core.RunSummary{
		Key:            r.key,
		Status:         core.RunAborted,
		HasLoggedError: true,
		StartedAt:      r.startedAt,
		FinishedAt:     now,
		Duration:       now.Sub(r.startedAt),
	}
}

// Subscribe returns a channel that receives progress updates.
// The channel is closed when the run completes.
func (s *Service) Subscribe(runID string) (<-chan Progress, error) {
	run, err := s.get(runID)
	if err != nil {
		return nil, err
	}

	ch := make(chan Progress, 16)

	run.mu.Lock()
	defer run.mu.Unlock()

	// Send current progress immediately
	ch <- run.snapshotLocked()
	if run.summary != nil {
		close(ch)
		return ch, nil
	}
	run.listeners = append(run.listeners, ch)
	return ch, nil
}

// Cancel requests cancellation. The run stops before its next row.
func (s *Service) Cancel(runID string) error {
	run, err := s.get(runID)
	if err != nil {
		return err
	}
	run.cancel()
	return nil
}

// Result waits for the run to finish and returns its summary.
func (s *Service) Result(ctx context.Context, runID string) (core.RunSummary, error) {
	run, err := s.get(runID)
	if err != nil {
		return core.RunSummary{}, err
	}

	select {
	case <-run.done:
	case <-ctx.Done():
		return core.RunSummary{}, ctx.Err()
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	return *run.summary, nil
}

// Progress returns the current progress without blocking.
func (s *Service) Progress(runID string) (Progress, error) {
	run, err := s.get(runID)
	if err != nil {
		return Progress{}, err
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.snapshotLocked(), nil
}

// Log returns the run log entries written so far.
func (s *Service) Log(runID string) ([]core.LogEntry, error) {
	run, err := s.get(runID)
	if err != nil {
		return nil, err
	}
	return run.log.Entries(), nil
}

// Runs lists every tracked run, newest first.
func (s *Service) Runs() []Progress {
	s.mu.RLock()
	runs := make([]*activeRun, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	s.mu.RUnlock()

	out := make([]Progress, 0, len(runs))
	for _, r := range runs {
		r.mu.Lock()
		out = append(out, r.snapshotLocked())
		r.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// LimiterStatus reports run slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForRuns blocks until every active run has finished or ctx is done.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// CancelAll cancels every run still in flight.
func (s *Service) CancelAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.runs {
		r.cancel()
	}
}

func (s *Service) get(runID string) (*activeRun, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, nil
}

// cleanup removes the run from tracking after a delay.
func (s *Service) cleanup(runID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}

func (r *activeRun) snapshotLocked() Progress {
	total, current, finished := r.progress.Snapshot()
	p := Progress{
		RunID:       r.id,
		Key:         r.key,
		Total:       total,
		Current:     current,
		Finished:    finished || r.summary != nil,
		LastMessage: r.lastMessage,
		StartedAt:   r.startedAt,
	}
	if r.summary != nil {
		p.Status = r.summary.Status
	}
	return p
}

func (r *activeRun) setMessage(e core.LogEntry) {
	r.mu.Lock()
	r.lastMessage = e.Message
	r.mu.Unlock()
}

// notify sends progress updates to all listeners.
func (r *activeRun) notify() {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.snapshotLocked()
	for _, ch := range r.listeners {
		select {
		case ch <- p:
		default:
			// Listener is slow, skip this update
		}
	}
}

// finish stores the summary, sends the final progress and closes every
// listener.
func (r *activeRun) finish(summary core.RunSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.summary = &summary
	p := r.snapshotLocked()
	for _, ch := range r.listeners {
		select {
		case ch <- p:
		default:
		}
		close(ch)
	}
	r.listeners = nil
	close(r.done)
}
