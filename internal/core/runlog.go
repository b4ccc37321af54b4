package core

import (
	"context"
	"log/slog"
	"sync"
)

// RunLog is the default Logger. It retains every entry for reporting and
// mirrors each one to slog.
//
// RunLog is safe for concurrent use: the jobs service reads entries while
// the run is still writing them.
type RunLog struct {
	mu       sync.RWMutex
	entries  []LogEntry
	hasError bool
	logger   *slog.Logger
	onLog    func(LogEntry)
}

// NewRunLog creates an empty run log. A nil logger disables mirroring.
func NewRunLog(logger *slog.Logger) *RunLog {
	return &RunLog{logger: logger}
}

// OnLog registers a callback invoked after each entry is stored.
// Must be called before the run starts.
func (l *RunLog) OnLog(fn func(LogEntry)) {
	l.onLog = fn
}

// Log implements Logger.
func (l *RunLog) Log(entry LogEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	if entry.Status.IsError() {
		l.hasError = true
	}
	l.mu.Unlock()

	l.mirror(entry)

	if l.onLog != nil {
		l.onLog(entry)
	}
}

// HasLoggedError implements Logger.
func (l *RunLog) HasLoggedError() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hasError
}

// Entries returns a copy of every entry logged so far.
func (l *RunLog) Entries() []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Errors returns a copy of the entries with an error status.
func (l *RunLog) Errors() []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []LogEntry
	for _, e := range l.entries {
		if e.Status.IsError() {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of entries logged so far.
func (l *RunLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *RunLog) mirror(entry LogEntry) {
	if l.logger == nil {
		return
	}

	// Performance statistics are one per row; keep them out of info logs.
	level := slog.LevelInfo
	switch entry.Status {
	case StatusError:
		level = slog.LevelError
	case StatusNewItemError, StatusFieldFillError, StatusRowError, StatusPostProcessorError:
		level = slog.LevelWarn
	default:
		if entry.Category == CategoryPerformance {
			level = slog.LevelDebug
		}
	}

	attrs := []slog.Attr{
		slog.String("category", entry.Category),
		slog.String("status", string(entry.Status)),
	}
	if entry.ExtraKey != "" {
		attrs = append(attrs, slog.String("extra_key", entry.ExtraKey), slog.String("extra_value", entry.ExtraValue))
	}
	l.logger.LogAttrs(context.Background(), level, entry.Message, attrs...)
}
