package core

import "sync/atomic"

// NopProgress discards every progress notification.
type NopProgress struct{}

func (NopProgress) SetTotal(int)         {}
func (NopProgress) SetCurrent(int)       {}
func (NopProgress) SetFinished()         {}
func (NopProgress) SetPriority(Priority) {}

// Progress is a ProgressReporter that keeps the latest values in atomics so
// another goroutine can poll them while the run is in flight.
type Progress struct {
	total    atomic.Int64
	current  atomic.Int64
	finished atomic.Bool
	priority atomic.Int32
	notify   func()
}

// NewProgress creates a Progress. notify, if non-nil, is called after every
// change and must not block.
func NewProgress(notify func()) *Progress {
	return &Progress{notify: notify}
}

func (p *Progress) SetTotal(n int) {
	p.total.Store(int64(n))
	p.current.Store(0)
	p.changed()
}

func (p *Progress) SetCurrent(i int) {
	p.current.Store(int64(i))
	p.changed()
}

func (p *Progress) SetFinished() {
	p.finished.Store(true)
	p.changed()
}

func (p *Progress) SetPriority(pr Priority) {
	p.priority.Store(int32(pr))
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() (total, current int, finished bool) {
	return int(p.total.Load()), int(p.current.Load()), p.finished.Load()
}

// Priority returns the last priority hint.
func (p *Progress) Priority() Priority {
	return Priority(p.priority.Load())
}

func (p *Progress) changed() {
	if p.notify != nil {
		p.notify()
	}
}
