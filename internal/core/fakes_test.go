package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// mapRow is a RowRecord backed by a map.
type mapRow map[string]string

func (r mapRow) Value(key string) string { return r[key] }

func (r mapRow) Describe() string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+r[k])
	}
	return strings.Join(parts, "||")
}

type fakeSource struct {
	rows    []RowRecord
	err     error
	queries []string
}

func (s *fakeSource) Fetch(_ context.Context, query string) ([]RowRecord, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.rows, nil
}

// fakeStore is a minimal path-keyed TargetStore.
type fakeStore struct {
	mu        sync.Mutex
	items     map[string]*Item
	order     []string
	fields    map[string]map[string]string
	nextID    int
	begun     int
	ended     int
	createErr func(name string) error
}

func newFakeStore(roots ...string) *fakeStore {
	s := &fakeStore{
		items:  make(map[string]*Item),
		fields: make(map[string]map[string]string),
	}
	for _, r := range roots {
		s.add(r[strings.LastIndex(r, "/")+1:], r)
	}
	return s
}

func (s *fakeStore) add(name, path string) *Item {
	s.nextID++
	it := &Item{ID: fmt.Sprintf("id-%d", s.nextID), Name: name, Path: path}
	s.items[path] = it
	s.order = append(s.order, path)
	return it
}

func (s *fakeStore) ResolveParent(_ context.Context, path string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[path], nil
}

func (s *fakeStore) CreateOrUpdate(_ context.Context, parent *Item, name string, _ RowRecord) (*Item, error) {
	if s.createErr != nil {
		if err := s.createErr(name); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := JoinPath(parent.Path, name)
	if it, ok := s.items[path]; ok {
		return it, nil
	}
	return s.add(name, path), nil
}

func (s *fakeStore) SetField(_ context.Context, item *Item, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fields[item.ID] == nil {
		s.fields[item.ID] = make(map[string]string)
	}
	s.fields[item.ID][field] = value
	return nil
}

func (s *fakeStore) Field(_ context.Context, item *Item, field string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.fields[item.ID][field]
	return v, ok, nil
}

func (s *fakeStore) Walk(_ context.Context, root *Item, fn func(*Item) error) error {
	s.mu.Lock()
	paths := append([]string(nil), s.order...)
	s.mu.Unlock()
	for _, p := range paths {
		if p == root.Path || strings.HasPrefix(p, root.Path+"/") {
			if err := fn(s.items[p]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *fakeStore) BeginBatch(context.Context) error { s.begun++; return nil }
func (s *fakeStore) EndBatch(context.Context) error   { s.ended++; return nil }

func (s *fakeStore) get(path string) *Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[path]
}

// funcMapper adapts a function to FieldMapper.
type funcMapper struct {
	field string
	cols  []string
	delim string
	fill  func(ctx context.Context, ic *ImportContext, item *Item, value string) error
}

func (m funcMapper) Field() string             { return m.field }
func (m funcMapper) RequiredColumns() []string { return m.cols }
func (m funcMapper) JoinDelimiter() string     { return m.delim }

func (m funcMapper) FillField(ctx context.Context, ic *ImportContext, item *Item, value string) error {
	return m.fill(ctx, ic, item, value)
}

// copyMapper writes the joined value straight into the store.
func copyMapper(field string, cols ...string) funcMapper {
	return funcMapper{
		field: field,
		cols:  cols,
		delim: " ",
		fill: func(ctx context.Context, ic *ImportContext, item *Item, value string) error {
			return ic.Store.SetField(ctx, item, field, value)
		},
	}
}

func failingMapper(field string) funcMapper {
	return funcMapper{
		field: field,
		fill: func(context.Context, *ImportContext, *Item, string) error {
			return errors.New("conversion failed")
		},
	}
}

type funcPostProcessor struct {
	name string
	fn   func(ctx context.Context, ic *ImportContext) error
}

func (p funcPostProcessor) Name() string { return p.name }

func (p funcPostProcessor) Process(ctx context.Context, ic *ImportContext) error {
	return p.fn(ctx, ic)
}

// recordingProgress captures every notification.
type recordingProgress struct {
	totals   []int
	current  []int
	finished int
	priority []Priority
}

func (p *recordingProgress) SetTotal(n int)          { p.totals = append(p.totals, n) }
func (p *recordingProgress) SetCurrent(i int)        { p.current = append(p.current, i) }
func (p *recordingProgress) SetFinished()            { p.finished++ }
func (p *recordingProgress) SetPriority(pr Priority) { p.priority = append(p.priority, pr) }

func messages(entries []LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func entriesWithStatus(entries []LogEntry, status Status) []LogEntry {
	var out []LogEntry
	for _, e := range entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

func hasMessagePrefix(entries []LogEntry, prefix string) bool {
	for _, e := range entries {
		if strings.HasPrefix(e.Message, prefix) {
			return true
		}
	}
	return false
}
