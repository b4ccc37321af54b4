// Package store provides target store adapters.
//
// Two adapters implement core.TargetStore:
//
//   - Memory: an in-process tree of items, used by tests, dry runs and the
//     CLI when no database is configured
//   - Postgres: items and field values in Postgres tables via pgx
//
// Both also implement source.MediaLibrary so a text source can read an
// uploaded file held by the store.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/dataimport/internal/core"
)

// ErrNoParent is returned when CreateOrUpdate is called without a parent.
var ErrNoParent = errors.New("parent item is required")

// ErrNoBatch is returned by EndBatch without a matching BeginBatch.
var ErrNoBatch = errors.New("no batch in progress")

type memNode struct {
	item     core.Item
	parentID string
	fields   map[string]string
	created  time.Time
	updated  time.Time
}

// Memory is an in-memory TargetStore. It is safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	byPath map[string]*memNode
	byID   map[string]*memNode
	order  []string // IDs in creation order
	media  map[string][]byte
	batch  int
	stats  Stats
}

// Stats counts store writes.
type Stats struct {
	Created       int
	Updated       int
	FieldsWritten int
	Batches       int
}

// NewMemory creates an empty store with the given container paths.
func NewMemory(paths ...string) *Memory {
	m := &Memory{
		byPath: make(map[string]*memNode),
		byID:   make(map[string]*memNode),
		media:  make(map[string][]byte),
	}
	for _, p := range paths {
		m.EnsurePath(p)
	}
	return m
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimSuffix(p, "/")
}

// EnsurePath creates every missing container along path and returns the
// last one.
func (m *Memory) EnsurePath(path string) *core.Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = normalizePath(path)
	var parent *memNode
	current := ""
	for _, seg := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		if seg == "" {
			continue
		}
		current += "/" + seg
		n, ok := m.byPath[current]
		if !ok {
			parentID := ""
			if parent != nil {
				parentID = parent.item.ID
			}
			n = m.insert(parentID, seg, current)
		}
		parent = n
	}
	if parent == nil {
		return nil
	}
	it := parent.item
	return &it
}

func (m *Memory) insert(parentID, name, path string) *memNode {
	now := time.Now()
	n := &memNode{
		item:     core.Item{ID: uuid.NewString(), Name: name, Path: path},
		parentID: parentID,
		fields:   make(map[string]string),
		created:  now,
		updated:  now,
	}
	m.byPath[path] = n
	m.byID[n.item.ID] = n
	m.order = append(m.order, n.item.ID)
	return n
}

// ResolveParent implements core.TargetStore.
func (m *Memory) ResolveParent(_ context.Context, path string) (*core.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.byPath[normalizePath(path)]
	if !ok {
		return nil, nil
	}
	it := n.item
	return &it, nil
}

// CreateOrUpdate implements core.TargetStore.
func (m *Memory) CreateOrUpdate(_ context.Context, parent *core.Item, name string, _ core.RowRecord) (*core.Item, error) {
	if parent == nil {
		return nil, ErrNoParent
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("item name is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byID[parent.ID]
	if !ok {
		return nil, fmt.Errorf("parent %s: %w", parent.Path, fs.ErrNotExist)
	}

	path := core.JoinPath(p.item.Path, name)
	if n, ok := m.byPath[path]; ok {
		n.updated = time.Now()
		m.stats.Updated++
		it := n.item
		return &it, nil
	}

	n := m.insert(p.item.ID, name, path)
	m.stats.Created++
	it := n.item
	return &it, nil
}

// SetField implements core.TargetStore.
func (m *Memory) SetField(_ context.Context, item *core.Item, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.byID[item.ID]
	if !ok {
		return fmt.Errorf("item %s: %w", item.Path, fs.ErrNotExist)
	}
	n.fields[field] = value
	n.updated = time.Now()
	m.stats.FieldsWritten++
	return nil
}

// Field implements core.TargetStore.
func (m *Memory) Field(_ context.Context, item *core.Item, field string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.byID[item.ID]
	if !ok {
		return "", false, fmt.Errorf("item %s: %w", item.Path, fs.ErrNotExist)
	}
	v, set := n.fields[field]
	return v, set, nil
}

// Fields returns a copy of every field set on item.
func (m *Memory) Fields(item *core.Item) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.byID[item.ID]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(n.fields))
	for k, v := range n.fields {
		out[k] = v
	}
	return out
}

// Walk implements core.TargetStore.
func (m *Memory) Walk(ctx context.Context, root *core.Item, fn func(*core.Item) error) error {
	if root == nil {
		return ErrNoParent
	}

	m.mu.RLock()
	prefix := normalizePath(root.Path)
	var items []core.Item
	for _, id := range m.order {
		n := m.byID[id]
		if n.item.Path == prefix || strings.HasPrefix(n.item.Path, prefix+"/") {
			items = append(items, n.item)
		}
	}
	m.mu.RUnlock()

	for i := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(&items[i]); err != nil {
			return err
		}
	}
	return nil
}

// Children returns the direct children of the item at path, by name.
func (m *Memory) Children(path string) []core.Item {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byPath[normalizePath(path)]
	if !ok {
		return nil
	}
	var out []core.Item
	for _, id := range m.order {
		if n := m.byID[id]; n.parentID == p.item.ID {
			out = append(out, n.item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// BeginBatch implements core.TargetStore. Batches may nest.
func (m *Memory) BeginBatch(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batch++
	m.stats.Batches++
	return nil
}

// EndBatch implements core.TargetStore.
func (m *Memory) EndBatch(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.batch == 0 {
		return ErrNoBatch
	}
	m.batch--
	return nil
}

// InBatch reports whether a batch is open.
func (m *Memory) InBatch() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.batch > 0
}

// Stats returns the write counters.
func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// Len returns the number of items, containers included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// PutMedia stores a media item at path, replacing any existing content.
func (m *Memory) PutMedia(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.media[normalizePath(path)] = append([]byte(nil), data...)
}

// OpenMedia implements source.MediaLibrary.
func (m *Memory) OpenMedia(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.media[normalizePath(path)]
	if !ok {
		return nil, fmt.Errorf("media %s: %w", path, fs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Reset removes every item, field and media entry.
func (m *Memory) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byPath = make(map[string]*memNode)
	m.byID = make(map[string]*memNode)
	m.order = nil
	m.media = make(map[string][]byte)
	m.stats = Stats{}
	return nil
}
