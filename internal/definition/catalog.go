package definition

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Catalog holds the loaded definitions by key.
type Catalog struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[string]*Definition)}
}

// LoadDir loads every *.yaml and *.yml file in dir. All files are read even
// when some fail; the returned error joins every failure.
func LoadDir(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read definitions directory: %w", err)
	}

	c := NewCatalog()
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		def, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := c.Add(def); err != nil {
			errs = append(errs, err)
		}
	}
	return c, errors.Join(errs...)
}

// Add registers def. Keys must be unique.
func (c *Catalog) Add(def *Definition) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.defs[def.Key]; ok {
		return fmt.Errorf("definition %s already loaded from %s", def.Key, existing.Path)
	}
	c.defs[def.Key] = def
	return nil
}

// Get returns a definition by key.
func (c *Catalog) Get(key string) (*Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.defs[key]
	return def, ok
}

// All returns all definitions sorted by group then by key.
func (c *Catalog) All() []*Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*Definition, 0, len(c.defs))
	for _, def := range c.defs {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Group != result[j].Group {
			return result[i].Group < result[j].Group
		}
		return result[i].Key < result[j].Key
	})
	return result
}

// ByGroup returns the definitions of one group, sorted by key.
func (c *Catalog) ByGroup(group string) []*Definition {
	var result []*Definition
	for _, def := range c.All() {
		if def.Group == group {
			result = append(result, def)
		}
	}
	return result
}

// Groups returns all unique group names, sorted.
func (c *Catalog) Groups() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]bool)
	for _, def := range c.defs {
		seen[def.Group] = true
	}
	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.defs)
}
