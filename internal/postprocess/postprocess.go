// Package postprocess provides the steps that run once after every row of
// an import has been processed.
package postprocess

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/dataimport/internal/core"
	"github.com/JonMunkholm/dataimport/internal/mapper"
)

// Post-processor types registered by default.
const (
	TypeResolveReferences = "resolve_references"
	TypeItemCount         = "item_count"
)

// category tags run log entries written by post-processors.
const category = "Post Processor"

// Config describes one post-processor.
type Config struct {
	Type    string         `yaml:"type" json:"type"`
	Options mapper.Options `yaml:"options,omitempty" json:"options,omitempty"`
}

// Factory builds a post-processor from its options.
type Factory func(opts mapper.Options) (core.PostProcessor, error)

var (
	registry   = make(map[string]Factory)
	registryMu sync.RWMutex
)

func init() {
	Register(TypeResolveReferences, func(o mapper.Options) (core.PostProcessor, error) { return NewResolveReferences(o) })
	Register(TypeItemCount, func(o mapper.Options) (core.PostProcessor, error) { return NewItemCount(o) })
}

// Register adds a post-processor type. Panics if the type is already
// registered.
func Register(typ string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	typ = strings.ToLower(typ)
	if _, exists := registry[typ]; exists {
		panic(fmt.Sprintf("post-processor type already registered: %s", typ))
	}
	registry[typ] = f
}

// New builds the post-processor described by cfg.
func New(cfg Config) (core.PostProcessor, error) {
	registryMu.RLock()
	f, ok := registry[strings.ToLower(strings.TrimSpace(cfg.Type))]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown post-processor type %q (known: %s)", cfg.Type, strings.Join(Types(), ", "))
	}
	return f(cfg.Options)
}

// Types returns all registered types, sorted.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
