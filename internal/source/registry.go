package source

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/dataimport/internal/core"
)

// Source kinds registered by default.
const (
	KindText = "text"
	KindCSV  = "csv"
	KindXLSX = "xlsx"
	KindSQL  = "sql"
)

// Factory builds a data source from its settings.
type Factory func(s Settings, env Env) (core.DataSource, error)

var (
	registry   = make(map[string]Factory)
	registryMu sync.RWMutex
)

func init() {
	Register(KindText, func(s Settings, env Env) (core.DataSource, error) { return NewTextSource(s, env) })
	Register(KindCSV, func(s Settings, env Env) (core.DataSource, error) { return NewCSVSource(s, env) })
	Register(KindXLSX, func(s Settings, env Env) (core.DataSource, error) { return NewXLSXSource(s, env) })
	Register(KindSQL, func(s Settings, env Env) (core.DataSource, error) { return NewSQLSource(s, env) })
}

// Register adds a source kind. Panics if the kind is already registered.
func Register(kind string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	kind = strings.ToLower(kind)
	if _, exists := registry[kind]; exists {
		panic(fmt.Sprintf("source kind already registered: %s", kind))
	}
	registry[kind] = f
}

// New builds a source of the given kind.
func New(kind string, s Settings, env Env) (core.DataSource, error) {
	registryMu.RLock()
	f, ok := registry[strings.ToLower(kind)]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown source kind %q (known: %s)", kind, strings.Join(Kinds(), ", "))
	}
	return f(s, env)
}

// Kinds returns all registered kinds, sorted.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
