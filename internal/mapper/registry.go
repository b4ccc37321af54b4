package mapper

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/dataimport/internal/core"
)

// Mapper types registered by default.
const (
	TypeText      = "text"
	TypeConstant  = "constant"
	TypeDate      = "date"
	TypeNumber    = "number"
	TypeBool      = "bool"
	TypeLookup    = "lookup"
	TypeReference = "reference"
	TypeUsState   = "us_state"
)

// Factory builds a mapper from its validated base and full config.
type Factory func(b Base, cfg Config) (core.FieldMapper, error)

var (
	registry   = make(map[string]Factory)
	registryMu sync.RWMutex
)

func init() {
	Register(TypeText, func(b Base, cfg Config) (core.FieldMapper, error) { return NewToText(b, cfg.Options) })
	Register(TypeConstant, func(b Base, cfg Config) (core.FieldMapper, error) { return NewConstant(b, cfg.Options) })
	Register(TypeDate, func(b Base, cfg Config) (core.FieldMapper, error) { return NewToDate(b, cfg.Options) })
	Register(TypeNumber, func(b Base, cfg Config) (core.FieldMapper, error) { return NewToNumber(b, cfg.Options) })
	Register(TypeBool, func(b Base, cfg Config) (core.FieldMapper, error) { return NewToBool(b, cfg.Options) })
	Register(TypeLookup, func(b Base, cfg Config) (core.FieldMapper, error) { return NewToLookup(b, cfg.Options, cfg.Values) })
	Register(TypeReference, func(b Base, cfg Config) (core.FieldMapper, error) { return NewToReference(b, cfg.Options) })
	Register(TypeUsState, func(b Base, cfg Config) (core.FieldMapper, error) {
		b.normalizer = chainWith(b.normalizer, NormalizeUsState)
		return NewToText(b, cfg.Options)
	})
}

// Register adds a mapper type. Panics if the type is already registered.
func Register(typ string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	typ = strings.ToLower(typ)
	if _, exists := registry[typ]; exists {
		panic(fmt.Sprintf("mapper type already registered: %s", typ))
	}
	registry[typ] = f
}

// New builds the mapper described by cfg. An empty type means text.
func New(cfg Config) (core.FieldMapper, error) {
	typ := strings.ToLower(strings.TrimSpace(cfg.Type))
	if typ == "" {
		typ = TypeText
	}

	registryMu.RLock()
	f, ok := registry[typ]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("field %s: unknown mapper type %q (known: %s)", cfg.Field, cfg.Type, strings.Join(Types(), ", "))
	}

	b, err := NewBase(cfg)
	if err != nil {
		return nil, err
	}
	if typ != TypeConstant && len(b.columns) == 0 {
		return nil, fmt.Errorf("field %s: mapping has no source columns", cfg.Field)
	}
	return f(b, cfg)
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

func chainWith(first, next Normalizer) Normalizer {
	if first == nil {
		return next
	}
	return func(s string) string { return next(first(s)) }
}
