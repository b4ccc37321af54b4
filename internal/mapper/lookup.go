package mapper

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/dataimport/internal/core"
)

// DefaultListSeparator joins multiple values written to one field.
const DefaultListSeparator = "|"

// ToLookup translates values through a fixed table.
type ToLookup struct {
	Base
	table     map[string]string
	split     string
	separator string
	fallback  *string
}

// NewToLookup builds a lookup mapper from cfg.Values. Keys match case
// insensitively. Option "split" breaks the input into several values,
// "separator" joins the results and "default" replaces unknown keys (an
// unknown key is an error otherwise).
func NewToLookup(b Base, opts Options, values map[string]string) (*ToLookup, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("field %s: lookup mapping has no values", b.Field())
	}
	table := make(map[string]string, len(values))
	for k, v := range values {
		table[strings.ToLower(strings.TrimSpace(k))] = v
	}
	m := &ToLookup{
		Base:      b,
		table:     table,
		split:     opts.Get("split"),
		separator: opts.String("separator", DefaultListSeparator),
	}
	if v, ok := opts["default"]; ok {
		m.fallback = &v
	}
	return m, nil
}

// FillField implements core.FieldMapper.
func (m *ToLookup) FillField(ctx context.Context, ic *core.ImportContext, item *core.Item, value string) error {
	value = m.normalize(value)

	parts := []string{value}
	if m.split != "" {
		parts = strings.Split(value, m.split)
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		key := strings.ToLower(strings.TrimSpace(p))
		if key == "" {
			continue
		}
		v, ok := m.table[key]
		if !ok {
			if m.fallback == nil {
				return fmt.Errorf("no lookup value for %q", strings.TrimSpace(p))
			}
			v = *m.fallback
		}
		if v != "" {
			out = append(out, v)
		}
	}
	return m.write(ctx, ic, item, strings.Join(out, m.separator))
}
