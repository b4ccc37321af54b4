package mapper

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/dataimport/internal/core"
)

// ToReference links an item to other items by name.
//
// Each name is looked up under the "source" path and replaced by the ID of
// the item found there. With "deferred" set, names that do not resolve yet
// are written as-is for the resolve_references post-processor to fix once
// every row has been imported.
type ToReference struct {
	Base
	source    string
	split     string
	separator string
	deferred  bool
}

// NewToReference builds a reference mapper.
func NewToReference(b Base, opts Options) (*ToReference, error) {
	source := strings.TrimSpace(opts.Get("source"))
	if source == "" {
		return nil, fmt.Errorf("field %s: reference mapping requires option source", b.Field())
	}
	deferred, err := opts.Bool("deferred", false)
	if err != nil {
		return nil, err
	}
	return &ToReference{
		Base:      b,
		source:    source,
		split:     opts.String("split", ","),
		separator: opts.String("separator", DefaultListSeparator),
		deferred:  deferred,
	}, nil
}

// Source returns the path references are resolved under.
func (m *ToReference) Source() string { return m.source }

// Separator returns the separator between written references.
func (m *ToReference) Separator() string { return m.separator }

// Deferred reports whether unresolved names are kept for later.
func (m *ToReference) Deferred() bool { return m.deferred }

// FillField implements core.FieldMapper.
func (m *ToReference) FillField(ctx context.Context, ic *core.ImportContext, item *core.Item, value string) error {
	value = m.normalize(value)

	var out, missing []string
	for _, name := range strings.Split(value, m.split) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		id, err := ResolveReference(ctx, ic.Store, m.source, name)
		if err != nil {
			return err
		}
		switch {
		case id != "":
			out = append(out, id)
		case m.deferred:
			out = append(out, name)
		default:
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		// Keep what did resolve.
		if err := m.write(ctx, ic, item, strings.Join(out, m.separator)); err != nil {
			return err
		}
		return fmt.Errorf("unresolved references under %s: %s", m.source, strings.Join(missing, ", "))
	}
	return m.write(ctx, ic, item, strings.Join(out, m.separator))
}

// ResolveReference returns the ID of the item called name under source, or
// "" when there is none.
func ResolveReference(ctx context.Context, store core.TargetStore, source, name string) (string, error) {
	clean := core.CleanItemName(name, core.DefaultMaxNameLength)
	if clean == "" {
		return "", nil
	}
	target, err := store.ResolveParent(ctx, core.JoinPath(source, clean))
	if err != nil {
		return "", fmt.Errorf("resolve reference %q: %w", name, err)
	}
	if target == nil {
		return "", nil
	}
	return target.ID, nil
}
