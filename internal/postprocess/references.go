package postprocess

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/dataimport/internal/core"
	"github.com/JonMunkholm/dataimport/internal/mapper"
)

// ResolveReferences replaces names left in reference fields by deferred
// reference mappers with the IDs of the items they name.
//
// It walks every item under the import root. Values that already parse as
// UUIDs are kept; other values are looked up under the source path.
type ResolveReferences struct {
	fields    []string
	source    string
	separator string
}

// NewResolveReferences builds the post-processor. Options: "fields" (comma
// separated, required), "source" (required) and "separator" (default "|").
func NewResolveReferences(opts mapper.Options) (*ResolveReferences, error) {
	fields := splitList(opts.Get("fields"))
	if len(fields) == 0 {
		return nil, fmt.Errorf("%s requires option fields", TypeResolveReferences)
	}
	source := strings.TrimSpace(opts.Get("source"))
	if source == "" {
		return nil, fmt.Errorf("%s requires option source", TypeResolveReferences)
	}
	return &ResolveReferences{
		fields:    fields,
		source:    source,
		separator: opts.String("separator", mapper.DefaultListSeparator),
	}, nil
}

// Name implements core.PostProcessor.
func (r *ResolveReferences) Name() string { return TypeResolveReferences }

// Process implements core.PostProcessor.
func (r *ResolveReferences) Process(ctx context.Context, ic *core.ImportContext) error {
	root, err := ic.Store.ResolveParent(ctx, ic.Root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}
	if root == nil {
		return fmt.Errorf("root %s not found", ic.Root)
	}

	resolved := 0
	var unresolved []string

	err = ic.Store.Walk(ctx, root, func(item *core.Item) error {
		for _, field := range r.fields {
			value, ok, err := ic.Store.Field(ctx, item, field)
			if err != nil {
				return err
			}
			if !ok || value == "" {
				continue
			}

			parts := strings.Split(value, r.separator)
			changed := false
			for i, p := range parts {
				if _, err := uuid.Parse(p); err == nil {
					continue
				}
				id, err := mapper.ResolveReference(ctx, ic.Store, r.source, p)
				if err != nil {
					return err
				}
				if id == "" {
					unresolved = append(unresolved, fmt.Sprintf("%s (%s on %s)", p, field, item.Path))
					continue
				}
				parts[i] = id
				changed = true
				resolved++
			}

			if changed {
				if err := ic.Store.SetField(ctx, item, field, strings.Join(parts, r.separator)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	ic.Log(category, fmt.Sprintf("Resolved %d deferred references", resolved), core.StatusInfo)
	if len(unresolved) > 0 {
		return fmt.Errorf("%d references could not be resolved: %s", len(unresolved), strings.Join(unresolved, "; "))
	}
	return nil
}
