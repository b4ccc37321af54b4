package postprocess

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/dataimport/internal/core"
	"github.com/JonMunkholm/dataimport/internal/mapper"
)

// ItemCount logs how many items sit below the import root. With option
// "min" set it fails when there are fewer.
type ItemCount struct {
	minItems int
}

// NewItemCount builds the post-processor.
func NewItemCount(opts mapper.Options) (*ItemCount, error) {
	minItems, err := opts.Int("min", 0)
	if err != nil {
		return nil, err
	}
	return &ItemCount{minItems: minItems}, nil
}

// Name implements core.PostProcessor.
func (c *ItemCount) Name() string { return TypeItemCount }

// Process implements core.PostProcessor.
func (c *ItemCount) Process(ctx context.Context, ic *core.ImportContext) error {
	root, err := ic.Store.ResolveParent(ctx, ic.Root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}
	if root == nil {
		return fmt.Errorf("root %s not found", ic.Root)
	}

	n := 0
	err = ic.Store.Walk(ctx, root, func(it *core.Item) error {
		if it.ID != root.ID {
			n++
		}
		return nil
	})
	if err != nil {
		return err
	}

	ic.Log(category, fmt.Sprintf("Items under %s: %d", ic.Root, n), core.StatusInfo)
	if n < c.minItems {
		return fmt.Errorf("expected at least %d items under %s, found %d", c.minItems, ic.Root, n)
	}
	return nil
}
