// Package admin provides administrative operations on the target store.
package admin

import (
	"context"
	"fmt"
	"time"
)

// ResetTimeout is the maximum duration for a reset.
const ResetTimeout = 30 * time.Second

// Resettable is a store whose imported content can be wiped.
type Resettable interface {
	Reset(ctx context.Context) error
}

type resetFn func(ctx context.Context) error

// Resetter clears imported content.
type Resetter struct {
	resets []resetFn
}

// NewResetter creates a Resetter over the given stores. They are reset in
// order.
func NewResetter(stores ...Resettable) *Resetter {
	r := &Resetter{}
	for _, s := range stores {
		r.resets = append(r.resets, s.Reset)
	}
	return r
}

// ResetAll removes every imported item, field value and media entry.
// This is a destructive operation - use with caution.
func (r *Resetter) ResetAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()
	return r.runResets(ctx, r.resets)
}

func (r *Resetter) runResets(ctx context.Context, resets []resetFn) error {
	for i, reset := range resets {
		if err := reset(ctx); err != nil {
			return fmt.Errorf("reset store %d: %w", i+1, err)
		}
	}
	return nil
}
