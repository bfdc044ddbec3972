package loader

import (
	"context"

	"github.com/Sternrassler/tiercache/pkg/cache"
)

// Static is a Loader over a fixed, ordered list of entries.
type Static[A any] struct {
	entries []cache.Entry[A]
}

// NewStatic creates a loader that returns a copy of entries on every Load.
func NewStatic[A any](entries ...cache.Entry[A]) *Static[A] {
	return &Static[A]{entries: entries}
}

// Load returns the configured entries in order.
func (s *Static[A]) Load(ctx context.Context) ([]cache.Entry[A], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]cache.Entry[A], len(s.entries))
	copy(out, s.entries)
	return out, nil
}
