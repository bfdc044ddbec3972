package cache

import "context"

// Source identifies where Manager.Get found the returned artifact.
type Source string

const (
	// SourceTier1 means the artifact came from the preloaded summary store.
	SourceTier1 Source = "tier1"

	// SourceTier3 means the artifact came from the promotion store.
	SourceTier3 Source = "tier3"

	// SourceSynthesized means the artifact was computed for this request.
	SourceSynthesized Source = "synthesized"
)

// Synthesizer computes artifacts on demand. Implementations may be slow;
// the cache never holds a lock while calling Synthesize.
type Synthesizer[A any] interface {
	Synthesize(ctx context.Context, entityKey string) (A, error)
}

// SynthesizerFunc adapts a plain function to the Synthesizer interface.
type SynthesizerFunc[A any] func(ctx context.Context, entityKey string) (A, error)

// Synthesize calls f(ctx, entityKey).
func (f SynthesizerFunc[A]) Synthesize(ctx context.Context, entityKey string) (A, error) {
	return f(ctx, entityKey)
}

// Entry is one (entity, artifact) pair produced by a Loader.
type Entry[A any] struct {
	Entity   string
	Artifact A
}

// Loader supplies the ordered summary entries used to build Tier-1.
type Loader[A any] interface {
	Load(ctx context.Context) ([]Entry[A], error)
}

// LoaderFunc adapts a plain function to the Loader interface.
type LoaderFunc[A any] func(ctx context.Context) ([]Entry[A], error)

// Load calls f(ctx).
func (f LoaderFunc[A]) Load(ctx context.Context) ([]Entry[A], error) {
	return f(ctx)
}
