// Package embedding defines the contract for mapping skill names to
// unit-norm real vectors, and an in-memory implementation that simulates a
// remote embedding model.
package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"
)

// Default provider configuration constants.
const (
	defaultDimension  = 1536
	defaultMinLatency = 20 * time.Millisecond
	defaultMaxLatency = 60 * time.Millisecond
	defaultSeed       = 7
)

// Option applies a configuration option to the InMemoryProvider.
type Option func(*InMemoryProvider)

// WithDimension sets the embedding dimension D.
func WithDimension(d int) Option {
	return func(p *InMemoryProvider) {
		if d > 0 {
			p.dimension = d
		}
	}
}

// WithLatencyRange sets the simulated provider latency range.
func WithLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(p *InMemoryProvider) {
		if minLatency > 0 && maxLatency > minLatency {
			p.minLatency = minLatency
			p.maxLatency = maxLatency
		}
	}
}

// Provider maps skill names to unit-L2-norm vectors of fixed dimension.
// Embed is deterministic per input and MUST accept batched lists; a failed
// call is non-fatal to callers (see Similarity Filter degradation).
type Provider interface {
	// Embed returns one unit-norm vector per skill name, in order.
	Embed(ctx context.Context, skills []string) ([][]float64, error)

	// Dimension returns D, the fixed vector length this provider produces.
	Dimension() int
}

// InMemoryProvider implements Provider by deterministically hashing each
// skill name into a vector, simulating the latency of a remote model call.
type InMemoryProvider struct {
	dimension  int
	minLatency time.Duration
	maxLatency time.Duration
	rng        *rand.Rand
}

// New creates a new in-memory embedding provider with configuration options.
func New(opts ...Option) *InMemoryProvider {
	p := &InMemoryProvider{
		dimension:  defaultDimension,
		minLatency: defaultMinLatency,
		maxLatency: defaultMaxLatency,
		rng:        rand.New(rand.NewSource(defaultSeed)), //nolint:gosec // deterministic seed for reproducible embeddings
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dimension returns D.
func (p *InMemoryProvider) Dimension() int { return p.dimension }

// Embed returns one deterministic, unit-norm vector per skill name.
func (p *InMemoryProvider) Embed(ctx context.Context, skills []string) ([][]float64, error) {
	latency := p.minLatency
	if p.maxLatency > p.minLatency {
		latency += time.Duration(p.rng.Int63n(int64(p.maxLatency - p.minLatency)))
	}
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("embedding provider: context cancelled: %w", ctx.Err())
	case <-time.After(latency):
	}

	out := make([][]float64, len(skills))
	for i, skill := range skills {
		out[i] = vectorFor(skill, p.dimension)
	}
	return out, nil
}

// vectorFor deterministically derives a unit-norm vector for name using a
// seeded PRNG fed from the FNV hash of name, so the same skill name always
// maps to the same vector and similar-looking code runs reproducibly.
func vectorFor(name string, dim int) []float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	seed := int64(h.Sum64()) //nolint:gosec // deterministic per-skill seed, not a security use
	rng := rand.New(rand.NewSource(seed))

	vec := make([]float64, dim)
	var sumSquares float64
	for i := range vec {
		v := rng.NormFloat64()
		vec[i] = v
		sumSquares += v * v
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
