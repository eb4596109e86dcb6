package builders

import "github.com/solana-copytrader/engine/internal/coredomain"

// Registry maps a DEX family to the Builder that knows its instruction
// shape, the same table-not-switch idiom classify.Registry uses for
// program-ID recognition, applied here to builder selection instead.
type Registry struct {
	byFamily map[coredomain.DEXFamily]Builder
}

// NewRegistry builds an empty Registry; wire builders in with With.
func NewRegistry() *Registry {
	return &Registry{byFamily: make(map[coredomain.DEXFamily]Builder)}
}

// With registers b as the Builder for family and returns the Registry for
// chaining.
func (r *Registry) With(family coredomain.DEXFamily, b Builder) *Registry {
	r.byFamily[family] = b
	return r
}

// Resolve returns the Builder for family, or ok=false when the family has
// no native builder and the caller should fall back to the aggregator.
func (r *Registry) Resolve(family coredomain.DEXFamily) (Builder, bool) {
	b, ok := r.byFamily[family]
	return b, ok
}
