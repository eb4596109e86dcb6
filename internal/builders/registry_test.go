package builders

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"

	"github.com/solana-copytrader/engine/internal/coredomain"
)

type stubBuilder struct{}

func (stubBuilder) Build(ctx context.Context, chain AccountFetcher, signer solana.PublicKey, plan coredomain.CopyPlan) ([]solana.Instruction, error) {
	return nil, nil
}

func TestRegistry_ResolveKnownFamily(t *testing.T) {
	r := NewRegistry().With(coredomain.DEXRaydiumV4, stubBuilder{})
	b, ok := r.Resolve(coredomain.DEXRaydiumV4)
	assert.True(t, ok)
	assert.NotNil(t, b)
}

func TestRegistry_ResolveUnknownFamilyFalls(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Resolve(coredomain.DEXAggregator)
	assert.False(t, ok)
}
