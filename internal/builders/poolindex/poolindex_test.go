package poolindex

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solana-copytrader/engine/internal/builders/raydium"
	"github.com/solana-copytrader/engine/internal/coredomain"
)

func TestIndex_SeedAndResolveRaydium(t *testing.T) {
	mintA := solana.NewWallet().PublicKey()
	mintB := solana.NewWallet().PublicKey()
	ammID := solana.NewWallet().PublicKey()

	idx := New()
	idx.Seed([]Entry{{
		Family: coredomain.DEXRaydiumV4,
		MintA:  mintA,
		MintB:  mintB,
		Raydium: raydium.Pool{AmmID: ammID},
	}})

	pool, err := idx.ForRaydium().Resolve(context.Background(), mintA, mintB)
	require.NoError(t, err)
	assert.Equal(t, ammID, pool.AmmID)

	// Order-independent: the reverse mint pair resolves the same entry.
	pool, err = idx.ForRaydium().Resolve(context.Background(), mintB, mintA)
	require.NoError(t, err)
	assert.Equal(t, ammID, pool.AmmID)
}

func TestIndex_ResolveMissing(t *testing.T) {
	idx := New()
	_, err := idx.ForOrca().Resolve(context.Background(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey())
	assert.Error(t, err)
}

func TestIndex_UpdateAddsEntry(t *testing.T) {
	mintA := solana.NewWallet().PublicKey()
	mintB := solana.NewWallet().PublicKey()

	idx := New()
	idx.Update(Entry{Family: coredomain.DEXMeteoraDLMM, MintA: mintA, MintB: mintB})

	_, err := idx.ForMeteora().Resolve(context.Background(), coredomain.DEXMeteoraDLMM, mintA, mintB)
	assert.NoError(t, err)

	_, err = idx.ForMeteora().Resolve(context.Background(), coredomain.DEXMeteoraDBC, mintA, mintB)
	assert.Error(t, err, "a different family at the same mint pair is a separate entry")
}
