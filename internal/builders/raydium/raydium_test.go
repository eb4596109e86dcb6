package raydium

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solana-copytrader/engine/internal/coredomain"
)

type fakeFetcher struct{}

func (fakeFetcher) FetchAccount(ctx context.Context, pubkey solana.PublicKey) ([]byte, error) {
	return nil, nil
}

type fakeResolver struct{ pool Pool }

func (r fakeResolver) Resolve(ctx context.Context, mintA, mintB solana.PublicKey) (Pool, error) {
	return r.pool, nil
}

func randomPool() Pool {
	rnd := func() solana.PublicKey { return solana.NewWallet().PublicKey() }
	return Pool{
		AmmID: rnd(), AmmAuthority: rnd(), AmmOpenOrders: rnd(), AmmTargetOrders: rnd(),
		PoolCoinVault: rnd(), PoolPCVault: rnd(), SerumProgram: rnd(), SerumMarket: rnd(),
		SerumBids: rnd(), SerumAsks: rnd(), SerumEventQueue: rnd(), SerumCoinVault: rnd(),
		SerumPCVault: rnd(), SerumVaultSigner: rnd(),
	}
}

func TestBuilder_Buy_EncodesBitExactSwapData(t *testing.T) {
	b := New(fakeResolver{pool: randomPool()})
	signer := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	plan := coredomain.CopyPlan{
		AmountRaw:   1_000_000,
		SlippageBps: 500,
		Classification: coredomain.Classification{
			Direction:  coredomain.DirectionBuy,
			InputMint:  coredomain.WrappedSOLMint,
			OutputMint: mint,
		},
	}

	ixs, err := b.Build(context.Background(), fakeFetcher{}, signer, plan)
	require.NoError(t, err)
	require.Len(t, ixs, 2)

	swapIx := ixs[1]
	data, err := swapIx.Data()
	require.NoError(t, err)
	require.Len(t, data, 17)
	assert.Equal(t, swapInstructionDiscriminator, data[0])
	assert.Equal(t, plan.AmountRaw, binary.LittleEndian.Uint64(data[1:9]))

	wantMin := plan.AmountRaw - (plan.AmountRaw*uint64(plan.SlippageBps))/10_000
	assert.Equal(t, wantMin, binary.LittleEndian.Uint64(data[9:17]))
}

func TestDerivePoolID_DeterministicForSameMints(t *testing.T) {
	a := solana.NewWallet().PublicKey()
	c := solana.NewWallet().PublicKey()

	id1, err := DerivePoolID(a, c)
	require.NoError(t, err)
	id2, err := DerivePoolID(a, c)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}
