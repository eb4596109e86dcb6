package pumpfun

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solana-copytrader/engine/internal/coredomain"
)

type fakeFetcher struct {
	existing map[solana.PublicKey]bool
}

func (f *fakeFetcher) FetchAccount(ctx context.Context, pubkey solana.PublicKey) ([]byte, error) {
	if f.existing[pubkey] {
		return []byte{1}, nil
	}
	return nil, nil
}

func TestBuilder_Buy_EncodesDiscriminatorAndBounds(t *testing.T) {
	b, err := New(solana.NewWallet().PublicKey())
	require.NoError(t, err)

	signer := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	plan := coredomain.CopyPlan{
		AmountRaw:   10_000_000,
		SlippageBps: 300,
		Classification: coredomain.Classification{
			Direction:  coredomain.DirectionBuy,
			InputMint:  coredomain.WrappedSOLMint,
			OutputMint: mint,
			DEX:        coredomain.DEXPumpFunBondingCrv,
		},
	}

	ixs, err := b.Build(context.Background(), &fakeFetcher{}, signer, plan)
	require.NoError(t, err)
	require.Len(t, ixs, 2, "expected ATA-create then buy instruction")

	buyIx := ixs[1]
	data, err := buyIx.Data()
	require.NoError(t, err)
	require.Len(t, data, 24)

	wantDiscriminator := sha256.Sum256([]byte("global:buy"))
	assert.Equal(t, wantDiscriminator[:8], data[0:8])

	maxSolCost := binary.LittleEndian.Uint64(data[16:24])
	assert.Equal(t, plan.AmountRaw+(plan.AmountRaw*uint64(plan.SlippageBps))/10_000, maxSolCost)
}

func TestBuilder_Buy_SkipsATACreateWhenAlreadyExists(t *testing.T) {
	b, err := New(solana.NewWallet().PublicKey())
	require.NoError(t, err)

	signer := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	ata, _, _ := solana.FindAssociatedTokenAddress(signer, mint)

	plan := coredomain.CopyPlan{
		AmountRaw:   1_000_000,
		SlippageBps: 100,
		Classification: coredomain.Classification{
			Direction:  coredomain.DirectionBuy,
			InputMint:  coredomain.WrappedSOLMint,
			OutputMint: mint,
		},
	}

	ixs, err := b.Build(context.Background(), &fakeFetcher{existing: map[solana.PublicKey]bool{ata: true}}, signer, plan)
	require.NoError(t, err)
	assert.Len(t, ixs, 1)
}

func TestBuilder_Sell_UsesSellDiscriminator(t *testing.T) {
	b, err := New(solana.NewWallet().PublicKey())
	require.NoError(t, err)

	signer := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	plan := coredomain.CopyPlan{
		AmountRaw: 555,
		Classification: coredomain.Classification{
			Direction:  coredomain.DirectionSell,
			InputMint:  mint,
			OutputMint: coredomain.WrappedSOLMint,
		},
	}

	ixs, err := b.Build(context.Background(), &fakeFetcher{}, signer, plan)
	require.NoError(t, err)
	require.Len(t, ixs, 1)

	data, err := ixs[0].Data()
	require.NoError(t, err)
	wantDiscriminator := sha256.Sum256([]byte("global:sell"))
	assert.Equal(t, wantDiscriminator[:8], data[0:8])
	assert.Equal(t, uint64(555), binary.LittleEndian.Uint64(data[8:16]))
}
