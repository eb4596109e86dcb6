// Package orca builds swap instructions for Orca's Whirlpool DEX family,
// built in the same Anchor-program idiom as internal/builders/pumpfun and
// internal/builders/meteora since the teacher never touches Orca.
package orca

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/solana-copytrader/engine/internal/builders"
	"github.com/solana-copytrader/engine/internal/coredomain"
)

// ProgramID is the Whirlpool program's address.
var ProgramID = solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")

var swapDiscriminator = builders.AnchorDiscriminator("swap")

// Pool is a Whirlpool's pool-specific account set.
type Pool struct {
	Whirlpool     solana.PublicKey
	TokenVaultA   solana.PublicKey
	TokenVaultB   solana.PublicKey
	TickArray0    solana.PublicKey
	TickArray1    solana.PublicKey
	TickArray2    solana.PublicKey
	Oracle        solana.PublicKey
}

// PoolResolver looks up a Whirlpool for a mint pair.
type PoolResolver interface {
	Resolve(ctx context.Context, mintA, mintB solana.PublicKey) (Pool, error)
}

// Builder builds Whirlpool swap instructions.
type Builder struct {
	resolver PoolResolver
}

var _ builders.Builder = (*Builder)(nil)

// New constructs a Builder backed by resolver.
func New(resolver PoolResolver) *Builder {
	return &Builder{resolver: resolver}
}

func (b *Builder) Build(ctx context.Context, chain builders.AccountFetcher, signer solana.PublicKey, plan coredomain.CopyPlan) ([]solana.Instruction, error) {
	class := plan.Classification

	pool, err := b.resolver.Resolve(ctx, class.InputMint, class.OutputMint)
	if err != nil {
		return nil, fmt.Errorf("resolve whirlpool for %s/%s: %w", class.InputMint, class.OutputMint, err)
	}

	sourceATA, _, err := solana.FindAssociatedTokenAddress(signer, class.InputMint)
	if err != nil {
		return nil, fmt.Errorf("derive source ata: %w", err)
	}
	destATA, _, err := solana.FindAssociatedTokenAddress(signer, class.OutputMint)
	if err != nil {
		return nil, fmt.Errorf("derive dest ata: %w", err)
	}

	var out []solana.Instruction
	if class.Direction == coredomain.DirectionBuy {
		createIx, err := builders.EnsureATA(ctx, chain, signer, signer, class.OutputMint)
		if err != nil {
			return nil, fmt.Errorf("probe dest ata: %w", err)
		}
		if createIx != nil {
			out = append(out, *createIx)
		}
	}

	minimumAmountOut := plan.AmountRaw - (plan.AmountRaw*uint64(plan.SlippageBps))/10_000

	data := make([]byte, 8+8+8+1)
	copy(data[0:8], swapDiscriminator[:])
	binary.LittleEndian.PutUint64(data[8:16], plan.AmountRaw)
	binary.LittleEndian.PutUint64(data[16:24], minimumAmountOut)
	data[24] = 1 // amountSpecifiedIsInput = true: the copy trade always specifies the input side

	accounts := []*solana.AccountMeta{
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: signer, IsSigner: true, IsWritable: false},
		{PublicKey: pool.Whirlpool, IsSigner: false, IsWritable: true},
		{PublicKey: sourceATA, IsSigner: false, IsWritable: true},
		{PublicKey: pool.TokenVaultA, IsSigner: false, IsWritable: true},
		{PublicKey: destATA, IsSigner: false, IsWritable: true},
		{PublicKey: pool.TokenVaultB, IsSigner: false, IsWritable: true},
		{PublicKey: pool.TickArray0, IsSigner: false, IsWritable: true},
		{PublicKey: pool.TickArray1, IsSigner: false, IsWritable: true},
		{PublicKey: pool.TickArray2, IsSigner: false, IsWritable: true},
		{PublicKey: pool.Oracle, IsSigner: false, IsWritable: true},
	}

	out = append(out, solana.NewInstruction(ProgramID, accounts, data))
	return out, nil
}
