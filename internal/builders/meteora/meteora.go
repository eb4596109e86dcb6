// Package meteora builds swap instructions for Meteora's DLMM, DBC, and
// CP-AMM DEX families. The teacher never touches Meteora; this builder is
// built in its idiom — Anchor discriminator, Borsh args struct, ATA probe —
// generalized from internal/builders/pumpfun's structure since Meteora's
// programs are themselves Anchor-based like PumpFun.
package meteora

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/solana-copytrader/engine/internal/builders"
	"github.com/solana-copytrader/engine/internal/coredomain"
)

var programIDs = map[coredomain.DEXFamily]solana.PublicKey{
	coredomain.DEXMeteoraDLMM:  solana.MustPublicKeyFromBase58("LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo"),
	coredomain.DEXMeteoraDBC:   solana.MustPublicKeyFromBase58("dbcij3LWUppWqq96dh6gJWwBifmcGfLSB5D4DuSMaqN"),
	coredomain.DEXMeteoraCPAMM: solana.MustPublicKeyFromBase58("cpamdpZCGKUy5JxQXB4dcpGPiikHawvSWAd6mEn1sGG"),
}

var swapDiscriminator = builders.AnchorDiscriminator("swap")

// Pool is the pool-specific account set a Meteora swap needs, resolved by
// the caller the same way raydium.Pool is.
type Pool struct {
	PoolAddress   solana.PublicKey
	ReserveInput  solana.PublicKey
	ReserveOutput solana.PublicKey
	Oracle        solana.PublicKey
}

// PoolResolver looks up a Meteora pool for a mint pair.
type PoolResolver interface {
	Resolve(ctx context.Context, family coredomain.DEXFamily, mintA, mintB solana.PublicKey) (Pool, error)
}

// Builder builds Meteora swap instructions shared across its three
// families; only the program ID and pool account set differ between them.
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
	programID, ok := programIDs[class.DEX]
	if !ok {
		return nil, fmt.Errorf("meteora builder: unsupported family %q", class.DEX)
	}

	pool, err := b.resolver.Resolve(ctx, class.DEX, class.InputMint, class.OutputMint)
	if err != nil {
		return nil, fmt.Errorf("resolve meteora pool for %s/%s: %w", class.InputMint, class.OutputMint, err)
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

	data := make([]byte, 24)
	copy(data[0:8], swapDiscriminator[:])
	binary.LittleEndian.PutUint64(data[8:16], plan.AmountRaw)
	binary.LittleEndian.PutUint64(data[16:24], minimumAmountOut)

	accounts := []*solana.AccountMeta{
		{PublicKey: pool.PoolAddress, IsSigner: false, IsWritable: true},
		{PublicKey: pool.ReserveInput, IsSigner: false, IsWritable: true},
		{PublicKey: pool.ReserveOutput, IsSigner: false, IsWritable: true},
		{PublicKey: sourceATA, IsSigner: false, IsWritable: true},
		{PublicKey: destATA, IsSigner: false, IsWritable: true},
		{PublicKey: pool.Oracle, IsSigner: false, IsWritable: true},
		{PublicKey: signer, IsSigner: true, IsWritable: true},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
	}

	out = append(out, solana.NewInstruction(programID, accounts, data))
	return out, nil
}
