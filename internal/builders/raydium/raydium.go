// Package raydium builds swap instructions for the Raydium V4 DEX family
// (and, by the same account-meta shape, CPMM/CLMM/Launchpad), grounded on
// the teacher's internal/dex/raydium/instruction.go account ordering and
// internal/dex/raydium/types.go program constants.
package raydium

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/solana-copytrader/engine/internal/builders"
	"github.com/solana-copytrader/engine/internal/coredomain"
)

// ProgramID is the Raydium V4 AMM program's address.
var ProgramID = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")

// swapInstructionDiscriminator is the single-byte Raydium-style swap tag,
// bit-exact per spec.md §6.
const swapInstructionDiscriminator byte = 9

// Pool is the set of accounts a Raydium V4 pool needs beyond the two ATAs
// and the authority/signer, resolved by the caller (normally from Chain
// Client account lookups cached per pool) and handed to Build.
type Pool struct {
	AmmID           solana.PublicKey
	AmmAuthority    solana.PublicKey
	AmmOpenOrders   solana.PublicKey
	AmmTargetOrders solana.PublicKey
	PoolCoinVault   solana.PublicKey
	PoolPCVault     solana.PublicKey
	SerumProgram    solana.PublicKey
	SerumMarket     solana.PublicKey
	SerumBids       solana.PublicKey
	SerumAsks       solana.PublicKey
	SerumEventQueue solana.PublicKey
	SerumCoinVault  solana.PublicKey
	SerumPCVault    solana.PublicKey
	SerumVaultSigner solana.PublicKey
}

// PoolResolver looks up the on-chain account set for a pool trading the
// given mint pair. Concrete implementations query getProgramAccounts or a
// cached index; the builder itself holds no RPC dependency beyond
// builders.AccountFetcher for ATA probing.
type PoolResolver interface {
	Resolve(ctx context.Context, mintA, mintB solana.PublicKey) (Pool, error)
}

// DerivePoolID derives the Raydium V4 pool PDA per spec.md §4.6 step 1:
// PDA("amm_associated_seed" ‖ mint_a ‖ mint_b, raydium_program).
func DerivePoolID(mintA, mintB solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("amm_associated_seed"), mintA.Bytes(), mintB.Bytes()},
		ProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive raydium pool pda: %w", err)
	}
	return addr, nil
}

// Builder builds Raydium V4 swap instructions.
type Builder struct {
	resolver PoolResolver
}

var _ builders.Builder = (*Builder)(nil)

// New constructs a Builder backed by resolver for pool account lookups.
func New(resolver PoolResolver) *Builder {
	return &Builder{resolver: resolver}
}

func (b *Builder) Build(ctx context.Context, chain builders.AccountFetcher, signer solana.PublicKey, plan coredomain.CopyPlan) ([]solana.Instruction, error) {
	class := plan.Classification

	pool, err := b.resolver.Resolve(ctx, class.InputMint, class.OutputMint)
	if err != nil {
		return nil, fmt.Errorf("resolve raydium pool for %s/%s: %w", class.InputMint, class.OutputMint, err)
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

	minimumAmountOut := applySlippageMin(plan.AmountRaw, plan.SlippageBps)

	data := make([]byte, 17)
	data[0] = swapInstructionDiscriminator
	binary.LittleEndian.PutUint64(data[1:9], plan.AmountRaw)
	binary.LittleEndian.PutUint64(data[9:17], minimumAmountOut)

	accounts := []*solana.AccountMeta{
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: pool.AmmID, IsSigner: false, IsWritable: true},
		{PublicKey: pool.AmmAuthority, IsSigner: false, IsWritable: false},
		{PublicKey: pool.AmmOpenOrders, IsSigner: false, IsWritable: true},
		{PublicKey: pool.AmmTargetOrders, IsSigner: false, IsWritable: true},
		{PublicKey: pool.PoolCoinVault, IsSigner: false, IsWritable: true},
		{PublicKey: pool.PoolPCVault, IsSigner: false, IsWritable: true},
		{PublicKey: pool.SerumProgram, IsSigner: false, IsWritable: false},
		{PublicKey: pool.SerumMarket, IsSigner: false, IsWritable: true},
		{PublicKey: pool.SerumBids, IsSigner: false, IsWritable: true},
		{PublicKey: pool.SerumAsks, IsSigner: false, IsWritable: true},
		{PublicKey: pool.SerumEventQueue, IsSigner: false, IsWritable: true},
		{PublicKey: pool.SerumCoinVault, IsSigner: false, IsWritable: true},
		{PublicKey: pool.SerumPCVault, IsSigner: false, IsWritable: true},
		{PublicKey: pool.SerumVaultSigner, IsSigner: false, IsWritable: false},
		{PublicKey: sourceATA, IsSigner: false, IsWritable: true},
		{PublicKey: destATA, IsSigner: false, IsWritable: true},
		{PublicKey: signer, IsSigner: true, IsWritable: false},
	}

	out = append(out, solana.NewInstruction(ProgramID, accounts, data))
	return out, nil
}

func applySlippageMin(amount uint64, slippageBps uint32) uint64 {
	return amount - (amount*uint64(slippageBps))/10_000
}
