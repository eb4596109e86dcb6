// Package builders holds the Instruction Builders (spec.md §4.6): one
// per DEX family, each turning a CopyPlan into an ordered instruction list
// ready for the Submitter to wrap with compute-budget and tip instructions.
package builders

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/solana-copytrader/engine/internal/coredomain"
)

// AccountFetcher is the narrow Chain Client surface a builder needs: Layer-4
// probing for an absent ATA. Matches chain.Client.FetchAccount's "nil data,
// nil error means absent" contract.
type AccountFetcher interface {
	FetchAccount(ctx context.Context, pubkey solana.PublicKey) ([]byte, error)
}

// Builder turns a CopyPlan into the swap instruction(s) for one DEX family,
// not including compute-budget or tip instructions — those are the
// Submitter's job, applied uniformly across families.
type Builder interface {
	Build(ctx context.Context, chain AccountFetcher, signer solana.PublicKey, plan coredomain.CopyPlan) ([]solana.Instruction, error)
}

var associatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")

// CreateATAIdempotent builds an idempotent associated-token-account-creation
// instruction, grounded on the teacher's
// createAssociatedTokenAccountIdempotentInstruction (pumpfun/instructions.go),
// generalized for reuse across every DEX family's builder instead of being
// pumpfun-specific.
func CreateATAIdempotent(payer, owner, mint solana.PublicKey) solana.Instruction {
	ata, _, _ := solana.FindAssociatedTokenAddress(owner, mint)
	return solana.NewInstruction(
		associatedTokenProgramID,
		[]*solana.AccountMeta{
			{PublicKey: payer, IsWritable: true, IsSigner: true},
			{PublicKey: ata, IsWritable: true, IsSigner: false},
			{PublicKey: owner, IsWritable: false, IsSigner: false},
			{PublicKey: mint, IsWritable: false, IsSigner: false},
			{PublicKey: solana.SystemProgramID, IsWritable: false, IsSigner: false},
			{PublicKey: solana.TokenProgramID, IsWritable: false, IsSigner: false},
			{PublicKey: solana.SysVarRentPubkey, IsWritable: false, IsSigner: false},
		},
		[]byte{1},
	)
}

// EnsureATA probes chain for the owner's ATA on mint via fetch_account and
// returns a prepended idempotent create instruction when it is absent, per
// spec.md §4.6 step 3. A nil return means the ATA already exists.
func EnsureATA(ctx context.Context, chain AccountFetcher, payer, owner, mint solana.PublicKey) (*solana.Instruction, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, err
	}
	data, err := chain.FetchAccount(ctx, ata)
	if err != nil {
		return nil, err
	}
	if data != nil {
		return nil, nil
	}
	ix := CreateATAIdempotent(payer, owner, mint)
	return &ix, nil
}
