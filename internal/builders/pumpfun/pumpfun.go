// Package pumpfun builds swap instructions for the PumpFun bonding-curve
// and AMM DEX families, grounded on the teacher's
// internal/dex/pumpfun/instructions.go and accounts.go.
package pumpfun

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/solana-copytrader/engine/internal/builders"
	"github.com/solana-copytrader/engine/internal/coredomain"
)

var (
	// ProgramID is the bonding-curve program's address.
	ProgramID = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	// AMMProgramID is the post-graduation AMM program's address.
	AMMProgramID = solana.MustPublicKeyFromBase58("pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA")
	// EventAuthority is the fixed event-authority account both programs emit
	// CPI logs through.
	EventAuthority = solana.MustPublicKeyFromBase58("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1")
)

var (
	buyDiscriminator  = anchorBuySell("buy")
	sellDiscriminator = anchorBuySell("sell")
)

func anchorBuySell(method string) [8]byte {
	return builders.AnchorDiscriminator(method)
}

// Builder builds PumpFun bonding-curve swap instructions from the plan
// alone: a buy carries the follower's SOL spend scaled up by slippage as its
// max-cost bound, a sell carries the held token amount. It does not read the
// bonding curve's reserves; chain is used only to probe the user's ATA.
type Builder struct {
	globalAccount solana.PublicKey
	feeRecipient  solana.PublicKey
}

var _ builders.Builder = (*Builder)(nil)

// New constructs a Builder. feeRecipient is the protocol fee account
// FetchGlobalAccount would otherwise resolve at startup; the registry's
// default matches the teacher's well-known value.
func New(feeRecipient solana.PublicKey) (*Builder, error) {
	global, _, err := solana.FindProgramAddress([][]byte{[]byte("global")}, ProgramID)
	if err != nil {
		return nil, fmt.Errorf("derive pumpfun global account: %w", err)
	}
	return &Builder{globalAccount: global, feeRecipient: feeRecipient}, nil
}

func deriveBondingCurve(mint solana.PublicKey) (bondingCurve, associatedBondingCurve solana.PublicKey, err error) {
	bondingCurve, _, err = solana.FindProgramAddress([][]byte{[]byte("bonding-curve"), mint.Bytes()}, ProgramID)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("derive bonding curve: %w", err)
	}
	associatedBondingCurve, _, err = solana.FindAssociatedTokenAddress(bondingCurve, mint)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("derive associated bonding curve: %w", err)
	}
	return bondingCurve, associatedBondingCurve, nil
}

// Build implements builders.Builder. It uses the AMM program ID when the
// plan's classification tags DEXPumpFunAMM and the bonding-curve program ID
// otherwise (graduated mints use the same account shape with a different
// program ID, per SPEC_FULL.md §11).
func (b *Builder) Build(ctx context.Context, chain builders.AccountFetcher, signer solana.PublicKey, plan coredomain.CopyPlan) ([]solana.Instruction, error) {
	class := plan.Classification
	mint := mintOf(class)

	programID := ProgramID
	if class.DEX == coredomain.DEXPumpFunAMM {
		programID = AMMProgramID
	}

	bondingCurve, associatedBondingCurve, err := deriveBondingCurve(mint)
	if err != nil {
		return nil, err
	}

	userATA, _, err := solana.FindAssociatedTokenAddress(signer, mint)
	if err != nil {
		return nil, fmt.Errorf("derive user ata: %w", err)
	}

	var out []solana.Instruction
	if class.Direction == coredomain.DirectionBuy {
		createIx, err := builders.EnsureATA(ctx, chain, signer, signer, mint)
		if err != nil {
			return nil, fmt.Errorf("probe user ata: %w", err)
		}
		if createIx != nil {
			out = append(out, *createIx)
		}
	}

	data := make([]byte, 24)
	var amountField, boundField uint64
	if class.Direction == coredomain.DirectionBuy {
		copy(data[0:8], buyDiscriminator[:])
		amountField = 0 // token amount is left to the program's exact-SOL accounting; the follower specifies SOL in, not tokens out
		boundField = applySlippageMax(plan.AmountRaw, plan.SlippageBps)
	} else {
		copy(data[0:8], sellDiscriminator[:])
		amountField = plan.AmountRaw
		boundField = applySlippageMin(0, plan.SlippageBps) // no leader-side quoted_out to scale from here; policy floor is zero
	}
	binary.LittleEndian.PutUint64(data[8:16], amountField)
	binary.LittleEndian.PutUint64(data[16:24], boundField)

	accounts := []*solana.AccountMeta{
		{PublicKey: b.globalAccount, IsSigner: false, IsWritable: false},
		{PublicKey: b.feeRecipient, IsSigner: false, IsWritable: true},
		{PublicKey: mint, IsSigner: false, IsWritable: false},
		{PublicKey: bondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: associatedBondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: userATA, IsSigner: false, IsWritable: true},
		{PublicKey: signer, IsSigner: true, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SysVarRentPubkey, IsSigner: false, IsWritable: false},
		{PublicKey: EventAuthority, IsSigner: false, IsWritable: false},
		{PublicKey: programID, IsSigner: false, IsWritable: false},
	}

	out = append(out, solana.NewInstruction(programID, accounts, data))
	return out, nil
}

func mintOf(class coredomain.Classification) solana.PublicKey {
	if class.Direction == coredomain.DirectionBuy {
		return class.OutputMint
	}
	return class.InputMint
}

// applySlippageMax scales a follower's SOL spend up by slippageBps to get
// the max_sol_cost bound a buy instruction must carry.
func applySlippageMax(amount uint64, slippageBps uint32) uint64 {
	return amount + (amount*uint64(slippageBps))/10_000
}

// applySlippageMin scales a quoted amount down by slippageBps to get the
// minimum-acceptable bound a sell instruction must carry.
func applySlippageMin(quoted uint64, slippageBps uint32) uint64 {
	if quoted == 0 {
		return 0
	}
	return quoted - (quoted*uint64(slippageBps))/10_000
}
