// Package computeunits builds the compute-budget instructions the
// Submitter prepends to every transaction (spec.md §4.7 step 2), sized
// per DEX family from a table kept here for easy recalibration (spec.md §9
// Open Questions: exact unit counts need empirical revalidation).
//
// Grounded on the teacher's
// internal/blockchain/solana/programs/computebudget package, adapted to
// the real gagliardetto/solana-go/programs/compute-budget package per
// SPEC_FULL.md §10 instead of the teacher's hand-rolled byte encoder.
package computeunits

import (
	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"

	"github.com/solana-copytrader/engine/internal/coredomain"
)

// unitLimits is the per-family compute-unit table from spec.md §4.7: 400k
// for simple PumpFun-style swaps, up to 1.4M for CLMM-style DEXes that walk
// multiple tick arrays per swap.
var unitLimits = map[coredomain.DEXFamily]uint32{
	coredomain.DEXPumpFunBondingCrv: 400_000,
	coredomain.DEXPumpFunAMM:        400_000,
	coredomain.DEXRaydiumV4:         400_000,
	coredomain.DEXRaydiumCPMM:       500_000,
	coredomain.DEXRaydiumCLMM:       1_000_000,
	coredomain.DEXRaydiumLaunchpad:  400_000,
	coredomain.DEXMeteoraDLMM:       900_000,
	coredomain.DEXMeteoraDBC:        500_000,
	coredomain.DEXMeteoraCPAMM:      500_000,
	coredomain.DEXOrcaWhirlpool:     1_400_000,
	coredomain.DEXAggregator:        1_400_000,
}

const defaultUnitLimit uint32 = 600_000

// UnitLimit returns the compute-unit cap for family, falling back to a
// conservative default for an unrecognized tag.
func UnitLimit(family coredomain.DEXFamily) uint32 {
	if limit, ok := unitLimits[family]; ok {
		return limit
	}
	return defaultUnitLimit
}

// Instructions builds the set-unit-limit and set-unit-price instructions
// for family, where unitPriceMicroLamports is the greater of the policy
// minimum and the Submitter's dynamic fee estimate.
func Instructions(family coredomain.DEXFamily, unitPriceMicroLamports uint64) []solana.Instruction {
	limit := UnitLimit(family)
	return []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(limit).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(unitPriceMicroLamports).Build(),
	}
}
