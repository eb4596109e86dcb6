package submit

import (
	"github.com/gagliardetto/solana-go"

	"github.com/solana-copytrader/engine/internal/coredomain"
)

// dexProgramIDs mirrors classify.Registry's family table, scoped down to
// what the Submitter needs: a program ID to key the prioritization-fee
// query on (spec.md §4.7 step 2, "keyed on the target program").
var dexProgramIDs = map[coredomain.DEXFamily]solana.PublicKey{
	coredomain.DEXPumpFunBondingCrv: solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"),
	coredomain.DEXPumpFunAMM:        solana.MustPublicKeyFromBase58("pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA"),
	coredomain.DEXRaydiumV4:         solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"),
	coredomain.DEXRaydiumCPMM:       solana.MustPublicKeyFromBase58("CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1"),
	coredomain.DEXRaydiumCLMM:       solana.MustPublicKeyFromBase58("CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK"),
	coredomain.DEXRaydiumLaunchpad:  solana.MustPublicKeyFromBase58("LanMV9sAd7wArD4vJFi2qDdfnVhFxYSUg6eADduJ3uj"),
	coredomain.DEXMeteoraDLMM:       solana.MustPublicKeyFromBase58("LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo"),
	coredomain.DEXMeteoraCPAMM:      solana.MustPublicKeyFromBase58("cpamdpZCGKUy5JxQXB4dcpGPiikHawvSWAd6mEn1sGG"),
	coredomain.DEXOrcaWhirlpool:     solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc"),
}

// programIDFor returns the DEX program ID to key a prioritization-fee
// query on, falling back to the System Program (a safe, always-present
// account) for families without a fixed program ID, such as the
// aggregator fallback.
func programIDFor(family coredomain.DEXFamily) solana.PublicKey {
	if id, ok := dexProgramIDs[family]; ok {
		return id
	}
	return solana.SystemProgramID
}
