// Package classify implements the four-layer classification algorithm
// that turns a normalized LeaderTxEvent into a Classification or a
// definite "not copyable" verdict.
package classify

import (
	"github.com/gagliardetto/solana-go"

	"github.com/solana-copytrader/engine/internal/coredomain"
)

// routerEntry is one program a leader transaction may route a swap
// through before it ever reaches a DEX program.
type routerEntry struct {
	Name      string
	ProgramID solana.PublicKey
}

// dexEntry is one DEX program the Classifier recognizes, tagged with the
// family builders and the planner key on.
type dexEntry struct {
	Family    coredomain.DEXFamily
	ProgramID solana.PublicKey
}

// Registry is the router/DEX program-ID table Layer 1 scans. It is a
// table, not a single hardcoded check, so adding a new router or DEX
// program never touches the classification algorithm itself — only this
// file grows.
type Registry struct {
	routers []routerEntry
	dexes   []dexEntry

	systemProgram solana.PublicKey
	tokenProgram  solana.PublicKey
	pumpFunFeeRecipient solana.PublicKey
}

// NewDefaultRegistry returns the registry seeded with the mainnet program
// IDs this core recognizes out of the box. Operators extend it at startup
// with WithRouter/WithDEX for programs that roll out after this build.
func NewDefaultRegistry() *Registry {
	r := &Registry{
		systemProgram: solana.SystemProgramID,
		tokenProgram:  solana.TokenProgramID,
		// Published Pump.fun fee-recipient account; Layer 2 rejects a
		// direct (non-router) Pump.fun call whose account keys lack it.
		pumpFunFeeRecipient: solana.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM"),
	}

	r.routers = []routerEntry{
		{Name: "Jupiter", ProgramID: solana.MustPublicKeyFromBase58("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV")},
	}

	r.dexes = []dexEntry{
		{Family: coredomain.DEXPumpFunBondingCrv, ProgramID: solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")},
		{Family: coredomain.DEXPumpFunAMM, ProgramID: solana.MustPublicKeyFromBase58("pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA")},
		{Family: coredomain.DEXRaydiumV4, ProgramID: solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")},
		{Family: coredomain.DEXRaydiumCPMM, ProgramID: solana.MustPublicKeyFromBase58("CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1")},
		{Family: coredomain.DEXRaydiumCLMM, ProgramID: solana.MustPublicKeyFromBase58("CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK")},
		{Family: coredomain.DEXRaydiumLaunchpad, ProgramID: solana.MustPublicKeyFromBase58("LanMV9sAd7wArD4vJFi2qDdfnVhFxYSUg6eADduJ3uj")},
		{Family: coredomain.DEXMeteoraDLMM, ProgramID: solana.MustPublicKeyFromBase58("LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo")},
		{Family: coredomain.DEXMeteoraCPAMM, ProgramID: solana.MustPublicKeyFromBase58("cpamdpZCGKUy5JxQXB4dcpGPiikHawvSWAd6mEn1sGG")},
		{Family: coredomain.DEXOrcaWhirlpool, ProgramID: solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")},
	}

	return r
}

// WithRouter registers an additional router program.
func (r *Registry) WithRouter(name string, programID solana.PublicKey) *Registry {
	r.routers = append(r.routers, routerEntry{Name: name, ProgramID: programID})
	return r
}

// WithDEX registers an additional DEX program for the given family.
func (r *Registry) WithDEX(family coredomain.DEXFamily, programID solana.PublicKey) *Registry {
	r.dexes = append(r.dexes, dexEntry{Family: family, ProgramID: programID})
	return r
}

// matchRouter returns the router name for programID, or "" if it is not a
// known router.
func (r *Registry) matchRouter(programID solana.PublicKey) string {
	for _, e := range r.routers {
		if e.ProgramID.Equals(programID) {
			return e.Name
		}
	}
	return ""
}

// matchDEX returns the DEX family for programID, or DEXUnknown if it is
// not a known DEX program.
func (r *Registry) matchDEX(programID solana.PublicKey) coredomain.DEXFamily {
	for _, e := range r.dexes {
		if e.ProgramID.Equals(programID) {
			return e.Family
		}
	}
	return coredomain.DEXUnknown
}

func (r *Registry) isDEXProgram(programID solana.PublicKey) bool {
	return r.matchDEX(programID) != coredomain.DEXUnknown
}
