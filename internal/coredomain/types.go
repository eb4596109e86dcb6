// Package coredomain holds the shared data model for the copy-trading hot
// path: leaders, followers, the normalized transaction record the ingest
// stage produces, and the classification/plan/position types that flow
// between the downstream stages.
package coredomain

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// DEXFamily is the closed sum type over DEX families the core knows how to
// copy. Builders and the classifier share it; dispatch tables key on it
// instead of matching on platform name strings.
type DEXFamily string

const (
	DEXUnknown           DEXFamily = "unknown"
	DEXPumpFunBondingCrv DEXFamily = "pumpfun_bc"
	DEXPumpFunAMM        DEXFamily = "pumpfun_amm"
	DEXRaydiumV4         DEXFamily = "raydium_v4"
	DEXRaydiumCPMM       DEXFamily = "raydium_cpmm"
	DEXRaydiumCLMM       DEXFamily = "raydium_clmm"
	DEXRaydiumLaunchpad  DEXFamily = "raydium_launchpad"
	DEXMeteoraDLMM       DEXFamily = "meteora_dlmm"
	DEXMeteoraDBC        DEXFamily = "meteora_dbc"
	DEXMeteoraCPAMM      DEXFamily = "meteora_cpamm"
	DEXOrcaWhirlpool     DEXFamily = "orca_whirlpool"
	DEXAggregator        DEXFamily = "aggregator"
)

// Direction is the trade direction Layer 4 of the classifier resolves.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// WrappedSOLMint is the SPL-token mint representing native SOL for AMM
// interoperability.
var WrappedSOLMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

// Leader is an operator-curated wallet the core observes. Never mutated by
// the core itself.
type Leader struct {
	PublicKey   solana.PublicKey
	DisplayName string
}

// FollowerPolicy is a follower's sizing and risk policy.
type FollowerPolicy struct {
	FixedLamportsPerBuy       uint64
	MaxSlippageBps            uint32
	PlatformAllowList         map[DEXFamily]bool // nil/empty means "allow all"
	MinUnitPriceMicroLamports uint64             // floor for the Submitter's dynamic priority-fee estimate
	TipLamports               uint64             // Jito tip amount attached to every submission
}

// Allows reports whether the policy permits copying the given DEX family.
func (p FollowerPolicy) Allows(family DEXFamily) bool {
	if len(p.PlatformAllowList) == 0 {
		return true
	}
	return p.PlatformAllowList[family]
}

// Follower is a subscriber to the copy pipeline. Signer is an opaque
// capability that yields signatures on demand; the core never stores a
// private key in this struct or any struct derived from it.
type Follower struct {
	ID     string
	Signer Signer
	Policy FollowerPolicy
}

// Signer is the "sign this message" capability a key-custody collaborator
// hands the core. The core never asks for the underlying private key.
type Signer interface {
	PublicKey() solana.PublicKey
	Sign(message []byte) (solana.Signature, error)
}

// Subscription maps a follower to the set of leaders it currently copies.
type Subscription struct {
	FollowerID string
	Leaders    map[solana.PublicKey]struct{}
}

// HasLeader reports whether the subscription includes the given leader.
func (s Subscription) HasLeader(leader solana.PublicKey) bool {
	_, ok := s.Leaders[leader]
	return ok
}

// AccountBalanceDelta captures a pre/post SOL balance pair at a fixed
// account-list index.
type AccountBalanceDelta struct {
	AccountIndex int
	PreLamports  uint64
	PostLamports uint64
}

// Delta returns the signed lamport delta (post - pre).
func (d AccountBalanceDelta) Delta() int64 {
	return int64(d.PostLamports) - int64(d.PreLamports)
}

// TokenBalance is one pre/post token-balance entry as reported by the RPC
// transaction metadata, keyed by owning account.
type TokenBalance struct {
	AccountIndex int
	Mint         solana.PublicKey
	Owner        solana.PublicKey
	PreAmount    uint64
	PostAmount   uint64
	Decimals     uint8
}

// Delta returns the signed raw-unit delta (post - pre).
func (t TokenBalance) Delta() int64 {
	return int64(t.PostAmount) - int64(t.PreAmount)
}

// Instruction is a normalized, already-index-resolved instruction: the
// program ID and the account keys it references are fully expanded,
// including via address-lookup tables, so no caller needs to re-resolve an
// index into the static account list.
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  []solana.PublicKey
	Data      []byte
}

// LeaderTxEvent is the normalized, Ingest-produced record of one leader
// transaction. It is constructed once and moved by reference through
// Classification and into each follower's dispatch task; no component
// copies the account list per follower.
type LeaderTxEvent struct {
	Leader          solana.PublicKey
	Signature       solana.Signature
	Slot            uint64
	BlockTime       time.Time
	AccountKeys     []solana.PublicKey // static + ALT-expanded, in declared order
	TopLevel        []Instruction
	Inner           []Instruction // flattened across all top-level indices, declared order preserved
	LogMessages     []string
	SOLBalances     []AccountBalanceDelta
	TokenBalances   []TokenBalance
}

// LeaderAccountIndex returns the index of the leader's own key in
// AccountKeys, or -1 if absent.
func (e *LeaderTxEvent) LeaderAccountIndex() int {
	for i, k := range e.AccountKeys {
		if k.Equals(e.Leader) {
			return i
		}
	}
	return -1
}

// Classification is the Classifier's verdict for one LeaderTxEvent.
type Classification struct {
	LeaderSignature solana.Signature
	Router          string // program name, or "Direct"
	DEX             DEXFamily
	Direction       Direction
	InputMint       solana.PublicKey
	OutputMint      solana.PublicKey
	LeaderAmountIn  uint64 // raw units of InputMint
	LeaderSlippageBps *uint32 // nil if undecodable
}

// ATACreateStep is an idempotent associated-token-account creation the
// Copy Planner requires before the swap instruction.
type ATACreateStep struct {
	Owner solana.PublicKey
	Mint  solana.PublicKey
}

// CopyPlan is what the Copy Planner hands to an Instruction Builder.
type CopyPlan struct {
	FollowerID     string
	Classification Classification
	AmountRaw      uint64 // follower-side input amount, raw units
	SlippageBps    uint32
	SetupSteps     []ATACreateStep
}

// OpenPosition is the Position Ledger's record of a follower's holding in
// one mint.
type OpenPosition struct {
	Follower     string
	Mint         solana.PublicKey
	AmountRaw    uint64
	SOLSpentRaw  uint64
	BuySignature solana.Signature
	OpenedAt     time.Time
}

// IsOpen reports whether the position still has a non-zero amount.
func (p *OpenPosition) IsOpen() bool {
	return p != nil && p.AmountRaw > 0
}
