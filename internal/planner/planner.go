// Package planner is the Copy Planner (spec.md §4.5): it turns a
// Classification plus a follower's policy and current ledger position into
// a CopyPlan, or drops the opportunity when the plan would violate a
// policy or structural rule.
package planner

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/solana-copytrader/engine/internal/coredomain"
)

// ledgerView is the narrow read surface the planner needs from the
// Position Ledger, letting tests substitute a fake without depending on
// ledger.Ledger's durable-store wiring.
type ledgerView interface {
	HasOpen(follower string, mint solana.PublicKey) bool
	Get(follower string, mint solana.PublicKey) *coredomain.OpenPosition
}

// Planner builds CopyPlans. Stateless beyond its ledger dependency — safe
// for concurrent use across dispatch tasks.
type Planner struct {
	ledger ledgerView
}

// New constructs a Planner reading positions from ledger.
func New(ledger ledgerView) *Planner {
	return &Planner{ledger: ledger}
}

// Plan builds a CopyPlan for one follower from a Classification, or returns
// (nil, nil) when the opportunity is silently dropped per spec.md §4.5
// (duplicate buy of a held token, sell with no position). A non-nil error
// indicates a plan that failed validation and should be logged, not a
// routine drop.
func (p *Planner) Plan(followerID string, policy coredomain.FollowerPolicy, class coredomain.Classification) (*coredomain.CopyPlan, error) {
	if !policy.Allows(class.DEX) {
		return nil, nil
	}

	switch class.Direction {
	case coredomain.DirectionBuy:
		return p.planBuy(followerID, policy, class)
	case coredomain.DirectionSell:
		return p.planSell(followerID, policy, class)
	default:
		return nil, fmt.Errorf("plan: unrecognized direction %q", class.Direction)
	}
}

func (p *Planner) planBuy(followerID string, policy coredomain.FollowerPolicy, class coredomain.Classification) (*coredomain.CopyPlan, error) {
	if !class.InputMint.Equals(coredomain.WrappedSOLMint) {
		return nil, fmt.Errorf("plan buy: input mint %s is not wrapped SOL", class.InputMint)
	}
	if class.InputMint.Equals(class.OutputMint) {
		return nil, fmt.Errorf("plan buy: input and output mint are identical (%s)", class.InputMint)
	}

	// One position per token, per-follower globally (spec.md §9 Open
	// Questions, resolved in favor of the source behavior).
	if p.ledger.HasOpen(followerID, class.OutputMint) {
		return nil, nil
	}

	amount := policy.FixedLamportsPerBuy
	if amount == 0 {
		return nil, fmt.Errorf("plan buy: follower %s has zero fixed lamports-per-buy", followerID)
	}

	return &coredomain.CopyPlan{
		FollowerID:     followerID,
		Classification: class,
		AmountRaw:      amount,
		SlippageBps:    resolveSlippage(class, policy),
		SetupSteps: []coredomain.ATACreateStep{
			{Owner: solana.PublicKey{}, Mint: class.OutputMint}, // Owner left zero; the Scheduler creates the ATA for the follower's own pubkey
		},
	}, nil
}

func (p *Planner) planSell(followerID string, policy coredomain.FollowerPolicy, class coredomain.Classification) (*coredomain.CopyPlan, error) {
	if !class.OutputMint.Equals(coredomain.WrappedSOLMint) {
		return nil, fmt.Errorf("plan sell: output mint %s is not wrapped SOL", class.OutputMint)
	}
	if class.InputMint.Equals(class.OutputMint) {
		return nil, fmt.Errorf("plan sell: input and output mint are identical (%s)", class.InputMint)
	}

	pos := p.ledger.Get(followerID, class.InputMint)
	if pos == nil || pos.AmountRaw == 0 {
		return nil, nil
	}

	return &coredomain.CopyPlan{
		FollowerID:     followerID,
		Classification: class,
		AmountRaw:      pos.AmountRaw,
		SlippageBps:    resolveSlippage(class, policy),
		// No setup steps: the output is native SOL, there is no ATA to create.
	}, nil
}

// resolveSlippage prefers the leader's decoded slippage when present and
// within policy bounds, falling back to the follower's configured maximum.
func resolveSlippage(class coredomain.Classification, policy coredomain.FollowerPolicy) uint32 {
	if class.LeaderSlippageBps != nil && *class.LeaderSlippageBps <= policy.MaxSlippageBps {
		return *class.LeaderSlippageBps
	}
	return policy.MaxSlippageBps
}
