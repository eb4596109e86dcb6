// Package submit is the Submitter (spec.md §4.7): it takes a built
// instruction list and a follower's signing capability, wraps it with
// compute-budget and tip instructions, signs, sends through the Chain
// Client's RPC endpoint pool with preflight skipped and node retries
// disabled (there is no separate fast-lane endpoint), and polls for
// confirmation, with a bounded retry ladder on a fresh blockhash each time.
//
// Grounded on the teacher's internal/transaction/transaction.go
// (PrepareAndSendTransaction, RetryOperation) and
// internal/blockchain/solana/transaction/builder.go, generalized away from
// both files' private-key-holding signer callback toward the core's
// Signer capability (coredomain.Signer) per spec.md §9's design note: the
// core never stores a key, so the message is serialized and handed to the
// Signer instead of being signed via solana.Transaction.Sign's
// private-key lookup.
package submit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/solana-copytrader/engine/internal/builders/computeunits"
	"github.com/solana-copytrader/engine/internal/chain"
	"github.com/solana-copytrader/engine/internal/coredomain"
)

const (
	// maxAttempts is the retry ceiling from spec.md §4.7: "up to three
	// attempts, each on a fresh blockhash".
	maxAttempts = 3

	// retryBackoffStep is the linear backoff unit between attempts; attempt
	// n sleeps n*retryBackoffStep.
	retryBackoffStep = 400 * time.Millisecond

	// confirmDeadline is the bounded deadline for step 6's status poll.
	confirmDeadline = 30 * time.Second
)

// Outcome is the Submitter's three-way verdict.
type Outcome int

const (
	OutcomeConfirmed Outcome = iota
	OutcomeConfirmedButEmpty
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeConfirmedButEmpty:
		return "confirmed-but-empty"
	default:
		return "failed"
	}
}

// Result is what Dispatch returns to its caller (the Scheduler), which
// decides whether to record a position or a failure.
type Result struct {
	Outcome   Outcome
	Signature solana.Signature
	Err       error
}

// Chain is the narrow Chain Client surface the Submitter needs.
type Chain interface {
	LatestBlockhash(ctx context.Context) (chain.Blockhash, error)
	FetchALT(ctx context.Context, key solana.PublicKey) ([]solana.PublicKey, error)
	SubmitRaw(ctx context.Context, tx *solana.Transaction, skipPreflight bool) (solana.Signature, error)
	Confirm(ctx context.Context, signature solana.Signature, lastValidBlockHeight uint64) (chain.ConfirmOutcome, error)
	FetchTokenBalance(ctx context.Context, ata solana.PublicKey) (uint64, error)
	RecentPrioritizationFees(ctx context.Context, accounts []solana.PublicKey) ([]*rpc.GetRecentPrioritizationFeesResult, error)
}

// ErrTransactionTooLarge is surfaced verbatim from the RPC rejection so the
// caller can match on it without the Submitter parsing error strings twice.
var ErrTransactionTooLarge = errors.New("submit: transaction too large; attach an address lookup table")

// Submitter wraps one Chain Client for repeated use across dispatch tasks.
type Submitter struct {
	chain  Chain
	logger *zap.Logger
}

// New builds a Submitter over chain.
func New(chain Chain, logger *zap.Logger) *Submitter {
	return &Submitter{chain: chain, logger: logger.Named("submit")}
}

// Dispatch runs the full spec.md §4.7 algorithm for one CopyPlan's built
// instructions: compute-budget and tip prepend/append, sign, submit,
// confirm, retry on a fresh blockhash up to maxAttempts, and (buy only)
// the false-positive balance check.
func (s *Submitter) Dispatch(ctx context.Context, signer coredomain.Signer, plan coredomain.CopyPlan, policy coredomain.FollowerPolicy, swapInstructions []solana.Instruction, alts []solana.PublicKey) Result {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err := s.attempt(ctx, signer, plan, policy, swapInstructions, alts)
		if err == nil {
			return res
		}
		lastErr = err

		if errors.Is(err, ErrTransactionTooLarge) {
			s.logger.Warn("dispatch: transaction too large, failing fast",
				zap.String("follower", plan.FollowerID), zap.Int("alts", len(alts)))
			return Result{Outcome: OutcomeFailed, Err: err}
		}

		s.logger.Warn("dispatch: attempt failed, retrying on a fresh blockhash",
			zap.String("follower", plan.FollowerID), zap.Int("attempt", attempt), zap.Error(err))

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return Result{Outcome: OutcomeFailed, Err: ctx.Err()}
			case <-time.After(time.Duration(attempt) * retryBackoffStep):
			}
		}
	}
	return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("submit: exhausted %d attempts: %w", maxAttempts, lastErr)}
}

func (s *Submitter) attempt(ctx context.Context, signer coredomain.Signer, plan coredomain.CopyPlan, policy coredomain.FollowerPolicy, swapInstructions []solana.Instruction, alts []solana.PublicKey) (Result, error) {
	bh, err := s.chain.LatestBlockhash(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch blockhash: %w", err)
	}

	unitPrice := estimateUnitPrice(ctx, s.chain, programIDFor(plan.Classification.DEX), policy.MinUnitPriceMicroLamports)
	tipIx, err := tipInstruction(signer.PublicKey(), policy.TipLamports)
	if err != nil {
		return Result{}, fmt.Errorf("build tip instruction: %w", err)
	}

	instructions := make([]solana.Instruction, 0, len(swapInstructions)+3)
	instructions = append(instructions, computeunits.Instructions(plan.Classification.DEX, unitPrice)...)
	instructions = append(instructions, swapInstructions...)
	instructions = append(instructions, tipIx)

	tables, err := resolveAddressTables(ctx, s.chain, alts)
	if err != nil {
		return Result{}, fmt.Errorf("resolve address lookup tables: %w", err)
	}

	txOpts := []solana.TransactionOption{solana.TransactionPayer(signer.PublicKey())}
	if len(tables) > 0 {
		txOpts = append(txOpts, solana.TransactionAddressTables(tables))
	}
	tx, err := solana.NewTransaction(instructions, bh.Hash, txOpts...)
	if err != nil {
		if isTransactionTooLarge(err) {
			return Result{}, ErrTransactionTooLarge
		}
		return Result{}, fmt.Errorf("compose transaction: %w", err)
	}

	return s.sendAndConfirm(ctx, signer, plan, tx, bh.LastValidBlockHeight)
}

// sendAndConfirm is steps 4-6 of spec.md §4.7 plus the false-positive
// check, shared by the native-builder path (attempt) and the aggregator
// fallback's prebuilt-transaction path (DispatchPrebuilt): sign, submit,
// confirm, and on a successful buy, verify the output balance landed.
func (s *Submitter) sendAndConfirm(ctx context.Context, signer coredomain.Signer, plan coredomain.CopyPlan, tx *solana.Transaction, lastValidBlockHeight uint64) (Result, error) {
	if err := signTransaction(tx, signer); err != nil {
		return Result{}, fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := s.chain.SubmitRaw(ctx, tx, true)
	if err != nil {
		if isTransactionTooLarge(err) {
			return Result{}, ErrTransactionTooLarge
		}
		return Result{}, fmt.Errorf("submit: %w", err)
	}

	confirmCtx, cancel := context.WithTimeout(ctx, confirmDeadline)
	defer cancel()
	outcome, err := s.chain.Confirm(confirmCtx, sig, lastValidBlockHeight)
	if err != nil && !errors.Is(err, chain.ErrConfirmTimeout) {
		return Result{}, fmt.Errorf("confirm: %w", err)
	}

	switch outcome {
	case chain.ConfirmOnChainError:
		return Result{Outcome: OutcomeFailed, Signature: sig, Err: fmt.Errorf("submit: on-chain rejection")}, nil
	case chain.ConfirmTimeout:
		return Result{Outcome: OutcomeFailed, Signature: sig, Err: chain.ErrConfirmTimeout}, nil
	}

	if plan.Classification.Direction == coredomain.DirectionBuy {
		empty, err := s.isOutputBalanceEmpty(ctx, signer.PublicKey(), plan.Classification.OutputMint)
		if err != nil {
			s.logger.Warn("dispatch: false-positive check failed, treating as confirmed",
				zap.String("follower", plan.FollowerID), zap.Error(err))
		} else if empty {
			return Result{Outcome: OutcomeConfirmedButEmpty, Signature: sig}, nil
		}
	}

	return Result{Outcome: OutcomeConfirmed, Signature: sig}, nil
}

// DispatchPrebuilt runs the aggregator fallback path (spec.md §4.6
// "Fallback builder"): rawTxs are already-assembled, unsigned versioned
// transactions from the external aggregator, each carrying its own
// compute-budget and routing instructions, so unlike Dispatch this does
// not prepend compute-budget or append a tip instruction. Each is sent
// sequentially; the recent blockhash is replaced at signing time per
// spec.md §4.6, and the same maxAttempts/backoff ladder applies per
// transaction.
func (s *Submitter) DispatchPrebuilt(ctx context.Context, signer coredomain.Signer, plan coredomain.CopyPlan, rawTxs [][]byte) Result {
	var last Result
	for _, raw := range rawTxs {
		res := s.dispatchOnePrebuilt(ctx, signer, plan, raw)
		if res.Outcome != OutcomeConfirmed && res.Outcome != OutcomeConfirmedButEmpty {
			return res
		}
		last = res
	}
	return last
}

func (s *Submitter) dispatchOnePrebuilt(ctx context.Context, signer coredomain.Signer, plan coredomain.CopyPlan, raw []byte) Result {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		tx, err := solana.TransactionFromBytes(raw)
		if err != nil {
			return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("decode prebuilt transaction: %w", err)}
		}

		bh, err := s.chain.LatestBlockhash(ctx)
		if err != nil {
			lastErr = fmt.Errorf("fetch blockhash: %w", err)
		} else {
			tx.Message.RecentBlockhash = bh.Hash
			res, sendErr := s.sendAndConfirm(ctx, signer, plan, tx, bh.LastValidBlockHeight)
			if sendErr == nil {
				return res
			}
			if errors.Is(sendErr, ErrTransactionTooLarge) {
				return Result{Outcome: OutcomeFailed, Err: sendErr}
			}
			lastErr = sendErr
		}

		s.logger.Warn("dispatch: prebuilt attempt failed, retrying on a fresh blockhash",
			zap.String("follower", plan.FollowerID), zap.Int("attempt", attempt), zap.Error(lastErr))
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return Result{Outcome: OutcomeFailed, Err: ctx.Err()}
			case <-time.After(time.Duration(attempt) * retryBackoffStep):
			}
		}
	}
	return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("submit: exhausted %d attempts: %w", maxAttempts, lastErr)}
}

// isOutputBalanceEmpty implements the buy-only false-positive check from
// spec.md §4.7: a confirmed buy whose output-mint ATA still reads zero
// means the swap landed but produced nothing, so the Position Ledger must
// not record it.
func (s *Submitter) isOutputBalanceEmpty(ctx context.Context, owner, mint solana.PublicKey) (bool, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return false, err
	}
	amount, err := s.chain.FetchTokenBalance(ctx, ata)
	if err != nil {
		return false, err
	}
	return amount == 0, nil
}

// resolveAddressTables expands each ALT key into the
// solana.PublicKeySlice NewTransaction needs to build a v0 message.
func resolveAddressTables(ctx context.Context, c Chain, alts []solana.PublicKey) (map[solana.PublicKey]solana.PublicKeySlice, error) {
	if len(alts) == 0 {
		return nil, nil
	}
	tables := make(map[solana.PublicKey]solana.PublicKeySlice, len(alts))
	for _, key := range alts {
		addrs, err := c.FetchALT(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("lookup table %s: %w", key, err)
		}
		tables[key] = addrs
	}
	return tables, nil
}

// signTransaction serializes tx's message and asks the Signer capability
// for a signature over it, rather than handing a private key to
// solana.Transaction.Sign. The follower is always the sole required
// signer: the core builds transactions payer-only, never co-signed.
func signTransaction(tx *solana.Transaction, signer coredomain.Signer) error {
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	sig, err := signer.Sign(msg)
	if err != nil {
		return fmt.Errorf("signer: %w", err)
	}
	tx.Signatures = []solana.Signature{sig}
	return nil
}

func isTransactionTooLarge(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "too large")
}
