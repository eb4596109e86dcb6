package ingest

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/solana-copytrader/engine/internal/chain"
	"github.com/solana-copytrader/engine/internal/coredomain"
)

// swapLogPattern is the positive signal the pre-filter looks for in
// logMessages before bothering to classify at all (spec.md §4.2).
var swapLogPattern = regexp.MustCompile(`Instruction:\s*(Buy|Sell|Swap)`)

// solDeltaThresholdLamports is "0.0001 SOL" from spec.md §4.2.
const solDeltaThresholdLamports = 100_000

// altResolver is the subset of *chain.Client Normalize needs; an interface
// so normalize_test.go can fake it without spinning up a real pool.
type altResolver interface {
	FetchALT(ctx context.Context, key solana.PublicKey) ([]solana.PublicKey, error)
}

var _ altResolver = (*chain.Client)(nil)

// Normalize turns one RawUpdate for the given leader into a LeaderTxEvent.
// It returns ok=false (with no error) when the update is rejected by the
// on-chain-error check or dropped by the pre-filter — both are expected,
// non-exceptional outcomes, not errors.
func Normalize(ctx context.Context, alts altResolver, leader solana.PublicKey, raw RawUpdate) (*coredomain.LeaderTxEvent, bool, error) {
	if raw.Err != nil {
		return nil, false, nil
	}

	accountKeys, err := expandAccountKeys(ctx, alts, raw)
	if err != nil {
		return nil, false, fmt.Errorf("ingest: expand account keys: %w", err)
	}

	if prefilterDrops(raw) {
		return nil, false, nil
	}

	sig, err := decodeSignature(raw.Signature)
	if err != nil {
		return nil, false, fmt.Errorf("ingest: decode signature: %w", err)
	}

	topLevel, err := resolveInstructions(raw.Instructions, accountKeys)
	if err != nil {
		return nil, false, fmt.Errorf("ingest: resolve top-level instructions: %w", err)
	}

	var inner []coredomain.Instruction
	for _, group := range raw.InnerInstructions {
		ins, err := resolveInstructions(group.Instructions, accountKeys)
		if err != nil {
			return nil, false, fmt.Errorf("ingest: resolve inner instructions at index %d: %w", group.Index, err)
		}
		inner = append(inner, ins...)
	}

	solBalances := make([]coredomain.AccountBalanceDelta, 0, len(raw.PreBalances))
	for i := range raw.PreBalances {
		if i >= len(raw.PostBalances) {
			break
		}
		solBalances = append(solBalances, coredomain.AccountBalanceDelta{
			AccountIndex: i,
			PreLamports:  raw.PreBalances[i],
			PostLamports: raw.PostBalances[i],
		})
	}

	tokenBalances, err := resolveTokenBalances(raw)
	if err != nil {
		return nil, false, fmt.Errorf("ingest: resolve token balances: %w", err)
	}

	event := &coredomain.LeaderTxEvent{
		Leader:        leader,
		Signature:     sig,
		Slot:          raw.Slot,
		BlockTime:     time.Unix(raw.BlockTime, 0).UTC(),
		AccountKeys:   accountKeys,
		TopLevel:      topLevel,
		Inner:         inner,
		LogMessages:   raw.LogMessages,
		SOLBalances:   solBalances,
		TokenBalances: tokenBalances,
	}
	return event, true, nil
}

// expandAccountKeys resolves the static key list plus every referenced
// address lookup table's entries, appended in declared order, so every
// programIdIndex/accounts index in the raw payload resolves within the
// returned slice (spec.md §4.2 invariant).
func expandAccountKeys(ctx context.Context, alts altResolver, raw RawUpdate) ([]solana.PublicKey, error) {
	keys := make([]solana.PublicKey, 0, len(raw.AccountKeys))
	for _, s := range raw.AccountKeys {
		pk, err := solana.PublicKeyFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("static account key %q: %w", s, err)
		}
		keys = append(keys, pk)
	}

	for _, lookup := range raw.AddressTableLookups {
		tableKey, err := solana.PublicKeyFromBase58(lookup.AccountKey)
		if err != nil {
			return nil, fmt.Errorf("lookup table key %q: %w", lookup.AccountKey, err)
		}
		tableAddrs, err := alts.FetchALT(ctx, tableKey)
		if err != nil {
			return nil, fmt.Errorf("fetch lookup table %s: %w", tableKey, err)
		}
		for _, idx := range lookup.WritableIndexes {
			if idx < 0 || idx >= len(tableAddrs) {
				return nil, fmt.Errorf("writable index %d out of range for table %s", idx, tableKey)
			}
			keys = append(keys, tableAddrs[idx])
		}
		for _, idx := range lookup.ReadonlyIndexes {
			if idx < 0 || idx >= len(tableAddrs) {
				return nil, fmt.Errorf("readonly index %d out of range for table %s", idx, tableKey)
			}
			keys = append(keys, tableAddrs[idx])
		}
	}

	return keys, nil
}

func resolveInstructions(raw []RawInstruction, accountKeys []solana.PublicKey) ([]coredomain.Instruction, error) {
	out := make([]coredomain.Instruction, 0, len(raw))
	for _, ri := range raw {
		if ri.ProgramIDIndex < 0 || ri.ProgramIDIndex >= len(accountKeys) {
			return nil, fmt.Errorf("programIdIndex %d out of range", ri.ProgramIDIndex)
		}
		accounts := make([]solana.PublicKey, 0, len(ri.Accounts))
		for _, idx := range ri.Accounts {
			if idx < 0 || idx >= len(accountKeys) {
				return nil, fmt.Errorf("account index %d out of range", idx)
			}
			accounts = append(accounts, accountKeys[idx])
		}
		data, err := decodeInstructionData(ri.Data)
		if err != nil {
			return nil, fmt.Errorf("instruction data: %w", err)
		}
		out = append(out, coredomain.Instruction{
			ProgramID: accountKeys[ri.ProgramIDIndex],
			Accounts:  accounts,
			Data:      data,
		})
	}
	return out, nil
}

func resolveTokenBalances(raw RawUpdate) ([]coredomain.TokenBalance, error) {
	post := make(map[int]RawTokenBalance, len(raw.PostTokenBalances))
	for _, tb := range raw.PostTokenBalances {
		post[tb.AccountIndex] = tb
	}

	out := make([]coredomain.TokenBalance, 0, len(raw.PreTokenBalances))
	for _, pre := range raw.PreTokenBalances {
		p, ok := post[pre.AccountIndex]
		if !ok {
			p = pre // token account closed without a matching post entry; treat as unchanged
		}
		mint, err := solana.PublicKeyFromBase58(pre.Mint)
		if err != nil {
			return nil, fmt.Errorf("token balance mint %q: %w", pre.Mint, err)
		}
		owner, err := solana.PublicKeyFromBase58(pre.Owner)
		if err != nil {
			return nil, fmt.Errorf("token balance owner %q: %w", pre.Owner, err)
		}
		preAmt, err := parseUint64(pre.Amount)
		if err != nil {
			return nil, fmt.Errorf("pre amount %q: %w", pre.Amount, err)
		}
		postAmt, err := parseUint64(p.Amount)
		if err != nil {
			return nil, fmt.Errorf("post amount %q: %w", p.Amount, err)
		}
		out = append(out, coredomain.TokenBalance{
			AccountIndex: pre.AccountIndex,
			Mint:         mint,
			Owner:        owner,
			PreAmount:    preAmt,
			PostAmount:   postAmt,
			Decimals:     pre.Decimals,
		})
	}
	return out, nil
}

func decodeSignature(s string) (solana.Signature, error) {
	return solana.SignatureFromBase58(s)
}

func decodeInstructionData(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return base58.Decode(s)
}

func parseUint64(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	var v uint64
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}

// prefilterDrops implements spec.md §4.2's conservative pre-filter: drop
// only when there is no swap-shaped log line AND the SOL balance movement
// is below the dust threshold. Either signal alone lets the update through.
func prefilterDrops(raw RawUpdate) bool {
	for _, line := range raw.LogMessages {
		if swapLogPattern.MatchString(line) {
			return false
		}
	}
	return maxAbsSOLDelta(raw) < solDeltaThresholdLamports
}

func maxAbsSOLDelta(raw RawUpdate) uint64 {
	var max uint64
	for i := range raw.PreBalances {
		if i >= len(raw.PostBalances) {
			break
		}
		d := int64(raw.PostBalances[i]) - int64(raw.PreBalances[i])
		if d < 0 {
			d = -d
		}
		if uint64(d) > max {
			max = uint64(d)
		}
	}
	return max
}
