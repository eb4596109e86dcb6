package submit

import (
	"context"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// highPercentile is the percentile of recent per-program prioritization
// fees the dynamic estimate takes, per spec.md §4.7 step 2 ("takes the
// high-percentile value").
const highPercentile = 0.90

// feeSource is the narrow Chain Client surface the estimator needs.
type feeSource interface {
	RecentPrioritizationFees(ctx context.Context, accounts []solana.PublicKey) ([]*rpc.GetRecentPrioritizationFeesResult, error)
}

// estimateUnitPrice queries fees for the program the plan targets and
// returns the greater of policyMinimum and the high-percentile of recent
// per-compute-unit prices, in micro-lamports. A query failure falls back to
// policyMinimum rather than failing the whole dispatch.
func estimateUnitPrice(ctx context.Context, fees feeSource, programID solana.PublicKey, policyMinimum uint64) uint64 {
	results, err := fees.RecentPrioritizationFees(ctx, []solana.PublicKey{programID})
	if err != nil || len(results) == 0 {
		return policyMinimum
	}

	values := make([]uint64, len(results))
	for i, f := range results {
		values[i] = f.PrioritizationFee
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	idx := int(float64(len(values)-1) * highPercentile)
	estimate := values[idx]
	if estimate < policyMinimum {
		return policyMinimum
	}
	return estimate
}
