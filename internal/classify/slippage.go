package classify

import (
	"encoding/binary"

	"github.com/solana-copytrader/engine/internal/coredomain"
)

// pumpFunArgsLen is the byte length of a Pump.fun buy/sell instruction's
// argument payload: 8-byte discriminator + two little-endian u64s, per
// the account/data layout in the Pump.fun builder.
const pumpFunArgsLen = 24

// raydiumV4ArgsLen is a Raydium V4-style swap instruction's data length:
// 1-byte instruction type + two little-endian u64s.
const raydiumV4ArgsLen = 17

const (
	minSlippageBps = 0
	maxSlippageBps = 5000
)

// extractSlippage is best-effort: it finds the real DEX instruction
// (inner instructions first, then top-level), decodes its argument
// payload per the family's known layout, and derives a bps figure.
// Returns nil when the instruction can't be found, the layout doesn't
// match, or the derived value falls outside [0, 5000] bps.
func (c *Classifier) extractSlippage(event *coredomain.LeaderTxEvent, family coredomain.DEXFamily, leaderAmountIn uint64, outputAmount uint64) *uint32 {
	ins := c.findDEXInstruction(event, family)
	if ins == nil {
		return nil
	}

	var bps *uint32
	switch family {
	case coredomain.DEXPumpFunBondingCrv, coredomain.DEXPumpFunAMM:
		bps = decodePumpFunSlippage(ins.Data, leaderAmountIn)
	case coredomain.DEXRaydiumV4, coredomain.DEXRaydiumCPMM, coredomain.DEXRaydiumCLMM, coredomain.DEXRaydiumLaunchpad:
		bps = decodeRaydiumV4Slippage(ins.Data, outputAmount)
	default:
		return nil
	}

	if bps == nil || *bps < minSlippageBps || *bps > maxSlippageBps {
		return nil
	}
	return bps
}

func (c *Classifier) findDEXInstruction(event *coredomain.LeaderTxEvent, family coredomain.DEXFamily) *coredomain.Instruction {
	for i := range event.Inner {
		if c.registry.matchDEX(event.Inner[i].ProgramID) == family {
			return &event.Inner[i]
		}
	}
	for i := range event.TopLevel {
		if c.registry.matchDEX(event.TopLevel[i].ProgramID) == family {
			return &event.TopLevel[i]
		}
	}
	return nil
}

// decodePumpFunSlippage implements spec.md §4.3's formula:
// (max_sol_cost − actual_sol_change) / max_sol_cost · 10000.
func decodePumpFunSlippage(data []byte, actualSOLChange uint64) *uint32 {
	if len(data) != pumpFunArgsLen {
		return nil
	}
	maxSolCost := binary.LittleEndian.Uint64(data[16:24])
	if maxSolCost == 0 || actualSOLChange > maxSolCost {
		return nil
	}
	bps := uint32((maxSolCost - actualSOLChange) * 10000 / maxSolCost)
	return &bps
}

// decodeRaydiumV4Slippage implements the generic (1 − minimum_out /
// quoted_out) · 10000 formula, using the realized output amount as the
// quoted-out estimate since the instruction payload itself only carries
// the leader's minimum-acceptable bound.
func decodeRaydiumV4Slippage(data []byte, quotedOut uint64) *uint32 {
	if len(data) != raydiumV4ArgsLen {
		return nil
	}
	minimumAmountOut := binary.LittleEndian.Uint64(data[9:17])
	if quotedOut == 0 || minimumAmountOut > quotedOut {
		return nil
	}
	bps := uint32((1 - float64(minimumAmountOut)/float64(quotedOut)) * 10000)
	return &bps
}
