package classify

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/solana-copytrader/engine/internal/coredomain"
)

// Rejection is a definite "not copyable" verdict with a structured reason,
// returned instead of a Classification.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return r.Reason }

func reject(format string, args ...any) *Rejection {
	return &Rejection{Reason: fmt.Sprintf(format, args...)}
}

// Classifier runs the four-layer algorithm from spec.md §4.3 against a
// normalized LeaderTxEvent.
type Classifier struct {
	registry *Registry
	cache    *Cache
	logger   *zap.Logger
}

// New builds a Classifier around registry, backed by a 30s-TTL
// signature-keyed cache.
func New(registry *Registry, logger *zap.Logger) *Classifier {
	return &Classifier{
		registry: registry,
		cache:    NewCache(),
		logger:   logger.Named("classifier"),
	}
}

// Classify returns a Classification, or a *Rejection describing why the
// event is not copyable. A cache hit short-circuits all four layers but
// never elides a side effect — callers must still act on the returned
// verdict themselves.
func (c *Classifier) Classify(event *coredomain.LeaderTxEvent) (*coredomain.Classification, error) {
	if cached, ok := c.cache.Get(event.Signature); ok {
		return cached.classification, cached.rejection
	}

	classification, err := c.classify(event)
	c.cache.Put(event.Signature, classification, err)
	return classification, err
}

func (c *Classifier) classify(event *coredomain.LeaderTxEvent) (*coredomain.Classification, error) {
	router, family := c.layer1(event)
	if family == coredomain.DEXUnknown {
		return nil, reject("no recognized DEX program in transaction context")
	}

	if err := c.layer2(event, router, family); err != nil {
		return nil, err
	}

	directionHint := c.layer3(event, family)

	direction, inputMint, outputMint, amountIn, amountOut, err := c.layer4(event)
	if err != nil {
		return nil, err
	}
	if directionHint != "" {
		direction = resolveDirection(directionHint, direction)
	}

	slippage := c.extractSlippage(event, family, amountIn, amountOut)

	return &coredomain.Classification{
		LeaderSignature:   event.Signature,
		Router:            router,
		DEX:               family,
		Direction:         direction,
		InputMint:         inputMint,
		OutputMint:        outputMint,
		LeaderAmountIn:    amountIn,
		LeaderSlippageBps: slippage,
	}, nil
}

// layer1 implements the "router vs DEX bouncer" scan: first router match
// among top-level instructions, then the first DEX match across log
// messages, account keys, and inner instructions, in that priority order.
func (c *Classifier) layer1(event *coredomain.LeaderTxEvent) (router string, family coredomain.DEXFamily) {
	router = "Direct"
	for _, ins := range event.TopLevel {
		if name := c.registry.matchRouter(ins.ProgramID); name != "" {
			router = name
			break
		}
	}

	if family = c.dexFromLogMessages(event.LogMessages); family != coredomain.DEXUnknown {
		return router, family
	}
	if family = c.dexFromAccountKeys(event.AccountKeys); family != coredomain.DEXUnknown {
		return router, family
	}
	if family = c.dexFromInstructions(event.Inner); family != coredomain.DEXUnknown {
		return router, family
	}
	return router, coredomain.DEXUnknown
}

func (c *Classifier) dexFromLogMessages(lines []string) coredomain.DEXFamily {
	for _, line := range lines {
		if !strings.HasPrefix(line, "Program ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		pk, err := solana.PublicKeyFromBase58(fields[1])
		if err != nil {
			continue
		}
		if f := c.registry.matchDEX(pk); f != coredomain.DEXUnknown {
			return f
		}
	}
	return coredomain.DEXUnknown
}

func (c *Classifier) dexFromAccountKeys(keys []solana.PublicKey) coredomain.DEXFamily {
	for _, k := range keys {
		if f := c.registry.matchDEX(k); f != coredomain.DEXUnknown {
			return f
		}
	}
	return coredomain.DEXUnknown
}

func (c *Classifier) dexFromInstructions(ins []coredomain.Instruction) coredomain.DEXFamily {
	for _, i := range ins {
		if f := c.registry.matchDEX(i.ProgramID); f != coredomain.DEXUnknown {
			return f
		}
	}
	return coredomain.DEXUnknown
}

// layer2 checks the account-structure invariants per family.
func (c *Classifier) layer2(event *coredomain.LeaderTxEvent, router string, family coredomain.DEXFamily) error {
	if event.LeaderAccountIndex() < 0 {
		return reject("leader account %s absent from normalized account list", event.Leader)
	}

	switch family {
	case coredomain.DEXPumpFunBondingCrv, coredomain.DEXPumpFunAMM:
		if router == "Direct" && !containsKey(event.AccountKeys, c.registry.pumpFunFeeRecipient) {
			return reject("direct pumpfun call missing fee-recipient account")
		}
	case coredomain.DEXRaydiumV4, coredomain.DEXRaydiumCPMM, coredomain.DEXRaydiumCLMM, coredomain.DEXRaydiumLaunchpad:
		if !containsKey(event.AccountKeys, c.registry.systemProgram) {
			return reject("raydium call missing system program account")
		}
	case coredomain.DEXMeteoraDLMM, coredomain.DEXMeteoraDBC, coredomain.DEXMeteoraCPAMM:
		if !containsKey(event.AccountKeys, c.registry.tokenProgram) {
			return reject("meteora call missing spl token program account")
		}
	}
	return nil
}

func containsKey(keys []solana.PublicKey, target solana.PublicKey) bool {
	for _, k := range keys {
		if k.Equals(target) {
			return true
		}
	}
	return false
}

// layer3 returns a direction hint from log-message evidence, falling back
// to the presence of any non-empty instruction data on the DEX program.
// It returns "" when neither signal is present; Layer 4 is authoritative
// regardless.
func (c *Classifier) layer3(event *coredomain.LeaderTxEvent, family coredomain.DEXFamily) coredomain.Direction {
	for _, line := range event.LogMessages {
		switch {
		case strings.Contains(line, "Instruction: Buy"):
			return coredomain.DirectionBuy
		case strings.Contains(line, "Instruction: Sell"):
			return coredomain.DirectionSell
		case strings.Contains(line, "Instruction: Swap"):
			return coredomain.DirectionBuy
		}
	}

	for _, ins := range append(append([]coredomain.Instruction{}, event.Inner...), event.TopLevel...) {
		if c.registry.matchDEX(ins.ProgramID) == family && len(ins.Data) > 0 {
			return coredomain.DirectionBuy
		}
	}
	return ""
}

// resolveDirection prefers the log-derived hint only when it disagrees
// with the authoritative economic signature in a way that still leaves
// the economic evidence ambiguous; in practice Layer 4 always wins once it
// has a non-zero delta to reason about, so this mostly exists to document
// the precedence spec.md §4.3 establishes ("Layer 4... authoritative").
func resolveDirection(hint, economic coredomain.Direction) coredomain.Direction {
	if economic != "" {
		return economic
	}
	return hint
}

// layer4 is the authoritative economic-signature pass: leader SOL delta
// plus per-mint token-balance deltas decide both direction and mints. It
// also returns the realized output-side amount, used as the slippage
// extractor's quoted-out estimate.
func (c *Classifier) layer4(event *coredomain.LeaderTxEvent) (coredomain.Direction, solana.PublicKey, solana.PublicKey, uint64, uint64, error) {
	leaderIdx := event.LeaderAccountIndex()

	var solDelta int64
	for _, b := range event.SOLBalances {
		if b.AccountIndex == leaderIdx {
			solDelta = b.Delta()
			break
		}
	}

	var negMint, posMint solana.PublicKey
	var negAmt, posAmt uint64
	haveNeg, havePos := false, false
	for _, tb := range event.TokenBalances {
		if !tb.Owner.Equals(event.Leader) {
			continue
		}
		d := tb.Delta()
		if d < 0 && !haveNeg {
			negMint, negAmt, haveNeg = tb.Mint, uint64(-d), true
		}
		if d > 0 && !havePos {
			posMint, posAmt, havePos = tb.Mint, uint64(d), true
		}
	}

	if solDelta == 0 && !haveNeg && !havePos {
		return "", solana.PublicKey{}, solana.PublicKey{}, 0, 0, reject("no non-zero balance delta for leader")
	}

	switch {
	case solDelta < 0 && havePos:
		// spent SOL, received a token: buy
		return coredomain.DirectionBuy, coredomain.WrappedSOLMint, posMint, uint64(-solDelta), posAmt, nil
	case solDelta > 0 && haveNeg:
		// sold a token, received SOL: sell
		return coredomain.DirectionSell, negMint, coredomain.WrappedSOLMint, negAmt, uint64(solDelta), nil
	case haveNeg && havePos:
		// token-for-token swap; treat acquiring the output side as a buy
		return coredomain.DirectionBuy, negMint, posMint, negAmt, posAmt, nil
	case solDelta < 0:
		return coredomain.DirectionBuy, coredomain.WrappedSOLMint, coredomain.WrappedSOLMint, uint64(-solDelta), 0, nil
	case solDelta > 0:
		return coredomain.DirectionSell, coredomain.WrappedSOLMint, coredomain.WrappedSOLMint, uint64(solDelta), 0, nil
	default:
		return "", solana.PublicKey{}, solana.PublicKey{}, 0, 0, reject("ambiguous balance deltas for leader")
	}
}
