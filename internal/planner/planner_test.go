package planner

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solana-copytrader/engine/internal/coredomain"
)

type fakeLedger struct {
	positions map[string]*coredomain.OpenPosition
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{positions: make(map[string]*coredomain.OpenPosition)}
}

func (f *fakeLedger) key(follower string, mint solana.PublicKey) string {
	return follower + "|" + mint.String()
}

func (f *fakeLedger) set(follower string, mint solana.PublicKey, amount uint64) {
	f.positions[f.key(follower, mint)] = &coredomain.OpenPosition{Follower: follower, Mint: mint, AmountRaw: amount}
}

func (f *fakeLedger) HasOpen(follower string, mint solana.PublicKey) bool {
	p, ok := f.positions[f.key(follower, mint)]
	return ok && p.AmountRaw > 0
}

func (f *fakeLedger) Get(follower string, mint solana.PublicKey) *coredomain.OpenPosition {
	return f.positions[f.key(follower, mint)]
}

func samplePolicy() coredomain.FollowerPolicy {
	return coredomain.FollowerPolicy{FixedLamportsPerBuy: 10_000_000, MaxSlippageBps: 300}
}

func TestPlanner_Buy_NewPosition(t *testing.T) {
	ledger := newFakeLedger()
	p := New(ledger)
	mint := solana.NewWallet().PublicKey()

	class := coredomain.Classification{
		DEX:        coredomain.DEXPumpFunBondingCrv,
		Direction:  coredomain.DirectionBuy,
		InputMint:  coredomain.WrappedSOLMint,
		OutputMint: mint,
	}

	plan, err := p.Plan("alice", samplePolicy(), class)
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, uint64(10_000_000), plan.AmountRaw)
	assert.Len(t, plan.SetupSteps, 1)
	assert.Equal(t, uint32(300), plan.SlippageBps)
}

func TestPlanner_Buy_DroppedWhenPositionAlreadyOpen(t *testing.T) {
	ledger := newFakeLedger()
	mint := solana.NewWallet().PublicKey()
	ledger.set("alice", mint, 500)
	p := New(ledger)

	class := coredomain.Classification{
		Direction:  coredomain.DirectionBuy,
		InputMint:  coredomain.WrappedSOLMint,
		OutputMint: mint,
	}

	plan, err := p.Plan("alice", samplePolicy(), class)
	require.NoError(t, err)
	assert.Nil(t, plan)
}

func TestPlanner_Buy_RejectsNonSOLInput(t *testing.T) {
	ledger := newFakeLedger()
	p := New(ledger)
	mintA := solana.NewWallet().PublicKey()
	mintB := solana.NewWallet().PublicKey()

	class := coredomain.Classification{
		Direction:  coredomain.DirectionBuy,
		InputMint:  mintA,
		OutputMint: mintB,
	}

	_, err := p.Plan("alice", samplePolicy(), class)
	assert.Error(t, err)
}

func TestPlanner_Sell_FullPositionAmount(t *testing.T) {
	ledger := newFakeLedger()
	mint := solana.NewWallet().PublicKey()
	ledger.set("bob", mint, 777)
	p := New(ledger)

	class := coredomain.Classification{
		Direction:  coredomain.DirectionSell,
		InputMint:  mint,
		OutputMint: coredomain.WrappedSOLMint,
	}

	plan, err := p.Plan("bob", samplePolicy(), class)
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, uint64(777), plan.AmountRaw)
	assert.Empty(t, plan.SetupSteps)
}

func TestPlanner_Sell_DroppedWhenNoPosition(t *testing.T) {
	ledger := newFakeLedger()
	p := New(ledger)
	mint := solana.NewWallet().PublicKey()

	class := coredomain.Classification{
		Direction:  coredomain.DirectionSell,
		InputMint:  mint,
		OutputMint: coredomain.WrappedSOLMint,
	}

	plan, err := p.Plan("bob", samplePolicy(), class)
	require.NoError(t, err)
	assert.Nil(t, plan)
}

func TestPlanner_RejectsIdenticalMints(t *testing.T) {
	ledger := newFakeLedger()
	p := New(ledger)
	mint := coredomain.WrappedSOLMint

	class := coredomain.Classification{
		Direction:  coredomain.DirectionBuy,
		InputMint:  mint,
		OutputMint: mint,
	}

	_, err := p.Plan("alice", samplePolicy(), class)
	assert.Error(t, err)
}

func TestPlanner_UsesLeaderSlippageWhenWithinPolicy(t *testing.T) {
	ledger := newFakeLedger()
	p := New(ledger)
	mint := solana.NewWallet().PublicKey()
	leaderSlippage := uint32(150)

	class := coredomain.Classification{
		Direction:         coredomain.DirectionBuy,
		InputMint:         coredomain.WrappedSOLMint,
		OutputMint:        mint,
		LeaderSlippageBps: &leaderSlippage,
	}

	plan, err := p.Plan("alice", samplePolicy(), class)
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, uint32(150), plan.SlippageBps)
}

func TestPlanner_FallsBackToPolicyMaxWhenLeaderSlippageExceedsPolicy(t *testing.T) {
	ledger := newFakeLedger()
	p := New(ledger)
	mint := solana.NewWallet().PublicKey()
	leaderSlippage := uint32(9000)

	class := coredomain.Classification{
		Direction:         coredomain.DirectionBuy,
		InputMint:         coredomain.WrappedSOLMint,
		OutputMint:        mint,
		LeaderSlippageBps: &leaderSlippage,
	}

	plan, err := p.Plan("alice", samplePolicy(), class)
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, uint32(300), plan.SlippageBps)
}

func TestPlanner_RespectsPlatformAllowList(t *testing.T) {
	ledger := newFakeLedger()
	p := New(ledger)
	mint := solana.NewWallet().PublicKey()
	policy := samplePolicy()
	policy.PlatformAllowList = map[coredomain.DEXFamily]bool{coredomain.DEXRaydiumV4: true}

	class := coredomain.Classification{
		DEX:        coredomain.DEXPumpFunBondingCrv,
		Direction:  coredomain.DirectionBuy,
		InputMint:  coredomain.WrappedSOLMint,
		OutputMint: mint,
	}

	plan, err := p.Plan("alice", policy, class)
	require.NoError(t, err)
	assert.Nil(t, plan)
}
