package classify

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/solana-copytrader/engine/internal/coredomain"
)

func pumpFunDirectEvent(leader, mint solana.PublicKey) *coredomain.LeaderTxEvent {
	reg := NewDefaultRegistry()
	pumpFun := solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

	data := make([]byte, pumpFunArgsLen)
	binary.LittleEndian.PutUint64(data[8:16], 1_000_000)   // token_amount
	binary.LittleEndian.PutUint64(data[16:24], 1_000_000_000) // max_sol_cost

	accountKeys := []solana.PublicKey{leader, pumpFun, reg.pumpFunFeeRecipient, mint}

	return &coredomain.LeaderTxEvent{
		Leader:      leader,
		Signature:   solana.Signature{9},
		AccountKeys: accountKeys,
		TopLevel: []coredomain.Instruction{
			{ProgramID: pumpFun, Accounts: accountKeys, Data: data},
		},
		LogMessages: []string{
			"Program " + pumpFun.String() + " invoke [1]",
			"Program log: Instruction: Buy",
		},
		SOLBalances: []coredomain.AccountBalanceDelta{
			{AccountIndex: 0, PreLamports: 2_000_000_000, PostLamports: 1_100_000_000},
		},
		TokenBalances: []coredomain.TokenBalance{
			{AccountIndex: 3, Mint: mint, Owner: leader, PreAmount: 0, PostAmount: 1_000_000},
		},
	}
}

func TestClassifier_PumpFunDirectBuy(t *testing.T) {
	leader := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	c := New(NewDefaultRegistry(), zaptest.NewLogger(t))

	got, err := c.Classify(pumpFunDirectEvent(leader, mint))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, coredomain.DEXPumpFunBondingCrv, got.DEX)
	assert.Equal(t, coredomain.DirectionBuy, got.Direction)
	assert.Equal(t, coredomain.WrappedSOLMint, got.InputMint)
	assert.Equal(t, mint, got.OutputMint)
	assert.Equal(t, uint64(900_000_000), got.LeaderAmountIn)
	require.NotNil(t, got.LeaderSlippageBps)
}

func TestClassifier_RejectsUnrecognizedProgram(t *testing.T) {
	leader := solana.NewWallet().PublicKey()
	c := New(NewDefaultRegistry(), zaptest.NewLogger(t))

	event := &coredomain.LeaderTxEvent{
		Leader:      leader,
		Signature:   solana.Signature{1},
		AccountKeys: []solana.PublicKey{leader, solana.NewWallet().PublicKey()},
	}

	_, err := c.Classify(event)
	assert.Error(t, err)
}

func TestClassifier_RejectsMissingFeeRecipientOnDirectCall(t *testing.T) {
	leader := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	c := New(NewDefaultRegistry(), zaptest.NewLogger(t))

	event := pumpFunDirectEvent(leader, mint)
	// drop the fee-recipient account from the normalized key list
	event.AccountKeys = []solana.PublicKey{leader, event.TopLevel[0].ProgramID, mint}
	event.TopLevel[0].Accounts = event.AccountKeys

	_, err := c.Classify(event)
	assert.Error(t, err)
}

func TestClassifier_RejectsLeaderAbsentFromAccountKeys(t *testing.T) {
	c := New(NewDefaultRegistry(), zaptest.NewLogger(t))
	other := solana.NewWallet().PublicKey()
	pumpFun := solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

	event := &coredomain.LeaderTxEvent{
		Leader:      solana.NewWallet().PublicKey(),
		Signature:   solana.Signature{2},
		AccountKeys: []solana.PublicKey{other, pumpFun},
		TopLevel:    []coredomain.Instruction{{ProgramID: pumpFun}},
	}

	_, err := c.Classify(event)
	assert.Error(t, err)
}

func TestClassifier_CachesVerdictBySignature(t *testing.T) {
	leader := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	c := New(NewDefaultRegistry(), zaptest.NewLogger(t))

	event := pumpFunDirectEvent(leader, mint)
	first, err := c.Classify(event)
	require.NoError(t, err)

	// mutate the event after classification; a cache hit must still
	// return the original verdict rather than re-deriving from the
	// mutated data.
	event.LogMessages = nil
	second, err := c.Classify(event)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	cache := NewCache()
	sig := solana.Signature{5}
	cache.Put(sig, &coredomain.Classification{}, nil)
	cache.entries[sig] = cacheEntry{
		classification: &coredomain.Classification{},
		expiresAt:      time.Now().Add(-time.Second),
	}

	_, ok := cache.Get(sig)
	assert.False(t, ok)
}
