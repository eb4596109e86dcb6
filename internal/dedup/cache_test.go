package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func staticBlockhash(h solana.Hash) func(context.Context) (solana.Hash, error) {
	return func(context.Context) (solana.Hash, error) { return h, nil }
}

func TestCache_SignatureDedup(t *testing.T) {
	hashA := solana.Hash{1}
	c := New(context.Background(), time.Hour, staticBlockhash(hashA), zaptest.NewLogger(t))
	defer c.Close()

	sig := solana.Signature{1, 2, 3}
	assert.False(t, c.SeenSignature(sig))
	c.MarkSignature(sig, hashA)
	assert.True(t, c.SeenSignature(sig))
}

func TestCache_DispatchDedupIsPerFollower(t *testing.T) {
	hashA := solana.Hash{1}
	c := New(context.Background(), time.Hour, staticBlockhash(hashA), zaptest.NewLogger(t))
	defer c.Close()

	sig := solana.Signature{1, 2, 3}
	keyA := DispatchKey{Follower: "alice", Signature: sig}
	keyB := DispatchKey{Follower: "bob", Signature: sig}

	c.MarkDispatch(keyA, hashA)
	assert.True(t, c.SeenDispatch(keyA))
	assert.False(t, c.SeenDispatch(keyB))
}

func TestCache_FailedSignatureIsNotRetried(t *testing.T) {
	hashA := solana.Hash{1}
	c := New(context.Background(), time.Hour, staticBlockhash(hashA), zaptest.NewLogger(t))
	defer c.Close()

	sig := solana.Signature{9}
	assert.False(t, c.Failed(sig))
	c.MarkFailed(sig, hashA)
	assert.True(t, c.Failed(sig))
}

func TestCache_SweepEvictsEntriesFromAnExpiredBlockhash(t *testing.T) {
	hashA := solana.Hash{1}
	hashB := solana.Hash{2}

	current := hashA
	c := New(context.Background(), 20*time.Millisecond, func(context.Context) (solana.Hash, error) {
		return current, nil
	}, zaptest.NewLogger(t))
	defer c.Close()

	sig := solana.Signature{5}
	c.MarkSignature(sig, hashA)
	require.True(t, c.SeenSignature(sig))

	current = hashB
	require.Eventually(t, func() bool {
		return !c.SeenSignature(sig)
	}, time.Second, 10*time.Millisecond)
}
