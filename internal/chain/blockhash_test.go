package chain

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockhashCache_RefetchesAfterTTL(t *testing.T) {
	c := newBlockhashCache(10 * time.Millisecond)

	calls := 0
	fetch := func(ctx context.Context) (Blockhash, error) {
		calls++
		return Blockhash{Hash: solana.Hash{byte(calls)}, LastValidBlockHeight: uint64(calls)}, nil
	}

	first, err := c.get(context.Background(), fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	second, err := c.get(context.Background(), fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "within TTL should serve cached value without refetching")
	assert.Equal(t, first, second)

	time.Sleep(15 * time.Millisecond)

	third, err := c.get(context.Background(), fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "past TTL should refetch")
	assert.NotEqual(t, first, third)
}

func TestBlockhashCache_PropagatesFetchError(t *testing.T) {
	c := newBlockhashCache(time.Second)
	_, err := c.get(context.Background(), func(ctx context.Context) (Blockhash, error) {
		return Blockhash{}, assertErr
	})
	assert.ErrorIs(t, err, assertErr)
}

var assertErr = &sentinelErr{"boom"}

type sentinelErr struct{ msg string }

func (e *sentinelErr) Error() string { return e.msg }
