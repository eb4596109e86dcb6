package chain

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Blockhash is the value latest_blockhash returns: the hash itself plus the
// block height past which it can no longer land.
type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}

// blockhashCache refreshes on a fixed TTL or on demand when stale; every
// follower's submission in the same slot window reuses one RPC round trip
// instead of each dispatch task fetching its own.
type blockhashCache struct {
	ttl time.Duration

	mu      sync.Mutex
	value   Blockhash
	fetched time.Time
}

func newBlockhashCache(ttl time.Duration) *blockhashCache {
	return &blockhashCache{ttl: ttl}
}

func (c *blockhashCache) get(ctx context.Context, fetch func(context.Context) (Blockhash, error)) (Blockhash, error) {
	c.mu.Lock()
	if time.Since(c.fetched) < c.ttl {
		v := c.value
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := fetch(ctx)
	if err != nil {
		return Blockhash{}, err
	}

	c.mu.Lock()
	c.value = v
	c.fetched = time.Now()
	c.mu.Unlock()
	return v, nil
}

// LatestBlockhash returns the cached blockhash, refreshing it against the
// pool first if the cache is older than its TTL.
func (c *Client) LatestBlockhash(ctx context.Context) (Blockhash, error) {
	return c.blockhashes.get(ctx, func(ctx context.Context) (Blockhash, error) {
		var out Blockhash
		err := c.pool.do(ctx, "GetLatestBlockhash", func(ctx context.Context, rc *rpc.Client) error {
			res, err := rc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
			if err != nil {
				return err
			}
			out = Blockhash{Hash: res.Value.Blockhash, LastValidBlockHeight: res.Value.LastValidBlockHeight}
			return nil
		})
		return out, err
	})
}
