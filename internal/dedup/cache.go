// Package dedup implements the Dedup & Fail Cache (spec.md §4.8): a
// blockhash-epoch-bounded record of which leader signatures have already
// been classified and which (follower, signature) pairs have already been
// dispatched to the Submitter, plus a separate record of signatures that
// failed on-chain so the Scheduler never retries them.
//
// Grounded on the teacher's internal/blockchain/solbc/rpc/types.go
// metrics struct (an interior-mutable counter guarded by its own mutex,
// owned by the thing that updates it) generalized from a single counter
// to a blockhash-stamped set with a periodic sweep.
package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// DispatchKey is the finer of the two Dedup keys: a specific follower's
// copy of a specific leader signature.
type DispatchKey struct {
	Follower  string
	Signature solana.Signature
}

// Cache holds the Dedup set (by signature, and by follower+signature) and
// the Fail set (by signature), each entry stamped with the blockhash seen
// at insertion so a periodic sweep can evict anything from an expired
// blockhash epoch.
type Cache struct {
	mu         sync.RWMutex
	bySig      map[solana.Signature]solana.Hash
	byDispatch map[DispatchKey]solana.Hash
	failed     map[solana.Signature]solana.Hash

	logger *zap.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Cache and starts its sweeper, which runs every sweepEvery
// and evicts any entry whose stored blockhash no longer matches
// currentBlockhash().
func New(ctx context.Context, sweepEvery time.Duration, currentBlockhash func(context.Context) (solana.Hash, error), logger *zap.Logger) *Cache {
	cctx, cancel := context.WithCancel(ctx)
	c := &Cache{
		bySig:      make(map[solana.Signature]solana.Hash),
		byDispatch: make(map[DispatchKey]solana.Hash),
		failed:     make(map[solana.Signature]solana.Hash),
		logger:     logger.Named("dedup"),
		cancel:     cancel,
	}
	c.wg.Add(1)
	go c.sweepLoop(cctx, sweepEvery, currentBlockhash)
	return c
}

// SeenSignature reports whether sig has already been classified.
func (c *Cache) SeenSignature(sig solana.Signature) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.bySig[sig]
	return ok
}

// MarkSignature records sig as classified at blockhash.
func (c *Cache) MarkSignature(sig solana.Signature, blockhash solana.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bySig[sig] = blockhash
}

// SeenDispatch reports whether (follower, sig) has already been dispatched
// to the Submitter. The Scheduler checks and marks this before submission,
// per spec.md §5's cancellation discipline: the entry exists before the
// transaction does, so a cancelled-after-submit dispatch task is never
// retried into a duplicate send.
func (c *Cache) SeenDispatch(key DispatchKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byDispatch[key]
	return ok
}

// MarkDispatch records (follower, sig) as dispatched at blockhash.
func (c *Cache) MarkDispatch(key DispatchKey, blockhash solana.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byDispatch[key] = blockhash
}

// Failed reports whether sig is known to have failed on-chain.
func (c *Cache) Failed(sig solana.Signature) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.failed[sig]
	return ok
}

// MarkFailed records sig as failed at blockhash, per the error-handling
// table's "do not retry the same leader signature".
func (c *Cache) MarkFailed(sig solana.Signature, blockhash solana.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed[sig] = blockhash
}

func (c *Cache) sweepLoop(ctx context.Context, every time.Duration, currentBlockhash func(context.Context) (solana.Hash, error)) {
	defer c.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hash, err := currentBlockhash(ctx)
			if err != nil {
				c.logger.Debug("sweep: skipping, could not fetch current blockhash", zap.Error(err))
				continue
			}
			c.sweep(hash)
		}
	}
}

func (c *Cache) sweep(current solana.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for sig, hash := range c.bySig {
		if hash != current {
			delete(c.bySig, sig)
			evicted++
		}
	}
	for key, hash := range c.byDispatch {
		if hash != current {
			delete(c.byDispatch, key)
			evicted++
		}
	}
	for sig, hash := range c.failed {
		if hash != current {
			delete(c.failed, sig)
			evicted++
		}
	}
	if evicted > 0 {
		c.logger.Debug("sweep: evicted stale entries", zap.Int("count", evicted))
	}
}

// Close stops the sweeper.
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
}
