// Package ledger is the Position Ledger (spec.md §4.4): the in-memory,
// per-follower-sharded view of open positions that the Copy Planner
// consults on every dispatch. The in-memory view is authoritative for the
// hot path; writes are mirrored to a durable store.Store via an async task
// so no dispatch ever blocks on a database round trip.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/solana-copytrader/engine/internal/coredomain"
	"github.com/solana-copytrader/engine/internal/store"
)

// writeBufferSize bounds the async write-through queue. A full buffer drops
// the incoming write's durable mirror, not the in-memory update —
// matching coreevents.Bus's drop-on-full Publish discipline for
// non-critical-path work.
const writeBufferSize = 1024

type shard struct {
	mu        sync.RWMutex
	positions map[solana.PublicKey]coredomain.OpenPosition
}

func newShard() *shard {
	return &shard{positions: make(map[solana.PublicKey]coredomain.OpenPosition)}
}

type writeThrough struct {
	record *coredomain.OpenPosition // non-nil for record_buy
	update *updateWrite             // non-nil for apply_sell
}

type updateWrite struct {
	follower     string
	mint         solana.PublicKey
	newAmountRaw uint64
	updatedAt    time.Time
}

// Ledger is the Position Ledger. All writes for a given follower are
// serialized by that follower's shard lock; reads take only a read lock and
// never block behind the async durable write.
type Ledger struct {
	mu     sync.RWMutex
	shards map[string]*shard

	store  store.Store
	writes chan writeThrough
	logger *zap.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New constructs a Ledger backed by durable, populated synchronously from
// durable.LoadPositions before it returns. The caller should call Close on shutdown to drain
// the write-through worker.
func New(ctx context.Context, durable store.Store, logger *zap.Logger) (*Ledger, error) {
	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	positions, err := durable.LoadPositions(loadCtx)
	if err != nil {
		return nil, err
	}

	workerCtx, workerCancel := context.WithCancel(ctx)
	l := &Ledger{
		shards: make(map[string]*shard),
		store:  durable,
		writes: make(chan writeThrough, writeBufferSize),
		logger: logger,
		cancel: workerCancel,
	}
	for _, p := range positions {
		l.shardFor(p.Follower).positions[p.Mint] = p
	}

	l.wg.Add(1)
	go l.drainWrites(workerCtx)
	return l, nil
}

func (l *Ledger) shardFor(follower string) *shard {
	l.mu.RLock()
	s, ok := l.shards[follower]
	l.mu.RUnlock()
	if ok {
		return s
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.shards[follower]; ok {
		return s
	}
	s = newShard()
	l.shards[follower] = s
	return s
}

// HasOpen reports whether follower currently holds a non-zero position in
// mint. Lock-free with respect to other readers.
func (l *Ledger) HasOpen(follower string, mint solana.PublicKey) bool {
	s := l.shardFor(follower)
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[mint]
	return ok && pos.AmountRaw > 0
}

// Get returns the follower's current position in mint, or nil if absent or
// closed.
func (l *Ledger) Get(follower string, mint solana.PublicKey) *coredomain.OpenPosition {
	s := l.shardFor(follower)
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[mint]
	if !ok || pos.AmountRaw == 0 {
		return nil
	}
	clone := pos
	return &clone
}

// RecordBuy opens (or replaces) a follower's position in mint. Serialized
// per follower by the shard lock; the durable write-through is enqueued
// without blocking the caller.
func (l *Ledger) RecordBuy(follower string, mint solana.PublicKey, rawAmount, solSpent uint64, buySignature solana.Signature) {
	pos := coredomain.OpenPosition{
		Follower:     follower,
		Mint:         mint,
		AmountRaw:    rawAmount,
		SOLSpentRaw:  solSpent,
		BuySignature: buySignature,
		OpenedAt:     time.Now(),
	}

	s := l.shardFor(follower)
	s.mu.Lock()
	s.positions[mint] = pos
	s.mu.Unlock()

	l.enqueueWrite(writeThrough{record: &pos})
}

// ApplySell reduces a follower's position by rawAmountSold. If the
// resulting amount is zero the position is closed. solReceived is currently
// unused by the in-memory view (no realized-PnL tracking in this pass) but
// is accepted to keep the operation's signature matching spec.md and to
// leave room for it without another interface change.
func (l *Ledger) ApplySell(follower string, mint solana.PublicKey, rawAmountSold, solReceived uint64) {
	_ = solReceived

	s := l.shardFor(follower)
	s.mu.Lock()
	pos, ok := s.positions[mint]
	if !ok {
		s.mu.Unlock()
		return
	}
	var newAmount uint64
	if rawAmountSold >= pos.AmountRaw {
		newAmount = 0
	} else {
		newAmount = pos.AmountRaw - rawAmountSold
	}
	if newAmount == 0 {
		delete(s.positions, mint)
	} else {
		pos.AmountRaw = newAmount
		s.positions[mint] = pos
	}
	s.mu.Unlock()

	l.enqueueWrite(writeThrough{update: &updateWrite{
		follower:     follower,
		mint:         mint,
		newAmountRaw: newAmount,
		updatedAt:    time.Now(),
	}})
}

func (l *Ledger) enqueueWrite(w writeThrough) {
	select {
	case l.writes <- w:
	default:
		l.logger.Warn("ledger write-through queue full, dropping durable write", zap.String("follower", writeFollower(w)))
	}
}

func writeFollower(w writeThrough) string {
	if w.record != nil {
		return w.record.Follower
	}
	if w.update != nil {
		return w.update.follower
	}
	return ""
}

func (l *Ledger) drainWrites(ctx context.Context) {
	defer l.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case w := <-l.writes:
			l.applyWrite(ctx, w)
		}
	}
}

func (l *Ledger) applyWrite(ctx context.Context, w writeThrough) {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var err error
	switch {
	case w.record != nil:
		err = l.store.RecordPosition(writeCtx, *w.record)
	case w.update != nil:
		err = l.store.UpdatePosition(writeCtx, w.update.follower, w.update.mint, w.update.newAmountRaw, w.update.updatedAt)
	}
	if err != nil {
		l.logger.Error("position ledger write-through failed", zap.Error(err))
	}
}

// Close stops the write-through worker and waits for the in-flight write,
// if any, to finish.
func (l *Ledger) Close() {
	l.cancel()
	l.wg.Wait()
}
