// Package chain is the Chain Client: a round-robin pool of Solana RPC
// endpoints that exposes the narrow surface the rest of the core needs
// (latest blockhash, account fetch, ALT expansion, raw submission,
// confirmation) without ever retrying on the caller's behalf.
package chain

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

const (
	// consecutiveErrorsToCool is the number of back-to-back failures on one
	// endpoint before it is pulled out of rotation (spec.md §4.1).
	consecutiveErrorsToCool = 5

	// coolingPeriod is how long a tripped endpoint sits out before it is
	// eligible for selection again.
	coolingPeriod = 30 * time.Second
)

// endpoint is one pool member: an RPC client plus the health bookkeeping
// the pool's round-robin selection reads.
type endpoint struct {
	url    string
	rpc    *rpc.Client
	limit  ratelimit.Limiter

	mu           sync.Mutex
	consecErrors int
	coolUntil    time.Time
}

func (e *endpoint) healthy(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return now.After(e.coolUntil)
}

func (e *endpoint) recordSuccess() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.consecErrors = 0
}

func (e *endpoint) recordError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.consecErrors++
	if e.consecErrors >= consecutiveErrorsToCool {
		e.coolUntil = time.Now().Add(coolingPeriod)
		e.consecErrors = 0
	}
}

// Pool is the round-robin endpoint selector. The selection policy favors
// liveness over least-latency: any healthy endpoint is as good as another.
type Pool struct {
	mu        sync.Mutex
	endpoints []*endpoint
	next      int
	logger    *zap.Logger
}

// NewPool builds a pool from a list of RPC URLs, each throttled to
// callsPerSecond to avoid tripping a provider's own rate limiter.
func NewPool(urls []string, callsPerSecond int, logger *zap.Logger) *Pool {
	eps := make([]*endpoint, 0, len(urls))
	for _, u := range urls {
		eps = append(eps, &endpoint{
			url:   u,
			rpc:   rpc.New(u),
			limit: ratelimit.New(callsPerSecond),
		})
	}
	return &Pool{endpoints: eps, logger: logger.Named("chain.pool")}
}

// pick round-robins to the next healthy endpoint, or returns nil if every
// endpoint is currently cooling down.
func (p *Pool) pick() *endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.endpoints) == 0 {
		return nil
	}

	now := time.Now()
	start := p.next
	for {
		ep := p.endpoints[p.next]
		p.next = (p.next + 1) % len(p.endpoints)
		if ep.healthy(now) {
			return ep
		}
		if p.next == start {
			return nil
		}
	}
}

// do runs operation against the next healthy endpoint, throttling the call
// and updating that endpoint's health bookkeeping. It never retries; a
// failure is returned to the caller wrapped with the endpoint it hit.
func (p *Pool) do(ctx context.Context, method string, operation func(ctx context.Context, c *rpc.Client) error) error {
	ep := p.pick()
	if ep == nil {
		return ErrNoHealthyEndpoint
	}

	ep.limit.Take()
	err := operation(ctx, ep.rpc)
	if err != nil {
		ep.recordError()
		p.logger.Debug("endpoint call failed",
			zap.String("endpoint", ep.url), zap.String("method", method), zap.Error(err))
		return newError(err, ep.url, method)
	}
	ep.recordSuccess()
	return nil
}
