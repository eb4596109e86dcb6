// Package store defines the durable-persistence interface the core reads
// leader/follower configuration from and write-throughs position state
// to. spec.md §1 treats durable storage as an external collaborator behind
// a narrow interface; this package is that interface plus two
// implementations (a Postgres adapter and an in-memory test fake).
package store

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/solana-copytrader/engine/internal/coredomain"
)

// Store is the external collaborator the Position Ledger write-throughs
// to and the Scheduler reads leader/follower configuration from at
// startup and on refresh.
type Store interface {
	// LeaderSet returns every leader the core currently observes.
	LeaderSet(ctx context.Context) ([]coredomain.Leader, error)

	// FollowerPolicy returns the named follower's current sizing/risk
	// policy and leader subscription.
	FollowerPolicy(ctx context.Context, followerID string) (coredomain.FollowerPolicy, coredomain.Subscription, error)

	// RecordPosition persists a newly opened position.
	RecordPosition(ctx context.Context, pos coredomain.OpenPosition) error

	// UpdatePosition persists a position's new amount after a sell,
	// or its removal when amount reaches zero.
	UpdatePosition(ctx context.Context, follower string, mint solana.PublicKey, newAmountRaw uint64, updatedAt time.Time) error

	// LoadPositions returns every open position, used to rebuild the
	// Position Ledger's in-memory view at startup (spec.md §4.4's "log
	// replay at startup", narrowed here to "replay from the durable
	// snapshot" since write-ahead replay itself is out of core scope).
	LoadPositions(ctx context.Context) ([]coredomain.OpenPosition, error)
}
