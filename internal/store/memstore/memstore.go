// Package memstore is an in-memory store.Store used by tests that need a
// durable-store collaborator without a real Postgres instance.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/solana-copytrader/engine/internal/coredomain"
	"github.com/solana-copytrader/engine/internal/store"
)

type positionKey struct {
	follower string
	mint     solana.PublicKey
}

// Store is a goroutine-safe in-memory fake. Zero value is ready to use.
type Store struct {
	mu         sync.Mutex
	leaders    []coredomain.Leader
	policies   map[string]coredomain.FollowerPolicy
	subs       map[string]coredomain.Subscription
	positions  map[positionKey]coredomain.OpenPosition
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store; use the Seed* helpers to populate it.
func New() *Store {
	return &Store{
		policies:  make(map[string]coredomain.FollowerPolicy),
		subs:      make(map[string]coredomain.Subscription),
		positions: make(map[positionKey]coredomain.OpenPosition),
	}
}

// SeedLeaders replaces the leader set.
func (s *Store) SeedLeaders(leaders ...coredomain.Leader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaders = append([]coredomain.Leader(nil), leaders...)
}

// SeedFollower registers a follower's policy and subscription.
func (s *Store) SeedFollower(id string, policy coredomain.FollowerPolicy, sub coredomain.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[id] = policy
	s.subs[id] = sub
}

func (s *Store) LeaderSet(ctx context.Context) ([]coredomain.Leader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]coredomain.Leader(nil), s.leaders...), nil
}

func (s *Store) FollowerPolicy(ctx context.Context, followerID string) (coredomain.FollowerPolicy, coredomain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policies[followerID], s.subs[followerID], nil
}

func (s *Store) RecordPosition(ctx context.Context, pos coredomain.OpenPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[positionKey{pos.Follower, pos.Mint}] = pos
	return nil
}

func (s *Store) UpdatePosition(ctx context.Context, follower string, mint solana.PublicKey, newAmountRaw uint64, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := positionKey{follower, mint}
	if newAmountRaw == 0 {
		delete(s.positions, key)
		return nil
	}
	pos := s.positions[key]
	pos.AmountRaw = newAmountRaw
	s.positions[key] = pos
	return nil
}

func (s *Store) LoadPositions(ctx context.Context) ([]coredomain.OpenPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]coredomain.OpenPosition, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out, nil
}
