package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/solana-copytrader/engine/internal/builders"
	"github.com/solana-copytrader/engine/internal/chain"
	"github.com/solana-copytrader/engine/internal/classify"
	"github.com/solana-copytrader/engine/internal/coredomain"
	"github.com/solana-copytrader/engine/internal/coreevents"
	"github.com/solana-copytrader/engine/internal/dedup"
	"github.com/solana-copytrader/engine/internal/ingest"
	"github.com/solana-copytrader/engine/internal/ledger"
	"github.com/solana-copytrader/engine/internal/planner"
	"github.com/solana-copytrader/engine/internal/store/memstore"
	"github.com/solana-copytrader/engine/internal/submit"
)

// fakeSource never produces an update on its own; tests that need a raw
// event drive handleRawUpdate directly instead of going through Subscribe.
type fakeSource struct{}

func (fakeSource) Subscribe(ctx context.Context, leaders []solana.PublicKey, out chan<- ingest.RawUpdate) error {
	<-ctx.Done()
	return ctx.Err()
}

// fakeChain satisfies both scheduler.ChainAccess and submit.Chain so it can
// back a real Submitter inside the Scheduler under test.
type fakeChain struct {
	ataExists      bool
	confirmOutcome chain.ConfirmOutcome
	tokenBalance   uint64
}

func (c *fakeChain) FetchAccount(ctx context.Context, pubkey solana.PublicKey) ([]byte, error) {
	if c.ataExists {
		return []byte{1}, nil
	}
	return nil, nil
}

func (c *fakeChain) FetchALT(ctx context.Context, key solana.PublicKey) ([]solana.PublicKey, error) {
	return nil, nil
}

func (c *fakeChain) LatestBlockhash(ctx context.Context) (chain.Blockhash, error) {
	return chain.Blockhash{Hash: solana.Hash{1}, LastValidBlockHeight: 1000}, nil
}

func (c *fakeChain) FetchTokenBalance(ctx context.Context, ata solana.PublicKey) (uint64, error) {
	return c.tokenBalance, nil
}

func (c *fakeChain) SubmitRaw(ctx context.Context, tx *solana.Transaction, skipPreflight bool) (solana.Signature, error) {
	return solana.Signature{9}, nil
}

func (c *fakeChain) Confirm(ctx context.Context, signature solana.Signature, lastValidBlockHeight uint64) (chain.ConfirmOutcome, error) {
	return c.confirmOutcome, nil
}

func (c *fakeChain) RecentPrioritizationFees(ctx context.Context, accounts []solana.PublicKey) ([]*rpc.GetRecentPrioritizationFeesResult, error) {
	return nil, nil
}

type fakeSigner struct {
	key solana.PrivateKey
}

func newFakeSigner() fakeSigner {
	return fakeSigner{key: solana.NewWallet().PrivateKey}
}

func (s fakeSigner) PublicKey() solana.PublicKey { return s.key.PublicKey() }

func (s fakeSigner) Sign(message []byte) (solana.Signature, error) {
	return s.key.Sign(message)
}

type stubBuilder struct {
	built []solana.Instruction
}

func (b stubBuilder) Build(ctx context.Context, chain builders.AccountFetcher, signer solana.PublicKey, plan coredomain.CopyPlan) ([]solana.Instruction, error) {
	return b.built, nil
}

func newTestScheduler(t *testing.T, fc *fakeChain, signer fakeSigner, followerID string, policy coredomain.FollowerPolicy, sub coredomain.Subscription) (*Scheduler, *memstore.Store, *coreevents.Bus) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	st := memstore.New()
	st.SeedFollower(followerID, policy, sub)

	ldg, err := ledger.New(context.Background(), st, logger)
	require.NoError(t, err)
	t.Cleanup(ldg.Close)

	dc := dedup.New(context.Background(), time.Minute, fc.LatestBlockhash, logger)
	t.Cleanup(dc.Close)

	registry := builders.NewRegistry().With(coredomain.DEXRaydiumV4, stubBuilder{built: []solana.Instruction{}})

	bus := coreevents.NewBus(logger, 16)

	deps := Deps{
		Source:     fakeSource{},
		Chain:      fc,
		Classifier: classify.New(classify.NewDefaultRegistry(), logger),
		Planner:    planner.New(ldg),
		Ledger:     ldg,
		Dedup:      dc,
		Submitter:  submit.New(fc, logger),
		Registry:   registry,
		Aggregator: nil,
		Store:      st,
		Bus:        bus,
	}

	signers := map[string]coredomain.Signer{followerID: signer}
	s, err := New(context.Background(), deps, signers, logger)
	require.NoError(t, err)
	return s, st, bus
}

func TestLeaderSetChanged(t *testing.T) {
	a := coredomain.Leader{PublicKey: solana.NewWallet().PublicKey()}
	b := coredomain.Leader{PublicKey: solana.NewWallet().PublicKey()}

	assert.False(t, leaderSetChanged([]coredomain.Leader{a}, []coredomain.Leader{a}))
	assert.True(t, leaderSetChanged([]coredomain.Leader{a}, []coredomain.Leader{a, b}))
	assert.True(t, leaderSetChanged([]coredomain.Leader{a}, []coredomain.Leader{b}))
	assert.False(t, leaderSetChanged(nil, nil))
}

func TestLeaderFromRaw(t *testing.T) {
	pk := solana.NewWallet().PublicKey()

	got, ok := leaderFromRaw(ingest.RawUpdate{AccountKeys: []string{pk.String()}})
	require.True(t, ok)
	assert.True(t, got.Equals(pk))

	_, ok = leaderFromRaw(ingest.RawUpdate{})
	assert.False(t, ok)

	_, ok = leaderFromRaw(ingest.RawUpdate{AccountKeys: []string{"not-a-pubkey"}})
	assert.False(t, ok)
}

func TestScheduler_IsKnownLeaderAndSubscribedFollowers(t *testing.T) {
	leader := coredomain.Leader{PublicKey: solana.NewWallet().PublicKey()}
	other := solana.NewWallet().PublicKey()
	signer := newFakeSigner()

	sub := coredomain.Subscription{Leaders: map[solana.PublicKey]struct{}{leader.PublicKey: {}}}
	s, _, _ := newTestScheduler(t, &fakeChain{}, signer, "follower-1", coredomain.FollowerPolicy{}, sub)
	s.leaders = []coredomain.Leader{leader}

	assert.True(t, s.isKnownLeader(leader.PublicKey))
	assert.False(t, s.isKnownLeader(other))

	subscribed := s.subscribedFollowers(leader.PublicKey)
	require.Len(t, subscribed, 1)
	assert.Equal(t, "follower-1", subscribed[0].id)

	assert.Empty(t, s.subscribedFollowers(other))
}

func TestScheduler_DispatchToFollower_BuyConfirmed_RecordsPositionAndPublishes(t *testing.T) {
	followerID := "follower-1"
	signer := newFakeSigner()
	leader := solana.NewWallet().PublicKey()
	outputMint := solana.NewWallet().PublicKey()

	fc := &fakeChain{ataExists: true, confirmOutcome: chain.ConfirmSuccess, tokenBalance: 500}
	sub := coredomain.Subscription{Leaders: map[solana.PublicKey]struct{}{leader: {}}}
	policy := coredomain.FollowerPolicy{FixedLamportsPerBuy: 1_000_000}

	s, _, bus := newTestScheduler(t, fc, signer, followerID, policy, sub)

	var confirmed *coreevents.DispatchConfirmedEvent
	var opened *coreevents.PositionOpenedEvent
	done := make(chan struct{}, 2)
	bus.SubscribeFunc(coreevents.DispatchConfirmed, func(ctx context.Context, e coreevents.Event) error {
		confirmed = e.(*coreevents.DispatchConfirmedEvent)
		done <- struct{}{}
		return nil
	})
	bus.SubscribeFunc(coreevents.PositionOpened, func(ctx context.Context, e coreevents.Event) error {
		opened = e.(*coreevents.PositionOpenedEvent)
		done <- struct{}{}
		return nil
	})

	class := coredomain.Classification{
		LeaderSignature: solana.Signature{1, 2, 3},
		DEX:             coredomain.DEXRaydiumV4,
		Direction:       coredomain.DirectionBuy,
		InputMint:       coredomain.WrappedSOLMint,
		OutputMint:      outputMint,
	}
	fs := followerSnapshot{id: followerID, signer: signer, policy: policy}

	s.dispatchToFollower(context.Background(), fs, class, solana.Hash{1})

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for published events")
		}
	}

	require.NotNil(t, confirmed)
	assert.Equal(t, followerID, confirmed.FollowerID)

	require.NotNil(t, opened)
	assert.Equal(t, followerID, opened.FollowerID)
	assert.Equal(t, uint64(500), opened.AmountRaw)

	assert.True(t, s.deps.Ledger.HasOpen(followerID, outputMint))
}

func TestScheduler_DispatchToFollower_ConfirmedButEmptyMarksFailed(t *testing.T) {
	followerID := "follower-1"
	signer := newFakeSigner()
	leader := solana.NewWallet().PublicKey()
	outputMint := solana.NewWallet().PublicKey()

	fc := &fakeChain{ataExists: true, confirmOutcome: chain.ConfirmSuccess, tokenBalance: 0}
	sub := coredomain.Subscription{Leaders: map[solana.PublicKey]struct{}{leader: {}}}
	policy := coredomain.FollowerPolicy{FixedLamportsPerBuy: 1_000_000}

	s, _, bus := newTestScheduler(t, fc, signer, followerID, policy, sub)

	done := make(chan struct{}, 1)
	var failed *coreevents.DispatchFailedEvent
	bus.SubscribeFunc(coreevents.DispatchFailed, func(ctx context.Context, e coreevents.Event) error {
		failed = e.(*coreevents.DispatchFailedEvent)
		done <- struct{}{}
		return nil
	})

	class := coredomain.Classification{
		LeaderSignature: solana.Signature{4, 5, 6},
		DEX:             coredomain.DEXRaydiumV4,
		Direction:       coredomain.DirectionBuy,
		InputMint:       coredomain.WrappedSOLMint,
		OutputMint:      outputMint,
	}
	fs := followerSnapshot{id: followerID, signer: signer, policy: policy}

	s.dispatchToFollower(context.Background(), fs, class, solana.Hash{1})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for DispatchFailed event")
	}

	require.NotNil(t, failed)
	assert.False(t, s.deps.Ledger.HasOpen(followerID, outputMint))
	assert.True(t, s.deps.Dedup.Failed(class.LeaderSignature))
}
