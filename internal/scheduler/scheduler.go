// Package scheduler is the Scheduler/Supervisor (spec.md §4.9 / §5): the
// task topology that turns the Ingest stream into per-follower dispatch
// tasks. One long-lived stream task owns the upstream subscription and
// never blocks on downstream work; each normalized event spawns one
// classification pass and, on a copyable verdict, one dispatch task per
// subscribed follower. Background periodic tasks refresh the leader set
// and follower policies. Grounded on internal/bot/worker_monitor.go's
// errgroup fan-out and internal/bot/worker.go's ctx-done worker-loop shape,
// generalized from a fixed worker pool draining one task channel into a
// per-event fan-out bounded by a conc pool.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/solana-copytrader/engine/internal/builders"
	"github.com/solana-copytrader/engine/internal/builders/aggregator"
	"github.com/solana-copytrader/engine/internal/chain"
	"github.com/solana-copytrader/engine/internal/classify"
	"github.com/solana-copytrader/engine/internal/coredomain"
	"github.com/solana-copytrader/engine/internal/coreevents"
	"github.com/solana-copytrader/engine/internal/dedup"
	"github.com/solana-copytrader/engine/internal/ingest"
	"github.com/solana-copytrader/engine/internal/ledger"
	"github.com/solana-copytrader/engine/internal/planner"
	"github.com/solana-copytrader/engine/internal/store"
	"github.com/solana-copytrader/engine/internal/submit"
)

const (
	// leaderRefreshInterval matches spec.md §5's "leader-set refresh every
	// few minutes".
	leaderRefreshInterval = 5 * time.Minute

	// followerRefreshInterval keeps each follower's sizing/risk policy and
	// leader subscription current without a database round trip on every
	// dispatch.
	followerRefreshInterval = 5 * time.Minute

	// dispatchGracePeriod is spec.md §5's "bounded grace period (e.g., 10s)"
	// in-flight dispatch tasks get before cancellation at shutdown.
	dispatchGracePeriod = 10 * time.Second

	// maxConcurrentDispatches bounds the per-follower dispatch fan-out so a
	// burst of leader activity across many followers can't spawn an
	// unbounded number of concurrent RPC submissions; the Chain Client's
	// own per-endpoint rate limiter governs real throughput beneath this.
	maxConcurrentDispatches = 64

	rawUpdateBufferSize = 256

	refreshTimeout = 10 * time.Second
)

// ChainAccess is the narrow Chain Client surface the Scheduler calls
// directly (ingest normalization, builder account probing, dedup
// blockhash stamping, post-buy balance reads). It is structurally a
// subset of *chain.Client, satisfied without adaptation.
type ChainAccess interface {
	FetchAccount(ctx context.Context, pubkey solana.PublicKey) ([]byte, error)
	FetchALT(ctx context.Context, key solana.PublicKey) ([]solana.PublicKey, error)
	LatestBlockhash(ctx context.Context) (chain.Blockhash, error)
	FetchTokenBalance(ctx context.Context, ata solana.PublicKey) (uint64, error)
}

var _ ChainAccess = (*chain.Client)(nil)

// Deps bundles every collaborator the Scheduler wires together. Each field
// is constructed and owned by the caller; the Scheduler only orchestrates.
type Deps struct {
	Source     ingest.Source
	Chain      ChainAccess
	Classifier *classify.Classifier
	Planner    *planner.Planner
	Ledger     *ledger.Ledger
	Dedup      *dedup.Cache
	Submitter  *submit.Submitter
	Registry   *builders.Registry
	Aggregator *aggregator.Client
	Store      store.Store
	Bus        *coreevents.Bus
}

type followerState struct {
	signer       coredomain.Signer
	policy       coredomain.FollowerPolicy
	subscription coredomain.Subscription
}

type followerSnapshot struct {
	id     string
	signer coredomain.Signer
	policy coredomain.FollowerPolicy
}

// Scheduler owns the stream task, the per-event dispatch fan-out, and the
// background refresh loops.
type Scheduler struct {
	deps   Deps
	logger *zap.Logger

	mu        sync.RWMutex
	leaders   []coredomain.Leader
	followers map[string]*followerState

	leadersChanged chan struct{}
	dispatchPool   *pool.Pool
}

// New builds a Scheduler, loading the initial leader set and every named
// follower's policy/subscription from deps.Store.
func New(ctx context.Context, deps Deps, signers map[string]coredomain.Signer, logger *zap.Logger) (*Scheduler, error) {
	leaders, err := deps.Store.LeaderSet(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduler: initial leader set: %w", err)
	}

	followers := make(map[string]*followerState, len(signers))
	for id, signer := range signers {
		policy, sub, err := deps.Store.FollowerPolicy(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("scheduler: initial policy for follower %s: %w", id, err)
		}
		followers[id] = &followerState{signer: signer, policy: policy, subscription: sub}
	}

	return &Scheduler{
		deps:           deps,
		logger:         logger.Named("scheduler"),
		leaders:        leaders,
		followers:      followers,
		leadersChanged: make(chan struct{}, 1),
		dispatchPool:   pool.New().WithMaxGoroutines(maxConcurrentDispatches),
	}, nil
}

// Run blocks until ctx is cancelled. On cancellation it stops accepting new
// stream events, gives in-flight dispatch tasks dispatchGracePeriod to
// finish confirmation, then cancels anything still running and returns.
func (s *Scheduler) Run(ctx context.Context) error {
	rawUpdates := make(chan ingest.RawUpdate, rawUpdateBufferSize)

	dispatchCtx, cancelDispatch := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelDispatch()

	var bg conc.WaitGroup
	bg.Go(func() { s.runStream(ctx, rawUpdates) })
	bg.Go(func() { s.refreshLoop(ctx, leaderRefreshInterval, s.refreshLeaders) })
	bg.Go(func() { s.refreshLoop(ctx, followerRefreshInterval, s.refreshFollowers) })
	bg.Go(func() { s.consumeLoop(ctx, dispatchCtx, rawUpdates) })

	<-ctx.Done()
	s.logger.Info("shutdown initiated, draining in-flight dispatch tasks")

	dispatchDone := make(chan struct{})
	go func() {
		s.dispatchPool.Wait()
		close(dispatchDone)
	}()

	select {
	case <-dispatchDone:
		s.logger.Info("all in-flight dispatch tasks completed")
	case <-time.After(dispatchGracePeriod):
		s.logger.Warn("dispatch grace period elapsed with tasks still in flight")
	}
	cancelDispatch()

	bg.Wait()
	return ctx.Err()
}

// runStream owns the upstream subscription, re-subscribing on leader-set
// changes. A failed Subscribe call is logged and retried immediately; the
// Source itself is responsible for its own reconnect-with-backoff.
func (s *Scheduler) runStream(ctx context.Context, out chan<- ingest.RawUpdate) {
	for ctx.Err() == nil {
		subCtx, cancel := context.WithCancel(ctx)
		leaders := s.currentLeaders()

		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := s.deps.Source.Subscribe(subCtx, leaders, out); err != nil && subCtx.Err() == nil {
				s.logger.Warn("ingest subscribe exited, restarting", zap.Error(err))
			}
		}()

		select {
		case <-ctx.Done():
			cancel()
			<-done
			return
		case <-s.leadersChanged:
			s.logger.Info("leader set changed, re-subscribing")
			cancel()
			<-done
		case <-done:
			cancel()
		}
	}
}

// consumeLoop stops reading when ctx is cancelled; each update, and the
// dispatch tasks it spawns, runs under dispatchCtx, which Run cancels only
// once the shutdown grace period is over.
func (s *Scheduler) consumeLoop(ctx, dispatchCtx context.Context, rawUpdates <-chan ingest.RawUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-rawUpdates:
			s.handleRawUpdate(dispatchCtx, raw)
		}
	}
}

// handleRawUpdate normalizes and classifies one update, then spawns one
// dispatch task per subscribed follower. Unrecognized leaders, malformed
// updates, and rejected classifications are dropped without retry, per
// spec.md §7's error taxonomy.
func (s *Scheduler) handleRawUpdate(ctx context.Context, raw ingest.RawUpdate) {
	leaderPK, ok := leaderFromRaw(raw)
	if !ok || !s.isKnownLeader(leaderPK) {
		return
	}

	event, ok, err := ingest.Normalize(ctx, s.deps.Chain, leaderPK, raw)
	if err != nil {
		s.logger.Warn("normalize failed", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	if s.deps.Dedup.SeenSignature(event.Signature) || s.deps.Dedup.Failed(event.Signature) {
		return
	}

	class, err := s.deps.Classifier.Classify(event)
	if err != nil {
		var rej *classify.Rejection
		if errors.As(err, &rej) {
			s.publish(&coreevents.ClassificationRejectedEvent{
				BaseEvent:       stamp(coreevents.ClassificationRejected),
				LeaderSignature: event.Signature.String(),
				Reason:          rej.Reason,
			})
		} else {
			s.logger.Error("classification failed", zap.Error(err))
		}
		return
	}

	bh, err := s.deps.Chain.LatestBlockhash(ctx)
	if err != nil {
		s.logger.Warn("fetch blockhash for dedup stamp failed", zap.Error(err))
		return
	}
	s.deps.Dedup.MarkSignature(event.Signature, bh.Hash)

	for _, fs := range s.subscribedFollowers(leaderPK) {
		fs := fs
		class := *class
		s.dispatchPool.Go(func() {
			s.dispatchToFollower(ctx, fs, class, bh.Hash)
		})
	}
}

// dispatchToFollower plans, builds, submits, and records the outcome of
// one follower's copy of one leader event. No error here reaches any other
// follower's dispatch task (spec.md §7).
func (s *Scheduler) dispatchToFollower(ctx context.Context, fs followerSnapshot, class coredomain.Classification, blockhash solana.Hash) {
	plan, err := s.deps.Planner.Plan(fs.id, fs.policy, class)
	if err != nil {
		s.logger.Warn("plan rejected",
			zap.String("follower", fs.id), zap.String("leader_sig", class.LeaderSignature.String()), zap.Error(err))
		s.publish(&coreevents.PlanDroppedEvent{
			BaseEvent:       stamp(coreevents.PlanDropped),
			FollowerID:      fs.id,
			LeaderSignature: class.LeaderSignature.String(),
			Reason:          err.Error(),
		})
		return
	}
	if plan == nil {
		return
	}

	key := dedup.DispatchKey{Follower: fs.id, Signature: class.LeaderSignature}
	if s.deps.Dedup.SeenDispatch(key) {
		return
	}
	s.deps.Dedup.MarkDispatch(key, blockhash)

	var res submit.Result
	if builder, ok := s.deps.Registry.Resolve(class.DEX); ok {
		res = s.dispatchNative(ctx, fs, *plan, builder)
	} else {
		res = s.dispatchAggregator(ctx, fs, *plan)
	}

	s.recordOutcome(ctx, fs, class, *plan, blockhash, res)
}

func (s *Scheduler) dispatchNative(ctx context.Context, fs followerSnapshot, plan coredomain.CopyPlan, builder builders.Builder) submit.Result {
	swapIxs, err := builder.Build(ctx, s.deps.Chain, fs.signer.PublicKey(), plan)
	if err != nil {
		s.logger.Error("builder failed",
			zap.String("follower", fs.id), zap.String("dex", string(plan.Classification.DEX)), zap.Error(err))
		return submit.Result{Outcome: submit.OutcomeFailed, Err: err}
	}

	instructions := make([]solana.Instruction, 0, len(plan.SetupSteps)+len(swapIxs))
	owner := fs.signer.PublicKey()
	for _, step := range plan.SetupSteps {
		ix, err := builders.EnsureATA(ctx, s.deps.Chain, owner, owner, step.Mint)
		if err != nil {
			return submit.Result{Outcome: submit.OutcomeFailed, Err: fmt.Errorf("ensure ATA for %s: %w", step.Mint, err)}
		}
		if ix != nil {
			instructions = append(instructions, *ix)
		}
	}
	instructions = append(instructions, swapIxs...)

	return s.deps.Submitter.Dispatch(ctx, fs.signer, plan, fs.policy, instructions, nil)
}

func (s *Scheduler) dispatchAggregator(ctx context.Context, fs followerSnapshot, plan coredomain.CopyPlan) submit.Result {
	rawTxs, err := s.deps.Aggregator.Fetch(ctx, fs.signer.PublicKey(), plan)
	if err != nil {
		s.logger.Error("aggregator fetch failed", zap.String("follower", fs.id), zap.Error(err))
		return submit.Result{Outcome: submit.OutcomeFailed, Err: err}
	}
	return s.deps.Submitter.DispatchPrebuilt(ctx, fs.signer, plan, rawTxs)
}

func (s *Scheduler) recordOutcome(ctx context.Context, fs followerSnapshot, class coredomain.Classification, plan coredomain.CopyPlan, blockhash solana.Hash, res submit.Result) {
	switch res.Outcome {
	case submit.OutcomeConfirmed:
		s.publish(&coreevents.DispatchConfirmedEvent{
			BaseEvent:       stamp(coreevents.DispatchConfirmed),
			FollowerID:      fs.id,
			LeaderSignature: class.LeaderSignature.String(),
			FollowerSig:     res.Signature.String(),
		})
		switch class.Direction {
		case coredomain.DirectionBuy:
			amount, err := s.recordBuy(ctx, fs.id, plan, fs.signer.PublicKey(), res.Signature)
			if err != nil {
				s.logger.Error("ledger record-buy failed", zap.String("follower", fs.id), zap.Error(err))
			}
			s.publish(&coreevents.PositionOpenedEvent{
				BaseEvent: stamp(coreevents.PositionOpened), FollowerID: fs.id, Mint: class.OutputMint.String(), AmountRaw: amount,
			})
		case coredomain.DirectionSell:
			s.deps.Ledger.ApplySell(fs.id, class.InputMint, plan.AmountRaw, 0)
			s.publish(&coreevents.PositionClosedEvent{
				BaseEvent: stamp(coreevents.PositionClosed), FollowerID: fs.id, Mint: class.InputMint.String(),
			})
		}
	case submit.OutcomeConfirmedButEmpty:
		s.deps.Dedup.MarkFailed(class.LeaderSignature, blockhash)
		s.publish(&coreevents.DispatchFailedEvent{
			BaseEvent: stamp(coreevents.DispatchFailed), FollowerID: fs.id, LeaderSignature: class.LeaderSignature.String(),
			Reason: "confirmed but output balance still empty",
		})
	case submit.OutcomeFailed:
		s.deps.Dedup.MarkFailed(class.LeaderSignature, blockhash)
		errMsg := ""
		if res.Err != nil {
			errMsg = res.Err.Error()
		}
		s.publish(&coreevents.DispatchFailedEvent{
			BaseEvent: stamp(coreevents.DispatchFailed), FollowerID: fs.id, LeaderSignature: class.LeaderSignature.String(),
			Reason: "submission failed", Err: errMsg,
		})
	}
}

func (s *Scheduler) recordBuy(ctx context.Context, followerID string, plan coredomain.CopyPlan, owner solana.PublicKey, sig solana.Signature) (uint64, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, plan.Classification.OutputMint)
	if err != nil {
		return 0, err
	}
	balCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	amount, err := s.deps.Chain.FetchTokenBalance(balCtx, ata)
	if err != nil {
		return 0, err
	}
	s.deps.Ledger.RecordBuy(followerID, plan.Classification.OutputMint, amount, plan.AmountRaw, sig)
	return amount, nil
}

func (s *Scheduler) publish(event coreevents.Event) {
	if s.deps.Bus == nil {
		return
	}
	if err := s.deps.Bus.Publish(event); err != nil {
		s.logger.Debug("event bus publish dropped", zap.Error(err))
	}
}

func stamp(t coreevents.EventType) coreevents.BaseEvent {
	return coreevents.BaseEvent{EventType: t, EventTime: time.Now()}
}

// refreshLoop runs refresh on every tick of a ticker with period every,
// stopping when ctx is cancelled.
func (s *Scheduler) refreshLoop(ctx context.Context, every time.Duration, refresh func(context.Context)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh(ctx)
		}
	}
}

func (s *Scheduler) refreshLeaders(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()
	leaders, err := s.deps.Store.LeaderSet(refreshCtx)
	if err != nil {
		s.logger.Warn("leader set refresh failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	changed := leaderSetChanged(s.leaders, leaders)
	s.leaders = leaders
	s.mu.Unlock()

	if changed {
		select {
		case s.leadersChanged <- struct{}{}:
		default:
		}
	}
}

func (s *Scheduler) refreshFollowers(ctx context.Context) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.followers))
	for id := range s.followers {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		refreshCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
		policy, sub, err := s.deps.Store.FollowerPolicy(refreshCtx, id)
		cancel()
		if err != nil {
			s.logger.Warn("follower policy refresh failed", zap.String("follower", id), zap.Error(err))
			continue
		}

		s.mu.Lock()
		if fs, ok := s.followers[id]; ok {
			fs.policy = policy
			fs.subscription = sub
		}
		s.mu.Unlock()
	}
}

func (s *Scheduler) currentLeaders() []solana.PublicKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]solana.PublicKey, len(s.leaders))
	for i, l := range s.leaders {
		out[i] = l.PublicKey
	}
	return out
}

func (s *Scheduler) isKnownLeader(pk solana.PublicKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.leaders {
		if l.PublicKey.Equals(pk) {
			return true
		}
	}
	return false
}

func (s *Scheduler) subscribedFollowers(leader solana.PublicKey) []followerSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]followerSnapshot, 0, len(s.followers))
	for id, fs := range s.followers {
		if fs.subscription.HasLeader(leader) {
			out = append(out, followerSnapshot{id: id, signer: fs.signer, policy: fs.policy})
		}
	}
	return out
}

func leaderSetChanged(old, updated []coredomain.Leader) bool {
	if len(old) != len(updated) {
		return true
	}
	oldSet := make(map[solana.PublicKey]struct{}, len(old))
	for _, l := range old {
		oldSet[l.PublicKey] = struct{}{}
	}
	for _, l := range updated {
		if _, ok := oldSet[l.PublicKey]; !ok {
			return true
		}
	}
	return false
}

// leaderFromRaw returns the update's signer account, conventionally index
// 0 of a Solana transaction's static account keys. A subscription already
// filters the stream to transactions mentioning a known leader; the
// signer/fee-payer position is what LeaderAccountIndex later resolves
// against once the leader identity itself is known.
func leaderFromRaw(raw ingest.RawUpdate) (solana.PublicKey, bool) {
	if len(raw.AccountKeys) == 0 {
		return solana.PublicKey{}, false
	}
	pk, err := solana.PublicKeyFromBase58(raw.AccountKeys[0])
	if err != nil {
		return solana.PublicKey{}, false
	}
	return pk, true
}
