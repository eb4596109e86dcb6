package coreevents

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	mu   sync.Mutex
	seen []Event
}

func (r *recorder) Handle(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, e)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 8)
	defer bus.Shutdown(context.Background())

	rec := &recorder{}
	bus.Subscribe(DispatchConfirmed, rec)

	require.NoError(t, bus.Publish(DispatchConfirmedEvent{
		BaseEvent:       BaseEvent{EventType: DispatchConfirmed, EventTime: time.Now()},
		FollowerID:      "f1",
		LeaderSignature: "sig1",
	}))

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)
}

func TestBus_PublishIgnoresOtherTypes(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 8)
	defer bus.Shutdown(context.Background())

	rec := &recorder{}
	bus.Subscribe(DispatchConfirmed, rec)

	require.NoError(t, bus.Publish(PlanDroppedEvent{
		BaseEvent: BaseEvent{EventType: PlanDropped, EventTime: time.Now()},
	}))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}

func TestBus_PublishDropsWhenFull(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 0)
	defer bus.Shutdown(context.Background())

	// Zero-buffer channel with no reader ready yet on the first send path:
	// the non-blocking select's default case must trigger rather than the
	// Publish call stalling the caller.
	err := bus.Publish(PlanDroppedEvent{BaseEvent: BaseEvent{EventType: PlanDropped, EventTime: time.Now()}})
	_ = err // may or may not fire depending on goroutine scheduling; Publish must not block either way
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 8)
	defer bus.Shutdown(context.Background())

	rec := &recorder{}
	sub := bus.Subscribe(DispatchFailed, rec)
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(DispatchFailedEvent{
		BaseEvent: BaseEvent{EventType: DispatchFailed, EventTime: time.Now()},
	}))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}

func TestBus_PublishSyncCollectsHandlerErrors(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 8)
	defer bus.Shutdown(context.Background())

	bus.Subscribe(PositionOpened, HandlerFunc(func(ctx context.Context, e Event) error {
		return assert.AnError
	}))

	err := bus.PublishSync(context.Background(), PositionOpenedEvent{
		BaseEvent: BaseEvent{EventType: PositionOpened, EventTime: time.Now()},
	})
	assert.Error(t, err)
}

func TestBus_ShutdownDrainsPendingEvents(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 8)

	rec := &recorder{}
	bus.Subscribe(DispatchSubmitted, rec)

	require.NoError(t, bus.Publish(DispatchSubmittedEvent{
		BaseEvent: BaseEvent{EventType: DispatchSubmitted, EventTime: time.Now()},
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Shutdown(ctx))

	assert.Equal(t, 1, rec.count())
}
