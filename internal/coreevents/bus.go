package coreevents

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Bus is the in-memory, non-blocking event bus a dispatch task publishes
// onto. Publish never blocks the caller: a full buffer drops the event and
// logs a warning rather than stalling a follower's dispatch task, per the
// isolation rule in spec.md §7.
type Bus struct {
	mu         sync.RWMutex
	handlers   map[EventType]map[string]Handler
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	eventChan  chan Event
	bufferSize int
}

// NewBus starts the bus's drain goroutine immediately; callers must call
// Shutdown to stop it.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		handlers:   make(map[EventType]map[string]Handler),
		logger:     logger.Named("event_bus"),
		ctx:        ctx,
		cancel:     cancel,
		eventChan:  make(chan Event, bufferSize),
		bufferSize: bufferSize,
	}

	b.wg.Add(1)
	go b.processEvents()

	return b
}

// Subscribe registers a handler for one event type and returns a handle
// to remove it later.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]Handler)
	}
	b.handlers[eventType][id] = handler

	b.logger.Debug("handler subscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))

	return &subscription{id: id, eventBus: b, typ: eventType}
}

// SubscribeFunc is a convenience wrapper for subscribing with a bare function.
func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// Publish enqueues event for asynchronous delivery. It returns an error
// instead of blocking when the bus is shutting down or its buffer is full;
// callers on the hot path should log-and-continue rather than propagate it
// up through the dispatch task.
func (b *Bus) Publish(event Event) error {
	select {
	case <-b.ctx.Done():
		return fmt.Errorf("event bus is shutting down")
	case b.eventChan <- event:
		return nil
	default:
		b.logger.Warn("event channel full, dropping event",
			zap.String("event_type", string(event.Type())))
		return fmt.Errorf("event channel full")
	}
}

// PublishSync delivers event to every current subscriber of its type on
// the calling goroutine, collecting handler errors.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := b.handlers[event.Type()]
	handlersCopy := make(map[string]Handler, len(handlers))
	for id, h := range handlers {
		handlersCopy[id] = h
	}
	b.mu.RUnlock()

	if len(handlersCopy) == 0 {
		return nil
	}

	var errs []error
	for id, handler := range handlersCopy {
		if err := handler.Handle(ctx, event); err != nil {
			b.logger.Error("handler error",
				zap.String("event_type", string(event.Type())),
				zap.String("handler_id", id),
				zap.Error(err))
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("handlers failed: %v", errs)
	}
	return nil
}

func (b *Bus) processEvents() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			for {
				select {
				case event := <-b.eventChan:
					_ = b.PublishSync(context.Background(), event)
				default:
					return
				}
			}
		case event := <-b.eventChan:
			b.wg.Add(1)
			go func(e Event) {
				defer b.wg.Done()
				if err := b.PublishSync(b.ctx, e); err != nil {
					b.logger.Error("failed to process event",
						zap.String("event_type", string(e.Type())),
						zap.Error(err))
				}
			}(event)
		}
	}
}

func (b *Bus) unsubscribe(id string, eventType EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if handlers, ok := b.handlers[eventType]; ok {
		delete(handlers, id)
		if len(handlers) == 0 {
			delete(b.handlers, eventType)
		}
	}

	b.logger.Debug("handler unsubscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))
}

// Shutdown signals the drain goroutine to stop, waits for in-flight
// handlers to finish, and returns ctx.Err() if that takes too long.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.logger.Info("shutting down event bus")
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("event bus shutdown complete")
		return nil
	case <-ctx.Done():
		b.logger.Warn("event bus shutdown timeout")
		return ctx.Err()
	}
}

// Stats reports buffer occupancy and subscriber counts for the Metrics
// component to surface.
func (b *Bus) Stats() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()

	handlerCounts := make(map[string]int, len(b.handlers))
	for eventType, handlers := range b.handlers {
		handlerCounts[string(eventType)] = len(handlers)
	}

	return map[string]any{
		"buffer_size":       b.bufferSize,
		"pending_events":    len(b.eventChan),
		"event_types":       len(b.handlers),
		"handlers_per_type": handlerCounts,
	}
}
