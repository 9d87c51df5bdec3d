package event

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/Iron-Ham/stagehand/internal/logging"
)

// subscription represents a registered event handler.
type subscription struct {
	id        uint64
	eventType string
	scope     string
	owner     string
	handler   Handler
}

// accepts reports whether the subscription should receive msg.
func (s subscription) accepts(msg Message) bool {
	if !msg.Targeted() {
		return true
	}
	return s.scope == msg.Target
}

// Bus is a synchronous, scoped pub-sub event bus.
// It allows components to communicate without direct references to each other.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]subscription // eventType -> subscriptions
	nextID        atomic.Uint64
	logger        *logging.Logger
}

// NewBus creates a new event bus. Handler panics are logged to stderr until a
// logger is attached with WithLogger.
func NewBus() *Bus {
	logger, _ := logging.NewLogger("", logging.LevelWarn)
	return &Bus{
		subscriptions: make(map[string][]subscription),
		logger:        logger.With("subsystem", "event_bus"),
	}
}

// WithLogger replaces the logger used to report handler panics.
func (b *Bus) WithLogger(logger *logging.Logger) *Bus {
	if logger != nil {
		b.mu.Lock()
		b.logger = logger.With("subsystem", "event_bus")
		b.mu.Unlock()
	}
	return b
}

// Subscribe registers a handler for a specific event type and returns the
// function that removes it.
func (b *Bus) Subscribe(eventType string, handler Handler, opts ...SubscribeOption) Unsubscribe {
	sub := subscription{
		id:        b.nextID.Add(1),
		eventType: eventType,
		handler:   handler,
	}
	for _, opt := range opts {
		opt(&sub)
	}

	b.mu.Lock()
	b.subscriptions[eventType] = append(b.subscriptions[eventType], sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(eventType, sub.id) })
	}
}

// SubscribeAll registers a handler for all event types.
func (b *Bus) SubscribeAll(handler Handler, opts ...SubscribeOption) Unsubscribe {
	return b.Subscribe(Wildcard, handler, opts...)
}

// remove deletes the subscription with the given id.
func (b *Bus) remove(eventType string, id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscriptions[eventType]
	for i, sub := range subs {
		if sub.id == id {
			// Copy so snapshots taken by in-flight publishes stay intact
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(b.subscriptions, eventType)
			} else {
				b.subscriptions[eventType] = next
			}
			return true
		}
	}
	return false
}

// Emit publishes a message built from its arguments and returns the number of
// handlers it was delivered to. An empty target broadcasts to every
// subscriber of eventType; a non-empty target reaches only subscribers
// registered with that scope.
func (b *Bus) Emit(eventType string, payload any, target, source string) int {
	return b.Publish(NewMessage(eventType, payload, target, source))
}

// Publish dispatches msg to all matching handlers.
// Specific handlers (subscribed to this event type) are called first,
// followed by wildcard handlers. Within each group, handlers are called in
// registration order. A panicking handler is logged and skipped.
func (b *Bus) Publish(msg Message) int {
	b.mu.RLock()
	specificSubs := b.subscriptions[msg.Type]
	var wildcardSubs []subscription
	if msg.Type != Wildcard {
		wildcardSubs = b.subscriptions[Wildcard]
	}
	logger := b.logger
	b.mu.RUnlock()

	delivered := 0
	for _, group := range [][]subscription{specificSubs, wildcardSubs} {
		for _, sub := range group {
			if !sub.accepts(msg) {
				continue
			}
			b.safeCall(logger, sub, msg)
			delivered++
		}
	}
	return delivered
}

// safeCall invokes a handler and recovers from any panics.
func (b *Bus) safeCall(logger *logging.Logger, sub subscription, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event handler panicked",
				"event_type", msg.Type,
				"owner", sub.owner,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	sub.handler(msg)
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = make(map[string][]subscription)
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscriptions {
		count += len(subs)
	}
	return count
}

// OwnedCount returns the number of active subscriptions registered with
// OwnedBy(owner).
func (b *Bus) OwnedCount(owner string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscriptions {
		for _, sub := range subs {
			if sub.owner == owner {
				count++
			}
		}
	}
	return count
}
