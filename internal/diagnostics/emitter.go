package diagnostics

import (
	"maps"
	"sync"
	"time"
)

// Sink receives every event published through an Emitter. Handle is called
// synchronously and in Seq order; implementations must not block for long.
type Sink interface {
	Handle(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Handle calls f(e).
func (f SinkFunc) Handle(e Event) { f(e) }

// Emitter assigns sequence numbers and timestamps to events and fans them out
// to its sinks. It is safe for concurrent use; emission is serialized so that
// sinks observe events in Seq order.
type Emitter struct {
	mu    sync.Mutex
	seq   uint64
	sinks []Sink
	now   func() time.Time
}

// NewEmitter creates an Emitter delivering to sinks.
func NewEmitter(sinks ...Sink) *Emitter {
	return &Emitter{
		sinks: append([]Sink(nil), sinks...),
		now:   time.Now,
	}
}

// AddSink registers another sink. Events emitted before the call are not
// replayed.
func (e *Emitter) AddSink(s Sink) {
	if s == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, s)
}

// Emit stamps ev with the next sequence number (and the current time when
// Timestamp is zero), delivers it to every sink and returns the stamped copy.
// A nil Emitter drops the event.
func (e *Emitter) Emit(ev Event) Event {
	if e == nil {
		return ev
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	ev.Seq = e.seq
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	if ev.Metadata != nil {
		ev.Metadata = maps.Clone(ev.Metadata)
	}
	for _, s := range e.sinks {
		s.Handle(ev)
	}
	return ev
}

// Seq returns the sequence number of the most recently emitted event.
func (e *Emitter) Seq() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq
}

// ChannelSink forwards events to a buffered channel. When the buffer is full
// the event is dropped and counted, so a slow reader never stalls a run.
type ChannelSink struct {
	ch      chan Event
	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewChannelSink creates a ChannelSink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 256
	}
	return &ChannelSink{ch: make(chan Event, buffer)}
}

// Events returns the receive side of the channel.
func (c *ChannelSink) Events() <-chan Event { return c.ch }

// Handle forwards e without blocking.
func (c *ChannelSink) Handle(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- e:
	default:
		c.dropped++
	}
}

// Dropped returns the number of events discarded because the buffer was full.
func (c *ChannelSink) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Close closes the channel. Later events are ignored.
func (c *ChannelSink) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}
