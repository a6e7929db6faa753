package notify

import (
	"context"
	"sync"

	"github.com/gabapcia/walletsync/internal/pkg/logger"
	"github.com/gabapcia/walletsync/internal/pkg/x/chflow"
)

const defaultSinkBufferSize = 32

// Publisher accepts events for the presentation layer.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Sink is a Publisher backed by a buffered channel.
type Sink struct {
	mu     sync.RWMutex
	closed bool
	events chan Event
}

var _ Publisher = (*Sink)(nil)

// Publish blocks until the event is buffered or ctx is done. Events published
// after Close are dropped.
func (s *Sink) Publish(ctx context.Context, e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}

	if !chflow.Send(ctx, s.events, e) {
		logger.Warn(ctx, "event dropped", "event.name", Name(e))
	}
}

// Events is the stream consumed by the presentation layer.
func (s *Sink) Events() <-chan Event {
	return s.events
}

// Close closes the event stream.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

// NewSink returns a Sink buffering up to size events.
func NewSink(size int) *Sink {
	if size <= 0 {
		size = defaultSinkBufferSize
	}
	return &Sink{events: make(chan Event, size)}
}
