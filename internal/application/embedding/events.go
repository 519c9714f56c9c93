package embedding

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/embedscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/embedscope/pkg/types/common"
)

// Lifecycle event types.
const (
	EventFetchIssued      = "fetch.issued"
	EventFetchResolved    = "fetch.resolved"
	EventFetchFailed      = "fetch.failed"
	EventFetchStale       = "fetch.stale"
	EventSelectionChanged = "selection.changed"
)

// LifecycleEvent is published for every fetch transition and selection
// change.  The aggregate id is the embedding id.
type LifecycleEvent struct {
	common.BaseEvent
	Generation     uint64 `json:"generation,omitempty"`
	Outcome        string `json:"outcome,omitempty"`
	Error          string `json:"error,omitempty"`
	Points         int    `json:"points,omitempty"`
	Clusters       int    `json:"clusters,omitempty"`
	DurationMillis int64  `json:"duration_ms,omitempty"`
	Interaction    string `json:"interaction,omitempty"`
}

const (
	eventBuffer         = 256
	eventPublishTimeout = 5 * time.Second
)

// EventStream delivers events to an EventPublisher from a single goroutine so
// callers never block on the publisher.  Events are dropped when the buffer
// is full.  A nil *EventStream discards everything.
type EventStream struct {
	pub    EventPublisher
	logger logging.Logger

	mu     sync.Mutex
	closed bool
	ch     chan LifecycleEvent
	done   chan struct{}
}

// NewEventStream starts a stream publishing to pub.  A nil pub yields a nil
// stream.
func NewEventStream(pub EventPublisher, logger logging.Logger) *EventStream {
	if pub == nil {
		return nil
	}
	s := &EventStream{
		pub:    pub,
		logger: logging.OrNop(logger),
		ch:     make(chan LifecycleEvent, eventBuffer),
		done:   make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *EventStream) loop() {
	defer close(s.done)
	for e := range s.ch {
		ctx, cancel := context.WithTimeout(context.Background(), eventPublishTimeout)
		if err := s.pub.PublishEvent(ctx, e.AggregateID(), e); err != nil {
			s.logger.Warn("failed to publish lifecycle event",
				logging.String("event_type", e.EventType()),
				logging.Err(err))
		}
		cancel()
	}
}

// Emit queues e for publishing.
func (s *EventStream) Emit(e LifecycleEvent) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- e:
	default:
		s.logger.Warn("lifecycle event buffer full, dropping event", logging.String("event_type", e.EventType()))
	}
}

// Close stops accepting events and waits until the buffered ones are
// delivered.
func (s *EventStream) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	s.mu.Unlock()
	<-s.done
}
