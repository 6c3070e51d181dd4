// Package events provides the mission's broadcast event sink: a bounded,
// multi-producer, multi-consumer channel with non-blocking sends. A
// lagging consumer observes a DroppedEvent marker rather than blocking a
// producer — suspension at this boundary is explicitly disallowed by
// spec.md §5.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Type tags the event variants the core emits.
type Type string

const (
	AgentPhase        Type = "agent_phase"
	AgentTree         Type = "agent_tree"
	Progress          Type = "progress"
	LlmCall           Type = "llm_call"
	ToolCall          Type = "tool_call"
	ToolResult        Type = "tool_result"
	MissionComplete   Type = "mission_complete"
	FallbackEvent     Type = "fallback_event"
	MissionStatusHint Type = "mission_status_hint"
)

// Event is one tagged broadcast record.
type Event struct {
	Type     Type
	AgentID  string
	ParentID string
	Seq      uint64
	At       time.Time
	Payload  any
}

// Sink is a bounded MPMC broadcast channel. Each subscriber gets its own
// buffered channel; TrySend never blocks — if a subscriber's buffer is
// full, the event is dropped for that subscriber and a single
// DroppedEvent marker is delivered ahead of its next event instead of
// stalling the producer.
type Sink struct {
	mu          sync.Mutex
	subscribers map[int]*subscriber
	nextID      int
	bufferSize  int
	seq         atomic.Uint64
}

type subscriber struct {
	ch      chan Event
	dropped atomic.Uint64
}

// NewSink creates a Sink with the given per-subscriber buffer size.
func NewSink(bufferSize int) *Sink {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Sink{subscribers: make(map[int]*subscriber), bufferSize: bufferSize}
}

// Subscribe registers a new consumer and returns its channel plus an
// unsubscribe function.
func (s *Sink) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	sub := &subscriber{ch: make(chan Event, s.bufferSize)}
	s.subscribers[id] = sub

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			close(sub.ch)
			delete(s.subscribers, id)
		}
	}
	return sub.ch, unsubscribe
}

// NextSeq returns the next monotonic per-sink sequence number, for
// producers that want to stamp events for ordering reconstruction.
func (s *Sink) NextSeq() uint64 {
	return s.seq.Add(1)
}

// TrySend broadcasts an event to every subscriber without blocking. A
// subscriber whose buffer is full has its event dropped; the drop is
// accounted for and the next successful event to that subscriber is
// preceded by a synthetic "dropped-N" marker.
func (s *Sink) TrySend(e Event) {
	s.mu.Lock()
	subs := make([]*subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.trySend(e)
	}
}

// trySend delivers e to the subscriber, first flushing a pending dropped
// marker if earlier sends to this subscriber were dropped.
func (sub *subscriber) trySend(e Event) {
	if n := sub.dropped.Load(); n > 0 {
		select {
		case sub.ch <- Event{Type: Progress, Payload: DroppedEvent{Count: n}}:
			sub.dropped.Store(0)
		default:
			sub.dropped.Add(1)
			return
		}
	}
	select {
	case sub.ch <- e:
	default:
		sub.dropped.Add(1)
	}
}

// DroppedEvent is the synthetic marker a consumer may consult to learn how
// many events were dropped on its behalf due to a full buffer.
type DroppedEvent struct {
	AgentID string
	Count   uint64
}
