package types

import (
	"io"
	"sync"
)

// StreamEvent is one canonical streaming event. A well-formed stream is
// zero or more non-terminal events followed by exactly one terminal event
// (Stop, Final, or StreamError), after which the stream ends.
type StreamEvent interface {
	streamEvent()
	// Terminal reports whether this event ends the stream.
	Terminal() bool
}

// Delta carries an incremental piece of assistant text.
type Delta struct {
	Text string
}

// Usage carries token counts when the provider reports them mid-stream.
type Usage struct {
	PromptTokens     *uint32
	CompletionTokens *uint32
}

// Stop terminates a stream normally. Reason is nil when the provider
// closed the stream without reporting a finish reason.
type Stop struct {
	Reason *StopReason
}

// Final carries a fully assembled response, when the bridge produced one.
type Final struct {
	Response *ChatResponse
}

// StreamError terminates a stream abnormally.
type StreamError struct {
	Err error
}

func (Delta) streamEvent()       {}
func (Usage) streamEvent()       {}
func (Stop) streamEvent()        {}
func (Final) streamEvent()       {}
func (StreamError) streamEvent() {}

func (Delta) Terminal() bool       { return false }
func (Usage) Terminal() bool       { return false }
func (Stop) Terminal() bool        { return true }
func (Final) Terminal() bool       { return true }
func (StreamError) Terminal() bool { return true }

// EventStream delivers canonical stream events to a single consumer.
// Recv blocks for the next event and returns io.EOF once the stream has
// delivered its terminal event and closed. Close releases the upstream
// connection and may be called concurrently with Recv, and more than once.
type EventStream struct {
	events <-chan StreamEvent

	mu      sync.Mutex
	closed  bool
	release func()
}

// NewEventStream wraps an event channel. release (optional) is invoked
// exactly once, on the first Close.
func NewEventStream(events <-chan StreamEvent, release func()) *EventStream {
	return &EventStream{events: events, release: release}
}

// Recv returns the next event, or io.EOF when the stream is exhausted.
func (s *EventStream) Recv() (StreamEvent, error) {
	ev, ok := <-s.events
	if !ok {
		return nil, io.EOF
	}
	return ev, nil
}

// Close releases the upstream connection. The producer goroutine notices
// the closed upstream and finishes the event channel, so a Recv in flight
// still drains buffered events before io.EOF.
func (s *EventStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.release != nil {
		s.release()
	}
	return nil
}
