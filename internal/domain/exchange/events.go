package exchange

import "sync"

// InputKind discriminates input events delivered to the runtime.
type InputKind int

const (
	// InputBody carries the complete request body. Emitted at most once
	// per exchange.
	InputBody InputKind = iota
	// InputDisconnect signals that the client sent its one message and
	// went silent. Every read after the body event reports this.
	InputDisconnect
)

// InputEvent is one discrete event from the input source.
type InputEvent struct {
	Kind InputKind
	Body []byte
}

// BodySource yields the buffered request body exactly once, then reports a
// disconnect forever. The bridge synthesizes the full body up front, so
// there is no chunking: one body event, then silence.
type BodySource struct {
	mu        sync.Mutex
	body      []byte
	delivered bool
}

// NewBodySource creates a single-use source over the given body bytes.
func NewBodySource(body []byte) *BodySource {
	return &BodySource{body: body}
}

// Next returns the next input event. Safe for concurrent use; exactly one
// caller ever observes the body event.
func (s *BodySource) Next() InputEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delivered {
		return InputEvent{Kind: InputDisconnect}
	}
	s.delivered = true
	return InputEvent{Kind: InputBody, Body: s.body}
}

// Delivered reports whether the body event has been consumed.
func (s *BodySource) Delivered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered
}
