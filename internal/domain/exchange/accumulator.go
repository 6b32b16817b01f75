package exchange

import (
	"bytes"
	"errors"
	"net/http"
	"sync"
)

// OutputKind discriminates output events emitted by the runtime.
type OutputKind int

const (
	// OutputStart carries the response status and headers. Must precede
	// any OutputChunk event.
	OutputStart OutputKind = iota
	// OutputChunk carries body bytes. A chunk with More=false is the
	// completion marker for the exchange.
	OutputChunk
)

// OutputEvent is one discrete event from the runtime's output stream.
type OutputEvent struct {
	Kind    OutputKind
	Status  int
	Headers []HeaderPair
	Body    []byte
	More    bool
}

var (
	// ErrChunkBeforeStart is returned when a body chunk arrives before the
	// response-started event.
	ErrChunkBeforeStart = errors.New("exchange: body chunk before response start")
	// ErrAlreadyStarted is returned on a second response-started event.
	ErrAlreadyStarted = errors.New("exchange: response already started")
	// ErrCompleted is returned for any event sent after the completion
	// marker has been observed.
	ErrCompleted = errors.New("exchange: response already completed")
)

// Accumulator collects the runtime's output events for one exchange: status
// code (default 200), header list and body bytes. The bridge drains it into
// the final HTTP response once the completion marker has been observed.
// Single-use; never reused across exchanges.
type Accumulator struct {
	mu      sync.Mutex
	status  int
	headers []HeaderPair
	body    bytes.Buffer
	started bool

	complete chan struct{}
}

// NewAccumulator creates an empty accumulator with the default success
// status code.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		status:   http.StatusOK,
		complete: make(chan struct{}),
	}
}

// Send feeds one output event into the accumulator. The runtime must send
// OutputStart before the first OutputChunk; the first chunk with More=false
// completes the exchange, after which further sends fail with ErrCompleted.
func (a *Accumulator) Send(ev OutputEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	select {
	case <-a.complete:
		return ErrCompleted
	default:
	}

	switch ev.Kind {
	case OutputStart:
		if a.started {
			return ErrAlreadyStarted
		}
		a.started = true
		a.status = ev.Status
		a.headers = append(a.headers[:0], ev.Headers...)
	case OutputChunk:
		if !a.started {
			return ErrChunkBeforeStart
		}
		a.body.Write(ev.Body)
		if !ev.More {
			close(a.complete)
		}
	}
	return nil
}

// Complete is closed once the final body chunk has been observed. The bridge
// must not assemble a response before this fires (or its timeout does).
func (a *Accumulator) Complete() <-chan struct{} {
	return a.complete
}

// Response returns the accumulated status, headers and body. The returned
// slices are copies; the accumulator may be discarded afterwards.
func (a *Accumulator) Response() (status int, headers []HeaderPair, body []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	body = make([]byte, a.body.Len())
	copy(body, a.body.Bytes())
	headers = make([]HeaderPair, len(a.headers))
	copy(headers, a.headers)
	return a.status, headers, body
}
