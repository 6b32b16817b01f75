// Package runtime owns the process-wide handle to the protocol engine. The
// engine is started lazily on the first exchange and stays started for the
// life of the process; the handle guarantees the startup procedure never
// runs concurrently and completes successfully exactly once.
package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/stockpile-hq/stockpile/internal/domain/exchange"
)

// StartFunc runs the engine's startup procedure and returns the started
// engine. It is invoked at most once at a time.
type StartFunc func(ctx context.Context) (exchange.Engine, error)

type state int

const (
	stateUninitialized state = iota
	stateStarting
	stateStarted
)

// Handle is the lifecycle-guarded shared engine reference. There is no
// teardown transition: the design is intentionally stateless and
// process-lifetime.
type Handle struct {
	start StartFunc

	mu     sync.Mutex
	state  state
	engine exchange.Engine
	done   chan struct{} // closed when the in-flight startup attempt settles
}

// NewHandle creates an uninitialized handle around the given startup
// procedure.
func NewHandle(start StartFunc) *Handle {
	return &Handle{start: start}
}

// Ensure returns the started engine, running the startup procedure if this
// is the first call to reach it. Exactly one caller performs the startup;
// concurrent callers block until it settles. If startup fails, the handle
// returns to the uninitialized state so a later call can retry, and any
// blocked waiters loop back to the check-and-set themselves.
func (h *Handle) Ensure(ctx context.Context) (exchange.Engine, error) {
	for {
		h.mu.Lock()
		switch h.state {
		case stateStarted:
			engine := h.engine
			h.mu.Unlock()
			return engine, nil

		case stateUninitialized:
			h.state = stateStarting
			done := make(chan struct{})
			h.done = done
			h.mu.Unlock()

			engine, err := h.start(ctx)

			h.mu.Lock()
			if err != nil {
				h.state = stateUninitialized
			} else {
				h.state = stateStarted
				h.engine = engine
			}
			h.done = nil
			close(done)
			h.mu.Unlock()

			if err != nil {
				return nil, fmt.Errorf("engine startup: %w", err)
			}
			return engine, nil

		case stateStarting:
			done := h.done
			h.mu.Unlock()
			select {
			case <-done:
				// Settled; loop to observe the outcome. On failure the
				// state is uninitialized again and this caller may become
				// the next starter.
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
}

// Started reports whether the engine has completed startup. Used by the
// health endpoint; never triggers startup itself.
func (h *Handle) Started() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == stateStarted
}
