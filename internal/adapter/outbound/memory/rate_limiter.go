// Package memory provides in-memory implementations of outbound ports:
// the GCRA rate limiter and the config-seeded auth store.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stockpile-hq/stockpile/internal/domain/ratelimit"
)

// RateLimiter is an in-memory GCRA limiter. It tracks one theoretical
// arrival time (TAT) per key and runs a background sweep so the map
// doesn't grow without bound.
type RateLimiter struct {
	mu    sync.Mutex
	cells map[string]time.Time

	stopChan      chan struct{}
	wg            sync.WaitGroup
	stopOnce      sync.Once
	sweepInterval time.Duration
	maxTTL        time.Duration
}

// NewRateLimiter creates a limiter with the default sweep settings
// (sweep every 5 minutes, drop keys idle for an hour).
func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithConfig(5*time.Minute, time.Hour)
}

// NewRateLimiterWithConfig creates a limiter with custom sweep settings.
func NewRateLimiterWithConfig(sweepInterval, maxTTL time.Duration) *RateLimiter {
	return &RateLimiter{
		cells:         make(map[string]time.Time),
		stopChan:      make(chan struct{}),
		sweepInterval: sweepInterval,
		maxTTL:        maxTTL,
	}
}

// Allow records one request under key and reports whether it fits the
// configured rate.
func (r *RateLimiter) Allow(ctx context.Context, key string, cfg ratelimit.Config) (ratelimit.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	// Emission interval: the spacing between requests at the steady rate.
	emission := cfg.Period / time.Duration(cfg.Rate)

	if cfg.Burst <= 0 {
		cfg.Burst = cfg.Rate
	}
	burstOffset := time.Duration(cfg.Burst) * emission

	tat, ok := r.cells[key]
	if !ok || tat.Before(now) {
		tat = now
	}

	allowAt := tat.Add(-burstOffset)
	if now.Before(allowAt) {
		return ratelimit.Result{
			Allowed:    false,
			RetryAfter: allowAt.Sub(now),
			ResetAfter: tat.Sub(now),
		}, nil
	}

	newTAT := tat.Add(emission)
	if newTAT.Before(now) {
		newTAT = now.Add(emission)
	}
	r.cells[key] = newTAT

	remaining := int((burstOffset - newTAT.Sub(now)) / emission)
	if remaining < 0 {
		remaining = 0
	}
	if remaining > cfg.Burst {
		remaining = cfg.Burst
	}

	return ratelimit.Result{
		Allowed:    true,
		Remaining:  remaining,
		ResetAfter: newTAT.Sub(now),
	}, nil
}

// StartSweep starts the background goroutine that drops idle keys. It
// exits when ctx is cancelled or Stop is called.
func (r *RateLimiter) StartSweep(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopChan:
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	}()
}

func (r *RateLimiter) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.maxTTL)
	dropped := 0
	for key, tat := range r.cells {
		if tat.Before(cutoff) {
			delete(r.cells, key)
			dropped++
		}
	}
	if dropped > 0 {
		slog.Debug("rate limiter sweep",
			"dropped_keys", dropped,
			"remaining_keys", len(r.cells))
	}
}

// Stop stops the sweep goroutine and waits for it to exit. Safe to call
// multiple times.
func (r *RateLimiter) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
	})
	r.wg.Wait()
}

// Size returns the number of tracked keys.
func (r *RateLimiter) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cells)
}

var _ ratelimit.Limiter = (*RateLimiter)(nil)
