package runtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/stockpile-hq/stockpile/internal/domain/exchange"
)

// nopEngine is a minimal engine double for lifecycle tests.
type nopEngine struct{}

func (nopEngine) HandleExchange(ctx context.Context, scope *exchange.Scope, src *exchange.BodySource, acc *exchange.Accumulator) error {
	return nil
}

func TestEnsureStartsExactlyOnceUnderConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int64
	h := NewHandle(func(ctx context.Context) (exchange.Engine, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond) // widen the race window
		return nopEngine{}, nil
	})

	const callers = 32
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Ensure(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Ensure error: %v", err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("startup ran %d times, want exactly 1", got)
	}
	if !h.Started() {
		t.Error("Started() = false after successful Ensure")
	}
}

func TestEnsureReusesEngine(t *testing.T) {
	var calls int
	h := NewHandle(func(ctx context.Context) (exchange.Engine, error) {
		calls++
		return nopEngine{}, nil
	})

	first, err := h.Ensure(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.Ensure(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("Ensure returned different engines across calls")
	}
	if calls != 1 {
		t.Errorf("startup ran %d times, want 1", calls)
	}
}

func TestEnsureRetriesAfterStartupFailure(t *testing.T) {
	boom := errors.New("boom")
	var calls int
	h := NewHandle(func(ctx context.Context) (exchange.Engine, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return nopEngine{}, nil
	})

	if _, err := h.Ensure(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("first Ensure error = %v, want %v", err, boom)
	}
	if h.Started() {
		t.Fatal("Started() = true after failed startup")
	}

	if _, err := h.Ensure(context.Background()); err != nil {
		t.Fatalf("second Ensure error = %v, want nil", err)
	}
	if calls != 2 {
		t.Errorf("startup ran %d times, want 2", calls)
	}
}

// A waiter blocked on a failing startup must observe the failure and be able
// to become the next starter itself. The recovery ordering is deliberately
// undefined; this only asserts that some waiter eventually succeeds.
func TestWaiterRetriesAfterConcurrentStartupFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	var calls atomic.Int64
	h := NewHandle(func(ctx context.Context) (exchange.Engine, error) {
		n := calls.Add(1)
		if n == 1 {
			<-release
			return nil, errors.New("first start fails")
		}
		return nopEngine{}, nil
	})

	// First caller enters Starting and blocks.
	firstErr := make(chan error, 1)
	go func() {
		_, err := h.Ensure(context.Background())
		firstErr <- err
	}()

	// Second caller blocks as a waiter, then retries after the failure.
	secondErr := make(chan error, 1)
	go func() {
		for calls.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		_, err := h.Ensure(context.Background())
		secondErr <- err
	}()

	time.Sleep(10 * time.Millisecond)
	close(release)

	if err := <-firstErr; err == nil {
		t.Error("first caller did not observe the startup failure")
	}
	if err := <-secondErr; err != nil {
		t.Errorf("waiter retry failed: %v", err)
	}
	if !h.Started() {
		t.Error("Started() = false after waiter retry")
	}
}

func TestEnsureHonorsContextWhileWaiting(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	h := NewHandle(func(ctx context.Context) (exchange.Engine, error) {
		<-release
		return nopEngine{}, nil
	})

	started := make(chan struct{})
	go func() {
		close(started)
		_, _ = h.Ensure(context.Background())
	}()
	<-started
	time.Sleep(5 * time.Millisecond) // let the starter take the slot

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := h.Ensure(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("waiter error = %v, want context.DeadlineExceeded", err)
	}

	close(release)
	// Let the starter finish so goleak stays quiet.
	if _, err := h.Ensure(context.Background()); err != nil {
		t.Fatal(err)
	}
}
