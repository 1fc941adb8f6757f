package shutdown

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}
	if len(cfg.Signals) != 2 {
		t.Errorf("Signals = %v, want SIGINT and SIGTERM", cfg.Signals)
	}
}

func TestNew_Defaults(t *testing.T) {
	h := New(Config{})

	if h.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", h.timeout)
	}
	if h.Context().Err() != nil {
		t.Error("context should not start cancelled")
	}
	if h.Interrupted() {
		t.Error("should not start interrupted")
	}
}

// =============================================================================
// Shutdown Tests
// =============================================================================

func TestHandler_Shutdown_LIFO(t *testing.T) {
	h := New(DefaultConfig())

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		h.Register(name, func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	if errs := h.Shutdown(); len(errs) != 0 {
		t.Fatalf("Shutdown() errors = %v", errs)
	}

	want := []string{"third", "second", "first"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if h.Context().Err() == nil {
		t.Error("Shutdown() should cancel the context")
	}
	select {
	case <-h.Done():
	default:
		t.Error("Done() should be closed after Shutdown()")
	}
}

func TestHandler_Shutdown_Idempotent(t *testing.T) {
	h := New(DefaultConfig())

	var calls atomic.Int32
	h.RegisterCloser("store", closerFunc(func() error {
		calls.Add(1)
		return nil
	}))

	h.Shutdown()
	h.Shutdown()

	if calls.Load() != 1 {
		t.Errorf("cleanup ran %d times, want 1", calls.Load())
	}
}

func TestHandler_Shutdown_Errors(t *testing.T) {
	var reported []error
	h := New(Config{
		OnDone: func(elapsed time.Duration, errs []error) {
			reported = errs
		},
	})

	h.RegisterCloser("broken", closerFunc(func() error { return errors.New("close failed") }))
	h.Register("ok", func(ctx context.Context) error { return nil })

	errs := h.Shutdown()
	if len(errs) != 1 {
		t.Fatalf("Shutdown() returned %d errors, want 1", len(errs))
	}
	if len(reported) != 1 {
		t.Errorf("OnDone got %d errors, want 1", len(reported))
	}
}

func TestHandler_Shutdown_Timeout(t *testing.T) {
	h := New(Config{Timeout: 20 * time.Millisecond})
	h.Register("slow", func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})

	errs := h.Shutdown()
	if len(errs) != 1 {
		t.Fatalf("Shutdown() returned %d errors, want 1", len(errs))
	}
	var timeoutErr *TimeoutError
	if !errors.As(errs[0], &timeoutErr) || timeoutErr.Name != "slow" {
		t.Errorf("error = %v, want TimeoutError for slow", errs[0])
	}
	if timeoutErr.Error() != "shutdown cleanup timed out: slow" {
		t.Errorf("Error() = %q", timeoutErr.Error())
	}
}

// =============================================================================
// Signal Tests
// =============================================================================

func TestHandler_Interrupt(t *testing.T) {
	interrupted := make(chan os.Signal, 1)
	h := New(Config{OnInterrupt: func(sig os.Signal) { interrupted <- sig }})
	defer h.Shutdown()

	h.Listen()
	h.Listen()
	h.sigChan <- syscall.SIGTERM

	select {
	case <-interrupted:
	case <-time.After(2 * time.Second):
		t.Fatal("OnInterrupt was not called")
	}

	if h.Context().Err() == nil {
		t.Error("interrupt should cancel the context")
	}
	if !h.Interrupted() {
		t.Error("Interrupted() should be true")
	}
}

func TestHandler_ShutdownWithoutSignal(t *testing.T) {
	h := New(DefaultConfig())
	h.Listen()
	h.Shutdown()

	if h.Interrupted() {
		t.Error("Interrupted() should be false after a plain Shutdown()")
	}
}
