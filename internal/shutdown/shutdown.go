// Package shutdown cancels in-flight scans on interrupt and runs cleanup
// callbacks in reverse registration order.
package shutdown

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Cleanup is a function called during shutdown.
type Cleanup func(ctx context.Context) error

// Config holds shutdown configuration.
type Config struct {
	// Timeout bounds each cleanup callback
	Timeout time.Duration
	Signals []os.Signal

	// OnInterrupt runs when a signal cancels the context
	OnInterrupt func(sig os.Signal)
	// OnDone runs after every cleanup finished
	OnDone func(elapsed time.Duration, errs []error)
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 5 * time.Second,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

type namedCleanup struct {
	name string
	fn   Cleanup
}

// Handler ties a cancellable context to process signals.
type Handler struct {
	mu       sync.Mutex
	cleanups []namedCleanup

	timeout     time.Duration
	signals     []os.Signal
	onInterrupt func(os.Signal)
	onDone      func(time.Duration, []error)

	ctx    context.Context
	cancel context.CancelFunc

	sigChan     chan os.Signal
	listening   atomic.Bool
	interrupted atomic.Bool
	shutdown    atomic.Bool
	done        chan struct{}
}

// New creates a new shutdown handler. Signals are not captured until
// Listen is called.
func New(cfg Config) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if len(cfg.Signals) == 0 {
		cfg.Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Handler{
		timeout:     cfg.Timeout,
		signals:     cfg.Signals,
		onInterrupt: cfg.OnInterrupt,
		onDone:      cfg.OnDone,
		ctx:         ctx,
		cancel:      cancel,
		sigChan:     make(chan os.Signal, 1),
		done:        make(chan struct{}),
	}
}

// Register registers a cleanup callback with a name.
func (h *Handler) Register(name string, fn Cleanup) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanups = append(h.cleanups, namedCleanup{name: name, fn: fn})
}

// RegisterCloser registers c.Close as a cleanup callback.
func (h *Handler) RegisterCloser(name string, c io.Closer) {
	h.Register(name, func(context.Context) error {
		return c.Close()
	})
}

// Context returns a context cancelled on interrupt or shutdown.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Interrupted reports whether a signal cancelled the context.
func (h *Handler) Interrupted() bool {
	return h.interrupted.Load()
}

// Done returns a channel that is closed when shutdown completes.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// Listen starts capturing signals. The first signal cancels the context.
func (h *Handler) Listen() {
	if !h.listening.CompareAndSwap(false, true) {
		return
	}
	signal.Notify(h.sigChan, h.signals...)

	go func() {
		select {
		case sig := <-h.sigChan:
			h.interrupted.Store(true)
			h.cancel()
			if h.onInterrupt != nil {
				h.onInterrupt(sig)
			}
		case <-h.ctx.Done():
		}
	}()
}

// Shutdown cancels the context and runs cleanups in reverse order. Only
// the first call does any work.
func (h *Handler) Shutdown() []error {
	if !h.shutdown.CompareAndSwap(false, true) {
		return nil
	}

	start := time.Now()
	h.cancel()
	if h.listening.Load() {
		signal.Stop(h.sigChan)
	}

	h.mu.Lock()
	cleanups := make([]namedCleanup, len(h.cleanups))
	copy(cleanups, h.cleanups)
	h.mu.Unlock()

	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := h.run(cleanups[i]); err != nil {
			errs = append(errs, err)
		}
	}

	if h.onDone != nil {
		h.onDone(time.Since(start), errs)
	}

	close(h.done)
	return errs
}

func (h *Handler) run(c namedCleanup) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return &TimeoutError{Name: c.name}
	}
}

// TimeoutError is returned when a cleanup times out.
type TimeoutError struct {
	Name string
}

func (e *TimeoutError) Error() string {
	return "shutdown cleanup timed out: " + e.Name
}
