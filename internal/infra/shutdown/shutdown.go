package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Hook releases one resource. It should return once ctx is done.
type Hook func(ctx context.Context) error

// Handler runs registered hooks once, newest first.
type Handler struct {
	timeout time.Duration

	mu    sync.Mutex
	hooks []Hook

	once sync.Once
	err  error
}

// NewHandler returns a handler whose hooks share one timeout.
func NewHandler(timeout time.Duration) *Handler {
	return &Handler{timeout: timeout}
}

// OnShutdown registers a hook.
func (h *Handler) OnShutdown(hook Hook) {
	h.mu.Lock()
	h.hooks = append(h.hooks, hook)
	h.mu.Unlock()
}

// OnClose registers fn as a hook that ignores the context.
func (h *Handler) OnClose(fn func() error) {
	h.OnShutdown(func(context.Context) error { return fn() })
}

// NotifyContext returns a context cancelled on SIGINT or SIGTERM. The
// signal also runs Shutdown in the background; cancelling the context by
// other means does not.
func (h *Handler) NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sig)
		select {
		case <-sig:
			cancel()
			_ = h.Shutdown()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Shutdown runs every hook within the timeout and joins their errors.
// A failing hook does not stop the others. Later calls wait for and
// return the first call's result.
func (h *Handler) Shutdown() error {
	h.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()

		h.mu.Lock()
		hooks := h.hooks
		h.hooks = nil
		h.mu.Unlock()

		errs := make([]error, 0, len(hooks))
		for i := len(hooks) - 1; i >= 0; i-- {
			errs = append(errs, hooks[i](ctx))
		}
		h.err = errors.Join(errs...)
	})
	return h.err
}
