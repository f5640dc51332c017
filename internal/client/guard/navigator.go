package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dataglove/glovectl/internal/telemetry/logger"
	"github.com/dataglove/glovectl/internal/telemetry/metric"
)

// DefaultMaxHops bounds the redirects followed by one navigation.
const DefaultMaxHops = 8

// ErrTooManyRedirects is returned when a navigation keeps redirecting.
var ErrTooManyRedirects = errors.New("guard: too many redirects")

// View renders an allowed page.
type View interface {
	Render(ctx context.Context, r Route) error
}

// ViewFunc adapts a function to View.
type ViewFunc func(ctx context.Context, r Route) error

// Render calls f.
func (f ViewFunc) Render(ctx context.Context, r Route) error { return f(ctx, r) }

// Navigator performs page transitions. Transitions are serialized;
// Redirect may be called at any time, including from inside a render.
type Navigator struct {
	router  *Router
	guard   *Guard
	view    View
	maxHops int
	metrics *metric.Registry
	logger  logger.Logger

	// nav serializes transitions.
	nav     sync.Mutex
	mu      sync.Mutex
	current Route
	pending string
}

// NavigatorOption configures a Navigator.
type NavigatorOption func(*Navigator)

// WithView sets the renderer of allowed pages.
func WithView(v View) NavigatorOption {
	return func(n *Navigator) {
		n.view = v
	}
}

// WithMaxHops overrides DefaultMaxHops.
func WithMaxHops(hops int) NavigatorOption {
	return func(n *Navigator) {
		if hops > 0 {
			n.maxHops = hops
		}
	}
}

// WithNavigatorMetrics sets the metrics registry.
func WithNavigatorMetrics(m *metric.Registry) NavigatorOption {
	return func(n *Navigator) {
		n.metrics = m
	}
}

// WithNavigatorLogger sets the logger.
func WithNavigatorLogger(l logger.Logger) NavigatorOption {
	return func(n *Navigator) {
		n.logger = l
	}
}

// NewNavigator creates a navigator over router and guard.
func NewNavigator(router *Router, guard *Guard, opts ...NavigatorOption) *Navigator {
	n := &Navigator{
		router:  router,
		guard:   guard,
		view:    ViewFunc(func(context.Context, Route) error { return nil }),
		maxHops: DefaultMaxHops,
		logger:  logger.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.metrics == nil {
		n.metrics = metric.NewRegistry()
	}
	return n
}

// Router returns the route table.
func (n *Navigator) Router() *Router {
	return n.router
}

// Current returns the page last entered. The zero Route means none yet.
func (n *Navigator) Current() Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Redirect queues a transition to p. It runs after the transition in
// progress, or on the next Settle. Only the latest queued target is kept.
func (n *Navigator) Redirect(p string) {
	n.mu.Lock()
	n.pending = Clean(p)
	n.mu.Unlock()
	n.logger.Debug("redirect queued", "path", p)
}

// Pending reports the queued redirect, if any.
func (n *Navigator) Pending() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pending, n.pending != ""
}

// Navigate moves to p, following route redirects and guard decisions, and
// renders the page finally entered. Queued redirects are processed
// afterwards. If ctx ends during evaluation the current page is kept.
func (n *Navigator) Navigate(ctx context.Context, p string) (Route, error) {
	n.nav.Lock()
	defer n.nav.Unlock()

	route, err := n.transition(ctx, p)
	if ctx.Err() != nil {
		return route, err
	}
	// A render that hit an expired session still owes its redirect.
	settled, serr := n.settleLocked(ctx, route)
	return settled, errors.Join(err, serr)
}

// Settle processes a queued redirect, if any, and returns the current page.
func (n *Navigator) Settle(ctx context.Context) (Route, error) {
	n.nav.Lock()
	defer n.nav.Unlock()
	return n.settleLocked(ctx, n.Current())
}

func (n *Navigator) settleLocked(ctx context.Context, route Route) (Route, error) {
	for i := 0; i < n.maxHops; i++ {
		next, ok := n.takePending()
		if !ok {
			return route, nil
		}
		if next == route.Path {
			// Already there.
			continue
		}
		var err error
		if route, err = n.transition(ctx, next); err != nil {
			return route, err
		}
	}
	return route, ErrTooManyRedirects
}

func (n *Navigator) takePending() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p := n.pending
	n.pending = ""
	return p, p != ""
}

func (n *Navigator) transition(ctx context.Context, p string) (Route, error) {
	target := Clean(p)
	for hop := 0; hop <= n.maxHops; hop++ {
		route := n.router.Resolve(target)
		if route.Redirect != "" {
			target = route.Redirect
			continue
		}

		decision, err := n.guard.Evaluate(ctx, route.Request())
		if err != nil {
			n.metrics.IncNavigation("abandoned")
			return n.Current(), err
		}
		if next, ok := decision.Redirect(); ok {
			n.metrics.IncNavigation("redirect")
			n.logger.Debug("navigation redirected", "from", route.Path, "to", next)
			target = next
			continue
		}

		n.metrics.IncNavigation("allow")
		n.mu.Lock()
		n.current = route
		n.mu.Unlock()

		if err := n.view.Render(ctx, route); err != nil {
			return route, fmt.Errorf("render %s: %w", route.Path, err)
		}
		return route, nil
	}
	return n.Current(), fmt.Errorf("%w: %s", ErrTooManyRedirects, p)
}
