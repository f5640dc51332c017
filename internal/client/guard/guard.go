// Package guard decides, per page transition, whether the session may
// enter the target page.
//
// A Guard evaluates one NavigationRequest against the session. A Router
// holds the route table and a Navigator drives transitions through both,
// following redirects and rendering the page that is finally allowed.
package guard

import (
	"context"

	"github.com/dataglove/glovectl/internal/client/notice"
	"github.com/dataglove/glovectl/internal/client/session"
	"github.com/dataglove/glovectl/internal/core/domain"
	"github.com/dataglove/glovectl/internal/telemetry/logger"
)

// MsgNoPermission is shown when a route's role requirement is not met.
const MsgNoPermission = "no permission to access this page"

// NavigationRequest describes one attempted transition.
type NavigationRequest struct {
	Path string
	// Roles, when set, grants access to holders of any one of them.
	Roles     []string
	Anonymous bool
}

// Decision is the outcome of a guard evaluation: allow the transition, or
// send it to another page.
type Decision struct {
	redirect string
}

// Allow lets the transition proceed.
func Allow() Decision {
	return Decision{}
}

// RedirectTo sends the transition to p instead.
func RedirectTo(p string) Decision {
	return Decision{redirect: Clean(p)}
}

// Allowed reports whether the transition may proceed.
func (d Decision) Allowed() bool {
	return d.redirect == ""
}

// Redirect returns the redirect target, if any.
func (d Decision) Redirect() (string, bool) {
	return d.redirect, d.redirect != ""
}

func (d Decision) String() string {
	if d.Allowed() {
		return "allow"
	}
	return "redirect " + d.redirect
}

// IdentityFetcher resolves the identity of the current session. On failure
// it has already torn down the session that issued the request.
type IdentityFetcher interface {
	FetchIdentity(ctx context.Context) (*domain.Identity, error)
}

// Pages names the pages the guard redirects to.
type Pages struct {
	// Entry is where anonymous users are sent.
	Entry string
	// Landing is where authenticated users visiting an entry page go.
	Landing string
	// NotFound is shown when a role requirement is not met.
	NotFound string
}

// DefaultPages returns the pages of DefaultRoutes.
func DefaultPages() Pages {
	return Pages{Entry: PathLogin, Landing: PathDashboard, NotFound: PathNotFound}
}

// Guard evaluates navigation requests against a session.
type Guard struct {
	state    *session.State
	fetcher  IdentityFetcher
	router   *Router
	pages    Pages
	notifier notice.Notifier
	logger   logger.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithPages overrides the redirect targets. Empty fields keep their default.
func WithPages(p Pages) Option {
	return func(g *Guard) {
		if p.Entry != "" {
			g.pages.Entry = Clean(p.Entry)
		}
		if p.Landing != "" {
			g.pages.Landing = Clean(p.Landing)
		}
		if p.NotFound != "" {
			g.pages.NotFound = Clean(p.NotFound)
		}
	}
}

// WithRouter sets the table used to recognise entry pages.
func WithRouter(r *Router) Option {
	return func(g *Guard) {
		g.router = r
	}
}

// WithNotifier sets where the permission notice goes.
func WithNotifier(n notice.Notifier) Option {
	return func(g *Guard) {
		g.notifier = n
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Guard) {
		g.logger = l
	}
}

// New creates a guard reading state and resolving identities via fetcher.
func New(state *session.State, fetcher IdentityFetcher, opts ...Option) *Guard {
	g := &Guard{
		state:    state,
		fetcher:  fetcher,
		router:   DefaultRoutes(),
		pages:    DefaultPages(),
		notifier: notice.Discard,
		logger:   logger.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Pages returns the guard's redirect targets.
func (g *Guard) Pages() Pages {
	return g.pages
}

// Evaluate decides one transition. It blocks while the identity is being
// resolved. An error means ctx ended first; the navigation is abandoned
// and no decision applies.
func (g *Guard) Evaluate(ctx context.Context, req NavigationRequest) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	target := Clean(req.Path)
	snap := g.state.Snapshot()

	if req.Anonymous {
		if snap.HasCredential && g.isEntry(target) {
			return RedirectTo(g.pages.Landing), nil
		}
		return Allow(), nil
	}

	if !snap.HasCredential {
		return RedirectTo(g.pages.Entry), nil
	}

	id := snap.Identity
	if id == nil {
		var err error
		id, err = g.fetcher.FetchIdentity(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Decision{}, ctxErr
		}
		if err != nil {
			g.logger.Debug("identity unavailable, sending to entry page", "path", target, "error", err)
			return RedirectTo(g.pages.Entry), nil
		}
	}

	if len(req.Roles) > 0 && !id.Roles.HasAny(req.Roles...) {
		g.notifier.Notify(notice.Notice{Level: notice.LevelError, Message: MsgNoPermission})
		g.logger.Debug("role requirement not met", "path", target, "required", req.Roles)
		return RedirectTo(g.pages.NotFound), nil
	}
	return Allow(), nil
}

func (g *Guard) isEntry(p string) bool {
	if p == g.pages.Entry {
		return true
	}
	return g.router != nil && g.router.Resolve(p).Entry
}
