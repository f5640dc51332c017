// Package controller owns every session mutation: login, registration,
// identity resolution, refresh, logout and expiry.
//
// The controller is the only holder of the session Writer. Credential
// store and session state are always changed together under one lock, so
// a reader never sees one without the other.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dataglove/glovectl/internal/client/credential"
	"github.com/dataglove/glovectl/internal/client/notice"
	"github.com/dataglove/glovectl/internal/client/pipeline"
	"github.com/dataglove/glovectl/internal/client/session"
	"github.com/dataglove/glovectl/internal/core/domain"
	"github.com/dataglove/glovectl/internal/telemetry/logger"
	"github.com/dataglove/glovectl/internal/telemetry/metric"
)

// remoteLogoutTimeout bounds the background logout issued on expiry.
const remoteLogoutTimeout = 5 * time.Second

// maxFetchAttempts bounds how often FetchIdentity follows a session that
// changed while its fetch was in flight.
const maxFetchAttempts = 3

// AuthAPI is the authentication endpoint family.
type AuthAPI interface {
	Login(ctx context.Context, req domain.LoginRequest, opts ...pipeline.RequestOption) (*domain.AuthResponse, error)
	Register(ctx context.Context, req domain.RegisterRequest, opts ...pipeline.RequestOption) (*domain.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string, opts ...pipeline.RequestOption) (*domain.AuthResponse, error)
	Me(ctx context.Context, opts ...pipeline.RequestOption) (*domain.Identity, error)
	Logout(ctx context.Context, opts ...pipeline.RequestOption) error
}

// Controller is the single writer of the session.
type Controller struct {
	store    credential.Store
	state    *session.State
	writer   *session.Writer
	auth     AuthAPI
	notifier notice.Notifier
	metrics  *metric.Registry
	logger   logger.Logger

	// mu makes each store+state change atomic with respect to the others.
	mu      sync.Mutex
	fetches singleflight.Group
	bg      sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithNotifier sets where success and session notices go.
func WithNotifier(n notice.Notifier) Option {
	return func(c *Controller) {
		c.notifier = n
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// New claims the writer of state. It fails if the writer is already taken.
func New(store credential.Store, state *session.State, auth AuthAPI, opts ...Option) (*Controller, error) {
	w, err := state.Claim()
	if err != nil {
		return nil, fmt.Errorf("controller: %w", err)
	}

	c := &Controller{
		store:    store,
		state:    state,
		writer:   w,
		auth:     auth,
		notifier: notice.Discard,
		logger:   logger.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metric.NewRegistry()
	}
	return c, nil
}

// State returns the read side of the session.
func (c *Controller) State() *session.State {
	return c.state
}

// Restore loads the stored credential into the session. It performs no
// network call; the identity is resolved later on demand.
func (c *Controller) Restore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cred, ok, err := c.store.Read(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if !ok {
		return nil
	}
	if cred.IsZero() {
		// An empty slot value is the same as no slot.
		return c.store.Clear(ctx)
	}

	c.writer.Establish(cred, nil)
	c.logger.Debug("session restored from store")
	return nil
}

// Login authenticates and establishes a session. On failure neither the
// store nor the session changes.
func (c *Controller) Login(ctx context.Context, req domain.LoginRequest) (*domain.Identity, error) {
	resp, err := c.auth.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.establish(ctx, resp, "login successful")
}

// Register creates an account and establishes its session. Same contract
// as Login.
func (c *Controller) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Identity, error) {
	resp, err := c.auth.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.establish(ctx, resp, "registration successful")
}

func (c *Controller) establish(ctx context.Context, resp *domain.AuthResponse, success string) (*domain.Identity, error) {
	cred := resp.Credential()
	if cred.IsZero() {
		return nil, domain.ErrMalformedResponse.WithMessage("server returned no access token")
	}

	c.mu.Lock()
	if err := c.store.Write(ctx, cred); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("save credential: %w", err)
	}
	c.writer.Establish(cred, resp.UserInfo)
	c.mu.Unlock()

	c.metrics.IncSessionEstablished()
	c.notifier.Notify(notice.Notice{Level: notice.LevelSuccess, Message: success})

	if resp.UserInfo == nil {
		return c.FetchIdentity(ctx)
	}
	c.logger.Info("session established", "user", resp.UserInfo.Username)
	return resp.UserInfo.Clone(), nil
}

// FetchIdentity resolves the identity of the current session.
//
// Concurrent calls for the same session share one request. A result is
// applied only if the session is unchanged when it arrives; a failure
// logs out only the session that issued the request. Cancelling ctx stops
// waiting but not the shared request.
func (c *Controller) FetchIdentity(ctx context.Context) (*domain.Identity, error) {
	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		snap := c.state.Snapshot()
		if !snap.HasCredential {
			return nil, domain.ErrNotLoggedIn
		}

		key := strconv.FormatUint(snap.Generation, 10)
		ch := c.fetches.DoChan(key, func() (any, error) {
			return c.fetch(context.WithoutCancel(ctx), snap)
		})

		select {
		case res := <-ch:
			if res.Err == nil {
				return res.Val.(*domain.Identity).Clone(), nil
			}
			if !errors.Is(res.Err, errSessionChanged) {
				return nil, res.Err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, domain.ErrNotLoggedIn.WithMessage("session changed while resolving identity")
}

// errSessionChanged marks a fetch whose session was replaced mid-flight.
var errSessionChanged = errors.New("session changed during identity fetch")

func (c *Controller) fetch(ctx context.Context, snap session.Snapshot) (*domain.Identity, error) {
	id, err := c.auth.Me(ctx, pipeline.WithCredential(snap.Credential))
	if err != nil {
		c.metrics.IncIdentityFetch("failed")
		if c.logoutGeneration(ctx, snap.Generation) {
			c.logger.Debug("identity fetch failed, session cleared", "error", err)
		}
		return nil, err
	}

	if !c.writer.SetIdentity(snap.Generation, id) {
		c.metrics.IncIdentityFetch("stale")
		return nil, errSessionChanged
	}
	c.metrics.IncIdentityFetch("applied")
	return id, nil
}

// Logout ends the session. The remote call is best effort; local state is
// cleared regardless. Logging out without a session only re-clears the store.
func (c *Controller) Logout(ctx context.Context) error {
	cred, ok := c.state.Credential()
	if ok {
		c.remoteLogout(ctx, cred)
	}
	return c.clear(ctx, ok)
}

// logoutGeneration logs out only if the session is still at gen.
func (c *Controller) logoutGeneration(ctx context.Context, gen uint64) bool {
	snap := c.state.Snapshot()
	if !snap.HasCredential || snap.Generation != gen {
		return false
	}
	c.remoteLogout(ctx, snap.Credential)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Generation() != gen {
		return false
	}
	c.clearLocked(ctx, true)
	return true
}

func (c *Controller) clear(ctx context.Context, counted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearLocked(ctx, counted)
}

// clearLocked empties store and state. The state is reset even when the
// store cannot be cleared so the process stops using the credential.
func (c *Controller) clearLocked(ctx context.Context, counted bool) error {
	err := c.store.Clear(context.WithoutCancel(ctx))
	if c.writer.Reset() && counted {
		c.metrics.IncLogout()
	}
	if err != nil {
		c.logger.Error("failed to clear stored credential", "error", err)
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

func (c *Controller) remoteLogout(ctx context.Context, cred domain.Credential) {
	err := c.auth.Logout(ctx,
		pipeline.WithCredential(cred),
		pipeline.WithQuiet(),
		pipeline.WithoutExpiryHandling(),
		pipeline.WithLabel("logging out"),
	)
	if err != nil {
		c.logger.Warn("remote logout failed", "error", err)
	}
}

// Expire handles a credential the service rejected. If rejected is still
// the session credential (or no session is held) the session is torn down
// before Expire returns and a remote logout runs in the background; Expire
// then reports true. A rejection of an older credential is ignored.
func (c *Controller) Expire(ctx context.Context, rejected domain.Credential) bool {
	c.mu.Lock()
	cur, ok := c.state.Credential()
	if ok && cur.AccessToken != rejected.AccessToken {
		c.mu.Unlock()
		c.logger.Debug("ignoring rejection of a superseded credential")
		return false
	}
	c.clearLocked(ctx, false)
	c.mu.Unlock()

	if ok {
		c.logger.Info("session expired")
		c.bg.Add(1)
		go func() {
			defer c.bg.Done()
			bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), remoteLogoutTimeout)
			defer cancel()
			c.remoteLogout(bgCtx, cur)
		}()
	}
	return true
}

// Wait blocks until background logouts started by Expire finish.
func (c *Controller) Wait() {
	c.bg.Wait()
}

// Refresh exchanges a refresh token for a new credential. An empty token
// means the one held by the session. On failure the session is logged out.
func (c *Controller) Refresh(ctx context.Context, refreshToken string) (*domain.Identity, error) {
	if refreshToken == "" {
		cred, ok := c.state.Credential()
		if !ok {
			return nil, domain.ErrNotLoggedIn
		}
		if cred.RefreshToken == "" {
			return nil, domain.ErrNoRefreshToken
		}
		refreshToken = cred.RefreshToken
	}

	resp, err := c.auth.Refresh(ctx, refreshToken)
	if err == nil && resp.Credential().IsZero() {
		err = domain.ErrMalformedResponse.WithMessage("server returned no access token")
	}
	if err != nil {
		if lerr := c.Logout(ctx); lerr != nil {
			c.logger.Warn("logout after failed refresh", "error", lerr)
		}
		return nil, err
	}

	cred := resp.Credential()
	if cred.RefreshToken == "" {
		cred.RefreshToken = refreshToken
	}

	c.mu.Lock()
	if err := c.store.Write(ctx, cred); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("save credential: %w", err)
	}
	if resp.UserInfo != nil {
		c.writer.Establish(cred, resp.UserInfo)
	} else {
		c.writer.SetCredential(cred)
	}
	c.mu.Unlock()
	c.metrics.IncSessionEstablished()

	if id, ok := c.state.Identity(); ok {
		return id, nil
	}
	return c.FetchIdentity(ctx)
}

// RefreshIfExpiring refreshes when the access token expires within skew and
// a refresh token is held. It reports whether a refresh happened.
func (c *Controller) RefreshIfExpiring(ctx context.Context, skew time.Duration) (bool, error) {
	cred, ok := c.state.Credential()
	if !ok || cred.RefreshToken == "" || !cred.ExpiresWithin(time.Now(), skew) {
		return false, nil
	}
	c.logger.Debug("access token close to expiry, refreshing", "skew", skew)
	if _, err := c.Refresh(ctx, cred.RefreshToken); err != nil {
		return false, err
	}
	return true, nil
}

// Sync reconciles the session with the store after another process
// changed it. It reports whether the session changed.
func (c *Controller) Sync(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored, ok, err := c.store.Read(ctx)
	if err != nil {
		return false, fmt.Errorf("sync session: %w", err)
	}
	cur, has := c.state.Credential()

	switch {
	case (!ok || stored.IsZero()) && has:
		c.writer.Reset()
		c.notifier.Notify(notice.Notice{Level: notice.LevelWarn, Message: "session ended in another process"})
		return true, nil
	case ok && !stored.IsZero() && (!has || stored != cur):
		c.writer.Establish(stored, nil)
		c.notifier.Notify(notice.Notice{Level: notice.LevelInfo, Message: "session changed in another process"})
		return true, nil
	default:
		return false, nil
	}
}
