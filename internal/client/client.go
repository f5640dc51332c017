// Package client assembles the session components into one value: the
// credential store, the shared session state, the request pipeline, the
// endpoint wrappers, the session controller, the navigation guard and the
// navigator.
//
// The only edge between the pipeline and the rest is the expiry handler
// installed here: a rejected credential is torn down by the controller and,
// when that tore down the live session, the navigator is sent to the entry
// page exactly once.
package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/dataglove/glovectl/internal/client/api"
	"github.com/dataglove/glovectl/internal/client/controller"
	"github.com/dataglove/glovectl/internal/client/credential"
	"github.com/dataglove/glovectl/internal/client/guard"
	"github.com/dataglove/glovectl/internal/client/notice"
	"github.com/dataglove/glovectl/internal/client/pipeline"
	"github.com/dataglove/glovectl/internal/client/session"
	"github.com/dataglove/glovectl/internal/core/domain"
	"github.com/dataglove/glovectl/internal/infra/tlsroots"
	"github.com/dataglove/glovectl/internal/telemetry/logger"
	"github.com/dataglove/glovectl/internal/telemetry/metric"
)

// Config gathers the settings of every component.
type Config struct {
	Transport  pipeline.Config
	Credential credential.Config
	TLS        tlsroots.Config
	Pages      guard.Pages
}

// Client is the assembled session stack.
type Client struct {
	Store      credential.Store
	State      *session.State
	Pipeline   *pipeline.Pipeline
	API        *api.Client
	Controller *controller.Controller
	Guard      *guard.Guard
	Navigator  *guard.Navigator
	Router     *guard.Router
	Metrics    *metric.Registry

	logger      logger.Logger
	closeStore  func() error
	clientCert  *tlsroots.KeyPair

	watchMu     sync.Mutex
	started     bool
	stopWatch   context.CancelFunc
	closeOnce   sync.Once
	closeResult error
}

type options struct {
	notifier   notice.Notifier
	progress   pipeline.Progress
	view       guard.View
	router     *guard.Router
	metrics    *metric.Registry
	logger     logger.Logger
	httpClient *http.Client
	store      credential.Store
}

// Option configures New.
type Option func(*options)

// WithNotifier sets where user-visible notices go.
func WithNotifier(n notice.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithProgress sets the in-flight indicator used by the pipeline.
func WithProgress(p pipeline.Progress) Option {
	return func(o *options) {
		o.progress = p
	}
}

// WithView sets the renderer of allowed pages.
func WithView(v guard.View) Option {
	return func(o *options) {
		o.view = v
	}
}

// WithRouter replaces DefaultRoutes.
func WithRouter(r *guard.Router) Option {
	return func(o *options) {
		o.router = r
	}
}

// WithMetrics shares a registry instead of creating one.
func WithMetrics(m *metric.Registry) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithLogger sets the logger of every component.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithHTTPClient replaces the HTTP client the pipeline builds.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithStore uses s instead of opening Config.Credential. The caller keeps
// ownership of s.
func WithStore(s credential.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// New builds the stack. Nothing is read from the store until Start.
func New(cfg Config, opts ...Option) (*Client, error) {
	o := options{notifier: notice.Discard}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Default()
	}
	if o.metrics == nil {
		o.metrics = metric.NewRegistry()
	}
	if o.router == nil {
		o.router = guard.DefaultRoutes()
	}

	c := &Client{
		Router:     o.router,
		Metrics:    o.metrics,
		logger:     o.logger,
		closeStore: func() error { return nil },
	}

	if o.store != nil {
		c.Store = o.store
	} else {
		store, closeStore, err := credential.Open(cfg.Credential, o.logger.With("component", "credential"))
		if err != nil {
			return nil, err
		}
		c.Store = store
		c.closeStore = closeStore
	}

	transport := cfg.Transport
	if transport.TLSConfig == nil && !cfg.TLS.IsZero() {
		tlsCfg, kp, err := tlsroots.Build(cfg.TLS, logger.Slog(o.logger.With("component", "tls")))
		if err != nil {
			c.closeStore()
			return nil, err
		}
		transport.TLSConfig = tlsCfg
		c.clientCert = kp
	}

	c.State = session.New()

	pipeOpts := []pipeline.Option{
		pipeline.WithNotifier(o.notifier),
		pipeline.WithMetrics(o.metrics),
		pipeline.WithLogger(o.logger.With("component", "pipeline")),
		pipeline.WithExpiryHandler(pipeline.ExpiryHandlerFunc(c.sessionExpired)),
	}
	if o.progress != nil {
		pipeOpts = append(pipeOpts, pipeline.WithProgress(o.progress))
	}
	if o.httpClient != nil {
		pipeOpts = append(pipeOpts, pipeline.WithHTTPClient(o.httpClient))
	}
	p, err := pipeline.New(transport, c.State, pipeOpts...)
	if err != nil {
		c.release()
		return nil, err
	}
	c.Pipeline = p
	c.API = api.New(p)

	ctl, err := controller.New(c.Store, c.State, c.API.Auth,
		controller.WithNotifier(o.notifier),
		controller.WithMetrics(o.metrics),
		controller.WithLogger(o.logger.With("component", "controller")),
	)
	if err != nil {
		c.release()
		return nil, err
	}
	c.Controller = ctl

	c.Guard = guard.New(c.State, ctl,
		guard.WithPages(cfg.Pages),
		guard.WithRouter(o.router),
		guard.WithNotifier(o.notifier),
		guard.WithLogger(o.logger.With("component", "guard")),
	)

	navOpts := []guard.NavigatorOption{
		guard.WithNavigatorMetrics(o.metrics),
		guard.WithNavigatorLogger(o.logger.With("component", "navigator")),
	}
	if o.view != nil {
		navOpts = append(navOpts, guard.WithView(o.view))
	}
	c.Navigator = guard.NewNavigator(o.router, c.Guard, navOpts...)

	o.metrics.MustRegister(metric.NewSessionCollector(c.sessionStats))

	return c, nil
}

// sessionExpired is the pipeline's expiry handler.
func (c *Client) sessionExpired(ctx context.Context, rejected domain.Credential) {
	if c.Controller.Expire(ctx, rejected) {
		c.Navigator.Redirect(c.Guard.Pages().Entry)
	}
}

func (c *Client) sessionStats() metric.SessionStats {
	snap := c.State.Snapshot()
	return metric.SessionStats{
		Authenticated:    snap.Authenticated(),
		IdentityResolved: snap.Identity != nil,
		Generation:       snap.Generation,
	}
}

// Start restores the persisted session and, when the store supports it,
// follows changes made by other processes until ctx ends or Close.
func (c *Client) Start(ctx context.Context) error {
	if err := c.Controller.Restore(ctx); err != nil {
		return err
	}

	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	if c.started {
		return nil
	}
	c.started = true

	if c.clientCert != nil {
		if err := c.clientCert.Watch(); err != nil {
			c.logger.Warn("client certificate watch unavailable", "error", err)
		}
	}

	w, ok := c.Store.(credential.Watchable)
	if !ok {
		return nil
	}
	watchCtx, cancel := context.WithCancel(ctx)
	if err := w.Watch(watchCtx, func() { c.sync(watchCtx) }); err != nil {
		cancel()
		// Running without cross-process sync is degraded, not fatal.
		c.logger.Warn("credential watch unavailable", "error", err)
		return nil
	}
	c.stopWatch = cancel
	return nil
}

func (c *Client) sync(ctx context.Context) {
	changed, err := c.Controller.Sync(ctx)
	if err != nil {
		c.logger.Warn("session sync failed", "error", err)
		return
	}
	if changed && !c.State.IsAuthenticated() {
		c.Navigator.Redirect(c.Guard.Pages().Entry)
	}
}

// Close stops watching, waits for background logouts and releases the
// store. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.watchMu.Lock()
		if c.stopWatch != nil {
			c.stopWatch()
		}
		c.watchMu.Unlock()

		c.Controller.Wait()
		c.closeResult = c.release()
	})
	return c.closeResult
}

func (c *Client) release() error {
	var certErr error
	if c.clientCert != nil {
		certErr = c.clientCert.Close()
	}
	if err := c.closeStore(); err != nil {
		return fmt.Errorf("close credential store: %w", err)
	}
	return certErr
}
