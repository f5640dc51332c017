package pipeline

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/dataglove/glovectl/internal/client/notice"
	"github.com/dataglove/glovectl/internal/core/domain"
	"github.com/dataglove/glovectl/internal/telemetry/logger"
	"github.com/dataglove/glovectl/internal/telemetry/metric"
)

const (
	// DefaultTimeout bounds every call, matching the service's web client.
	DefaultTimeout = 10 * time.Second

	// DefaultAPIPrefix is prepended to every endpoint path.
	DefaultAPIPrefix = "/api"

	// Header names attached to every call.
	HeaderRequestID = "X-Request-ID"
	HeaderClientID  = "X-Client-ID"

	maxBodySize = 8 << 20
)

// Config holds the transport settings.
type Config struct {
	// Server is the service origin, e.g. https://glove.example.com.
	// A missing scheme defaults to http.
	Server    string
	APIPrefix string
	Timeout   time.Duration
	ClientID  string
	UserAgent string
	TLSConfig *tls.Config

	// RateLimit caps outgoing calls per second; zero disables limiting.
	RateLimit float64
	RateBurst int
}

// Pipeline performs authenticated calls and classifies their outcome.
type Pipeline struct {
	base      *url.URL
	client    *http.Client
	creds     CredentialSource
	expiry    ExpiryHandler
	progress  Progress
	notifier  notice.Notifier
	limiter   *rate.Limiter
	metrics   *metric.Registry
	logger    logger.Logger
	clientID  string
	userAgent string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHTTPClient replaces the HTTP client built from Config.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pipeline) {
		p.client = c
	}
}

// WithProgress sets the progress indication port.
func WithProgress(pr Progress) Option {
	return func(p *Pipeline) {
		p.progress = pr
	}
}

// WithNotifier sets where failure notices go.
func WithNotifier(n notice.Notifier) Option {
	return func(p *Pipeline) {
		p.notifier = n
	}
}

// WithExpiryHandler sets the handler invoked on authentication failures.
func WithExpiryHandler(h ExpiryHandler) Option {
	return func(p *Pipeline) {
		p.expiry = h
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// New creates a pipeline reading the session credential from creds.
func New(cfg Config, creds CredentialSource, opts ...Option) (*Pipeline, error) {
	if cfg.Server == "" {
		return nil, errors.New("pipeline: server is required")
	}
	if creds == nil {
		return nil, errors.New("pipeline: credential source is required")
	}

	server := cfg.Server
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "http://" + server
	}
	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = DefaultAPIPrefix
	}
	base, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return nil, fmt.Errorf("pipeline: parse server %q: %w", cfg.Server, err)
	}
	base = base.JoinPath(prefix)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.TLSConfig != nil {
		transport.TLSClientConfig = cfg.TLSConfig
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "glovectl"
	}

	p := &Pipeline{
		base:      base,
		client:    &http.Client{Timeout: timeout, Transport: transport},
		creds:     creds,
		expiry:    ExpiryHandlerFunc(func(context.Context, domain.Credential) {}),
		progress:  noProgress{},
		notifier:  notice.Discard,
		logger:    logger.Default(),
		clientID:  cfg.ClientID,
		userAgent: userAgent,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = metric.NewRegistry()
	}

	return p, nil
}

// BaseURL returns the URL every endpoint path is joined to.
func (p *Pipeline) BaseURL() string {
	return p.base.String()
}

// Get performs a GET and decodes the envelope data into out.
func (p *Pipeline) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return p.call(ctx, http.MethodGet, path, nil, out, opts)
}

// Post performs a POST with a JSON body and decodes the envelope data into out.
func (p *Pipeline) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return p.call(ctx, http.MethodPost, path, body, out, opts)
}

// Put performs a PUT with a JSON body and decodes the envelope data into out.
func (p *Pipeline) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return p.call(ctx, http.MethodPut, path, body, out, opts)
}

// Delete performs a DELETE and decodes the envelope data into out.
func (p *Pipeline) Delete(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return p.call(ctx, http.MethodDelete, path, nil, out, opts)
}

func (p *Pipeline) call(ctx context.Context, method, path string, body, out any, opts []RequestOption) error {
	var (
		reader      io.Reader
		contentType string
	)
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	return p.exchange(ctx, method, path, collect(opts), reader, contentType, decodeEnvelope(out))
}

// decodeEnvelope reads a JSON reply and decodes its data into out.
func decodeEnvelope(out any) func(*http.Response) *domain.Error {
	return func(resp *http.Response) *domain.Error {
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return classifyTransport(err)
		}
		env, derr := classifyReply(resp.StatusCode, data)
		if derr != nil {
			return derr
		}
		if err := env.Decode(out); err != nil {
			return domain.ErrMalformedResponse.WithStatus(resp.StatusCode).WithCause(err)
		}
		return nil
	}
}

// exchange runs the per-call algorithm around one round trip. handle
// consumes a received response and returns nil or a classified error.
func (p *Pipeline) exchange(
	ctx context.Context,
	method, path string,
	o requestOptions,
	body io.Reader,
	contentType string,
	handle func(*http.Response) *domain.Error,
) error {
	label := o.label
	if label == "" {
		label = method + " " + path
	}
	end := p.progress.Begin(label)
	defer end()

	requestID := ulid.Make().String()
	ctx = logger.WithRequestID(ctx, requestID)
	cred := p.credentialFor(o)

	p.metrics.RequestsInFlight.Inc()
	defer p.metrics.RequestsInFlight.Dec()
	start := time.Now()

	resp, derr := p.send(ctx, method, path, o.query, cred, body, contentType, requestID)
	if derr == nil {
		derr = handle(resp)
		resp.Body.Close()
	}

	p.finish(ctx, method, path, o, cred, requestID, time.Since(start), derr)
	if derr != nil {
		return derr
	}
	return nil
}

func (p *Pipeline) send(
	ctx context.Context,
	method, path string,
	query url.Values,
	cred domain.Credential,
	body io.Reader,
	contentType, requestID string,
) (*http.Response, *domain.Error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, classifyTransport(err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, p.endpoint(path, query), body)
	if err != nil {
		return nil, domain.ErrUnknown.WithMessage(fmt.Sprintf("build request: %v", err)).WithCause(err)
	}
	p.addHeaders(req, cred, requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	return resp, nil
}

// finish records the outcome and applies the side effects of a failure.
func (p *Pipeline) finish(
	ctx context.Context,
	method, path string,
	o requestOptions,
	cred domain.Credential,
	requestID string,
	elapsed time.Duration,
	derr *domain.Error,
) {
	log := p.logger.WithContext(ctx).With("method", method, "path", path)

	if derr == nil {
		p.metrics.ObserveRequest(method, metric.OutcomeOK, elapsed)
		log.Debug("request completed", "elapsed", elapsed)
		return
	}

	p.metrics.ObserveRequest(method, string(derr.Kind), elapsed)
	log.Debug("request failed",
		"kind", string(derr.Kind),
		"code", derr.Code,
		"status", derr.Status,
		"error", derr.Message,
		"elapsed", elapsed,
	)

	if derr.Kind == domain.KindUnauthorized && !o.noExpiry {
		p.metrics.IncSessionExpired()
		p.expiry.SessionExpired(ctx, cred)
	}

	if !o.quiet && !errors.Is(derr, context.Canceled) {
		p.notifier.Notify(notice.Notice{Level: notice.LevelError, Message: derr.Message})
	}
}

func (p *Pipeline) endpoint(path string, query url.Values) string {
	u := p.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// credentialFor picks the credential a call carries: the explicit one,
// else the session's, else none.
func (p *Pipeline) credentialFor(o requestOptions) domain.Credential {
	if o.credential != nil {
		return *o.credential
	}
	if cred, ok := p.creds.Credential(); ok {
		return cred
	}
	return domain.Credential{}
}

// addHeaders attaches the credential and the common headers.
func (p *Pipeline) addHeaders(req *http.Request, cred domain.Credential, requestID string) {
	if !cred.IsZero() {
		req.Header.Set("Authorization", cred.AuthorizationHeader())
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set(HeaderRequestID, requestID)
	if p.clientID != "" {
		req.Header.Set(HeaderClientID, p.clientID)
	}
}
