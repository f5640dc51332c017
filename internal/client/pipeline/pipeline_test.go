package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataglove/glovectl/internal/client/notice"
	"github.com/dataglove/glovectl/internal/client/session"
	"github.com/dataglove/glovectl/internal/core/domain"
	"github.com/dataglove/glovectl/internal/telemetry/metric"
)

// progressCounter tracks Begin/end balance.
type progressCounter struct {
	mu     sync.Mutex
	begins int
	ends   int
	labels []string
}

func (p *progressCounter) Begin(label string) func() {
	p.mu.Lock()
	p.begins++
	p.labels = append(p.labels, label)
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		p.ends++
		p.mu.Unlock()
	}
}

func (p *progressCounter) balanced() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.begins == p.ends
}

type fixture struct {
	server   *httptest.Server
	state    *session.State
	writer   *session.Writer
	pipeline *Pipeline
	notices  *notice.Recorder
	progress *progressCounter
	metrics  *metric.Registry
	expired  atomic.Int32
	rejected atomic.Value
}

func newFixture(t *testing.T, handler http.HandlerFunc, cfgFn ...func(*Config)) *fixture {
	t.Helper()

	f := &fixture{
		server:   httptest.NewServer(handler),
		state:    session.New(),
		notices:  &notice.Recorder{},
		progress: &progressCounter{},
		metrics:  metric.NewRegistry(),
	}
	t.Cleanup(f.server.Close)

	w, err := f.state.Claim()
	require.NoError(t, err)
	f.writer = w

	cfg := Config{Server: f.server.URL, ClientID: "client-1", UserAgent: "glovectl/test"}
	for _, fn := range cfgFn {
		fn(&cfg)
	}

	p, err := New(cfg, f.state,
		WithNotifier(f.notices),
		WithProgress(f.progress),
		WithMetrics(f.metrics),
		WithExpiryHandler(ExpiryHandlerFunc(func(ctx context.Context, rejected domain.Credential) {
			f.expired.Add(1)
			f.rejected.Store(rejected.AccessToken)
			f.writer.Reset()
		})),
	)
	require.NoError(t, err)
	f.pipeline = p
	return f
}

func writeEnvelope(w http.ResponseWriter, status, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	raw, _ := json.Marshal(data)
	json.NewEncoder(w).Encode(map[string]any{
		"code":      code,
		"message":   message,
		"data":      json.RawMessage(raw),
		"timestamp": time.Now().UnixMilli(),
	})
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, session.New())
	assert.Error(t, err)

	_, err = New(Config{Server: "localhost:8080"}, nil)
	assert.Error(t, err)

	tests := []struct {
		server string
		prefix string
		want   string
	}{
		{"http://localhost:8080", "", "http://localhost:8080/api"},
		{"https://glove.example.com/", "", "https://glove.example.com/api"},
		{"localhost:8080", "/gateway/api", "http://localhost:8080/gateway/api"},
	}
	for _, tt := range tests {
		p, err := New(Config{Server: tt.server, APIPrefix: tt.prefix}, session.New())
		require.NoError(t, err)
		assert.Equal(t, tt.want, p.BaseURL())
	}
}

func TestPipeline_Headers(t *testing.T) {
	var got http.Header
	var path string
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		path = r.URL.Path
		writeEnvelope(w, 200, 200, "ok", nil)
	})
	ctx := context.Background()

	t.Run("anonymous", func(t *testing.T) {
		require.NoError(t, f.pipeline.Get(ctx, "/v1/devices", nil))
		assert.Empty(t, got.Get("Authorization"))
		assert.Equal(t, "/api/v1/devices", path)
		assert.Equal(t, "client-1", got.Get(HeaderClientID))
		assert.Equal(t, "glovectl/test", got.Get("User-Agent"))
		_, err := ulid.Parse(got.Get(HeaderRequestID))
		assert.NoError(t, err, "request id should be a ULID")
	})

	t.Run("authenticated", func(t *testing.T) {
		f.writer.Establish(domain.Credential{AccessToken: "tok-1"}, nil)
		require.NoError(t, f.pipeline.Get(ctx, "/v1/devices", nil))
		assert.Equal(t, "Bearer tok-1", got.Get("Authorization"))
	})

	t.Run("explicit credential wins", func(t *testing.T) {
		require.NoError(t, f.pipeline.Get(ctx, "/v1/devices", nil, WithCredential(domain.Credential{AccessToken: "other"})))
		assert.Equal(t, "Bearer other", got.Get("Authorization"))
	})
}

func TestPipeline_DecodesData(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.URL.Query().Get("page"))
		writeEnvelope(w, 200, 200, "ok", map[string]any{"id": 7, "username": "alice", "roles": []string{"USER"}})
	})

	var id domain.Identity
	err := f.pipeline.Get(context.Background(), "/v1/auth/me", &id, WithQuery(url.Values{"page": {"7"}}))
	require.NoError(t, err)
	assert.Equal(t, int64(7), id.ID)
	assert.True(t, id.Roles.Has("USER"))
	assert.Empty(t, f.notices.Notices())
	assert.True(t, f.progress.balanced())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues("GET", metric.OutcomeOK)))
}

func TestPipeline_PostSendsJSON(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body domain.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice", body.Username)
		writeEnvelope(w, 200, 200, "ok", nil)
	})

	err := f.pipeline.Post(context.Background(), "/v1/auth/login", domain.LoginRequest{Username: "alice", Password: "pw"}, nil)
	require.NoError(t, err)
}

func TestPipeline_SessionExpiredEnvelope(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 200, 401, "token expired", nil)
	})
	f.writer.Establish(domain.Credential{AccessToken: "old"}, &domain.Identity{Username: "alice"})

	err := f.pipeline.Get(context.Background(), "/v1/devices", nil)
	require.Error(t, err)

	assert.True(t, domain.IsKind(err, domain.KindUnauthorized))
	assert.Equal(t, "token expired", err.Error())
	assert.Equal(t, int32(1), f.expired.Load(), "expiry handler runs exactly once")
	assert.Equal(t, "old", f.rejected.Load(), "handler learns which credential was rejected")
	assert.False(t, f.state.IsAuthenticated(), "session cleared before the call returns")
	assert.Equal(t, []string{"token expired"}, f.notices.Messages())
	assert.True(t, f.progress.balanced())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.SessionsExpired))
}

func TestPipeline_TransportUnauthorized(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	f.writer.Establish(domain.Credential{AccessToken: "old"}, nil)

	err := f.pipeline.Get(context.Background(), "/v1/devices", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.Equal(t, int32(1), f.expired.Load())
	assert.False(t, f.state.IsAuthenticated())
}

func TestPipeline_ForbiddenKeepsSession(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 200, 403, "", nil)
	})
	f.writer.Establish(domain.Credential{AccessToken: "tok"}, nil)

	err := f.pipeline.Delete(context.Background(), "/v1/users/3", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.Equal(t, int32(0), f.expired.Load())
	assert.True(t, f.state.IsAuthenticated())
	assert.Equal(t, []string{"no permission"}, f.notices.Messages())
}

func TestPipeline_BusinessFailure(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 200, 500, "device id already exists", nil)
	})

	err := f.pipeline.Put(context.Background(), "/v1/devices/1", map[string]string{"name": "x"}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindBusiness))
	assert.Equal(t, []string{"device id already exists"}, f.notices.Messages())
	assert.True(t, f.progress.balanced())
}

func TestPipeline_Options(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 200, 401, "expired", nil)
	})
	f.writer.Establish(domain.Credential{AccessToken: "tok"}, nil)

	err := f.pipeline.Post(context.Background(), "/v1/auth/logout", nil, nil,
		WithQuiet(), WithoutExpiryHandling(), WithLabel("logging out"))
	require.Error(t, err)

	assert.Empty(t, f.notices.Notices(), "quiet call emits no notice")
	assert.Equal(t, int32(0), f.expired.Load(), "expiry handling disabled")
	assert.True(t, f.state.IsAuthenticated())
	assert.Equal(t, []string{"logging out"}, f.progress.labels)
}

func TestPipeline_Unreachable(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	f.server.Close()

	err := f.pipeline.Get(context.Background(), "/v1/devices", nil)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindUnreachable))
	assert.Equal(t, []string{"network connection failed"}, f.notices.Messages())
	assert.True(t, f.progress.balanced())
}

func TestPipeline_Timeout(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, func(c *Config) { c.Timeout = 50 * time.Millisecond })
	defer close(release)

	err := f.pipeline.Get(context.Background(), "/v1/devices", nil)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindTimeout), "got %v", err)
	assert.True(t, f.progress.balanced())
}

func TestPipeline_CancelledIsQuiet(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := f.pipeline.Get(ctx, "/v1/devices", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.notices.Notices())
}

func TestPipeline_RateLimit(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 200, 200, "ok", nil)
	}, func(c *Config) {
		c.RateLimit = 20
		c.RateBurst = 1
	})

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, f.pipeline.Get(context.Background(), "/v1/devices", nil))
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestPipeline_ConcurrentCallsBalanceProgress(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		if r.URL.Path == "/api/fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeEnvelope(w, 200, 200, "ok", nil)
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := "/ok"
			if i%2 == 0 {
				path = "/fail"
			}
			f.pipeline.Get(context.Background(), path, nil)
		}(i)
	}
	wg.Wait()

	assert.True(t, f.progress.balanced())
	assert.Equal(t, 20, f.progress.begins)
}
