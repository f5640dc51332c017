// Package metric provides Prometheus metrics for glovectl.
package metric

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

const namespace = "glovectl"

// Outcome label for requests that succeeded.
const OutcomeOK = "ok"

// Registry holds all client metrics in a private Prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	TransferBytes    *prometheus.CounterVec

	// Session metrics
	SessionsEstablished prometheus.Counter
	SessionsExpired     prometheus.Counter
	Logouts             prometheus.Counter
	IdentityFetches     *prometheus.CounterVec

	// Navigation metrics
	Navigations *prometheus.CounterVec
}

// NewRegistry creates a registry with all client metrics registered,
// plus the Go runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Outbound requests by method and outcome kind",
		}, []string{"method", "outcome"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Outbound request latency",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Outbound requests currently in flight",
		}),

		TransferBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "transfer_bytes_total",
			Help:      "Bytes moved by upload and download calls",
		}, []string{"direction"}),

		SessionsEstablished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "established_total",
			Help:      "Sessions established by login, registration or refresh",
		}),

		SessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "expired_total",
			Help:      "Sessions torn down because the service rejected the credential",
		}),

		Logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "logouts_total",
			Help:      "Logout operations that cleared a session",
		}),

		IdentityFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "identity_fetches_total",
			Help:      "Identity fetches by result (applied, stale, failed)",
		}, []string{"result"}),

		Navigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "decisions_total",
			Help:      "Navigation guard decisions by kind",
		}, []string{"decision"}),
	}

	r.registry.MustRegister(
		r.RequestsTotal,
		r.RequestDuration,
		r.RequestsInFlight,
		r.TransferBytes,
		r.SessionsEstablished,
		r.SessionsExpired,
		r.Logouts,
		r.IdentityFetches,
		r.Navigations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// MustRegister adds extra collectors to the registry.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.registry.MustRegister(cs...)
}

// ObserveRequest records one finished request.
func (r *Registry) ObserveRequest(method, outcome string, elapsed time.Duration) {
	r.RequestsTotal.WithLabelValues(method, outcome).Inc()
	r.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// AddTransfer records bytes moved by an upload ("up") or download ("down").
func (r *Registry) AddTransfer(direction string, n int64) {
	if n > 0 {
		r.TransferBytes.WithLabelValues(direction).Add(float64(n))
	}
}

// IncSessionEstablished increments the established sessions counter.
func (r *Registry) IncSessionEstablished() {
	r.SessionsEstablished.Inc()
}

// IncSessionExpired increments the expired sessions counter.
func (r *Registry) IncSessionExpired() {
	r.SessionsExpired.Inc()
}

// IncLogout increments the logout counter.
func (r *Registry) IncLogout() {
	r.Logouts.Inc()
}

// IncIdentityFetch counts an identity fetch by result.
func (r *Registry) IncIdentityFetch(result string) {
	r.IdentityFetches.WithLabelValues(result).Inc()
}

// IncNavigation counts a guard decision.
func (r *Registry) IncNavigation(decision string) {
	r.Navigations.WithLabelValues(decision).Inc()
}

// Gatherer exposes the underlying registry for tests and exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns an HTTP handler serving this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Dump writes every metric family in the Prometheus text format.
// When glovectlOnly is set, runtime and process families are skipped.
func (r *Registry) Dump(w io.Writer, glovectlOnly bool) error {
	families, err := r.registry.Gather()
	if err != nil {
		return err
	}

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if glovectlOnly && !strings.HasPrefix(mf.GetName(), namespace+"_") {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

