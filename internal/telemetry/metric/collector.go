// Package metric provides Prometheus metrics for glovectl.
package metric

import "github.com/prometheus/client_golang/prometheus"

// SessionStats is a point-in-time view of the session.
type SessionStats struct {
	Authenticated    bool
	IdentityResolved bool
	Generation       uint64
}

// SessionCollector reports the live session state at scrape time.
type SessionCollector struct {
	stats func() SessionStats

	authenticated *prometheus.Desc
	resolved      *prometheus.Desc
	generation    *prometheus.Desc
}

// NewSessionCollector creates a collector that calls stats on every scrape.
func NewSessionCollector(stats func() SessionStats) *SessionCollector {
	return &SessionCollector{
		stats: stats,
		authenticated: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "session", "authenticated"),
			"1 when a credential is held", nil, nil),
		resolved: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "session", "identity_resolved"),
			"1 when the identity of the session is known", nil, nil),
		generation: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "session", "generation"),
			"Number of credential changes since start", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *SessionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.authenticated
	ch <- c.resolved
	ch <- c.generation
}

// Collect implements prometheus.Collector.
func (c *SessionCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.authenticated, prometheus.GaugeValue, boolToFloat(s.Authenticated))
	ch <- prometheus.MustNewConstMetric(c.resolved, prometheus.GaugeValue, boolToFloat(s.IdentityResolved))
	ch <- prometheus.MustNewConstMetric(c.generation, prometheus.GaugeValue, float64(s.Generation))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
