package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of the push dispatch core.
type Metrics struct {
	// PushRequests counts dispatch outcomes per module and verdict.
	PushRequests *prometheus.CounterVec

	// SendLatency tracks vendor send round-trip time per module.
	SendLatency *prometheus.HistogramVec

	// RatelimitEntries and BlocklistEntries track the size of the
	// per-module state maps; updated by the module sweepers.
	RatelimitEntries *prometheus.GaugeVec
	BlocklistEntries *prometheus.GaugeVec
}

// NewMetrics creates and registers all metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PushRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pushgate_push_requests_total",
				Help: "Push dispatch outcomes per module and verdict",
			},
			[]string{"module", "verdict"},
		),

		SendLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pushgate_send_duration_seconds",
				Help:    "Vendor send round-trip time per module",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"module"},
		),

		RatelimitEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pushgate_ratelimit_entries",
				Help: "Tracked tokens in the per-module rate limiter",
			},
			[]string{"module"},
		),

		BlocklistEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pushgate_blocklist_entries",
				Help: "Tracked tokens in the per-module blocklist",
			},
			[]string{"module"},
		),
	}
}
