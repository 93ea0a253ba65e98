// Package metrics exposes Prometheus instrumentation for dispatch, delivery,
// live connections and the file sweeper.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DispatchTotal counts dispatch attempts by outcome: "accepted" or a
	// rejection code such as "not-friends" or "quota-exceeded".
	DispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relaychat_dispatch_total",
		Help: "Message dispatch attempts by outcome",
	}, []string{"outcome"})

	DispatchLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "relaychat_dispatch_latency_seconds",
		Help:    "Message dispatch latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	FlaggedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relaychat_flagged_total",
		Help: "Messages flagged by the moderation scanner",
	})

	// ModerationFailOpen counts scans that failed and let the message through.
	ModerationFailOpen = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relaychat_moderation_fail_open_total",
		Help: "Moderation scans that failed and were treated as clean",
	})

	LiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relaychat_live_connections",
		Help: "Current number of registered duplex connections",
	})

	// DeliveriesTotal counts per-connection pushes: "ok" or "failed".
	DeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relaychat_deliveries_total",
		Help: "Frames pushed to live connections",
	}, []string{"result"})

	FilesSweptTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relaychat_files_swept_total",
		Help: "Expired ephemeral files removed by the sweeper",
	})
)

func init() {
	prometheus.MustRegister(
		DispatchTotal,
		DispatchLatency,
		FlaggedTotal,
		ModerationFailOpen,
		LiveConnections,
		DeliveriesTotal,
		FilesSweptTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
