// Package metrics exposes Prometheus gauges and counters for sync height,
// scan lag, and request latency, the ambient observability surface carried
// regardless of which spec.md Non-goals exclude a dedicated monitoring
// component. Grounded on orbas1-Synnergy's core.HealthLogger, the only
// Prometheus usage in the retrieved corpus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every gauge/counter this daemon reports.
type Registry struct {
	reg *prometheus.Registry

	LocalBlockHeight   prometheus.Gauge
	NetworkBlockHeight prometheus.Gauge
	ScanLagBlocks       prometheus.Gauge
	AccountsScanned     prometheus.Counter
	RequestsTotal       *prometheus.CounterVec
	RequestLatencySecs  *prometheus.HistogramVec
	SubmissionsAccepted prometheus.Counter
	SubmissionsRejected prometheus.Counter
}

// New builds and registers every metric.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		LocalBlockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "walletd_local_block_height",
			Help: "Highest block index applied to the local Block Store.",
		}),
		NetworkBlockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "walletd_network_block_height",
			Help: "Highest block index reported by peers.",
		}),
		ScanLagBlocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "walletd_scan_lag_blocks",
			Help: "Blocks behind the local tip the slowest tracked account's scan cursor sits.",
		}),
		AccountsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walletd_accounts_scanned_total",
			Help: "Account-scan passes completed across all accounts.",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "walletd_requests_total",
			Help: "Request Dispatcher calls by method and outcome.",
		}, []string{"method", "outcome"}),
		RequestLatencySecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "walletd_request_latency_seconds",
			Help:    "Request Dispatcher handler latency by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		SubmissionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walletd_submissions_accepted_total",
			Help: "Transaction proposals accepted by a peer.",
		}),
		SubmissionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walletd_submissions_rejected_total",
			Help: "Transaction proposals rejected by a peer.",
		}),
	}

	reg.MustRegister(
		r.LocalBlockHeight, r.NetworkBlockHeight, r.ScanLagBlocks, r.AccountsScanned,
		r.RequestsTotal, r.RequestLatencySecs, r.SubmissionsAccepted, r.SubmissionsRejected,
	)
	return r
}

// Handler returns the /metrics HTTP handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveRequest records one Request Dispatcher call's outcome and latency.
func (r *Registry) ObserveRequest(method, outcome string, latencySecs float64) {
	r.RequestsTotal.WithLabelValues(method, outcome).Inc()
	r.RequestLatencySecs.WithLabelValues(method).Observe(latencySecs)
}
