package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Resource inventory metrics
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agentcore_nodes_total",
			Help: "Total number of registered data-plane nodes by status",
		},
		[]string{"status"},
	)

	PoolsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agentcore_pools_total",
			Help: "Total number of pool specs by lifecycle state",
		},
		[]string{"state"},
	)

	ReplicasTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agentcore_replicas_total",
			Help: "Total number of replica specs by lifecycle state",
		},
		[]string{"state"},
	)

	NexusesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agentcore_nexuses_total",
			Help: "Total number of nexus specs by lifecycle state",
		},
		[]string{"state"},
	)

	VolumesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agentcore_volumes_total",
			Help: "Total number of volume specs by lifecycle state",
		},
		[]string{"state"},
	)

	// Store metrics
	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentcore_store_operation_duration_seconds",
			Help:    "Duration of key-value store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	StoreOnline = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentcore_store_online",
			Help: "Whether the backing key-value store answered its last liveness probe (1 = online)",
		},
	)

	// gRPC data-plane client metrics
	GrpcCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentcore_grpc_calls_total",
			Help: "Total number of gRPC calls emitted to data-plane nodes by verb and outcome",
		},
		[]string{"verb", "outcome"},
	)

	GrpcCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentcore_grpc_call_duration_seconds",
			Help:    "Duration of gRPC calls to data-plane nodes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"verb"},
	)

	// Public request bus metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentcore_requests_total",
			Help: "Total number of public handler requests by verb and status",
		},
		[]string{"verb", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentcore_request_duration_seconds",
			Help:    "Public handler request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"verb"},
	)

	// Reconciler metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agentcore_reconciliation_duration_seconds",
			Help:    "Time taken for a reconciliation pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agentcore_reconciliation_cycles_total",
			Help: "Total number of reconciliation passes completed",
		},
	)

	ReconciledSpecsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentcore_reconciled_specs_total",
			Help: "Total number of dirty specs resolved by the reconciler, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(PoolsTotal)
	prometheus.MustRegister(ReplicasTotal)
	prometheus.MustRegister(NexusesTotal)
	prometheus.MustRegister(VolumesTotal)
	prometheus.MustRegister(StoreOperationDuration)
	prometheus.MustRegister(StoreOnline)
	prometheus.MustRegister(GrpcCallsTotal)
	prometheus.MustRegister(GrpcCallDuration)
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(ReconciledSpecsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
