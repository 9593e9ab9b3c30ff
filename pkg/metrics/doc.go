// Package metrics exposes Prometheus metrics for the core agent: resource
// inventory gauges (nodes/pools/replicas/nexuses/volumes by state), store
// and gRPC call latency histograms, and the reconciler's cycle counters.
// Metrics are registered at package init and served over HTTP via Handler.
package metrics
