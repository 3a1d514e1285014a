// Package prometheus provides Prometheus collectors for tokenward metrics.
//
// [NewPrometheusExporter] accepts a [tokenward.Keeper] and exposes an [http.Handler]
// that renders all tokenward counters and histograms in Prometheus text exposition format.
// Counter names are prefixed tokenward_*_total; the single histogram is
// tokenward_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate keeper state.
package prometheus
