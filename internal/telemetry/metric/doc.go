// Package metric provides Prometheus metrics for kvwait.
//
//   - prometheus.go: the metric registry, recorder methods and /metrics handler
//   - collector.go: a collector that samples storage engine counts at scrape time
//
// All recorder methods are safe to call on a nil *Registry, so components
// built without metrics need no special casing.
package metric
