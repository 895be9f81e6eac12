// Package metrics exports fleet activity to Prometheus.
//
// Gauges follow the most recent fleet snapshot; counters are driven by the
// notices the fleet publishes and by operator commands.
package metrics
