// Package internaldefs holds the metric names, help strings and bucket bounds
// shared by the Prometheus and OpenTelemetry exporters, so both expose the same
// series.
package internaldefs
