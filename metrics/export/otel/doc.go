// Package otel publishes engine counters through an OpenTelemetry meter.
//
// Each counter becomes an Int64ObservableCounter. The authorize latency
// histogram is reported as cumulative bucket gauges carrying an "le"
// attribute, plus a sample count gauge. The caller owns the MeterProvider.
package otel
