// Package prometheus exposes engine counters as a prometheus.Collector.
//
// The collector reads a fresh snapshot on every scrape. Register it with your
// own registry, or mount Collector.Handler, which serves a private registry
// holding only the engine series. Counter names are gosession_*_total and the
// authorize latency histogram is gosession_authorize_latency_seconds.
package prometheus
