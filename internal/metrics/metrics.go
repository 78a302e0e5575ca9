// Package metrics exposes Prometheus counters for the ingestion pipelines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LinesRead counts raw lines fetched from remote files.
	LinesRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deadwatch_lines_read_total",
		Help: "Raw lines read from remote files.",
	}, []string{"monitor"})

	// EventsEmitted counts normalized events accepted after deduplication.
	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deadwatch_events_emitted_total",
		Help: "Normalized events delivered to sinks.",
	}, []string{"monitor", "kind"})

	// DuplicatesSuppressed counts events dropped by the dedup coordinator.
	DuplicatesSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deadwatch_duplicates_suppressed_total",
		Help: "Events suppressed as duplicates.",
	}, []string{"monitor"})

	// ParseSkips counts lines that matched no known format.
	ParseSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deadwatch_parse_skips_total",
		Help: "Lines skipped by the extractors.",
	}, []string{"monitor"})

	// Reconnects counts transport reconnect attempts.
	Reconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deadwatch_reconnects_total",
		Help: "Transport reconnect attempts.",
	}, []string{"monitor"})
)
