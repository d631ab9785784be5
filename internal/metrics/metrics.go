// Package metrics exposes the daemon's Prometheus instrumentation. Counters
// are package-level so the resolver, queue, and refresh loop can tick them
// without plumbing a registry through every constructor.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ResolveTotal counts key resolutions by outcome
	// (local, pending, not_applicable, not_found).
	ResolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialtone_resolve_total",
		Help: "Key resolutions by outcome.",
	}, []string{"outcome"})

	// DownloadTotal counts queue transfer attempts by result (ok, failed).
	DownloadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialtone_download_total",
		Help: "Media download attempts by result.",
	}, []string{"result"})

	// DownloadBytes totals bytes written by completed downloads.
	DownloadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialtone_download_bytes_total",
		Help: "Bytes written by completed media downloads.",
	})

	// RefreshTotal counts registry refresh attempts by result (ok, failed, skipped).
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialtone_registry_refresh_total",
		Help: "Registry refresh attempts by result.",
	}, []string{"result"})

	// QueueDepth is the number of items still waiting in the download queue.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dialtone_queue_depth",
		Help: "Download queue items not yet processed.",
	})

	// RegistryEntries is the number of loaded registry entries.
	RegistryEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dialtone_registry_entries",
		Help: "Loaded key registry entries.",
	})
)

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
