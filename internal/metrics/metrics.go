package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ingestedFiles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pdfassembly",
			Name:      "ingested_files_total",
			Help:      "Total source files successfully ingested",
		},
	)

	ingestedPages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pdfassembly",
			Name:      "ingested_pages_total",
			Help:      "Total pages appended to ledgers across all ingests",
		},
	)

	ingestFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pdfassembly",
			Name:      "ingest_failures_total",
			Help:      "Total ingest batches aborted by a failing file",
		},
	)

	assemblies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfassembly",
			Name:      "assemblies_total",
			Help:      "Total save operations by result (success, error)",
		},
		[]string{"result"},
	)

	assemblyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pdfassembly",
			Name:      "assembly_duration_seconds",
			Help:      "Duration of output document assembly",
			Buckets:   prometheus.DefBuckets,
		},
	)

	retouchReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfassembly",
			Name:      "retouch_requests_total",
			Help:      "Total retouch service requests by provider, model and result",
		},
		[]string{"provider", "model", "result"},
	)

	retouchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfassembly",
			Name:      "retouch_request_duration_seconds",
			Help:      "Duration of retouch service requests by provider and model",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "model"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pdfassembly",
			Name:      "active_sessions",
			Help:      "Number of live editing sessions",
		},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(ingestedFiles, ingestedPages, ingestFailures, assemblies, assemblyDuration, retouchReqs, retouchLatency, activeSessions)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveIngestedFile(pages int) {
	ingestedFiles.Inc()
	ingestedPages.Add(float64(pages))
}

func IncIngestFailed() { ingestFailures.Inc() }

func IncAssembly(result string) { assemblies.WithLabelValues(result).Inc() }

func ObserveAssemblyDuration(dur time.Duration) { assemblyDuration.Observe(dur.Seconds()) }

func ObserveRetouch(provider, model, result string, dur time.Duration) {
	retouchReqs.WithLabelValues(provider, model, result).Inc()
	retouchLatency.WithLabelValues(provider, model).Observe(dur.Seconds())
}

func SetActiveSessions(n int) { activeSessions.Set(float64(n)) }
