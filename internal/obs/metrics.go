package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the six collectors tracking pipeline throughput. They are
// registered against a private registry (not the global default one) so
// multiple Ctx instances — one per test, say — never collide on
// duplicate registration, so tests can each instantiate a fresh one.
type Metrics struct {
	Registry *prometheus.Registry

	TargetsProcessed *prometheus.CounterVec
	FilesDownloaded  *prometheus.CounterVec
	BytesDownloaded  *prometheus.CounterVec
	Errors           *prometheus.CounterVec
	DownloadDuration *prometheus.HistogramVec
	PipelineActive   *prometheus.GaugeVec
}

// NewMetrics constructs and registers a fresh set of collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		TargetsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dc_targets_processed_total",
			Help: "Targets processed by pipeline and terminal status.",
		}, []string{"pipeline", "status"}),
		FilesDownloaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dc_files_downloaded_total",
			Help: "Files successfully downloaded by pipeline and strategy.",
		}, []string{"pipeline", "strategy"}),
		BytesDownloaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dc_bytes_downloaded_total",
			Help: "Bytes downloaded by pipeline.",
		}, []string{"pipeline"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dc_errors_total",
			Help: "Per-target errors by pipeline and error type.",
		}, []string{"pipeline", "error_type"}),
		DownloadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dc_download_duration_seconds",
			Help:    "Download duration by pipeline and strategy.",
			Buckets: prometheus.DefBuckets,
		}, []string{"pipeline", "strategy"}),
		PipelineActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dc_pipeline_active",
			Help: "1 while a pipeline run is in progress, 0 otherwise.",
		}, []string{"pipeline"}),
	}
	reg.MustRegister(m.TargetsProcessed, m.FilesDownloaded, m.BytesDownloaded,
		m.Errors, m.DownloadDuration, m.PipelineActive)
	return m
}
