package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry creates a private Prometheus registry with the standard
// process and runtime collectors attached.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler serving the registry in the Prometheus
// exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics holds the collector's instrumentation.
type AppMetrics struct {
	LinkBytesRead      prometheus.Counter
	LinkBytesDiscarded prometheus.Counter     // garbage ahead of frame delimiters
	FramesExtracted    prometheus.Counter
	ChecksumDrops      prometheus.Counter
	UnrecognizedDrops  prometheus.Counter
	DecodeErrors       prometheus.Counter
	RecordsDecoded     prometheus.Counter
	RecordsByType      *prometheus.CounterVec // labels: type
	RecordsStored      prometheus.Counter
	ConfigMessagesSent prometheus.Counter
}

// NewAppMetrics registers and returns the collector metrics.
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		LinkBytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "link_bytes_read_total",
			Help: "Total bytes read from the diag link.",
		}),
		LinkBytesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "link_bytes_discarded_total",
			Help: "Total garbage bytes dropped ahead of frame delimiters.",
		}),
		FramesExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "frames_extracted_total",
			Help: "Total complete frames extracted from the byte stream.",
		}),
		ChecksumDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "frames_checksum_drop_total",
			Help: "Total frames dropped for a failed frame check sequence.",
		}),
		UnrecognizedDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "frames_unrecognized_drop_total",
			Help: "Total frames dropped for an unrecognized payload family.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "record_decode_error_total",
			Help: "Total classified packets the record decoder rejected.",
		}),
		RecordsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "records_decoded_total",
			Help: "Total log records decoded.",
		}),
		RecordsByType: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "records_by_type_total",
			Help: "Decoded log records by catalog type name.",
		}, []string{"type"}),
		RecordsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "records_stored_total",
			Help: "Total log records written to the capture store.",
		}),
		ConfigMessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "config_messages_sent_total",
			Help: "Total log configuration messages written to the link.",
		}),
	}
	reg.MustRegister(
		m.LinkBytesRead, m.LinkBytesDiscarded, m.FramesExtracted,
		m.ChecksumDrops, m.UnrecognizedDrops, m.DecodeErrors,
		m.RecordsDecoded, m.RecordsByType, m.RecordsStored, m.ConfigMessagesSent,
	)
	return m
}
