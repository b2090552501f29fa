// Package observability exposes Prometheus watermarks and counters for the
// sync repository. Metrics are registered on the default registry at init
// and served by [Handler].
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	remoteFetchGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "repsync",
		Subsystem: "remote",
		Name:      "last_fetch_success_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful remote fetch.",
	}, []string{"kind"})
	remoteFetchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repsync",
		Subsystem: "remote",
		Name:      "fetch_failures_total",
		Help:      "Remote fetches that failed and fell back to local data.",
	}, []string{"kind"})
	remoteWriteFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repsync",
		Subsystem: "remote",
		Name:      "write_failures_total",
		Help:      "Background remote saves and deletes that failed.",
	}, []string{"kind", "op"})
	reconciledRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repsync",
		Subsystem: "reconcile",
		Name:      "records_total",
		Help:      "One-sided records copied by background reconciliation.",
	}, []string{"kind", "direction", "result"})
	reconcileGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "repsync",
		Subsystem: "reconcile",
		Name:      "last_completed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completed reconciliation.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(remoteFetchGauge, remoteFetchFailures, remoteWriteFailures, reconciledRecords, reconcileGauge)
}

// RecordRemoteFetch updates the fetch watermark, or the failure counter when
// ok is false.
func RecordRemoteFetch(kind string, ok bool, ts time.Time) {
	if !ok {
		remoteFetchFailures.WithLabelValues(kind).Inc()
		return
	}
	remoteFetchGauge.WithLabelValues(kind).Set(float64(ts.Unix()))
}

// RecordRemoteWriteFailure counts a failed background save or delete.
func RecordRemoteWriteFailure(kind, op string) {
	remoteWriteFailures.WithLabelValues(kind, op).Inc()
}

// RecordReconcile adds the outcome of one reconciliation.
func RecordReconcile(kind string, uploaded, uploadFailed, downloaded, downloadFailed int, ts time.Time) {
	add := func(direction, result string, n int) {
		if n > 0 {
			reconciledRecords.WithLabelValues(kind, direction, result).Add(float64(n))
		}
	}
	add("upload", "ok", uploaded)
	add("upload", "failed", uploadFailed)
	add("download", "ok", downloaded)
	add("download", "failed", downloadFailed)
	reconcileGauge.WithLabelValues(kind).Set(float64(ts.Unix()))
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
