// Package metrics exposes sweep counters on a private prometheus registry.
// A cleanup run is a short-lived process, so metrics are written to a
// node_exporter textfile rather than scraped.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cromwell_cleaner"

type Metrics struct {
	registry *prometheus.Registry

	ObjectsListed   prometheus.Counter
	ListPages       prometheus.Counter
	ListRetries     prometheus.Counter
	Classified      *prometheus.CounterVec
	Deletions       *prometheus.CounterVec
	DeleteRetries   prometheus.Counter
	DeleteDuration  prometheus.Histogram
	BytesReclaimed  prometheus.Counter
	LastRunSuccess  prometheus.Gauge
	LastRunDuration prometheus.Gauge
	LastRunTime     prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ObjectsListed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "list", Name: "objects_total",
			Help: "Objects returned by bucket listing.",
		}),
		ListPages: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "list", Name: "pages_total",
			Help: "Listing pages fetched.",
		}),
		ListRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "list", Name: "retries_total",
			Help: "Listing page requests retried after a transient error.",
		}),
		Classified: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "classify", Name: "objects_total",
			Help: "Objects classified, by action and reason.",
		}, []string{"action", "reason"}),
		Deletions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "delete", Name: "outcomes_total",
			Help: "Deletion tasks by terminal state.",
		}, []string{"state"}),
		DeleteRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "delete", Name: "retries_total",
			Help: "Delete requests retried after a transient error.",
		}),
		DeleteDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "delete", Name: "request_duration_seconds",
			Help:    "Latency of individual delete requests.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		BytesReclaimed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "delete", Name: "bytes_reclaimed_total",
			Help: "Size of successfully deleted objects.",
		}),
		LastRunSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_run_success",
			Help: "1 if the last run finished without failures.",
		}),
		LastRunDuration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
		LastRunTime: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRun records the run-level gauges.
func (m *Metrics) ObserveRun(success bool, d time.Duration, finished time.Time) {
	if success {
		m.LastRunSuccess.Set(1)
	} else {
		m.LastRunSuccess.Set(0)
	}
	m.LastRunDuration.Set(d.Seconds())
	m.LastRunTime.Set(float64(finished.Unix()))
}

// WriteTextfile writes every metric in the text exposition format, atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
