// Package metrics exposes download counters for the status endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/olgkv/drivefetch/internal/domain"
)

// Recorder holds the collectors. A nil *Recorder records nothing.
type Recorder struct {
	tasks    *prometheus.CounterVec
	bytes    prometheus.Counter
	inFlight prometheus.Gauge
	duration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		tasks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drivefetch",
			Name:      "tasks_total",
			Help:      "Finished download tasks by terminal status.",
		}, []string{"status"}),
		bytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "drivefetch",
			Name:      "bytes_downloaded_total",
			Help:      "Bytes written to disk.",
		}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "drivefetch",
			Name:      "tasks_in_flight",
			Help:      "Tasks currently held by a worker.",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "drivefetch",
			Name:      "task_duration_seconds",
			Help:      "Wall time from task start to terminal state.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
	}
}

func (r *Recorder) TaskStarted() {
	if r == nil {
		return
	}
	r.inFlight.Inc()
}

func (r *Recorder) BytesWritten(n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.bytes.Add(float64(n))
}

func (r *Recorder) TaskFinished(status domain.TaskStatus, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.inFlight.Dec()
	r.tasks.WithLabelValues(string(status)).Inc()
	r.duration.Observe(elapsed.Seconds())
}
