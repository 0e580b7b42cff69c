// Package metrics exposes solver counters and timings to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rigsolve"

// Recorder holds the solver metrics of one registry. A nil Recorder
// records nothing.
type Recorder struct {
	frames      *prometheus.CounterVec
	constraints *prometheus.CounterVec
	duration    prometheus.Histogram
	writebacks  prometheus.Counter
}

// New registers the solver metrics on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		// Labels: status (ok, error)
		frames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames solved by status",
		}, []string{"status"}),
		// Labels: type (constraint type key)
		constraints: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "constraints_evaluated_total",
			Help:      "Unmuted constraints solved, by type",
		}, []string{"type"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_duration_seconds",
			Help:      "Time to evaluate one frame of a rig",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}),
		writebacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writebacks_applied_total",
			Help:      "Write-backs stored on original constraint stacks",
		}),
	}
}

// ObserveFrame records a solved frame.
func (r *Recorder) ObserveFrame(d time.Duration, evaluated map[string]int, applied int) {
	if r == nil {
		return
	}
	r.frames.WithLabelValues("ok").Inc()
	r.duration.Observe(d.Seconds())
	for typ, n := range evaluated {
		r.constraints.WithLabelValues(typ).Add(float64(n))
	}
	if applied > 0 {
		r.writebacks.Add(float64(applied))
	}
}

// ObserveFailure records a frame that could not be solved.
func (r *Recorder) ObserveFailure() {
	if r == nil {
		return
	}
	r.frames.WithLabelValues("error").Inc()
}
