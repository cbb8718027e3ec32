// Package metrics exposes pipeline run measurements as Prometheus
// collectors on a private registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rshrf"

// Voxel status label values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Recorder collects run metrics. It satisfies pipeline.Recorder.
type Recorder struct {
	registry *prometheus.Registry

	voxels  *prometheus.CounterVec
	events  prometheus.Counter
	stages  *prometheus.HistogramVec
	lags    prometheus.Histogram
	runInfo *prometheus.GaugeVec
}

// NewRecorder registers the collectors on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		voxels: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "voxels_total",
				Help:      "Voxels processed, by outcome",
			},
			[]string{"status"},
		),
		events: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_detected_total",
				Help:      "Pseudo-events detected across successful voxels",
			},
		),
		stages: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Wall time per pipeline stage",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"stage"},
		),
		lags: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "selected_lag_samples",
				Help:      "Selected onset lag per voxel, in samples",
				Buckets:   prometheus.LinearBuckets(0, 2, 16),
			},
		),
		runInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_info",
				Help:      "Run identity and estimation mode; always 1",
			},
			[]string{"run_id", "mode"},
		),
	}

	r.registry.MustRegister(r.voxels, r.events, r.stages, r.lags, r.runInfo)

	return r
}

// Registry returns the private registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// SetRunInfo labels the run.
func (r *Recorder) SetRunInfo(runID, mode string) {
	r.runInfo.WithLabelValues(runID, mode).Set(1)
}

func (r *Recorder) StageDuration(stage string, d time.Duration) {
	r.stages.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *Recorder) VoxelDone(ok bool) {
	r.voxels.WithLabelValues(status(ok)).Inc()
}

func (r *Recorder) EventsDetected(n int) {
	r.events.Add(float64(n))
}

func (r *Recorder) SelectedLag(lag int) {
	r.lags.Observe(float64(lag))
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

func status(ok bool) string {
	if ok {
		return StatusOK
	}

	return StatusFailed
}
