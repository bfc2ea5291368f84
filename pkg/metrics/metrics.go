// Package metrics exposes Prometheus counters for pipeline runs.
//
// A Recorder owns one set of metric vectors registered with one
// prometheus.Registerer. The command line front-end registers a Recorder
// with the default registry and writes it to a text file after the run;
// tests register with a fresh prometheus.NewRegistry so runs never collide.
//
// # Basic Usage
//
//	rec, err := metrics.NewRecorder(prometheus.NewRegistry())
//	run := rec.Run("orders")
//	run.Read()
//	run.Written()
//	run.Finish("completed", time.Since(start))
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "recordflow"

// Recorder holds the metric vectors shared by all runs of one process.
// It is safe for concurrent use by independent runs.
type Recorder struct {
	recordsRead     *prometheus.CounterVec
	recordsWritten  *prometheus.CounterVec
	recordsFiltered *prometheus.CounterVec
	recordFailures  *prometheus.CounterVec
	runs            *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	activeRuns      prometheus.Gauge
}

// NewRecorder creates the metric vectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		recordsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_read_total",
			Help:      "Records taken from producers, including records that failed",
		}, []string{"pipeline"}),
		recordsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Records accepted by consumers",
		}, []string{"pipeline"}),
		recordsFiltered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_filtered_total",
			Help:      "Records dropped by filter stages",
		}, []string{"pipeline"}),
		recordFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_failures_total",
			Help:      "Per-record failures by error kind",
		}, []string{"pipeline", "kind"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished pipeline runs by outcome",
		}, []string{"pipeline", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall clock duration of pipeline runs",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"pipeline"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Pipeline runs in progress",
		}),
	}

	collectors := []prometheus.Collector{
		r.recordsRead, r.recordsWritten, r.recordsFiltered, r.recordFailures,
		r.runs, r.runDuration, r.activeRuns,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Run starts recording one pipeline run. A nil Recorder returns a Run that
// only counts locally.
func (r *Recorder) Run(pipeline string) *Run {
	run := &Run{recorder: r, pipeline: pipeline, start: time.Now()}
	if r != nil {
		r.activeRuns.Inc()
	}
	return run
}

// Run records the counters of one pipeline run. Its methods are called from
// the single goroutine driving the run; the totals may be read concurrently.
type Run struct {
	recorder *Recorder
	pipeline string
	start    time.Time
	finished atomic.Bool

	read     atomic.Uint64
	written  atomic.Uint64
	filtered atomic.Uint64
	failed   atomic.Uint64
}

// Read counts one record taken from the producer
func (r *Run) Read() {
	r.read.Add(1)
	if r.recorder != nil {
		r.recorder.recordsRead.WithLabelValues(r.pipeline).Inc()
	}
}

// Written counts one record accepted by the consumer
func (r *Run) Written() {
	r.written.Add(1)
	if r.recorder != nil {
		r.recorder.recordsWritten.WithLabelValues(r.pipeline).Inc()
	}
}

// Filtered counts one record dropped by a filter
func (r *Run) Filtered() {
	r.filtered.Add(1)
	if r.recorder != nil {
		r.recorder.recordsFiltered.WithLabelValues(r.pipeline).Inc()
	}
}

// Failed counts one per-record failure of the given kind
func (r *Run) Failed(kind string) {
	r.failed.Add(1)
	if r.recorder != nil {
		r.recorder.recordFailures.WithLabelValues(r.pipeline, kind).Inc()
	}
}

// Finish records the outcome and duration. Only the first call counts.
func (r *Run) Finish(outcome string, duration time.Duration) {
	if !r.finished.CompareAndSwap(false, true) {
		return
	}
	if r.recorder == nil {
		return
	}
	r.recorder.activeRuns.Dec()
	r.recorder.runs.WithLabelValues(r.pipeline, outcome).Inc()
	r.recorder.runDuration.WithLabelValues(r.pipeline).Observe(duration.Seconds())
}

// Throughput returns written records per second since the run started
func (r *Run) Throughput() float64 {
	elapsed := time.Since(r.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(r.written.Load()) / elapsed
}

// Totals returns the local counters
func (r *Run) Totals() (read, written, filtered, failed uint64) {
	return r.read.Load(), r.written.Load(), r.filtered.Load(), r.failed.Load()
}

// WriteTextfile writes every metric gathered by g to path in the
// Prometheus text format, for node exporter textfile collection.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
