package metrics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"alphareel/internal/encoding"
)

// Collector owns a private registry with job and runtime metrics. It
// implements encoding.Recorder and codecruntime.Observer.
type Collector struct {
	registry *prometheus.Registry

	jobsTotal      *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	framesTotal    prometheus.Counter
	inputBytes     prometheus.Counter
	outputBytes    *prometheus.CounterVec
	runtimeLoads   *prometheus.CounterVec
	runtimeLoadDur prometheus.Histogram
	runtimeResets  prometheus.Counter
}

// New builds a Collector and registers every metric.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alphareel_jobs_total",
			Help: "Total encoding jobs by codec and outcome",
		}, []string{"codec", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "alphareel_job_duration_seconds",
			Help:    "Wall time of encoding jobs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
		}, []string{"codec"}),
		framesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alphareel_frames_total",
			Help: "Total frames submitted to encoding jobs",
		}),
		inputBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alphareel_input_bytes_total",
			Help: "Total frame bytes submitted to encoding jobs",
		}),
		outputBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alphareel_output_bytes_total",
			Help: "Total artifact bytes produced by successful jobs",
		}, []string{"codec"}),
		runtimeLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alphareel_runtime_loads_total",
			Help: "Codec runtime load attempts by result",
		}, []string{"result"}),
		runtimeLoadDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "alphareel_runtime_load_duration_seconds",
			Help:    "Time spent loading the codec runtime",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		runtimeResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alphareel_runtime_resets_total",
			Help: "Codec runtime handles dropped after a crash",
		}),
	}
	c.registry.MustRegister(
		c.jobsTotal,
		c.jobDuration,
		c.framesTotal,
		c.inputBytes,
		c.outputBytes,
		c.runtimeLoads,
		c.runtimeLoadDur,
		c.runtimeResets,
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordJob implements encoding.Recorder.
func (c *Collector) RecordJob(_ context.Context, report encoding.JobReport) {
	codec := labelOrUnknown(report.Codec)
	outcome := labelOrUnknown(report.Outcome)
	c.jobsTotal.WithLabelValues(codec, outcome).Inc()
	c.jobDuration.WithLabelValues(codec).Observe(report.Duration.Seconds())
	if report.Frames > 0 {
		c.framesTotal.Add(float64(report.Frames))
	}
	if report.InputBytes > 0 {
		c.inputBytes.Add(float64(report.InputBytes))
	}
	if report.Outcome == encoding.OutcomeSuccess && report.OutputBytes > 0 {
		c.outputBytes.WithLabelValues(codec).Add(float64(report.OutputBytes))
	}
}

// RuntimeLoaded implements codecruntime.Observer.
func (c *Collector) RuntimeLoaded(elapsed time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.runtimeLoads.WithLabelValues(result).Inc()
	c.runtimeLoadDur.Observe(elapsed.Seconds())
}

// RuntimeReset implements codecruntime.Observer.
func (c *Collector) RuntimeReset() {
	c.runtimeResets.Inc()
}

// WriteTextfile writes the registry to path in the textfile collector format.
// The write is atomic.
func (c *Collector) WriteTextfile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("metrics textfile path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func labelOrUnknown(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
