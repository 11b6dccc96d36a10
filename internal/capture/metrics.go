package capture

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Frame results used as the "result" label
const (
	resultPitch   = "pitch"
	resultSilence = "silence"
)

// Metrics contains Prometheus metrics for capture sessions.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	framesTotal       *prometheus.CounterVec
	sessionsTotal     *prometheus.CounterVec
	readErrorsTotal   prometheus.Counter
	detectionDuration prometheus.Histogram
	inputLevel        prometheus.Gauge
}

// NewMetrics creates and registers capture metrics
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		framesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "precisepitch_capture_frames_total",
				Help: "Total number of processed capture frames",
			},
			[]string{"result"}, // result: pitch, silence
		),
		sessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "precisepitch_capture_sessions_total",
				Help: "Total number of capture session transitions",
			},
			[]string{"event"}, // event: start, stop
		),
		readErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "precisepitch_capture_read_errors_total",
				Help: "Total number of device read failures that ended a session",
			},
		),
		detectionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "precisepitch_detection_duration_seconds",
				Help:    "Time spent detecting, stabilizing and classifying one buffer",
				Buckets: prometheus.ExponentialBuckets(0.00005, 2, 12), // 50us to ~100ms
			},
		),
		inputLevel: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "precisepitch_input_level_dbfs",
				Help: "Peak input level of the last processed buffer",
			},
		),
	}

	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements prometheus.Collector
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.framesTotal.Describe(ch)
	m.sessionsTotal.Describe(ch)
	m.readErrorsTotal.Describe(ch)
	m.detectionDuration.Describe(ch)
	m.inputLevel.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.framesTotal.Collect(ch)
	m.sessionsTotal.Collect(ch)
	m.readErrorsTotal.Collect(ch)
	m.detectionDuration.Collect(ch)
	m.inputLevel.Collect(ch)
}

// RecordFrame counts one delivered frame
func (m *Metrics) RecordFrame(hasPitch bool) {
	if m == nil {
		return
	}
	result := resultSilence
	if hasPitch {
		result = resultPitch
	}
	m.framesTotal.WithLabelValues(result).Inc()
}

// RecordSessionStart counts a session start
func (m *Metrics) RecordSessionStart() {
	if m == nil {
		return
	}
	m.sessionsTotal.WithLabelValues("start").Inc()
}

// RecordSessionStop counts a session end, explicit or not
func (m *Metrics) RecordSessionStop() {
	if m == nil {
		return
	}
	m.sessionsTotal.WithLabelValues("stop").Inc()
}

// RecordReadError counts a failed device read
func (m *Metrics) RecordReadError() {
	if m == nil {
		return
	}
	m.readErrorsTotal.Inc()
}

// RecordDetection records the processing time of one buffer in seconds
func (m *Metrics) RecordDetection(seconds float64) {
	if m == nil {
		return
	}
	m.detectionDuration.Observe(seconds)
}

// SetInputLevel records the current input level in dBFS
func (m *Metrics) SetInputLevel(decibel float64) {
	if m == nil {
		return
	}
	m.inputLevel.Set(decibel)
}
