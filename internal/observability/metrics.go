package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Capture metrics
	recording = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recorder_recording",
		Help: "1 while the capture loop is running",
	})

	captureSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorder_capture_sessions_total",
		Help: "Total number of capture sessions started",
	})

	captureDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recorder_capture_duration_seconds",
		Help:    "Wall-clock length of capture sessions in seconds",
		Buckets: []float64{5, 30, 60, 300, 900, 1800, 3600, 7200},
	})

	chunksCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorder_chunks_captured_total",
		Help: "Total audio chunks read from the input device",
	})

	bufferedChunks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recorder_buffered_chunks",
		Help: "Chunks currently held by the rolling buffer",
	})

	// Snapshot metrics
	snapshots = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorder_snapshots_total",
		Help: "Total number of snapshot exports",
	}, []string{"status"})

	snapshotAudio = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recorder_snapshot_audio_seconds",
		Help:    "Length of exported audio in seconds",
		Buckets: []float64{1, 5, 10, 20, 30, 60},
	})

	exportLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recorder_export_latency_seconds",
		Help:    "Time to downmix and write a snapshot in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0},
	})

	// Pipeline metrics
	pipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorder_pipeline_runs_total",
		Help: "Total number of processor runs",
	}, []string{"status"})

	pipelineLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recorder_pipeline_latency_seconds",
		Help:    "Processor run time in seconds",
		Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorder_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "recorder_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorder_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// Metrics tracks metrics for a single capture session
type Metrics struct {
	captureID   string
	startTime   time.Time
	exportStart time.Time
	mu          sync.Mutex
}

// NewCaptureMetrics creates a new metrics tracker for a capture session
func NewCaptureMetrics(captureID string) *Metrics {
	return &Metrics{
		captureID: captureID,
		startTime: time.Now(),
	}
}

// CaptureID returns the session the tracker belongs to
func (m *Metrics) CaptureID() string {
	return m.captureID
}

// RecordCaptureStart records the start of a capture session
func (m *Metrics) RecordCaptureStart() {
	recording.Set(1)
	captureSessions.Inc()
}

// RecordCaptureEnd records the end of a capture session
func (m *Metrics) RecordCaptureEnd() {
	recording.Set(0)
	captureDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordChunk records one chunk pushed into a buffer now holding buffered chunks
func (m *Metrics) RecordChunk(buffered int) {
	chunksCaptured.Inc()
	bufferedChunks.Set(float64(buffered))
}

// RecordExportStart records the start of a snapshot export
func (m *Metrics) RecordExportStart() {
	m.mu.Lock()
	m.exportStart = time.Now()
	m.mu.Unlock()
}

// RecordExportEnd records the end of a snapshot export of audio length
func (m *Metrics) RecordExportEnd(success bool, audio time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.exportStart.IsZero() {
		exportLatency.Observe(time.Since(m.exportStart).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	} else {
		snapshotAudio.Observe(audio.Seconds())
	}
	snapshots.WithLabelValues(status).Inc()
}

// RecordPipelineRun records a finished processor run
func RecordPipelineRun(status string, elapsed time.Duration) {
	pipelineLatency.Observe(elapsed.Seconds())
	pipelineRuns.WithLabelValues(status).Inc()
}

// RecordError records an error attributed to this capture session
func (m *Metrics) RecordError(errorType, component string) {
	RecordError(errorType, component)
}

// RecordError records an error outside of a capture session
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
