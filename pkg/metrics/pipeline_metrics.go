// Package metrics provides Prometheus metrics for monitoring the
// transcription pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageTotal counts completed pipeline stage executions.
	// Labels: stage (decode/vad/condense/transcribe/refine), status (success/error)
	StageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localscribe_stage_total",
			Help: "Total number of pipeline stage executions by stage and status",
		},
		[]string{"stage", "status"},
	)

	// StageErrorsTotal counts stage errors by error code.
	// Labels: stage, error_code (DECODE_FAILED/MODEL_LOAD_FAILED/...)
	StageErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localscribe_stage_errors_total",
			Help: "Total number of pipeline errors by stage and error code",
		},
		[]string{"stage", "error_code"},
	)

	// StageDuration observes per-stage wall-clock duration.
	// Buckets cover quick ffprobe calls through multi-minute inference.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "localscribe_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	// ChunksTranscribed counts condensed audio chunks sent to the engine.
	// Labels: engine (whispercpp/fasterwhisper)
	ChunksTranscribed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localscribe_chunks_transcribed_total",
			Help: "Total number of condensed audio chunks transcribed by engine",
		},
		[]string{"engine"},
	)
)

// RecordStage records a completed stage execution.
func RecordStage(stage string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	StageTotal.WithLabelValues(stage, status).Inc()
}

// RecordStageError records a stage failure with its error code.
func RecordStageError(stage, errorCode string) {
	StageErrorsTotal.WithLabelValues(stage, errorCode).Inc()
}

// RecordStageDuration records stage wall-clock time in seconds.
func RecordStageDuration(stage string, durationSeconds float64) {
	StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordChunk records one chunk handed to the named engine.
func RecordChunk(engine string) {
	ChunksTranscribed.WithLabelValues(engine).Inc()
}
