// Package pipeline defines the error taxonomy shared by every stage of the
// transcription pipeline. Each stage fails loudly with a typed *PipeError
// carrying an error code, the offending path or parameter, and a remediation
// hint. The external CLI layer maps codes to exit statuses; no stage ever
// swallows an error to return a default result.
package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode classifies a pipeline failure for the calling layer.
type ErrorCode string

const (
	// DECODE_FAILED the input could not be decoded to canonical audio
	// (unsupported container, corrupt file, ffmpeg failure).
	DECODE_FAILED ErrorCode = "DECODE_FAILED"

	// MODEL_LOAD_FAILED model weights or a runtime dependency of an
	// engine/detector are missing or unusable.
	MODEL_LOAD_FAILED ErrorCode = "MODEL_LOAD_FAILED"

	// INFERENCE_FAILED the model ran but transcription or refinement failed
	// (malformed output, device error during inference).
	INFERENCE_FAILED ErrorCode = "INFERENCE_FAILED"

	// TIMEOUT_EXCEEDED a stage exceeded its wall-clock budget.
	TIMEOUT_EXCEEDED ErrorCode = "TIMEOUT_EXCEEDED"

	// RESOURCE_LIMIT out of memory or device capacity during inference.
	RESOURCE_LIMIT ErrorCode = "RESOURCE_LIMIT"

	// VALIDATION_FAILED invalid input or parameters (empty VAD result,
	// empty input file, malformed segmentation profile, broken invariant).
	VALIDATION_FAILED ErrorCode = "VALIDATION_FAILED"
)

// PipeError is the typed error carried upward through the workflow.
type PipeError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Hint      string    `json:"hint,omitempty"`
	Cause     error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface.
func (e *PipeError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Hint != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Hint)
	}
	return msg
}

// Unwrap supports errors.Is/As chains.
func (e *PipeError) Unwrap() error {
	return e.Cause
}

// New creates a PipeError with the given code, message and cause.
func New(code ErrorCode, message string, cause error) *PipeError {
	return &PipeError{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// WithHint attaches a remediation hint and returns the same error.
func (e *PipeError) WithHint(hint string) *PipeError {
	e.Hint = hint
	return e
}

// NewDecodeError reports a failed decode of inputPath.
func NewDecodeError(inputPath string, cause error) *PipeError {
	return New(DECODE_FAILED, fmt.Sprintf("failed to decode %s", inputPath), cause).
		WithHint("verify the file is valid audio and ffmpeg is installed")
}

// NewModelLoadError reports missing or unusable model assets.
func NewModelLoadError(what string, cause error) *PipeError {
	return New(MODEL_LOAD_FAILED, what, cause)
}

// NewInferenceError reports a failure during model inference.
func NewInferenceError(what string, cause error) *PipeError {
	return New(INFERENCE_FAILED, what, cause)
}

// NewTimeoutError reports an exceeded stage budget.
func NewTimeoutError(stage string, budget time.Duration) *PipeError {
	return New(TIMEOUT_EXCEEDED, fmt.Sprintf("%s exceeded budget of %s", stage, budget), nil).
		WithHint("raise the stage timeout or use a smaller model")
}

// NewResourceLimitError reports memory/device exhaustion.
func NewResourceLimitError(what string, cause error) *PipeError {
	return New(RESOURCE_LIMIT, what, cause).
		WithHint("use a smaller model or free device memory")
}

// NewValidationError reports invalid input or parameters.
func NewValidationError(what string) *PipeError {
	return New(VALIDATION_FAILED, what, nil)
}

// CodeOf extracts the ErrorCode from an error chain. Unclassified errors
// report INFERENCE_FAILED only when nothing more specific applies; the
// zero value "" is returned for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var pe *PipeError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return INFERENCE_FAILED
}

// ExitCode maps an error category to the process exit status used by the
// CLI layer. Success is 0; unknown errors map to 1.
func ExitCode(err error) int {
	switch CodeOf(err) {
	case "":
		return 0
	case DECODE_FAILED:
		return 2
	case MODEL_LOAD_FAILED:
		return 3
	case INFERENCE_FAILED:
		return 4
	case TIMEOUT_EXCEEDED:
		return 5
	case RESOURCE_LIMIT:
		return 6
	case VALIDATION_FAILED:
		return 7
	default:
		return 1
	}
}
