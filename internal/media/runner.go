// Package media normalizes input audio to the pipeline's canonical format:
// PCM s16le, mono, 16 kHz WAV. Transcoding is delegated to ffmpeg/ffprobe
// subprocesses through a Runner.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// Runner executes external tools (ffmpeg, ffprobe) with timeout control.
type Runner struct {
	// BinaryPaths maps tool names to explicit binary paths. Unlisted tools
	// resolve through PATH.
	BinaryPaths map[string]string

	// DefaultTimeout applies when a request carries no timeout.
	DefaultTimeout time.Duration
}

// NewRunner creates a Runner with a 5 minute default timeout.
func NewRunner(binaryPaths map[string]string) *Runner {
	return &Runner{BinaryPaths: binaryPaths, DefaultTimeout: 5 * time.Minute}
}

// RunResult is the outcome of one tool invocation.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Run executes the named tool and captures its output. On timeout the whole
// process group is killed so ffmpeg child processes do not linger.
func (r *Runner) Run(ctx context.Context, tool string, args []string, timeout time.Duration) (RunResult, error) {
	binaryPath, err := r.resolve(tool)
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to resolve binary path for %s: %w", tool, err)
	}

	if timeout == 0 {
		timeout = r.DefaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, binaryPath, args...)
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	duration := time.Since(start)

	result := RunResult{
		ExitCode: exitCode(err),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	if ctx.Err() == context.DeadlineExceeded {
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		return result, fmt.Errorf("%s timed out after %v: %w", tool, timeout, context.DeadlineExceeded)
	}

	return result, err
}

// HealthCheck verifies every configured binary is resolvable.
func (r *Runner) HealthCheck(tools ...string) error {
	for _, tool := range tools {
		if _, err := r.resolve(tool); err != nil {
			return fmt.Errorf("tool %s not available: %w", tool, err)
		}
	}
	return nil
}

func (r *Runner) resolve(tool string) (string, error) {
	if path, ok := r.BinaryPaths[tool]; ok && path != "" {
		return path, nil
	}
	return exec.LookPath(tool)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
