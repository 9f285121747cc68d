package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/clipforge/clipforge/pkg/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Runner executes one compiled command against the external transcoder.
type Runner interface {
	Run(ctx context.Context, cmd types.CompiledCommand) error
}

// TransientError marks a failure worth retrying (resource contention,
// killed process). Anything else is treated as permanent.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// FFmpegRunner invokes the transcoder binary from the compiled argv.
type FFmpegRunner struct {
	log *logrus.Logger
}

// NewFFmpegRunner creates a runner logging through log.
func NewFFmpegRunner(log *logrus.Logger) *FFmpegRunner {
	return &FFmpegRunner{log: log}
}

func (r *FFmpegRunner) Run(ctx context.Context, cmd types.CompiledCommand) error {
	if len(cmd.Argv) == 0 {
		return errors.New("empty command")
	}

	r.log.WithFields(logrus.Fields{
		"operation": cmd.Operation.ID,
		"output":    cmd.OutputPath,
	}).Debugf("running: %v", cmd.Argv)

	proc := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	var stderr bytes.Buffer
	proc.Stderr = &stderr

	err := proc.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return errors.WithStack(ctx.Err())
	}

	detail := tail(stderr.String(), 512)
	if exitErr, ok := err.(*exec.ExitError); ok {
		code := exitErr.ExitCode()
		// The tool reports no dedicated transient status; a kill (-1, 137)
		// usually means memory or scheduler pressure rather than bad input.
		if code == -1 || code == 137 {
			return &TransientError{Err: fmt.Errorf("transcoder killed (exit %d): %s", code, detail)}
		}
		return fmt.Errorf("transcoder failed (exit %d): %s", code, detail)
	}

	// Process never started: binary missing or spawn pressure.
	return &TransientError{Err: errors.Wrap(err, "failed to start transcoder")}
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
