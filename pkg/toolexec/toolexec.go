// Package toolexec runs external diagnostic tools with a hard wall-clock
// timeout and captures their output.
//
// A nonzero exit code is not an error here: smartctl in particular encodes
// status in an exit bitmask while still printing valid data. Callers
// inspect Result.ExitCode and decide at the collector boundary.
package toolexec

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/hwstack/hwhealth-exporter/pkg/defaults"
	"github.com/hwstack/hwhealth-exporter/pkg/errors"
)

// Result captures one tool invocation.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Elapsed  time.Duration
}

// Runner runs an external command. Implementations must never block past
// their configured timeout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// ExecRunner invokes real OS processes. The zero value uses the default
// collect timeout. Safe for concurrent use; each Run spawns exactly one
// process.
type ExecRunner struct {
	// Timeout bounds each invocation. Zero means defaults.CollectTimeout.
	Timeout time.Duration
}

// Run executes the command and waits for it to exit or for the timeout to
// elapse. On timeout the child process is killed and a TIMEOUT error is
// returned. Errors are returned only when the tool could not run at all or
// was killed; a tool that ran and exited nonzero yields a Result.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaults.CollectTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Do not wait on inherited pipes after the child is killed.
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		return nil, errors.WrapWithContext(errors.ErrCodeTimeout,
			"tool invocation timed out", ctx.Err(),
			map[string]any{"command": name, "timeout": timeout.String()})
	}

	res := &Result{
		Stdout:  stdout.Bytes(),
		Stderr:  stderr.Bytes(),
		Elapsed: elapsed,
	}

	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			// Could not start: missing binary, permission denied.
			return nil, errors.WrapWithContext(errors.ErrCodeToolExec,
				"failed to execute tool", err,
				map[string]any{"command": name})
		}
		res.ExitCode = exitErr.ExitCode()
	}

	return res, nil
}
