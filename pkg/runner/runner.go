// Package runner executes external commands on behalf of launch-run.
//
// Runner is the seam between launch-run and the dagster-cloud CLI: the
// launcher only ever talks to the interface, so tests substitute a stub
// and never need the real CLI installed.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/jvreagan/launch-run-action/pkg/logging"
)

// Runner runs a command to completion and returns its standard output.
// A command that exits non-zero yields a *SubprocessError.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

const waitDelay = 5 * time.Second

// ExecRunner runs commands as child processes.
type ExecRunner struct {
	// Echo, when set, receives the child's stdout and stderr as they are
	// produced so wait-mode progress shows up in the job log.
	Echo io.Writer
}

// New returns an ExecRunner that echoes child output to echo.
func New(echo io.Writer) *ExecRunner {
	return &ExecRunner{Echo: echo}
}

// Run starts name with args and blocks until it exits or ctx is done.
// Only stdout is returned; stderr is kept for error reporting.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Stop waiting on output pipes held open by grandchildren after a kill.
	cmd.WaitDelay = waitDelay
	if r.Echo != nil {
		cmd.Stdout = io.MultiWriter(&stdout, r.Echo)
		cmd.Stderr = io.MultiWriter(&stderr, r.Echo)
	}

	logging.Debug("Running command", "command", name, "args", logging.RedactArgs(args))

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &SubprocessError{
				Command:  commandLine(name, args),
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
				Err:      err,
			}
		}
		return "", fmt.Errorf("failed to run %s: %w", name, err)
	}
	return stdout.String(), nil
}

// SubprocessError reports a command that ran but exited unsuccessfully.
type SubprocessError struct {
	// Command line with secrets redacted
	Command string

	// Exit status, or -1 if the process was killed by a signal
	ExitCode int

	// Captured output streams
	Stdout string
	Stderr string

	Err error
}

func (e *SubprocessError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	if detail := e.Detail(); detail != "" {
		msg += ": " + detail
	}
	return msg
}

func (e *SubprocessError) Unwrap() error {
	return e.Err
}

// Detail returns the most useful captured output: stderr when the command
// wrote any, stdout otherwise.
func (e *SubprocessError) Detail() string {
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(e.Stdout)
}

func commandLine(name string, args []string) string {
	return strings.Join(append([]string{name}, logging.RedactArgs(args)...), " ")
}
