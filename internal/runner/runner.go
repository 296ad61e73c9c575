// Package runner executes external processes with captured output and a
// hard timeout.
//
// Every subprocess leizi-formula starts (cmake, the installed shell under
// test) goes through a Runner, so the timeout and kill policy live in one
// place and tests can substitute a scripted fake.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/Zixiao-System/leizi-formula/internal/config"
)

// killGrace is how long Wait waits for I/O after the process is killed.
const killGrace = 2 * time.Second

// Command describes one external process invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env replaces the environment when non-nil.
	Env []string
	// Stdin is fed to the process; nil means /dev/null.
	Stdin io.Reader
	// Timeout overrides the runner default when positive.
	Timeout time.Duration
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	parts = append(parts, c.Args...)
	return strings.Join(parts, " ")
}

// Result holds the outcome of a completed process.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Success reports whether the process exited with status zero.
func (r *Result) Success() bool {
	return r != nil && r.ExitCode == 0
}

// Runner is the interface for running external processes.
// A non-zero exit status is not an error: it is reported in Result.ExitCode.
// Errors are reserved for processes that could not be started, were
// cancelled, or exceeded their timeout (*TimeoutError).
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Func adapts a function to the Runner interface.
type Func func(ctx context.Context, cmd Command) (*Result, error)

// Run calls f(ctx, cmd).
func (f Func) Run(ctx context.Context, cmd Command) (*Result, error) {
	return f(ctx, cmd)
}

// TimeoutError is returned when a process exceeds its time bound and was killed.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("%s: timed out after %s", e.Command, e.Timeout)
	}
	return fmt.Sprintf("%s: timed out", e.Command)
}

// Unwrap lets errors.Is(err, context.DeadlineExceeded) match timeouts.
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// ExecRunner implements Runner with os/exec.
type ExecRunner struct {
	// DefaultTimeout applies when a Command has no Timeout. Zero means unbounded.
	DefaultTimeout time.Duration
	logger         config.Logger
}

// NewExecRunner creates a runner with the given default timeout.
func NewExecRunner(defaultTimeout time.Duration, logger config.Logger) *ExecRunner {
	return &ExecRunner{
		DefaultTimeout: defaultTimeout,
		logger:         config.OrNop(logger),
	}
}

// Run starts the command, waits for it, and captures stdout and stderr.
// On timeout the whole process group is killed.
func (r *ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = r.DefaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if c.Env != nil {
		cmd.Env = c.Env
	}
	cmd.Stdin = c.Stdin
	cmd.WaitDelay = killGrace
	configureProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running command", "cmd", c.String(), "dir", c.Dir, "timeout", timeout)

	start := time.Now()
	err := cmd.Run()
	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	// Check context first: a killed process also reports an ExitError.
	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			r.logger.Warn("command timed out", "cmd", c.String(), "timeout", timeout)
			return result, &TimeoutError{Command: c.String(), Timeout: timeout}
		}
		return result, fmt.Errorf("%s: %w", c.Name, ctxErr)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			r.logger.Debug("command exited", "cmd", c.Name, "exit_code", result.ExitCode)
			return result, nil
		}
		return nil, fmt.Errorf("start %s: %w", c.Name, err)
	}

	r.logger.Debug("command finished", "cmd", c.Name, "duration", result.Duration)
	return result, nil
}

// Tail returns the last n lines of s, ignoring trailing newlines.
func Tail(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if n <= 0 || s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// MinimalEnv returns a scrubbed environment that keeps only the variables a
// well-behaved program needs, plus any extra KEY=VALUE pairs.
func MinimalEnv(extra ...string) []string {
	env := []string{
		"HOME=" + os.Getenv("HOME"),
		"PATH=" + os.Getenv("PATH"),
		"USER=" + os.Getenv("USER"),
		"LANG=" + os.Getenv("LANG"),
	}
	return append(env, extra...)
}
