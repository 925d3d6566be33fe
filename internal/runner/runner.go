// Package runner is the single seam between tsbump and the outside world.
// Every git, package manager and compiler invocation goes through a Runner,
// which lets the engine be exercised against a Recorder in tests.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Command describes one external process invocation.
type Command struct {
	// Name is the executable to run (e.g., "git", "npm", "npx").
	Name string
	Args []string
	// Dir is the working directory. It must always be set explicitly;
	// the process-wide working directory is never relied upon.
	Dir string
}

// Line returns the command as a single space separated string.
func (c Command) Line() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

func (c Command) String() string {
	return c.Line()
}

// Result is the captured outcome of a finished process.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Success reports whether the process exited with status zero.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Runner executes a command and blocks until it finishes.
//
// A process that runs and exits non-zero is not an error: its status is
// reported in the Result. The error return is reserved for processes that
// could not be started or waited for, including context cancellation.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExitError is returned by Output when a command exits non-zero.
type ExitError struct {
	Command Command
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := firstLine(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command.Line(), e.Code)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command.Line(), e.Code, msg)
}

// Output runs cmd and returns its trimmed standard output. A non-zero exit
// is converted into an *ExitError.
func Output(ctx context.Context, r Runner, cmd Command) (string, error) {
	res, err := r.Run(ctx, cmd)
	if err != nil {
		return "", err
	}
	if !res.Success() {
		return "", &ExitError{Command: cmd, Code: res.ExitCode, Stderr: res.Stderr}
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Exec runs commands on the host with os/exec.
type Exec struct {
	logger *zap.Logger
}

func NewExec(logger *zap.Logger) *Exec {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exec{logger: logger}
}

func (e *Exec) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Name == "" {
		return nil, errors.New("runner: command name is required")
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	e.logger.Debug("exec", zap.String("cmd", cmd.Line()), zap.String("dir", cmd.Dir))

	start := time.Now()
	err := c.Run()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", cmd.Line(), ctxErr)
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s: %w", cmd.Line(), err)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	e.logger.Debug("exec finished",
		zap.String("cmd", cmd.Line()),
		zap.Int("exit", res.ExitCode),
		zap.Duration("took", res.Duration),
	)
	return res, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
