// Package oracle asks the TypeScript compiler whether a witness program
// type-checks. The answer is a plain pass or fail: diagnostics are logged
// but never interpreted.
package oracle

import (
	"bufio"
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/gnolang/tsbump/internal/runner"
)

// DefaultArgs runs the workspace-local tsc in strict, no-emit mode with
// node16-style module resolution, which honours package "exports" maps.
var DefaultArgs = []string{
	"--no-install", "tsc",
	"--strict",
	"--noEmit",
	"--module", "nodenext",
	"--moduleResolution", "nodenext",
}

type Oracle struct {
	run    runner.Runner
	args   []string
	logger *zap.Logger
}

// New returns an oracle invoking npx with args followed by the program path.
// Nil args select DefaultArgs.
func New(run runner.Runner, args []string, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(args) == 0 {
		args = DefaultArgs
	}
	return &Oracle{run: run, args: args, logger: logger}
}

// Check type-checks program (a path inside dir) with dir as the working
// directory. It returns true iff the compiler exits zero. The error is only
// set when the compiler could not be run at all.
func (o *Oracle) Check(ctx context.Context, dir, program string) (bool, error) {
	rel, err := filepath.Rel(dir, program)
	if err != nil {
		rel = program
	}
	args := append(append([]string{}, o.args...), filepath.ToSlash(rel))

	res, err := o.run.Run(ctx, runner.Command{Name: "npx", Args: args, Dir: dir})
	if err != nil {
		return false, err
	}

	logger := o.logger.With(zap.String("program", rel))
	stream(logger, res.Stdout)
	stream(logger, res.Stderr)

	ok := res.Success()
	logger.Debug("type check finished", zap.Bool("ok", ok), zap.Int("exit", res.ExitCode))
	return ok, nil
}

func stream(logger *zap.Logger, output string) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		if line := scanner.Text(); strings.TrimSpace(line) != "" {
			logger.Debug(line)
		}
	}
}
