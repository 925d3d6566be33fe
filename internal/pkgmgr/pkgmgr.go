// Package pkgmgr drives the package manager a project uses. The supported
// dialects form a closed set, each described by one row of a command table
// and selected by the lock file found in the project directory.
package pkgmgr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/gnolang/tsbump/internal/runner"
)

type Dialect string

const (
	NPM  Dialect = "npm"
	Yarn Dialect = "yarn"
	PNPM Dialect = "pnpm"
)

// commandSet holds the argv templates of one dialect. {name} and {dest}
// are substituted before running.
type commandSet struct {
	lockfile    string
	rename      []string
	install     []string
	installProd []string
	build       []string
	pack        []string
}

var dialects = map[Dialect]commandSet{
	NPM: {
		lockfile:    "package-lock.json",
		rename:      []string{"npm", "pkg", "set", "name={name}"},
		install:     []string{"npm", "install", "--no-audit", "--no-fund"},
		installProd: []string{"npm", "install", "--omit=dev", "--no-audit", "--no-fund"},
		build:       []string{"npm", "run", "build"},
		pack:        []string{"npm", "pack", "--pack-destination", "{dest}"},
	},
	Yarn: {
		lockfile:    "yarn.lock",
		rename:      []string{"npm", "pkg", "set", "name={name}"},
		install:     []string{"yarn", "install", "--frozen-lockfile", "--non-interactive"},
		installProd: []string{"yarn", "install", "--frozen-lockfile", "--non-interactive", "--production"},
		build:       []string{"yarn", "run", "build"},
		pack:        []string{"yarn", "pack", "--filename", "{dest}/package.tgz"},
	},
	PNPM: {
		lockfile:    "pnpm-lock.yaml",
		rename:      []string{"npm", "pkg", "set", "name={name}"},
		install:     []string{"pnpm", "install", "--frozen-lockfile"},
		installProd: []string{"pnpm", "install", "--frozen-lockfile", "--prod"},
		build:       []string{"pnpm", "run", "build"},
		pack:        []string{"pnpm", "pack", "--pack-destination", "{dest}"},
	},
}

// detectionOrder is the order lock files are looked for.
var detectionOrder = []Dialect{PNPM, Yarn, NPM}

// Detect picks the dialect from the lock file present in dir, defaulting
// to npm.
func Detect(dir string) Dialect {
	for _, d := range detectionOrder {
		if _, err := os.Stat(filepath.Join(dir, dialects[d].lockfile)); err == nil {
			return d
		}
	}
	return NPM
}

func ParseDialect(s string) (Dialect, error) {
	d := Dialect(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := dialects[d]; !ok {
		return "", fmt.Errorf("unknown package manager %q", s)
	}
	return d, nil
}

type Manager struct {
	dialect Dialect
	run     runner.Runner
	logger  *zap.Logger
}

func New(dialect Dialect, run runner.Runner, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{dialect: dialect, run: run, logger: logger.With(zap.String("pm", string(dialect)))}
}

func (m *Manager) Dialect() Dialect {
	return m.dialect
}

func (m *Manager) command(argv []string, dir string, vars map[string]string) runner.Command {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)

	args := make([]string, len(argv)-1)
	for i, a := range argv[1:] {
		args[i] = r.Replace(a)
	}
	return runner.Command{Name: argv[0], Args: args, Dir: dir}
}

func (m *Manager) exec(ctx context.Context, argv []string, dir string, vars map[string]string) error {
	cmd := m.command(argv, dir, vars)
	res, err := m.run.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if res.Stderr != "" {
		m.logger.Debug("stderr", zap.String("cmd", cmd.Line()), zap.String("output", res.Stderr))
	}
	if !res.Success() {
		return &runner.ExitError{Command: cmd, Code: res.ExitCode, Stderr: res.Stderr}
	}
	return nil
}

// Rename changes the package name declared in dir/package.json.
func (m *Manager) Rename(ctx context.Context, dir, name string) error {
	return m.exec(ctx, dialects[m.dialect].rename, dir, map[string]string{"name": name})
}

// Install installs declared dependencies; production skips devDependencies.
func (m *Manager) Install(ctx context.Context, dir string, production bool) error {
	argv := dialects[m.dialect].install
	if production {
		argv = dialects[m.dialect].installProd
	}
	return m.exec(ctx, argv, dir, nil)
}

// Build runs the package's build script.
func (m *Manager) Build(ctx context.Context, dir string) error {
	return m.exec(ctx, dialects[m.dialect].build, dir, nil)
}

// Pack packs dir into a tarball inside dest and returns the tarball's file
// name. dest must not contain other tarballs.
func (m *Manager) Pack(ctx context.Context, dir, dest string) (string, error) {
	if err := m.exec(ctx, dialects[m.dialect].pack, dir, map[string]string{"dest": dest}); err != nil {
		return "", err
	}

	matches, err := filepath.Glob(filepath.Join(dest, "*.tgz"))
	if err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("pack produced no archive in %s", dest)
	case 1:
		return filepath.Base(matches[0]), nil
	default:
		return "", fmt.Errorf("pack destination %s holds %d archives", dest, len(matches))
	}
}
