// Package bump is the public entry point of tsbump: it evaluates the next
// semantic version of a TypeScript package and optionally records it in the
// manifest and as a git tag.
package bump

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/gnolang/tsbump/internal/engine"
	"github.com/gnolang/tsbump/internal/git"
	"github.com/gnolang/tsbump/internal/manifest"
	"github.com/gnolang/tsbump/internal/pkgmgr"
	"github.com/gnolang/tsbump/internal/resolve"
	"github.com/gnolang/tsbump/internal/runner"
	"github.com/gnolang/tsbump/internal/witness"
)

// Evaluator runs one evaluation. *engine.Engine implements it.
type Evaluator interface {
	Run(ctx context.Context) (*engine.Result, error)
	Witness(ctx context.Context) (*witness.Pair, error)
}

// Request describes one invocation.
type Request struct {
	// Dir holds the package.json to evaluate.
	Dir  string
	From string
	To   string

	// Update writes the computed version into Dir/package.json.
	Update bool
	// Tag creates <tag-prefix><version> on the current commit.
	Tag bool

	OnStage func(stage string)
}

type Bumper struct {
	config  Config
	policy  resolve.Policy
	dialect pkgmgr.Dialect
	run     runner.Runner
	logger  *zap.Logger

	evaluator func(engine.Options) Evaluator
}

type Option func(*Bumper)

// WithRunner replaces the process runner.
func WithRunner(run runner.Runner) Option {
	return func(b *Bumper) { b.run = run }
}

// WithEvaluator replaces the engine constructor.
func WithEvaluator(f func(engine.Options) Evaluator) Option {
	return func(b *Bumper) { b.evaluator = f }
}

func New(config Config, logger *zap.Logger, opts ...Option) (*Bumper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy, err := resolve.ParsePolicy(config.Tags)
	if err != nil {
		return nil, err
	}
	var dialect pkgmgr.Dialect
	if config.PackageManager != "" {
		if dialect, err = pkgmgr.ParseDialect(config.PackageManager); err != nil {
			return nil, err
		}
	}

	b := &Bumper{config: config, policy: policy, dialect: dialect, logger: logger}
	for _, opt := range opts {
		opt(b)
	}
	if b.run == nil {
		b.run = runner.NewExec(logger)
	}
	if b.evaluator == nil {
		b.evaluator = func(o engine.Options) Evaluator {
			return engine.New(b.run, o, b.logger)
		}
	}
	return b, nil
}

// Options maps a request onto engine options.
func (b *Bumper) Options(req Request) engine.Options {
	dir := req.Dir
	if dir == "" {
		dir = "."
	}
	return engine.Options{
		Dir:                dir,
		From:               req.From,
		To:                 req.To,
		Policy:             b.policy,
		ErrorOnDirty:       b.config.ErrorOnDirty,
		ErrorOnUnreachable: b.config.ErrorOnUnreachable,
		ScratchDir:         b.config.ScratchDir,
		TypeScript:         b.config.TypeScript,
		TscArgs:            b.config.TscArgs,
		PackageManager:     b.dialect,
		OnStage:            req.OnStage,
	}
}

// Run evaluates the version and applies the requested outputs.
func (b *Bumper) Run(ctx context.Context, req Request) (*engine.Result, error) {
	opts := b.Options(req)
	res, err := b.evaluator(opts).Run(ctx)
	if err != nil {
		return nil, err
	}

	var restore func() error
	if req.Update {
		if restore, err = b.update(opts.Dir, res); err != nil {
			return nil, err
		}
	}
	if req.Tag {
		if err := b.tag(ctx, opts.Dir, res); err != nil {
			// A failed tag leaves the manifest as it was.
			if restore != nil {
				if rerr := restore(); rerr != nil {
					b.logger.Error("restoring manifest", zap.Error(rerr))
				}
			}
			return nil, err
		}
	}
	return res, nil
}

// Witness returns the witness programs without running the type checker.
func (b *Bumper) Witness(ctx context.Context, req Request) (*witness.Pair, error) {
	return b.evaluator(b.Options(req)).Witness(ctx)
}

// Tags lists the version tags visible under the configured policy, highest
// first.
func (b *Bumper) Tags(ctx context.Context, dir string) ([]resolve.TaggedVersion, error) {
	if dir == "" {
		dir = "."
	}
	repo, err := git.Open(ctx, b.run, dir, b.logger)
	if err != nil {
		return nil, err
	}
	return resolve.New(repo, b.policy, b.logger).Tags(ctx)
}

// TagName is the tag created for res.
func (b *Bumper) TagName(res *engine.Result) string {
	return b.config.TagPrefix + res.Version.String()
}

// update writes the version into the manifest. The returned func puts the
// original bytes back; it is nil when nothing was written.
func (b *Bumper) update(dir string, res *engine.Result) (func() error, error) {
	m, err := manifest.Load(dir)
	if err != nil {
		return nil, err
	}
	if m.Version != nil && m.Version.Equal(res.Version) {
		b.logger.Debug("manifest already declares the version", zap.Stringer("version", res.Version))
		return nil, nil
	}

	info, err := os.Stat(m.Path)
	if err != nil {
		return nil, err
	}
	original, err := os.ReadFile(m.Path)
	if err != nil {
		return nil, err
	}
	if err := manifest.SetVersion(m.Path, res.Version); err != nil {
		return nil, fmt.Errorf("updating %s: %w", m.Path, err)
	}
	b.logger.Info("manifest updated", zap.String("path", m.Path), zap.Stringer("version", res.Version))

	return func() error {
		b.logger.Warn("restoring manifest", zap.String("path", m.Path))
		return os.WriteFile(m.Path, original, info.Mode().Perm())
	}, nil
}

func (b *Bumper) tag(ctx context.Context, dir string, res *engine.Result) error {
	// The previous tag already marks this commit.
	if res.Reason == engine.ReasonUnchanged {
		b.logger.Debug("nothing changed, not tagging")
		return nil
	}
	repo, err := git.Open(ctx, b.run, dir, b.logger)
	if err != nil {
		return err
	}
	name := b.TagName(res)
	if err := repo.CreateTag(ctx, name, res.Current.Commit); err != nil {
		return err
	}
	b.logger.Info("tag created", zap.String("tag", name), zap.String("commit", res.Current.Commit))
	return nil
}
