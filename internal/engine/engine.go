// Package engine runs one version evaluation end to end: resolve the two
// references, package both in parallel, synthesize the witness programs,
// type-check both directions in parallel and decide the version.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gnolang/tsbump/internal/decision"
	"github.com/gnolang/tsbump/internal/git"
	"github.com/gnolang/tsbump/internal/manifest"
	"github.com/gnolang/tsbump/internal/oracle"
	"github.com/gnolang/tsbump/internal/packaging"
	"github.com/gnolang/tsbump/internal/pkgmgr"
	"github.com/gnolang/tsbump/internal/resolve"
	"github.com/gnolang/tsbump/internal/runner"
	"github.com/gnolang/tsbump/internal/semver"
	"github.com/gnolang/tsbump/internal/types"
	"github.com/gnolang/tsbump/internal/witness"
	"github.com/gnolang/tsbump/internal/workspace"
)

// DefaultTypeScript is the version range installed into the check workspace.
const DefaultTypeScript = "^5"

// checkPackage names the consumer package of the check workspace.
const checkPackage = "tsbump-check"

// ErrNothingToCompare is returned by Witness when there is no previous
// version tag.
var ErrNothingToCompare = errors.New("no previous version tag to compare against")

// Stage names reported through Options.OnStage, in order.
const (
	StageResolve   = "resolve"
	StagePackage   = "package"
	StageWitness   = "witness"
	StageWorkspace = "workspace"
	StageCheck     = "check"
	StageDecide    = "decide"
)

var Stages = []string{StageResolve, StagePackage, StageWitness, StageWorkspace, StageCheck, StageDecide}

type Options struct {
	// Dir holds the manifest to evaluate. It must be inside a git repository.
	Dir string
	// From and To override the previous and current references.
	From string
	To   string

	Policy             resolve.Policy
	ErrorOnDirty       bool
	ErrorOnUnreachable bool

	// ScratchDir is the parent of the run's scratch workspace; the OS temp
	// directory when empty.
	ScratchDir string
	// TypeScript is the version range of the compiler used as oracle.
	TypeScript string
	// TscArgs replaces oracle.DefaultArgs when set.
	TscArgs []string
	// PackageManager forces the dialect used to package both references;
	// detected from the lock file when empty.
	PackageManager pkgmgr.Dialect

	// OnStage, when set, is called as each stage starts.
	OnStage func(stage string)
}

// Reason tells which path produced a Result.
type Reason string

const (
	// ReasonInitial: no previous version tag exists.
	ReasonInitial Reason = "initial"
	// ReasonUnchanged: both references point at the same commit.
	ReasonUnchanged Reason = "unchanged"
	// ReasonCompared: the two artifacts were type-checked against each other.
	ReasonCompared Reason = "compared"
)

type Result struct {
	Version *semver.Version
	Reason  Reason

	// Previous is nil for ReasonInitial.
	Previous *types.Reference
	Current  types.Reference

	// The fields below are only set for ReasonCompared.
	PreviousVersion *semver.Version
	DeclaredVersion *semver.Version
	Compatibility   decision.Compatibility
	Decision        *decision.Decision
}

type Engine struct {
	run    runner.Runner
	opts   Options
	logger *zap.Logger
}

func New(run runner.Runner, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.TypeScript == "" {
		opts.TypeScript = DefaultTypeScript
	}
	return &Engine{run: run, opts: opts, logger: logger}
}

// refs is the outcome of reference resolution.
type refs struct {
	repo     *git.Repository
	rel      string
	previous *types.Reference
	current  types.Reference
}

func (e *Engine) stage(name string) {
	e.logger.Debug("stage", zap.String("stage", name))
	if e.opts.OnStage != nil {
		e.opts.OnStage(name)
	}
}

func (e *Engine) resolve(ctx context.Context) (*refs, error) {
	e.stage(StageResolve)

	repo, err := git.Open(ctx, e.run, e.opts.Dir, e.logger)
	if err != nil {
		return nil, err
	}
	rel, err := repo.RelPath(e.opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrEnvironment, err)
	}

	if e.opts.ErrorOnDirty {
		clean, err := repo.IsClean(ctx)
		if err != nil {
			return nil, err
		}
		if !clean {
			return nil, types.ErrDirtyTree
		}
	}

	resolver := resolve.New(repo, e.opts.Policy, e.logger)

	// Current first: the reachable tag policy filters on its commit.
	var current types.Reference
	if e.opts.To != "" {
		current, err = resolver.Reference(ctx, e.opts.To)
		if err != nil {
			return nil, fmt.Errorf("resolving --to %s: %w", e.opts.To, err)
		}
	} else {
		current, err = resolver.CurrentReference(ctx)
		if err != nil {
			return nil, err
		}
	}

	var previous *types.Reference
	if e.opts.From != "" {
		ref, err := resolver.Reference(ctx, e.opts.From)
		if err != nil {
			return nil, fmt.Errorf("resolving --from %s: %w", e.opts.From, err)
		}
		previous = &ref
	} else {
		previous, err = resolver.HighestVersionReference(ctx, current)
		if err != nil {
			return nil, err
		}
	}

	return &refs{repo: repo, rel: rel, previous: previous, current: current}, nil
}

// checkReachable enforces that current descends from previous.
func (e *Engine) checkReachable(ctx context.Context, r *refs) error {
	if !e.opts.ErrorOnUnreachable {
		return nil
	}
	resolver := resolve.New(r.repo, e.opts.Policy, e.logger)
	ok, err := resolver.IsDescendant(ctx, *r.previous, r.current)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s does not reach %s: %w", r.previous.Name, r.current.Name, types.ErrUnreachable)
	}
	return nil
}

// Run evaluates the version of the package in Options.Dir.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	r, err := e.resolve(ctx)
	if err != nil {
		return nil, err
	}

	if r.previous == nil {
		e.logger.Info("no previous version, reporting the initial version")
		return &Result{
			Version: semver.MustParse(decision.InitialVersion),
			Reason:  ReasonInitial,
			Current: r.current,
		}, nil
	}

	if r.previous.Commit == r.current.Commit {
		v, err := e.versionAt(ctx, r)
		if err != nil {
			return nil, err
		}
		e.logger.Info("references point at the same commit", zap.String("commit", r.current.Commit))
		return &Result{Version: v, Reason: ReasonUnchanged, Previous: r.previous, Current: r.current}, nil
	}

	if err := e.checkReachable(ctx, r); err != nil {
		return nil, err
	}

	ws := workspace.New(e.opts.ScratchDir, e.logger)
	defer e.closeWorkspace(ws)

	previous, current, err := e.packageBoth(ctx, ws, r)
	if err != nil {
		return nil, err
	}
	prevVersion, err := previousVersion(previous)
	if err != nil {
		return nil, err
	}

	pair, err := e.witness(ctx, previous, current)
	if err != nil {
		return nil, err
	}
	compat, err := e.check(ctx, ws, pair, previous, current)
	if err != nil {
		return nil, err
	}

	e.stage(StageDecide)
	d := decision.Decide(prevVersion, current.Version, compat)
	e.logger.Info("decided",
		zap.Bool("forwardsOk", compat.ForwardsOk),
		zap.Bool("backwardsOk", compat.BackwardsOk),
		zap.Stringer("bump", d.Bump),
		zap.Stringer("version", d.Version),
	)

	return &Result{
		Version:         d.Version,
		Reason:          ReasonCompared,
		Previous:        r.previous,
		Current:         r.current,
		PreviousVersion: prevVersion,
		DeclaredVersion: current.Version,
		Compatibility:   compat,
		Decision:        &d,
	}, nil
}

// Witness packages both references and returns the witness programs
// without type-checking them.
func (e *Engine) Witness(ctx context.Context) (*witness.Pair, error) {
	r, err := e.resolve(ctx)
	if err != nil {
		return nil, err
	}
	if r.previous == nil {
		return nil, ErrNothingToCompare
	}
	if err := e.checkReachable(ctx, r); err != nil {
		return nil, err
	}

	ws := workspace.New(e.opts.ScratchDir, e.logger)
	defer e.closeWorkspace(ws)

	previous, current, err := e.packageBoth(ctx, ws, r)
	if err != nil {
		return nil, err
	}
	return e.witness(ctx, previous, current)
}

func (e *Engine) closeWorkspace(ws *workspace.Workspace) {
	if err := ws.Close(); err != nil {
		e.logger.Warn("scratch workspace left behind", zap.Error(err))
	}
}

// versionAt reads the declared version at the current commit without
// cloning. A manifest without version falls back to the tag's version.
func (e *Engine) versionAt(ctx context.Context, r *refs) (*semver.Version, error) {
	file := path.Join(r.rel, manifest.FileName)
	data, err := r.repo.Show(ctx, r.current.Commit, file)
	if err != nil {
		if git.IsNotFound(err) {
			return nil, &types.MalformedManifestError{Path: file, Reason: "missing", Err: err}
		}
		return nil, err
	}
	m, err := manifest.Parse(file, data)
	if err != nil {
		return nil, err
	}
	if m.Version != nil {
		return m.Version, nil
	}
	if v := r.previous.TagVersion(); v != nil {
		return v, nil
	}
	return nil, &types.MalformedManifestError{Path: file, Reason: "no version declared"}
}

// previousVersion is P: the declared version of the previous artifact, or
// the version its tag names.
func previousVersion(a *types.Artifact) (*semver.Version, error) {
	if a.Version != nil {
		return a.Version, nil
	}
	if v := a.Reference.TagVersion(); v != nil {
		return v, nil
	}
	return nil, &types.MalformedManifestError{
		Path:   manifest.FileName + " at " + a.Reference.Name,
		Reason: "no version declared",
	}
}

func (e *Engine) packageBoth(ctx context.Context, ws *workspace.Workspace, r *refs) (previous, current *types.Artifact, err error) {
	e.stage(StagePackage)
	pipeline := packaging.New(r.repo, e.run, ws, r.rel, e.opts.PackageManager, e.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := pipeline.Package(gctx, types.RolePrevious, *r.previous)
		previous = a
		return err
	})
	g.Go(func() error {
		a, err := pipeline.Package(gctx, types.RoleCurrent, r.current)
		current = a
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return previous, current, nil
}

func (e *Engine) witness(ctx context.Context, previous, current *types.Artifact) (*witness.Pair, error) {
	e.stage(StageWitness)
	pair, err := witness.Build(witness.SideOf(previous), witness.SideOf(current))
	if err != nil {
		return nil, err
	}
	if err := pair.Validate(ctx); err != nil {
		return nil, err
	}
	return pair, nil
}

// check installs both archives into a consumer workspace and type-checks
// the two witness programs there concurrently.
func (e *Engine) check(ctx context.Context, ws *workspace.Workspace, pair *witness.Pair, previous, current *types.Artifact) (decision.Compatibility, error) {
	e.stage(StageWorkspace)
	dir, err := ws.Dir("check")
	if err != nil {
		return decision.Compatibility{}, err
	}
	deps := map[string]string{
		previous.Package: "file:" + previous.Archive,
		current.Package:  "file:" + current.Archive,
	}
	devDeps := map[string]string{"typescript": e.opts.TypeScript}
	if err := manifest.WriteConsumer(dir, checkPackage, deps, devDeps); err != nil {
		return decision.Compatibility{}, err
	}
	if err := pkgmgr.New(pkgmgr.NPM, e.run, e.logger).Install(ctx, dir, false); err != nil {
		return decision.Compatibility{}, &types.StageError{Stage: types.StageInstall, Ref: "check workspace", Err: err}
	}
	forward, backward, err := pair.Write(dir)
	if err != nil {
		return decision.Compatibility{}, err
	}

	e.stage(StageCheck)
	o := oracle.New(e.run, e.opts.TscArgs, e.logger)
	var c decision.Compatibility
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		c.ForwardsOk, err = o.Check(gctx, dir, forward)
		return err
	})
	g.Go(func() (err error) {
		c.BackwardsOk, err = o.Check(gctx, dir, backward)
		return err
	})
	if err := g.Wait(); err != nil {
		return decision.Compatibility{}, err
	}
	return c, nil
}
