// Package packaging turns one reference of the repository into an installed,
// built and packed artifact: clone, rename, install, build, pack.
package packaging

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/gnolang/tsbump/internal/manifest"
	"github.com/gnolang/tsbump/internal/pkgmgr"
	"github.com/gnolang/tsbump/internal/runner"
	"github.com/gnolang/tsbump/internal/types"
)

// Source clones the repository at a reference.
type Source interface {
	Clone(ctx context.Context, ref, dest string) error
}

// Scratch hands out directories inside the run's scratch workspace.
type Scratch interface {
	Dir(parts ...string) (string, error)
}

type Pipeline struct {
	source  Source
	run     runner.Runner
	scratch Scratch
	// subdir is the package directory relative to the repository root.
	subdir string
	// dialect forces a package manager; detected per clone when empty.
	dialect pkgmgr.Dialect
	logger  *zap.Logger
}

func New(source Source, run runner.Runner, scratch Scratch, subdir string, dialect pkgmgr.Dialect, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if subdir == "" {
		subdir = "."
	}
	return &Pipeline{source: source, run: run, scratch: scratch, subdir: subdir, dialect: dialect, logger: logger}
}

// Package produces the artifact of ref under the given role. Each role owns
// the <role>/clone and <role>/pack directories of the scratch workspace.
func (p *Pipeline) Package(ctx context.Context, role types.Role, ref types.Reference) (*types.Artifact, error) {
	logger := p.logger.With(zap.String("role", string(role)), zap.String("ref", ref.Name))

	cloneDir, err := p.scratch.Dir(string(role), "clone")
	if err != nil {
		return nil, err
	}
	packDir, err := p.scratch.Dir(string(role), "pack")
	if err != nil {
		return nil, err
	}

	logger.Info("cloning")
	if err := p.source.Clone(ctx, ref.Name, cloneDir); err != nil {
		return nil, stageError(types.StageClone, ref, err)
	}

	pkgDir := filepath.Join(cloneDir, filepath.FromSlash(p.subdir))
	m, err := manifest.Load(pkgDir)
	if err != nil {
		return nil, err
	}

	dialect := p.dialect
	if dialect == "" {
		dialect = pkgmgr.Detect(pkgDir)
	}
	pm := pkgmgr.New(dialect, p.run, logger)
	name := role.PackageName()
	hasBuild := m.HasScript("build")

	if err := pm.Rename(ctx, pkgDir, name); err != nil {
		return nil, stageError(types.StageRename, ref, err)
	}

	// Without a build step the dev toolchain is not needed.
	logger.Info("installing", zap.String("pm", string(pm.Dialect())), zap.Bool("production", !hasBuild))
	if err := pm.Install(ctx, pkgDir, !hasBuild); err != nil {
		return nil, stageError(types.StageInstall, ref, err)
	}

	if hasBuild {
		logger.Info("building")
		if err := pm.Build(ctx, pkgDir); err != nil {
			return nil, stageError(types.StageBuild, ref, err)
		}
	}

	logger.Info("packing")
	archive, err := pm.Pack(ctx, pkgDir, packDir)
	if err != nil {
		return nil, stageError(types.StagePack, ref, err)
	}

	// Entry points and version come from the manifest as packed, after the
	// rename and any build step.
	built, err := manifest.Load(pkgDir)
	if err != nil {
		return nil, err
	}

	artifact := &types.Artifact{
		Role:        role,
		Reference:   ref,
		Package:     name,
		EntryPoints: built.EntryPoints(),
		Version:     built.Version,
		Archive:     filepath.Join(packDir, archive),
	}
	logger.Debug("packaged",
		zap.Strings("entryPoints", artifact.EntryPoints),
		zap.String("archive", artifact.Archive),
	)
	return artifact, nil
}

func stageError(stage types.Stage, ref types.Reference, err error) error {
	return &types.StageError{Stage: stage, Ref: ref.Name, Err: err}
}
