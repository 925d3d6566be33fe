package git

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/gnolang/tsbump/internal/runner"
	"github.com/gnolang/tsbump/internal/types"
)

const (
	commitCacheSize = 128
	tagCacheSize    = 8
)

// Repository answers read-only questions about a local git repository and
// can clone it at a given reference. All commands run with an explicit
// working directory. Commit ids and tag listings are memoized for the
// lifetime of the value.
type Repository struct {
	root    string
	run     runner.Runner
	logger  *zap.Logger
	commits *lru.Cache[string, string]
	// tags is keyed by the --merged target, "" for every tag.
	tags *lru.Cache[string, []string]
}

// Open finds the repository containing dir.
func Open(ctx context.Context, run runner.Runner, dir string, logger *zap.Logger) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	res, err := run.Run(ctx, runner.Command{Name: "git", Args: []string{"rev-parse", "--show-toplevel"}, Dir: dir})
	if err != nil {
		return nil, err
	}
	root := strings.TrimSpace(res.Stdout)
	if !res.Success() || root == "" {
		return nil, fmt.Errorf("%w at %s", types.ErrNoRepository, dir)
	}

	commits, err := lru.New[string, string](commitCacheSize)
	if err != nil {
		return nil, err
	}
	tags, err := lru.New[string, []string](tagCacheSize)
	if err != nil {
		return nil, err
	}

	logger.Debug("opened repository", zap.String("root", root))
	return &Repository{root: root, run: run, logger: logger, commits: commits, tags: tags}, nil
}

func (r *Repository) Root() string {
	return r.root
}

// RelPath returns dir relative to the repository root, using forward slashes.
func (r *Repository) RelPath(dir string) (string, error) {
	root, err := filepath.EvalSymlinks(r.root)
	if err != nil {
		root = r.root
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside repository %s", dir, r.root)
	}
	return filepath.ToSlash(rel), nil
}

func (r *Repository) git(args ...string) runner.Command {
	return runner.Command{Name: "git", Args: args, Dir: r.root}
}

func (r *Repository) output(ctx context.Context, args ...string) (string, error) {
	return runner.Output(ctx, r.run, r.git(args...))
}

// Tags lists tag names. When mergedInto is set, only tags reachable from
// that revision are returned.
func (r *Repository) Tags(ctx context.Context, mergedInto string) ([]string, error) {
	if tags, ok := r.tags.Get(mergedInto); ok {
		return slices.Clone(tags), nil
	}
	args := []string{"tag", "--list"}
	if mergedInto != "" {
		args = append(args, "--merged", mergedInto)
	}
	out, err := r.output(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	tags := lines(out)
	r.tags.Add(mergedInto, tags)
	return slices.Clone(tags), nil
}

// Branches lists local branch names.
func (r *Repository) Branches(ctx context.Context) ([]string, error) {
	out, err := r.output(ctx, "branch", "--list", "--format=%(refname:short)")
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	return lines(out), nil
}

// CurrentBranch returns the checked-out branch, or types.ErrDetachedHead.
func (r *Repository) CurrentBranch(ctx context.Context) (string, error) {
	res, err := r.run.Run(ctx, r.git("symbolic-ref", "--quiet", "--short", "HEAD"))
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(res.Stdout)
	if !res.Success() || name == "" {
		return "", types.ErrDetachedHead
	}
	return name, nil
}

// ResolveCommit returns the full commit id ref points to.
func (r *Repository) ResolveCommit(ctx context.Context, ref string) (string, error) {
	if commit, ok := r.commits.Get(ref); ok {
		return commit, nil
	}
	commit, err := r.output(ctx, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", ref, err)
	}
	r.commits.Add(ref, commit)
	return commit, nil
}

// IsAncestor reports whether older is an ancestor of (or equal to) newer.
func (r *Repository) IsAncestor(ctx context.Context, older, newer string) (bool, error) {
	cmd := r.git("merge-base", "--is-ancestor", older, newer)
	res, err := r.run.Run(ctx, cmd)
	if err != nil {
		return false, err
	}
	switch res.ExitCode {
	case 0:
		return true, nil
	case 1:
		return false, nil
	default:
		return false, &runner.ExitError{Command: cmd, Code: res.ExitCode, Stderr: res.Stderr}
	}
}

// IsClean reports whether the working tree has no uncommitted changes.
// Untracked files do not count.
func (r *Repository) IsClean(ctx context.Context) (bool, error) {
	out, err := r.output(ctx, "status", "--porcelain", "--untracked-files=no")
	if err != nil {
		return false, fmt.Errorf("checking working tree: %w", err)
	}
	return out == "", nil
}

// Show returns the content of path (relative to the repository root) at commit.
func (r *Repository) Show(ctx context.Context, commit, path string) ([]byte, error) {
	res, err := r.run.Run(ctx, r.git("show", commit+":"+path))
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, fmt.Errorf("%s:%s: %w", commit, path, errNotFound)
	}
	return []byte(res.Stdout), nil
}

var errNotFound = errors.New("not found")

// IsNotFound reports whether err came from Show on a missing path.
func IsNotFound(err error) bool {
	return errors.Is(err, errNotFound)
}

// Clone makes a shallow, single-branch, submodule-inclusive clone of the
// repository at ref into dest.
func (r *Repository) Clone(ctx context.Context, ref, dest string) error {
	args := []string{
		"clone",
		"--quiet",
		"--depth", "1",
		"--single-branch",
		"--branch", ref,
		"--recurse-submodules",
		"--shallow-submodules",
		"file://" + filepath.ToSlash(r.root),
		dest,
	}
	cmd := runner.Command{Name: "git", Args: args, Dir: filepath.Dir(dest)}
	if _, err := runner.Output(ctx, r.run, cmd); err != nil {
		return err
	}
	r.logger.Debug("cloned", zap.String("ref", ref), zap.String("dest", dest))
	return nil
}

// CreateTag creates a lightweight tag name at commit.
func (r *Repository) CreateTag(ctx context.Context, name, commit string) error {
	if _, err := r.output(ctx, "tag", name, commit); err != nil {
		return fmt.Errorf("creating tag %s: %w", name, err)
	}
	r.commits.Remove(name)
	r.tags.Purge()
	return nil
}

func lines(out string) []string {
	var result []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}
	return result
}
