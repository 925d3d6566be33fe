package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/tsbump/internal/runner"
	"github.com/gnolang/tsbump/internal/types"
)

func openTestRepo(t *testing.T, rec *runner.Recorder) *Repository {
	t.Helper()
	root := t.TempDir()
	rec.On("git rev-parse --show-toplevel", runner.Response{Stdout: root + "\n"})
	repo, err := Open(context.Background(), rec, root, nil)
	require.NoError(t, err)
	return repo
}

func TestOpenOutsideRepository(t *testing.T) {
	t.Parallel()

	rec := runner.NewRecorder().
		On("git rev-parse --show-toplevel", runner.Response{ExitCode: 128, Stderr: "fatal: not a git repository"})

	_, err := Open(context.Background(), rec, t.TempDir(), nil)
	assert.ErrorIs(t, err, types.ErrNoRepository)
	assert.ErrorIs(t, err, types.ErrEnvironment)
}

func TestTags(t *testing.T) {
	t.Parallel()

	rec := runner.NewRecorder()
	repo := openTestRepo(t, rec)
	rec.On("git tag --list", runner.Response{Stdout: "v0.1.0\n0.2.0\nfeature-x\n"})
	rec.On("git tag --list --merged c4c4c4", runner.Response{Stdout: "v0.1.0\n0.2.0\n\n"})

	merged, err := repo.Tags(context.Background(), "c4c4c4")
	require.NoError(t, err)
	assert.Equal(t, []string{"v0.1.0", "0.2.0"}, merged)

	all, err := repo.Tags(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"v0.1.0", "0.2.0", "feature-x"}, all)

	for _, c := range rec.Calls() {
		assert.Equal(t, repo.Root(), c.Dir, "every command runs in the repository root")
	}
}

func TestTagsAreCached(t *testing.T) {
	t.Parallel()

	rec := runner.NewRecorder()
	repo := openTestRepo(t, rec)
	rec.On("git tag --list", runner.Response{Stdout: "1.0.0\n"})
	rec.On("git tag 1.1.0 deadbeef", runner.Response{})

	count := func() int {
		n := 0
		for _, c := range rec.Calls() {
			if c.Line() == "git tag --list" {
				n++
			}
		}
		return n
	}

	first, err := repo.Tags(context.Background(), "")
	require.NoError(t, err)
	first[0] = "mutated"

	second, err := repo.Tags(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0"}, second, "callers get their own copy")
	assert.Equal(t, 1, count())

	// A new tag invalidates the listings.
	require.NoError(t, repo.CreateTag(context.Background(), "1.1.0", "deadbeef"))
	rec.On("git tag --list", runner.Response{Stdout: "1.0.0\n1.1.0\n"})
	third, err := repo.Tags(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0", "1.1.0"}, third)
	assert.Equal(t, 2, count())
}

func TestCurrentBranch(t *testing.T) {
	t.Parallel()

	rec := runner.NewRecorder()
	repo := openTestRepo(t, rec)

	rec.On("git symbolic-ref", runner.Response{Stdout: "main\n"})
	branch, err := repo.CurrentBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	rec.On("git symbolic-ref", runner.Response{ExitCode: 1})
	_, err = repo.CurrentBranch(context.Background())
	assert.ErrorIs(t, err, types.ErrDetachedHead)
}

func TestResolveCommitIsCached(t *testing.T) {
	t.Parallel()

	rec := runner.NewRecorder()
	repo := openTestRepo(t, rec)
	rec.On("git rev-parse --verify --quiet v1.0.0^{commit}", runner.Response{Stdout: "deadbeef\n"})

	for range 3 {
		commit, err := repo.ResolveCommit(context.Background(), "v1.0.0")
		require.NoError(t, err)
		assert.Equal(t, "deadbeef", commit)
	}

	count := 0
	for _, c := range rec.Calls() {
		if c.Line() == "git rev-parse --verify --quiet v1.0.0^{commit}" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	rec.On("git rev-parse --verify --quiet nope", runner.Response{ExitCode: 1})
	_, err := repo.ResolveCommit(context.Background(), "nope")
	assert.Error(t, err)
}

func TestIsAncestor(t *testing.T) {
	t.Parallel()

	rec := runner.NewRecorder()
	repo := openTestRepo(t, rec)

	rec.On("git merge-base --is-ancestor a b", runner.Response{ExitCode: 0})
	rec.On("git merge-base --is-ancestor b a", runner.Response{ExitCode: 1})
	rec.On("git merge-base --is-ancestor x y", runner.Response{ExitCode: 128, Stderr: "fatal: bad object x"})

	ok, err := repo.IsAncestor(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IsAncestor(context.Background(), "b", "a")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.IsAncestor(context.Background(), "x", "y")
	var exitErr *runner.ExitError
	assert.ErrorAs(t, err, &exitErr)
}

func TestIsClean(t *testing.T) {
	t.Parallel()

	rec := runner.NewRecorder()
	repo := openTestRepo(t, rec)

	rec.On("git status --porcelain", runner.Response{Stdout: ""})
	clean, err := repo.IsClean(context.Background())
	require.NoError(t, err)
	assert.True(t, clean)

	rec.On("git status --porcelain", runner.Response{Stdout: " M package.json\n"})
	clean, err = repo.IsClean(context.Background())
	require.NoError(t, err)
	assert.False(t, clean)
}

func TestShow(t *testing.T) {
	t.Parallel()

	rec := runner.NewRecorder()
	repo := openTestRepo(t, rec)

	rec.On("git show abc:package.json", runner.Response{Stdout: `{"version":"1.0.0"}`})
	rec.On("git show abc:missing.json", runner.Response{ExitCode: 128})

	data, err := repo.Show(context.Background(), "abc", "package.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"1.0.0"}`, string(data))

	_, err = repo.Show(context.Background(), "abc", "missing.json")
	assert.True(t, IsNotFound(err))
}

func TestClone(t *testing.T) {
	t.Parallel()

	rec := runner.NewRecorder()
	repo := openTestRepo(t, rec)
	rec.On("git clone", runner.Response{})

	dest := filepath.Join(t.TempDir(), "previous", "clone")
	require.NoError(t, repo.Clone(context.Background(), "v1.0.0", dest))

	calls := rec.Calls()
	last := calls[len(calls)-1]
	assert.Equal(t, filepath.Dir(dest), last.Dir)
	assert.Contains(t, last.Args, "--depth")
	assert.Contains(t, last.Args, "--single-branch")
	assert.Contains(t, last.Args, "--recurse-submodules")
	assert.Equal(t, "file://"+filepath.ToSlash(repo.Root()), last.Args[len(last.Args)-2])
	assert.Equal(t, dest, last.Args[len(last.Args)-1])

	rec.On("git clone", runner.Response{ExitCode: 128, Stderr: "fatal: Remote branch nope not found"})
	err := repo.Clone(context.Background(), "nope", dest)
	assert.ErrorContains(t, err, "Remote branch nope not found")
}

func TestRelPath(t *testing.T) {
	t.Parallel()

	rec := runner.NewRecorder()
	repo := openTestRepo(t, rec)

	sub := filepath.Join(repo.Root(), "packages", "lib")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	rel, err := repo.RelPath(sub)
	require.NoError(t, err)
	assert.Equal(t, "packages/lib", rel)

	rel, err = repo.RelPath(repo.Root())
	require.NoError(t, err)
	assert.Equal(t, ".", rel)

	_, err = repo.RelPath(t.TempDir())
	assert.Error(t, err)
}

func TestCreateTag(t *testing.T) {
	t.Parallel()

	rec := runner.NewRecorder()
	repo := openTestRepo(t, rec)

	rec.On("git tag 1.1.0 deadbeef", runner.Response{})
	require.NoError(t, repo.CreateTag(context.Background(), "1.1.0", "deadbeef"))

	rec.On("git tag 1.1.0 deadbeef", runner.Response{ExitCode: 128, Stderr: "fatal: tag '1.1.0' already exists"})
	assert.ErrorContains(t, repo.CreateTag(context.Background(), "1.1.0", "deadbeef"), "already exists")
}
