package formatter

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/gnolang/tsbump/internal/decision"
	"github.com/gnolang/tsbump/internal/engine"
	"github.com/gnolang/tsbump/internal/runner"
	"github.com/gnolang/tsbump/internal/semver"
	"github.com/gnolang/tsbump/internal/types"
)

func init() {
	color.NoColor = true
}

func TestFormatError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "plain",
			err:  errors.New("boom"),
			want: "error: boom\n",
		},
		{
			name: "dirty tree",
			err:  types.ErrDirtyTree,
			want: "error: working tree has uncommitted changes (commit or stash your changes)\n",
		},
		{
			name: "detached head",
			err:  types.ErrDetachedHead,
			want: "error: environment error: HEAD is detached, no current branch (check out a branch or pass --to)\n",
		},
		{
			name: "stage error keeps to one line",
			err: &types.StageError{
				Stage: types.StageBuild,
				Ref:   "main",
				Err: &runner.ExitError{
					Command: runner.Command{Name: "npm", Args: []string{"run", "build"}},
					Code:    2,
					Stderr:  "src/index.ts(3,1): error TS1005\nsecond line",
				},
			},
			want: "error: build failed for main: npm run build: exit status 2: src/index.ts(3,1): error TS1005\n",
		},
		{
			name: "wrapped newlines collapse",
			err:  fmt.Errorf("resolving --to x: %w", errors.New("line one\nline two")),
			want: "error: resolving --to x: line one line two\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := FormatError(tt.err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, strings.Count(got, "\n"))
		})
	}
}

func TestFormatResultInitial(t *testing.T) {
	t.Parallel()

	res := &engine.Result{
		Version: semver.MustParse("0.1.0"),
		Reason:  engine.ReasonInitial,
		Current: types.Reference{Name: "main", Kind: types.RefBranch, Commit: "0123456789"},
	}

	expected := `previous: none
current:  branch main (0123456)
version:  0.1.0 (initial)
`
	assert.Equal(t, expected, FormatResult(res))
}

func TestFormatResultUnchanged(t *testing.T) {
	t.Parallel()

	res := &engine.Result{
		Version:  semver.MustParse("1.3.0"),
		Reason:   engine.ReasonUnchanged,
		Previous: &types.Reference{Name: "v1.3.0", Kind: types.RefTag, Commit: "abcdef0123"},
		Current:  types.Reference{Name: "main", Kind: types.RefBranch, Commit: "abcdef0123"},
	}

	expected := `previous: tag v1.3.0 (abcdef0)
current:  branch main (abcdef0)
version:  1.3.0 (same commit, unchanged)
`
	assert.Equal(t, expected, FormatResult(res))
}

func TestFormatResultCompared(t *testing.T) {
	t.Parallel()

	previous := semver.MustParse("0.3.0")
	declared := semver.MustParse("1.0.1")
	compat := decision.Compatibility{ForwardsOk: true, BackwardsOk: false}
	d := decision.Decide(previous, declared, compat)

	res := &engine.Result{
		Version:         d.Version,
		Reason:          engine.ReasonCompared,
		Previous:        &types.Reference{Name: "0.3.0", Kind: types.RefTag, Commit: "1111111aaa"},
		Current:         types.Reference{Name: "feature", Kind: types.RefOther, Commit: "2222222bbb"},
		PreviousVersion: previous,
		DeclaredVersion: declared,
		Compatibility:   compat,
		Decision:        &d,
	}

	expected := `previous: tag 0.3.0 (1111111) declares 0.3.0
current:  feature (2222222) declares 1.0.1
forward:  ok   current can stand in for previous
backward: fail previous can stand in for current
bump:     minor 0.3.0 -> 0.4.0
floor:    declared 1.0.1 exceeds 0.4.0, kept
version:  1.0.1
`
	assert.Equal(t, expected, FormatResult(res))
}

func TestFormatResultWithoutFloor(t *testing.T) {
	t.Parallel()

	previous := semver.MustParse("2.0.0")
	d := decision.Decide(previous, nil, decision.Compatibility{})
	res := &engine.Result{
		Version:         d.Version,
		Reason:          engine.ReasonCompared,
		Previous:        &types.Reference{Name: "2.0.0", Kind: types.RefTag},
		Current:         types.Reference{Name: "main", Kind: types.RefBranch},
		PreviousVersion: previous,
		Decision:        &d,
	}

	out := FormatResult(res)
	assert.Contains(t, out, "current:  branch main declares none\n")
	assert.Contains(t, out, "bump:     major 2.0.0 -> 3.0.0\n")
	assert.NotContains(t, out, "floor:")
	assert.True(t, strings.HasSuffix(out, "version:  3.0.0\n"))
}
