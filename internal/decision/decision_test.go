package decision

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/tsbump/internal/semver"
)

func TestSelectBumpTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		previous string
		forwards bool
		backward bool
		want     Bump
	}{
		{previous: "0.4.2", forwards: true, backward: true, want: Patch},
		{previous: "3.4.2", forwards: true, backward: true, want: Patch},
		{previous: "0.4.2", forwards: true, backward: false, want: Minor},
		{previous: "3.4.2", forwards: true, backward: false, want: Minor},
		{previous: "0.4.2", forwards: false, backward: true, want: Minor},
		{previous: "0.4.2", forwards: false, backward: false, want: Minor},
		{previous: "3.4.2", forwards: false, backward: true, want: Major},
		{previous: "3.4.2", forwards: false, backward: false, want: Major},
	}

	for _, tt := range tests {
		name := fmt.Sprintf("%s/fwd=%t/bwd=%t", tt.previous, tt.forwards, tt.backward)
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got := SelectBump(semver.MustParse(tt.previous), Compatibility{ForwardsOk: tt.forwards, BackwardsOk: tt.backward})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecideIsMonotonic(t *testing.T) {
	t.Parallel()

	previous := []string{"0.0.0", "0.1.0", "0.9.9", "1.0.0", "2.3.4", "1.0.0-rc.1", "0.2.0-beta.1"}
	declared := []string{"", "0.0.1", "0.5.0", "1.0.0", "5.0.0"}

	for _, p := range previous {
		for _, c := range declared {
			for _, fwd := range []bool{true, false} {
				for _, bwd := range []bool{true, false} {
					pv := semver.MustParse(p)
					var cv *semver.Version
					if c != "" {
						cv = semver.MustParse(c)
					}
					d := Decide(pv, cv, Compatibility{ForwardsOk: fwd, BackwardsOk: bwd})

					require.NotNil(t, d.Version)
					assert.True(t, d.Version.GreaterThan(pv), "%s -> %s must move forward", p, d.Version)
					if cv != nil {
						assert.False(t, d.Version.LessThan(cv), "%s must not fall below declared %s", d.Version, cv)
					}
					if d.Floored {
						assert.True(t, d.Version.Equal(cv))
						assert.True(t, cv.GreaterThan(d.Bumped))
					} else {
						assert.True(t, d.Version.Equal(d.Bumped))
					}
				}
			}
		}
	}
}

func TestDecideFloor(t *testing.T) {
	t.Parallel()

	d := Decide(semver.MustParse("0.3.0"), semver.MustParse("1.0.1"), Compatibility{ForwardsOk: true, BackwardsOk: true})
	assert.Equal(t, "1.0.1", d.Version.String())
	assert.Equal(t, "0.3.1", d.Bumped.String())
	assert.True(t, d.Floored)

	d = Decide(semver.MustParse("0.3.0"), semver.MustParse("0.3.0"), Compatibility{ForwardsOk: true})
	assert.Equal(t, "0.4.0", d.Version.String())
	assert.False(t, d.Floored)

	// A declared version equal to the bump is not a floor.
	d = Decide(semver.MustParse("0.3.0"), semver.MustParse("0.4.0"), Compatibility{ForwardsOk: true})
	assert.Equal(t, "0.4.0", d.Version.String())
	assert.False(t, d.Floored)

	d = Decide(semver.MustParse("0.3.0"), nil, Compatibility{})
	assert.Equal(t, "0.4.0", d.Version.String())
	assert.False(t, d.Floored)
}

// TestFixtureHistory replays a seven commit history of growing API scope.
func TestFixtureHistory(t *testing.T) {
	t.Parallel()

	steps := []struct {
		declared string
		compat   Compatibility
		want     string
	}{
		// Mutually substitutable change.
		{declared: "0.1.0", compat: Compatibility{ForwardsOk: true, BackwardsOk: true}, want: "0.1.1"},
		// Additions.
		{declared: "0.1.1", compat: Compatibility{ForwardsOk: true}, want: "0.2.0"},
		{declared: "0.2.0", compat: Compatibility{ForwardsOk: true}, want: "0.3.0"},
		// Manual bump ahead of the computed patch.
		{declared: "1.0.1", compat: Compatibility{ForwardsOk: true, BackwardsOk: true}, want: "1.0.1"},
		{declared: "1.0.1", compat: Compatibility{ForwardsOk: true}, want: "1.1.0"},
		// Breaking change after 1.0.
		{declared: "1.1.0", compat: Compatibility{}, want: "2.0.0"},
	}

	history := []string{InitialVersion}
	previous := semver.MustParse(InitialVersion)
	for _, step := range steps {
		d := Decide(previous, semver.MustParse(step.declared), step.compat)
		require.Equal(t, step.want, d.Version.String())
		history = append(history, d.Version.String())
		previous = d.Version
	}

	assert.Equal(t, []string{"0.1.0", "0.1.1", "0.2.0", "0.3.0", "1.0.1", "1.1.0", "2.0.0"}, history)
}

func TestBumpString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "patch", Patch.String())
	assert.Equal(t, "minor", Minor.String())
	assert.Equal(t, "major", Major.String())
	assert.Equal(t, "unknown", Bump(9).String())
}
