// Package decision maps the two compatibility verdicts onto a semantic
// version bump. It is pure: no I/O, no state.
package decision

import (
	"github.com/gnolang/tsbump/internal/semver"
)

// InitialVersion is reported for a package that has no version tag yet.
const InitialVersion = "0.1.0"

type Bump int

const (
	Patch Bump = iota
	Minor
	Major
)

func (b Bump) String() string {
	switch b {
	case Patch:
		return "patch"
	case Minor:
		return "minor"
	case Major:
		return "major"
	default:
		return "unknown"
	}
}

// Apply increments v by b.
func (b Bump) Apply(v *semver.Version) *semver.Version {
	switch b {
	case Major:
		return v.IncMajor()
	case Minor:
		return v.IncMinor()
	default:
		return v.IncPatch()
	}
}

// Compatibility holds the oracle's verdicts.
type Compatibility struct {
	// ForwardsOk: the current shape can substitute for the previous one.
	ForwardsOk bool
	// BackwardsOk: the previous shape can substitute for the current one.
	BackwardsOk bool
}

// Decision is the outcome of Decide.
type Decision struct {
	Version *semver.Version
	Bump    Bump
	// Bumped is Bump applied to the previous version, before the floor.
	Bumped *semver.Version
	// Floored is set when the declared current version exceeded Bumped
	// and was kept instead.
	Floored bool
}

// SelectBump picks the bump for the given verdicts. While the previous
// major version is 0, a breaking change is only a minor bump: leaving the
// 0.x series is a manual decision.
func SelectBump(previous *semver.Version, c Compatibility) Bump {
	switch {
	case c.ForwardsOk && c.BackwardsOk:
		return Patch
	case c.ForwardsOk:
		return Minor
	case previous.Major == 0:
		return Minor
	default:
		return Major
	}
}

// Decide computes the version to report. declared is the version in the
// current manifest and may be nil; the result never falls below it.
func Decide(previous, declared *semver.Version, c Compatibility) Decision {
	bump := SelectBump(previous, c)
	bumped := bump.Apply(previous)

	version := semver.Max(bumped, declared)
	return Decision{Version: version, Bump: bump, Bumped: bumped, Floored: version != bumped}
}
