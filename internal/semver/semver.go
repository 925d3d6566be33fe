// Package semver implements strict semantic versions with npm-style
// increments. Validation and ordering are delegated to golang.org/x/mod/semver,
// segment extraction to hashicorp/go-version.
package semver

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	goversion "github.com/hashicorp/go-version"
	modsemver "golang.org/x/mod/semver"
)

var ErrInvalid = errors.New("invalid semantic version")

// Version is a parsed major.minor.patch[-prerelease][+build] version.
type Version struct {
	Major      uint64
	Minor      uint64
	Patch      uint64
	Prerelease string
	Build      string
}

// Parse parses s strictly: all three numeric components are required and
// leading zeros are rejected. A single leading "v" or "=" is accepted, as in
// git tags such as v1.2.3.
func Parse(s string) (*Version, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(raw, "=")
	raw = strings.TrimPrefix(raw, "v")

	canon := "v" + raw
	if !modsemver.IsValid(canon) {
		return nil, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	// x/mod accepts shorthands like v1 and v1.2; require the full form.
	withoutBuild, _, _ := strings.Cut(canon, "+")
	if modsemver.Canonical(canon) != withoutBuild {
		return nil, fmt.Errorf("%w: %q", ErrInvalid, s)
	}

	gv, err := goversion.NewSemver(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalid, s, err)
	}
	seg := gv.Segments64()
	if len(seg) < 3 {
		return nil, fmt.Errorf("%w: %q", ErrInvalid, s)
	}

	return &Version{
		Major:      uint64(seg[0]),
		Minor:      uint64(seg[1]),
		Patch:      uint64(seg[2]),
		Prerelease: gv.Prerelease(),
		Build:      gv.Metadata(),
	}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) *Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v *Version) String() string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(v.Major, 10))
	b.WriteByte('.')
	b.WriteString(strconv.FormatUint(v.Minor, 10))
	b.WriteByte('.')
	b.WriteString(strconv.FormatUint(v.Patch, 10))
	if v.Prerelease != "" {
		b.WriteByte('-')
		b.WriteString(v.Prerelease)
	}
	if v.Build != "" {
		b.WriteByte('+')
		b.WriteString(v.Build)
	}
	return b.String()
}

// Compare returns -1, 0 or +1. Build metadata does not take part in the order.
func (v *Version) Compare(o *Version) int {
	return modsemver.Compare("v"+v.String(), "v"+o.String())
}

func (v *Version) Equal(o *Version) bool       { return v.Compare(o) == 0 }
func (v *Version) LessThan(o *Version) bool    { return v.Compare(o) < 0 }
func (v *Version) GreaterThan(o *Version) bool { return v.Compare(o) > 0 }

// IncPatch follows npm: 1.2.3 -> 1.2.4, but 1.2.3-rc.1 -> 1.2.3.
func (v *Version) IncPatch() *Version {
	if v.Prerelease != "" {
		return &Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch}
	}
	return &Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}

// IncMinor follows npm: 1.2.3 -> 1.3.0, but 1.3.0-rc.1 -> 1.3.0.
func (v *Version) IncMinor() *Version {
	if v.Prerelease != "" && v.Patch == 0 {
		return &Version{Major: v.Major, Minor: v.Minor}
	}
	return &Version{Major: v.Major, Minor: v.Minor + 1}
}

// IncMajor follows npm: 1.2.3 -> 2.0.0, but 2.0.0-rc.1 -> 2.0.0.
func (v *Version) IncMajor() *Version {
	if v.Prerelease != "" && v.Minor == 0 && v.Patch == 0 {
		return &Version{Major: v.Major}
	}
	return &Version{Major: v.Major + 1}
}

// Max returns the greater of a and b. A nil argument loses; on a tie a is
// returned.
func Max(a, b *Version) *Version {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.GreaterThan(a):
		return b
	default:
		return a
	}
}
