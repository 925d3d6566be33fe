package types

import (
	"github.com/gnolang/tsbump/internal/semver"
)

// RefKind tells how a Reference was obtained.
type RefKind string

const (
	RefTag    RefKind = "tag"
	RefBranch RefKind = "branch"
	// RefOther is an explicit override that is neither a known tag nor a branch.
	RefOther RefKind = "other"
)

// Reference is a named pointer into history plus the commit it resolves to.
type Reference struct {
	Name   string
	Kind   RefKind
	Commit string
}

func (r Reference) String() string {
	if len(r.Commit) >= 7 {
		return r.Name + " (" + r.Commit[:7] + ")"
	}
	return r.Name
}

// TagVersion returns the version a tag reference names, or nil.
func (r Reference) TagVersion() *semver.Version {
	if r.Kind != RefTag {
		return nil
	}
	v, err := semver.Parse(r.Name)
	if err != nil {
		return nil
	}
	return v
}

// Role distinguishes the two sides of a comparison.
type Role string

const (
	RolePrevious Role = "previous"
	RoleCurrent  Role = "current"
)

// PackageName is the synthetic package identity an artifact of this role is
// installed under, so that both sides can live in one node_modules.
func (r Role) PackageName() string {
	return "tsbump-" + string(r)
}

// Artifact is a built and packed package produced from one Reference.
type Artifact struct {
	Role      Role
	Reference Reference
	Package   string
	// EntryPoints are sorted and deduplicated; "" is the root entry point.
	// There is always at least one.
	EntryPoints []string
	// Version is the declared manifest version; nil when the manifest omits it.
	Version *semver.Version
	// Archive is the absolute path of the packed tarball.
	Archive string
}
