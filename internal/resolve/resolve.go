// Package resolve picks the two references a run compares: the highest
// semantic-version tag as "previous" and the checked-out branch as "current".
package resolve

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/gnolang/tsbump/internal/semver"
	"github.com/gnolang/tsbump/internal/types"
)

// Policy selects which tags are candidates for the previous reference.
type Policy string

const (
	// PolicyReachable only considers tags reachable from the current
	// reference.
	PolicyReachable Policy = "reachable"
	// PolicyAll considers every tag in the repository.
	PolicyAll Policy = "all"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyReachable, nil
	case PolicyReachable, PolicyAll:
		return p, nil
	default:
		return "", fmt.Errorf("unknown tag policy %q (want %q or %q)", s, PolicyReachable, PolicyAll)
	}
}

// Repository is the subset of *git.Repository the resolver needs.
type Repository interface {
	Tags(ctx context.Context, mergedInto string) ([]string, error)
	Branches(ctx context.Context) ([]string, error)
	CurrentBranch(ctx context.Context) (string, error)
	ResolveCommit(ctx context.Context, ref string) (string, error)
	IsAncestor(ctx context.Context, older, newer string) (bool, error)
}

type Resolver struct {
	repo   Repository
	policy Policy
	logger *zap.Logger
}

func New(repo Repository, policy Policy, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == "" {
		policy = PolicyReachable
	}
	return &Resolver{repo: repo, policy: policy, logger: logger}
}

// TaggedVersion is a tag name together with the version it names.
type TaggedVersion struct {
	Tag     string
	Version *semver.Version
}

// VersionTags keeps the tags that are valid semantic versions, highest first.
func VersionTags(tags []string) []TaggedVersion {
	var result []TaggedVersion
	for _, tag := range tags {
		v, err := semver.Parse(tag)
		if err != nil {
			continue
		}
		result = append(result, TaggedVersion{Tag: tag, Version: v})
	}
	slices.SortStableFunc(result, func(a, b TaggedVersion) int {
		return b.Version.Compare(a.Version)
	})
	return result
}

// Highest returns the greatest version tag, or false when there is none.
func Highest(tags []string) (TaggedVersion, bool) {
	sorted := VersionTags(tags)
	if len(sorted) == 0 {
		return TaggedVersion{}, false
	}
	return sorted[0], true
}

// mergedInto is the Tags filter the policy asks for when target is the
// current revision.
func (r *Resolver) mergedInto(target string) string {
	if r.policy == PolicyReachable {
		return target
	}
	return ""
}

// Tags lists candidate version tags under the resolver's policy, highest
// first, with HEAD as the current revision.
func (r *Resolver) Tags(ctx context.Context) ([]TaggedVersion, error) {
	tags, err := r.repo.Tags(ctx, r.mergedInto("HEAD"))
	if err != nil {
		return nil, err
	}
	return VersionTags(tags), nil
}

// HighestVersionReference returns the previous reference for current, or
// nil when no version tag qualifies. Under PolicyReachable only tags that
// current's commit reaches are candidates.
func (r *Resolver) HighestVersionReference(ctx context.Context, current types.Reference) (*types.Reference, error) {
	tags, err := r.repo.Tags(ctx, r.mergedInto(current.Commit))
	if err != nil {
		return nil, err
	}
	best, ok := Highest(tags)
	if !ok {
		r.logger.Debug("no version tag found", zap.String("policy", string(r.policy)))
		return nil, nil
	}

	commit, err := r.repo.ResolveCommit(ctx, best.Tag)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("previous reference", zap.String("tag", best.Tag), zap.String("commit", commit))
	return &types.Reference{Name: best.Tag, Kind: types.RefTag, Commit: commit}, nil
}

// CurrentReference returns the checked-out branch.
func (r *Resolver) CurrentReference(ctx context.Context) (types.Reference, error) {
	branch, err := r.repo.CurrentBranch(ctx)
	if err != nil {
		return types.Reference{}, err
	}
	commit, err := r.repo.ResolveCommit(ctx, branch)
	if err != nil {
		return types.Reference{}, err
	}
	return types.Reference{Name: branch, Kind: types.RefBranch, Commit: commit}, nil
}

// Reference resolves an explicit from/to override.
func (r *Resolver) Reference(ctx context.Context, name string) (types.Reference, error) {
	commit, err := r.repo.ResolveCommit(ctx, name)
	if err != nil {
		return types.Reference{}, err
	}

	kind := types.RefOther
	tags, err := r.repo.Tags(ctx, "")
	if err != nil {
		return types.Reference{}, err
	}
	if slices.Contains(tags, name) {
		kind = types.RefTag
	} else {
		branches, err := r.repo.Branches(ctx)
		if err != nil {
			return types.Reference{}, err
		}
		if slices.Contains(branches, name) {
			kind = types.RefBranch
		}
	}
	return types.Reference{Name: name, Kind: kind, Commit: commit}, nil
}

// IsDescendant reports whether newer descends from older.
func (r *Resolver) IsDescendant(ctx context.Context, older, newer types.Reference) (bool, error) {
	return r.repo.IsAncestor(ctx, older.Commit, newer.Commit)
}
