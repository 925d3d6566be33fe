package types

import (
	"errors"
	"fmt"
)

// ErrEnvironment is the kind shared by errors about the surroundings of a
// run rather than the package under evaluation.
var ErrEnvironment = errors.New("environment error")

var (
	ErrNoRepository = fmt.Errorf("%w: no git repository found", ErrEnvironment)
	ErrDetachedHead = fmt.Errorf("%w: HEAD is detached, no current branch", ErrEnvironment)
	ErrDirtyTree    = errors.New("working tree has uncommitted changes")
	ErrUnreachable  = errors.New("current reference is not a descendant of the previous reference")
)

// Stage names an external-process step of the packaging pipeline.
type Stage string

const (
	StageClone   Stage = "clone"
	StageRename  Stage = "rename"
	StageInstall Stage = "install"
	StageBuild   Stage = "build"
	StagePack    Stage = "pack"
)

// StageError reports which stage failed for which reference.
type StageError struct {
	Stage Stage
	Ref   string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Stage, e.Ref, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// MalformedManifestError reports a package.json that is missing, unparsable,
// not an object, or carries an invalid field.
type MalformedManifestError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MalformedManifestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed manifest %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed manifest %s: %s", e.Path, e.Reason)
}

func (e *MalformedManifestError) Unwrap() error {
	return e.Err
}
