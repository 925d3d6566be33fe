// Package manifest reads the parts of package.json that decide what a
// package exposes: its declared version, its type-declaration entry points
// and its scripts.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gnolang/tsbump/internal/semver"
	"github.com/gnolang/tsbump/internal/types"
)

const FileName = "package.json"

// Root is the entry point of the package itself (import "pkg").
const Root = ""

type Manifest struct {
	Path    string
	Version *semver.Version
	Scripts map[string]string

	rootTypes   bool
	entryPoints []string
}

// Load reads dir/package.json.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &types.MalformedManifestError{Path: path, Reason: "missing"}
		}
		return nil, &types.MalformedManifestError{Path: path, Reason: "unreadable", Err: err}
	}
	return Parse(path, data)
}

// Parse decodes a package.json document. path is only used in errors.
func Parse(path string, data []byte) (*Manifest, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		if !json.Valid(trimmed) {
			return nil, &types.MalformedManifestError{Path: path, Reason: "not valid JSON"}
		}
		return nil, &types.MalformedManifestError{Path: path, Reason: "not a JSON object"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, &types.MalformedManifestError{Path: path, Reason: "not valid JSON", Err: err}
	}

	m := &Manifest{Path: path}

	version, err := parseVersion(fields["version"])
	if err != nil {
		return nil, &types.MalformedManifestError{Path: path, Reason: "invalid version", Err: err}
	}
	m.Version = version

	if raw, ok := fields["scripts"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &m.Scripts); err != nil {
			return nil, &types.MalformedManifestError{Path: path, Reason: "invalid scripts", Err: err}
		}
	}

	m.rootTypes = declaresTypes(fields)
	m.entryPoints = exportEntryPoints(fields["exports"])
	return m, nil
}

func parseVersion(raw json.RawMessage) (*semver.Version, error) {
	if raw == nil || isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.New("version is not a string")
	}
	return semver.Parse(s)
}

// HasScript reports whether the manifest declares a non-empty script name.
func (m *Manifest) HasScript(name string) bool {
	return strings.TrimSpace(m.Scripts[name]) != ""
}

// EntryPoints returns the importable paths carrying type declarations:
// Root when the manifest declares root types, plus every export subpath
// whose target declares types. The result is sorted, deduplicated and never
// empty; a package without any type information still has Root.
func (m *Manifest) EntryPoints() []string {
	set := make(map[string]struct{})
	if m.rootTypes {
		set[Root] = struct{}{}
	}
	for _, ep := range m.entryPoints {
		set[ep] = struct{}{}
	}
	if len(set) == 0 {
		return []string{Root}
	}

	result := make([]string, 0, len(set))
	for ep := range set {
		result = append(result, ep)
	}
	sort.Strings(result)
	return result
}

func declaresTypes(fields map[string]json.RawMessage) bool {
	for _, key := range []string{"types", "typings"} {
		var s string
		if raw, ok := fields[key]; ok && json.Unmarshal(raw, &s) == nil && strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

// exportEntryPoints reads the "exports" map. Keys are subpaths ("." or
// "./feature"); a map without subpath keys is a condition map for ".".
// Pattern subpaths ("./*") cannot be imported literally and are skipped.
func exportEntryPoints(raw json.RawMessage) []string {
	if raw == nil || isNull(raw) {
		return nil
	}
	var exports map[string]json.RawMessage
	if err := json.Unmarshal(raw, &exports); err != nil {
		// A string or array exports value has no per-subpath type info.
		return nil
	}

	subpaths := false
	for key := range exports {
		if strings.HasPrefix(key, ".") {
			subpaths = true
			break
		}
	}
	if !subpaths {
		if targetDeclaresTypes(raw) {
			return []string{Root}
		}
		return nil
	}

	var result []string
	for key, target := range exports {
		if !strings.HasPrefix(key, ".") || strings.Contains(key, "*") {
			continue
		}
		if targetDeclaresTypes(target) {
			result = append(result, normalizeSubpath(key))
		}
	}
	return result
}

func targetDeclaresTypes(raw json.RawMessage) bool {
	var target map[string]json.RawMessage
	if err := json.Unmarshal(raw, &target); err != nil {
		return false
	}
	return declaresTypes(target)
}

func normalizeSubpath(key string) string {
	if key == "." {
		return Root
	}
	return strings.TrimPrefix(key, "./")
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
