package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gnolang/tsbump/internal/semver"
	"github.com/gnolang/tsbump/internal/types"
)

// member is one top-level key of a JSON object, located in the source.
type member struct {
	key      string
	keyStart int
	// valueStart and valueEnd delimit the value literal.
	valueStart int
	valueEnd   int
}

// scanMembers locates the top-level members of the object in data. open is
// the offset just past the opening brace.
func scanMembers(data []byte) (members []member, open int, err error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, 0, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, 0, fmt.Errorf("expected object")
	}
	open = int(dec.InputOffset())

	for dec.More() {
		prev := int(dec.InputOffset())
		tok, err := dec.Token()
		if err != nil {
			return nil, 0, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, 0, fmt.Errorf("expected object key")
		}
		keyEnd := int(dec.InputOffset())

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, 0, err
		}
		end := int(dec.InputOffset())
		members = append(members, member{
			key:        key,
			keyStart:   prev + bytes.IndexByte(data[prev:keyEnd], '"'),
			valueStart: end - len(bytes.TrimSpace(value)),
			valueEnd:   end,
		})
	}
	if _, err := dec.Token(); err != nil {
		return nil, 0, err
	}
	return members, open, nil
}

// lineIndent returns the whitespace between the start of the line holding
// offset and offset itself. ok is false when offset does not start its line.
func lineIndent(data []byte, offset int) (indent string, ok bool) {
	start := bytes.LastIndexByte(data[:offset], '\n') + 1
	prefix := data[start:offset]
	if len(bytes.TrimLeft(prefix, " \t")) != 0 || start == 0 {
		return "", false
	}
	return string(prefix), true
}

// separator joins two members the way the member at offset is laid out.
func separator(data []byte, offset int) []byte {
	if indent, ok := lineIndent(data, offset); ok {
		return []byte(",\n" + indent)
	}
	return []byte(", ")
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func splice(data []byte, at, end int, insert []byte) []byte {
	out := make([]byte, 0, len(data)-(end-at)+len(insert))
	out = append(out, data[:at]...)
	out = append(out, insert...)
	return append(out, data[end:]...)
}

// withVersion returns data with the version member set to value. An
// existing value is replaced in place and nothing else changes. A missing
// member is inserted after "name", or first, on a line of its own when the
// object spans several lines.
func withVersion(data []byte, value []byte) ([]byte, error) {
	members, open, err := scanMembers(data)
	if err != nil {
		return nil, err
	}

	var name *member
	for i := len(members) - 1; i >= 0; i-- {
		m := &members[i]
		if m.key == "version" {
			return splice(data, m.valueStart, m.valueEnd, value), nil
		}
		if m.key == "name" && name == nil {
			name = m
		}
	}

	entry := append([]byte(`"version": `), value...)
	switch {
	case name != nil:
		insert := append(separator(data, name.keyStart), entry...)
		return splice(data, name.valueEnd, name.valueEnd, insert), nil
	case len(members) > 0:
		first := members[0].keyStart
		insert := append(entry, separator(data, first)...)
		return splice(data, first, first, insert), nil
	default:
		closing := bytes.LastIndexByte(data, '}')
		return splice(data, open, closing, entry), nil
	}
}

// SetVersion rewrites the version field of the manifest at path. Only the
// version value changes; every other byte of the file is kept.
func SetVersion(path string, v *semver.Version) error {
	info, err := os.Stat(path)
	if err != nil {
		return &types.MalformedManifestError{Path: path, Reason: "missing", Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return &types.MalformedManifestError{Path: path, Reason: "unreadable", Err: err}
	}

	value, err := marshal(v.String())
	if err != nil {
		return err
	}
	out, err := withVersion(data, value)
	if err != nil {
		return &types.MalformedManifestError{Path: path, Reason: "not a JSON object", Err: err}
	}
	return os.WriteFile(path, out, info.Mode().Perm())
}

// WriteConsumer writes a private package.json into dir that depends on the
// given packages. Map keys are emitted sorted, so the output is stable.
func WriteConsumer(dir, name string, dependencies, devDependencies map[string]string) error {
	doc := struct {
		Name            string            `json:"name"`
		Version         string            `json:"version"`
		Private         bool              `json:"private"`
		Type            string            `json:"type"`
		Dependencies    map[string]string `json:"dependencies,omitempty"`
		DevDependencies map[string]string `json:"devDependencies,omitempty"`
	}{
		Name:            name,
		Version:         "0.0.0",
		Private:         true,
		Type:            "module",
		Dependencies:    dependencies,
		DevDependencies: devDependencies,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, FileName), append(data, '\n'), 0o644)
}
