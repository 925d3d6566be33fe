// Package witness synthesizes the two programs whose type-checking decides
// compatibility. Each program imports every entry point of both artifacts,
// gathers them into one aggregate per artifact, and assigns one aggregate to
// the declared type of the other. The program type-checks exactly when the
// assigned shape can substitute for the target shape.
package witness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/gnolang/tsbump/internal/types"
)

const (
	ForwardFile  = "forwardFits.mts"
	BackwardFile = "backwardFits.mts"
)

// RootKey is the aggregate key of the root entry point.
const RootKey = "."

// Pair holds the two witness programs.
type Pair struct {
	// Forward checks that the current shape can stand in for the previous one.
	Forward []byte
	// Backward checks that the previous shape can stand in for the current one.
	Backward []byte
}

// Side is one artifact as seen by the witness: its package name and entry points.
type Side struct {
	Role        types.Role
	Package     string
	EntryPoints []string
}

// SideOf extracts the witness-relevant part of an artifact.
func SideOf(a *types.Artifact) Side {
	return Side{Role: a.Role, Package: a.Package, EntryPoints: a.EntryPoints}
}

type importLine struct {
	Alias string
	Path  string
	Key   string
}

type aggregate struct {
	Name    string
	Imports []importLine
}

type program struct {
	Aggregates []aggregate
	Check      string
	Target     string
	Source     string
}

var programTemplate = template.Must(template.New("witness").Parse(
	`{{range .Aggregates}}{{range .Imports}}import * as {{.Alias}} from {{.Path}};
{{end}}{{end}}{{range .Aggregates}}
const {{.Name}} = {
{{range .Imports}}  {{.Key}}: {{.Alias}},
{{end}}};
{{end}}
const {{.Check}}: typeof {{.Target}} = {{.Source}};
void {{.Check}};
`))

// Build renders the forward and backward programs. Output depends only on
// the package names and the sets of entry points, never on their order.
func Build(previous, current Side) (*Pair, error) {
	prev, err := newAggregate(previous)
	if err != nil {
		return nil, err
	}
	cur, err := newAggregate(current)
	if err != nil {
		return nil, err
	}

	forward, err := render(program{
		Aggregates: []aggregate{prev, cur},
		Check:      "forwardFits",
		Target:     prev.Name,
		Source:     cur.Name,
	})
	if err != nil {
		return nil, err
	}
	backward, err := render(program{
		Aggregates: []aggregate{prev, cur},
		Check:      "backwardFits",
		Target:     cur.Name,
		Source:     prev.Name,
	})
	if err != nil {
		return nil, err
	}
	return &Pair{Forward: forward, Backward: backward}, nil
}

func newAggregate(side Side) (aggregate, error) {
	if side.Role == "" || side.Package == "" {
		return aggregate{}, fmt.Errorf("witness: side needs a role and a package name")
	}
	name := identifier(string(side.Role))

	eps := normalize(side.EntryPoints)
	imports := make([]importLine, len(eps))
	for i, ep := range eps {
		path, err := quote(ImportPath(side.Package, ep))
		if err != nil {
			return aggregate{}, err
		}
		key, err := quote(Key(ep))
		if err != nil {
			return aggregate{}, err
		}
		imports[i] = importLine{
			Alias: fmt.Sprintf("%s_%d", name, i),
			Path:  path,
			Key:   key,
		}
	}
	return aggregate{Name: name, Imports: imports}, nil
}

func render(p program) ([]byte, error) {
	var buf bytes.Buffer
	if err := programTemplate.Execute(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ImportPath is the module specifier of entry point ep of pkg.
func ImportPath(pkg, ep string) string {
	if ep == "" {
		return pkg
	}
	return pkg + "/" + ep
}

// Key is the aggregate key of entry point ep, spelled like an exports map key.
func Key(ep string) string {
	if ep == "" {
		return RootKey
	}
	return "./" + ep
}

// normalize sorts and deduplicates entry points; an empty set becomes the
// root entry point alone.
func normalize(eps []string) []string {
	seen := make(map[string]struct{}, len(eps))
	var out []string
	for _, ep := range eps {
		if _, ok := seen[ep]; ok {
			continue
		}
		seen[ep] = struct{}{}
		out = append(out, ep)
	}
	if len(out) == 0 {
		return []string{""}
	}
	sort.Strings(out)
	return out
}

// quote renders s as a string literal that is valid in both JSON and
// TypeScript.
func quote(s string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func identifier(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r >= '0' && r <= '9' && b.Len() > 0:
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// Write stores both programs in dir and returns their paths.
func (p *Pair) Write(dir string) (forward, backward string, err error) {
	forward = filepath.Join(dir, ForwardFile)
	backward = filepath.Join(dir, BackwardFile)
	if err := os.WriteFile(forward, p.Forward, 0o644); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(backward, p.Backward, 0o644); err != nil {
		return "", "", err
	}
	return forward, backward, nil
}
