package formatter

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/fatih/color"

	"github.com/gnolang/tsbump/internal/engine"
	"github.com/gnolang/tsbump/internal/semver"
	"github.com/gnolang/tsbump/internal/types"
)

var (
	errorStyle   = color.New(color.FgRed, color.Bold)
	labelStyle   = color.New(color.FgHiBlue, color.Bold)
	refStyle     = color.New(color.FgCyan, color.Bold)
	versionStyle = color.New(color.FgGreen, color.Bold)
	bumpStyle    = color.New(color.FgYellow, color.Bold)
	okStyle      = color.New(color.FgGreen)
	failStyle    = color.New(color.FgRed)
	noStyle      = color.New(color.FgWhite)
)

/***** Result Explanation Builder *****/

type ResultData struct {
	Reason   string
	Version  string
	Previous string
	Current  string

	PreviousVersion string
	DeclaredVersion string
	ForwardsOk      bool
	BackwardsOk     bool
	Bump            string
	Bumped          string
	Floored         bool
}

const initialTemplate = `{{label "previous"}}{{none}}
{{label "current"}}{{ref .Current}}
{{label "version"}}{{version .Version}} (initial)
`

const unchangedTemplate = `{{label "previous"}}{{ref .Previous}}
{{label "current"}}{{ref .Current}}
{{label "version"}}{{version .Version}} (same commit, unchanged)
`

const comparedTemplate = `{{label "previous"}}{{ref .Previous}} declares {{version .PreviousVersion}}
{{label "current"}}{{ref .Current}} declares {{version .DeclaredVersion}}
{{label "forward"}}{{verdict .ForwardsOk}} current can stand in for previous
{{label "backward"}}{{verdict .BackwardsOk}} previous can stand in for current
{{label "bump"}}{{bump .Bump}} {{version .PreviousVersion}} -> {{version .Bumped}}
{{- if .Floored}}
{{label "floor"}}declared {{version .DeclaredVersion}} exceeds {{version .Bumped}}, kept
{{- end}}
{{label "version"}}{{version .Version}}
`

var funcMap = template.FuncMap{
	"label":   label,
	"ref":     refStyle.Sprint,
	"version": versionStyle.Sprint,
	"bump":    bumpStyle.Sprint,
	"verdict": verdict,
	"none":    func() string { return noStyle.Sprint("none") },
}

var templates = map[engine.Reason]*template.Template{
	engine.ReasonInitial:   template.Must(template.New("initial").Funcs(funcMap).Parse(initialTemplate)),
	engine.ReasonUnchanged: template.Must(template.New("unchanged").Funcs(funcMap).Parse(unchangedTemplate)),
	engine.ReasonCompared:  template.Must(template.New("compared").Funcs(funcMap).Parse(comparedTemplate)),
}

// FormatResult explains how res was reached, one fact per line.
func FormatResult(res *engine.Result) string {
	tmpl, ok := templates[res.Reason]
	if !ok {
		return versionString(res.Version) + "\n"
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, newResultData(res)); err != nil {
		return fmt.Sprintf("Error formatting result: %v\n", err)
	}
	return buf.String()
}

func newResultData(res *engine.Result) ResultData {
	data := ResultData{
		Reason:          string(res.Reason),
		Version:         versionString(res.Version),
		Current:         refString(res.Current),
		PreviousVersion: versionString(res.PreviousVersion),
		DeclaredVersion: versionString(res.DeclaredVersion),
		ForwardsOk:      res.Compatibility.ForwardsOk,
		BackwardsOk:     res.Compatibility.BackwardsOk,
	}
	if res.Previous != nil {
		data.Previous = refString(*res.Previous)
	}
	if d := res.Decision; d != nil {
		data.Bump = d.Bump.String()
		data.Bumped = versionString(d.Bumped)
		data.Floored = d.Floored
	}
	return data
}

// utils functions used in the text templates

const labelWidth = 10

func label(name string) string {
	return labelStyle.Sprint(name+":") + strings.Repeat(" ", labelWidth-len(name)-1)
}

func verdict(ok bool) string {
	if ok {
		return okStyle.Sprint("ok  ")
	}
	return failStyle.Sprint("fail")
}

func versionString(v *semver.Version) string {
	if v == nil {
		return "none"
	}
	return v.String()
}

func refString(r types.Reference) string {
	if r.Kind == types.RefOther || r.Kind == "" {
		return r.String()
	}
	return string(r.Kind) + " " + r.String()
}
