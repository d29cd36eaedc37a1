// Package prompt assembles the coaching prompt from a converted replay's
// tables. It performs no network calls.
package prompt

import (
	"fmt"
	"strings"
	"text/template"
)

const (
	FocusStrategy       = "strategy"
	FocusMechanics      = "mechanics"
	FocusDecisionMaking = "decision_making"
	FocusAll            = "all"
)

var focusSections = map[string]string{
	FocusStrategy:       "Strategy Analysis:\nAnalyze team positioning, rotations, and overall synergy.",
	FocusMechanics:      "Mechanics Analysis:\nEvaluate boost efficiency, aerial control, and shot accuracy.",
	FocusDecisionMaking: "Decision-Making Analysis:\nProvide insights on situational awareness and risk/reward trade-offs.",
}

var sectionOrder = []string{FocusStrategy, FocusMechanics, FocusDecisionMaking}

func IsFocus(f string) bool {
	if f == FocusAll {
		return true
	}
	_, ok := focusSections[f]
	return ok
}

type Input struct {
	Focus       string
	PlayerStats string
	Goals       string
	Highlights  string
	// Frames is the encoded frame digest.
	Frames string
}

var promptTmpl = template.Must(template.New("prompt").Parse(`You are a world-class Rocket League team coach providing helpful feedback for improvement.
{{range .Sections}}
{{.}}
{{end}}
Player statistics:
{{.PlayerStats}}

Goal breakdown:
{{.Goals}}

Highlights:
{{.Highlights}}

Nth Frame Filtered, Compressed, Base64'd Frames Data:
{{.Frames}}
`))

func Build(in Input) (string, error) {
	focus := in.Focus
	if focus == "" {
		focus = FocusAll
	}
	if !IsFocus(focus) {
		return "", fmt.Errorf("unknown focus %q", in.Focus)
	}
	var sections []string
	for _, k := range sectionOrder {
		if focus == FocusAll || focus == k {
			sections = append(sections, focusSections[k])
		}
	}

	var b strings.Builder
	err := promptTmpl.Execute(&b, struct {
		Input
		Sections []string
	}{Input: in, Sections: sections})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}
