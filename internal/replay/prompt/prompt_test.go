package prompt

import (
	"strings"
	"testing"
)

func TestBuild_FocusSections(t *testing.T) {
	in := Input{PlayerStats: "Name,Score\nAlice,420", Goals: "PlayerName\nAlice", Highlights: "frame\n10", Frames: "H4sI"}

	cases := []struct {
		focus string
		want  []string
		not   []string
	}{
		{FocusStrategy, []string{"Strategy Analysis:"}, []string{"Mechanics Analysis:", "Decision-Making Analysis:"}},
		{FocusMechanics, []string{"Mechanics Analysis:"}, []string{"Strategy Analysis:"}},
		{FocusDecisionMaking, []string{"Decision-Making Analysis:"}, []string{"Mechanics Analysis:"}},
		{FocusAll, []string{"Strategy Analysis:", "Mechanics Analysis:", "Decision-Making Analysis:"}, nil},
		{"", []string{"Strategy Analysis:", "Decision-Making Analysis:"}, nil},
	}
	for _, tc := range cases {
		in.Focus = tc.focus
		got, err := Build(in)
		if err != nil {
			t.Fatalf("focus %q: %v", tc.focus, err)
		}
		for _, w := range tc.want {
			if !strings.Contains(got, w) {
				t.Fatalf("focus %q: missing %q in\n%s", tc.focus, w, got)
			}
		}
		for _, n := range tc.not {
			if strings.Contains(got, n) {
				t.Fatalf("focus %q: unexpected %q", tc.focus, n)
			}
		}
		for _, part := range []string{"Alice,420", "PlayerName\nAlice", "frame\n10", "H4sI"} {
			if !strings.Contains(got, part) {
				t.Fatalf("focus %q: missing table %q", tc.focus, part)
			}
		}
	}
}

func TestBuild_SectionOrder(t *testing.T) {
	got, err := Build(Input{Focus: FocusAll})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	s := strings.Index(got, "Strategy")
	m := strings.Index(got, "Mechanics")
	d := strings.Index(got, "Decision-Making")
	if !(s < m && m < d) {
		t.Fatalf("order s=%d m=%d d=%d", s, m, d)
	}
}

func TestBuild_UnknownFocus(t *testing.T) {
	if _, err := Build(Input{Focus: "vibes"}); err == nil {
		t.Fatalf("expected error")
	}
	if IsFocus("vibes") || !IsFocus(FocusMechanics) {
		t.Fatalf("IsFocus mismatch")
	}
}
