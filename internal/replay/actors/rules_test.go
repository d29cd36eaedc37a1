package actors

import "testing"

func TestTeamIndex(t *testing.T) {
	c := DefaultRules().compile()
	cases := map[string]struct {
		idx int
		ok  bool
	}{
		"Archetypes.Teams.Team0":                    {0, true},
		"Archetypes.Teams.Team1":                    {1, true},
		"Archetypes.Teams.Team":                     {0, false},
		"Archetypes.Teams.Team-1":                   {0, false},
		"Archetypes.Teams.Team+1":                   {0, false},
		"Archetypes.Teams.TeamX":                    {0, false},
		"Archetypes.Teams.Team99999999999999999999": {0, false},
		"Archetypes.Ball.Ball_Default":              {0, false},
	}
	for name, want := range cases {
		idx, ok := c.teamIndex(name)
		if idx != want.idx || ok != want.ok {
			t.Fatalf("teamIndex(%q)=%d,%v want %d,%v", name, idx, ok, want.idx, want.ok)
		}
	}
}
