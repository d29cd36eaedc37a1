package indexdb

import "rattlebrain/internal/replay/props"

type ReplayRecord struct {
	ID     string
	Source string

	MapName   string
	MatchType string
	Date      string

	EngineVersion   *int
	LicenseeVersion *int
	TeamSize        *int
	Team0Score      *int
	Team1Score      *int

	Frames int
	Rows   int
	// RecordedAt defaults to the enqueue time (RFC3339, UTC).
	RecordedAt string

	Players []PlayerRecord
	Goals   []GoalRecord
}

type PlayerRecord struct {
	Name     string
	Platform string
	Team     *int
	Score    *int
	Goals    *int
	Assists  *int
	Saves    *int
	Shots    *int
	Bot      *bool
}

type GoalRecord struct {
	PlayerName string
	Team       *int
	Frame      *int
}

type ReplaySummary struct {
	ID         string
	Source     string
	MapName    string
	Team0Score *int
	Team1Score *int
	Frames     int
	Rows       int
	Players    int
	RecordedAt string
}

// NewReplayRecord flattens extracted properties into an index record.
func NewReplayRecord(id, source string, h props.Header, stats, goals []props.Record, frames, rows int) ReplayRecord {
	r := ReplayRecord{
		ID:              id,
		Source:          source,
		MapName:         deref(h.MapName),
		MatchType:       deref(h.MatchType),
		Date:            deref(h.Date),
		EngineVersion:   h.EngineVersion,
		LicenseeVersion: h.LicenseeVersion,
		TeamSize:        h.TeamSize,
		Team0Score:      h.Team0Score,
		Team1Score:      h.Team1Score,
		Frames:          frames,
		Rows:            rows,
	}
	for _, s := range stats {
		r.Players = append(r.Players, PlayerRecord{
			Name:     text(s, "Name"),
			Platform: text(s, "Platform"),
			Team:     num(s, "Team"),
			Score:    num(s, "Score"),
			Goals:    num(s, "Goals"),
			Assists:  num(s, "Assists"),
			Saves:    num(s, "Saves"),
			Shots:    num(s, "Shots"),
			Bot:      flag(s, "bBot"),
		})
	}
	for _, g := range goals {
		r.Goals = append(r.Goals, GoalRecord{
			PlayerName: text(g, "PlayerName"),
			Team:       num(g, "PlayerTeam"),
			Frame:      num(g, "frame"),
		})
	}
	return r
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func text(r props.Record, key string) string {
	v, ok := r.Get(key)
	if !ok {
		return ""
	}
	return v.String()
}

func num(r props.Record, key string) *int {
	v, ok := r.Get(key)
	if !ok || v.Kind != props.KindInt {
		return nil
	}
	n := int(v.Int)
	return &n
}

func flag(r props.Record, key string) *bool {
	v, ok := r.Get(key)
	if !ok || v.Kind != props.KindBool {
		return nil
	}
	b := v.Bool
	return &b
}
