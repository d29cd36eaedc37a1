package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"rattlebrain/internal/replay/props"
)

func intp(n int) *int { return &n }

func sampleRecord(id string) ReplayRecord {
	stats := []props.Record{
		{{Key: "Name", Value: props.StrScalar("Alice")}, {Key: "Platform", Value: props.StrScalar("OnlinePlatform_Steam")}, {Key: "Team", Value: props.IntScalar(0)}, {Key: "Score", Value: props.IntScalar(420)}, {Key: "bBot", Value: props.BoolScalar(false)}},
		{{Key: "Name", Value: props.StrScalar("Bob")}, {Key: "Team", Value: props.IntScalar(1)}},
	}
	goals := []props.Record{
		{{Key: "PlayerName", Value: props.StrScalar("Alice")}, {Key: "PlayerTeam", Value: props.IntScalar(0)}, {Key: "frame", Value: props.IntScalar(120)}},
	}
	mapName := "stadium_p"
	h := props.Header{EngineVersion: intp(868), Team0Score: intp(1), Team1Score: intp(0), MapName: &mapName}
	return NewReplayRecord(id, id+".json", h, stats, goals, 300, 42)
}

func TestSQLiteIndex_RecordAndList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	ctx := context.Background()

	if err := idx.RecordReplay(ctx, sampleRecord("ABC")); err != nil {
		t.Fatalf("RecordReplay: %v", err)
	}
	got, err := idx.ListReplays(ctx)
	if err != nil {
		t.Fatalf("ListReplays: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("replays=%d want 1", len(got))
	}
	r := got[0]
	if r.ID != "ABC" || r.Source != "ABC.json" || r.MapName != "stadium_p" || r.Frames != 300 || r.Rows != 42 || r.Players != 2 {
		t.Fatalf("summary mismatch: %+v", r)
	}
	if r.Team0Score == nil || *r.Team0Score != 1 || r.Team1Score == nil || *r.Team1Score != 0 {
		t.Fatalf("scores=%v,%v", r.Team0Score, r.Team1Score)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var (
		name  string
		score sql.NullInt64
		bot   sql.NullInt64
	)
	row := db.QueryRow(`SELECT name,score,bot FROM players WHERE replay_id='ABC' AND idx=0`)
	if err := row.Scan(&name, &score, &bot); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if name != "Alice" || !score.Valid || score.Int64 != 420 || !bot.Valid || bot.Int64 != 0 {
		t.Fatalf("player mismatch: name=%q score=%v bot=%v", name, score, bot)
	}
	var frame int
	if err := db.QueryRow(`SELECT frame FROM goals WHERE replay_id='ABC'`).Scan(&frame); err != nil {
		t.Fatalf("Scan goal: %v", err)
	}
	if frame != 120 {
		t.Fatalf("goal frame=%d want 120", frame)
	}
}

func TestSQLiteIndex_RerecordReplaces(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer func() { _ = idx.Close() }()
	ctx := context.Background()

	first := sampleRecord("ABC")
	if err := idx.RecordReplay(ctx, first); err != nil {
		t.Fatalf("RecordReplay: %v", err)
	}
	second := sampleRecord("ABC")
	second.Players = second.Players[:1]
	second.Rows = 7
	if err := idx.RecordReplay(ctx, second); err != nil {
		t.Fatalf("RecordReplay: %v", err)
	}
	got, err := idx.ListReplays(ctx)
	if err != nil {
		t.Fatalf("ListReplays: %v", err)
	}
	if len(got) != 1 || got[0].Rows != 7 || got[0].Players != 1 {
		t.Fatalf("got=%+v", got)
	}
}

func TestSQLiteIndex_WriteFailureIsReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer func() { _ = idx.Close() }()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TRIGGER reject_goal BEFORE INSERT ON goals
		WHEN NEW.player_name = 'Mallory'
		BEGIN SELECT RAISE(ABORT, 'goal rejected'); END;`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	ctx := context.Background()
	bad := sampleRecord("BAD")
	bad.Goals[0].PlayerName = "Mallory"
	for _, r := range []ReplayRecord{sampleRecord("GOOD1"), bad, sampleRecord("GOOD2")} {
		if err := idx.RecordReplay(ctx, r); err != nil {
			t.Fatalf("RecordReplay %s: %v", r.ID, err)
		}
	}

	err = idx.Flush(ctx)
	if err == nil || !strings.Contains(err.Error(), "BAD") || strings.Contains(err.Error(), "GOOD") {
		t.Fatalf("flush err=%v want failure naming BAD only", err)
	}
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("second flush err=%v want nil", err)
	}
	if got := idx.Stats().WriteFailTotal; got != 1 {
		t.Fatalf("write failures=%d want 1", got)
	}

	got, err := idx.ListReplays(ctx)
	if err != nil {
		t.Fatalf("ListReplays: %v", err)
	}
	ids := map[string]bool{}
	for _, r := range got {
		ids[r.ID] = true
	}
	if len(got) != 2 || !ids["GOOD1"] || !ids["GOOD2"] {
		t.Fatalf("replays=%+v want GOOD1 and GOOD2", got)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM players WHERE replay_id='BAD'`).Scan(&n); err != nil || n != 0 {
		t.Fatalf("BAD players=%d err=%v want 0", n, err)
	}
}

func TestSQLiteIndex_CloseReportsUnflushedFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TRIGGER reject_replay BEFORE INSERT ON replays
		BEGIN SELECT RAISE(ABORT, 'replay rejected'); END;`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	if err := idx.RecordReplay(context.Background(), sampleRecord("ABC")); err != nil {
		t.Fatalf("RecordReplay: %v", err)
	}
	if err := idx.Close(); err == nil || !strings.Contains(err.Error(), "ABC") {
		t.Fatalf("close err=%v want failure naming ABC", err)
	}
}

func TestSQLiteIndex_ClosedRejects(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := idx.RecordReplay(context.Background(), sampleRecord("X")); !errors.Is(err, ErrClosed) {
		t.Fatalf("err=%v want ErrClosed", err)
	}
	if _, err := OpenSQLite(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestNewReplayRecord_MissingFields(t *testing.T) {
	r := NewReplayRecord("id", "src", props.Header{}, []props.Record{{}}, nil, 0, 0)
	if len(r.Players) != 1 || r.Players[0].Score != nil || r.Players[0].Bot != nil || r.Players[0].Name != "" {
		t.Fatalf("players=%+v", r.Players)
	}
	if r.MapName != "" || r.EngineVersion != nil || len(r.Goals) != 0 {
		t.Fatalf("record=%+v", r)
	}
}
