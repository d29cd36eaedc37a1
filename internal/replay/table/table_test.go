package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rattlebrain/internal/replay/actors"
	"rattlebrain/internal/replay/props"
)

func intp(n int) *int       { return &n }
func strp(s string) *string { return &s }

func TestWriteRows_HeaderAndValues(t *testing.T) {
	rows := []actors.Row{
		{
			Frame: 3, Time: 1.25, Team: intp(1), Player: strp("Alice"), Boost: intp(85),
			Location:        [3]int{100, -200, 17},
			Rotation:        [4]float64{0.1, 0.2, 0.3, 0.9},
			AngularVelocity: [3]float64{-1, 0, 1},
			LinearVelocity:  [3]float64{1.5, 2.5, 3.5},
		},
		{Frame: 4, Time: 2, Player: strp("_ball_")},
	}
	var buf bytes.Buffer
	n, err := WriteRows(&buf, "frames.csv", rows, Options{})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != 2 {
		t.Fatalf("n=%d want 2", n)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines=%d want 3: %q", len(lines), buf.String())
	}
	wantHeader := "frame,time,team,player,boost,location_x,location_y,location_z,rotation_x,rotation_y,rotation_z,rotation_w,angular_velocity_x,angular_velocity_y,angular_velocity_z,linear_velocity_x,linear_velocity_y,linear_velocity_z"
	if lines[0] != wantHeader {
		t.Fatalf("header=%q", lines[0])
	}
	if want := "3,1.25,1,Alice,85,100,-200,17,0.1,0.2,0.3,0.9,-1,0,1,1.5,2.5,3.5"; lines[1] != want {
		t.Fatalf("row=%q want %q", lines[1], want)
	}
	if want := "4,2,,_ball_,,0,0,0,0,0,0,0,0,0,0,0,0,0"; lines[2] != want {
		t.Fatalf("ball row=%q want %q", lines[2], want)
	}
}

func TestWriteRows_QuotesAndDelimiter(t *testing.T) {
	rows := []actors.Row{{Frame: 0, Player: strp(`Bob; "the" builder`)}}
	var buf bytes.Buffer
	if _, err := WriteRows(&buf, "x", rows, Options{Comma: ';'}); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := csv.NewReader(&buf)
	r.Comma = ';'
	recs, err := r.ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(recs) != 2 || len(recs[1]) != len(RowColumns) {
		t.Fatalf("recs=%v", recs)
	}
	if recs[1][3] != `Bob; "the" builder` {
		t.Fatalf("player=%q", recs[1][3])
	}
}

func TestWriteRows_EmptyWritesHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteRows(&buf, "x", nil, Options{})
	if err != nil || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Fatalf("out=%q", buf.String())
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteRows_WriteError(t *testing.T) {
	_, err := WriteRows(failWriter{}, "out/frames.csv", []actors.Row{{}}, Options{})
	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("err=%v want *WriteError", err)
	}
	if we.Dest != "out/frames.csv" {
		t.Fatalf("dest=%q", we.Dest)
	}
}

func TestWriteRecords_MissingFieldsEmpty(t *testing.T) {
	recs := []props.Record{
		{{Key: "PlayerName", Value: props.StrScalar("Alice")}, {Key: "PlayerTeam", Value: props.IntScalar(0)}, {Key: "frame", Value: props.IntScalar(120)}},
		{{Key: "PlayerName", Value: props.StrScalar("Bob")}},
	}
	var buf bytes.Buffer
	n, err := WriteRecords(&buf, "goals.csv", props.GoalFields, recs, Options{})
	if err != nil || n != 2 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	want := "PlayerName,PlayerTeam,frame\nAlice,0,120\nBob,,\n"
	if buf.String() != want {
		t.Fatalf("got=%q want %q", buf.String(), want)
	}
}

func TestWriteHeader(t *testing.T) {
	h := props.Header{EngineVersion: intp(868), TeamSize: intp(3), ID: strp("ABC")}
	var buf bytes.Buffer
	if _, err := WriteHeader(&buf, "header.csv", h, Options{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(recs) != 2 || len(recs[1]) != len(HeaderColumns) {
		t.Fatalf("recs=%v", recs)
	}
	got := map[string]string{}
	for i, c := range recs[0] {
		got[c] = recs[1][i]
	}
	if got["engine_version"] != "868" || got["team_size"] != "3" || got["id"] != "ABC" || got["map_name"] != "" {
		t.Fatalf("header=%v", got)
	}
}

func TestCreateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "frames.csv")
	n, err := CreateFile(path, func(w io.Writer) (int, error) {
		return WriteRows(w, path, []actors.Row{{Frame: 1}}, Options{})
	})
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(b), "frame,time,") {
		t.Fatalf("content=%q", b)
	}

	// A directory in place of the file fails to open.
	blocked := filepath.Join(dir, "nested")
	_, err = CreateFile(blocked, func(w io.Writer) (int, error) { return 0, nil })
	var we *WriteError
	if !errors.As(err, &we) || we.Dest != blocked {
		t.Fatalf("err=%v", err)
	}
}
