package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestListTrees(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.json", "a.json.zst", "c.json.gz", "a.rows.jsonl.zst", "a.frames.csv", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.json"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := listTrees(dir)
	if err != nil {
		t.Fatalf("listTrees: %v", err)
	}
	want := []string{"a.json.zst", "b.json", "c.json.gz"}
	if len(got) != len(want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
	for i := range want {
		if filepath.Base(got[i]) != want[i] {
			t.Fatalf("got[%d]=%s want %s", i, got[i], want[i])
		}
	}
}

func TestFilterRows(t *testing.T) {
	in := strings.Join([]string{
		`{"frame":0,"time":0,"actor":5,"source":"car","player":"Alice"}`,
		`{"frame":1,"time":0.5,"actor":5,"source":"car","player":"Alice"}`,
		`{"frame":1,"time":0.5,"actor":9,"source":"ball","player":"_ball_"}`,
		`{"frame":2,"time":1,"actor":5,"source":"car","player":"Alice"}`,
	}, "\n")

	var out bytes.Buffer
	n, err := filterRows(strings.NewReader(in), &out, rowFilter{from: 1, to: 1, player: "Alice"})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if n != 1 || !strings.Contains(out.String(), `"frame":1`) || strings.Contains(out.String(), "_ball_") {
		t.Fatalf("n=%d out=%q", n, out.String())
	}

	out.Reset()
	n, err = filterRows(strings.NewReader(in), &out, rowFilter{to: -1})
	if err != nil || n != 4 {
		t.Fatalf("n=%d err=%v", n, err)
	}

	if _, err := filterRows(strings.NewReader("not json\n"), &out, rowFilter{to: -1}); err == nil {
		t.Fatalf("expected unmarshal error")
	}
}
