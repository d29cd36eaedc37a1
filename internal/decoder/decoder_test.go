package decoder

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestArgsPlaceholders(t *testing.T) {
	got := Default().args("in.replay", "out/in.json")
	want := []string{"--compact", "--input", "in.replay", "--output", "out/in.json"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args=%v want %v", got, want)
	}
}

func TestRun_CopiesWithCp(t *testing.T) {
	if _, err := exec.LookPath("cp"); err != nil {
		t.Skip("cp not available")
	}
	dir := t.TempDir()
	in := filepath.Join(dir, "match.replay")
	if err := os.WriteFile(in, []byte(`{"properties":{}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := OutputPath(filepath.Join(dir, "decoded"), in)
	d := Decoder{Command: "cp", Args: []string{InputPlaceholder, OutputPlaceholder}, Timeout: 10 * time.Second}
	if err := d.Run(context.Background(), in, out); err != nil {
		t.Fatalf("run: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != `{"properties":{}}` {
		t.Fatalf("out=%q", b)
	}
	if filepath.Base(out) != "match.json" {
		t.Fatalf("output name=%q", out)
	}
}

func TestRun_FailureCarriesStderr(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	in := filepath.Join(dir, "match.replay")
	if err := os.WriteFile(in, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	d := Decoder{Command: "sh", Args: []string{"-c", "echo bad header >&2; exit 3"}}
	err := d.Run(context.Background(), in, filepath.Join(dir, "out.json"))
	var re *RunError
	if !errors.As(err, &re) {
		t.Fatalf("err=%v want *RunError", err)
	}
	if !strings.Contains(err.Error(), "bad header") {
		t.Fatalf("stderr missing from %q", err.Error())
	}
}

func TestRun_MissingInput(t *testing.T) {
	err := Default().Run(context.Background(), filepath.Join(t.TempDir(), "nope.replay"), "x.json")
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v", err)
	}
}

func TestRun_Timeout(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	dir := t.TempDir()
	in := filepath.Join(dir, "match.replay")
	if err := os.WriteFile(in, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	d := Decoder{Command: "sleep", Args: []string{"5"}, Timeout: 50 * time.Millisecond}
	err := d.Run(context.Background(), in, filepath.Join(dir, "out.json"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v want deadline exceeded", err)
	}
}
