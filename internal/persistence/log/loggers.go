package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"rattlebrain/internal/replay/actors"
)

// JSONLZstdWriter appends one JSON document per line to a zstd stream. The
// file is opened lazily on the first Write.
type JSONLZstdWriter struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
	n   int
}

func NewJSONLZstdWriter(path string) *JSONLZstdWriter {
	return &JSONLZstdWriter{path: path}
}

func (w *JSONLZstdWriter) Path() string { return w.path }

// Lines reports how many entries were written.
func (w *JSONLZstdWriter) Lines() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		if err := w.openLocked(); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.n++
	return nil
}

func (w *JSONLZstdWriter) openLocked() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		err1 = w.w.Flush()
	}
	if w.enc != nil {
		if err := w.enc.Close(); err1 == nil {
			err1 = err
		}
		w.enc = nil
	}
	if w.f != nil {
		if err := w.f.Close(); err1 == nil {
			err1 = err
		}
		w.f = nil
	}
	w.w = nil
	return err1
}

// RowEntry is the logged form of a resolver row.
type RowEntry struct {
	Frame  int     `json:"frame"`
	Time   float64 `json:"time"`
	Actor  int     `json:"actor"`
	Source string  `json:"source"`

	Team   *int    `json:"team,omitempty"`
	Player *string `json:"player,omitempty"`
	Boost  *int    `json:"boost,omitempty"`

	Location        [3]int     `json:"location"`
	Rotation        [4]float64 `json:"rotation"`
	AngularVelocity [3]float64 `json:"angular_velocity"`
	LinearVelocity  [3]float64 `json:"linear_velocity"`
}

func EntryFromRow(r actors.Row) RowEntry {
	return RowEntry{
		Frame:           r.Frame,
		Time:            r.Time,
		Actor:           r.Actor,
		Source:          r.Source.String(),
		Team:            r.Team,
		Player:          r.Player,
		Boost:           r.Boost,
		Location:        r.Location,
		Rotation:        r.Rotation,
		AngularVelocity: r.AngularVelocity,
		LinearVelocity:  r.LinearVelocity,
	}
}

// RowLogger writes one JSONL entry per resolved row (compressed) to
// `<dir>/<id>.rows.jsonl.zst`.
type RowLogger struct{ w *JSONLZstdWriter }

func NewRowLogger(dir, id string) *RowLogger {
	return &RowLogger{w: NewJSONLZstdWriter(filepath.Join(dir, fmt.Sprintf("%s.rows.jsonl.zst", id)))}
}

func (l *RowLogger) WriteRow(r actors.Row) error { return l.w.Write(EntryFromRow(r)) }
func (l *RowLogger) Path() string                { return l.w.Path() }
func (l *RowLogger) Close() error                { return l.w.Close() }

func (l *RowLogger) WriteRows(rows []actors.Row) error {
	for _, r := range rows {
		if err := l.WriteRow(r); err != nil {
			return fmt.Errorf("row log %s: %w", l.w.Path(), err)
		}
	}
	return nil
}
