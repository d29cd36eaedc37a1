// Package table renders resolver rows and header records as delimited text.
// Output is written in input order in a single pass; nothing is sorted or
// deduplicated.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"rattlebrain/internal/replay/actors"
	"rattlebrain/internal/replay/props"
)

var RowColumns = []string{
	"frame", "time", "team", "player", "boost",
	"location_x", "location_y", "location_z",
	"rotation_x", "rotation_y", "rotation_z", "rotation_w",
	"angular_velocity_x", "angular_velocity_y", "angular_velocity_z",
	"linear_velocity_x", "linear_velocity_y", "linear_velocity_z",
}

var HeaderColumns = []string{
	"engine_version", "licensee_version", "patch_version",
	"team_size", "unfair_team_size", "team_0_score", "team_1_score", "primary_player_team",
	"id", "replay_name", "map_name", "match_type", "player_name", "date", "num_frames",
}

// WriteError names the destination a write failed on. Rows written before
// the failure are not rolled back.
type WriteError struct {
	Dest string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write %s: %v", e.Dest, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

type Options struct {
	// Comma defaults to ','.
	Comma rune
}

type writer struct {
	dest string
	cw   *csv.Writer
}

func newWriter(w io.Writer, dest string, opts Options) *writer {
	cw := csv.NewWriter(w)
	if opts.Comma != 0 {
		cw.Comma = opts.Comma
	}
	return &writer{dest: dest, cw: cw}
}

func (w *writer) write(rec []string) error {
	if err := w.cw.Write(rec); err != nil {
		return &WriteError{Dest: w.dest, Err: err}
	}
	return nil
}

func (w *writer) flush() error {
	w.cw.Flush()
	if err := w.cw.Error(); err != nil {
		return &WriteError{Dest: w.dest, Err: err}
	}
	return nil
}

// WriteRows writes the header line and one line per row. It returns the
// number of rows written, not counting the header.
func WriteRows(w io.Writer, dest string, rows []actors.Row, opts Options) (int, error) {
	tw := newWriter(w, dest, opts)
	if err := tw.write(RowColumns); err != nil {
		return 0, err
	}
	n := 0
	rec := make([]string, len(RowColumns))
	for i := range rows {
		fillRow(rec, &rows[i])
		if err := tw.write(rec); err != nil {
			_ = tw.flush()
			return n, err
		}
		n++
	}
	if err := tw.flush(); err != nil {
		return n, err
	}
	return n, nil
}

func fillRow(rec []string, r *actors.Row) {
	rec[0] = strconv.Itoa(r.Frame)
	rec[1] = formatFloat(r.Time)
	rec[2] = optInt(r.Team)
	rec[3] = optStr(r.Player)
	rec[4] = optInt(r.Boost)
	for i, v := range r.Location {
		rec[5+i] = strconv.Itoa(v)
	}
	for i, v := range r.Rotation {
		rec[8+i] = formatFloat(v)
	}
	for i, v := range r.AngularVelocity {
		rec[12+i] = formatFloat(v)
	}
	for i, v := range r.LinearVelocity {
		rec[15+i] = formatFloat(v)
	}
}

// WriteRecords writes columns as the header line and one line per record;
// fields a record lacks are left empty.
func WriteRecords(w io.Writer, dest string, columns []string, records []props.Record, opts Options) (int, error) {
	tw := newWriter(w, dest, opts)
	if err := tw.write(columns); err != nil {
		return 0, err
	}
	n := 0
	rec := make([]string, len(columns))
	for _, r := range records {
		for i, c := range columns {
			rec[i] = ""
			if v, ok := r.Get(c); ok {
				rec[i] = v.String()
			}
		}
		if err := tw.write(rec); err != nil {
			_ = tw.flush()
			return n, err
		}
		n++
	}
	if err := tw.flush(); err != nil {
		return n, err
	}
	return n, nil
}

// WriteLines writes columns and pre-rendered lines as they are.
func WriteLines(w io.Writer, dest string, columns []string, lines [][]string, opts Options) (int, error) {
	tw := newWriter(w, dest, opts)
	if err := tw.write(columns); err != nil {
		return 0, err
	}
	n := 0
	for _, l := range lines {
		if err := tw.write(l); err != nil {
			_ = tw.flush()
			return n, err
		}
		n++
	}
	if err := tw.flush(); err != nil {
		return n, err
	}
	return n, nil
}

// WriteHeader writes the single header record.
func WriteHeader(w io.Writer, dest string, h props.Header, opts Options) (int, error) {
	tw := newWriter(w, dest, opts)
	if err := tw.write(HeaderColumns); err != nil {
		return 0, err
	}
	rec := []string{
		optInt(h.EngineVersion), optInt(h.LicenseeVersion), optInt(h.PatchVersion),
		optInt(h.TeamSize), optInt(h.UnfairTeamSize), optInt(h.Team0Score), optInt(h.Team1Score), optInt(h.PrimaryPlayerTeam),
		optStr(h.ID), optStr(h.ReplayName), optStr(h.MapName), optStr(h.MatchType), optStr(h.PlayerName), optStr(h.Date), optInt(h.NumFrames),
	}
	if err := tw.write(rec); err != nil {
		_ = tw.flush()
		return 0, err
	}
	if err := tw.flush(); err != nil {
		return 0, err
	}
	return 1, nil
}

// CreateFile creates path (and its directory) and hands it to fn. The file
// is closed afterwards; a close error is reported when fn succeeded.
func CreateFile(path string, fn func(io.Writer) (int, error)) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, &WriteError{Dest: path, Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, &WriteError{Dest: path, Err: err}
	}
	n, err := fn(f)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = &WriteError{Dest: path, Err: cerr}
	}
	return n, err
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func optInt(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

func optStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
