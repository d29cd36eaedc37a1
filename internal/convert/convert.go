// Package convert runs one decoded replay tree through extraction and
// resolution and writes its tables.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"rattlebrain/internal/persistence/archive"
	"rattlebrain/internal/persistence/indexdb"
	rowlog "rattlebrain/internal/persistence/log"
	"rattlebrain/internal/replay/actors"
	"rattlebrain/internal/replay/diag"
	"rattlebrain/internal/replay/digest"
	"rattlebrain/internal/replay/netframe"
	"rattlebrain/internal/replay/props"
	"rattlebrain/internal/replay/schema"
	"rattlebrain/internal/replay/table"
	"rattlebrain/internal/replay/tree"
)

type Job struct {
	// Input is a decoded tree (.json, .json.zst or .json.gz).
	Input string
	// ID overrides the replay id taken from the tree.
	ID string
}

type Options struct {
	OutputDir  string
	Comma      rune
	Paths      props.Paths
	FramesPath string
	Rules      actors.Rules

	Validate    bool
	RowLog      bool
	Archive     bool
	DataDir     string
	DigestEvery int
}

type Indexer interface {
	RecordReplay(ctx context.Context, r indexdb.ReplayRecord) error
}

type Deps struct {
	Options Options
	// Index is optional.
	Index Indexer
	// Sink receives every diagnostic of every job; it must be safe for
	// concurrent use when jobs run in parallel.
	Sink diag.Sink
}

type Result struct {
	ID     string
	Input  string
	Header props.Header

	Frames int
	Rows   int

	// Files lists every file written, in write order.
	Files    []string
	RowLog   string
	Archived string

	Diagnostics []string
	Err         error
}

const (
	SuffixHeader      = ".header.csv"
	SuffixGoals       = ".goals.csv"
	SuffixPlayerStats = ".player_stats.csv"
	SuffixHighlights  = ".highlights.csv"
	SuffixFrames      = ".frames.csv"
	SuffixDigest      = ".digest.txt"
)

// Run converts one replay. Per-record anomalies are reported to the sink and
// never fail the run; I/O failures do. The context is checked between stages.
func Run(ctx context.Context, job Job, deps Deps) (Result, error) {
	opts := deps.Options
	res := Result{Input: job.Input}
	col := &diag.Collector{}
	sink := diag.Tee(col.Sink(), deps.Sink)

	t, err := tree.Load(job.Input)
	if err != nil {
		sink.Emit(diag.Diagnostic{Code: diag.CodeTreeInvalid, Frame: -1, Actor: -1, Detail: err.Error()})
		return finish(&res, col, err)
	}
	if opts.Validate {
		if err := schema.Validate(t.Raw()); err != nil {
			sink.Emit(diag.Diagnostic{Code: diag.CodeSchema, Frame: -1, Actor: -1, Detail: err.Error()})
		}
	}
	if err := ctx.Err(); err != nil {
		return finish(&res, col, err)
	}

	header := props.ExtractHeader(t, opts.Paths)
	res.Header = header
	res.ID = replayID(job, header)
	goals := props.ExtractGoals(t, opts.Paths)
	stats := props.ExtractPlayerStats(t, opts.Paths)
	highlights := props.ExtractHighlights(t, opts.Paths)

	framesPath := opts.FramesPath
	if framesPath == "" {
		framesPath = "network_frames.frames"
	}
	frames := netframe.Decode(t.Get(framesPath), sink)
	res.Frames = len(frames)
	if err := ctx.Err(); err != nil {
		return finish(&res, col, err)
	}

	rows := actors.Resolve(frames, actors.Options{Rules: opts.Rules, Sink: sink})
	res.Rows = len(rows)
	if err := ctx.Err(); err != nil {
		return finish(&res, col, err)
	}

	topts := table.Options{Comma: opts.Comma}
	out := func(suffix string) string { return filepath.Join(opts.OutputDir, res.ID+suffix) }
	writes := []struct {
		path string
		fn   func(io.Writer, string) (int, error)
	}{
		{out(SuffixHeader), func(w io.Writer, p string) (int, error) { return table.WriteHeader(w, p, header, topts) }},
		{out(SuffixGoals), func(w io.Writer, p string) (int, error) {
			return table.WriteRecords(w, p, props.GoalFields, goals, topts)
		}},
		{out(SuffixPlayerStats), func(w io.Writer, p string) (int, error) {
			return table.WriteRecords(w, p, props.PlayerStatFields, stats, topts)
		}},
		{out(SuffixHighlights), func(w io.Writer, p string) (int, error) {
			return table.WriteRecords(w, p, props.HighlightFields, highlights, topts)
		}},
		{out(SuffixFrames), func(w io.Writer, p string) (int, error) { return table.WriteRows(w, p, rows, topts) }},
	}
	for _, wr := range writes {
		path, fn := wr.path, wr.fn
		if _, err := table.CreateFile(path, func(w io.Writer) (int, error) { return fn(w, path) }); err != nil {
			return finish(&res, col, err)
		}
		res.Files = append(res.Files, path)
	}

	enc, err := digest.Encode(digest.Sample(rows, opts.DigestEvery, ballName(opts.Rules)))
	if err != nil {
		return finish(&res, col, err)
	}
	if err := os.WriteFile(out(SuffixDigest), []byte(enc+"\n"), 0o644); err != nil {
		return finish(&res, col, &table.WriteError{Dest: out(SuffixDigest), Err: err})
	}
	res.Files = append(res.Files, out(SuffixDigest))
	if err := ctx.Err(); err != nil {
		return finish(&res, col, err)
	}

	if opts.RowLog {
		l := rowlog.NewRowLogger(opts.OutputDir, res.ID)
		werr := l.WriteRows(rows)
		if cerr := l.Close(); werr == nil && cerr != nil {
			werr = fmt.Errorf("row log %s: %w", l.Path(), cerr)
		}
		if werr != nil {
			return finish(&res, col, werr)
		}
		if len(rows) > 0 {
			res.RowLog = l.Path()
			res.Files = append(res.Files, l.Path())
		}
	}
	if opts.Archive {
		p, err := archive.ArchiveTree(opts.DataDir, res.ID, job.Input, header)
		if err != nil {
			return finish(&res, col, err)
		}
		res.Archived = p
	}
	if deps.Index != nil {
		rec := indexdb.NewReplayRecord(res.ID, job.Input, header, stats, goals, res.Frames, res.Rows)
		if err := deps.Index.RecordReplay(ctx, rec); err != nil {
			return finish(&res, col, fmt.Errorf("index %s: %w", res.ID, err))
		}
	}
	return finish(&res, col, nil)
}

func finish(res *Result, col *diag.Collector, err error) (Result, error) {
	res.Diagnostics = col.Summary()
	res.Err = err
	return *res, err
}

func ballName(r actors.Rules) string {
	if r.BallName != "" {
		return r.BallName
	}
	return actors.DefaultRules().BallName
}

// RunBatch converts jobs with at most parallel replays in flight. Every job
// runs to completion; the returned error joins the failed jobs' errors.
// Results are in job order.
func RunBatch(ctx context.Context, jobs []Job, deps Deps, parallel int) ([]Result, error) {
	if parallel <= 0 {
		parallel = 1
	}
	results := make([]Result, len(jobs))
	var g errgroup.Group
	g.SetLimit(parallel)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			results[i], _ = Run(ctx, job, deps)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Input, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

// replayID prefers an explicit id, then the replay's Id property, then the
// input file name.
func replayID(job Job, h props.Header) string {
	for _, c := range []string{job.ID, deref(h.ID), tree.BaseName(job.Input)} {
		if id := Sanitize(c); id != "" {
			return id
		}
	}
	return "replay"
}

// Sanitize keeps letters, digits, '.', '-' and '_' and maps everything else
// to '_'.
func Sanitize(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), ".")
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
