package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/klauspost/compress/zstd"

	"rattlebrain/internal/config"
	"rattlebrain/internal/persistence/indexdb"
	rowlog "rattlebrain/internal/persistence/log"
)

func listCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "", "config yaml (optional)")
	dbPath := fs.String("db", "", "sqlite index path (overrides config)")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	path := cfg.Output.DBPath
	if *dbPath != "" {
		path = *dbPath
	}
	if path == "" {
		return errors.New("missing -db")
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}

	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	replays, err := idx.ListReplays(ctx)
	if err != nil {
		return err
	}
	for _, r := range replays {
		fmt.Printf("%s\tmap=%s\tscore=%s-%s\tplayers=%d\tframes=%d\trows=%d\trecorded=%s\tsource=%s\n",
			r.ID, r.MapName, optInt(r.Team0Score), optInt(r.Team1Score), r.Players, r.Frames, r.Rows, r.RecordedAt, r.Source)
	}
	return nil
}

func optInt(p *int) string {
	if p == nil {
		return "?"
	}
	return strconv.Itoa(*p)
}

func rowsCmd(args []string) error {
	fs := flag.NewFlagSet("rows", flag.ExitOnError)
	path := fs.String("file", "", "path to <id>.rows.jsonl.zst")
	fromFrame := fs.Int("from_frame", 0, "first frame to print (inclusive)")
	toFrame := fs.Int("to_frame", -1, "last frame to print (inclusive, optional)")
	player := fs.String("player", "", "only rows for this player (optional)")
	_ = fs.Parse(args)
	if *path == "" {
		return errors.New("missing -file")
	}

	f, err := os.Open(*path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	n, err := filterRows(dec, os.Stdout, rowFilter{from: *fromFrame, to: *toFrame, player: *player})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "rows printed=%d\n", n)
	return nil
}

type rowFilter struct {
	from, to int
	player   string
}

func (f rowFilter) keep(e rowlog.RowEntry) bool {
	if e.Frame < f.from || (f.to >= 0 && e.Frame > f.to) {
		return false
	}
	if f.player != "" && (e.Player == nil || *e.Player != f.player) {
		return false
	}
	return true
}

// filterRows copies matching JSONL entries from r to w and returns how many
// were copied.
func filterRows(r io.Reader, w io.Writer, f rowFilter) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	n := 0
	for sc.Scan() {
		line := sc.Bytes()
		var e rowlog.RowEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return n, fmt.Errorf("line %d: unmarshal: %w", n+1, err)
		}
		if !f.keep(e) {
			continue
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return n, err
		}
		n++
	}
	return n, sc.Err()
}
