package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rattlebrain/internal/config"
	"rattlebrain/internal/convert"
	"rattlebrain/internal/replay/diag"
)

const usage = `usage: rattlebrain <command> [flags]

commands:
  decode   run the external decoder on a replay file, then extract it
  extract  convert decoded trees (.json, .json.zst, .json.gz) into tables
  batch    convert every decoded tree in a directory
  prompt   assemble the coaching prompt from converted tables
  list     list replays recorded in the index
  rows     print entries of a compressed row log
`

func main() {
	logger := log.New(os.Stdout, "[rattlebrain] ", log.LstdFlags|log.Lmicroseconds)
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "decode":
		err = decodeCmd(ctx, logger, os.Args[2:])
	case "extract":
		err = extractCmd(ctx, logger, os.Args[2:])
	case "batch":
		err = batchCmd(ctx, logger, os.Args[2:])
	case "prompt":
		err = promptCmd(logger, os.Args[2:])
	case "list":
		err = listCmd(ctx, os.Args[2:])
	case "rows":
		err = rowsCmd(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		stop()
		logger.Fatalf("%s: %v", os.Args[1], err)
	}
}

// commonFlags are shared by every converting command. Unset flags leave the
// loaded config alone.
type commonFlags struct {
	configPath *string
	outDir     *string
	dbPath     *string
	validate   *bool
	rowLog     *bool
	archive    *bool
	verbose    *bool
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		configPath: fs.String("config", "", "config yaml (optional)"),
		outDir:     fs.String("out", "", "output directory (overrides config)"),
		dbPath:     fs.String("db", "", "sqlite index path (overrides config)"),
		validate:   fs.Bool("validate", false, "validate tree shape before extraction"),
		rowLog:     fs.Bool("row_log", false, "also write <id>.rows.jsonl.zst"),
		archive:    fs.Bool("archive", false, "archive the decoded tree under the data dir"),
		verbose:    fs.Bool("v", false, "log every diagnostic"),
	}
}

func loadConfig(logger *log.Logger, path string) (config.Config, error) {
	if p, err := config.LoadDotEnv(".env", "../.env"); err != nil {
		return config.Config{}, err
	} else if p != "" {
		logger.Printf("loaded environment from %s", p)
	}
	return config.Load(path)
}

func (c *commonFlags) apply(cfg *config.Config) {
	if *c.outDir != "" {
		cfg.Output.Dir = *c.outDir
	}
	if *c.dbPath != "" {
		cfg.Output.DBPath = *c.dbPath
	}
	cfg.Output.Validate = cfg.Output.Validate || *c.validate
	cfg.Output.RowLog = cfg.Output.RowLog || *c.rowLog
	cfg.Output.Archive = cfg.Output.Archive || *c.archive
}

func options(cfg config.Config) convert.Options {
	return convert.Options{
		OutputDir:   cfg.Output.Dir,
		Comma:       cfg.Comma(),
		Paths:       cfg.PropsPaths(),
		FramesPath:  cfg.Paths.Frames,
		Rules:       cfg.Rules(),
		Validate:    cfg.Output.Validate,
		RowLog:      cfg.Output.RowLog,
		Archive:     cfg.Output.Archive,
		DataDir:     cfg.Output.DataDir,
		DigestEvery: cfg.Digest.Every,
	}
}

func sinkFor(logger *log.Logger, verbose bool) diag.Sink {
	if verbose {
		return diag.LogSink(logger)
	}
	return nil
}

func logResult(logger *log.Logger, r convert.Result) {
	if r.Err != nil {
		logger.Printf("replay %s: failed: %v", r.Input, r.Err)
		return
	}
	logger.Printf("replay %s: id=%s frames=%d rows=%d files=%d diagnostics=%v",
		r.Input, r.ID, r.Frames, r.Rows, len(r.Files), r.Diagnostics)
	if r.Archived != "" {
		logger.Printf("replay %s: archived to %s", r.ID, r.Archived)
	}
}
