package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rattlebrain/internal/config"
	"rattlebrain/internal/convert"
	"rattlebrain/internal/decoder"
	"rattlebrain/internal/persistence/indexdb"
)

func decodeCmd(ctx context.Context, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	cf := addCommonFlags(fs)
	decodedDir := fs.String("decoded", "", "directory for decoded trees (overrides config)")
	noExtract := fs.Bool("no_extract", false, "only run the decoder")
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		return errors.New("missing replay file")
	}

	cfg, err := loadConfig(logger, *cf.configPath)
	if err != nil {
		return err
	}
	cf.apply(&cfg)
	if *decodedDir != "" {
		cfg.Decoder.OutDir = *decodedDir
	}

	dec := cfg.DecoderCmd()
	var jobs []convert.Job
	for _, in := range fs.Args() {
		out := decoder.OutputPath(cfg.Decoder.OutDir, in)
		logger.Printf("decoding %s -> %s", in, out)
		if err := dec.Run(ctx, in, out); err != nil {
			return err
		}
		jobs = append(jobs, convert.Job{Input: out})
	}
	if *noExtract {
		return nil
	}
	return runJobs(ctx, logger, cfg, jobs, *cf.verbose)
}

func extractCmd(ctx context.Context, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	cf := addCommonFlags(fs)
	id := fs.String("id", "", "replay id for the output files (single input only)")
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		return errors.New("missing decoded tree")
	}
	if *id != "" && fs.NArg() > 1 {
		return errors.New("-id needs exactly one input")
	}

	cfg, err := loadConfig(logger, *cf.configPath)
	if err != nil {
		return err
	}
	cf.apply(&cfg)

	var jobs []convert.Job
	for _, in := range fs.Args() {
		jobs = append(jobs, convert.Job{Input: in, ID: *id})
	}
	return runJobs(ctx, logger, cfg, jobs, *cf.verbose)
}

func batchCmd(ctx context.Context, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	cf := addCommonFlags(fs)
	dir := fs.String("dir", "", "directory of decoded trees")
	parallel := fs.Int("parallel", 0, "replays converted at once (overrides config)")
	_ = fs.Parse(args)
	if strings.TrimSpace(*dir) == "" {
		return errors.New("missing -dir")
	}

	cfg, err := loadConfig(logger, *cf.configPath)
	if err != nil {
		return err
	}
	cf.apply(&cfg)
	if *parallel > 0 {
		cfg.Output.Parallel = *parallel
	}

	inputs, err := listTrees(*dir)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no decoded trees found in %s", *dir)
	}
	jobs := make([]convert.Job, 0, len(inputs))
	for _, in := range inputs {
		jobs = append(jobs, convert.Job{Input: in})
	}
	return runJobs(ctx, logger, cfg, jobs, *cf.verbose)
}

func runJobs(ctx context.Context, logger *log.Logger, cfg config.Config, jobs []convert.Job, verbose bool) error {
	deps := convert.Deps{Options: options(cfg), Sink: sinkFor(logger, verbose)}
	var idx *indexdb.SQLiteIndex
	if cfg.Output.DBPath != "" {
		var err error
		if idx, err = indexdb.OpenSQLite(cfg.Output.DBPath); err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		deps.Index = idx
	}

	results, err := convert.RunBatch(ctx, jobs, deps, cfg.Output.Parallel)
	ok := 0
	for _, r := range results {
		logResult(logger, r)
		if r.Err == nil {
			ok++
		}
	}
	logger.Printf("converted %d/%d replays into %s", ok, len(results), cfg.Output.Dir)

	if idx != nil {
		if ferr := idx.Flush(context.WithoutCancel(ctx)); ferr != nil {
			err = errors.Join(err, ferr)
		}
		if cerr := idx.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close index: %w", cerr))
		}
		if st := idx.Stats(); st.WriteFailTotal > 0 {
			logger.Printf("index write failures=%d", st.WriteFailTotal)
		}
	}
	return err
}

// listTrees returns decoded trees in dir, sorted by name. Converted outputs
// living in the same directory are skipped.
func listTrees(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if isTree(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func isTree(name string) bool {
	if strings.Contains(name, ".rows.jsonl") {
		return false
	}
	for _, ext := range []string{".json", ".json.zst", ".json.gz"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
