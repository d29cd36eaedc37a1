package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"rattlebrain/internal/convert"
	"rattlebrain/internal/replay/prompt"
)

func promptCmd(logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("prompt", flag.ExitOnError)
	configPath := fs.String("config", "", "config yaml (optional)")
	outDir := fs.String("out", "", "directory holding the converted tables (overrides config)")
	id := fs.String("id", "", "replay id")
	focus := fs.String("focus", prompt.FocusAll, "strategy|mechanics|decision_making|all")
	_ = fs.Parse(args)
	if strings.TrimSpace(*id) == "" {
		return errors.New("missing -id")
	}
	if !prompt.IsFocus(*focus) {
		return fmt.Errorf("unknown focus %q", *focus)
	}

	cfg, err := loadConfig(logger, *configPath)
	if err != nil {
		return err
	}
	dir := cfg.Output.Dir
	if *outDir != "" {
		dir = *outDir
	}

	read := func(suffix string) string {
		p := filepath.Join(dir, *id+suffix)
		b, err := os.ReadFile(p)
		if err != nil {
			logger.Printf("prompt: %v", err)
			return fmt.Sprintf("Error reading %s", p)
		}
		return strings.TrimRight(string(b), "\n")
	}
	text, err := prompt.Build(prompt.Input{
		Focus:       *focus,
		PlayerStats: read(convert.SuffixPlayerStats),
		Goals:       read(convert.SuffixGoals),
		Highlights:  read(convert.SuffixHighlights),
		Frames:      read(convert.SuffixDigest),
	})
	if err != nil {
		return err
	}

	dst := filepath.Join(dir, *id+".query.txt")
	if err := os.WriteFile(dst, []byte(text), 0o644); err != nil {
		return err
	}
	logger.Printf("prompt written to %s", dst)
	return nil
}
