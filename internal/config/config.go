package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"rattlebrain/internal/decoder"
	"rattlebrain/internal/replay/actors"
	"rattlebrain/internal/replay/digest"
	"rattlebrain/internal/replay/props"
)

type Config struct {
	Paths   PathsConfig   `yaml:"paths"`
	Actors  ActorsConfig  `yaml:"actors"`
	Output  OutputConfig  `yaml:"output"`
	Digest  DigestConfig  `yaml:"digest"`
	Decoder DecoderConfig `yaml:"decoder"`
}

// PathsConfig locates the parts of the decoded tree (gjson paths).
type PathsConfig struct {
	EngineVersion   string `yaml:"engine_version"`
	LicenseeVersion string `yaml:"licensee_version"`
	PatchVersion    string `yaml:"patch_version"`
	Properties      string `yaml:"properties"`
	Frames          string `yaml:"frames"`
}

type ActorsConfig struct {
	PlayerNameAttr string   `yaml:"player_name_attr"`
	TeamAttr       string   `yaml:"team_attr"`
	OwnerAttrs     []string `yaml:"owner_attrs"`
	BoostAttrs     []string `yaml:"boost_attrs"`
	RigidBodyAttr  string   `yaml:"rigid_body_attr"`
	CarArchetypes  []string `yaml:"car_archetypes"`
	CarClasses     []string `yaml:"car_classes"`
	BallPrefix     string   `yaml:"ball_prefix"`
	TeamPrefix     string   `yaml:"team_prefix"`
	BallName       string   `yaml:"ball_name"`
}

type OutputConfig struct {
	Dir       string `yaml:"dir" env:"RATTLEBRAIN_OUTPUT_DIR"`
	Delimiter string `yaml:"delimiter" env:"RATTLEBRAIN_DELIMITER"`
	RowLog    bool   `yaml:"row_log" env:"RATTLEBRAIN_ROW_LOG"`
	Archive   bool   `yaml:"archive" env:"RATTLEBRAIN_ARCHIVE"`
	DataDir   string `yaml:"data_dir" env:"RATTLEBRAIN_DATA_DIR"`
	// DBPath enables the replay index when set.
	DBPath   string `yaml:"db_path" env:"RATTLEBRAIN_DB"`
	Validate bool   `yaml:"validate" env:"RATTLEBRAIN_VALIDATE"`
	Parallel int    `yaml:"parallel" env:"RATTLEBRAIN_PARALLEL"`
}

type DigestConfig struct {
	Every int `yaml:"every" env:"RATTLEBRAIN_DIGEST_EVERY"`
}

type DecoderConfig struct {
	Command string        `yaml:"command" env:"RATTLEBRAIN_DECODER"`
	Args    []string      `yaml:"args" env:"RATTLEBRAIN_DECODER_ARGS" envSeparator:" "`
	Timeout time.Duration `yaml:"timeout" env:"RATTLEBRAIN_DECODER_TIMEOUT"`
	OutDir  string        `yaml:"out_dir" env:"RATTLEBRAIN_DECODED_DIR"`
}

// Load reads path (optional), then applies RATTLEBRAIN_* environment
// overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		if path == "" {
			return cfg, err
		}
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadDotEnv loads the first env file that exists. Variables already set in
// the process win. It returns the loaded file, or "" when none was found.
func LoadDotEnv(candidates ...string) (string, error) {
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return "", fmt.Errorf("load %s: %w", p, err)
		}
		return p, nil
	}
	return "", nil
}

func Defaults() Config {
	pp := props.DefaultPaths()
	r := actors.DefaultRules()
	d := decoder.Default()
	return Config{
		Paths: PathsConfig{
			EngineVersion:   pp.EngineVersion,
			LicenseeVersion: pp.LicenseeVersion,
			PatchVersion:    pp.PatchVersion,
			Properties:      pp.Properties,
			Frames:          "network_frames.frames",
		},
		Actors: ActorsConfig{
			PlayerNameAttr: r.PlayerNameAttr,
			TeamAttr:       r.TeamAttr,
			OwnerAttrs:     r.OwnerAttrs,
			BoostAttrs:     r.BoostAttrs,
			RigidBodyAttr:  r.RigidBodyAttr,
			CarArchetypes:  r.CarArchetypes,
			CarClasses:     r.CarClasses,
			BallPrefix:     r.BallPrefix,
			TeamPrefix:     r.TeamPrefix,
			BallName:       r.BallName,
		},
		Output: OutputConfig{
			Dir:       "./output",
			Delimiter: ",",
			DataDir:   "./data",
			Parallel:  1,
		},
		Digest: DigestConfig{Every: digest.DefaultEvery},
		Decoder: DecoderConfig{
			Command: d.Command,
			Args:    d.Args,
			Timeout: d.Timeout,
			OutDir:  "./output",
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.Paths.Frames = strings.TrimSpace(c.Paths.Frames)
	c.Paths.Properties = strings.TrimSpace(c.Paths.Properties)
	c.Output.Dir = strings.TrimSpace(c.Output.Dir)
	if c.Output.Dir == "" {
		c.Output.Dir = "."
	}
	if c.Output.Delimiter == "" {
		c.Output.Delimiter = ","
	}
	if c.Output.Delimiter == `\t` {
		c.Output.Delimiter = "\t"
	}
	if c.Output.Parallel <= 0 {
		c.Output.Parallel = 1
	}
	if c.Digest.Every <= 0 {
		c.Digest.Every = digest.DefaultEvery
	}
	if c.Actors.BallName == "" {
		c.Actors.BallName = actors.DefaultRules().BallName
	}
	if strings.TrimSpace(c.Decoder.OutDir) == "" {
		c.Decoder.OutDir = c.Output.Dir
	}
}

func (c Config) Validate() error {
	c.Normalize()
	if c.Paths.Frames == "" {
		return errors.New("paths.frames must not be empty")
	}
	if utf8.RuneCountInString(c.Output.Delimiter) != 1 {
		return fmt.Errorf("output.delimiter must be a single character, got %q", c.Output.Delimiter)
	}
	switch d, _ := utf8.DecodeRuneInString(c.Output.Delimiter); d {
	case '"', '\r', '\n', utf8.RuneError:
		return fmt.Errorf("output.delimiter %q is not allowed", c.Output.Delimiter)
	}
	if c.Output.Archive && strings.TrimSpace(c.Output.DataDir) == "" {
		return errors.New("output.data_dir must be set when archive is enabled")
	}
	if c.Output.Parallel > 64 {
		return fmt.Errorf("output.parallel must be <= 64, got %d", c.Output.Parallel)
	}
	if strings.TrimSpace(c.Actors.RigidBodyAttr) == "" {
		return errors.New("actors.rigid_body_attr must not be empty")
	}
	if len(c.Actors.OwnerAttrs) == 0 {
		return errors.New("actors.owner_attrs must not be empty")
	}
	if strings.TrimSpace(c.Decoder.Command) == "" {
		return errors.New("decoder.command must not be empty")
	}
	if c.Decoder.Timeout < 0 {
		return errors.New("decoder.timeout must be >= 0")
	}
	return nil
}

func (c Config) Rules() actors.Rules {
	a := c.Actors
	return actors.Rules{
		PlayerNameAttr: a.PlayerNameAttr,
		TeamAttr:       a.TeamAttr,
		OwnerAttrs:     a.OwnerAttrs,
		BoostAttrs:     a.BoostAttrs,
		RigidBodyAttr:  a.RigidBodyAttr,
		CarArchetypes:  a.CarArchetypes,
		CarClasses:     a.CarClasses,
		BallPrefix:     a.BallPrefix,
		TeamPrefix:     a.TeamPrefix,
		BallName:       a.BallName,
	}
}

func (c Config) PropsPaths() props.Paths {
	return props.Paths{
		EngineVersion:   c.Paths.EngineVersion,
		LicenseeVersion: c.Paths.LicenseeVersion,
		PatchVersion:    c.Paths.PatchVersion,
		Properties:      c.Paths.Properties,
	}
}

// Comma is the output delimiter as a rune. Validate guarantees one rune.
func (c Config) Comma() rune {
	r, _ := utf8.DecodeRuneInString(c.Output.Delimiter)
	return r
}

func (c Config) DecoderCmd() decoder.Decoder {
	return decoder.Decoder{Command: c.Decoder.Command, Args: c.Decoder.Args, Timeout: c.Decoder.Timeout}
}
