// Package config loads quizdeck settings from flags, an optional YAML
// file and QUIZDECK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is stripped from environment variables before they become keys,
// so QUIZDECK_DATA_DIR sets data_dir.
const EnvPrefix = "QUIZDECK_"

// Config holds every runtime setting.
type Config struct {
	Addr        string        `koanf:"addr" validate:"required"`
	DataDir     string        `koanf:"data_dir" validate:"required"`
	DB          string        `koanf:"db" validate:"required"`
	ReposDir    string        `koanf:"repos_dir" validate:"required"`
	Import      string        `koanf:"import"`
	CORSOrigins []string      `koanf:"cors_origins"`
	Seed        uint64        `koanf:"seed"`
	SessionTTL  time.Duration `koanf:"session_ttl"`
	LogLevel    string        `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFormat   string        `koanf:"log_format" validate:"oneof=text json"`
}

// Flags returns the command-line flag set. Flag defaults double as the
// configuration defaults.
func Flags() *pflag.FlagSet {
	f := pflag.NewFlagSet("quizdeck", pflag.ContinueOnError)
	f.String("config", "", "Path to a YAML config file")
	f.String("addr", ":8080", "HTTP listen address")
	f.String("data_dir", "decks", "Directory holding deck files")
	f.String("db", "quizdeck.db", "Path to the SQLite session database")
	f.String("repos_dir", "repos", "Directory for cloned git deck sources")
	f.String("import", "", "Import decks from a directory or git URL, then exit")
	f.StringSlice("cors_origins", []string{"http://localhost:3000"}, "Allowed CORS origins")
	f.Uint64("seed", 0, "Random seed for question generation (0 = random)")
	f.Duration("session_ttl", 7*24*time.Hour, "Drop sessions idle for longer than this (0 = keep forever)")
	f.String("log_level", "info", "Log level: debug, info, warn, error")
	f.String("log_format", "text", "Log format: text or json")
	return f
}

// Load parses args and merges, in increasing precedence, flag defaults,
// the config file, the environment and explicitly set flags.
func Load(args []string) (*Config, error) {
	f := Flags()
	if err := f.Parse(args); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if path, _ := f.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Only flags the user set override; defaults fill keys nothing else set.
	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	// The default decoder splits comma separated strings and parses durations,
	// so QUIZDECK_CORS_ORIGINS=a,b and QUIZDECK_SESSION_TTL=1h both work.
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Logger builds the process logger described by the config.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
