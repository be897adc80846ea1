package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/govm-net/counter/counter"
)

// counter.toml key mapping to runtime settings
type fileConfig struct {
	ContextType string `toml:"context_type"`
	DBPath      string `toml:"db_path"`
	Overflow    string `toml:"overflow"`
	Workers     int    `toml:"workers"`
	LogLevel    string `toml:"log_level"`
}

type cliConfig struct {
	ContextType string
	DBPath      string
	Overflow    counter.OverflowPolicy
	Workers     int
	LogLevel    slog.Level
}

func defaultConfig() cliConfig {
	return cliConfig{
		ContextType: "db",
		DBPath:      "./counter.db",
		Overflow:    counter.OverflowWrap,
		LogLevel:    slog.LevelInfo,
	}
}

// loadConfig overlays the TOML file at path on the defaults.
// A missing file is not an error.
func loadConfig(path string) (cliConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cliConfig{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return cliConfig{}, fmt.Errorf("load config: unknown keys %v", undecoded)
	}

	if meta.IsDefined("context_type") {
		cfg.ContextType = strings.TrimSpace(raw.ContextType)
	}
	if meta.IsDefined("db_path") {
		cfg.DBPath = strings.TrimSpace(raw.DBPath)
	}
	if meta.IsDefined("overflow") {
		policy, err := counter.ParseOverflowPolicy(strings.TrimSpace(raw.Overflow))
		if err != nil {
			return cliConfig{}, fmt.Errorf("load config: %w", err)
		}
		cfg.Overflow = policy
	}
	if meta.IsDefined("workers") {
		if raw.Workers < 0 {
			return cliConfig{}, fmt.Errorf("load config: invalid workers %d", raw.Workers)
		}
		cfg.Workers = raw.Workers
	}
	if meta.IsDefined("log_level") {
		if err := cfg.LogLevel.UnmarshalText([]byte(strings.TrimSpace(raw.LogLevel))); err != nil {
			return cliConfig{}, fmt.Errorf("load config: %w", err)
		}
	}
	return cfg, nil
}
