// Package config loads service configuration in layers: built-in defaults,
// then an optional YAML file, then TOPOVIZ_* environment variables, then
// command-line flags. Later layers win.
package config

import (
	"errors"
	"fmt"
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

type Config struct {
	HTTPAddr         string        `koanf:"http_addr" validate:"required"`
	LogLevel         string        `koanf:"log_level"`
	SourceURL        string        `koanf:"source_url" validate:"omitempty,url"`
	DatabaseURL      string        `koanf:"database_url"`
	PollInterval     time.Duration `koanf:"poll_interval" validate:"gt=0"`
	DiscoveryRedelay time.Duration `koanf:"discovery_redelay" validate:"gt=0"`
	CanvasWidth      float64       `koanf:"canvas_width" validate:"gt=0"`
	CanvasHeight     float64       `koanf:"canvas_height" validate:"gt=0"`
	PresetsFile      string        `koanf:"presets_file"`
	SessionTTL       time.Duration `koanf:"session_ttl" validate:"gt=0"`
}

// DefaultFile is the config file looked for when none is given.
const DefaultFile = "topoviz.yaml"

// Load resolves configuration. Priority: flags > env > file > defaults.
func Load(f *pflag.FlagSet, configFile string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"http_addr":         ":8082",
		"log_level":         "info",
		"source_url":        "",
		"database_url":      "",
		"poll_interval":     15 * time.Second,
		"discovery_redelay": 10 * time.Second,
		"canvas_width":      1600.0,
		"canvas_height":     900.0,
		"presets_file":      "",
		"session_ttl":       30 * time.Minute,
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	// Config file is optional unless explicitly named.
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configFile, err)
		}
	} else {
		_ = k.Load(file.Provider(DefaultFile), yaml.Parser())
	}

	if err := k.Load(env.Provider("TOPOVIZ_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, "TOPOVIZ_")), ".", "_")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.SourceURL == "" && cfg.DatabaseURL == "" {
		return nil, errors.New("invalid config: either source_url or database_url must be set")
	}

	return &cfg, nil
}

type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
