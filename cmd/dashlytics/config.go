package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"

	"github.com/dashlytics/dashlytics/logger"
	"github.com/dashlytics/dashlytics/source"
)

// envPrefix namespaces the environment variables read into the config.
// Double underscores nest: DASHLYTICS_SOURCE__HOST becomes source.host,
// while DASHLYTICS_FETCH_LIMIT stays fetch_limit.
const envPrefix = "DASHLYTICS_"

// Config carries everything the commands need: the logger setup, the
// default source handle and the pipeline knobs.
type Config struct {
	Log logger.Config `koanf:"log"`

	Source struct {
		Name     string `koanf:"name"`
		Kind     string `koanf:"kind"`
		Host     string `koanf:"host"`
		Port     int    `koanf:"port"`
		Database string `koanf:"database"`
		Username string `koanf:"username"`
		Password string `koanf:"password"`
		Path     string `koanf:"path"`
	} `koanf:"source"`

	// FetchLimit caps rows loaded per table snapshot; zero means no cap.
	FetchLimit int64 `koanf:"fetch_limit"`
	// CacheSize bounds the open-source LRU cache.
	CacheSize int `koanf:"cache_size"`
	// Workers sizes the batch worker pool.
	Workers int `koanf:"workers"`
}

// loadConfig layers defaults, an optional YAML file and DASHLYTICS_*
// environment variables, later layers winning.
func loadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"log.level":   "info",
		"log.format":  "text",
		"source.kind": string(source.KindFile),
		"fetch_limit": int64(0),
		"cache_size":  16,
		"workers":     4,
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load config defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat("dashlytics.yaml"); err == nil {
			path = "dashlytics.yaml"
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load config environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// handle builds the source handle described by the config, with the path
// optionally overridden from the command line.
func (c *Config) handle(pathOverride string, id uuid.UUID) source.Handle {
	h := source.Handle{
		ID:       id,
		Name:     c.Source.Name,
		Kind:     source.Kind(c.Source.Kind),
		Host:     c.Source.Host,
		Port:     c.Source.Port,
		Database: c.Source.Database,
		Username: c.Source.Username,
		Password: c.Source.Password,
		Path:     c.Source.Path,
	}
	if pathOverride != "" {
		h.Path = pathOverride
	}
	return h
}
