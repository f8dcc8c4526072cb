package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/typecache/internal/classcache"
)

// FileNames are the config file names Load looks for, in order.
var FileNames = []string{"typecache.yml", "typecache.yaml"}

// Config holds the settings loaded from typecache.yml.
type Config struct {
	Server ServerConfig `yaml:"server,omitempty"`
	Log    LogConfig    `yaml:"log,omitempty"`
	Cache  CacheConfig  `yaml:"cache,omitempty"`
	Ingest IngestConfig `yaml:"ingest,omitempty"`

	// Agent and Assignments form the instrumentation profile the server
	// applies to analyzed types.
	Agent       classcache.AgentConfig        `yaml:"agent,omitempty"`
	Assignments []classcache.SensorAssignment `yaml:"assignments,omitempty" validate:"dive"`
}

type ServerConfig struct {
	RPCAddr     string `yaml:"rpcAddr,omitempty" validate:"omitempty,hostname_port"`
	MetricsAddr string `yaml:"metricsAddr,omitempty" validate:"omitempty,hostname_port"`
}

type LogConfig struct {
	Level  string `yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format,omitempty" validate:"omitempty,oneof=text json"`
}

type CacheConfig struct {
	// PatternCacheSize bounds the compiled-pattern LRU; zero keeps the
	// cache's default.
	PatternCacheSize int `yaml:"patternCacheSize,omitempty" validate:"gte=0"`
}

type IngestConfig struct {
	Workers     int      `yaml:"workers,omitempty" validate:"gte=0,lte=256"`
	Languages   []string `yaml:"languages,omitempty" validate:"dive,oneof=go typescript python rust"`
	ExcludeDirs []string `yaml:"excludeDirs,omitempty"`
	MaxFileSize int64    `yaml:"maxFileSize,omitempty" validate:"gte=0"`
}

var validate = validator.New()

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{RPCAddr: ":7070"},
		Log:    LogConfig{Level: "info", Format: "text"},
		Ingest: IngestConfig{
			Workers:     4,
			ExcludeDirs: []string{"node_modules", "vendor", "target", ".venv", "__pycache__"},
		},
	}
}

// Load reads typecache.yml or typecache.yaml from dir over the defaults.
// A missing file is not an error; an invalid one is.
func Load(dir string) (*Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		cfg, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return cfg, nil
	}
	return Default(), nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags of the whole configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Logger builds a slog logger writing to w with the configured level and
// format.
func (l LogConfig) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(l.Level)}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
