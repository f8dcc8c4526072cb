package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/dusk-indust/typecache/internal/assignment"
	"github.com/dusk-indust/typecache/internal/classcache"
	"github.com/dusk-indust/typecache/internal/config"
	"github.com/dusk-indust/typecache/internal/ingest"
	"github.com/dusk-indust/typecache/internal/typeparse"
)

// app carries the state shared by every subcommand.
type app struct {
	configDir string
	logLevel  string

	stdout io.Writer
	stderr io.Writer

	cfg    *config.Config
	logger *slog.Logger
}

func (a *app) load() error {
	cfg, err := config.Load(a.configDir)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg
	a.logger = cfg.Log.Logger(a.stderr)
	return nil
}

func (a *app) newCache() (*classcache.ClassCache, error) {
	opts := []classcache.Option{
		classcache.WithLogger(a.logger),
		classcache.WithSearchNarrower(assignment.Narrower{}),
	}
	if n := a.cfg.Cache.PatternCacheSize; n > 0 {
		opts = append(opts, classcache.WithPatternCacheSize(n))
	}
	return classcache.NewClassCache(opts...)
}

func (a *app) ingestOptions() (ingest.Options, error) {
	langs, unknown := typeparse.ParseLanguages(a.cfg.Ingest.Languages)
	if len(unknown) > 0 {
		return ingest.Options{}, fmt.Errorf("unknown languages: %v", unknown)
	}
	return ingest.Options{
		Languages:   langs,
		ExcludeDirs: a.cfg.Ingest.ExcludeDirs,
		Workers:     a.cfg.Ingest.Workers,
		MaxFileSize: a.cfg.Ingest.MaxFileSize,
	}, nil
}

// ingestRoot parses root into cache with the configured options.
func (a *app) ingestRoot(ctx context.Context, cache *classcache.ClassCache, root string) (*ingest.Stats, error) {
	opts, err := a.ingestOptions()
	if err != nil {
		return nil, err
	}
	parser := typeparse.NewTreeSitterParser()
	defer parser.Close()

	stats, err := ingest.New(cache, parser, ingest.WithLogger(a.logger)).Run(ctx, root, opts)
	if err != nil {
		return nil, err
	}
	a.logger.Info("ingested sources",
		"root", root,
		"files", stats.Files,
		"types", stats.Types,
		"rejected", stats.Rejected,
		"duration", stats.Duration)
	return stats, nil
}

// loadedCache creates a cache and fills it from root.
func (a *app) loadedCache(ctx context.Context, root string) (*classcache.ClassCache, error) {
	cache, err := a.newCache()
	if err != nil {
		return nil, err
	}
	if _, err := a.ingestRoot(ctx, cache, root); err != nil {
		return nil, err
	}
	return cache, nil
}

func (a *app) appliers() ([]classcache.InstrumentationApplier, error) {
	appliers, err := assignment.NewAll(a.cfg.Assignments)
	if err != nil {
		return nil, fmt.Errorf("sensor assignments: %w", err)
	}
	return appliers, nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
