// Package ingest fills a class cache from a source tree: files are parsed in
// parallel, their references reconciled across the batch, and the resulting
// descriptions merged concurrently.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/typecache/internal/classcache"
	"github.com/dusk-indust/typecache/internal/typeparse"
)

// DefaultMaxFileSize bounds the size of a source file that is parsed.
const DefaultMaxFileSize = 2 << 20

// Options select what an ingest run reads.
type Options struct {
	// Languages restricts the parsed files; empty means every language the
	// parser supports.
	Languages []typeparse.Language

	// ExcludeDirs are directory names skipped anywhere in the tree, in
	// addition to .git.
	ExcludeDirs []string

	// Workers bounds parallel parsing and merging; zero means 4.
	Workers int

	// MaxFileSize skips larger files; zero means DefaultMaxFileSize.
	MaxFileSize int64
}

// Stats summarize one ingest run.
type Stats struct {
	Files     int           `json:"files"`
	Parsed    int           `json:"parsed"`
	Skipped   int           `json:"skipped"`
	Types     int           `json:"types"`
	Merged    int           `json:"merged"`
	Rejected  int           `json:"rejected"`
	Events    int           `json:"events"`
	Rewritten int           `json:"rewritten"`
	Duration  time.Duration `json:"duration"`
}

// Ingester parses sources and merges them into a cache.
type Ingester struct {
	cache  *classcache.ClassCache
	parser typeparse.Parser
	logger *slog.Logger
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(in *Ingester) {
		if l != nil {
			in.logger = l
		}
	}
}

// New creates an Ingester that merges into cache.
func New(cache *classcache.ClassCache, parser typeparse.Parser, opts ...Option) *Ingester {
	in := &Ingester{cache: cache, parser: parser, logger: slog.Default()}
	for _, o := range opts {
		o(in)
	}
	return in
}

// sourceFile is one file selected by the walk.
type sourceFile struct {
	abs  string
	rel  string
	lang typeparse.Language
}

// Run walks root, parses every selected file and merges the results. A file
// that cannot be read or parsed is skipped; a description the cache rejects
// is counted and logged. Only cancellation and walk failures end the run
// early.
func (in *Ingester) Run(ctx context.Context, root string, opts Options) (*Stats, error) {
	start := time.Now()
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot access root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", root)
	}

	files, err := in.collect(root, opts)
	if err != nil {
		return nil, fmt.Errorf("walk: %w", err)
	}
	stats := &Stats{Files: len(files)}

	results, err := in.parseAll(ctx, files, opts)
	if err != nil {
		return nil, err
	}
	for _, res := range results {
		if res == nil {
			stats.Skipped++
			continue
		}
		stats.Parsed++
	}

	if err := in.mergeResults(ctx, compact(results), opts.Workers, stats); err != nil {
		return nil, err
	}
	stats.Duration = time.Since(start)

	in.logger.Info("ingest complete",
		"root", root,
		"files", stats.Files,
		"skipped", stats.Skipped,
		"types", stats.Types,
		"rejected", stats.Rejected,
		"events", stats.Events,
		"duration", stats.Duration)
	return stats, nil
}

// IngestSource parses one in-memory file and merges it. path decides the
// language and the module of the declared types.
func (in *Ingester) IngestSource(ctx context.Context, path string, source []byte) (*Stats, error) {
	lang, ok := typeparse.LanguageForPath(path)
	if !ok {
		return nil, fmt.Errorf("no language for %s", path)
	}
	res, err := in.parser.Parse(ctx, filepath.ToSlash(path), source, lang)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	stats := &Stats{Files: 1, Parsed: 1}
	if err := in.mergeResults(ctx, []*typeparse.ParseResult{res}, 1, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// collect walks root and returns the files to parse in walk order.
func (in *Ingester) collect(root string, opts Options) ([]sourceFile, error) {
	allowed := make(map[typeparse.Language]bool)
	langs := opts.Languages
	if len(langs) == 0 {
		langs = in.parser.SupportedLanguages()
	}
	for _, l := range langs {
		allowed[l] = true
	}
	exclude := make(map[string]bool, len(opts.ExcludeDirs))
	for _, d := range opts.ExcludeDirs {
		exclude[d] = true
	}
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	var files []sourceFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			in.logger.Debug("skipping inaccessible path", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			if path != root && (d.Name() == ".git" || exclude[d.Name()]) {
				return filepath.SkipDir
			}
			return nil
		}
		lang, ok := typeparse.LanguageForPath(path)
		if !ok || !allowed[lang] {
			return nil
		}
		if fi, err := d.Info(); err != nil || fi.Size() > maxSize {
			in.logger.Debug("skipping file", "path", path, "max_size", maxSize)
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		files = append(files, sourceFile{abs: path, rel: filepath.ToSlash(rel), lang: lang})
		return nil
	})
	return files, err
}

// parseAll parses files with a bounded errgroup. The result slice is indexed
// like files; skipped files leave a nil entry.
func (in *Ingester) parseAll(ctx context.Context, files []sourceFile, opts Options) ([]*typeparse.ParseResult, error) {
	results := make([]*typeparse.ParseResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers(opts.Workers))

	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			source, err := os.ReadFile(f.abs)
			if err != nil {
				in.logger.Warn("skipping unreadable file", "path", f.rel, "error", err)
				return nil
			}
			res, err := in.parser.Parse(gctx, f.rel, source, f.lang)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				in.logger.Warn("skipping unparseable file", "path", f.rel, "error", err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// mergeResults reconciles results and merges every description. Merges run
// concurrently; the cache serializes them on its write lock.
func (in *Ingester) mergeResults(ctx context.Context, results []*typeparse.ParseResult, n int, stats *Stats) error {
	stats.Rewritten += NewResolver(results, in.cache.Lookup(), in.logger).Apply(results)

	var descs []*classcache.TypeDescription
	for _, res := range results {
		descs = append(descs, res.Types...)
	}
	stats.Types += len(descs)

	var merged, rejected, events atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers(n))
	for _, d := range descs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			evs, err := in.cache.Modification().Merge(gctx, d)
			if err != nil {
				var merr *classcache.ModificationError
				if !errors.As(err, &merr) {
					return err
				}
				in.logger.Warn("rejected type description", "fqn", d.FQN, "error", err)
				rejected.Add(1)
				return nil
			}
			merged.Add(1)
			events.Add(int64(len(evs)))
			return nil
		})
	}
	err := g.Wait()

	stats.Merged += int(merged.Load())
	stats.Rejected += int(rejected.Load())
	stats.Events += int(events.Load())
	return err
}

func compact(results []*typeparse.ParseResult) []*typeparse.ParseResult {
	out := make([]*typeparse.ParseResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func workers(n int) int {
	if n <= 0 {
		return 4
	}
	return n
}
