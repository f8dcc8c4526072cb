// Package typeparse extracts type descriptions from source files with
// tree-sitter. Every declared class-like type becomes an initialized
// TypeDescription whose hash is derived from its declaration text; the types
// it references become one-hop stubs.
package typeparse

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/dusk-indust/typecache/internal/classcache"
)

// Language identifies a grammar.
type Language string

const (
	LangGo         Language = "go"
	LangTypeScript Language = "typescript"
	LangPython     Language = "python"
	LangRust       Language = "rust"
)

// AllLanguages lists every language the tree-sitter parser handles.
var AllLanguages = []Language{LangGo, LangTypeScript, LangPython, LangRust}

var extToLanguage = map[string]Language{
	".go":  LangGo,
	".ts":  LangTypeScript,
	".tsx": LangTypeScript,
	".py":  LangPython,
	".rs":  LangRust,
}

// LanguageForPath maps a file name to its language by extension.
func LanguageForPath(path string) (Language, bool) {
	lang, ok := extToLanguage[filepath.Ext(path)]
	return lang, ok
}

// ParseLanguages converts configured names into languages, ignoring case.
// Unknown names are returned separately.
func ParseLanguages(names []string) (langs []Language, unknown []string) {
	for _, n := range names {
		l := Language(strings.ToLower(strings.TrimSpace(n)))
		switch l {
		case LangGo, LangTypeScript, LangPython, LangRust:
			langs = append(langs, l)
		default:
			unknown = append(unknown, n)
		}
	}
	return langs, unknown
}

// ParseResult holds the type descriptions extracted from one file.
type ParseResult struct {
	Path     string                        `json:"path"`
	Language Language                      `json:"language"`
	Module   string                        `json:"module"`
	Types    []*classcache.TypeDescription `json:"types"`
}

// Parser extracts type descriptions from source files.
type Parser interface {
	// Parse extracts the types declared in source. path is relative to the
	// ingest root and determines the module prefix of the FQNs.
	Parse(ctx context.Context, path string, source []byte, lang Language) (*ParseResult, error)

	SupportedLanguages() []Language

	Close() error
}
