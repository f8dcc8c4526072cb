package typeparse

import (
	"context"
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

var _ Parser = (*TreeSitterParser)(nil)

// extractor walks a parsed tree and records the declared types.
type extractor interface {
	Extract(root *tree_sitter.Node, source []byte, types *fileTypes)
	Builtins() map[string]bool
}

// TreeSitterParser implements Parser with tree-sitter grammars. A new
// tree-sitter parser is created per Parse call, so concurrent Parse calls
// are safe.
type TreeSitterParser struct {
	languages  map[Language]*tree_sitter.Language
	extractors map[Language]extractor
}

// NewTreeSitterParser creates a TreeSitterParser with Go, TypeScript, Python,
// and Rust grammars registered.
func NewTreeSitterParser() *TreeSitterParser {
	return &TreeSitterParser{
		languages: map[Language]*tree_sitter.Language{
			LangGo:         tree_sitter.NewLanguage(tree_sitter_go.Language()),
			LangTypeScript: tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
			LangPython:     tree_sitter.NewLanguage(tree_sitter_python.Language()),
			LangRust:       tree_sitter.NewLanguage(tree_sitter_rust.Language()),
		},
		extractors: map[Language]extractor{
			LangGo:         &goExtractor{},
			LangTypeScript: &tsExtractor{},
			LangPython:     &pyExtractor{},
			LangRust:       &rsExtractor{},
		},
	}
}

// Parse extracts the types declared in source.
func (p *TreeSitterParser) Parse(ctx context.Context, path string, source []byte, lang Language) (*ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tsLang, ok := p.languages[lang]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
	ext := p.extractors[lang]

	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(tsLang); err != nil {
		return nil, fmt.Errorf("set language %s: %w", lang, err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter returned nil tree for %s", path)
	}
	defer tree.Close()

	module := moduleFor(path, lang)
	types := newFileTypes(module, ext.Builtins())
	ext.Extract(tree.RootNode(), source, types)

	return &ParseResult{
		Path:     path,
		Language: lang,
		Module:   types.module,
		Types:    types.results(),
	}, nil
}

// SupportedLanguages returns the languages this parser can handle.
func (p *TreeSitterParser) SupportedLanguages() []Language {
	out := make([]Language, 0, len(p.languages))
	for _, l := range AllLanguages {
		if _, ok := p.languages[l]; ok {
			out = append(out, l)
		}
	}
	return out
}

// Close is a no-op because parsers are created per Parse call.
func (p *TreeSitterParser) Close() error {
	return nil
}

// text returns the source text of n, or "" for a nil node.
func text(n *tree_sitter.Node, source []byte) string {
	if n == nil {
		return ""
	}
	return n.Utf8Text(source)
}

// raw returns the source bytes spanned by n.
func raw(n *tree_sitter.Node, source []byte) []byte {
	return source[n.StartByte():n.EndByte()]
}

// namedChildren returns the named children of n.
func namedChildren(n *tree_sitter.Node) []*tree_sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*tree_sitter.Node, 0, n.NamedChildCount())
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if c := n.NamedChild(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// children returns every child of n, anonymous tokens included.
func children(n *tree_sitter.Node) []*tree_sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*tree_sitter.Node, 0, n.ChildCount())
	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// descendants calls fn for every node below n in document order. fn returns
// false to skip a subtree.
func descendants(n *tree_sitter.Node, fn func(*tree_sitter.Node) bool) {
	for _, c := range namedChildren(n) {
		if fn(c) {
			descendants(c, fn)
		}
	}
}

// typeAnnotation strips the leading ':' of a type annotation.
func typeAnnotation(n *tree_sitter.Node, source []byte) string {
	return strings.TrimSpace(strings.TrimPrefix(text(n, source), ":"))
}

// splitTopLevel splits s on sep outside of any bracket pair.
func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(', '[', '{':
			depth++
		case '>', ')', ']', '}':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}
