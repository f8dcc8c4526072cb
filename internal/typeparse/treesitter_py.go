package typeparse

import (
	"slices"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/typecache/internal/classcache"
)

// pyExtractor maps top-level Python classes. A class deriving from Protocol
// is an interface. Decorators become annotations and the exceptions raised
// by a method become its declared exceptions.
type pyExtractor struct{}

var pyBuiltins = map[string]bool{
	"object": true, "Exception": true, "BaseException": true, "ValueError": true,
	"TypeError": true, "KeyError": true, "RuntimeError": true, "LookupError": true,
	"NotImplementedError": true, "IndexError": true, "OSError": true,
	"PermissionError": true, "TimeoutError": true,
}

// pyMarkerBases carry no type information of their own.
var pyMarkerBases = map[string]bool{
	"object": true, "ABC": true, "abc.ABC": true, "Generic": true, "typing.Generic": true,
}

func pyIsProtocol(base string) bool {
	return base == "Protocol" || base == "typing.Protocol" || base == "typing_extensions.Protocol"
}

func (e *pyExtractor) Builtins() map[string]bool { return pyBuiltins }

func (e *pyExtractor) Extract(root *tree_sitter.Node, source []byte, types *fileTypes) {
	// Two passes: bases declared later in the file must resolve to their kind.
	var classes []*tree_sitter.Node
	var decorators [][]string
	for _, c := range namedChildren(root) {
		node, decs := pyUnwrap(c, source)
		if node != nil && node.Kind() == "class_definition" {
			classes = append(classes, node)
			decorators = append(decorators, decs)
		}
	}

	kinds := make(map[string]classcache.Kind, len(classes))
	for _, cls := range classes {
		kind := classcache.KindClass
		for _, b := range pyBases(cls, source) {
			if pyIsProtocol(b) {
				kind = classcache.KindInterface
			}
		}
		kinds[text(cls.ChildByFieldName("name"), source)] = kind
	}

	for i, cls := range classes {
		e.extractClass(cls, decorators[i], kinds, source, types)
	}
}

func (e *pyExtractor) extractClass(node *tree_sitter.Node, decorators []string, kinds map[string]classcache.Kind, source []byte, types *fileTypes) {
	name := text(node.ChildByFieldName("name"), source)
	if name == "" {
		return
	}
	kind := kinds[name]
	mods := pyVisibility(name)
	if kind == classcache.KindInterface {
		mods |= classcache.ModInterface | classcache.ModAbstract
	}
	desc := types.declare(name, kind, mods, raw(node, source))

	for _, d := range decorators {
		desc.Annotations = appendRef(desc.Annotations, types.ref(desc, classcache.KindAnnotation, d))
	}

	for _, b := range pyBases(node, source) {
		if pyMarkerBases[b] || pyIsProtocol(b) {
			continue
		}
		baseKind, local := kinds[b]
		switch {
		case kind == classcache.KindInterface:
			desc.SuperInterfaces = appendRef(desc.SuperInterfaces, types.ref(desc, classcache.KindInterface, b))
		case local && baseKind == classcache.KindInterface:
			desc.RealizedInterfaces = appendRef(desc.RealizedInterfaces, types.ref(desc, classcache.KindInterface, b))
		default:
			desc.SuperClasses = appendRef(desc.SuperClasses, types.ref(desc, classcache.KindClass, b))
		}
	}

	for _, stmt := range namedChildren(node.ChildByFieldName("body")) {
		fn, decs := pyUnwrap(stmt, source)
		if fn == nil || fn.Kind() != "function_definition" {
			continue
		}
		e.addMethod(fn, decs, source, types, desc)
	}
}

func (e *pyExtractor) addMethod(fn *tree_sitter.Node, decorators []string, source []byte, types *fileTypes, owner *classcache.TypeDescription) {
	name := text(fn.ChildByFieldName("name"), source)
	if name == "" {
		return
	}
	mods := pyVisibility(name)
	static := false
	for _, d := range decorators {
		switch d {
		case "staticmethod", "classmethod":
			static = true
			mods |= classcache.ModStatic
		case "abstractmethod", "abc.abstractmethod":
			mods |= classcache.ModAbstract
		}
	}
	if name == "__init__" {
		name = classcache.ConstructorName
	}

	m := classcache.MethodDescription{
		Name:       name,
		Parameters: pyParameters(fn.ChildByFieldName("parameters"), source, !static || slices.Contains(decorators, "classmethod")),
		ReturnType: text(fn.ChildByFieldName("return_type"), source),
		Modifiers:  mods,
	}
	for _, d := range decorators {
		m.Annotations = appendRef(m.Annotations, types.ref(nil, classcache.KindAnnotation, d))
	}
	for _, exc := range pyRaised(fn.ChildByFieldName("body"), source) {
		m.Exceptions = appendRef(m.Exceptions, types.ref(nil, classcache.KindClass, exc))
	}
	types.addMethod(owner, m, raw(fn, source))
}

// pyUnwrap returns the definition inside a decorated_definition together
// with its decorator names.
func pyUnwrap(n *tree_sitter.Node, source []byte) (*tree_sitter.Node, []string) {
	if n.Kind() != "decorated_definition" {
		return n, nil
	}
	var decs []string
	for _, c := range namedChildren(n) {
		if c.Kind() != "decorator" {
			continue
		}
		for _, expr := range namedChildren(c) {
			if expr.Kind() == "call" {
				expr = expr.ChildByFieldName("function")
			}
			if name := text(expr, source); name != "" {
				decs = append(decs, name)
			}
			break
		}
	}
	return n.ChildByFieldName("definition"), decs
}

// pyBases returns the positional base class expressions of a class.
func pyBases(cls *tree_sitter.Node, source []byte) []string {
	var out []string
	for _, arg := range namedChildren(cls.ChildByFieldName("superclasses")) {
		switch arg.Kind() {
		case "identifier", "attribute":
			out = append(out, text(arg, source))
		case "subscript":
			out = append(out, text(arg.ChildByFieldName("value"), source))
		}
	}
	return out
}

// pyParameters lists the annotated parameter types, "object" for untyped
// ones. The leading self/cls parameter is dropped when bound is set.
func pyParameters(list *tree_sitter.Node, source []byte, bound bool) []string {
	var out []string
	for i, p := range namedChildren(list) {
		if i == 0 && bound && p.Kind() == "identifier" {
			continue
		}
		switch p.Kind() {
		case "identifier", "default_parameter":
			out = append(out, "object")
		case "typed_parameter", "typed_default_parameter":
			typ := text(p.ChildByFieldName("type"), source)
			if typ == "" {
				typ = "object"
			}
			out = append(out, typ)
		case "list_splat_pattern":
			out = append(out, "*args")
		case "dictionary_splat_pattern":
			out = append(out, "**kwargs")
		}
	}
	return out
}

// pyRaised collects the exception classes named by raise statements in
// body, without descending into nested functions or classes.
func pyRaised(body *tree_sitter.Node, source []byte) []string {
	var out []string
	descendants(body, func(n *tree_sitter.Node) bool {
		switch n.Kind() {
		case "function_definition", "class_definition", "lambda":
			return false
		case "raise_statement":
			for _, c := range namedChildren(n) {
				if c.Kind() == "call" {
					c = c.ChildByFieldName("function")
				}
				if c != nil && (c.Kind() == "identifier" || c.Kind() == "attribute") {
					out = append(out, text(c, source))
				}
				break
			}
			return false
		}
		return true
	})
	return out
}

// pyVisibility treats a single leading underscore as private; dunder names
// stay public.
func pyVisibility(name string) classcache.Modifiers {
	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		return classcache.ModPublic
	}
	if strings.HasPrefix(name, "_") {
		return classcache.ModPrivate
	}
	return classcache.ModPublic
}
