package typeparse

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/typecache/internal/classcache"
)

// tsExtractor maps TypeScript classes and interfaces. Decorators become
// annotations; "extends" and "implements" clauses become superclasses and
// realized interfaces.
type tsExtractor struct{}

var tsBuiltins = map[string]bool{
	"Error": true, "TypeError": true, "RangeError": true, "Object": true,
	"Array": true, "Map": true, "Set": true, "Promise": true, "EventTarget": true,
}

func (e *tsExtractor) Builtins() map[string]bool { return tsBuiltins }

func (e *tsExtractor) Extract(root *tree_sitter.Node, source []byte, types *fileTypes) {
	for _, c := range namedChildren(root) {
		node, exported := c, false
		if c.Kind() == "export_statement" {
			node, exported = c.ChildByFieldName("declaration"), true
			if node == nil {
				continue
			}
		}
		switch node.Kind() {
		case "class_declaration", "abstract_class_declaration":
			e.extractClass(node, source, types, exported)
		case "interface_declaration":
			e.extractInterface(node, source, types, exported)
		}
	}
}

func (e *tsExtractor) extractClass(node *tree_sitter.Node, source []byte, types *fileTypes, exported bool) {
	name := text(node.ChildByFieldName("name"), source)
	if name == "" {
		return
	}
	var mods classcache.Modifiers
	if exported {
		mods |= classcache.ModPublic
	}
	if node.Kind() == "abstract_class_declaration" {
		mods |= classcache.ModAbstract
	}
	desc := types.declare(name, classcache.KindClass, mods, raw(node, source))

	for _, d := range tsDecorators(node, source) {
		desc.Annotations = appendRef(desc.Annotations, types.ref(desc, classcache.KindAnnotation, d))
	}

	for _, c := range namedChildren(node) {
		if c.Kind() != "class_heritage" {
			continue
		}
		for _, clause := range namedChildren(c) {
			switch clause.Kind() {
			case "extends_clause":
				if v := clause.ChildByFieldName("value"); v != nil {
					desc.SuperClasses = appendRef(desc.SuperClasses, types.ref(desc, classcache.KindClass, text(v, source)))
				}
			case "implements_clause":
				for _, t := range namedChildren(clause) {
					desc.RealizedInterfaces = appendRef(desc.RealizedInterfaces, types.ref(desc, classcache.KindInterface, text(t, source)))
				}
			}
		}
	}

	// Member decorators precede their method as siblings in the class body.
	var pending []string
	for _, member := range namedChildren(node.ChildByFieldName("body")) {
		switch member.Kind() {
		case "decorator":
			pending = append(pending, decoratorName(member, source))
		case "method_definition", "abstract_method_signature":
			e.addMethod(member, source, types, desc, append(pending, tsDecorators(member, source)...))
			pending = nil
		default:
			pending = nil
		}
	}
}

func (e *tsExtractor) extractInterface(node *tree_sitter.Node, source []byte, types *fileTypes, exported bool) {
	name := text(node.ChildByFieldName("name"), source)
	if name == "" {
		return
	}
	mods := classcache.ModInterface | classcache.ModAbstract
	if exported {
		mods |= classcache.ModPublic
	}
	desc := types.declare(name, classcache.KindInterface, mods, raw(node, source))

	for _, c := range namedChildren(node) {
		if c.Kind() == "extends_type_clause" {
			for _, t := range namedChildren(c) {
				desc.SuperInterfaces = appendRef(desc.SuperInterfaces, types.ref(desc, classcache.KindInterface, text(t, source)))
			}
		}
	}

	for _, member := range namedChildren(node.ChildByFieldName("body")) {
		if member.Kind() == "method_signature" {
			e.addMethod(member, source, types, desc, nil)
		}
	}
}

func (e *tsExtractor) addMethod(member *tree_sitter.Node, source []byte, types *fileTypes, owner *classcache.TypeDescription, decorators []string) {
	name := text(member.ChildByFieldName("name"), source)
	if name == "" {
		return
	}
	if name == "constructor" {
		name = classcache.ConstructorName
	}

	visibility, mods := classcache.ModPublic, classcache.Modifiers(0)
	for _, c := range children(member) {
		switch c.Kind() {
		case "accessibility_modifier":
			visibility = classcache.ParseModifiers(text(c, source))
		case "static":
			mods |= classcache.ModStatic
		}
	}
	mods |= visibility
	if member.Kind() == "abstract_method_signature" || owner.Kind == classcache.KindInterface {
		mods |= classcache.ModAbstract
	}

	m := classcache.MethodDescription{
		Name:       name,
		Parameters: tsParameters(member.ChildByFieldName("parameters"), source),
		ReturnType: typeAnnotation(member.ChildByFieldName("return_type"), source),
		Modifiers:  mods,
	}
	for _, d := range decorators {
		m.Annotations = appendRef(m.Annotations, types.ref(nil, classcache.KindAnnotation, d))
	}
	types.addMethod(owner, m, raw(member, source))
}

// tsParameters lists the declared parameter types; untyped parameters are
// "any".
func tsParameters(list *tree_sitter.Node, source []byte) []string {
	var out []string
	for _, p := range namedChildren(list) {
		switch p.Kind() {
		case "required_parameter", "optional_parameter":
			typ := typeAnnotation(p.ChildByFieldName("type"), source)
			if typ == "" {
				typ = "any"
			}
			out = append(out, typ)
		}
	}
	return out
}

// tsDecorators returns the decorator names on node, including decorators
// written before an enclosing export.
func tsDecorators(node *tree_sitter.Node, source []byte) []string {
	var out []string
	collect := func(n *tree_sitter.Node) {
		for _, c := range namedChildren(n) {
			if c.Kind() == "decorator" {
				if name := decoratorName(c, source); name != "" {
					out = append(out, name)
				}
			}
		}
	}
	collect(node)
	if parent := node.Parent(); parent != nil && parent.Kind() == "export_statement" {
		collect(parent)
	}
	return out
}

// decoratorName returns the callee of "@name" or "@name(args)".
func decoratorName(n *tree_sitter.Node, source []byte) string {
	for _, expr := range namedChildren(n) {
		if expr.Kind() == "call_expression" {
			expr = expr.ChildByFieldName("function")
		}
		return strings.TrimSpace(text(expr, source))
	}
	return ""
}
