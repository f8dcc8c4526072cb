package typeparse

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/typecache/internal/classcache"
)

// rsExtractor maps Rust structs and enums to classes and traits to
// interfaces. Trait impls and #[derive] lists become realized interfaces,
// other attributes become annotations, and the error type of a returned
// Result becomes a declared exception.
type rsExtractor struct{}

var rsBuiltins = map[string]bool{
	"Debug": true, "Clone": true, "Copy": true, "PartialEq": true, "Eq": true,
	"PartialOrd": true, "Ord": true, "Hash": true, "Default": true, "Display": true,
	"Error": true, "Send": true, "Sync": true, "Serialize": true, "Deserialize": true,
	"Self": true,
}

func (e *rsExtractor) Builtins() map[string]bool { return rsBuiltins }

func (e *rsExtractor) Extract(root *tree_sitter.Node, source []byte, types *fileTypes) {
	var attrs []*tree_sitter.Node
	for _, c := range namedChildren(root) {
		switch c.Kind() {
		case "attribute_item":
			attrs = append(attrs, c)
			continue
		case "line_comment", "block_comment":
			continue
		case "struct_item", "enum_item":
			e.extractStruct(c, attrs, source, types)
		case "trait_item":
			e.extractTrait(c, attrs, source, types)
		case "impl_item":
			e.extractImpl(c, source, types)
		}
		attrs = nil
	}
}

func (e *rsExtractor) extractStruct(node *tree_sitter.Node, attrs []*tree_sitter.Node, source []byte, types *fileTypes) {
	name := text(node.ChildByFieldName("name"), source)
	if name == "" {
		return
	}
	desc := types.declare(name, classcache.KindClass, rsVisibility(node)|classcache.ModFinal, raw(node, source))
	e.applyAttributes(desc, attrs, source, types)
}

func (e *rsExtractor) extractTrait(node *tree_sitter.Node, attrs []*tree_sitter.Node, source []byte, types *fileTypes) {
	name := text(node.ChildByFieldName("name"), source)
	if name == "" {
		return
	}
	mods := rsVisibility(node) | classcache.ModInterface | classcache.ModAbstract
	desc := types.declare(name, classcache.KindInterface, mods, raw(node, source))
	e.applyAttributes(desc, attrs, source, types)

	for _, b := range namedChildren(node.ChildByFieldName("bounds")) {
		switch b.Kind() {
		case "type_identifier", "scoped_type_identifier", "generic_type":
			desc.SuperInterfaces = appendRef(desc.SuperInterfaces, types.ref(desc, classcache.KindInterface, text(b, source)))
		}
	}

	for _, item := range namedChildren(node.ChildByFieldName("body")) {
		switch item.Kind() {
		case "function_signature_item":
			e.addMethod(item, classcache.ModPublic|classcache.ModAbstract, source, types, desc)
		case "function_item":
			e.addMethod(item, classcache.ModPublic, source, types, desc)
		}
	}
}

func (e *rsExtractor) extractImpl(node *tree_sitter.Node, source []byte, types *fileTypes) {
	owner := types.extend(text(node.ChildByFieldName("type"), source), classcache.KindClass)
	if owner == nil {
		return
	}
	trait := node.ChildByFieldName("trait")
	if trait != nil {
		owner.RealizedInterfaces = appendRef(owner.RealizedInterfaces, types.ref(owner, classcache.KindInterface, text(trait, source)))
	}

	for _, item := range namedChildren(node.ChildByFieldName("body")) {
		if item.Kind() != "function_item" {
			continue
		}
		mods := rsVisibility(item)
		if trait != nil {
			// Trait methods are as visible as the trait.
			mods = classcache.ModPublic
		}
		e.addMethod(item, mods, source, types, owner)
	}
}

func (e *rsExtractor) addMethod(fn *tree_sitter.Node, mods classcache.Modifiers, source []byte, types *fileTypes, owner *classcache.TypeDescription) {
	name := text(fn.ChildByFieldName("name"), source)
	if name == "" {
		return
	}
	params, static := rsParameters(fn.ChildByFieldName("parameters"), source)
	if static {
		mods |= classcache.ModStatic
	}
	ret := text(fn.ChildByFieldName("return_type"), source)
	m := classcache.MethodDescription{
		Name:       name,
		Parameters: params,
		ReturnType: ret,
		Modifiers:  mods,
	}
	if errType := rsErrorType(ret); errType != "" {
		m.Exceptions = appendRef(m.Exceptions, types.ref(nil, classcache.KindClass, errType))
	}
	types.addMethod(owner, m, raw(fn, source))
}

// applyAttributes turns #[derive(A, B)] into realized interfaces and every
// other attribute into an annotation.
func (e *rsExtractor) applyAttributes(desc *classcache.TypeDescription, attrs []*tree_sitter.Node, source []byte, types *fileTypes) {
	for _, item := range attrs {
		for _, attr := range namedChildren(item) {
			if attr.Kind() != "attribute" {
				continue
			}
			path := ""
			if kids := namedChildren(attr); len(kids) > 0 {
				path = text(kids[0], source)
			}
			if path != "derive" {
				if path != "" {
					desc.Annotations = appendRef(desc.Annotations, types.ref(desc, classcache.KindAnnotation, path))
				}
				continue
			}
			args := strings.Trim(text(attr.ChildByFieldName("arguments"), source), "()")
			for _, trait := range splitTopLevel(args, ',') {
				desc.RealizedInterfaces = appendRef(desc.RealizedInterfaces, types.ref(desc, classcache.KindInterface, trait))
			}
		}
	}
}

// rsParameters lists parameter types and reports whether the function has
// no self receiver.
func rsParameters(list *tree_sitter.Node, source []byte) ([]string, bool) {
	var out []string
	static := true
	for _, p := range namedChildren(list) {
		switch p.Kind() {
		case "self_parameter":
			static = false
		case "parameter":
			out = append(out, text(p.ChildByFieldName("type"), source))
		}
	}
	return out, static
}

// rsErrorType returns E for a return type of the form Result<T, E>.
func rsErrorType(ret string) string {
	open := strings.IndexByte(ret, '<')
	if open < 0 || !strings.HasSuffix(ret, ">") || !strings.HasSuffix(ret[:open], "Result") {
		return ""
	}
	args := splitTopLevel(ret[open+1:len(ret)-1], ',')
	if len(args) != 2 {
		return ""
	}
	return args[1]
}

// rsVisibility maps any pub visibility to public and the default to
// package-private.
func rsVisibility(node *tree_sitter.Node) classcache.Modifiers {
	for _, c := range namedChildren(node) {
		if c.Kind() == "visibility_modifier" {
			return classcache.ModPublic
		}
	}
	return 0
}
