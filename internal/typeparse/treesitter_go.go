package typeparse

import (
	"strings"
	"unicode"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/typecache/internal/classcache"
)

// goExtractor maps Go named types to classes and interface types to
// interfaces. Embedded interfaces become super-interfaces; embedded struct
// fields become superclasses, or realized interfaces when the embedded type
// is an interface declared in the same file.
type goExtractor struct{}

var goBuiltins = map[string]bool{
	"error": true, "any": true, "comparable": true,
}

func (e *goExtractor) Builtins() map[string]bool { return goBuiltins }

func (e *goExtractor) Extract(root *tree_sitter.Node, source []byte, types *fileTypes) {
	if types.module == "" {
		for _, c := range namedChildren(root) {
			if c.Kind() == "package_clause" {
				if len(namedChildren(c)) > 0 {
					types.module = text(namedChildren(c)[0], source)
				}
				break
			}
		}
	}

	// Declarations first so that embedded fields and receivers can see the
	// kinds of every type in the file.
	var embeds []func()
	for _, c := range namedChildren(root) {
		if c.Kind() != "type_declaration" {
			continue
		}
		for _, spec := range namedChildren(c) {
			if spec.Kind() == "type_spec" {
				if fn := e.declareSpec(spec, source, types); fn != nil {
					embeds = append(embeds, fn)
				}
			}
		}
	}
	for _, fn := range embeds {
		fn()
	}

	for _, c := range namedChildren(root) {
		if c.Kind() == "method_declaration" {
			e.extractMethod(c, source, types)
		}
	}
}

// declareSpec declares the type and returns a closure that resolves its
// embedded types once every declaration of the file is known.
func (e *goExtractor) declareSpec(spec *tree_sitter.Node, source []byte, types *fileTypes) func() {
	name := text(spec.ChildByFieldName("name"), source)
	if name == "" {
		return nil
	}
	mods := goVisibility(name)
	typeNode := spec.ChildByFieldName("type")

	if typeNode != nil && typeNode.Kind() == "interface_type" {
		desc := types.declare(name, classcache.KindInterface, mods|classcache.ModInterface|classcache.ModAbstract, raw(spec, source))
		for _, elem := range namedChildren(typeNode) {
			switch elem.Kind() {
			case "method_elem":
				types.addMethod(desc, classcache.MethodDescription{
					Name:       text(elem.ChildByFieldName("name"), source),
					Parameters: goParameters(elem.ChildByFieldName("parameters"), source),
					ReturnType: text(elem.ChildByFieldName("result"), source),
					Modifiers:  goVisibility(text(elem.ChildByFieldName("name"), source)) | classcache.ModAbstract,
				}, raw(elem, source))
			case "type_elem":
				for _, t := range namedChildren(elem) {
					desc.SuperInterfaces = appendRef(desc.SuperInterfaces, types.ref(desc, classcache.KindInterface, text(t, source)))
				}
			}
		}
		return nil
	}

	desc := types.declare(name, classcache.KindClass, mods, raw(spec, source))
	if typeNode == nil || typeNode.Kind() != "struct_type" {
		return nil
	}
	var embedded []string
	descendants(typeNode, func(n *tree_sitter.Node) bool {
		if n.Kind() != "field_declaration" {
			return n.Kind() == "field_declaration_list"
		}
		if n.ChildByFieldName("name") == nil {
			embedded = append(embedded, text(n.ChildByFieldName("type"), source))
		}
		return false
	})
	return func() {
		for _, emb := range embedded {
			if d := types.declared(emb); d != nil && d.Kind == classcache.KindInterface {
				desc.RealizedInterfaces = appendRef(desc.RealizedInterfaces, types.ref(desc, classcache.KindInterface, emb))
				continue
			}
			desc.SuperClasses = appendRef(desc.SuperClasses, types.ref(desc, classcache.KindClass, emb))
		}
	}
}

func (e *goExtractor) extractMethod(node *tree_sitter.Node, source []byte, types *fileTypes) {
	name := text(node.ChildByFieldName("name"), source)
	receiver := goReceiverType(node.ChildByFieldName("receiver"), source)
	if name == "" || receiver == "" {
		return
	}
	owner := types.extend(receiver, classcache.KindClass)
	if owner == nil {
		return
	}
	types.addMethod(owner, classcache.MethodDescription{
		Name:       name,
		Parameters: goParameters(node.ChildByFieldName("parameters"), source),
		ReturnType: text(node.ChildByFieldName("result"), source),
		Modifiers:  goVisibility(name),
	}, raw(node, source))
}

// goParameters lists one type per declared parameter; "a, b int" yields
// two entries.
func goParameters(list *tree_sitter.Node, source []byte) []string {
	var out []string
	for _, p := range namedChildren(list) {
		switch p.Kind() {
		case "parameter_declaration", "variadic_parameter_declaration":
		default:
			continue
		}
		typ := text(p.ChildByFieldName("type"), source)
		if p.Kind() == "variadic_parameter_declaration" {
			typ = "..." + typ
		}
		names := 0
		for _, c := range namedChildren(p) {
			if c.Kind() == "identifier" {
				names++
			}
		}
		for range max(names, 1) {
			out = append(out, typ)
		}
	}
	return out
}

// goReceiverType returns the base type name of a method receiver.
func goReceiverType(list *tree_sitter.Node, source []byte) string {
	for _, p := range namedChildren(list) {
		if p.Kind() == "parameter_declaration" {
			t := strings.TrimLeft(text(p.ChildByFieldName("type"), source), "*")
			if i := strings.IndexByte(t, '['); i >= 0 {
				t = t[:i]
			}
			return t
		}
	}
	return ""
}

func goVisibility(name string) classcache.Modifiers {
	r, _ := utf8.DecodeRuneInString(name)
	if unicode.IsUpper(r) {
		return classcache.ModPublic
	}
	return 0
}
