package typeparse

import (
	"encoding/binary"
	"encoding/hex"
	"path"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/dusk-indust/typecache/internal/classcache"
)

// hashDomainKey separates type hashes from any other BLAKE3 use. It is the
// ASCII name of the domain zero-padded to 32 bytes.
var hashDomainKey = [32]byte{
	't', 'y', 'p', 'e', 'c', 'a', 'c', 'h', 'e', '.', 't', 'y', 'p', 'e',
}

// contentHash returns the hex BLAKE3 keyed hash of the given parts. Parts are
// length-prefixed so that moving bytes between parts changes the hash.
func contentHash(parts ...[]byte) string {
	h, err := blake3.NewKeyed(hashDomainKey[:])
	if err != nil {
		panic("typeparse: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	var n [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// moduleFor derives the dotted module prefix of a file. Go types are scoped
// by directory; the other languages scope by file, with package index files
// (__init__.py, mod.rs, lib.rs, main.rs, index.ts) standing for their
// directory.
func moduleFor(p string, lang Language) string {
	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	dir, file := path.Split(p)
	dir = strings.TrimSuffix(dir, "/")
	base := strings.TrimSuffix(file, path.Ext(file))

	var mod string
	switch {
	case lang == LangGo:
		mod = dir
	case base == "__init__" || base == "mod" || base == "lib" || base == "main" || base == "index":
		mod = dir
	case dir == "":
		mod = base
	default:
		mod = dir + "/" + base
	}
	if mod == "." {
		mod = ""
	}
	return strings.ReplaceAll(mod, "/", ".")
}

// decl is a type declared in the file being parsed.
type decl struct {
	desc  *classcache.TypeDescription
	text  [][]byte
	local bool
}

// fileTypes accumulates the descriptions of one file in declaration order.
// Types named by a method receiver or impl block but declared elsewhere are
// kept as uninitialized descriptions carrying only what this file adds.
type fileTypes struct {
	module   string
	builtins map[string]bool
	order    []string
	byFQN    map[string]*decl
}

func newFileTypes(module string, builtins map[string]bool) *fileTypes {
	return &fileTypes{
		module:   module,
		builtins: builtins,
		byFQN:    make(map[string]*decl),
	}
}

// qualify turns a type expression into an FQN: generic arguments, pointer
// and reference sigils are stripped, '::' becomes '.', and unqualified names
// get the module prefix unless they are language builtins.
func (f *fileTypes) qualify(expr string) string {
	name := strings.TrimSpace(expr)
	name = strings.TrimLeft(name, "*&")
	name = strings.TrimPrefix(name, "mut ")
	name = strings.TrimPrefix(name, "dyn ")
	if i := strings.IndexAny(name, "<["); i >= 0 {
		name = name[:i]
	}
	name = strings.ReplaceAll(strings.TrimSpace(name), "::", ".")
	if name == "" {
		return ""
	}
	if strings.Contains(name, ".") || f.builtins[name] || f.module == "" {
		return name
	}
	return f.module + "." + name
}

// declare registers a type declared in this file. A second declaration of
// the same name is folded into the first.
func (f *fileTypes) declare(name string, kind classcache.Kind, mods classcache.Modifiers, text []byte) *classcache.TypeDescription {
	fqn := f.qualify(name)
	if d, ok := f.byFQN[fqn]; ok {
		d.local = true
		d.desc.Kind = kind
		d.desc.Modifiers |= mods
		d.text = append(d.text, text)
		return d.desc
	}
	d := &decl{
		desc:  &classcache.TypeDescription{FQN: fqn, Kind: kind, Modifiers: mods},
		text:  [][]byte{text},
		local: true,
	}
	f.byFQN[fqn] = d
	f.order = append(f.order, fqn)
	return d.desc
}

// declared returns the description of a type declared in this file, or nil.
func (f *fileTypes) declared(name string) *classcache.TypeDescription {
	if d, ok := f.byFQN[f.qualify(name)]; ok && d.local {
		return d.desc
	}
	return nil
}

// extend returns the description methods and realizations for name attach
// to, creating an uninitialized one when name is declared elsewhere.
func (f *fileTypes) extend(name string, kind classcache.Kind) *classcache.TypeDescription {
	fqn := f.qualify(name)
	if fqn == "" {
		return nil
	}
	if d, ok := f.byFQN[fqn]; ok {
		return d.desc
	}
	d := &decl{desc: &classcache.TypeDescription{FQN: fqn, Kind: kind}}
	f.byFQN[fqn] = d
	f.order = append(f.order, fqn)
	return d.desc
}

// addMethod attaches m to owner and folds text into the owner's hash.
func (f *fileTypes) addMethod(owner *classcache.TypeDescription, m classcache.MethodDescription, text []byte) {
	owner.Methods = append(owner.Methods, m)
	if d, ok := f.byFQN[owner.FQN]; ok && d.local {
		d.text = append(d.text, text)
	}
}

// ref builds a one-hop reference, or nil for empty names and self
// references.
func (f *fileTypes) ref(owner *classcache.TypeDescription, kind classcache.Kind, expr string) *classcache.TypeDescription {
	fqn := f.qualify(expr)
	if fqn == "" || (owner != nil && fqn == owner.FQN) {
		return nil
	}
	return classcache.Ref(kind, fqn)
}

func appendRef(list []*classcache.TypeDescription, r *classcache.TypeDescription) []*classcache.TypeDescription {
	if r == nil {
		return list
	}
	for _, existing := range list {
		if existing.FQN == r.FQN {
			return list
		}
	}
	return append(list, r)
}

// results finalizes the descriptions: declared types get their content hash
// and become initialized.
func (f *fileTypes) results() []*classcache.TypeDescription {
	out := make([]*classcache.TypeDescription, 0, len(f.order))
	for _, fqn := range f.order {
		d := f.byFQN[fqn]
		if d.local {
			d.desc.Hash = contentHash(append([][]byte{[]byte(fqn)}, d.text...)...)
		}
		out = append(out, d.desc)
	}
	return out
}
