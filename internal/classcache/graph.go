package classcache

import (
	"slices"
	"strings"
)

// graph is the node arena. Every edge mutator updates both endpoints, so the
// mirror sets stay consistent as long as callers hold the cache's write lock.
type graph struct {
	nodes map[TypeID]*Type
	next  TypeID
}

func newGraph() *graph {
	return &graph{nodes: make(map[TypeID]*Type)}
}

func (g *graph) len() int {
	return len(g.nodes)
}

// newType allocates an uninitialized node with a fresh ID.
func (g *graph) newType(fqn string, kind Kind) *Type {
	g.next++
	t := &Type{
		id:                 g.next,
		g:                  g,
		fqn:                fqn,
		kind:               kind,
		hashes:             make(map[string]struct{}),
		annotations:        make(idSet),
		superClasses:       make(idSet),
		subClasses:         make(idSet),
		realizedInterfaces: make(idSet),
		throwingMethods:    make(refSet),
		superInterfaces:    make(idSet),
		subInterfaces:      make(idSet),
		realizingClasses:   make(idSet),
		annotatedTypes:     make(idSet),
		annotatedMethods:   make(refSet),
		methods:            make(map[string]*Method),
	}
	g.nodes[t.id] = t
	return t
}

// resolve maps an id-set to nodes sorted by FQN.
func (g *graph) resolve(ids idSet) []*Type {
	if len(ids) == 0 {
		return nil
	}
	out := make([]*Type, 0, len(ids))
	for id := range ids {
		if t := g.nodes[id]; t != nil {
			out = append(out, t)
		}
	}
	sortByFQN(out)
	return out
}

func (g *graph) resolveMethods(refs refSet) []*Method {
	if len(refs) == 0 {
		return nil
	}
	out := make([]*Method, 0, len(refs))
	for ref := range refs {
		if m := g.method(ref); m != nil {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b *Method) int {
		if c := strings.Compare(a.owner.fqn, b.owner.fqn); c != 0 {
			return c
		}
		return strings.Compare(a.Signature(), b.Signature())
	})
	return out
}

func (g *graph) method(ref MethodRef) *Method {
	owner := g.nodes[ref.Owner]
	if owner == nil {
		return nil
	}
	return owner.methods[ref.Signature]
}

func (g *graph) containsFQN(ids idSet, fqn string) bool {
	for id := range ids {
		if t := g.nodes[id]; t != nil && t.fqn == fqn {
			return true
		}
	}
	return false
}

func sortByFQN(types []*Type) {
	slices.SortFunc(types, func(a, b *Type) int {
		return strings.Compare(a.fqn, b.fqn)
	})
}

// --- edge mutators ---

func (g *graph) addSuperClass(sub, super *Type) bool {
	if !sub.superClasses.add(super.id) {
		return false
	}
	super.subClasses.add(sub.id)
	return true
}

func (g *graph) addRealizedInterface(class, iface *Type) bool {
	if !class.realizedInterfaces.add(iface.id) {
		return false
	}
	iface.realizingClasses.add(class.id)
	return true
}

func (g *graph) addSuperInterface(sub, super *Type) bool {
	if !sub.superInterfaces.add(super.id) {
		return false
	}
	super.subInterfaces.add(sub.id)
	return true
}

func (g *graph) addAnnotation(t, annotation *Type) bool {
	if !t.annotations.add(annotation.id) {
		return false
	}
	annotation.annotatedTypes.add(t.id)
	return true
}

func (g *graph) addMethodException(m *Method, exception *Type) bool {
	if !m.exceptions.add(exception.id) {
		return false
	}
	exception.throwingMethods[m.ref()] = struct{}{}
	return true
}

func (g *graph) addMethodAnnotation(m *Method, annotation *Type) bool {
	if !m.annotations.add(annotation.id) {
		return false
	}
	annotation.annotatedMethods[m.ref()] = struct{}{}
	return true
}

// addMethod creates a method on owner. The caller checks for an existing
// method with the same signature first.
func (g *graph) addMethod(owner *Type, name string, parameters []string) *Method {
	m := &Method{
		owner:       owner,
		name:        name,
		parameters:  slices.Clone(parameters),
		exceptions:  make(idSet),
		annotations: make(idSet),
	}
	sig := m.Signature()
	owner.methods[sig] = m
	owner.methodOrder = append(owner.methodOrder, sig)
	return m
}

// remove severs every edge of t on both sides and drops it from the arena.
// The header (FQN, hashes) is left intact so listeners can still read it.
func (g *graph) remove(t *Type) {
	for id := range t.superClasses {
		if o := g.nodes[id]; o != nil {
			delete(o.subClasses, t.id)
		}
	}
	for id := range t.subClasses {
		if o := g.nodes[id]; o != nil {
			delete(o.superClasses, t.id)
		}
	}
	for id := range t.realizedInterfaces {
		if o := g.nodes[id]; o != nil {
			delete(o.realizingClasses, t.id)
		}
	}
	for id := range t.realizingClasses {
		if o := g.nodes[id]; o != nil {
			delete(o.realizedInterfaces, t.id)
		}
	}
	for id := range t.superInterfaces {
		if o := g.nodes[id]; o != nil {
			delete(o.subInterfaces, t.id)
		}
	}
	for id := range t.subInterfaces {
		if o := g.nodes[id]; o != nil {
			delete(o.superInterfaces, t.id)
		}
	}
	for id := range t.annotations {
		if o := g.nodes[id]; o != nil {
			delete(o.annotatedTypes, t.id)
		}
	}
	for id := range t.annotatedTypes {
		if o := g.nodes[id]; o != nil {
			delete(o.annotations, t.id)
		}
	}
	for _, m := range t.methods {
		ref := m.ref()
		for id := range m.exceptions {
			if o := g.nodes[id]; o != nil {
				delete(o.throwingMethods, ref)
			}
		}
		for id := range m.annotations {
			if o := g.nodes[id]; o != nil {
				delete(o.annotatedMethods, ref)
			}
		}
		clear(m.exceptions)
		clear(m.annotations)
	}
	for ref := range t.throwingMethods {
		if m := g.method(ref); m != nil {
			delete(m.exceptions, t.id)
		}
	}
	for ref := range t.annotatedMethods {
		if m := g.method(ref); m != nil {
			delete(m.annotations, t.id)
		}
	}

	for _, s := range []idSet{
		t.annotations, t.superClasses, t.subClasses, t.realizedInterfaces,
		t.superInterfaces, t.subInterfaces, t.realizingClasses, t.annotatedTypes,
	} {
		clear(s)
	}
	clear(t.throwingMethods)
	clear(t.annotatedMethods)

	delete(g.nodes, t.id)
}
