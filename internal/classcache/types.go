package classcache

import (
	"slices"
	"strings"
)

// Kind identifies the variant of a type node.
type Kind string

const (
	KindClass      Kind = "class"
	KindInterface  Kind = "interface"
	KindAnnotation Kind = "annotation"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindClass, KindInterface, KindAnnotation:
		return true
	}
	return false
}

// ThrowableFQN is the root of every exception hierarchy.
const ThrowableFQN = "java.lang.Throwable"

// ConstructorName is the method name agents use for constructors.
const ConstructorName = "<init>"

// TypeID is the stable arena key of a type node. IDs are never reused.
type TypeID uint64

type idSet map[TypeID]struct{}

func (s idSet) add(id TypeID) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// MethodRef addresses a method by owner and signature key.
type MethodRef struct {
	Owner     TypeID
	Signature string
}

type refSet map[MethodRef]struct{}

// Type is a node of the type graph. The common header (FQN, kind, modifiers,
// hashes, initialized) is shared by all kinds; the edge sets are only
// populated for the kinds that carry them.
//
// Type values are owned by a ClassCache. Mutable state must only be read
// while holding the cache's read or write lock; FQN, Kind and ID are
// immutable and safe to read at any time.
type Type struct {
	id          TypeID
	g           *graph
	fqn         string
	kind        Kind
	modifiers   Modifiers
	hashes      map[string]struct{}
	initialized bool

	annotations idSet

	superClasses       idSet
	subClasses         idSet
	realizedInterfaces idSet
	throwingMethods    refSet

	superInterfaces  idSet
	subInterfaces    idSet
	realizingClasses idSet

	annotatedTypes   idSet
	annotatedMethods refSet

	methods     map[string]*Method
	methodOrder []string
}

// ID returns the arena key of the node.
func (t *Type) ID() TypeID { return t.id }

// FQN returns the fully qualified name.
func (t *Type) FQN() string { return t.fqn }

// Kind returns the node variant.
func (t *Type) Kind() Kind { return t.kind }

// String returns the kind followed by the FQN.
func (t *Type) String() string { return string(t.kind) + " " + t.fqn }

// IsClass reports whether the node is a class.
func (t *Type) IsClass() bool { return t.kind == KindClass }

// IsInterface reports whether the node is an interface.
func (t *Type) IsInterface() bool { return t.kind == KindInterface }

// IsAnnotation reports whether the node is an annotation type.
func (t *Type) IsAnnotation() bool { return t.kind == KindAnnotation }

// Modifiers returns the union of every merged modifier set.
func (t *Type) Modifiers() Modifiers { return t.modifiers }

// IsInitialized reports whether a full definition was ever merged.
func (t *Type) IsInitialized() bool { return t.initialized }

// Hashes returns the observed content hashes in sorted order.
func (t *Type) Hashes() []string {
	out := make([]string, 0, len(t.hashes))
	for h := range t.hashes {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// HasHash reports whether hash was observed for this type.
func (t *Type) HasHash(hash string) bool {
	_, ok := t.hashes[hash]
	return ok
}

// Attached reports whether the node is still part of its graph. Nodes
// detached by a kind replacement keep their header but lose every edge.
func (t *Type) Attached() bool {
	return t.g != nil && t.g.nodes[t.id] == t
}

// Annotations returns the annotation types on this type.
func (t *Type) Annotations() []*Type { return t.g.resolve(t.annotations) }

// SuperClasses returns the direct superclasses.
func (t *Type) SuperClasses() []*Type { return t.g.resolve(t.superClasses) }

// SubClasses returns the classes naming this one as superclass.
func (t *Type) SubClasses() []*Type { return t.g.resolve(t.subClasses) }

// RealizedInterfaces returns the interfaces this class realizes.
func (t *Type) RealizedInterfaces() []*Type { return t.g.resolve(t.realizedInterfaces) }

// SuperInterfaces returns the interfaces this interface extends.
func (t *Type) SuperInterfaces() []*Type { return t.g.resolve(t.superInterfaces) }

// SubInterfaces returns the interfaces extending this one.
func (t *Type) SubInterfaces() []*Type { return t.g.resolve(t.subInterfaces) }

// RealizingClasses returns the classes realizing this type.
func (t *Type) RealizingClasses() []*Type { return t.g.resolve(t.realizingClasses) }

// AnnotatedTypes returns the types carrying this annotation.
func (t *Type) AnnotatedTypes() []*Type { return t.g.resolve(t.annotatedTypes) }

// MethodsThrowingThisException returns the methods whose declared
// exceptions include this class.
func (t *Type) MethodsThrowingThisException() []*Method {
	return t.g.resolveMethods(t.throwingMethods)
}

// AnnotatedMethods returns the methods carrying this annotation.
func (t *Type) AnnotatedMethods() []*Method {
	return t.g.resolveMethods(t.annotatedMethods)
}

// Methods returns the owned methods in insertion order.
func (t *Type) Methods() []*Method {
	out := make([]*Method, 0, len(t.methodOrder))
	for _, sig := range t.methodOrder {
		out = append(out, t.methods[sig])
	}
	return out
}

// Method returns the method identified by name and parameters, or nil.
func (t *Type) Method(name string, parameters []string) *Method {
	return t.methods[signature(name, parameters)]
}

// HasAnnotation reports whether the type is directly annotated with fqn.
func (t *Type) HasAnnotation(fqn string) bool {
	return t.g.containsFQN(t.annotations, fqn)
}

// IsSubClassOf reports whether fqn appears anywhere in the superclass chain.
func (t *Type) IsSubClassOf(fqn string) bool {
	seen := make(map[TypeID]bool)
	var walk func(*Type) bool
	walk = func(c *Type) bool {
		for id := range c.superClasses {
			if seen[id] {
				continue
			}
			seen[id] = true
			s := t.g.nodes[id]
			if s == nil {
				continue
			}
			if s.fqn == fqn || walk(s) {
				return true
			}
		}
		return false
	}
	return walk(t)
}

// IsException reports whether the class extends java.lang.Throwable.
func (t *Type) IsException() bool {
	return t.kind == KindClass && (t.fqn == ThrowableFQN || t.IsSubClassOf(ThrowableFQN))
}

// Method is a member of a Class or Interface, identified within its owner by
// name and parameter types.
type Method struct {
	owner      *Type
	name       string
	parameters []string
	returnType string
	modifiers  Modifiers

	exceptions  idSet
	annotations idSet

	instrumentation *MethodInstrumentationConfig
}

// Name returns the method name.
func (m *Method) Name() string { return m.name }

// Owner returns the declaring type.
func (m *Method) Owner() *Type { return m.owner }

// ReturnType returns the declared return type, empty if unknown.
func (m *Method) ReturnType() string { return m.returnType }

// Modifiers returns the union of every merged modifier set.
func (m *Method) Modifiers() Modifiers { return m.modifiers }

// IsConstructor reports whether the method is a constructor.
func (m *Method) IsConstructor() bool { return m.name == ConstructorName }

// Parameters returns a copy of the ordered parameter types.
func (m *Method) Parameters() []string {
	return slices.Clone(m.parameters)
}

// Signature returns the identity key "name(p1,p2)".
func (m *Method) Signature() string {
	return signature(m.name, m.parameters)
}

func (m *Method) ref() MethodRef {
	return MethodRef{Owner: m.owner.id, Signature: m.Signature()}
}

// Exceptions returns the declared exception classes.
func (m *Method) Exceptions() []*Type { return m.owner.g.resolve(m.exceptions) }

// Annotations returns the annotation types on the method.
func (m *Method) Annotations() []*Type { return m.owner.g.resolve(m.annotations) }

// HasAnnotation reports whether the method is annotated with fqn.
func (m *Method) HasAnnotation(fqn string) bool {
	return m.owner.g.containsFQN(m.annotations, fqn)
}

// InstrumentationConfig returns the instrumentation point of the method, or
// nil when the method is not instrumented.
func (m *Method) InstrumentationConfig() *MethodInstrumentationConfig {
	return m.instrumentation
}

// SetInstrumentationConfig replaces the instrumentation point. Callers must
// hold the cache's write lock.
func (m *Method) SetInstrumentationConfig(cfg *MethodInstrumentationConfig) {
	m.instrumentation = cfg
}

// ClearInstrumentationConfig removes the instrumentation point and reports
// whether one was present.
func (m *Method) ClearInstrumentationConfig() bool {
	had := m.instrumentation != nil
	m.instrumentation = nil
	return had
}

func signature(name string, parameters []string) string {
	return name + "(" + strings.Join(parameters, ",") + ")"
}
