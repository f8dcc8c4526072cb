// Package assignment turns sensor assignments into instrumentation points on
// the class cache: it narrows the candidate classes of an assignment, matches
// classes and methods against it, and applies method and exception sensors.
package assignment

import (
	"slices"

	"github.com/dusk-indust/typecache/internal/classcache"
)

// Filter matches classes and methods against a SensorAssignment. All
// methods read graph state and must be called under a cache lock.
type Filter struct{}

// MatchesClass reports whether class satisfies the class part of sa: the
// name rule (direct, superclass or interface) and the optional annotation.
func (f Filter) MatchesClass(sa *classcache.SensorAssignment, class *classcache.Type) bool {
	return f.matchesClass(sa, class, true)
}

// matchesClass skips the annotation rule when checkAnnotation is false; method
// sensors check it per method instead.
func (Filter) matchesClass(sa *classcache.SensorAssignment, class *classcache.Type, checkAnnotation bool) bool {
	if sa == nil || class == nil || !class.IsClass() {
		return false
	}
	if checkAnnotation && sa.Annotation != "" && !matchesAnnotation(classcache.CompilePattern(sa.Annotation), class) {
		return false
	}

	name := classcache.CompilePattern(sa.ClassName)
	switch {
	case sa.Superclass:
		return anySuperClass(class, func(s *classcache.Type) bool { return name.Match(s.FQN()) })
	case sa.Interface:
		return anyInterface(class, func(i *classcache.Type) bool { return name.Match(i.FQN()) })
	default:
		return name.Match(class.FQN())
	}
}

// MatchesMethod reports whether m satisfies the method part of sa. An empty
// MethodName matches every non-constructor; nil Parameters match any
// parameter list. An annotation rule is met by the method itself or by the
// class hierarchy of its owner.
func (Filter) MatchesMethod(sa *classcache.SensorAssignment, m *classcache.Method) bool {
	if sa == nil || m == nil {
		return false
	}
	if sa.Constructor != m.IsConstructor() {
		return false
	}
	if !sa.Constructor && sa.MethodName != "" && !classcache.CompilePattern(sa.MethodName).Match(m.Name()) {
		return false
	}
	if sa.Parameters != nil && !matchesParameters(sa.Parameters, m.Parameters()) {
		return false
	}
	if !matchesVisibility(sa, m.Modifiers()) {
		return false
	}
	if sa.Annotation == "" {
		return true
	}
	p := classcache.CompilePattern(sa.Annotation)
	for _, a := range m.Annotations() {
		if p.Match(a.FQN()) {
			return true
		}
	}
	return matchesAnnotation(p, m.Owner())
}

func matchesParameters(want, got []string) bool {
	return slices.EqualFunc(want, got, func(w, g string) bool {
		return classcache.CompilePattern(w).Match(g)
	})
}

func matchesVisibility(sa *classcache.SensorAssignment, mod classcache.Modifiers) bool {
	if !sa.Public && !sa.Protected && !sa.Private && !sa.Default {
		return true
	}
	return sa.Public && mod.IsPublic() ||
		sa.Protected && mod.IsProtected() ||
		sa.Private && mod.IsPrivate() ||
		sa.Default && mod.IsPackagePrivate()
}

// matchesAnnotation checks the class, its superclasses, and every interface
// they realize for an annotation matching p.
func matchesAnnotation(p *classcache.Pattern, class *classcache.Type) bool {
	annotated := func(t *classcache.Type) bool {
		for _, a := range t.Annotations() {
			if p.Match(a.FQN()) {
				return true
			}
		}
		return false
	}
	if annotated(class) || anySuperClass(class, annotated) {
		return true
	}
	return anyInterface(class, annotated)
}

// anySuperClass walks the superclass chain of class, excluding class itself.
func anySuperClass(class *classcache.Type, fn func(*classcache.Type) bool) bool {
	seen := map[classcache.TypeID]bool{class.ID(): true}
	queue := class.SuperClasses()
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if seen[s.ID()] {
			continue
		}
		seen[s.ID()] = true
		if fn(s) {
			return true
		}
		queue = append(queue, s.SuperClasses()...)
	}
	return false
}

// anyInterface visits every interface realized by class or one of its
// superclasses, together with all of their super-interfaces.
func anyInterface(class *classcache.Type, fn func(*classcache.Type) bool) bool {
	seen := make(map[classcache.TypeID]bool)
	var queue []*classcache.Type
	owners := []*classcache.Type{class}
	anySuperClass(class, func(s *classcache.Type) bool {
		owners = append(owners, s)
		return false
	})
	for _, o := range owners {
		queue = append(queue, o.RealizedInterfaces()...)
	}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		if seen[i.ID()] {
			continue
		}
		seen[i.ID()] = true
		if fn(i) {
			return true
		}
		queue = append(queue, i.SuperInterfaces()...)
	}
	return false
}
