package assignment

import (
	"slices"
	"strings"

	"github.com/dusk-indust/typecache/internal/classcache"
)

var _ classcache.SearchNarrower = Narrower{}

// Narrower computes the initialized classes a sensor assignment can apply
// to by walking the graph outward from the types its rule names. The result
// is a superset of what Filter accepts; appliers still filter each class.
type Narrower struct{}

// Narrow implements classcache.SearchNarrower. An annotation rule takes
// precedence over the name rule since the class name is then usually '*'.
func (Narrower) Narrow(cache *classcache.ClassCache, sa *classcache.SensorAssignment) []*classcache.Type {
	lookup := cache.Lookup()
	switch {
	case sa.Annotation != "":
		return walk(cache, lookup.FindAnnotationTypesByPattern(sa.Annotation, false), annotatedClasses)
	case sa.Interface:
		return walk(cache, lookup.FindInterfaceTypesByPattern(sa.ClassName, false), realizingClasses)
	case sa.Superclass:
		return walk(cache, lookup.FindClassTypesByPattern(sa.ClassName, false), subClasses)
	default:
		return lookup.FindClassTypesByPattern(sa.ClassName, true)
	}
}

// walk expands roots under the read lock and keeps the initialized classes.
// Roots come from the lookup service, which takes its own read lock, so they
// are resolved before walk locks.
func walk(cache *classcache.ClassCache, roots []*classcache.Type, expand func(*classcache.Type, *collector)) []*classcache.Type {
	if len(roots) == 0 {
		return nil
	}
	var out []*classcache.Type
	_ = cache.ExecuteWithReadLock(func() error {
		c := &collector{seen: make(map[classcache.TypeID]bool)}
		for _, r := range roots {
			expand(r, c)
		}
		for _, t := range c.found {
			if t.IsClass() && t.IsInitialized() {
				out = append(out, t)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *classcache.Type) int { return strings.Compare(a.FQN(), b.FQN()) })
	return out
}

type collector struct {
	seen  map[classcache.TypeID]bool
	found []*classcache.Type
}

// addWithSubClasses records class and every transitive subclass.
func (c *collector) addWithSubClasses(class *classcache.Type) {
	if c.seen[class.ID()] {
		return
	}
	c.seen[class.ID()] = true
	c.found = append(c.found, class)
	for _, s := range class.SubClasses() {
		c.addWithSubClasses(s)
	}
}

func subClasses(root *classcache.Type, c *collector) {
	for _, s := range root.SubClasses() {
		c.addWithSubClasses(s)
	}
}

// realizingClasses collects the classes realizing root or any of its
// sub-interfaces, together with their subclasses.
func realizingClasses(root *classcache.Type, c *collector) {
	visited := make(map[classcache.TypeID]bool)
	var visit func(*classcache.Type)
	visit = func(i *classcache.Type) {
		if visited[i.ID()] {
			return
		}
		visited[i.ID()] = true
		for _, class := range i.RealizingClasses() {
			c.addWithSubClasses(class)
		}
		for _, sub := range i.SubInterfaces() {
			visit(sub)
		}
	}
	visit(root)
}

// annotatedClasses collects classes annotated with root directly, through a
// superclass, through a realized interface, or through one of their methods.
func annotatedClasses(root *classcache.Type, c *collector) {
	for _, t := range root.AnnotatedTypes() {
		switch {
		case t.IsClass():
			c.addWithSubClasses(t)
		case t.IsInterface():
			realizingClasses(t, c)
		}
	}
	for _, m := range root.AnnotatedMethods() {
		if owner := m.Owner(); owner.IsClass() {
			c.addWithSubClasses(owner)
		}
	}
}
