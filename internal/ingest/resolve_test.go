package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/typecache/internal/classcache"
	"github.com/dusk-indust/typecache/internal/typeparse"
)

func result(module string, types ...*classcache.TypeDescription) *typeparse.ParseResult {
	return &typeparse.ParseResult{Module: module, Types: types}
}

func declared(kind classcache.Kind, fqn string) *classcache.TypeDescription {
	return &classcache.TypeDescription{FQN: fqn, Kind: kind, Hash: "h-" + fqn}
}

func fqnsOf(refs []*classcache.TypeDescription) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.FQN)
	}
	return out
}

func TestResolver_RenamesAndMovesAcrossFiles(t *testing.T) {
	api := declared(classcache.KindInterface, "a.Api")
	impl := declared(classcache.KindClass, "b.Impl")
	impl.SuperClasses = []*classcache.TypeDescription{classcache.Ref(classcache.KindClass, "b.Api")}

	results := []*typeparse.ParseResult{result("a", api), result("b", impl)}
	changes := NewResolver(results, nil, nil).Apply(results)

	assert.Equal(t, 2, changes, "one rename and one move")
	assert.Empty(t, impl.SuperClasses)
	require.Len(t, impl.RealizedInterfaces, 1)
	assert.Equal(t, "a.Api", impl.RealizedInterfaces[0].FQN)
	assert.Equal(t, classcache.KindInterface, impl.RealizedInterfaces[0].Kind)
}

func TestResolver_KeepsUnknownAndAmbiguousNames(t *testing.T) {
	x := declared(classcache.KindClass, "x.Node")
	y := declared(classcache.KindClass, "y.Node")
	z := declared(classcache.KindClass, "z.Tree")
	z.SuperClasses = []*classcache.TypeDescription{
		classcache.Ref(classcache.KindClass, "z.Node"),
		classcache.Ref(classcache.KindClass, "z.Missing"),
		classcache.Ref(classcache.KindClass, "Error"),
	}

	results := []*typeparse.ParseResult{result("x", x), result("y", y), result("z", z)}
	changes := NewResolver(results, nil, nil).Apply(results)

	assert.Zero(t, changes)
	assert.Equal(t, []string{"z.Node", "z.Missing", "Error"}, fqnsOf(z.SuperClasses))
}

func TestResolver_UsesCacheKinds(t *testing.T) {
	cache, err := classcache.NewClassCache()
	require.NoError(t, err)
	_, err = cache.Modification().Merge(context.Background(), declared(classcache.KindAnnotation, "c.Marker"))
	require.NoError(t, err)

	cls := declared(classcache.KindClass, "c.X")
	cls.Annotations = []*classcache.TypeDescription{classcache.Ref(classcache.KindAnnotation, "c.Marker")}
	cls.SuperClasses = []*classcache.TypeDescription{classcache.Ref(classcache.KindClass, "c.Marker")}
	cls.Methods = []classcache.MethodDescription{{
		Name:       "run",
		Exceptions: []*classcache.TypeDescription{classcache.Ref(classcache.KindClass, "c.Marker")},
	}}

	results := []*typeparse.ParseResult{result("c", cls)}
	changes := NewResolver(results, cache.Lookup(), nil).Apply(results)

	assert.Equal(t, 2, changes, "superclass and exception dropped")
	assert.Empty(t, cls.SuperClasses)
	assert.Empty(t, cls.Methods[0].Exceptions)
	assert.Equal(t, []string{"c.Marker"}, fqnsOf(cls.Annotations))
}

func TestResolver_ExtensionTakesDeclaredKind(t *testing.T) {
	trait := declared(classcache.KindInterface, "m.Entity")
	ext := &classcache.TypeDescription{
		FQN:     "m.Entity",
		Kind:    classcache.KindClass,
		Methods: []classcache.MethodDescription{{Name: "id"}},
	}

	results := []*typeparse.ParseResult{result("m", trait), result("n", ext)}
	changes := NewResolver(results, nil, nil).Apply(results)

	assert.Equal(t, 1, changes)
	assert.Equal(t, classcache.KindInterface, ext.Kind)
}

func TestResolver_InterfaceDropsClassSupers(t *testing.T) {
	base := declared(classcache.KindClass, "p.Base")
	iface := declared(classcache.KindInterface, "p.Api")
	iface.SuperInterfaces = []*classcache.TypeDescription{
		classcache.Ref(classcache.KindInterface, "p.Base"),
		classcache.Ref(classcache.KindInterface, "p.Other"),
	}

	results := []*typeparse.ParseResult{result("p", base, iface)}
	NewResolver(results, nil, nil).Apply(results)

	assert.Equal(t, []string{"p.Other"}, fqnsOf(iface.SuperInterfaces))
}
