package assignment

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/typecache/internal/classcache"
)

func newCache(t *testing.T, opts ...classcache.Option) *classcache.ClassCache {
	t.Helper()
	opts = append([]classcache.Option{classcache.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	c, err := classcache.NewClassCache(opts...)
	require.NoError(t, err)
	return c
}

func merge(t *testing.T, c *classcache.ClassCache, descs ...*classcache.TypeDescription) {
	t.Helper()
	for _, d := range descs {
		_, err := c.Modification().Merge(context.Background(), d)
		require.NoError(t, err)
	}
}

func fqns(types []*classcache.Type) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.FQN()
	}
	return out
}

func ref(kind classcache.Kind, fqn string) []*classcache.TypeDescription {
	return []*classcache.TypeDescription{classcache.Ref(kind, fqn)}
}

// seedHierarchy builds:
//
//	a.Api (interface, @a.Marker) <- a.SubApi
//	a.Base implements a.Api <- a.Impl
//	a.Other implements a.SubApi
//	a.Parent (stub) <- a.Child <- a.GrandChild
//	a.Tagged (@a.Marker) <- a.TaggedChild
//	a.Plain with method handle() @a.Traced
func seedHierarchy(t *testing.T, opts ...classcache.Option) *classcache.ClassCache {
	t.Helper()
	c := newCache(t, opts...)
	pub := classcache.ModPublic
	merge(t, c,
		&classcache.TypeDescription{FQN: "a.Api", Kind: classcache.KindInterface, Hash: "h-api", Modifiers: pub,
			Annotations: ref(classcache.KindAnnotation, "a.Marker")},
		&classcache.TypeDescription{FQN: "a.SubApi", Kind: classcache.KindInterface, Hash: "h-subapi", Modifiers: pub,
			SuperInterfaces: ref(classcache.KindInterface, "a.Api")},
		&classcache.TypeDescription{FQN: "a.Base", Kind: classcache.KindClass, Hash: "h-base", Modifiers: pub,
			RealizedInterfaces: ref(classcache.KindInterface, "a.Api"),
			Methods: []classcache.MethodDescription{
				{Name: "run", ReturnType: "void", Modifiers: pub},
			}},
		&classcache.TypeDescription{FQN: "a.Impl", Kind: classcache.KindClass, Hash: "h-impl", Modifiers: pub,
			SuperClasses: ref(classcache.KindClass, "a.Base"),
			Methods: []classcache.MethodDescription{
				{Name: classcache.ConstructorName, Modifiers: pub},
				{Name: "run", ReturnType: "void", Modifiers: pub},
				{Name: "run", Parameters: []string{"int"}, ReturnType: "void", Modifiers: classcache.ModPrivate},
				{Name: "helper", ReturnType: "int"},
				{Name: "get", Parameters: []string{"java.lang.String"}, ReturnType: "java.lang.Object", Modifiers: classcache.ModProtected},
			}},
		&classcache.TypeDescription{FQN: "a.Other", Kind: classcache.KindClass, Hash: "h-other", Modifiers: pub,
			RealizedInterfaces: ref(classcache.KindInterface, "a.SubApi")},
		&classcache.TypeDescription{FQN: "a.Child", Kind: classcache.KindClass, Hash: "h-child", Modifiers: pub,
			SuperClasses: ref(classcache.KindClass, "a.Parent")},
		&classcache.TypeDescription{FQN: "a.GrandChild", Kind: classcache.KindClass, Hash: "h-grandchild", Modifiers: pub,
			SuperClasses: ref(classcache.KindClass, "a.Child")},
		&classcache.TypeDescription{FQN: "a.Tagged", Kind: classcache.KindClass, Hash: "h-tagged", Modifiers: pub,
			Annotations: ref(classcache.KindAnnotation, "a.Marker")},
		&classcache.TypeDescription{FQN: "a.TaggedChild", Kind: classcache.KindClass, Hash: "h-taggedchild", Modifiers: pub,
			SuperClasses: ref(classcache.KindClass, "a.Tagged")},
		&classcache.TypeDescription{FQN: "a.Plain", Kind: classcache.KindClass, Hash: "h-plain", Modifiers: pub,
			Methods: []classcache.MethodDescription{
				{Name: "handle", ReturnType: "void", Modifiers: pub, Annotations: ref(classcache.KindAnnotation, "a.Traced")},
			}},
	)
	return c
}

// seedExceptions adds a small Throwable hierarchy with constructors.
func seedExceptions(t *testing.T, c *classcache.ClassCache) {
	t.Helper()
	pub := classcache.ModPublic
	merge(t, c,
		&classcache.TypeDescription{FQN: classcache.ThrowableFQN, Kind: classcache.KindClass, Hash: "h-throwable", Modifiers: pub},
		&classcache.TypeDescription{FQN: "java.lang.Exception", Kind: classcache.KindClass, Hash: "h-exception", Modifiers: pub,
			SuperClasses: ref(classcache.KindClass, classcache.ThrowableFQN)},
		&classcache.TypeDescription{FQN: "a.MyError", Kind: classcache.KindClass, Hash: "h-myerror", Modifiers: pub,
			SuperClasses: ref(classcache.KindClass, "java.lang.Exception"),
			Methods: []classcache.MethodDescription{
				{Name: classcache.ConstructorName, Modifiers: pub},
				{Name: classcache.ConstructorName, Parameters: []string{"java.lang.String"}, Modifiers: pub},
				{Name: "getMessage", ReturnType: "java.lang.String", Modifiers: pub},
			}},
	)
}

// underReadLock runs fn while holding the cache read lock, as the filter
// requires.
func underReadLock(t *testing.T, c *classcache.ClassCache, fn func()) {
	t.Helper()
	require.NoError(t, c.ExecuteWithReadLock(func() error {
		fn()
		return nil
	}))
}
