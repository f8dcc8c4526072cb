package classcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameIndexer_NodeEvents(t *testing.T) {
	idx, err := NewNameIndexer(0)
	require.NoError(t, err)
	g := newGraph()

	old := g.newType("a.X", KindInterface)
	idx.InformNodeChange(NodeEvent{Node: old, Type: NodeNew, Detail: DetailNotInitialized})
	assert.Same(t, old, idx.Lookup("a.X"))

	// Replacement: removal first, then creation.
	g.remove(old)
	idx.InformNodeChange(NodeEvent{Node: old, Type: NodeRemoved})
	assert.Nil(t, idx.Lookup("a.X"))

	replacement := g.newType("a.X", KindClass)
	idx.InformNodeChange(NodeEvent{Node: replacement, Type: NodeNew, Detail: DetailInitialized})
	assert.Same(t, replacement, idx.Lookup("a.X"))

	// A stale removal must not evict the current entry.
	idx.InformNodeChange(NodeEvent{Node: old, Type: NodeRemoved})
	assert.Same(t, replacement, idx.Lookup("a.X"))
	assert.Equal(t, 1, idx.Len())
}

func TestNameIndexer_FindByPattern(t *testing.T) {
	idx, err := NewNameIndexer(2)
	require.NoError(t, err)
	g := newGraph()
	for _, fqn := range []string{"a.b.Service", "a.b.ServiceImpl", "a.c.Repo", "x.Service"} {
		idx.InformNodeChange(NodeEvent{Node: g.newType(fqn, KindClass), Type: NodeNew})
	}

	assert.Equal(t, []string{"a.b.Service", "a.b.ServiceImpl"}, fqns(idx.FindByPattern("a.b.*")))
	assert.Equal(t, []string{"a.b.Service", "x.Service"}, fqns(idx.FindByPattern("*Service")))
	assert.Equal(t, []string{"a.c.Repo"}, fqns(idx.FindByPattern("a.c.Repo")))
	assert.Empty(t, idx.FindByPattern("a.c.repo"), "matching is case-sensitive")
	assert.Empty(t, idx.FindByPattern("a.b.Serv"), "patterns without wildcard match exactly")
	assert.Len(t, idx.FindAll(), 4)

	// Exercise eviction from the small pattern cache.
	for _, p := range []string{"a.*", "b.*", "c.*", "a.*"} {
		idx.FindByPattern(p)
	}
	assert.LessOrEqual(t, idx.patterns.Len(), 2)
}

func TestHashIndexer_NodeEvents(t *testing.T) {
	idx := NewHashIndexer()
	g := newGraph()

	t1 := g.newType("a.B", KindClass)
	t1.hashes["h1"] = struct{}{}
	idx.InformNodeChange(NodeEvent{Node: t1, Type: NodeNew, Detail: DetailInitialized})
	assert.Same(t, t1, idx.Lookup("h1"))

	t1.hashes["h2"] = struct{}{}
	idx.InformNodeChange(NodeEvent{Node: t1, Type: NodeChanged, Detail: DetailHashAdded})
	assert.Same(t, t1, idx.Lookup("h2"))
	assert.Equal(t, 2, idx.Len())

	idx.InformNodeChange(NodeEvent{Node: t1, Type: NodeChanged, Detail: DetailMethodChangedOrAdded})
	assert.Equal(t, 2, idx.Len())

	idx.InformNodeChange(NodeEvent{Node: t1, Type: NodeRemoved})
	assert.Nil(t, idx.Lookup("h1"))
	assert.Nil(t, idx.Lookup("h2"))
	assert.Zero(t, idx.Len())
}
