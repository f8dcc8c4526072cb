package classcache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultPatternCacheSize bounds the number of compiled patterns kept by a
// NameIndexer.
const DefaultPatternCacheSize = 256

var (
	_ NodeChangeListener = (*NameIndexer)(nil)
	_ NodeChangeListener = (*HashIndexer)(nil)
)

// NameIndexer maps FQNs to nodes and answers wildcard searches. Its map is
// only touched under the cache lock; the pattern cache is safe for the
// concurrent readers the read lock admits.
type NameIndexer struct {
	byFQN    map[string]*Type
	patterns *lru.Cache[string, *Pattern]
}

// NewNameIndexer creates an empty index. A non-positive size selects
// DefaultPatternCacheSize.
func NewNameIndexer(patternCacheSize int) (*NameIndexer, error) {
	if patternCacheSize <= 0 {
		patternCacheSize = DefaultPatternCacheSize
	}
	patterns, err := lru.New[string, *Pattern](patternCacheSize)
	if err != nil {
		return nil, err
	}
	return &NameIndexer{
		byFQN:    make(map[string]*Type),
		patterns: patterns,
	}, nil
}

// Lookup returns the node for fqn, or nil.
func (n *NameIndexer) Lookup(fqn string) *Type {
	return n.byFQN[fqn]
}

// FindByPattern returns all nodes whose FQN matches the wildcard pattern,
// sorted by FQN.
func (n *NameIndexer) FindByPattern(raw string) []*Type {
	p := n.compile(raw)
	if p.Exact() {
		if t := n.byFQN[raw]; t != nil {
			return []*Type{t}
		}
		return nil
	}
	var out []*Type
	for fqn, t := range n.byFQN {
		if p.Match(fqn) {
			out = append(out, t)
		}
	}
	sortByFQN(out)
	return out
}

// FindAll returns every indexed node sorted by FQN.
func (n *NameIndexer) FindAll() []*Type {
	out := make([]*Type, 0, len(n.byFQN))
	for _, t := range n.byFQN {
		out = append(out, t)
	}
	sortByFQN(out)
	return out
}

// Len returns the number of indexed nodes.
func (n *NameIndexer) Len() int {
	return len(n.byFQN)
}

func (n *NameIndexer) compile(raw string) *Pattern {
	if p, ok := n.patterns.Get(raw); ok {
		return p
	}
	p := CompilePattern(raw)
	n.patterns.Add(raw, p)
	return p
}

// InformNodeChange adds new nodes and drops removed ones.
func (n *NameIndexer) InformNodeChange(ev NodeEvent) {
	switch ev.Type {
	case NodeNew:
		n.byFQN[ev.Node.FQN()] = ev.Node
	case NodeRemoved:
		if n.byFQN[ev.Node.FQN()] == ev.Node {
			delete(n.byFQN, ev.Node.FQN())
		}
	}
}

// InformReferenceChange is a no-op; references do not affect names.
func (n *NameIndexer) InformReferenceChange(ReferenceEvent) {}

// HashIndexer maps content hashes to nodes. Several hashes may point at the
// same node.
type HashIndexer struct {
	byHash map[string]*Type
}

// NewHashIndexer creates an empty index.
func NewHashIndexer() *HashIndexer {
	return &HashIndexer{byHash: make(map[string]*Type)}
}

// Lookup returns the node that reported hash, or nil.
func (h *HashIndexer) Lookup(hash string) *Type {
	return h.byHash[hash]
}

// Len returns the number of indexed hashes.
func (h *HashIndexer) Len() int {
	return len(h.byHash)
}

// InformNodeChange indexes the hashes of new and changed nodes and drops
// those of removed ones.
func (h *HashIndexer) InformNodeChange(ev NodeEvent) {
	switch {
	case ev.Type == NodeRemoved:
		for hash := range ev.Node.hashes {
			if h.byHash[hash] == ev.Node {
				delete(h.byHash, hash)
			}
		}
	case ev.Type == NodeNew,
		ev.Detail == DetailInitialized,
		ev.Detail == DetailHashAdded:
		for hash := range ev.Node.hashes {
			h.byHash[hash] = ev.Node
		}
	}
}

// InformReferenceChange is a no-op; references do not affect hashes.
func (h *HashIndexer) InformReferenceChange(ReferenceEvent) {}
