package classcache

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, opts ...Option) *ClassCache {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	c, err := NewClassCache(opts...)
	require.NoError(t, err)
	return c
}

func mustMerge(t *testing.T, c *ClassCache, desc *TypeDescription) Events {
	t.Helper()
	events, err := c.Modification().Merge(context.Background(), desc)
	require.NoError(t, err)
	return events
}

func classDesc(fqn, hash string, mods Modifiers) *TypeDescription {
	return &TypeDescription{FQN: fqn, Kind: KindClass, Hash: hash, Modifiers: mods}
}

func interfaceDesc(fqn, hash string, mods Modifiers) *TypeDescription {
	return &TypeDescription{FQN: fqn, Kind: KindInterface, Hash: hash, Modifiers: mods}
}

func annotationDesc(fqn, hash string) *TypeDescription {
	return &TypeDescription{FQN: fqn, Kind: KindAnnotation, Hash: hash, Modifiers: ModPublic}
}

func fqns(types []*Type) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.FQN()
	}
	return out
}

// recordingListener captures every dispatched event as a string.
type recordingListener struct {
	seen []string
}

func (r *recordingListener) InformNodeChange(ev NodeEvent) {
	r.seen = append(r.seen, ev.String())
}

func (r *recordingListener) InformReferenceChange(ev ReferenceEvent) {
	r.seen = append(r.seen, ev.String())
}
