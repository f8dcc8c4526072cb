package agentrpc

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/typecache/internal/classcache"
)

func TestBroadcaster_FansOut(t *testing.T) {
	cache := newTestCache(t)
	b := NewBroadcaster(cache.SessionID())
	cache.RegisterNodeChangeListener(b)

	_, first := b.Subscribe(8)
	_, second := b.Subscribe(8)
	assert.Equal(t, 2, b.Subscribers())

	_, err := cache.Modification().Merge(context.Background(), &classcache.TypeDescription{
		FQN:  "a.B",
		Kind: classcache.KindClass,
		Hash: "h1",
	})
	require.NoError(t, err)

	for _, ch := range []<-chan CacheEvent{first, second} {
		ev := <-ch
		assert.Equal(t, CacheEvent{
			Session: cache.SessionID().String(),
			Seq:     1,
			FQN:     "a.B",
			Kind:    "class",
			Type:    "NEW",
			Detail:  "INITIALIZED",
		}, ev)
	}
	assert.Zero(t, b.Dropped())
}

func TestBroadcaster_DropsOnFullBuffer(t *testing.T) {
	b := NewBroadcaster(uuid.New())
	id, ch := b.Subscribe(1)

	cache := newTestCache(t)
	cache.RegisterNodeChangeListener(b)
	for _, fqn := range []string{"a.A", "a.B", "a.C"} {
		_, err := cache.Modification().Merge(context.Background(), &classcache.TypeDescription{FQN: fqn, Kind: classcache.KindClass})
		require.NoError(t, err)
	}

	ev := <-ch
	assert.Equal(t, "a.A", ev.FQN)
	assert.Equal(t, int64(2), b.Dropped())

	b.Unsubscribe(id)
	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, b.Subscribers())

	// Unknown ids are ignored.
	b.Unsubscribe(id)
}

func TestSSE_WriteAndRead(t *testing.T) {
	rec := httptest.NewRecorder()
	sw, err := NewSSEWriter(rec)
	require.NoError(t, err)
	sw.Init()
	require.NoError(t, sw.WriteEvent(CacheEvent{Session: "s", Seq: 1, FQN: "a.B", Type: "NEW"}))
	require.NoError(t, sw.WriteEvent(CacheEvent{Session: "s", Seq: 2, Reference: "SUPERCLASS", Owner: "a.B", Referred: "a.A"}))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var got []CacheEvent
	for ev := range ReadEvents(context.Background(), io.NopCloser(rec.Body)) {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "a.B", got[0].FQN)
	assert.Equal(t, uint64(2), got[1].Seq)
	assert.Equal(t, "a.A", got[1].Referred)
}

func TestReadEvents_Framing(t *testing.T) {
	stream := strings.Join([]string{
		": keep-alive",
		"data: {\"session\":\"s\",",
		"data:\"seq\":1}",
		"",
		"event: ignored",
		"data: not json",
		"",
		"data: {\"session\":\"s\",\"seq\":3}",
	}, "\n")

	var got []CacheEvent
	for ev := range ReadEvents(context.Background(), io.NopCloser(strings.NewReader(stream))) {
		got = append(got, ev)
	}
	require.Len(t, got, 3)
	assert.NoError(t, got[0].Err)
	assert.Equal(t, uint64(1), got[0].Seq)
	assert.Error(t, got[1].Err)
	assert.Equal(t, uint64(3), got[2].Seq)
}
