package agentrpc

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dusk-indust/typecache/internal/classcache"
)

var _ classcache.NodeChangeListener = (*Broadcaster)(nil)

// Broadcaster fans cache events out to stream subscribers. It runs as a
// cache listener under the write lock, so delivery never blocks: a
// subscriber whose buffer is full misses the event and the drop is counted.
type Broadcaster struct {
	session string
	seq     atomic.Uint64
	dropped atomic.Int64

	mu   sync.RWMutex
	subs map[uuid.UUID]chan CacheEvent
}

// NewBroadcaster creates a broadcaster stamping events with session.
func NewBroadcaster(session uuid.UUID) *Broadcaster {
	return &Broadcaster{
		session: session.String(),
		subs:    make(map[uuid.UUID]chan CacheEvent),
	}
}

// Subscribe registers a subscriber with the given buffer size.
func (b *Broadcaster) Subscribe(buffer int) (uuid.UUID, <-chan CacheEvent) {
	id := uuid.New()
	ch := make(chan CacheEvent, max(buffer, 1))
	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Subscribers returns the number of active subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped on full buffers.
func (b *Broadcaster) Dropped() int64 {
	return b.dropped.Load()
}

// InformNodeChange publishes a node event to every subscriber.
func (b *Broadcaster) InformNodeChange(ev classcache.NodeEvent) {
	b.publish(CacheEvent{
		FQN:    ev.Node.FQN(),
		Kind:   string(ev.Node.Kind()),
		Type:   string(ev.Type),
		Detail: string(ev.Detail),
	})
}

// InformReferenceChange publishes a reference event to every subscriber.
func (b *Broadcaster) InformReferenceChange(ev classcache.ReferenceEvent) {
	b.publish(CacheEvent{
		Reference: string(ev.Kind),
		Owner:     ev.Owner.FQN(),
		Referred:  ev.Referred.FQN(),
	})
}

func (b *Broadcaster) publish(e CacheEvent) {
	e.Session = b.session
	e.Seq = b.seq.Add(1)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}
