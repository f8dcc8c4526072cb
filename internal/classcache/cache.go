package classcache

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ClassCache owns the type graph, its indices and the single read/write lock
// that guards every access to them. One instance lives per server session and
// is handed to every collaborator that needs it.
//
// The lock is not re-entrant: code running inside ExecuteWithReadLock must not
// call ExecuteWithWriteLock, and neither may nest itself.
type ClassCache struct {
	mu sync.RWMutex

	graph  *graph
	names  *NameIndexer
	hashes *HashIndexer

	listenersMu sync.RWMutex
	listeners   []NodeChangeListener

	lookup          *LookupService
	modification    *ModificationService
	instrumentation *InstrumentationService

	logger  *slog.Logger
	session uuid.UUID

	readLocks  atomic.Int64
	writeLocks atomic.Int64
}

// LockStats counts lock acquisitions since the cache was created.
type LockStats struct {
	ReadLocks  int64
	WriteLocks int64
}

// Option configures a ClassCache.
type Option func(*options)

type options struct {
	logger           *slog.Logger
	patternCacheSize int
	narrower         SearchNarrower
}

// WithLogger sets the logger used by the cache and its services.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithPatternCacheSize bounds the compiled wildcard pattern cache.
func WithPatternCacheSize(n int) Option {
	return func(o *options) {
		o.patternCacheSize = n
	}
}

// WithSearchNarrower sets the collaborator that restricts instrumentation
// candidates per sensor assignment. Without one every applier scans the
// whole graph.
func WithSearchNarrower(n SearchNarrower) Option {
	return func(o *options) {
		o.narrower = n
	}
}

// NewClassCache returns an empty cache with the name and hash indices
// registered as listeners.
func NewClassCache(opts ...Option) (*ClassCache, error) {
	o := options{patternCacheSize: DefaultPatternCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	names, err := NewNameIndexer(o.patternCacheSize)
	if err != nil {
		return nil, err
	}

	session := uuid.New()
	c := &ClassCache{
		graph:   newGraph(),
		names:   names,
		hashes:  NewHashIndexer(),
		logger:  o.logger.With("component", "classcache", "session", session.String()),
		session: session,
	}
	c.RegisterNodeChangeListener(c.names)
	c.RegisterNodeChangeListener(c.hashes)

	c.lookup = &LookupService{cache: c}
	c.modification = &ModificationService{cache: c, logger: c.logger}
	c.instrumentation = &InstrumentationService{cache: c, narrower: o.narrower, logger: c.logger}
	return c, nil
}

// SessionID identifies this cache instance in logs and on the wire.
func (c *ClassCache) SessionID() uuid.UUID {
	return c.session
}

// Logger returns the cache's logger.
func (c *ClassCache) Logger() *slog.Logger {
	return c.logger
}

// Lookup returns the read-side service.
func (c *ClassCache) Lookup() *LookupService { return c.lookup }

// Modification returns the merge service.
func (c *ClassCache) Modification() *ModificationService { return c.modification }

// Instrumentation returns the instrumentation service.
func (c *ClassCache) Instrumentation() *InstrumentationService { return c.instrumentation }

// ExecuteWithReadLock runs op while holding the read lock.
func (c *ClassCache) ExecuteWithReadLock(op func() error) error {
	start := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.readLocks.Add(1)
	recordLockAcquired("read", time.Since(start))
	return op()
}

// ExecuteWithWriteLock runs op while holding the write lock.
func (c *ClassCache) ExecuteWithWriteLock(op func() error) error {
	start := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeLocks.Add(1)
	recordLockAcquired("write", time.Since(start))
	return op()
}

// LockStats returns the lock acquisition counters.
func (c *ClassCache) LockStats() LockStats {
	return LockStats{
		ReadLocks:  c.readLocks.Load(),
		WriteLocks: c.writeLocks.Load(),
	}
}

// RegisterNodeChangeListener subscribes l to node and reference events.
// Listeners are called in registration order.
func (c *ClassCache) RegisterNodeChangeListener(l NodeChangeListener) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, l)
}

// InformNodeChange dispatches ev to every listener. Callers hold the write
// lock.
func (c *ClassCache) InformNodeChange(ev NodeEvent) {
	c.listenersMu.RLock()
	defer c.listenersMu.RUnlock()
	for _, l := range c.listeners {
		l.InformNodeChange(ev)
	}
}

// InformReferenceChange dispatches ev to every listener. Callers hold the
// write lock.
func (c *ClassCache) InformReferenceChange(ev ReferenceEvent) {
	c.listenersMu.RLock()
	defer c.listenersMu.RUnlock()
	for _, l := range c.listeners {
		l.InformReferenceChange(ev)
	}
}

// Len returns the number of nodes in the graph.
func (c *ClassCache) Len() int {
	var n int
	_ = c.ExecuteWithReadLock(func() error {
		n = c.graph.len()
		return nil
	})
	return n
}

// readLocked runs fn under the read lock and returns its result.
func readLocked[T any](c *ClassCache, fn func() T) T {
	var out T
	_ = c.ExecuteWithReadLock(func() error {
		out = fn()
		return nil
	})
	return out
}
