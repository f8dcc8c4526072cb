package classcache

// LookupService answers read-only queries. Every call takes the cache's read
// lock for its duration, so it must not be used from inside a write-locked
// section. A query that matches nothing returns nil.
type LookupService struct {
	cache *ClassCache
}

// FindByFQN returns the node with the given FQN, or nil.
func (l *LookupService) FindByFQN(fqn string) *Type {
	return readLocked(l.cache, func() *Type {
		return l.cache.names.Lookup(fqn)
	})
}

// FindByHash returns the node that reported hash, or nil.
func (l *LookupService) FindByHash(hash string) *Type {
	return readLocked(l.cache, func() *Type {
		return l.cache.hashes.Lookup(hash)
	})
}

// FindByPattern returns the nodes whose FQN matches pattern, optionally only
// the initialized ones.
func (l *LookupService) FindByPattern(pattern string, onlyInitialized bool) []*Type {
	return l.find(pattern, onlyInitialized, nil)
}

// FindClassTypesByPattern is FindByPattern restricted to classes.
func (l *LookupService) FindClassTypesByPattern(pattern string, onlyInitialized bool) []*Type {
	return l.find(pattern, onlyInitialized, (*Type).IsClass)
}

// FindInterfaceTypesByPattern is FindByPattern restricted to interfaces.
func (l *LookupService) FindInterfaceTypesByPattern(pattern string, onlyInitialized bool) []*Type {
	return l.find(pattern, onlyInitialized, (*Type).IsInterface)
}

// FindAnnotationTypesByPattern is FindByPattern restricted to annotation types.
func (l *LookupService) FindAnnotationTypesByPattern(pattern string, onlyInitialized bool) []*Type {
	return l.find(pattern, onlyInitialized, (*Type).IsAnnotation)
}

// FindExceptionTypesByPattern returns matching classes that extend
// java.lang.Throwable.
func (l *LookupService) FindExceptionTypesByPattern(pattern string, onlyInitialized bool) []*Type {
	return l.find(pattern, onlyInitialized, (*Type).IsException)
}

// FindAll returns every node in the graph sorted by FQN.
func (l *LookupService) FindAll() []*Type {
	return readLocked(l.cache, func() []*Type {
		all := l.cache.names.FindAll()
		if len(all) == 0 {
			return nil
		}
		return all
	})
}

// find applies the kind filter before the initialized filter.
func (l *LookupService) find(pattern string, onlyInitialized bool, keep func(*Type) bool) []*Type {
	return readLocked(l.cache, func() []*Type {
		var out []*Type
		for _, t := range l.cache.names.FindByPattern(pattern) {
			if keep != nil && !keep(t) {
				continue
			}
			if onlyInitialized && !t.initialized {
				continue
			}
			out = append(out, t)
		}
		return out
	})
}
