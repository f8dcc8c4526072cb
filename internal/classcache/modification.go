package classcache

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// ModificationService merges type descriptions into the graph.
type ModificationService struct {
	cache  *ClassCache
	logger *slog.Logger
}

// Merge folds desc into the graph under the write lock and returns the events
// it produced, in emission order. Listeners have already seen every event by
// the time Merge returns.
//
// Invalid input fails with a *ModificationError before the lock is taken.
// Only one hop of reference information is accepted: the descriptions nested
// in desc's reference lists contribute their FQN and nothing else.
func (s *ModificationService) Merge(ctx context.Context, desc *TypeDescription) (Events, error) {
	if desc == nil {
		return nil, &ModificationError{Reason: "type description is nil"}
	}
	if err := desc.validate(); err != nil {
		return nil, err
	}

	ctx, span := startOperationSpan(ctx, "Merge")
	defer span.End()
	start := time.Now()

	m := &merger{cache: s.cache, g: s.cache.graph, logger: s.logger.With("fqn", desc.FQN)}
	var size int
	err := s.cache.ExecuteWithWriteLock(func() error {
		m.merge(desc)
		size = s.cache.graph.len()
		return nil
	})

	span.SetAttributes(
		attribute.String("classcache.fqn", desc.FQN),
		attribute.Int("classcache.events", len(m.events)),
	)
	recordMergeMetrics(ctx, time.Since(start), len(m.events), err == nil)
	recordGraphSize(ctx, size)
	return m.events, err
}

// merger carries the state of one Merge call. All methods run under the
// write lock.
type merger struct {
	cache  *ClassCache
	g      *graph
	logger *slog.Logger
	events Events
}

func (m *merger) emitNode(t *Type, typ NodeEventType, detail NodeEventDetail) {
	ev := NodeEvent{Node: t, Type: typ, Detail: detail}
	m.events = append(m.events, Event{Node: &ev})
	m.cache.InformNodeChange(ev)
}

func (m *merger) emitReference(owner, referred *Type, kind ReferenceKind) {
	ev := ReferenceEvent{Owner: owner, Referred: referred, Kind: kind}
	m.events = append(m.events, Event{Reference: &ev})
	m.cache.InformReferenceChange(ev)
}

func (m *merger) merge(desc *TypeDescription) {
	stored := m.cache.names.Lookup(desc.FQN)
	if stored != nil && stored.kind != desc.Kind {
		m.logger.Info("type kind changed, replacing node",
			"old_kind", stored.kind, "new_kind", desc.Kind)
		m.remove(stored)
		stored = nil
	}

	m.dropBackReferences(desc)

	existed := stored != nil
	if existed {
		m.mergeHeader(stored, desc)
	} else {
		stored = m.create(desc)
	}
	m.mergeReferences(stored, desc, existed)
}

func (m *merger) create(desc *TypeDescription) *Type {
	t := m.g.newType(desc.FQN, desc.Kind)
	if !desc.Initialized() {
		m.emitNode(t, NodeNew, DetailNotInitialized)
		return t
	}
	t.modifiers = desc.Modifiers
	t.hashes[desc.Hash] = struct{}{}
	t.initialized = true
	m.emitNode(t, NodeNew, DetailInitialized)
	return t
}

func (m *merger) mergeHeader(stored *Type, desc *TypeDescription) {
	if !desc.Initialized() {
		return
	}
	if !stored.initialized {
		stored.modifiers = stored.modifiers.Union(desc.Modifiers)
		stored.hashes[desc.Hash] = struct{}{}
		stored.initialized = true
		m.emitNode(stored, NodeChanged, DetailInitialized)
		return
	}

	merged := stored.modifiers.Union(desc.Modifiers)
	widened := merged != stored.modifiers
	stored.modifiers = merged
	if stored.HasHash(desc.Hash) {
		return
	}
	stored.hashes[desc.Hash] = struct{}{}
	m.emitNode(stored, NodeChanged, DetailHashAdded)
	if widened {
		m.emitNode(stored, NodeChanged, DetailModifiersChanged)
	}
}

// remove detaches t from the graph and announces it.
func (m *merger) remove(t *Type) {
	m.g.remove(t)
	m.emitNode(t, NodeRemoved, "")
}

func (m *merger) dropBackReferences(desc *TypeDescription) {
	fields := []struct {
		name  string
		count int
	}{
		{"subClasses", len(desc.SubClasses)},
		{"subInterfaces", len(desc.SubInterfaces)},
		{"realizingClasses", len(desc.RealizingClasses)},
		{"annotatedTypes", len(desc.AnnotatedTypes)},
		{"throwingMethods", len(desc.ThrowingMethods)},
	}
	for _, f := range fields {
		if f.count > 0 {
			m.logger.Warn("dropping back-reference input, back-references are derived only",
				"field", f.name, "count", f.count)
		}
	}
}

// mergeReferences walks the forward references of desc in a fixed order:
// annotations, methods, superclasses, realized interfaces, super-interfaces.
func (m *merger) mergeReferences(t *Type, desc *TypeDescription, existed bool) {
	for _, ref := range desc.Annotations {
		if t.g.containsFQN(t.annotations, ref.FQN) {
			continue
		}
		if a := m.resolve(t, ref, KindAnnotation, nil); a != nil && m.g.addAnnotation(t, a) {
			m.emitReference(t, a, RefAnnotation)
		}
	}

	m.mergeMethods(t, desc.Methods, existed)

	m.mergeTypeRefs(t, desc.SuperClasses, KindClass, KindClass, nil, t.superClasses, RefSuperClass, m.g.addSuperClass)
	m.mergeTypeRefs(t, desc.RealizedInterfaces, KindClass, KindInterface, interfaceLike, t.realizedInterfaces, RefRealizeInterface, m.g.addRealizedInterface)
	m.mergeTypeRefs(t, desc.SuperInterfaces, KindInterface, KindInterface, nil, t.superInterfaces, RefSuperInterface, m.g.addSuperInterface)
}

func (m *merger) mergeTypeRefs(
	t *Type,
	refs []*TypeDescription,
	ownerKind, refKind Kind,
	accepts func(Kind) bool,
	present idSet,
	kind ReferenceKind,
	link func(owner, referred *Type) bool,
) {
	if len(refs) == 0 {
		return
	}
	if t.kind != ownerKind {
		m.logger.Warn("ignoring references not applicable to kind",
			"kind", t.kind, "reference", kind, "count", len(refs))
		return
	}
	for _, ref := range refs {
		if m.g.containsFQN(present, ref.FQN) {
			continue
		}
		if r := m.resolve(t, ref, refKind, accepts); r != nil && link(t, r) {
			m.emitReference(t, r, kind)
		}
	}
}

func (m *merger) mergeMethods(t *Type, descs []MethodDescription, existed bool) {
	if len(descs) == 0 {
		return
	}
	if t.kind == KindAnnotation {
		m.logger.Warn("ignoring methods on annotation type", "count", len(descs))
		return
	}

	changed := false
	for _, md := range descs {
		method := t.Method(md.Name, md.Parameters)
		if method == nil {
			method = m.g.addMethod(t, md.Name, md.Parameters)
			method.modifiers = md.Modifiers
			method.returnType = md.ReturnType
			changed = true
		} else {
			if merged := method.modifiers.Union(md.Modifiers); merged != method.modifiers {
				method.modifiers = merged
				changed = true
			}
			if md.ReturnType != "" && md.ReturnType != method.returnType {
				method.returnType = md.ReturnType
				changed = true
			}
		}

		for _, ref := range md.Exceptions {
			if m.g.containsFQN(method.exceptions, ref.FQN) {
				continue
			}
			if e := m.resolve(t, ref, KindClass, nil); e != nil && m.g.addMethodException(method, e) {
				changed = true
			}
		}
		for _, ref := range md.Annotations {
			if m.g.containsFQN(method.annotations, ref.FQN) {
				continue
			}
			if a := m.resolve(t, ref, KindAnnotation, nil); a != nil && m.g.addMethodAnnotation(method, a) {
				changed = true
			}
		}
	}

	if changed && existed {
		m.emitNode(t, NodeChanged, DetailMethodChangedOrAdded)
	}
}

// interfaceLike accepts the kinds a realized interface may resolve to.
// Annotation types are interfaces too and keep their node.
func interfaceLike(k Kind) bool {
	return k == KindInterface || k == KindAnnotation
}

// resolve finds or creates the node a reference points at. A stored node is
// used when its kind equals kind or accepts reports true for it; a nil
// accepts means exact match only. Any other node under the same FQN is
// replaced by a fresh stub of kind, unless that node is the owner being
// merged, in which case the reference is skipped.
func (m *merger) resolve(owner *Type, ref *TypeDescription, kind Kind, accepts func(Kind) bool) *Type {
	if ref.Initialized() || ref.hasForwardReferences() {
		m.logger.Warn("reference carries more than one hop of information, using FQN only",
			"reference", ref.FQN)
	}

	t := m.cache.names.Lookup(ref.FQN)
	if t != nil && t.kind != kind && (accepts == nil || !accepts(t.kind)) {
		if t == owner {
			m.logger.Warn("skipping reference to owner with incompatible kind",
				"reference", ref.FQN, "kind", kind)
			return nil
		}
		m.logger.Info("referenced type changed kind, replacing node",
			"reference", ref.FQN, "old_kind", t.kind, "new_kind", kind)
		m.remove(t)
		t = nil
	}
	if t == nil {
		t = m.g.newType(ref.FQN, kind)
		m.emitNode(t, NodeNew, DetailNotInitialized)
	}
	return t
}
