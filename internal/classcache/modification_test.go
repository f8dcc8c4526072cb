package classcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Input validation
// ---------------------------------------------------------------------------

func TestMerge_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		desc *TypeDescription
		kind error
	}{
		{name: "nil description", desc: nil},
		{name: "empty fqn", desc: &TypeDescription{Kind: KindClass, Hash: "h"}},
		{name: "unknown kind", desc: &TypeDescription{FQN: "a.B", Kind: "enum"}, kind: ErrUnknownKind},
		{
			name: "nested reference without fqn",
			desc: &TypeDescription{FQN: "a.B", Kind: KindClass, Hash: "h", SuperClasses: []*TypeDescription{{Kind: KindClass}}},
		},
		{
			name: "method without name",
			desc: &TypeDescription{FQN: "a.B", Kind: KindClass, Hash: "h", Methods: []MethodDescription{{}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCache(t)

			events, err := c.Modification().Merge(context.Background(), tt.desc)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrModification)
			if tt.kind != nil {
				assert.ErrorIs(t, err, tt.kind)
			}
			var modErr *ModificationError
			assert.ErrorAs(t, err, &modErr)

			assert.Empty(t, events)
			assert.Zero(t, c.LockStats().WriteLocks, "validation must happen before locking")
			assert.Nil(t, c.Lookup().FindByFQN("a.B"))
		})
	}
}

// ---------------------------------------------------------------------------
// Node creation and header merging
// ---------------------------------------------------------------------------

func TestMerge_NewInitializedType(t *testing.T) {
	c := newTestCache(t)

	events := mustMerge(t, c, classDesc("a.B", "h1", ModPublic))

	assert.Equal(t, []string{"NEW(a.B, INITIALIZED)"}, events.Strings())
	b := c.Lookup().FindByFQN("a.B")
	require.NotNil(t, b)
	assert.True(t, b.IsInitialized())
	assert.True(t, b.IsClass())
	assert.Equal(t, []string{"h1"}, b.Hashes())
	assert.Equal(t, ModPublic, b.Modifiers())
	assert.Same(t, b, c.Lookup().FindByHash("h1"))
	assert.Equal(t, int64(1), c.LockStats().WriteLocks)
}

func TestMerge_NewStubType(t *testing.T) {
	c := newTestCache(t)

	events := mustMerge(t, c, Ref(KindInterface, "a.I"))

	assert.Equal(t, []string{"NEW(a.I, NOT_INITIALIZED)"}, events.Strings())
	i := c.Lookup().FindByFQN("a.I")
	require.NotNil(t, i)
	assert.False(t, i.IsInitialized())
	assert.Empty(t, i.Hashes())
}

func TestMerge_InitializesStub(t *testing.T) {
	c := newTestCache(t)
	mustMerge(t, c, Ref(KindClass, "a.B"))

	events := mustMerge(t, c, classDesc("a.B", "h1", ModPublic|ModFinal))

	assert.Equal(t, []string{"CHANGED(a.B, INITIALIZED)"}, events.Strings())
	b := c.Lookup().FindByFQN("a.B")
	assert.True(t, b.IsInitialized())
	assert.Equal(t, ModPublic|ModFinal, b.Modifiers())
	assert.Same(t, b, c.Lookup().FindByHash("h1"))
}

func TestMerge_StubOntoInitializedIsNoop(t *testing.T) {
	c := newTestCache(t)
	mustMerge(t, c, classDesc("a.B", "h1", ModPublic))

	events := mustMerge(t, c, Ref(KindClass, "a.B"))

	assert.True(t, events.Empty())
	assert.True(t, c.Lookup().FindByFQN("a.B").IsInitialized())
}

func TestMerge_HashAccumulation(t *testing.T) {
	c := newTestCache(t)
	mustMerge(t, c, classDesc("a.B", "h1", ModPublic))

	events := mustMerge(t, c, classDesc("a.B", "h2", ModPublic))
	assert.Equal(t, []string{"CHANGED(a.B, HASH_ADDED)"}, events.Strings())

	b := c.Lookup().FindByFQN("a.B")
	assert.Equal(t, []string{"h1", "h2"}, b.Hashes())
	assert.Same(t, b, c.Lookup().FindByHash("h1"))
	assert.Same(t, b, c.Lookup().FindByHash("h2"))

	events = mustMerge(t, c, classDesc("a.B", "h1", ModPublic))
	assert.True(t, events.Empty(), "known hash must not produce events")
}

func TestMerge_ModifiersAccumulate(t *testing.T) {
	t.Run("new hash widening modifiers", func(t *testing.T) {
		c := newTestCache(t)
		mustMerge(t, c, classDesc("a.B", "h1", ModPublic))

		events := mustMerge(t, c, classDesc("a.B", "h2", ModFinal))

		assert.Equal(t, []string{
			"CHANGED(a.B, HASH_ADDED)",
			"CHANGED(a.B, MODIFIERS_CHANGED)",
		}, events.Strings())
		assert.Equal(t, ModPublic|ModFinal, c.Lookup().FindByFQN("a.B").Modifiers())
	})

	t.Run("known hash unions silently", func(t *testing.T) {
		c := newTestCache(t)
		mustMerge(t, c, classDesc("a.B", "h1", ModPublic))

		events := mustMerge(t, c, classDesc("a.B", "h1", ModAbstract))

		assert.True(t, events.Empty())
		assert.Equal(t, ModPublic|ModAbstract, c.Lookup().FindByFQN("a.B").Modifiers())
	})

	t.Run("modifiers are never reduced", func(t *testing.T) {
		c := newTestCache(t)
		mustMerge(t, c, classDesc("a.B", "h1", ModPublic|ModFinal))

		mustMerge(t, c, classDesc("a.B", "h2", 0))

		assert.Equal(t, ModPublic|ModFinal, c.Lookup().FindByFQN("a.B").Modifiers())
	})
}

// ---------------------------------------------------------------------------
// References
// ---------------------------------------------------------------------------

func TestMerge_ReferencesAreBidirectional(t *testing.T) {
	tests := []struct {
		name     string
		desc     *TypeDescription
		referred string
		events   []string
		forward  func(*Type) []*Type
		inverse  func(*Type) []*Type
	}{
		{
			name:     "superclass",
			desc:     &TypeDescription{FQN: "a.C", Kind: KindClass, Hash: "h", SuperClasses: []*TypeDescription{Ref(KindClass, "a.S")}},
			referred: "a.S",
			events:   []string{"NEW(a.C, INITIALIZED)", "NEW(a.S, NOT_INITIALIZED)", "SUPERCLASS(a.C -> a.S)"},
			forward:  (*Type).SuperClasses,
			inverse:  (*Type).SubClasses,
		},
		{
			name:     "superinterface",
			desc:     &TypeDescription{FQN: "a.I", Kind: KindInterface, Hash: "h", SuperInterfaces: []*TypeDescription{Ref(KindInterface, "a.J")}},
			referred: "a.J",
			events:   []string{"NEW(a.I, INITIALIZED)", "NEW(a.J, NOT_INITIALIZED)", "SUPERINTERFACE(a.I -> a.J)"},
			forward:  (*Type).SuperInterfaces,
			inverse:  (*Type).SubInterfaces,
		},
		{
			name:     "realized interface",
			desc:     &TypeDescription{FQN: "a.C", Kind: KindClass, Hash: "h", RealizedInterfaces: []*TypeDescription{Ref(KindInterface, "a.I")}},
			referred: "a.I",
			events:   []string{"NEW(a.C, INITIALIZED)", "NEW(a.I, NOT_INITIALIZED)", "REALIZE_INTERFACE(a.C -> a.I)"},
			forward:  (*Type).RealizedInterfaces,
			inverse:  (*Type).RealizingClasses,
		},
		{
			name:     "annotation",
			desc:     &TypeDescription{FQN: "a.C", Kind: KindClass, Hash: "h", Annotations: []*TypeDescription{Ref(KindAnnotation, "a.A")}},
			referred: "a.A",
			events:   []string{"NEW(a.C, INITIALIZED)", "NEW(a.A, NOT_INITIALIZED)", "ANNOTATION(a.C -> a.A)"},
			forward:  (*Type).Annotations,
			inverse:  (*Type).AnnotatedTypes,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCache(t)

			events := mustMerge(t, c, tt.desc)
			assert.Equal(t, tt.events, events.Strings())

			owner := c.Lookup().FindByFQN(tt.desc.FQN)
			referred := c.Lookup().FindByFQN(tt.referred)
			require.NotNil(t, owner)
			require.NotNil(t, referred)
			assert.False(t, referred.IsInitialized())
			assert.Equal(t, []string{tt.referred}, fqns(tt.forward(owner)))
			assert.Equal(t, []string{tt.desc.FQN}, fqns(tt.inverse(referred)))
		})
	}
}

func TestMerge_LinksToExistingNode(t *testing.T) {
	c := newTestCache(t)
	mustMerge(t, c, classDesc("a.S", "hs", ModPublic))

	events := mustMerge(t, c, &TypeDescription{
		FQN: "a.C", Kind: KindClass, Hash: "hc",
		SuperClasses: []*TypeDescription{Ref(KindClass, "a.S")},
	})

	assert.Equal(t, []string{"NEW(a.C, INITIALIZED)", "SUPERCLASS(a.C -> a.S)"}, events.Strings())
	s := c.Lookup().FindByFQN("a.S")
	assert.True(t, s.IsInitialized(), "linking must not touch the referred header")
	assert.Equal(t, []string{"a.C"}, fqns(s.SubClasses()))
}

func TestMerge_OnlyNewReferencesProduceEvents(t *testing.T) {
	c := newTestCache(t)
	mustMerge(t, c, &TypeDescription{
		FQN: "a.C", Kind: KindClass, Hash: "h1",
		RealizedInterfaces: []*TypeDescription{Ref(KindInterface, "a.I")},
	})

	events := mustMerge(t, c, &TypeDescription{
		FQN: "a.C", Kind: KindClass, Hash: "h1",
		RealizedInterfaces: []*TypeDescription{Ref(KindInterface, "a.I"), Ref(KindInterface, "a.J")},
	})

	assert.Equal(t, []string{"NEW(a.J, NOT_INITIALIZED)", "REALIZE_INTERFACE(a.C -> a.J)"}, events.Strings())
	assert.Equal(t, []string{"a.I", "a.J"}, fqns(c.Lookup().FindByFQN("a.C").RealizedInterfaces()))
}

func TestMerge_ReferenceOrder(t *testing.T) {
	c := newTestCache(t)

	events := mustMerge(t, c, &TypeDescription{
		FQN: "a.C", Kind: KindClass, Hash: "h",
		SuperClasses:       []*TypeDescription{Ref(KindClass, "a.S")},
		RealizedInterfaces: []*TypeDescription{Ref(KindInterface, "a.I")},
		Annotations:        []*TypeDescription{Ref(KindAnnotation, "a.A")},
	})

	assert.Equal(t, []string{
		"NEW(a.C, INITIALIZED)",
		"NEW(a.A, NOT_INITIALIZED)",
		"ANNOTATION(a.C -> a.A)",
		"NEW(a.S, NOT_INITIALIZED)",
		"SUPERCLASS(a.C -> a.S)",
		"NEW(a.I, NOT_INITIALIZED)",
		"REALIZE_INTERFACE(a.C -> a.I)",
	}, events.Strings())
}

func TestMerge_InapplicableReferencesIgnored(t *testing.T) {
	c := newTestCache(t)

	events := mustMerge(t, c, &TypeDescription{
		FQN: "a.I", Kind: KindInterface, Hash: "h",
		SuperClasses:       []*TypeDescription{Ref(KindClass, "a.S")},
		RealizedInterfaces: []*TypeDescription{Ref(KindInterface, "a.J")},
	})

	assert.Equal(t, []string{"NEW(a.I, INITIALIZED)"}, events.Strings())
	assert.Nil(t, c.Lookup().FindByFQN("a.S"))
	assert.Nil(t, c.Lookup().FindByFQN("a.J"))
}

func TestMerge_OneHopLimit(t *testing.T) {
	c := newTestCache(t)

	s := &TypeDescription{
		FQN: "a.S", Kind: KindClass, Hash: "hs", Modifiers: ModPublic,
		SuperClasses: []*TypeDescription{Ref(KindClass, "a.S2")},
		Annotations:  []*TypeDescription{Ref(KindAnnotation, "a.A")},
	}
	events := mustMerge(t, c, &TypeDescription{
		FQN: "a.C", Kind: KindClass, Hash: "hc",
		SuperClasses: []*TypeDescription{s},
	})

	assert.Equal(t, []string{
		"NEW(a.C, INITIALIZED)",
		"NEW(a.S, NOT_INITIALIZED)",
		"SUPERCLASS(a.C -> a.S)",
	}, events.Strings())
	assert.Equal(t, 2, c.Len())

	stored := c.Lookup().FindByFQN("a.S")
	require.NotNil(t, stored)
	assert.False(t, stored.IsInitialized())
	assert.Empty(t, stored.Hashes())
	assert.Empty(t, stored.SuperClasses())
	assert.Nil(t, c.Lookup().FindByFQN("a.S2"))
	assert.Nil(t, c.Lookup().FindByFQN("a.A"))
	assert.Nil(t, c.Lookup().FindByHash("hs"))
}

func TestMerge_BackReferencesRejected(t *testing.T) {
	tests := []struct {
		name string
		desc *TypeDescription
	}{
		{
			name: "class listing subclasses",
			desc: &TypeDescription{FQN: "a.X", Kind: KindClass, Hash: "h", SubClasses: []*TypeDescription{Ref(KindClass, "a.Y")}},
		},
		{
			name: "interface listing realizing classes and subinterfaces",
			desc: &TypeDescription{
				FQN: "a.X", Kind: KindInterface, Hash: "h",
				RealizingClasses: []*TypeDescription{Ref(KindClass, "a.Y")},
				SubInterfaces:    []*TypeDescription{Ref(KindInterface, "a.Z")},
			},
		},
		{
			name: "annotation listing annotated types",
			desc: &TypeDescription{FQN: "a.X", Kind: KindAnnotation, Hash: "h", AnnotatedTypes: []*TypeDescription{Ref(KindClass, "a.Y")}},
		},
		{
			name: "exception listing throwing methods",
			desc: &TypeDescription{FQN: "a.X", Kind: KindClass, Hash: "h", ThrowingMethods: []string{"a.Y#run()"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCache(t)

			events := mustMerge(t, c, tt.desc)

			assert.Equal(t, []string{"NEW(a.X, INITIALIZED)"}, events.Strings())
			x := c.Lookup().FindByFQN("a.X")
			require.NotNil(t, x)
			assert.Empty(t, x.SubClasses())
			assert.Empty(t, x.SubInterfaces())
			assert.Empty(t, x.RealizingClasses())
			assert.Empty(t, x.AnnotatedTypes())
			assert.Empty(t, x.MethodsThrowingThisException())
			assert.Nil(t, c.Lookup().FindByFQN("a.Y"))
			assert.Nil(t, c.Lookup().FindByFQN("a.Z"))
		})
	}
}

// ---------------------------------------------------------------------------
// Replacement on kind change
// ---------------------------------------------------------------------------

func TestMerge_KindChangeReplacesNode(t *testing.T) {
	c := newTestCache(t)
	mustMerge(t, c, &TypeDescription{
		FQN: "a.C", Kind: KindClass, Hash: "hc",
		RealizedInterfaces: []*TypeDescription{Ref(KindInterface, "a.X")},
	})
	mustMerge(t, c, &TypeDescription{
		FQN: "a.X", Kind: KindInterface, Hash: "hx",
		Annotations:     []*TypeDescription{Ref(KindAnnotation, "a.Ann")},
		SuperInterfaces: []*TypeDescription{Ref(KindInterface, "a.Super")},
	})
	old := c.Lookup().FindByFQN("a.X")
	require.NotNil(t, old)

	events := mustMerge(t, c, classDesc("a.X", "h2", ModPublic))

	assert.Equal(t, []string{"REMOVED(a.X)", "NEW(a.X, INITIALIZED)"}, events.Strings())

	replaced := c.Lookup().FindByFQN("a.X")
	require.NotNil(t, replaced)
	assert.NotSame(t, old, replaced)
	assert.NotEqual(t, old.ID(), replaced.ID())
	assert.True(t, replaced.IsClass())
	assert.Equal(t, []string{"h2"}, replaced.Hashes())
	assert.False(t, old.Attached())

	// No dangling edges on previously connected nodes.
	assert.Empty(t, c.Lookup().FindByFQN("a.C").RealizedInterfaces())
	assert.Empty(t, c.Lookup().FindByFQN("a.Ann").AnnotatedTypes())
	assert.Empty(t, c.Lookup().FindByFQN("a.Super").SubInterfaces())
	assert.Empty(t, old.Annotations())
	assert.Empty(t, old.RealizingClasses())

	// Indices follow the replacement.
	assert.Nil(t, c.Lookup().FindByHash("hx"))
	assert.Same(t, replaced, c.Lookup().FindByHash("h2"))
}

func TestMerge_ReferencedKindConflictReplacesStub(t *testing.T) {
	c := newTestCache(t)
	mustMerge(t, c, classDesc("a.I", "hi", ModPublic))

	events := mustMerge(t, c, &TypeDescription{
		FQN: "a.C", Kind: KindClass, Hash: "hc",
		RealizedInterfaces: []*TypeDescription{Ref(KindInterface, "a.I")},
	})

	assert.Equal(t, []string{
		"NEW(a.C, INITIALIZED)",
		"REMOVED(a.I)",
		"NEW(a.I, NOT_INITIALIZED)",
		"REALIZE_INTERFACE(a.C -> a.I)",
	}, events.Strings())
	i := c.Lookup().FindByFQN("a.I")
	assert.True(t, i.IsInterface())
	assert.False(t, i.IsInitialized())
}

func TestMerge_RealizedAnnotationKeepsNode(t *testing.T) {
	c := newTestCache(t)
	mustMerge(t, c, annotationDesc("a.Ann", "ha"))
	mustMerge(t, c, &TypeDescription{
		FQN: "a.User", Kind: KindClass, Hash: "hu",
		Annotations: []*TypeDescription{Ref(KindAnnotation, "a.Ann")},
	})

	events := mustMerge(t, c, &TypeDescription{
		FQN: "a.Impl", Kind: KindClass, Hash: "hi",
		RealizedInterfaces: []*TypeDescription{Ref(KindInterface, "a.Ann")},
	})

	assert.Equal(t, []string{
		"NEW(a.Impl, INITIALIZED)",
		"REALIZE_INTERFACE(a.Impl -> a.Ann)",
	}, events.Strings())

	ann := c.Lookup().FindByFQN("a.Ann")
	require.NotNil(t, ann)
	assert.True(t, ann.IsAnnotation())
	assert.True(t, ann.IsInitialized())
	user := c.Lookup().FindByFQN("a.User")
	require.NoError(t, c.ExecuteWithReadLock(func() error {
		assert.Equal(t, []string{"a.User"}, fqns(ann.AnnotatedTypes()))
		assert.Equal(t, []string{"a.Impl"}, fqns(ann.RealizingClasses()))
		assert.Equal(t, []string{"a.Ann"}, fqns(user.Annotations()))
		return nil
	}))
}

func TestMerge_ReferenceToOwnerWithWrongKindSkipped(t *testing.T) {
	c := newTestCache(t)

	events := mustMerge(t, c, &TypeDescription{
		FQN: "a.I", Kind: KindInterface, Hash: "h",
		Methods: []MethodDescription{{Name: "run", Exceptions: []*TypeDescription{Ref(KindClass, "a.I")}}},
	})

	assert.Equal(t, []string{"NEW(a.I, INITIALIZED)"}, events.Strings())
	i := c.Lookup().FindByFQN("a.I")
	require.Len(t, i.Methods(), 1)
	assert.Empty(t, i.Methods()[0].Exceptions())
}

// ---------------------------------------------------------------------------
// Methods
// ---------------------------------------------------------------------------

func TestMerge_MethodsOnNewTypeEmitNoMethodEvent(t *testing.T) {
	c := newTestCache(t)

	events := mustMerge(t, c, &TypeDescription{
		FQN: "a.B", Kind: KindClass, Hash: "h",
		Methods: []MethodDescription{
			{Name: "m", ReturnType: "void", Modifiers: ModPublic},
			{Name: "m", Parameters: []string{"int"}, ReturnType: "int"},
		},
	})

	assert.Equal(t, []string{"NEW(a.B, INITIALIZED)"}, events.Strings())
	b := c.Lookup().FindByFQN("a.B")
	require.Len(t, b.Methods(), 2)
	assert.Equal(t, "m()", b.Methods()[0].Signature())
	assert.Equal(t, "m(int)", b.Methods()[1].Signature())
	assert.NotNil(t, b.Method("m", []string{"int"}))
	assert.Nil(t, b.Method("m", []string{"long"}))
}

func TestMerge_MethodChangesEmitOneEventPerOwner(t *testing.T) {
	c := newTestCache(t)
	mustMerge(t, c, &TypeDescription{
		FQN: "a.B", Kind: KindClass, Hash: "h1",
		Methods: []MethodDescription{{Name: "m", ReturnType: "void", Modifiers: ModPublic}},
	})

	events := mustMerge(t, c, &TypeDescription{
		FQN: "a.B", Kind: KindClass, Hash: "h1",
		Methods: []MethodDescription{
			{Name: "m", ReturnType: "int", Modifiers: ModStatic, Exceptions: []*TypeDescription{Ref(KindClass, "a.E")}},
			{Name: "n"},
		},
	})

	assert.Equal(t, []string{
		"NEW(a.E, NOT_INITIALIZED)",
		"CHANGED(a.B, METHOD_CHANGED_OR_ADDED)",
	}, events.Strings())

	b := c.Lookup().FindByFQN("a.B")
	m := b.Method("m", nil)
	require.NotNil(t, m)
	assert.Equal(t, "int", m.ReturnType(), "return type is overwritten")
	assert.Equal(t, ModPublic|ModStatic, m.Modifiers(), "modifiers are unioned")
	assert.Equal(t, []string{"a.E"}, fqns(m.Exceptions()))
	assert.NotNil(t, b.Method("n", nil))
}

func TestMerge_UnchangedMethodsAreSilent(t *testing.T) {
	c := newTestCache(t)
	desc := &TypeDescription{
		FQN: "a.B", Kind: KindClass, Hash: "h1",
		Methods: []MethodDescription{{Name: "m", ReturnType: "void", Modifiers: ModPublic}},
	}
	mustMerge(t, c, desc)

	events := mustMerge(t, c, &TypeDescription{
		FQN: "a.B", Kind: KindClass, Hash: "h1",
		Methods: []MethodDescription{{Name: "m", Modifiers: ModPublic}},
	})

	assert.True(t, events.Empty(), "empty return type must not overwrite")
	assert.Equal(t, "void", c.Lookup().FindByFQN("a.B").Method("m", nil).ReturnType())
}

func TestMerge_MethodAnnotationsAreBidirectional(t *testing.T) {
	c := newTestCache(t)

	events := mustMerge(t, c, &TypeDescription{
		FQN: "a.B", Kind: KindClass, Hash: "h",
		Methods: []MethodDescription{{Name: "m", Annotations: []*TypeDescription{Ref(KindAnnotation, "a.Timed")}}},
	})

	assert.Equal(t, []string{"NEW(a.B, INITIALIZED)", "NEW(a.Timed, NOT_INITIALIZED)"}, events.Strings())
	timed := c.Lookup().FindByFQN("a.Timed")
	require.Len(t, timed.AnnotatedMethods(), 1)
	assert.Equal(t, "m()", timed.AnnotatedMethods()[0].Signature())
	assert.True(t, c.Lookup().FindByFQN("a.B").Method("m", nil).HasAnnotation("a.Timed"))
}

// ---------------------------------------------------------------------------
// Idempotence and the end-to-end scenario
// ---------------------------------------------------------------------------

func TestMerge_Idempotent(t *testing.T) {
	c := newTestCache(t)
	desc := &TypeDescription{
		FQN: "a.B", Kind: KindClass, Hash: "h1", Modifiers: ModPublic,
		SuperClasses:       []*TypeDescription{Ref(KindClass, "a.S")},
		RealizedInterfaces: []*TypeDescription{Ref(KindInterface, "a.I")},
		Annotations:        []*TypeDescription{Ref(KindAnnotation, "a.A")},
		Methods: []MethodDescription{{
			Name: "m", Parameters: []string{"java.lang.String"}, ReturnType: "void", Modifiers: ModPublic,
			Exceptions:  []*TypeDescription{Ref(KindClass, "a.E")},
			Annotations: []*TypeDescription{Ref(KindAnnotation, "a.Timed")},
		}},
	}

	first := mustMerge(t, c, desc)
	require.False(t, first.Empty())
	size := c.Len()

	second := mustMerge(t, c, desc)

	assert.True(t, second.Empty(), "second merge produced %v", second.Strings())
	assert.Equal(t, size, c.Len())
}

func TestMerge_EndToEndScenario(t *testing.T) {
	c := newTestCache(t)

	events := mustMerge(t, c, &TypeDescription{
		FQN: "a.B", Kind: KindClass, Hash: "h1", Modifiers: ModPublic,
		Methods: []MethodDescription{{Name: "m", Exceptions: []*TypeDescription{Ref(KindClass, "a.E")}}},
	})
	assert.Equal(t, []string{"NEW(a.B, INITIALIZED)", "NEW(a.E, NOT_INITIALIZED)"}, events.Strings())

	b := c.Lookup().FindByFQN("a.B")
	e := c.Lookup().FindByFQN("a.E")
	require.NotNil(t, b)
	require.NotNil(t, e)
	assert.True(t, b.IsInitialized())
	assert.False(t, e.IsInitialized())
	m := b.Method("m", nil)
	require.NotNil(t, m)
	assert.Equal(t, []string{"a.E"}, fqns(m.Exceptions()))
	require.Len(t, e.MethodsThrowingThisException(), 1)
	assert.Same(t, m, e.MethodsThrowingThisException()[0])

	events = mustMerge(t, c, classDesc("a.E", "h2", ModPublic))

	assert.Equal(t, []string{"CHANGED(a.E, INITIALIZED)"}, events.Strings())
	assert.Same(t, e, c.Lookup().FindByFQN("a.E"))
	assert.True(t, e.IsInitialized())
	assert.Empty(t, e.SubClasses())
	require.Len(t, e.MethodsThrowingThisException(), 1)
	assert.Same(t, m, e.MethodsThrowingThisException()[0])
}
