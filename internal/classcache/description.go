package classcache

// TypeDescription is a partial definition of one type as reported by an
// agent. A description without a hash describes a placeholder.
//
// Only the forward reference lists are merged. Nested descriptions in those
// lists contribute their FQN only; anything they carry beyond that is
// ignored. The back-reference lists exist so that wire payloads carrying
// them can be decoded, but they are never linked.
type TypeDescription struct {
	FQN       string    `json:"fqn"`
	Kind      Kind      `json:"kind"`
	Hash      string    `json:"hash,omitempty"`
	Modifiers Modifiers `json:"modifiers,omitempty"`

	SuperClasses       []*TypeDescription  `json:"superClasses,omitempty"`
	SuperInterfaces    []*TypeDescription  `json:"superInterfaces,omitempty"`
	RealizedInterfaces []*TypeDescription  `json:"realizedInterfaces,omitempty"`
	Annotations        []*TypeDescription  `json:"annotations,omitempty"`
	Methods            []MethodDescription `json:"methods,omitempty"`

	SubClasses       []*TypeDescription `json:"subClasses,omitempty"`
	SubInterfaces    []*TypeDescription `json:"subInterfaces,omitempty"`
	RealizingClasses []*TypeDescription `json:"realizingClasses,omitempty"`
	AnnotatedTypes   []*TypeDescription `json:"annotatedTypes,omitempty"`
	ThrowingMethods  []string           `json:"throwingMethods,omitempty"`
}

// MethodDescription describes one method of the enclosing type.
type MethodDescription struct {
	Name        string             `json:"name"`
	Parameters  []string           `json:"parameters,omitempty"`
	ReturnType  string             `json:"returnType,omitempty"`
	Modifiers   Modifiers          `json:"modifiers,omitempty"`
	Exceptions  []*TypeDescription `json:"exceptions,omitempty"`
	Annotations []*TypeDescription `json:"annotations,omitempty"`
}

// Ref returns a reference-only description for fqn.
func Ref(kind Kind, fqn string) *TypeDescription {
	return &TypeDescription{FQN: fqn, Kind: kind}
}

// Initialized reports whether the description carries a full definition.
func (d *TypeDescription) Initialized() bool {
	return d.Hash != ""
}

func (d *TypeDescription) hasForwardReferences() bool {
	return len(d.SuperClasses) > 0 || len(d.SuperInterfaces) > 0 ||
		len(d.RealizedInterfaces) > 0 || len(d.Annotations) > 0 || len(d.Methods) > 0
}

// validate checks the whole description tree so that a bad nested entry is
// rejected before any state changes.
func (d *TypeDescription) validate() error {
	if d.FQN == "" {
		return &ModificationError{Reason: "type description has no FQN"}
	}
	if !d.Kind.Valid() {
		return &ModificationError{FQN: d.FQN, Reason: "unknown kind " + string(d.Kind), Err: ErrUnknownKind}
	}
	refLists := [][]*TypeDescription{d.SuperClasses, d.SuperInterfaces, d.RealizedInterfaces, d.Annotations}
	for _, m := range d.Methods {
		if m.Name == "" {
			return &ModificationError{FQN: d.FQN, Reason: "method without name"}
		}
		refLists = append(refLists, m.Exceptions, m.Annotations)
	}
	for _, refs := range refLists {
		for _, ref := range refs {
			if ref == nil || ref.FQN == "" {
				return &ModificationError{FQN: d.FQN, Reason: "reference without FQN"}
			}
		}
	}
	return nil
}
