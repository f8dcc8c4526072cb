// Package export renders the contents of a class cache as a JSON snapshot or
// a Mermaid class diagram.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dusk-indust/typecache/internal/classcache"
)

// Snapshot is the top-level JSON export structure.
type Snapshot struct {
	Session         string                                 `json:"session"`
	ExportedAt      string                                 `json:"exportedAt"`
	Pattern         string                                 `json:"pattern"`
	Types           []TypeRecord                           `json:"types"`
	Instrumentation []classcache.InstrumentationDefinition `json:"instrumentation,omitempty"`
}

// TypeRecord is one cached type with its forward and back references
// flattened to FQNs.
type TypeRecord struct {
	FQN         string   `json:"fqn"`
	Kind        string   `json:"kind"`
	Modifiers   string   `json:"modifiers,omitempty"`
	Initialized bool     `json:"initialized"`
	Hashes      []string `json:"hashes,omitempty"`

	SuperClasses       []string `json:"superClasses,omitempty"`
	SuperInterfaces    []string `json:"superInterfaces,omitempty"`
	RealizedInterfaces []string `json:"realizedInterfaces,omitempty"`
	Annotations        []string `json:"annotations,omitempty"`

	SubClasses       []string `json:"subClasses,omitempty"`
	SubInterfaces    []string `json:"subInterfaces,omitempty"`
	RealizingClasses []string `json:"realizingClasses,omitempty"`
	AnnotatedTypes   []string `json:"annotatedTypes,omitempty"`

	Methods []MethodRecord `json:"methods,omitempty"`
}

// MethodRecord is one method of a TypeRecord. Sensors lists the sensor ids
// of its instrumentation point, if any.
type MethodRecord struct {
	Name        string   `json:"name"`
	Parameters  []string `json:"parameters,omitempty"`
	ReturnType  string   `json:"returnType,omitempty"`
	Modifiers   string   `json:"modifiers,omitempty"`
	Exceptions  []string `json:"exceptions,omitempty"`
	Annotations []string `json:"annotations,omitempty"`
	Sensors     []string `json:"sensors,omitempty"`
}

// Describe flattens t into a record. Callers hold the cache's read lock.
func Describe(t *classcache.Type) TypeRecord {
	rec := TypeRecord{
		FQN:         t.FQN(),
		Kind:        string(t.Kind()),
		Modifiers:   t.Modifiers().String(),
		Initialized: t.IsInitialized(),
		Hashes:      t.Hashes(),

		SuperClasses:       fqns(t.SuperClasses()),
		SuperInterfaces:    fqns(t.SuperInterfaces()),
		RealizedInterfaces: fqns(t.RealizedInterfaces()),
		Annotations:        fqns(t.Annotations()),

		SubClasses:       fqns(t.SubClasses()),
		SubInterfaces:    fqns(t.SubInterfaces()),
		RealizingClasses: fqns(t.RealizingClasses()),
		AnnotatedTypes:   fqns(t.AnnotatedTypes()),
	}
	for _, m := range t.Methods() {
		mr := MethodRecord{
			Name:        m.Name(),
			Parameters:  m.Parameters(),
			ReturnType:  m.ReturnType(),
			Modifiers:   m.Modifiers().String(),
			Exceptions:  fqns(m.Exceptions()),
			Annotations: fqns(m.Annotations()),
		}
		if cfg := m.InstrumentationConfig(); cfg != nil {
			mr.Sensors = append([]string(nil), cfg.SensorIDs...)
		}
		rec.Methods = append(rec.Methods, mr)
	}
	return rec
}

// TakeSnapshot describes every type matching pattern ("*" for all) together
// with the current instrumentation results.
func TakeSnapshot(cache *classcache.ClassCache, pattern string) (*Snapshot, error) {
	if pattern == "" {
		pattern = "*"
	}
	snap := &Snapshot{
		Session:    cache.SessionID().String(),
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Pattern:    pattern,
		Types:      []TypeRecord{},
	}

	types := cache.Lookup().FindByPattern(pattern, false)
	err := cache.ExecuteWithReadLock(func() error {
		for _, t := range types {
			if !t.Attached() {
				continue
			}
			snap.Types = append(snap.Types, Describe(t))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("describe types: %w", err)
	}

	snap.Instrumentation = cache.Instrumentation().GetInstrumentationResultsFor(types)
	return snap, nil
}

// WriteJSON writes snap as indented JSON.
func WriteJSON(w io.Writer, snap *Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

func fqns(types []*classcache.Type) []string {
	if len(types) == 0 {
		return nil
	}
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.FQN()
	}
	return out
}
