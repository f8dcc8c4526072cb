package classcache

import (
	"context"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/attribute"
)

// AgentConfig describes the agent an instrumentation is computed for.
type AgentConfig struct {
	PlatformID              int64  `json:"platformId" yaml:"platformId"`
	AgentName               string `json:"agentName" yaml:"agentName"`
	ClassLoadingDelegation  bool   `json:"classLoadingDelegation,omitempty" yaml:"classLoadingDelegation,omitempty"`
	EnhancedExceptionSensor bool   `json:"enhancedExceptionSensor,omitempty" yaml:"enhancedExceptionSensor,omitempty"`
}

// SensorKind selects what an assignment instruments.
type SensorKind string

const (
	SensorMethod    SensorKind = "method"
	SensorException SensorKind = "exception"
)

// SensorAssignment is one rule binding a sensor to the classes and methods it
// matches. ClassName and Annotation accept '*' wildcards. When Interface is
// set ClassName names an interface the class must realize; when Superclass is
// set it names a superclass the class must extend.
type SensorAssignment struct {
	SensorID   string     `json:"sensorId" yaml:"sensorId" validate:"required"`
	Kind       SensorKind `json:"kind,omitempty" yaml:"kind,omitempty" validate:"omitempty,oneof=method exception"`
	ClassName  string     `json:"className" yaml:"className" validate:"required"`
	Interface  bool       `json:"interface,omitempty" yaml:"interface,omitempty"`
	Superclass bool       `json:"superclass,omitempty" yaml:"superclass,omitempty"`
	Annotation string     `json:"annotation,omitempty" yaml:"annotation,omitempty"`

	MethodName  string   `json:"methodName,omitempty" yaml:"methodName,omitempty"`
	Parameters  []string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Constructor bool     `json:"constructor,omitempty" yaml:"constructor,omitempty"`
	Public      bool     `json:"public,omitempty" yaml:"public,omitempty"`
	Protected   bool     `json:"protected,omitempty" yaml:"protected,omitempty"`
	Private     bool     `json:"private,omitempty" yaml:"private,omitempty"`
	Default     bool     `json:"default,omitempty" yaml:"default,omitempty"`
}

// MethodInstrumentationConfig is the instrumentation point of one method.
type MethodInstrumentationConfig struct {
	TargetClassFQN   string   `json:"targetClassFqn"`
	TargetMethodName string   `json:"targetMethodName"`
	Parameters       []string `json:"parameters,omitempty"`
	ReturnType       string   `json:"returnType,omitempty"`
	SensorIDs        []string `json:"sensorIds,omitempty"`
	ExceptionSensor  bool     `json:"exceptionSensor,omitempty"`
}

// NewMethodInstrumentationConfig returns an empty point for m.
func NewMethodInstrumentationConfig(m *Method) *MethodInstrumentationConfig {
	return &MethodInstrumentationConfig{
		TargetClassFQN:   m.Owner().FQN(),
		TargetMethodName: m.Name(),
		Parameters:       m.Parameters(),
		ReturnType:       m.ReturnType(),
	}
}

// AddSensor records sensorID and reports whether it was new.
func (c *MethodInstrumentationConfig) AddSensor(sensorID string) bool {
	if slices.Contains(c.SensorIDs, sensorID) {
		return false
	}
	c.SensorIDs = append(c.SensorIDs, sensorID)
	return true
}

// RemoveSensor drops sensorID and reports whether it was present.
func (c *MethodInstrumentationConfig) RemoveSensor(sensorID string) bool {
	i := slices.Index(c.SensorIDs, sensorID)
	if i < 0 {
		return false
	}
	c.SensorIDs = slices.Delete(c.SensorIDs, i, i+1)
	return true
}

// Empty reports whether the point no longer instruments anything.
func (c *MethodInstrumentationConfig) Empty() bool {
	return len(c.SensorIDs) == 0 && !c.ExceptionSensor
}

func (c *MethodInstrumentationConfig) clone() MethodInstrumentationConfig {
	out := *c
	out.Parameters = slices.Clone(c.Parameters)
	out.SensorIDs = slices.Clone(c.SensorIDs)
	return out
}

// InstrumentationDefinition is the per-class result shipped to an agent.
type InstrumentationDefinition struct {
	ClassName     string                        `json:"className"`
	Hashes        []string                      `json:"hashes,omitempty"`
	MethodConfigs []MethodInstrumentationConfig `json:"methodInstrumentationConfigs"`
}

// InstrumentationApplier decides per class which methods get instrumentation
// points. Both methods are called under the write lock.
type InstrumentationApplier interface {
	// SensorAssignment returns the rule used to narrow candidates, or nil
	// when every class is a candidate.
	SensorAssignment() *SensorAssignment

	// AddInstrumentationPoints reports whether at least one point was added.
	AddInstrumentationPoints(cfg AgentConfig, class *Type) bool

	// RemoveInstrumentationPoints reports whether at least one point was
	// removed.
	RemoveInstrumentationPoints(class *Type) bool
}

// SearchNarrower restricts the candidate set of a sensor assignment. It is
// called without any cache lock held and may use the LookupService.
type SearchNarrower interface {
	Narrow(cache *ClassCache, assignment *SensorAssignment) []*Type
}

// RemoveAllApplier adds nothing and clears every instrumentation point.
type RemoveAllApplier struct{}

// SensorAssignment returns nil: every class is a candidate.
func (RemoveAllApplier) SensorAssignment() *SensorAssignment { return nil }

// AddInstrumentationPoints never adds anything.
func (RemoveAllApplier) AddInstrumentationPoints(AgentConfig, *Type) bool { return false }

// RemoveInstrumentationPoints clears every method configuration of class.
func (RemoveAllApplier) RemoveInstrumentationPoints(class *Type) bool {
	removed := false
	for _, m := range class.Methods() {
		if m.ClearInstrumentationConfig() {
			removed = true
		}
	}
	return removed
}

// InstrumentationService assigns instrumentation points to class nodes and
// harvests the resulting definitions.
type InstrumentationService struct {
	cache    *ClassCache
	narrower SearchNarrower
	logger   *slog.Logger
}

// AddInstrumentationPoints runs every applier over its candidate classes and
// returns the classes on which at least one point was added. Uninitialized
// and non-class candidates are skipped.
func (s *InstrumentationService) AddInstrumentationPoints(ctx context.Context, cfg AgentConfig, appliers []InstrumentationApplier) []*Type {
	ctx, span := startOperationSpan(ctx, "AddInstrumentationPoints")
	defer span.End()

	candidates := make([][]*Type, len(appliers))
	total := 0
	for i, a := range appliers {
		candidates[i] = s.candidates(a)
		total += len(candidates[i])
	}
	if total == 0 {
		return nil
	}

	var out []*Type
	_ = s.cache.ExecuteWithWriteLock(func() error {
		seen := make(map[TypeID]bool)
		for i, a := range appliers {
			for _, t := range candidates[i] {
				if !t.IsClass() || !t.initialized || !t.Attached() {
					continue
				}
				if a.AddInstrumentationPoints(cfg, t) && !seen[t.id] {
					seen[t.id] = true
					out = append(out, t)
				}
			}
		}
		return nil
	})
	sortByFQN(out)

	span.SetAttributes(attribute.Int("classcache.instrumented", len(out)))
	recordInstrumented(ctx, len(out))
	s.logger.Debug("instrumentation points added",
		"agent", cfg.AgentName, "appliers", len(appliers), "classes", len(out))
	return out
}

// RemoveInstrumentationPoints lets every applier remove its points from the
// given types and returns the classes that lost at least one. An empty type
// or applier set returns without taking the write lock.
func (s *InstrumentationService) RemoveInstrumentationPoints(ctx context.Context, types []*Type, appliers []InstrumentationApplier) []*Type {
	if len(types) == 0 || len(appliers) == 0 {
		return nil
	}
	_, span := startOperationSpan(ctx, "RemoveInstrumentationPoints")
	defer span.End()

	var out []*Type
	_ = s.cache.ExecuteWithWriteLock(func() error {
		for _, t := range types {
			if !t.IsClass() || !t.Attached() {
				continue
			}
			removed := false
			for _, a := range appliers {
				if a.RemoveInstrumentationPoints(t) {
					removed = true
				}
			}
			if removed {
				out = append(out, t)
			}
		}
		return nil
	})
	sortByFQN(out)
	return out
}

// RemoveAllInstrumentationPoints clears every point of every class in the
// graph.
func (s *InstrumentationService) RemoveAllInstrumentationPoints(ctx context.Context) []*Type {
	return s.RemoveInstrumentationPoints(ctx, s.cache.Lookup().FindAll(), []InstrumentationApplier{RemoveAllApplier{}})
}

// GetInstrumentationResults returns one definition per initialized class
// that has at least one instrumentation point.
func (s *InstrumentationService) GetInstrumentationResults() []InstrumentationDefinition {
	return s.GetInstrumentationResultsFor(s.cache.Lookup().FindAll())
}

// GetInstrumentationResultsFor is GetInstrumentationResults restricted to
// types. An empty set returns without taking the read lock.
func (s *InstrumentationService) GetInstrumentationResultsFor(types []*Type) []InstrumentationDefinition {
	if len(types) == 0 {
		return nil
	}
	return readLocked(s.cache, func() []InstrumentationDefinition {
		var out []InstrumentationDefinition
		for _, t := range types {
			if def, ok := definitionFor(t); ok {
				out = append(out, def)
			}
		}
		return out
	})
}

// GetInstrumentationResultsWithHashes is GetInstrumentationResults keyed by
// every hash of each class, for agents that identify classes by content.
func (s *InstrumentationService) GetInstrumentationResultsWithHashes() map[string]InstrumentationDefinition {
	return s.GetInstrumentationResultsWithHashesFor(s.cache.Lookup().FindAll())
}

// GetInstrumentationResultsWithHashesFor is GetInstrumentationResultsWithHashes
// restricted to types. An empty set returns without taking the read lock.
func (s *InstrumentationService) GetInstrumentationResultsWithHashesFor(types []*Type) map[string]InstrumentationDefinition {
	if len(types) == 0 {
		return nil
	}
	return readLocked(s.cache, func() map[string]InstrumentationDefinition {
		out := make(map[string]InstrumentationDefinition)
		for _, t := range types {
			def, ok := definitionFor(t)
			if !ok {
				continue
			}
			for _, h := range def.Hashes {
				out[h] = def
			}
		}
		return out
	})
}

// AddAndGetInstrumentationResult applies appliers to one class and returns
// its definition, or nil when the class is not an initialized class or no
// applier added a point.
func (s *InstrumentationService) AddAndGetInstrumentationResult(ctx context.Context, class *Type, cfg AgentConfig, appliers []InstrumentationApplier) *InstrumentationDefinition {
	if class == nil || !class.IsClass() || len(appliers) == 0 {
		return nil
	}
	_, span := startOperationSpan(ctx, "AddAndGetInstrumentationResult")
	defer span.End()

	var result *InstrumentationDefinition
	_ = s.cache.ExecuteWithWriteLock(func() error {
		if !class.initialized || !class.Attached() {
			return nil
		}
		added := false
		for _, a := range appliers {
			if a.AddInstrumentationPoints(cfg, class) {
				added = true
			}
		}
		if !added {
			return nil
		}
		if def, ok := definitionFor(class); ok {
			result = &def
		}
		return nil
	})
	return result
}

// candidates asks the narrower for the applier's candidate set, falling back
// to every node.
func (s *InstrumentationService) candidates(a InstrumentationApplier) []*Type {
	assignment := a.SensorAssignment()
	if assignment == nil || s.narrower == nil {
		return s.cache.Lookup().FindAll()
	}
	return s.narrower.Narrow(s.cache, assignment)
}

// definitionFor builds the definition of an instrumented class. Callers hold
// a cache lock.
func definitionFor(t *Type) (InstrumentationDefinition, bool) {
	if !t.IsClass() || !t.initialized {
		return InstrumentationDefinition{}, false
	}
	var configs []MethodInstrumentationConfig
	for _, m := range t.Methods() {
		if m.instrumentation != nil {
			configs = append(configs, m.instrumentation.clone())
		}
	}
	if len(configs) == 0 {
		return InstrumentationDefinition{}, false
	}
	return InstrumentationDefinition{
		ClassName:     t.fqn,
		Hashes:        t.Hashes(),
		MethodConfigs: configs,
	}, true
}
