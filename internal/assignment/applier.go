package assignment

import (
	"fmt"

	"github.com/dusk-indust/typecache/internal/classcache"
)

var (
	_ classcache.InstrumentationApplier = (*MethodApplier)(nil)
	_ classcache.InstrumentationApplier = (*ExceptionApplier)(nil)
)

// New returns the applier matching the assignment's sensor kind.
func New(sa *classcache.SensorAssignment) (classcache.InstrumentationApplier, error) {
	switch sa.Kind {
	case "", classcache.SensorMethod:
		return NewMethodApplier(sa), nil
	case classcache.SensorException:
		return NewExceptionApplier(sa), nil
	default:
		return nil, fmt.Errorf("unknown sensor kind %q for sensor %s", sa.Kind, sa.SensorID)
	}
}

// NewAll builds one applier per assignment.
func NewAll(assignments []classcache.SensorAssignment) ([]classcache.InstrumentationApplier, error) {
	out := make([]classcache.InstrumentationApplier, 0, len(assignments))
	for i := range assignments {
		a, err := New(&assignments[i])
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// MethodApplier binds a method sensor to every method matching its
// assignment.
type MethodApplier struct {
	assignment *classcache.SensorAssignment
	filter     Filter
}

// NewMethodApplier returns an applier for sa.
func NewMethodApplier(sa *classcache.SensorAssignment) *MethodApplier {
	return &MethodApplier{assignment: sa}
}

// SensorAssignment returns the rule this applier was built from.
func (a *MethodApplier) SensorAssignment() *classcache.SensorAssignment { return a.assignment }

// AddInstrumentationPoints reports true when at least one method of class
// carries the sensor afterwards, including methods that already had it.
func (a *MethodApplier) AddInstrumentationPoints(_ classcache.AgentConfig, class *classcache.Type) bool {
	if !a.filter.matchesClass(a.assignment, class, false) {
		return false
	}
	matched := false
	for _, m := range class.Methods() {
		if !a.filter.MatchesMethod(a.assignment, m) {
			continue
		}
		pointFor(m).AddSensor(a.assignment.SensorID)
		matched = true
	}
	return matched
}

// RemoveInstrumentationPoints drops this applier's sensor from the
// matching methods of class.
func (a *MethodApplier) RemoveInstrumentationPoints(class *classcache.Type) bool {
	if !a.filter.matchesClass(a.assignment, class, false) {
		return false
	}
	removed := false
	for _, m := range class.Methods() {
		cfg := m.InstrumentationConfig()
		if cfg == nil || !a.filter.MatchesMethod(a.assignment, m) {
			continue
		}
		if cfg.RemoveSensor(a.assignment.SensorID) {
			removed = true
		}
		if cfg.Empty() {
			m.ClearInstrumentationConfig()
		}
	}
	return removed
}

// ExceptionApplier marks the constructors of matching exception classes.
type ExceptionApplier struct {
	assignment *classcache.SensorAssignment
	filter     Filter
}

// NewExceptionApplier returns an applier for sa.
func NewExceptionApplier(sa *classcache.SensorAssignment) *ExceptionApplier {
	return &ExceptionApplier{assignment: sa}
}

// SensorAssignment returns the rule this applier was built from.
func (a *ExceptionApplier) SensorAssignment() *classcache.SensorAssignment { return a.assignment }

// AddInstrumentationPoints marks the constructors of a matching exception
// class for the exception sensor.
func (a *ExceptionApplier) AddInstrumentationPoints(_ classcache.AgentConfig, class *classcache.Type) bool {
	if !a.matches(class) {
		return false
	}
	matched := false
	for _, m := range class.Methods() {
		if !m.IsConstructor() {
			continue
		}
		cfg := pointFor(m)
		cfg.AddSensor(a.assignment.SensorID)
		cfg.ExceptionSensor = true
		matched = true
	}
	return matched
}

// RemoveInstrumentationPoints clears the exception sensor from the
// constructors of class.
func (a *ExceptionApplier) RemoveInstrumentationPoints(class *classcache.Type) bool {
	if !a.matches(class) {
		return false
	}
	removed := false
	for _, m := range class.Methods() {
		cfg := m.InstrumentationConfig()
		if cfg == nil || !m.IsConstructor() {
			continue
		}
		if cfg.RemoveSensor(a.assignment.SensorID) || cfg.ExceptionSensor {
			removed = true
		}
		cfg.ExceptionSensor = false
		if cfg.Empty() {
			m.ClearInstrumentationConfig()
		}
	}
	return removed
}

func (a *ExceptionApplier) matches(class *classcache.Type) bool {
	return class.IsException() && a.filter.MatchesClass(a.assignment, class)
}

// pointFor returns the instrumentation point of m, creating it on demand.
func pointFor(m *classcache.Method) *classcache.MethodInstrumentationConfig {
	cfg := m.InstrumentationConfig()
	if cfg == nil {
		cfg = classcache.NewMethodInstrumentationConfig(m)
		m.SetInstrumentationConfig(cfg)
	}
	return cfg
}
