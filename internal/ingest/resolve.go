package ingest

import (
	"log/slog"
	"strings"

	"github.com/dusk-indust/typecache/internal/classcache"
	"github.com/dusk-indust/typecache/internal/typeparse"
)

// Resolver reconciles the references of one ingest batch before it is
// merged. Parsers qualify every unknown name with the module of the file
// that uses it and guess the kind of a reference from its position, so a
// type imported from another module arrives under the wrong FQN and an
// embedded interface may arrive as a superclass. Merging such a reference
// unchanged would replace the real node, so the resolver rewrites it against
// the types declared in the batch and the types already in the cache.
type Resolver struct {
	declared map[string]classcache.Kind
	bySimple map[string][]string
	lookup   *classcache.LookupService
	logger   *slog.Logger
}

// NewResolver indexes the types declared in results. lookup may be nil.
func NewResolver(results []*typeparse.ParseResult, lookup *classcache.LookupService, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		declared: make(map[string]classcache.Kind),
		bySimple: make(map[string][]string),
		lookup:   lookup,
		logger:   logger,
	}
	for _, res := range results {
		for _, d := range res.Types {
			if !d.Initialized() {
				continue
			}
			if _, seen := r.declared[d.FQN]; !seen {
				simple := simpleName(d.FQN)
				r.bySimple[simple] = append(r.bySimple[simple], d.FQN)
			}
			r.declared[d.FQN] = d.Kind
		}
	}
	return r
}

// kindOf returns the kind of fqn as declared in the batch or stored in the
// cache.
func (r *Resolver) kindOf(fqn string) (classcache.Kind, bool) {
	if k, ok := r.declared[fqn]; ok {
		return k, true
	}
	if r.lookup != nil {
		if t := r.lookup.FindByFQN(fqn); t != nil {
			return t.Kind(), true
		}
	}
	return "", false
}

// resolveName maps a name the parser qualified with the file's own module to
// the single batch declaration with the same simple name, when the guessed
// FQN is unknown.
func (r *Resolver) resolveName(module, fqn string) string {
	if module == "" || !strings.HasPrefix(fqn, module+".") {
		return fqn
	}
	if _, ok := r.kindOf(fqn); ok {
		return fqn
	}
	if candidates := r.bySimple[simpleName(fqn)]; len(candidates) == 1 {
		return candidates[0]
	}
	return fqn
}

// Apply rewrites the descriptions of results in place and returns the number
// of references it changed or dropped.
func (r *Resolver) Apply(results []*typeparse.ParseResult) int {
	changes := 0
	for _, res := range results {
		for _, d := range res.Types {
			changes += r.applyType(res.Module, d)
		}
	}
	return changes
}

func (r *Resolver) applyType(module string, d *classcache.TypeDescription) int {
	changes := 0

	// Types only extended by this file take the kind they are declared with.
	if !d.Initialized() {
		if k, ok := r.kindOf(d.FQN); ok && k != d.Kind {
			d.Kind = k
			changes++
		}
	}

	for _, list := range [][]*classcache.TypeDescription{d.SuperClasses, d.SuperInterfaces, d.RealizedInterfaces, d.Annotations} {
		changes += r.rename(module, list)
	}
	for i := range d.Methods {
		changes += r.rename(module, d.Methods[i].Exceptions)
		changes += r.rename(module, d.Methods[i].Annotations)
	}

	var n int
	switch d.Kind {
	case classcache.KindClass:
		supers, wrongS := r.partition(d.SuperClasses, classcache.KindClass)
		realized, wrongR := r.partition(d.RealizedInterfaces, classcache.KindInterface)
		d.SuperClasses = append(supers, wrongR[classcache.KindClass]...)
		d.RealizedInterfaces = append(realized, wrongS[classcache.KindInterface]...)
		changes += countMoved(wrongS) + countMoved(wrongR)
		n = len(wrongS[classcache.KindAnnotation]) + len(wrongR[classcache.KindAnnotation])
	case classcache.KindInterface:
		var wrong map[classcache.Kind][]*classcache.TypeDescription
		d.SuperInterfaces, wrong = r.partition(d.SuperInterfaces, classcache.KindInterface)
		n = countMoved(wrong)
		changes += n
	}
	if n > 0 {
		r.logger.Debug("dropping references to types of an incompatible kind", "fqn", d.FQN, "count", n)
	}

	var wrong map[classcache.Kind][]*classcache.TypeDescription
	d.Annotations, wrong = r.partition(d.Annotations, classcache.KindAnnotation)
	changes += countMoved(wrong)
	for i := range d.Methods {
		m := &d.Methods[i]
		m.Exceptions, wrong = r.partition(m.Exceptions, classcache.KindClass)
		changes += countMoved(wrong)
		m.Annotations, wrong = r.partition(m.Annotations, classcache.KindAnnotation)
		changes += countMoved(wrong)
	}
	return changes
}

// rename rewrites the FQNs of refs in place.
func (r *Resolver) rename(module string, refs []*classcache.TypeDescription) int {
	changes := 0
	for _, ref := range refs {
		if fqn := r.resolveName(module, ref.FQN); fqn != ref.FQN {
			ref.FQN = fqn
			changes++
		}
	}
	return changes
}

// partition keeps the refs whose kind is unknown or equal to want, stamped
// with want, and groups the rest by their known kind.
func (r *Resolver) partition(refs []*classcache.TypeDescription, want classcache.Kind) ([]*classcache.TypeDescription, map[classcache.Kind][]*classcache.TypeDescription) {
	var keep []*classcache.TypeDescription
	var wrong map[classcache.Kind][]*classcache.TypeDescription
	for _, ref := range refs {
		k, ok := r.kindOf(ref.FQN)
		if !ok || k == want {
			ref.Kind = want
			keep = append(keep, ref)
			continue
		}
		if wrong == nil {
			wrong = make(map[classcache.Kind][]*classcache.TypeDescription)
		}
		ref.Kind = k
		wrong[k] = append(wrong[k], ref)
	}
	return keep, wrong
}

func countMoved(m map[classcache.Kind][]*classcache.TypeDescription) int {
	n := 0
	for _, refs := range m {
		n += len(refs)
	}
	return n
}

func simpleName(fqn string) string {
	return fqn[strings.LastIndexByte(fqn, '.')+1:]
}
