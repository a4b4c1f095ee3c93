package registry

import (
	"sort"
	"strings"
)

// Registry is an immutable index of source definitions. It is built once
// at load time and safe for concurrent use.
type Registry struct {
	defs []Definition
	byID map[string]*Definition
}

func newRegistry(defs []Definition) *Registry {
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	byID := make(map[string]*Definition, len(defs))
	for i := range defs {
		byID[defs[i].ID] = &defs[i]
	}
	return &Registry{defs: defs, byID: byID}
}

// New builds a registry from already-validated definitions. Intended for
// tests that assemble synthetic source sets.
func New(defs []Definition) *Registry {
	cp := make([]Definition, len(defs))
	copy(cp, defs)
	return newRegistry(cp)
}

// Get returns the definition with the given id, or nil.
func (r *Registry) Get(id string) *Definition {
	return r.byID[id]
}

// All returns every loaded definition, ordered by id.
func (r *Registry) All() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Active returns every active definition, ordered by id.
func (r *Registry) Active() []Definition {
	var out []Definition
	for _, d := range r.defs {
		if d.IsActive {
			out = append(out, d)
		}
	}
	return out
}

// Filter returns definitions matching the given jurisdiction and/or tag.
// Empty arguments match everything.
func (r *Registry) Filter(jurisdiction, tag string) []Definition {
	var out []Definition
	for _, d := range r.defs {
		if jurisdiction != "" && !strings.EqualFold(d.Jurisdiction, jurisdiction) {
			continue
		}
		if tag != "" && !d.HasTag(tag) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Len returns the number of loaded definitions.
func (r *Registry) Len() int { return len(r.defs) }
