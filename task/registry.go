package task

import (
	"fmt"
	"sort"
)

// Factory builds a fresh workflow instance for one run.
type Factory func() Workflow

// Listing is one public registry entry.
type Listing struct {
	ID      string   `json:"id"`
	Configs []string `json:"configs"`
}

type registration struct {
	id      string
	configs []string
	factory Factory
	hidden  bool
}

// Registry maps workflow identifiers to factories and serves the public
// connector listing.
type Registry struct {
	entries map[string]registration
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]registration{}}
}

// Register adds a workflow to the registry and the public listing.
func (r *Registry) Register(factory Factory) {
	r.add(factory, false)
}

// RegisterHidden adds a workflow that can run but is not listed (test and
// staging connectors).
func (r *Registry) RegisterHidden(factory Factory) {
	r.add(factory, true)
}

func (r *Registry) add(factory Factory, hidden bool) {
	w := factory()
	configs := append([]string(nil), w.ConfigNames()...)
	sort.Strings(configs)
	id := w.ID()
	if _, exists := r.entries[id]; !exists {
		r.order = append(r.order, id)
	}
	r.entries[id] = registration{id: id, configs: configs, factory: factory, hidden: hidden}
}

// New builds a fresh instance of the identified workflow.
func (r *Registry) New(id string) (Workflow, error) {
	reg, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: workflow %q", ErrNotFound, id)
	}
	return reg.factory(), nil
}

// List returns the public entries in registration order, each with its
// sorted configuration names.
func (r *Registry) List() []Listing {
	ret := []Listing{}
	for _, id := range r.order {
		reg := r.entries[id]
		if reg.hidden {
			continue
		}
		ret = append(ret, Listing{ID: reg.id, Configs: append([]string(nil), reg.configs...)})
	}
	return ret
}
