package tools

import (
	"sync"

	"github.com/mb0/glob"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Catalog is the read side of a tool registry: lookup by exact name and a
// stable, registration-ordered listing.
type Catalog interface {
	Get(name string) (Tool, bool)
	List() []Tool
}

// RegisterHook is called after a tool has been registered. replaced is true
// when the tool overwrote an existing entry with the same name.
type RegisterHook func(t Tool, replaced bool)

// Registry is a mutable, thread-safe tool catalog. Registering a tool under
// an existing name overwrites the entry in place, keeping its original
// position in the listing.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
	hooks []RegisterHook
}

var _ Catalog = (*Registry)(nil)

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{
		tools: make(map[string]Tool),
	}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// OnRegister adds a hook that observes registrations.
func (r *Registry) OnRegister(h RegisterHook) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
}

// Register inserts or overwrites the tool keyed by its name.
func (r *Registry) Register(t Tool) {
	if t == nil {
		log.Warn().Msg("tools: ignoring nil tool registration")
		return
	}

	r.mu.Lock()
	name := t.Name()
	_, replaced := r.tools[name]
	if !replaced {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
	hooks := append([]RegisterHook(nil), r.hooks...)
	r.mu.Unlock()

	log.Debug().Str("tool", name).Bool("replaced", replaced).Msg("tools: registered")
	for _, h := range hooks {
		h(t, replaced)
	}
}

// Get returns the tool registered under exactly name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the tools in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		ret = append(ret, r.tools[name])
	}
	return ret
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Snapshot returns an immutable copy of the current catalog. Loops hold a
// snapshot so that a registry can be shared between concurrent runs without
// locking.
func (r *Registry) Snapshot() *Snapshot {
	return NewSnapshot(r)
}

// Snapshot is a read-only catalog.
type Snapshot struct {
	byName map[string]Tool
	list   []Tool
}

var _ Catalog = (*Snapshot)(nil)

// NewSnapshot copies the listing of c. A nil catalog yields an empty
// snapshot.
func NewSnapshot(c Catalog) *Snapshot {
	s := &Snapshot{byName: map[string]Tool{}}
	if c == nil {
		return s
	}
	if existing, ok := c.(*Snapshot); ok {
		return existing
	}
	for _, t := range c.List() {
		s.add(t)
	}
	return s
}

func (s *Snapshot) add(t Tool) {
	if _, ok := s.byName[t.Name()]; ok {
		for i, existing := range s.list {
			if existing.Name() == t.Name() {
				s.list[i] = t
			}
		}
	} else {
		s.list = append(s.list, t)
	}
	s.byName[t.Name()] = t
}

func (s *Snapshot) Get(name string) (Tool, bool) {
	t, ok := s.byName[name]
	return t, ok
}

func (s *Snapshot) List() []Tool {
	return append([]Tool(nil), s.list...)
}

// Names returns the tool names of c in listing order.
func Names(c Catalog) []string {
	var ret []string
	for _, t := range c.List() {
		ret = append(ret, t.Name())
	}
	return ret
}

// Filter returns a snapshot of c restricted to the tools whose name matches
// at least one of the glob patterns. No patterns keeps every tool.
func Filter(c Catalog, patterns ...string) (*Snapshot, error) {
	if len(patterns) == 0 {
		return NewSnapshot(c), nil
	}
	s := &Snapshot{byName: map[string]Tool{}}
	for _, t := range c.List() {
		for _, p := range patterns {
			matching, err := glob.Match(p, t.Name())
			if err != nil {
				return nil, errors.Wrapf(err, "invalid tool pattern %q", p)
			}
			if matching {
				s.add(t)
				break
			}
		}
	}
	return s, nil
}
