package agent

import (
	"errors"
	"fmt"
	"sync"
)

var ErrAgentNotFound = errors.New("agent not found")

// Registry exposes hosted agents to HTTP handlers, keyed by name.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	agents map[string]Agent
}

// NewRegistry returns a registry preloaded with the supplied agents.
func NewRegistry(agents ...Agent) (*Registry, error) {
	r := &Registry{agents: make(map[string]Agent, len(agents))}
	for _, a := range agents {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an agent. Names must be unique and non-empty.
func (r *Registry) Register(a Agent) error {
	if a == nil {
		return errors.New("agent is nil")
	}
	name := a.Name()
	if name == "" {
		return errors.New("agent name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[name]; exists {
		return fmt.Errorf("agent %s already registered", name)
	}
	r.agents[name] = a
	r.order = append(r.order, name)
	return nil
}

// List returns agents in registration order.
func (r *Registry) List() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.agents[name])
	}
	return out
}

// Find looks up an agent by name.
func (r *Registry) Find(name string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	return a, ok
}
