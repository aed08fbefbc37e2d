package agent

import (
	"fmt"
	"sync"
	"time"
)

// Registry is the static catalog of agents, indexed by ID and by capability.
// It is safe for concurrent use; reads return snapshots, never live pointers.
type Registry struct {
	mu           sync.RWMutex
	agents       map[string]*Agent
	byCapability map[Capability]string // capability -> agent ID
	now          func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		agents:       make(map[string]*Agent),
		byCapability: make(map[Capability]string),
		now:          time.Now,
	}
}

// Register adds an agent to the registry. The agent starts idle with full
// health. Returns an error on duplicate ID, unknown capability, or a
// capability that already has an agent.
func (r *Registry) Register(id, name string, cap Capability, version string) error {
	if !cap.Valid() {
		return fmt.Errorf("unknown capability %q for agent %q", cap, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[id]; exists {
		return fmt.Errorf("agent with ID %q already registered", id)
	}
	if ownerID, exists := r.byCapability[cap]; exists {
		return fmt.Errorf("capability %q already registered to agent %q", cap, ownerID)
	}

	r.agents[id] = &Agent{
		ID:           id,
		Name:         name,
		Capability:   cap,
		Status:       StatusIdle,
		HealthScore:  100,
		LastActivity: r.now(),
		Version:      version,
	}
	r.byCapability[cap] = id
	return nil
}

// Get returns a snapshot of the agent with the given ID.
func (r *Registry) Get(id string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[id]
	if !ok {
		return nil, false
	}
	return cloneAgent(a), true
}

// ByCapability returns a snapshot of the agent registered for the capability.
func (r *Registry) ByCapability(cap Capability) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byCapability[cap]
	if !ok {
		return nil, false
	}
	return cloneAgent(r.agents[id]), true
}

// All returns snapshots of every registered agent.
func (r *Registry) All() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		agents = append(agents, cloneAgent(a))
	}
	return agents
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// SetStatus updates an agent's status and touches its activity timestamp.
func (r *Registry) SetStatus(id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[id]
	if !ok {
		return fmt.Errorf("agent %q not found", id)
	}

	a.Status = status
	a.LastActivity = r.now()
	return nil
}

// SetHealth overwrites an agent's health score. Written only by the health
// monitor; the scheduler never reads it for admission decisions.
func (r *Registry) SetHealth(id string, score int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[id]
	if !ok {
		return fmt.Errorf("agent %q not found", id)
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	a.HealthScore = score
	return nil
}

// Touch marks the agent as active now, restoring full health.
func (r *Registry) Touch(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[id]
	if !ok {
		return fmt.Errorf("agent %q not found", id)
	}

	a.LastActivity = r.now()
	a.HealthScore = 100
	return nil
}

// SetClock overrides the registry's time source. Test hook.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}
