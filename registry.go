package orchd

import (
	"fmt"
	"sync"
)

// Registry is the Agent Registry (C1): a process-local mapping from
// (agent_id, version) to an AgentImplementation, plus a parallel mapping
// of registered ToolImplementations keyed by tool_id.
//
// Registry is scoped to one instance rather than held in package-level
// globals: a multi-tenant orchestration core must not leak registrations
// across Registry/Core instances sharing a process (tests exercising two
// differently-configured cores in the same binary would otherwise
// interfere with each other through shared package state).
type Registry struct {
	mu     sync.RWMutex
	agents map[string]AgentImplementation // keyed by agentKey(agent_id, version)
	tools  map[string]ToolImplementation  // keyed by tool_id
}

// agentKey joins an agent_id and version into one Registry map key. Two
// versions of the same agent are distinct registrations.
func agentKey(agentID, version string) string {
	return agentID + ":" + version
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]AgentImplementation),
		tools:  make(map[string]ToolImplementation),
	}
}

// RegisterAgent adds an agent implementation, keyed by its manifest's
// (AgentID, Version). Registering a duplicate (AgentID, Version) replaces
// the prior registration; a second version of the same AgentID is a
// separate registration, resolved independently by GetAgent.
func (r *Registry) RegisterAgent(impl AgentImplementation) error {
	if impl == nil {
		return NewOrchdError("Registry.RegisterAgent", ErrInvalidConfig).
			WithContext("reason", "implementation is nil")
	}
	m := impl.Manifest()
	if m.AgentID == "" {
		return NewOrchdError("Registry.RegisterAgent", ErrInvalidConfig).
			WithContext("reason", "manifest.AgentID must not be empty")
	}
	if m.Version == "" {
		return NewOrchdError("Registry.RegisterAgent", ErrInvalidConfig).
			WithContext("reason", "manifest.Version must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agentKey(m.AgentID, m.Version)] = impl
	return nil
}

// MustRegisterAgent panics if RegisterAgent fails. Convenience for
// program-startup registration where a bad manifest is a coding error.
func (r *Registry) MustRegisterAgent(impl AgentImplementation) {
	if err := r.RegisterAgent(impl); err != nil {
		panic(fmt.Sprintf("orchd: MustRegisterAgent: %v", err))
	}
}

// GetAgent looks up a registered agent implementation by (agent_id,
// version). Two installations of the same agent_id at different versions
// resolve to their own, independently registered implementations.
func (r *Registry) GetAgent(agentID, version string) (AgentImplementation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	impl, ok := r.agents[agentKey(agentID, version)]
	return impl, ok
}

// ListAgentIDs returns every distinct registered agent_id, regardless of
// how many versions are registered under it. Order is unspecified.
func (r *Registry) ListAgentIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{}, len(r.agents))
	ids := make([]string, 0, len(r.agents))
	for _, impl := range r.agents {
		id := impl.Manifest().AgentID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// RegisterTool adds a tool implementation keyed by tool_id.
func (r *Registry) RegisterTool(toolID string, impl ToolImplementation) error {
	if toolID == "" {
		return NewOrchdError("Registry.RegisterTool", ErrInvalidConfig).
			WithContext("reason", "toolID must not be empty")
	}
	if impl == nil {
		return NewOrchdError("Registry.RegisterTool", ErrInvalidConfig).
			WithContext("reason", "implementation is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[toolID] = impl
	return nil
}

// MustRegisterTool panics if RegisterTool fails.
func (r *Registry) MustRegisterTool(toolID string, impl ToolImplementation) {
	if err := r.RegisterTool(toolID, impl); err != nil {
		panic(fmt.Sprintf("orchd: MustRegisterTool: %v", err))
	}
}

// GetTool looks up a registered tool implementation by tool_id.
func (r *Registry) GetTool(toolID string) (ToolImplementation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	impl, ok := r.tools[toolID]
	return impl, ok
}

// ListToolIDs returns every registered tool_id. Order is unspecified.
func (r *Registry) ListToolIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	return ids
}
