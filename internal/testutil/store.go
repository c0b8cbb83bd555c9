// Package testutil provides an in-memory store.Store fake and small
// fixture builders: no real Postgres, no mocking framework, just a plain
// Go struct behind the same interface the real driver implements.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orchestrator-core/orchd"
	"github.com/orchestrator-core/orchd/store"
)

// MemStore is an in-memory implementation of store.Store. It is safe for
// concurrent use within a single test (guarded by one mutex — table-level
// locking, no row locks, no transactions) and never reproduces the real
// driver's row-locking semantics; it exists so orchestrator/toolexec
// logic can be unit-tested without a database.
type MemStore struct {
	mu sync.Mutex

	users          map[string]bool
	profiles       map[string]orchd.JSONMap
	sharedContexts map[string]orchd.JSONMap
	memories       map[string]orchd.JSONMap // keyed by installation id
	events         map[string][]orchd.Event // keyed by user id, append order
	manifests      map[string]orchd.AgentManifest // keyed by agentID+"@"+version
	installations  map[string]orchd.AgentInstallation // keyed by id
	traces         map[string]orchd.ExecutionTrace
	toolDefs       map[string]orchd.ToolDefinition
	toolExecs      map[string]orchd.ToolExecution
	approvals      map[string]orchd.HumanApproval
	instances      map[string]time.Time
}

// NewMemStore creates an empty MemStore. Call AddUser to seed users.
func NewMemStore() *MemStore {
	return &MemStore{
		users:          make(map[string]bool),
		profiles:       make(map[string]orchd.JSONMap),
		sharedContexts: make(map[string]orchd.JSONMap),
		memories:       make(map[string]orchd.JSONMap),
		events:         make(map[string][]orchd.Event),
		manifests:      make(map[string]orchd.AgentManifest),
		installations:  make(map[string]orchd.AgentInstallation),
		traces:         make(map[string]orchd.ExecutionTrace),
		toolDefs:       make(map[string]orchd.ToolDefinition),
		toolExecs:      make(map[string]orchd.ToolExecution),
		approvals:      make(map[string]orchd.HumanApproval),
		instances:      make(map[string]time.Time),
	}
}

// AddUser seeds a user with an optional profile/shared-context.
func (m *MemStore) AddUser(userID string, profile, sharedContext orchd.JSONMap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = true
	if profile == nil {
		profile = orchd.JSONMap{}
	}
	if sharedContext == nil {
		sharedContext = orchd.JSONMap{}
	}
	m.profiles[userID] = profile
	m.sharedContexts[userID] = sharedContext
}

// AddManifest seeds a manifest.
func (m *MemStore) AddManifest(man orchd.AgentManifest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifests[manifestKey(man.AgentID, man.Version)] = man
}

// AddToolDefinition seeds a tool definition.
func (m *MemStore) AddToolDefinition(td orchd.ToolDefinition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolDefs[td.ToolID] = td
}

func manifestKey(agentID, version string) string { return agentID + "@" + version }

// WithinTx on MemStore has no real atomicity — it's a plain-map fake, not
// a database — but it preserves the contract's shape (fn's context is
// passed straight through, its error is returned as-is) so orchestrator
// logic exercises the same call pattern it would against a real driver.
func (m *MemStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *MemStore) UserExists(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID], nil
}

func (m *MemStore) ReadUserContext(_ context.Context, userID string) (orchd.JSONMap, orchd.JSONMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.users[userID] {
		return nil, nil, store.ErrUserNotFound
	}
	return cloneJSON(m.profiles[userID]), cloneJSON(m.sharedContexts[userID]), nil
}

func (m *MemStore) UpsertSharedContext(_ context.Context, userID string, patch orchd.JSONMap) (orchd.JSONMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	merged := store.ShallowMerge(m.sharedContexts[userID], patch)
	m.sharedContexts[userID] = merged
	return cloneJSON(merged), nil
}

func (m *MemStore) ReadAgentMemory(_ context.Context, installationID string) (orchd.JSONMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.memories[installationID]
	if !ok {
		return orchd.JSONMap{}, nil
	}
	return cloneJSON(mem), nil
}

func (m *MemStore) UpsertAgentMemory(_ context.Context, installationID string, value orchd.JSONMap, fullReplace bool) (orchd.JSONMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fullReplace {
		m.memories[installationID] = cloneJSON(value)
		return cloneJSON(value), nil
	}
	merged := store.ShallowMerge(m.memories[installationID], value)
	m.memories[installationID] = merged
	return cloneJSON(merged), nil
}

func (m *MemStore) AppendEvent(_ context.Context, userID, eventType string, sourceAgent *string, payload orchd.JSONMap) (orchd.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev := orchd.Event{
		ID:          uuid.NewString(),
		UserID:      userID,
		EventType:   eventType,
		SourceAgent: sourceAgent,
		Payload:     cloneJSON(payload),
		CreatedAt:   time.Now().UTC(),
	}
	m.events[userID] = append(m.events[userID], ev)
	return ev, nil
}

func (m *MemStore) ListRecentEvents(_ context.Context, userID string, limit int) ([]orchd.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.events[userID]
	out := make([]orchd.Event, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (m *MemStore) GetManifest(_ context.Context, agentID, version string) (orchd.AgentManifest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	man, ok := m.manifests[manifestKey(agentID, version)]
	if !ok {
		return orchd.AgentManifest{}, store.ErrManifestNotFound
	}
	return man, nil
}

func (m *MemStore) UpsertManifest(_ context.Context, man orchd.AgentManifest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifests[manifestKey(man.AgentID, man.Version)] = man
	return nil
}

func (m *MemStore) FindInstallation(_ context.Context, userID, agentID, version string) (orchd.AgentInstallation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inst := range m.installations {
		if inst.UserID == userID && inst.AgentID == agentID && inst.Version == version {
			return inst, nil
		}
	}
	return orchd.AgentInstallation{}, store.ErrInstallationNotFound
}

func (m *MemStore) ListActiveInstallations(_ context.Context, userID string) ([]orchd.AgentInstallation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []orchd.AgentInstallation
	for _, inst := range m.installations {
		if inst.UserID == userID && inst.Status == orchd.InstallationActive {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) CreateInstallation(_ context.Context, params store.CreateInstallationParams) (orchd.AgentInstallation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inst := range m.installations {
		if inst.UserID == params.UserID && inst.AgentID == params.AgentID && inst.Version == params.Version {
			return orchd.AgentInstallation{}, store.ErrAlreadyInstalled
		}
	}
	now := time.Now().UTC()
	inst := orchd.AgentInstallation{
		ID:        uuid.NewString(),
		UserID:    params.UserID,
		AgentID:   params.AgentID,
		Version:   params.Version,
		Status:    orchd.InstallationActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.installations[inst.ID] = inst
	return inst, nil
}

func (m *MemStore) RecordTrace(_ context.Context, eventID, agentID, installationID string, status orchd.TraceStatus) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	now := time.Now().UTC()
	m.traces[id] = orchd.ExecutionTrace{
		ID:             id,
		EventID:        eventID,
		AgentID:        agentID,
		InstallationID: installationID,
		Status:         status,
		StartedAt:      &now,
	}
	return id, nil
}

func (m *MemStore) FinalizeTrace(_ context.Context, traceID string, params store.UpdateTraceParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tr, ok := m.traces[traceID]
	if !ok {
		return store.ErrTraceNotFound
	}
	now := time.Now().UTC()
	tr.Status = params.Status
	tr.Error = params.Error
	tr.FinishedAt = &now
	m.traces[traceID] = tr
	return nil
}

func (m *MemStore) GetToolDefinition(_ context.Context, toolID string) (orchd.ToolDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	td, ok := m.toolDefs[toolID]
	if !ok {
		return orchd.ToolDefinition{}, store.ErrToolDefNotFound
	}
	return td, nil
}

func (m *MemStore) UpsertToolDefinition(_ context.Context, td orchd.ToolDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolDefs[td.ToolID] = td
	return nil
}

func (m *MemStore) CreateToolExecution(_ context.Context, params store.CreateToolExecutionParams) (orchd.ToolExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	exec := orchd.ToolExecution{
		ID:             uuid.NewString(),
		UserID:         params.UserID,
		AgentID:        params.AgentID,
		InstallationID: params.InstallationID,
		ToolID:         params.ToolID,
		Payload:        cloneJSON(params.Payload),
		Status:         params.InitialState,
		CreatedAt:      now,
	}
	m.toolExecs[exec.ID] = exec
	return exec, nil
}

func (m *MemStore) GetToolExecution(_ context.Context, id string) (orchd.ToolExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exec, ok := m.toolExecs[id]
	if !ok {
		return orchd.ToolExecution{}, store.ErrToolExecNotFound
	}
	return exec, nil
}

func (m *MemStore) UpdateToolExecutionState(_ context.Context, id string, params store.UpdateToolExecutionStateParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exec, ok := m.toolExecs[id]
	if !ok {
		return store.ErrToolExecNotFound
	}
	exec.Status = params.State
	if params.Output != nil {
		exec.Output = params.Output
	}
	exec.Error = params.Error
	now := time.Now().UTC()
	if params.State == "executing" {
		exec.StartedAt = &now
	}
	if params.State == "completed" || params.State == "failed" || params.State == "rejected" {
		exec.FinishedAt = &now
	}
	m.toolExecs[id] = exec
	return nil
}

func (m *MemStore) ListPendingToolExecutions(_ context.Context, userID string) ([]orchd.ToolExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []orchd.ToolExecution
	for _, exec := range m.toolExecs {
		if exec.UserID == userID && exec.Status == "pending" {
			out = append(out, exec)
		}
	}
	return out, nil
}

func (m *MemStore) ListStuckToolExecutions(_ context.Context, horizon time.Time) ([]orchd.ToolExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []orchd.ToolExecution
	for _, exec := range m.toolExecs {
		if exec.Status == "executing" && exec.StartedAt != nil && exec.StartedAt.Before(horizon) {
			out = append(out, exec)
		}
	}
	return out, nil
}

func (m *MemStore) RecordHumanApproval(_ context.Context, approval orchd.HumanApproval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if approval.CreatedAt.IsZero() {
		approval.CreatedAt = time.Now().UTC()
	}
	m.approvals[approval.ToolExecutionID] = approval
	return nil
}

func (m *MemStore) GetHumanApproval(_ context.Context, toolExecutionID string) (orchd.HumanApproval, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.approvals[toolExecutionID]
	return a, ok, nil
}

func (m *MemStore) RegisterInstance(_ context.Context, instanceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[instanceID] = time.Now().UTC()
	return nil
}

func (m *MemStore) Heartbeat(_ context.Context, instanceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[instanceID] = time.Now().UTC()
	return nil
}

func cloneJSON(m orchd.JSONMap) orchd.JSONMap {
	if m == nil {
		return orchd.JSONMap{}
	}
	out := make(orchd.JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var _ store.Store = (*MemStore)(nil)
