package testutil

import (
	"context"

	"github.com/orchestrator-core/orchd"
)

// Manifest builds a minimal active manifest, overridable via opts.
func Manifest(agentID, version string, opts ...func(*orchd.AgentManifest)) orchd.AgentManifest {
	m := orchd.AgentManifest{
		AgentID: agentID,
		Version: version,
		Name:    agentID,
		Status:  orchd.ManifestActive,
		Permissions: orchd.Permissions{
			ReadSharedContext:  true,
			WriteSharedContext: true,
		},
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// WithSubscribedEvents sets a manifest's subscribed_events.
func WithSubscribedEvents(events ...string) func(*orchd.AgentManifest) {
	return func(m *orchd.AgentManifest) { m.SubscribedEvents = events }
}

// WithEmittedEvents sets a manifest's emitted_events.
func WithEmittedEvents(events ...string) func(*orchd.AgentManifest) {
	return func(m *orchd.AgentManifest) { m.EmittedEvents = events }
}

// WithWriteSharedContext overrides the write_shared_context permission.
func WithWriteSharedContext(allowed bool) func(*orchd.AgentManifest) {
	return func(m *orchd.AgentManifest) { m.Permissions.WriteSharedContext = allowed }
}

// WithTools sets a manifest's declared tools.
func WithTools(tools ...string) func(*orchd.AgentManifest) {
	return func(m *orchd.AgentManifest) { m.Tools = tools }
}

// ToolDefinition builds a minimal tool definition.
func ToolDefinition(toolID string, approval orchd.ApprovalRequirement) orchd.ToolDefinition {
	return orchd.ToolDefinition{
		ToolID:                toolID,
		Description:           toolID,
		RequiresHumanApproval: approval,
		RiskLevel:             orchd.RiskLow,
	}
}

// StubAgent is a minimal AgentImplementation for tests: it returns a
// fixed AgentResult from HandleEvent and records every call it receives.
type StubAgent struct {
	ManifestValue orchd.AgentManifest
	OnboardFunc   func(inputs orchd.JSONMap, initial orchd.AgentContext) (orchd.JSONMap, error)
	HandleFunc    func(event orchd.Event, ctx orchd.AgentContext) (orchd.AgentResult, error)

	Calls []orchd.Event // every event passed to HandleEvent, in order
}

func (a *StubAgent) Manifest() orchd.AgentManifest { return a.ManifestValue }

func (a *StubAgent) Onboard(_ context.Context, inputs orchd.JSONMap, initial orchd.AgentContext) (orchd.JSONMap, error) {
	if a.OnboardFunc != nil {
		return a.OnboardFunc(inputs, initial)
	}
	return orchd.JSONMap{}, nil
}

func (a *StubAgent) HandleEvent(_ context.Context, event orchd.Event, agentCtx orchd.AgentContext) (orchd.AgentResult, error) {
	a.Calls = append(a.Calls, event)
	if a.HandleFunc != nil {
		return a.HandleFunc(event, agentCtx)
	}
	return orchd.AgentResult{Status: orchd.ResultCompleted}, nil
}

var _ orchd.AgentImplementation = (*StubAgent)(nil)

// StubTool is a minimal ToolImplementation for tests.
type StubTool struct {
	ExecuteFunc func(payload orchd.JSONMap) (orchd.JSONMap, error)
	Calls       []orchd.JSONMap
}

func (t *StubTool) Execute(_ context.Context, payload orchd.JSONMap) (orchd.JSONMap, error) {
	t.Calls = append(t.Calls, payload)
	if t.ExecuteFunc != nil {
		return t.ExecuteFunc(payload)
	}
	return orchd.JSONMap{}, nil
}

var _ orchd.ToolImplementation = (*StubTool)(nil)
