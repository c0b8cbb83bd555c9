package orchd

import (
	"context"
	"testing"
)

type regStubAgent struct {
	manifest AgentManifest
}

func (a *regStubAgent) Manifest() AgentManifest { return a.manifest }
func (a *regStubAgent) Onboard(ctx context.Context, inputs JSONMap, initial AgentContext) (JSONMap, error) {
	return JSONMap{}, nil
}
func (a *regStubAgent) HandleEvent(ctx context.Context, event Event, agentCtx AgentContext) (AgentResult, error) {
	return AgentResult{Status: ResultCompleted}, nil
}

func TestRegistry_GetAgent_KeyedByAgentIDAndVersion(t *testing.T) {
	r := NewRegistry()
	v1 := &regStubAgent{manifest: AgentManifest{AgentID: "greeter", Version: "v1"}}
	v2 := &regStubAgent{manifest: AgentManifest{AgentID: "greeter", Version: "v2"}}
	r.MustRegisterAgent(v1)
	r.MustRegisterAgent(v2)

	got, ok := r.GetAgent("greeter", "v1")
	if !ok || got != AgentImplementation(v1) {
		t.Fatalf("GetAgent(greeter, v1) = %v, %v, want v1 implementation", got, ok)
	}

	got, ok = r.GetAgent("greeter", "v2")
	if !ok || got != AgentImplementation(v2) {
		t.Fatalf("GetAgent(greeter, v2) = %v, %v, want v2 implementation", got, ok)
	}

	if _, ok := r.GetAgent("greeter", "v3"); ok {
		t.Fatal("GetAgent(greeter, v3) should not resolve; only v1/v2 are registered")
	}
}

func TestRegistry_RegisterAgent_DuplicateVersionReplaces(t *testing.T) {
	r := NewRegistry()
	first := &regStubAgent{manifest: AgentManifest{AgentID: "greeter", Version: "v1"}}
	second := &regStubAgent{manifest: AgentManifest{AgentID: "greeter", Version: "v1"}}
	r.MustRegisterAgent(first)
	r.MustRegisterAgent(second)

	got, ok := r.GetAgent("greeter", "v1")
	if !ok || got != AgentImplementation(second) {
		t.Fatalf("GetAgent after duplicate registration = %v, %v, want the second registration", got, ok)
	}
}

func TestRegistry_RegisterAgent_RequiresVersion(t *testing.T) {
	r := NewRegistry()
	err := r.RegisterAgent(&regStubAgent{manifest: AgentManifest{AgentID: "greeter"}})
	if err == nil {
		t.Fatal("expected error registering an agent with no Version")
	}
}

func TestRegistry_ListAgentIDs_DedupesAcrossVersions(t *testing.T) {
	r := NewRegistry()
	r.MustRegisterAgent(&regStubAgent{manifest: AgentManifest{AgentID: "greeter", Version: "v1"}})
	r.MustRegisterAgent(&regStubAgent{manifest: AgentManifest{AgentID: "greeter", Version: "v2"}})
	r.MustRegisterAgent(&regStubAgent{manifest: AgentManifest{AgentID: "other", Version: "v1"}})

	ids := r.ListAgentIDs()
	if len(ids) != 2 {
		t.Fatalf("ListAgentIDs = %v, want 2 distinct agent_ids", ids)
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["greeter"] || !seen["other"] {
		t.Fatalf("ListAgentIDs = %v, want greeter and other", ids)
	}
}

func TestRegistry_GetTool(t *testing.T) {
	r := NewRegistry()
	impl := &testToolImpl{}
	if err := r.RegisterTool("send_email", impl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := r.GetTool("send_email")
	if !ok || got != ToolImplementation(impl) {
		t.Fatalf("GetTool(send_email) = %v, %v, want impl", got, ok)
	}
	if _, ok := r.GetTool("nope"); ok {
		t.Fatal("GetTool(nope) should not resolve")
	}
}

type testToolImpl struct{}

func (testToolImpl) Execute(ctx context.Context, payload JSONMap) (JSONMap, error) {
	return JSONMap{}, nil
}
