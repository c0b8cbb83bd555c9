package core

import (
	"context"
	"testing"

	"github.com/orchestrator-core/orchd"
	"github.com/orchestrator-core/orchd/cache"
	"github.com/orchestrator-core/orchd/internal/testutil"
	"github.com/orchestrator-core/orchd/metrics"
)

func newTestCore(t *testing.T) (*Core, *testutil.MemStore, *orchd.Registry) {
	t.Helper()
	st := testutil.NewMemStore()
	reg := orchd.NewRegistry()
	c, err := New(st, reg, cache.NoOp{}, metrics.NoOp{}, orchd.Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, st, reg
}

func TestCore_InstallAgentAndCreateEvent(t *testing.T) {
	c, st, reg := newTestCore(t)
	st.AddUser("u1", nil, nil)
	st.AddManifest(testutil.Manifest("greeter", "v1", testutil.WithSubscribedEvents("tick")))
	reg.MustRegisterAgent(&testutil.StubAgent{
		ManifestValue: testutil.Manifest("greeter", "v1", testutil.WithSubscribedEvents("tick")),
	})

	ctx := context.Background()
	if _, err := c.InstallAgent(ctx, "u1", "greeter", "v1", orchd.JSONMap{}); err != nil {
		t.Fatalf("InstallAgent: %v", err)
	}

	installs, err := c.ListUserAgents(ctx, "u1")
	if err != nil {
		t.Fatalf("ListUserAgents: %v", err)
	}
	if len(installs) != 1 {
		t.Fatalf("ListUserAgents = %d installations, want 1", len(installs))
	}

	event, err := c.CreateEvent(ctx, "u1", "tick", orchd.JSONMap{"n": 1})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if event.SourceAgent != nil {
		t.Fatal("CreateEvent must dispatch with source_agent=nil")
	}

	events, err := c.ListUserEvents(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("ListUserEvents: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected at least the created event")
	}
}

func TestCore_ListAgents(t *testing.T) {
	c, _, reg := newTestCore(t)
	reg.MustRegisterAgent(&testutil.StubAgent{ManifestValue: testutil.Manifest("greeter", "v1")})
	reg.MustRegisterAgent(&testutil.StubAgent{ManifestValue: testutil.Manifest("greeter", "v2")})

	ids, err := c.ListAgents(context.Background())
	if err != nil {
		t.Fatalf("ListAgents: %v", err)
	}
	if len(ids) != 1 || ids[0] != "greeter" {
		t.Fatalf("ListAgents = %v, want [greeter]", ids)
	}
}

func TestCore_GetAgent(t *testing.T) {
	c, st, _ := newTestCore(t)
	st.AddManifest(testutil.Manifest("greeter", "v1"))

	m, err := c.GetAgent(context.Background(), "greeter", "v1")
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if m.AgentID != "greeter" || m.Version != "v1" {
		t.Fatalf("GetAgent = %+v, want greeter@v1", m)
	}
}
