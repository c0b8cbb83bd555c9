package toolexec_test

import (
	"context"
	"testing"

	"github.com/orchestrator-core/orchd"
	"github.com/orchestrator-core/orchd/hooks"
	"github.com/orchestrator-core/orchd/internal/testutil"
	"github.com/orchestrator-core/orchd/orchdstate"
	"github.com/orchestrator-core/orchd/toolexec"
)

func TestExecuteTool_InvokesToolCallHook(t *testing.T) {
	st := testutil.NewMemStore()
	st.AddToolDefinition(testutil.ToolDefinition("send_email", orchd.ApprovalNever))
	reg := orchd.NewRegistry()
	reg.MustRegisterTool("send_email", &testutil.StubTool{ExecuteFunc: func(p orchd.JSONMap) (orchd.JSONMap, error) {
		return orchd.JSONMap{"sent": true}, nil
	}})

	eng := toolexec.New(st, reg, nil)
	hr := hooks.NewRegistry()
	var gotToolID string
	var gotOutput orchd.JSONMap
	hr.OnToolCall(func(ctx context.Context, toolID string, input, output orchd.JSONMap, err error) error {
		gotToolID = toolID
		gotOutput = output
		return nil
	})
	eng.SetHooks(hr)

	if _, err := eng.ExecuteTool(context.Background(), "u1", "a1", "inst1", "send_email", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotToolID != "send_email" {
		t.Fatalf("expected tool-call hook to fire for send_email, got %q", gotToolID)
	}
	if gotOutput["sent"] != true {
		t.Fatalf("expected hook to see tool output, got %v", gotOutput)
	}
}

func TestExecuteTool_NeverRequiresApproval_RunsImmediately(t *testing.T) {
	st := testutil.NewMemStore()
	st.AddToolDefinition(testutil.ToolDefinition("send_email", orchd.ApprovalNever))

	reg := orchd.NewRegistry()
	tool := &testutil.StubTool{ExecuteFunc: func(p orchd.JSONMap) (orchd.JSONMap, error) {
		return orchd.JSONMap{"sent": true}, nil
	}}
	reg.MustRegisterTool("send_email", tool)

	eng := toolexec.New(st, reg, nil)
	exec, err := eng.ExecuteTool(context.Background(), "u1", "a1", "inst1", "send_email", orchd.JSONMap{"to": "x@y.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.Status != string(orchdstate.Completed) {
		t.Fatalf("status = %s, want completed", exec.Status)
	}
	if len(tool.Calls) != 1 {
		t.Fatalf("expected tool to be called exactly once, got %d", len(tool.Calls))
	}
}

func TestExecuteTool_AlwaysRequiresApproval_StaysPending(t *testing.T) {
	st := testutil.NewMemStore()
	st.AddToolDefinition(testutil.ToolDefinition("delete_account", orchd.ApprovalAlways))
	reg := orchd.NewRegistry()
	tool := &testutil.StubTool{}
	reg.MustRegisterTool("delete_account", tool)

	eng := toolexec.New(st, reg, nil)
	exec, err := eng.ExecuteTool(context.Background(), "u1", "a1", "inst1", "delete_account", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.Status != string(orchdstate.Pending) {
		t.Fatalf("status = %s, want pending", exec.Status)
	}
	if len(tool.Calls) != 0 {
		t.Fatalf("tool implementation must not run before approval, got %d calls", len(tool.Calls))
	}
}

func TestExecuteTool_OptionalRequiresApproval(t *testing.T) {
	// Both "always" and "optional" gate on human approval; only "never"
	// skips it.
	st := testutil.NewMemStore()
	st.AddToolDefinition(testutil.ToolDefinition("maybe_risky", orchd.ApprovalOptional))
	reg := orchd.NewRegistry()
	tool := &testutil.StubTool{}
	reg.MustRegisterTool("maybe_risky", tool)

	eng := toolexec.New(st, reg, nil)
	exec, err := eng.ExecuteTool(context.Background(), "u1", "a1", "inst1", "maybe_risky", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.Status != string(orchdstate.Pending) {
		t.Fatalf("status = %s, want pending for optional approval", exec.Status)
	}
}

func TestApproveToolExecution_Rejected(t *testing.T) {
	st := testutil.NewMemStore()
	st.AddToolDefinition(testutil.ToolDefinition("delete_account", orchd.ApprovalAlways))
	reg := orchd.NewRegistry()
	tool := &testutil.StubTool{}
	reg.MustRegisterTool("delete_account", tool)

	eng := toolexec.New(st, reg, nil)
	exec, _ := eng.ExecuteTool(context.Background(), "u1", "a1", "inst1", "delete_account", nil)

	updated, err := eng.ApproveToolExecution(context.Background(), exec.ID, "reviewer1", orchd.DecisionRejected, "no")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != string(orchdstate.Rejected) {
		t.Fatalf("status = %s, want rejected", updated.Status)
	}
	if len(tool.Calls) != 0 {
		t.Fatalf("rejected execution must never invoke the tool, got %d calls", len(tool.Calls))
	}

	if _, err := eng.ApproveToolExecution(context.Background(), exec.ID, "reviewer1", orchd.DecisionApproved, ""); err == nil {
		t.Fatal("expected InvalidState approving an already-terminal execution")
	}
}

func TestApproveToolExecution_IdempotenceNoDoubleExecution(t *testing.T) {
	st := testutil.NewMemStore()
	st.AddToolDefinition(testutil.ToolDefinition("delete_account", orchd.ApprovalAlways))
	reg := orchd.NewRegistry()
	tool := &testutil.StubTool{ExecuteFunc: func(p orchd.JSONMap) (orchd.JSONMap, error) { return orchd.JSONMap{}, nil }}
	reg.MustRegisterTool("delete_account", tool)

	eng := toolexec.New(st, reg, nil)
	exec, _ := eng.ExecuteTool(context.Background(), "u1", "a1", "inst1", "delete_account", nil)

	if _, err := eng.ApproveToolExecution(context.Background(), exec.ID, "reviewer1", orchd.DecisionApproved, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tool.Calls) != 1 {
		t.Fatalf("expected exactly 1 call after first approval, got %d", len(tool.Calls))
	}

	if _, err := eng.ApproveToolExecution(context.Background(), exec.ID, "reviewer1", orchd.DecisionApproved, ""); err == nil {
		t.Fatal("expected InvalidState approving a second time")
	}
	if len(tool.Calls) != 1 {
		t.Fatalf("second approval must not re-execute the tool, got %d calls", len(tool.Calls))
	}
}

func TestExecuteTool_ImplementationErrorDoesNotPropagate(t *testing.T) {
	st := testutil.NewMemStore()
	st.AddToolDefinition(testutil.ToolDefinition("flaky", orchd.ApprovalNever))
	reg := orchd.NewRegistry()
	tool := &testutil.StubTool{ExecuteFunc: func(p orchd.JSONMap) (orchd.JSONMap, error) {
		return nil, errBoom
	}}
	reg.MustRegisterTool("flaky", tool)

	eng := toolexec.New(st, reg, nil)
	exec, err := eng.ExecuteTool(context.Background(), "u1", "a1", "inst1", "flaky", nil)
	if err != nil {
		t.Fatalf("tool implementation errors must not propagate out of ExecuteTool, got %v", err)
	}
	if exec.Status != string(orchdstate.Failed) {
		t.Fatalf("status = %s, want failed", exec.Status)
	}
	if exec.Error == nil || *exec.Error == "" {
		t.Fatal("expected error captured on the execution row")
	}
}

func TestExecuteTool_UnknownTool(t *testing.T) {
	st := testutil.NewMemStore()
	reg := orchd.NewRegistry()
	eng := toolexec.New(st, reg, nil)

	if _, err := eng.ExecuteTool(context.Background(), "u1", "a1", "inst1", "nope", nil); err == nil {
		t.Fatal("expected ToolNotFound")
	}
}

type boomErr struct{}

func (boomErr) Error() string { return "boom" }

var errBoom = boomErr{}
