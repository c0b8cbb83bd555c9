package pgxv5

import (
	"context"
	"testing"

	"github.com/orchestrator-core/orchd"
	"github.com/orchestrator-core/orchd/internal/testutil"
	"github.com/orchestrator-core/orchd/store"
)

func TestIntegration_Store_UserContextAndSharedMerge(t *testing.T) {
	testutil.RequireIntegration(t)

	db := testutil.NewTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.CleanTables(ctx); err != nil {
		t.Fatalf("CleanTables: %v", err)
	}
	db.SetupTestUser(ctx, t, "user-1")

	s := New(db.Pool)

	exists, err := s.UserExists(ctx, "user-1")
	if err != nil || !exists {
		t.Fatalf("UserExists() = %v, %v; want true, nil", exists, err)
	}

	merged, err := s.UpsertSharedContext(ctx, "user-1", orchd.JSONMap{"nickname": "ada", "prefs": orchd.JSONMap{"theme": "dark"}})
	if err != nil {
		t.Fatalf("UpsertSharedContext: %v", err)
	}
	if merged["nickname"] != "ada" {
		t.Errorf("merged[nickname] = %v, want ada", merged["nickname"])
	}

	// Shallow-merge semantics: patching a sibling key must leave nickname intact.
	merged2, err := s.UpsertSharedContext(ctx, "user-1", orchd.JSONMap{"locale": "en-US"})
	if err != nil {
		t.Fatalf("UpsertSharedContext (2nd patch): %v", err)
	}
	if merged2["nickname"] != "ada" || merged2["locale"] != "en-US" {
		t.Errorf("merged2 = %+v, want both nickname and locale preserved", merged2)
	}

	_, shared, err := s.ReadUserContext(ctx, "user-1")
	if err != nil {
		t.Fatalf("ReadUserContext: %v", err)
	}
	if shared["locale"] != "en-US" {
		t.Errorf("ReadUserContext shared[locale] = %v, want en-US", shared["locale"])
	}
}

func TestIntegration_Store_InstallationLifecycle(t *testing.T) {
	testutil.RequireIntegration(t)

	db := testutil.NewTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.CleanTables(ctx); err != nil {
		t.Fatalf("CleanTables: %v", err)
	}
	db.SetupTestUser(ctx, t, "user-1")

	s := New(db.Pool)

	inst, err := s.CreateInstallation(ctx, store.CreateInstallationParams{UserID: "user-1", AgentID: "welcome-bot", Version: "1.0.0"})
	if err != nil {
		t.Fatalf("CreateInstallation: %v", err)
	}
	if inst.Status != orchd.InstallationActive {
		t.Errorf("Status = %v, want active", inst.Status)
	}

	if _, err := s.CreateInstallation(ctx, store.CreateInstallationParams{UserID: "user-1", AgentID: "welcome-bot", Version: "1.0.0"}); err == nil {
		t.Fatal("expected ErrAlreadyInstalled on duplicate install")
	}

	active, err := s.ListActiveInstallations(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListActiveInstallations: %v", err)
	}
	if len(active) != 1 || active[0].ID != inst.ID {
		t.Fatalf("ListActiveInstallations = %+v, want exactly the created installation", active)
	}

	merged, err := s.UpsertAgentMemory(ctx, inst.ID, orchd.JSONMap{"greeted": true}, true)
	if err != nil {
		t.Fatalf("UpsertAgentMemory (full replace): %v", err)
	}
	if merged["greeted"] != true {
		t.Errorf("memory[greeted] = %v, want true", merged["greeted"])
	}

	merged, err = s.UpsertAgentMemory(ctx, inst.ID, orchd.JSONMap{"last_seen": "today"}, false)
	if err != nil {
		t.Fatalf("UpsertAgentMemory (shallow merge): %v", err)
	}
	if merged["greeted"] != true || merged["last_seen"] != "today" {
		t.Errorf("memory = %+v, want both greeted and last_seen preserved", merged)
	}
}

func TestIntegration_Store_EventAppendWithinTx(t *testing.T) {
	testutil.RequireIntegration(t)

	db := testutil.NewTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.CleanTables(ctx); err != nil {
		t.Fatalf("CleanTables: %v", err)
	}
	db.SetupTestUser(ctx, t, "user-1")

	s := New(db.Pool)

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.AppendEvent(ctx, "user-1", "signup", nil, orchd.JSONMap{"plan": "free"}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}

	events, err := s.ListRecentEvents(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("ListRecentEvents: %v", err)
	}
	if len(events) != 1 || events[0].EventType != "signup" {
		t.Fatalf("events = %+v, want one signup event", events)
	}
}

func TestIntegration_Store_WithinTxRollsBackOnError(t *testing.T) {
	testutil.RequireIntegration(t)

	db := testutil.NewTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.CleanTables(ctx); err != nil {
		t.Fatalf("CleanTables: %v", err)
	}
	db.SetupTestUser(ctx, t, "user-1")

	s := New(db.Pool)

	boom := errFailure{}
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.AppendEvent(ctx, "user-1", "signup", nil, orchd.JSONMap{}); err != nil {
			return err
		}
		return boom
	})
	if err == nil {
		t.Fatal("expected WithinTx to return the inner error")
	}

	events, err := s.ListRecentEvents(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("ListRecentEvents: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events = %+v, want none (rollback should have discarded the append)", events)
	}
}

type errFailure struct{}

func (errFailure) Error() string { return "boom" }

func TestIntegration_Store_ToolExecutionLifecycle(t *testing.T) {
	testutil.RequireIntegration(t)

	db := testutil.NewTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.CleanTables(ctx); err != nil {
		t.Fatalf("CleanTables: %v", err)
	}
	db.SetupTestUser(ctx, t, "user-1")

	s := New(db.Pool)

	inst, err := s.CreateInstallation(ctx, store.CreateInstallationParams{UserID: "user-1", AgentID: "sched-bot", Version: "1.0.0"})
	if err != nil {
		t.Fatalf("CreateInstallation: %v", err)
	}
	if err := s.UpsertToolDefinition(ctx, orchd.ToolDefinition{ToolID: "send_email", RequiresHumanApproval: orchd.ApprovalNever, RiskLevel: orchd.RiskLow}); err != nil {
		t.Fatalf("UpsertToolDefinition: %v", err)
	}

	exec, err := s.CreateToolExecution(ctx, store.CreateToolExecutionParams{
		UserID: "user-1", AgentID: "sched-bot", InstallationID: inst.ID, ToolID: "send_email",
		Payload: orchd.JSONMap{"to": "a@example.com"}, InitialState: "pending",
	})
	if err != nil {
		t.Fatalf("CreateToolExecution: %v", err)
	}

	pending, err := s.ListPendingToolExecutions(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListPendingToolExecutions: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != exec.ID {
		t.Fatalf("ListPendingToolExecutions = %+v, want exactly the created execution", pending)
	}

	if err := s.UpdateToolExecutionState(ctx, exec.ID, store.UpdateToolExecutionStateParams{State: "completed", Output: orchd.JSONMap{"ok": true}}); err != nil {
		t.Fatalf("UpdateToolExecutionState: %v", err)
	}

	got, err := s.GetToolExecution(ctx, exec.ID)
	if err != nil {
		t.Fatalf("GetToolExecution: %v", err)
	}
	if got.Status != "completed" || got.Output["ok"] != true || got.FinishedAt == nil {
		t.Fatalf("got = %+v, want completed with output and FinishedAt set", got)
	}
}
