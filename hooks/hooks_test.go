package hooks_test

import (
	"context"
	"errors"
	"testing"

	"github.com/orchestrator-core/orchd"
	"github.com/orchestrator-core/orchd/hooks"
)

func TestRegistry_TriggerBeforeDispatch_StopsAtFirstError(t *testing.T) {
	r := hooks.NewRegistry()
	var calls []int
	r.OnBeforeDispatch(func(ctx context.Context, event orchd.Event) error {
		calls = append(calls, 1)
		return nil
	})
	boom := errors.New("boom")
	r.OnBeforeDispatch(func(ctx context.Context, event orchd.Event) error {
		calls = append(calls, 2)
		return boom
	})
	r.OnBeforeDispatch(func(ctx context.Context, event orchd.Event) error {
		calls = append(calls, 3)
		return nil
	})

	err := r.TriggerBeforeDispatch(context.Background(), orchd.Event{ID: "e1"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected hook chain to stop after the failing hook, got %v", calls)
	}
}

func TestRegistry_TriggerToolCall_RunsAllRegisteredHooks(t *testing.T) {
	r := hooks.NewRegistry()
	var seen []string
	r.OnToolCall(func(ctx context.Context, toolID string, input, output orchd.JSONMap, err error) error {
		seen = append(seen, toolID)
		return nil
	})
	r.OnToolCall(func(ctx context.Context, toolID string, input, output orchd.JSONMap, err error) error {
		seen = append(seen, toolID+"-again")
		return nil
	})

	if err := r.TriggerToolCall(context.Background(), "send_email", nil, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 2 || seen[0] != "send_email" || seen[1] != "send_email-again" {
		t.Fatalf("unexpected hook invocations: %v", seen)
	}
}

func TestLoggingHooks_RegisterAttachesAllThree(t *testing.T) {
	r := hooks.NewRegistry()
	hooks.NewLoggingHooks(orchd.NewNoopLogger()).Register(r)

	if err := r.TriggerBeforeDispatch(context.Background(), orchd.Event{ID: "e1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.TriggerAfterDispatch(context.Background(), orchd.Event{ID: "e1"}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.TriggerToolCall(context.Background(), "t1", nil, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
