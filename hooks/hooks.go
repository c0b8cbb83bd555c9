// Package hooks lets a caller observe dispatch and tool-execution
// lifecycle events without modifying orchestrator/toolexec logic. Every
// hook can return an error; for before-hooks that aborts the operation,
// for after-hooks it is only ever logged (the operation already
// happened, there is nothing left to abort).
package hooks

import (
	"context"
	"sync"

	"github.com/orchestrator-core/orchd"
)

// BeforeDispatchHook runs before an event is dispatched to subscribed
// agents. Returning an error aborts the dispatch before any agent runs.
type BeforeDispatchHook func(ctx context.Context, event orchd.Event) error

// AfterDispatchHook runs after a dispatch's cascade frame finishes, with
// the ids of the ExecutionTraces produced at this depth.
type AfterDispatchHook func(ctx context.Context, event orchd.Event, traceIDs []string) error

// ToolCallHook runs after a tool implementation executes, successfully
// or not.
type ToolCallHook func(ctx context.Context, toolID string, input orchd.JSONMap, output orchd.JSONMap, err error) error

// Registry holds registered hooks and fans out Trigger calls to all of
// them, in registration order.
type Registry struct {
	mu             sync.RWMutex
	beforeDispatch []BeforeDispatchHook
	afterDispatch  []AfterDispatchHook
	toolCall       []ToolCallHook
}

// NewRegistry creates an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// OnBeforeDispatch registers a hook run before dispatch.
func (r *Registry) OnBeforeDispatch(hook BeforeDispatchHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeDispatch = append(r.beforeDispatch, hook)
}

// OnAfterDispatch registers a hook run after dispatch.
func (r *Registry) OnAfterDispatch(hook AfterDispatchHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterDispatch = append(r.afterDispatch, hook)
}

// OnToolCall registers a hook run after a tool implementation executes.
func (r *Registry) OnToolCall(hook ToolCallHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolCall = append(r.toolCall, hook)
}

// TriggerBeforeDispatch runs every registered before-dispatch hook,
// stopping at the first error.
func (r *Registry) TriggerBeforeDispatch(ctx context.Context, event orchd.Event) error {
	r.mu.RLock()
	hooks := append([]BeforeDispatchHook(nil), r.beforeDispatch...)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterDispatch runs every registered after-dispatch hook,
// stopping at the first error.
func (r *Registry) TriggerAfterDispatch(ctx context.Context, event orchd.Event, traceIDs []string) error {
	r.mu.RLock()
	hooks := append([]AfterDispatchHook(nil), r.afterDispatch...)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, event, traceIDs); err != nil {
			return err
		}
	}
	return nil
}

// TriggerToolCall runs every registered tool-call hook, stopping at the
// first error.
func (r *Registry) TriggerToolCall(ctx context.Context, toolID string, input, output orchd.JSONMap, callErr error) error {
	r.mu.RLock()
	hooks := append([]ToolCallHook(nil), r.toolCall...)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, toolID, input, output, callErr); err != nil {
			return err
		}
	}
	return nil
}
