// Package toolexec implements the Tool Execution Engine (C4): the
// pending/approved/rejected/executing/completed/failed state machine for
// ToolExecution and the two operations that drive it, execute_tool and
// approve_tool_execution. A tool implementation's error is captured onto
// the execution row and never propagates out of Engine — the
// orchestrator that calls ExecuteTool never has to remember to swallow
// it.
package toolexec

import (
	"context"
	"errors"
	"time"

	"github.com/orchestrator-core/orchd"
	"github.com/orchestrator-core/orchd/hooks"
	"github.com/orchestrator-core/orchd/orchdstate"
	"github.com/orchestrator-core/orchd/store"
)

// Engine drives ToolExecution state transitions against a Store, calling
// into a Registry for tool implementations.
type Engine struct {
	store    store.Store
	registry *orchd.Registry
	logger   orchd.Logger
	hooks    *hooks.Registry
}

// New creates an Engine.
func New(st store.Store, registry *orchd.Registry, logger orchd.Logger) *Engine {
	if logger == nil {
		logger = orchd.NewNoopLogger()
	}
	return &Engine{store: st, registry: registry, logger: logger}
}

// SetHooks attaches a hooks.Registry whose tool-call hook runs after
// every tool implementation invocation. Nil disables it.
func (e *Engine) SetHooks(r *hooks.Registry) {
	e.hooks = r
}

// ExecuteTool resolves the tool definition, creates a pending
// ToolExecution, and either drives it straight to completion
// (requires_human_approval=never) or leaves it pending for an
// out-of-band approval call.
func (e *Engine) ExecuteTool(ctx context.Context, userID, agentID, installationID, toolID string, payload orchd.JSONMap) (orchd.ToolExecution, error) {
	toolDef, err := e.store.GetToolDefinition(ctx, toolID)
	if err != nil {
		return orchd.ToolExecution{}, orchd.NewOrchdErrorWithUser("ExecuteTool", userID, orchd.ErrToolNotFound).
			WithContext("tool_id", toolID)
	}

	exec, err := e.store.CreateToolExecution(ctx, store.CreateToolExecutionParams{
		UserID:         userID,
		AgentID:        agentID,
		InstallationID: installationID,
		ToolID:         toolID,
		Payload:        payload,
		InitialState:   string(orchdstate.Pending),
	})
	if err != nil {
		return orchd.ToolExecution{}, err
	}

	if toolDef.RequiresHumanApproval == orchd.ApprovalNever {
		e.driveToCompletion(ctx, &exec, toolDef)
	}
	// always/optional: stays pending, awaiting approve_tool_execution.

	return exec, nil
}

// ApproveToolExecution records a reviewer's decision on a pending
// ToolExecution. Returns ErrInvalidState if the execution is not
// currently pending — calling it twice on the same execution never
// double-executes the tool.
func (e *Engine) ApproveToolExecution(ctx context.Context, executionID, reviewerID string, decision orchd.ApprovalDecision, comment string) (orchd.ToolExecution, error) {
	exec, err := e.store.GetToolExecution(ctx, executionID)
	if err != nil {
		return orchd.ToolExecution{}, orchd.NewOrchdError("ApproveToolExecution", err)
	}

	if orchdstate.ToolExecutionState(exec.Status) != orchdstate.Pending {
		return orchd.ToolExecution{}, orchd.NewOrchdError("ApproveToolExecution", orchd.ErrInvalidState).
			WithContext("execution_id", executionID).
			WithContext("status", exec.Status)
	}

	if err := e.store.RecordHumanApproval(ctx, orchd.HumanApproval{
		ToolExecutionID: executionID,
		ReviewerID:      reviewerID,
		Decision:        decision,
		Comment:         comment,
	}); err != nil {
		return orchd.ToolExecution{}, err
	}

	switch decision {
	case orchd.DecisionApproved:
		if err := e.transition(ctx, &exec, orchdstate.Approved, nil, nil); err != nil {
			return orchd.ToolExecution{}, err
		}
		toolDef, err := e.store.GetToolDefinition(ctx, exec.ToolID)
		if err != nil {
			return orchd.ToolExecution{}, err
		}
		e.driveToCompletion(ctx, &exec, toolDef)
	case orchd.DecisionRejected:
		if err := e.transition(ctx, &exec, orchdstate.Rejected, nil, nil); err != nil {
			return orchd.ToolExecution{}, err
		}
	}

	return exec, nil
}

// driveToCompletion runs pending/approved -> executing -> {completed,
// failed}, looking up the tool implementation from the registry and
// capturing any error onto the execution row rather than returning it.
func (e *Engine) driveToCompletion(ctx context.Context, exec *orchd.ToolExecution, toolDef orchd.ToolDefinition) {
	if err := e.transition(ctx, exec, orchdstate.Executing, nil, nil); err != nil {
		e.logger.Warn("toolexec: transition to executing failed", "execution_id", exec.ID, "err", err)
		return
	}

	impl, ok := e.registry.GetTool(exec.ToolID)
	if !ok {
		msg := "tool not registered: " + exec.ToolID
		_ = e.transition(ctx, exec, orchdstate.Failed, nil, &msg)
		e.triggerToolCallHook(ctx, exec.ToolID, exec.Payload, nil, errors.New(msg))
		return
	}

	output, err := impl.Execute(ctx, exec.Payload)
	if err != nil {
		msg := err.Error()
		_ = e.transition(ctx, exec, orchdstate.Failed, nil, &msg)
		e.triggerToolCallHook(ctx, exec.ToolID, exec.Payload, nil, err)
		return
	}

	_ = e.transition(ctx, exec, orchdstate.Completed, output, nil)
	e.triggerToolCallHook(ctx, exec.ToolID, exec.Payload, output, nil)
}

func (e *Engine) triggerToolCallHook(ctx context.Context, toolID string, input, output orchd.JSONMap, callErr error) {
	if e.hooks == nil {
		return
	}
	if err := e.hooks.TriggerToolCall(ctx, toolID, input, output, callErr); err != nil {
		e.logger.Warn("toolexec: tool-call hook failed", "tool_id", toolID, "err", err)
	}
}

func (e *Engine) transition(ctx context.Context, exec *orchd.ToolExecution, target orchdstate.ToolExecutionState, output orchd.JSONMap, errMsg *string) error {
	current := orchdstate.ToolExecutionState(exec.Status)
	if !current.CanTransitionTo(target) {
		return orchd.NewOrchdError("toolexec.transition", orchd.ErrInvalidState).
			WithContext("from", current).
			WithContext("to", target)
	}

	if err := e.store.UpdateToolExecutionState(ctx, exec.ID, store.UpdateToolExecutionStateParams{
		State:  string(target),
		Output: output,
		Error:  errMsg,
	}); err != nil {
		return err
	}

	exec.Status = string(target)
	exec.Output = output
	exec.Error = errMsg
	if target == orchdstate.Executing {
		now := timeNow()
		exec.StartedAt = &now
	}
	if target.IsTerminal() {
		now := timeNow()
		exec.FinishedAt = &now
	}
	return nil
}

// timeNow is a seam so tests could substitute a fixed clock without
// reaching for a full clock-interface abstraction.
var timeNow = func() time.Time { return time.Now().UTC() }
