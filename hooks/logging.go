package hooks

import (
	"context"

	"github.com/orchestrator-core/orchd"
)

// LoggingHooks logs dispatch and tool-call lifecycle events through an
// orchd.Logger, for wiring into a Registry with no other observer
// configured.
type LoggingHooks struct {
	logger orchd.Logger
}

// NewLoggingHooks creates logging hooks writing through logger.
func NewLoggingHooks(logger orchd.Logger) *LoggingHooks {
	return &LoggingHooks{logger: logger}
}

// BeforeDispatch logs the event about to be dispatched.
func (h *LoggingHooks) BeforeDispatch(ctx context.Context, event orchd.Event) error {
	h.logger.Info("dispatching event", "event_id", event.ID, "event_type", event.EventType, "user_id", event.UserID)
	return nil
}

// AfterDispatch logs how many traces a dispatch produced.
func (h *LoggingHooks) AfterDispatch(ctx context.Context, event orchd.Event, traceIDs []string) error {
	h.logger.Info("dispatch finished", "event_id", event.ID, "traces", len(traceIDs))
	return nil
}

// ToolCall logs a tool's outcome.
func (h *LoggingHooks) ToolCall(ctx context.Context, toolID string, input, output orchd.JSONMap, err error) error {
	if err != nil {
		h.logger.Warn("tool call failed", "tool_id", toolID, "err", err)
		return nil
	}
	h.logger.Info("tool call succeeded", "tool_id", toolID)
	return nil
}

// Register attaches every LoggingHooks method to r.
func (h *LoggingHooks) Register(r *Registry) {
	r.OnBeforeDispatch(h.BeforeDispatch)
	r.OnAfterDispatch(h.AfterDispatch)
	r.OnToolCall(h.ToolCall)
}
