// Package core assembles the SDK types in orchd with the Orchestrator
// (C5) into the top-level entry point, Core. It is a separate package
// from orchd itself so that orchestrator can import orchd for its SDK
// types without creating an import cycle.
package core

import (
	"context"

	"github.com/orchestrator-core/orchd"
	"github.com/orchestrator-core/orchd/cache"
	"github.com/orchestrator-core/orchd/metrics"
	"github.com/orchestrator-core/orchd/orchestrator"
	"github.com/orchestrator-core/orchd/store"
)

// Core is the top-level entry point, exposing the control-surface
// operations as plain Go methods over an Orchestrator: a thin struct
// assembling its collaborators in New and delegating every public method
// straight through to them.
type Core struct {
	orch     *orchestrator.Orchestrator
	store    store.Store
	registry *orchd.Registry
	cfg      orchd.Config
}

// New assembles a Core from a Store, a populated Registry, and a Config.
// cache and rec may be nil (cache.NoOp / metrics.NoOp are used).
func New(st store.Store, registry *orchd.Registry, c cache.Cache, rec metrics.Recorder, cfg orchd.Config) (*Core, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Core{
		orch:     orchestrator.New(st, registry, c, rec, cfg),
		store:    st,
		registry: registry,
		cfg:      cfg,
	}, nil
}

// ListAgents returns every agent_id with at least one registered manifest
// version, as seen by the in-process Registry.
func (c *Core) ListAgents(ctx context.Context) ([]string, error) {
	return c.registry.ListAgentIDs(), nil
}

// GetAgent returns the manifest for one (agentID, version) pair.
func (c *Core) GetAgent(ctx context.Context, agentID, version string) (orchd.AgentManifest, error) {
	return c.store.GetManifest(ctx, agentID, version)
}

// InstallAgent installs an agent for a user.
func (c *Core) InstallAgent(ctx context.Context, userID, agentID, version string, inputs orchd.JSONMap) (orchd.AgentInstallation, error) {
	return c.orch.InstallAgent(ctx, userID, agentID, version, inputs)
}

// ListUserAgents returns a user's active installations.
func (c *Core) ListUserAgents(ctx context.Context, userID string) ([]orchd.AgentInstallation, error) {
	return c.store.ListActiveInstallations(ctx, userID)
}

// CreateEvent dispatches an externally originated event. source_agent is
// always nil: only agents emit events with a source_agent, via the
// orchestrator's internal cascade.
func (c *Core) CreateEvent(ctx context.Context, userID, eventType string, payload orchd.JSONMap) (orchd.Event, error) {
	events, err := c.orch.Dispatch(ctx, userID, eventType, payload, nil, 0)
	if err != nil {
		return orchd.Event{}, err
	}
	return events[0], nil
}

// ListUserEvents returns a user's most recent events, newest first.
func (c *Core) ListUserEvents(ctx context.Context, userID string, limit int) ([]orchd.Event, error) {
	if limit <= 0 {
		limit = c.cfg.RecentEventsLimit
	}
	return c.store.ListRecentEvents(ctx, userID, limit)
}

// ListPendingTools returns a user's pending ToolExecutions awaiting human
// approval.
func (c *Core) ListPendingTools(ctx context.Context, userID string) ([]orchd.ToolExecution, error) {
	return c.store.ListPendingToolExecutions(ctx, userID)
}

// ApproveTool records a reviewer's decision on a pending ToolExecution
// and, if approved, runs it to completion.
func (c *Core) ApproveTool(ctx context.Context, executionID, reviewerID string, decision orchd.ApprovalDecision, comment string) (orchd.ToolExecution, error) {
	return c.orch.ApproveToolExecution(ctx, executionID, reviewerID, decision, comment)
}
