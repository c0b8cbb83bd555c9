// Package orchestrator implements the Orchestrator (C5): the agent
// install flow and the bounded, cascading event dispatch algorithm,
// including the commit-then-cascade transaction boundary, per-event
// shared-context snapshot semantics, self-loop prevention, and
// partial-failure isolation.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/orchestrator-core/orchd"
	"github.com/orchestrator-core/orchd/cache"
	"github.com/orchestrator-core/orchd/hooks"
	"github.com/orchestrator-core/orchd/manifestvalidate"
	"github.com/orchestrator-core/orchd/metrics"
	"github.com/orchestrator-core/orchd/orchdstate"
	"github.com/orchestrator-core/orchd/store"
	"github.com/orchestrator-core/orchd/toolexec"
)

// Orchestrator wires the registry, store, cache, and tool engine together
// into the install and dispatch operations.
type Orchestrator struct {
	store    store.Store
	registry *orchd.Registry
	cache    cache.Cache
	tools    *toolexec.Engine
	metrics  metrics.Recorder
	logger   orchd.Logger
	cfg      orchd.Config
	locks    *userLocks
	hooks    *hooks.Registry
}

// SetHooks attaches a hooks.Registry whose before/after-dispatch hooks
// run around Dispatch. Nil disables hook invocation entirely (the
// zero-value Orchestrator from New already behaves this way).
func (o *Orchestrator) SetHooks(r *hooks.Registry) {
	o.hooks = r
	o.tools.SetHooks(r)
}

// New creates an Orchestrator. cfg must already have SetDefaults/Validate
// applied. A nil cache uses cache.NoOp; a nil metrics.Recorder uses
// metrics.NoOp.
func New(st store.Store, registry *orchd.Registry, c cache.Cache, rec metrics.Recorder, cfg orchd.Config) *Orchestrator {
	if c == nil {
		c = cache.NoOp{}
	}
	if rec == nil {
		rec = metrics.NoOp{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = orchd.NewNoopLogger()
	}
	return &Orchestrator{
		store:    st,
		registry: registry,
		cache:    c,
		tools:    toolexec.New(st, registry, logger),
		metrics:  rec,
		logger:   logger,
		cfg:      cfg,
		locks:    newUserLocks(),
	}
}

// ApproveToolExecution delegates to the Orchestrator's tool engine. Exposed
// here so callers only need to hold an Orchestrator, not a separate
// toolexec.Engine.
func (o *Orchestrator) ApproveToolExecution(ctx context.Context, executionID, reviewerID string, decision orchd.ApprovalDecision, comment string) (orchd.ToolExecution, error) {
	exec, err := o.tools.ApproveToolExecution(ctx, executionID, reviewerID, decision, comment)
	if err == nil && orchdstate.ToolExecutionState(exec.Status).IsTerminal() {
		o.metrics.ToolExecutionFinalized(exec.Status)
	}
	return exec, err
}

// InstallAgent validates the manifest and user, runs the agent's Onboard
// hook inside the installation's commit, and activates the installation.
func (o *Orchestrator) InstallAgent(ctx context.Context, userID, agentID, version string, inputs orchd.JSONMap) (orchd.AgentInstallation, error) {
	manifest, err := o.getManifest(ctx, agentID, version)
	if err != nil {
		return orchd.AgentInstallation{}, err
	}
	if manifest.Status != orchd.ManifestActive {
		return orchd.AgentInstallation{}, orchd.NewOrchdErrorWithUser("InstallAgent", userID, orchd.ErrManifestNotFound).
			WithContext("reason", "manifest is not active").
			WithContext("status", manifest.Status)
	}

	exists, err := o.store.UserExists(ctx, userID)
	if err != nil {
		return orchd.AgentInstallation{}, err
	}
	if !exists {
		return orchd.AgentInstallation{}, orchd.NewOrchdErrorWithUser("InstallAgent", userID, orchd.ErrUserNotFound)
	}

	if _, err := o.store.FindInstallation(ctx, userID, agentID, version); err == nil {
		return orchd.AgentInstallation{}, orchd.NewOrchdErrorWithUser("InstallAgent", userID, orchd.ErrAlreadyInstalled)
	} else if !errors.Is(err, store.ErrInstallationNotFound) {
		return orchd.AgentInstallation{}, err
	}

	impl, ok := o.registry.GetAgent(agentID, version)
	if !ok {
		return orchd.AgentInstallation{}, orchd.NewOrchdErrorWithUser("InstallAgent", userID, orchd.ErrAgentNotRegistered).
			WithContext("agent_id", agentID).
			WithContext("version", version)
	}

	if err := manifestvalidate.Inputs(manifest.InputsSchema, inputs); err != nil {
		return orchd.AgentInstallation{}, orchd.NewOrchdErrorWithUser("InstallAgent", userID, orchd.ErrInvalidInputs).
			WithContext("agent_id", agentID).
			WithContext("detail", err.Error())
	}

	profile, sharedContext, err := o.store.ReadUserContext(ctx, userID)
	if err != nil {
		return orchd.AgentInstallation{}, err
	}

	var installation orchd.AgentInstallation
	err = o.store.WithinTx(ctx, func(ctx context.Context) error {
		inst, err := o.store.CreateInstallation(ctx, store.CreateInstallationParams{
			UserID: userID, AgentID: agentID, Version: version,
		})
		if err != nil {
			return err
		}

		initial := orchd.AgentContext{
			UserProfile:   profile,
			SharedContext: sharedContext,
			AgentMemory:   orchd.JSONMap{},
			RecentEvents:  nil,
		}

		// Onboard is synchronous and transactional within the installation
		// commit: any error aborts and rolls back the installation.
		memory, err := impl.Onboard(ctx, inputs, initial)
		if err != nil {
			return orchd.NewOrchdErrorWithUser("InstallAgent.Onboard", userID, err)
		}

		if _, err := o.store.UpsertAgentMemory(ctx, inst.ID, memory, true); err != nil {
			return err
		}

		installation = inst
		return nil
	})
	if err != nil {
		return orchd.AgentInstallation{}, err
	}

	o.cache.InvalidateUserInstallations(userID)
	return installation, nil
}

// subscription pairs an installation with its manifest for one dispatch.
type subscription struct {
	installation orchd.AgentInstallation
	manifest     orchd.AgentManifest
}

// Dispatch persists eventType as an Event, routes it to every subscribed,
// non-self installation, and recursively dispatches whatever those agents
// emit. It returns every Event persisted during this call, including
// those produced by the recursive cascade (the cascade is otherwise an
// internal detail of one call — this is for test and caller convenience).
func (o *Orchestrator) Dispatch(ctx context.Context, userID, eventType string, payload orchd.JSONMap, sourceAgent *string, depth int) ([]orchd.Event, error) {
	if depth >= o.cfg.MaxEventDepth {
		return nil, orchd.NewOrchdErrorWithUser("Dispatch", userID, orchd.ErrDepthExceeded).
			WithContext("depth", depth)
	}

	o.metrics.CascadeDepth(depth)
	o.metrics.EventDispatched(eventType)

	if o.hooks != nil {
		probe := orchd.Event{UserID: userID, EventType: eventType, SourceAgent: sourceAgent, Payload: payload}
		if err := o.hooks.TriggerBeforeDispatch(ctx, probe); err != nil {
			return nil, orchd.NewOrchdErrorWithUser("Dispatch", userID, err)
		}
	}

	var event orchd.Event
	var cascaded []emittedFromAgent
	var traceIDs []string

	// The per-user lock is held only for this one frame's commit, not
	// across the recursive cascade below — Dispatch calling itself while
	// still holding the lock would deadlock against its own non-reentrant
	// mutex. Serializing each frame back-to-back is still enough to keep
	// dispatches for one user from interleaving: a cascade's child frames
	// are causally ordered by the parent commit anyway, and siblings
	// across independent Dispatch calls still queue on the same lock.
	unlock := o.locks.Lock(userID)
	err := o.store.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		event, err = o.store.AppendEvent(ctx, userID, eventType, sourceAgent, payload)
		if err != nil {
			return err
		}

		subs, err := o.resolveSubscribed(ctx, userID, eventType, sourceAgent)
		if err != nil {
			return err
		}

		profile, sharedContext, err := o.store.ReadUserContext(ctx, userID)
		if err != nil {
			return err
		}

		recentEvents, err := o.store.ListRecentEvents(ctx, userID, o.cfg.RecentEventsLimit)
		if err != nil {
			return err
		}

		for _, sub := range subs {
			emitted := o.runOne(ctx, userID, event, sub, profile, sharedContext, recentEvents, &traceIDs)
			cascaded = append(cascaded, emitted...)
		}
		return nil
	})
	unlock()
	if err != nil {
		return nil, err
	}

	if o.hooks != nil {
		if err := o.hooks.TriggerAfterDispatch(ctx, event, traceIDs); err != nil {
			o.logger.Warn("orchestrator: after-dispatch hook failed", "event_id", event.ID, "err", err)
		}
	}

	events := []orchd.Event{event}
	for _, e := range cascaded {
		if ctx.Err() != nil {
			// A cancelled dispatch emits no cascade.
			o.logger.Warn("orchestrator: cascade skipped, dispatch cancelled", "user_id", userID, "err", ctx.Err())
			break
		}
		src := e.agentID
		childEvents, err := o.Dispatch(ctx, userID, e.EventType, e.Payload, &src, depth+1)
		if err != nil {
			// A cascade failure never rolls back shallower commits, which
			// are already durable. Logged, not propagated.
			o.logger.Warn("orchestrator: cascade dispatch failed", "user_id", userID, "event_type", e.EventType, "err", err)
			continue
		}
		events = append(events, childEvents...)
	}

	return events, nil
}

// emittedFromAgent pairs an EmittedEvent with the installation's agent_id
// that produced it, since orchd.EmittedEvent itself intentionally has no
// SourceAgent field: source_agent is assigned by the orchestrator, never
// chosen by the agent that emits the event.
type emittedFromAgent struct {
	orchd.EmittedEvent
	agentID string
}

// runOne handles one subscribed installation's turn for one event:
// record+finalize its trace and apply its effects, all within the caller's
// transaction. Returns the events this agent asked to emit, tagged with
// its agent_id for the post-commit cascade.
func (o *Orchestrator) runOne(ctx context.Context, userID string, event orchd.Event, sub subscription, profile, sharedContext orchd.JSONMap, recentEvents []orchd.Event, traceIDs *[]string) []emittedFromAgent {
	traceID, err := o.store.RecordTrace(ctx, event.ID, sub.installation.AgentID, sub.installation.ID, orchd.TraceRunning)
	if err != nil {
		o.logger.Error("orchestrator: failed to record trace", "err", err)
		return nil
	}
	*traceIDs = append(*traceIDs, traceID)

	impl, ok := o.registry.GetAgent(sub.installation.AgentID, sub.installation.Version)
	if !ok {
		o.finalizeFailed(ctx, traceID, "agent not registered: "+sub.installation.AgentID)
		return nil
	}

	agentMemory, err := o.store.ReadAgentMemory(ctx, sub.installation.ID)
	if err != nil {
		o.finalizeFailed(ctx, traceID, err.Error())
		return nil
	}

	agentCtx := orchd.AgentContext{
		UserProfile:   profile,
		SharedContext: sharedContext,
		AgentMemory:   agentMemory,
		RecentEvents:  recentEvents,
	}

	handlerCtx, cancel := context.WithTimeout(ctx, o.cfg.AgentHandlerTimeout)
	result, err := impl.HandleEvent(handlerCtx, event, agentCtx)
	cancel()
	if err != nil {
		msg := err.Error()
		if errors.Is(handlerCtx.Err(), context.DeadlineExceeded) {
			msg = "timeout"
		} else if errors.Is(ctx.Err(), context.Canceled) {
			msg = "cancelled"
		}
		o.finalizeFailed(ctx, traceID, msg)
		return nil
	}
	if errors.Is(handlerCtx.Err(), context.DeadlineExceeded) {
		o.finalizeFailed(ctx, traceID, "timeout")
		return nil
	}

	// Shared context writes are permission-gated: an agent whose manifest
	// denies write_shared_context never gets its updates applied, even if
	// it returns some.
	if len(result.SharedContextUpdates) > 0 {
		if sub.manifest.Permissions.WriteSharedContext {
			if _, err := o.store.UpsertSharedContext(ctx, userID, result.SharedContextUpdates); err != nil {
				o.finalizeFailed(ctx, traceID, err.Error())
				return nil
			}
			o.cache.InvalidateSharedContext(userID)
		} else {
			o.logger.Warn("orchestrator: dropped shared_context_updates, write_shared_context=false",
				"agent_id", sub.installation.AgentID, "user_id", userID)
		}
	}

	if len(result.AgentMemoryUpdates) > 0 {
		if _, err := o.store.UpsertAgentMemory(ctx, sub.installation.ID, result.AgentMemoryUpdates, false); err != nil {
			o.finalizeFailed(ctx, traceID, err.Error())
			return nil
		}
	}

	for _, req := range result.ToolExecutions {
		exec, err := o.tools.ExecuteTool(ctx, userID, sub.installation.AgentID, sub.installation.ID, req.ToolID, req.Payload)
		if err != nil {
			// Per-request failure: caught and logged, the rest of the
			// agent's effects proceed.
			o.logger.Warn("orchestrator: tool request failed", "tool_id", req.ToolID, "err", err)
			continue
		}
		if orchdstate.ToolExecutionState(exec.Status).IsTerminal() {
			o.metrics.ToolExecutionFinalized(exec.Status)
		}
	}

	emitted := make([]emittedFromAgent, 0, len(result.Events))
	for _, e := range result.Events {
		emitted = append(emitted, emittedFromAgent{EmittedEvent: e, agentID: sub.installation.AgentID})
	}

	if err := o.store.FinalizeTrace(ctx, traceID, store.UpdateTraceParams{Status: orchd.TraceCompleted}); err != nil {
		o.logger.Error("orchestrator: failed to finalize trace", "err", err)
	}
	o.metrics.TraceFinalized(string(orchd.TraceCompleted))

	return emitted
}

func (o *Orchestrator) finalizeFailed(ctx context.Context, traceID, msg string) {
	if err := o.store.FinalizeTrace(ctx, traceID, store.UpdateTraceParams{Status: orchd.TraceFailed, Error: &msg}); err != nil {
		o.logger.Error("orchestrator: failed to finalize failed trace", "err", err)
	}
	o.metrics.TraceFinalized(string(orchd.TraceFailed))
}

// resolveSubscribed loads active installations, loads each one's
// manifest, filters by subscribed_events, and applies self-loop
// prevention.
func (o *Orchestrator) resolveSubscribed(ctx context.Context, userID, eventType string, sourceAgent *string) ([]subscription, error) {
	installations, err := o.getActiveInstallations(ctx, userID)
	if err != nil {
		return nil, err
	}

	subs := make([]subscription, 0, len(installations))
	for _, inst := range installations {
		if sourceAgent != nil && inst.AgentID == *sourceAgent {
			continue // self-loop prevention
		}

		manifest, err := o.getManifest(ctx, inst.AgentID, inst.Version)
		if err != nil {
			o.logger.Warn("orchestrator: manifest load failed for installation", "installation_id", inst.ID, "err", err)
			continue
		}

		subscribed := false
		for _, et := range manifest.SubscribedEvents {
			if et == eventType {
				subscribed = true
				break
			}
		}
		if !subscribed {
			continue
		}

		subs = append(subs, subscription{installation: inst, manifest: manifest})
	}
	return subs, nil
}

func (o *Orchestrator) getActiveInstallations(ctx context.Context, userID string) ([]orchd.AgentInstallation, error) {
	key := cache.InstallationsKey(userID)
	if raw, ok := o.cache.Get(key); ok {
		var installations []orchd.AgentInstallation
		if err := json.Unmarshal(raw, &installations); err == nil {
			return installations, nil
		}
	}

	installations, err := o.store.ListActiveInstallations(ctx, userID)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(installations); err == nil {
		o.cache.Set(key, raw, cache.InstallationsTTL)
	}
	return installations, nil
}

func (o *Orchestrator) getManifest(ctx context.Context, agentID, version string) (orchd.AgentManifest, error) {
	key := cache.ManifestKey(agentID, version)
	if raw, ok := o.cache.Get(key); ok {
		var m orchd.AgentManifest
		if err := json.Unmarshal(raw, &m); err == nil {
			return m, nil
		}
	}

	m, err := o.store.GetManifest(ctx, agentID, version)
	if err != nil {
		if errors.Is(err, store.ErrManifestNotFound) {
			return orchd.AgentManifest{}, fmt.Errorf("%w: %s@%s", orchd.ErrManifestNotFound, agentID, version)
		}
		return orchd.AgentManifest{}, err
	}
	if raw, err := json.Marshal(m); err == nil {
		o.cache.Set(key, raw, cache.ManifestTTL)
	}
	return m, nil
}
