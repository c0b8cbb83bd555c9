// Package store defines the persistence interface for the Manifest Store
// (C2) and Context Store (C3): AgentManifest/AgentInstallation catalog,
// AgentMemory, the append-only Event log, ExecutionTrace bookkeeping, and
// the ToolDefinition/ToolExecution/HumanApproval tables the toolexec
// package drives.
//
// One flat interface grouped by concern, Create*Params/Update*Params
// structs for multi-field writes, ErrXNotFound sentinels for lookups
// instead of (nil, nil), and context-propagated transactions (see
// store/pgxv5 for the concrete WithTx/TxFromContext pattern).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/orchestrator-core/orchd"
)

// Not-found sentinels. Concrete drivers return these rather than a raw
// pgx.ErrNoRows so callers never import a driver package just to check an
// error.
var (
	ErrUserNotFound        = errors.New("store: user not found")
	ErrManifestNotFound    = errors.New("store: manifest not found")
	ErrInstallationNotFound = errors.New("store: installation not found")
	ErrEventNotFound       = errors.New("store: event not found")
	ErrTraceNotFound       = errors.New("store: trace not found")
	ErrToolDefNotFound     = errors.New("store: tool definition not found")
	ErrToolExecNotFound    = errors.New("store: tool execution not found")
	ErrAlreadyInstalled    = errors.New("store: installation already exists")
)

// CreateInstallationParams is the input to Store.CreateInstallation.
type CreateInstallationParams struct {
	UserID  string
	AgentID string
	Version string
}

// UpdateTraceParams is the input to Store.FinalizeTrace.
type UpdateTraceParams struct {
	Status orchd.TraceStatus
	Error  *string
}

// CreateToolExecutionParams is the input to Store.CreateToolExecution.
type CreateToolExecutionParams struct {
	UserID         string
	AgentID        string
	InstallationID string
	ToolID         string
	Payload        orchd.JSONMap
	InitialState   string // orchdstate.ToolExecutionState, kept as string to avoid an import cycle
}

// UpdateToolExecutionStateParams is the input to
// Store.UpdateToolExecutionState.
type UpdateToolExecutionStateParams struct {
	State  string
	Output orchd.JSONMap
	Error  *string
}

// Store is the full persistence surface C2/C3/C4 need. A concrete
// implementation lives in store/pgxv5 (primary) and store/databasesql
// (secondary, no LISTEN/NOTIFY).
type Store interface {
	// WithinTx runs fn with a context carrying an active transaction:
	// every Store call made with the context fn receives runs inside that
	// one transaction. fn's returned error rolls the transaction back; a
	// nil return commits. This is the mechanism orchestrator.Orchestrator
	// uses for the commit-then-cascade boundary — the whole per-event
	// frame commits in one WithinTx call, and cascaded events each get
	// their own.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	// -- Users / context (C3) --------------------------------------------

	// UserExists reports whether user_id is known to the store.
	UserExists(ctx context.Context, userID string) (bool, error)

	// ReadUserContext returns the user's profile and shared context. Both
	// default to an empty JSONMap if the user has never written either.
	ReadUserContext(ctx context.Context, userID string) (profile, sharedContext orchd.JSONMap, err error)

	// UpsertSharedContext shallow-merges patch into the user's shared
	// context (see ShallowMerge) and returns the merged result.
	UpsertSharedContext(ctx context.Context, userID string, patch orchd.JSONMap) (orchd.JSONMap, error)

	// ReadAgentMemory returns one installation's private memory mapping.
	ReadAgentMemory(ctx context.Context, installationID string) (orchd.JSONMap, error)

	// UpsertAgentMemory either shallow-merges (fullReplace=false, event
	// handling) or fully replaces (fullReplace=true, onboarding) an
	// installation's memory.
	UpsertAgentMemory(ctx context.Context, installationID string, value orchd.JSONMap, fullReplace bool) (orchd.JSONMap, error)

	// AppendEvent persists an immutable Event, assigning ID and CreatedAt.
	// Triggers a Postgres NOTIFY orchd_events on the pgxv5 driver.
	AppendEvent(ctx context.Context, userID, eventType string, sourceAgent *string, payload orchd.JSONMap) (orchd.Event, error)

	// ListRecentEvents returns up to limit events for userID, newest
	// first.
	ListRecentEvents(ctx context.Context, userID string, limit int) ([]orchd.Event, error)

	// -- Manifests / installations (C2) ----------------------------------

	// GetManifest returns the manifest for (agentID, version), regardless
	// of status. Callers check Status == orchd.ManifestActive themselves
	// when they need an active manifest specifically.
	GetManifest(ctx context.Context, agentID, version string) (orchd.AgentManifest, error)

	// UpsertManifest creates or replaces a manifest row. Used by
	// deployment tooling, not by the dispatch hot path.
	UpsertManifest(ctx context.Context, m orchd.AgentManifest) error

	// FindInstallation looks up the (possibly non-active) installation
	// for (userID, agentID, version).
	FindInstallation(ctx context.Context, userID, agentID, version string) (orchd.AgentInstallation, error)

	// ListActiveInstallations returns every status=active installation
	// for userID, in a stable (implementation-defined) order.
	ListActiveInstallations(ctx context.Context, userID string) ([]orchd.AgentInstallation, error)

	// CreateInstallation atomically creates a status=active installation,
	// enforcing the at-most-one-per-(user,agent,version) constraint.
	// Returns ErrAlreadyInstalled if one already exists regardless of its
	// current status — a revoked installation still counts.
	CreateInstallation(ctx context.Context, params CreateInstallationParams) (orchd.AgentInstallation, error)

	// -- Traces (C3) ------------------------------------------------------

	// RecordTrace inserts a trace row in the given status (normally
	// orchd.TraceRunning) and returns its ID.
	RecordTrace(ctx context.Context, eventID, agentID, installationID string, status orchd.TraceStatus) (string, error)

	// FinalizeTrace transitions a trace to a terminal status, stamping
	// FinishedAt.
	FinalizeTrace(ctx context.Context, traceID string, params UpdateTraceParams) error

	// -- Tool definitions / executions (C4) -------------------------------

	// GetToolDefinition looks up a ToolDefinition by tool_id.
	GetToolDefinition(ctx context.Context, toolID string) (orchd.ToolDefinition, error)

	// UpsertToolDefinition creates or replaces a tool definition row.
	UpsertToolDefinition(ctx context.Context, td orchd.ToolDefinition) error

	// CreateToolExecution inserts a ToolExecution row in params.InitialState
	// (always orchdstate.Pending — see orchdstate). Triggers a Postgres
	// NOTIFY orchd_tools on the pgxv5 driver.
	CreateToolExecution(ctx context.Context, params CreateToolExecutionParams) (orchd.ToolExecution, error)

	// GetToolExecution looks up one ToolExecution by id.
	GetToolExecution(ctx context.Context, id string) (orchd.ToolExecution, error)

	// UpdateToolExecutionState performs a state transition and, for
	// terminal states, stamps FinishedAt. Callers are responsible for
	// validating the transition against orchdstate before calling this —
	// the store performs no state-machine validation of its own, it only
	// persists what the caller already validated.
	UpdateToolExecutionState(ctx context.Context, id string, params UpdateToolExecutionStateParams) error

	// ListPendingToolExecutions returns ToolExecutions in the pending
	// state for userID.
	ListPendingToolExecutions(ctx context.Context, userID string) ([]orchd.ToolExecution, error)

	// ListStuckToolExecutions returns executing ToolExecutions whose
	// StartedAt is older than horizon. Used by maintenance.Sweeper.
	ListStuckToolExecutions(ctx context.Context, horizon time.Time) ([]orchd.ToolExecution, error)

	// RecordHumanApproval inserts the (at most one, enforced by
	// ToolExecutionID being the primary key) HumanApproval row for a
	// ToolExecution.
	RecordHumanApproval(ctx context.Context, approval orchd.HumanApproval) error

	// GetHumanApproval looks up the HumanApproval for a ToolExecution, if
	// any.
	GetHumanApproval(ctx context.Context, toolExecutionID string) (orchd.HumanApproval, bool, error)

	// -- Instance bookkeeping (supplemented, §11) -------------------------

	// RegisterInstance upserts a durable bookkeeping row for a running
	// orchestrator process. Not used for coordination (a Non-goal) — only
	// so a multi-instance deployment has rows to build on.
	RegisterInstance(ctx context.Context, instanceID string) error

	// Heartbeat updates an instance's last-seen timestamp.
	Heartbeat(ctx context.Context, instanceID string) error
}
