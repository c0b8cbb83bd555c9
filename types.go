package orchd

import (
	"context"
	"time"
)

// JSONMap is the schemaless, JSON-shaped mapping used throughout this
// module for UserProfile, SharedContext, AgentMemory, Event.Payload, and
// AgentManifest.InputsSchema. It round-trips through jsonb columns as-is,
// with no fixed schema of its own.
type JSONMap map[string]any

// ManifestStatus is the lifecycle status of an AgentManifest.
type ManifestStatus string

const (
	ManifestActive     ManifestStatus = "active"
	ManifestDeprecated ManifestStatus = "deprecated"
	ManifestArchived   ManifestStatus = "archived"
)

// InstallationStatus is the lifecycle status of an AgentInstallation.
type InstallationStatus string

const (
	InstallationInstalled  InstallationStatus = "installed"
	InstallationActive     InstallationStatus = "active"
	InstallationPaused     InstallationStatus = "paused"
	InstallationUninstalled InstallationStatus = "uninstalled"
)

// ApprovalRequirement is ToolDefinition.RequiresHumanApproval.
type ApprovalRequirement string

const (
	ApprovalAlways   ApprovalRequirement = "always"
	ApprovalNever    ApprovalRequirement = "never"
	ApprovalOptional ApprovalRequirement = "optional"
)

// RiskLevel is ToolDefinition.RiskLevel.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// TraceStatus is ExecutionTrace.Status.
type TraceStatus string

const (
	TracePending   TraceStatus = "pending"
	TraceRunning   TraceStatus = "running"
	TraceCompleted TraceStatus = "completed"
	TraceFailed    TraceStatus = "failed"
)

// Permissions is AgentManifest.Permissions: read/write gates on shared
// context.
type Permissions struct {
	ReadSharedContext  bool `json:"read_shared_context"`
	WriteSharedContext bool `json:"write_shared_context"`
}

// AgentManifest is the static descriptor for one (AgentID, Version).
type AgentManifest struct {
	AgentID          string
	Version          string
	Name             string
	Description      string
	InputsSchema     JSONMap // JSON Schema for install_agent's inputs
	SubscribedEvents []string
	EmittedEvents    []string
	Permissions      Permissions
	Tools            []string
	Status           ManifestStatus
}

// AgentInstallation is a per-user binding to a specific manifest version.
type AgentInstallation struct {
	ID        string
	UserID    string
	AgentID   string
	Version   string
	Status    InstallationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Event is an immutable, append-only record of something that happened
// for a user. Never mutated after AppendEvent returns.
type Event struct {
	ID          string
	UserID      string
	EventType   string
	SourceAgent *string // nil => externally originated
	Payload     JSONMap
	CreatedAt   time.Time
}

// ExecutionTrace records one agent's handling of one event.
type ExecutionTrace struct {
	ID            string
	EventID       string
	AgentID       string
	InstallationID string
	Status        TraceStatus
	Error         *string
	StartedAt     *time.Time
	FinishedAt    *time.Time
}

// ToolDefinition is the static descriptor for one tool_id.
type ToolDefinition struct {
	ToolID                 string
	Description            string
	RequiresHumanApproval  ApprovalRequirement
	ApprovalRole           *string
	RiskLevel              RiskLevel
}

// ToolExecution is one instance of a tool call requested by an agent.
type ToolExecution struct {
	ID             string
	UserID         string
	AgentID        string
	InstallationID string
	ToolID         string
	Payload        JSONMap
	Output         JSONMap
	Error          *string
	Status         string // orchdstate.ToolExecutionState, kept as string at the SDK boundary
	CreatedAt      time.Time
	StartedAt      *time.Time
	FinishedAt     *time.Time
}

// ApprovalDecision is HumanApproval.Decision.
type ApprovalDecision string

const (
	DecisionApproved ApprovalDecision = "approved"
	DecisionRejected ApprovalDecision = "rejected"
)

// HumanApproval records a reviewer's decision on a ToolExecution. At most
// one per ToolExecution, enforced by ToolExecutionID being the primary
// key in the storage layer.
type HumanApproval struct {
	ToolExecutionID string
	ReviewerID      string
	Decision        ApprovalDecision
	Comment         string
	CreatedAt       time.Time
}

// AgentContext is what an AgentImplementation sees for one invocation:
// the user's profile and shared context, this installation's private
// memory, and a newest-first window of recent events.
type AgentContext struct {
	UserProfile   JSONMap
	SharedContext JSONMap
	AgentMemory   JSONMap
	RecentEvents  []Event
}

// EmittedEvent is an event descriptor an agent asks the orchestrator to
// create. SourceAgent is assigned by the orchestrator, never by the agent.
type EmittedEvent struct {
	EventType string
	Payload   JSONMap
}

// RequestedToolExecution is a tool call an agent asks the orchestrator to
// perform on its behalf.
type RequestedToolExecution struct {
	ToolID  string
	Payload JSONMap
}

// ResultStatus is AgentResult.Status.
type ResultStatus string

const (
	ResultCompleted      ResultStatus = "completed"
	ResultFailed         ResultStatus = "failed"
	ResultPendingApproval ResultStatus = "pending_approval"
)

// AgentResult is the value object an AgentImplementation.HandleEvent
// returns: the effects the orchestrator should apply on the agent's
// behalf. Agents never touch storage directly.
type AgentResult struct {
	SharedContextUpdates JSONMap
	AgentMemoryUpdates   JSONMap
	Events               []EmittedEvent
	ToolExecutions       []RequestedToolExecution
	Status               ResultStatus
	Error                *string
}

// AgentImplementation is the three-operation contract every registered
// agent must satisfy. Implementations are pure: no direct I/O, no
// DB/network/tool access — the orchestrator supplies everything through
// AgentContext and applies every effect on the agent's behalf.
type AgentImplementation interface {
	// Manifest returns this agent's static descriptor. Called by the
	// Registry at registration time and when listing registered agents.
	Manifest() AgentManifest

	// Onboard is invoked once, synchronously, during install_agent. It
	// receives the raw install inputs and an initial AgentContext (empty
	// AgentMemory, empty RecentEvents) and returns the AgentMemory value
	// to persist for the new installation.
	Onboard(ctx context.Context, inputs JSONMap, initial AgentContext) (JSONMap, error)

	// HandleEvent is invoked once per dispatched event this agent is
	// subscribed to. A returned error causes the orchestrator to finalize
	// this agent's trace as failed and apply none of its effects; it does
	// not abort dispatch to other agents.
	HandleEvent(ctx context.Context, event Event, agentCtx AgentContext) (AgentResult, error)
}

// ToolImplementation is the single-operation contract every registered
// tool must satisfy.
type ToolImplementation interface {
	// Execute runs the tool synchronously. An error transitions the
	// owning ToolExecution to failed with the error captured; it never
	// propagates out of the engine that called Execute.
	Execute(ctx context.Context, payload JSONMap) (JSONMap, error)
}
