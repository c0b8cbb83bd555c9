package pgxv5

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orchestrator-core/orchd"
	"github.com/orchestrator-core/orchd/store"
)

// querier is the common subset of *pgxpool.Pool and pgx.Tx that every
// query in this file needs, so the same method body runs whether or not
// a transaction is in play.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements store.Store on top of a pgxpool.Pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool. The pool's lifecycle (creation, Close) is
// the caller's responsibility.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) q(ctx context.Context) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

// WithinTx opens a transaction, runs fn with a context carrying it, and
// commits on a nil return or rolls back otherwise.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		// Already inside a transaction (nested WithinTx call): run fn
		// directly rather than opening a savepoint we don't need.
		return fn(ctx)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgxv5: begin tx: %w", err)
	}

	if err := fn(withTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgxv5: commit tx: %w", err)
	}
	return nil
}

func marshalMap(m orchd.JSONMap) ([]byte, error) {
	if m == nil {
		m = orchd.JSONMap{}
	}
	return json.Marshal(m)
}

func unmarshalMap(raw []byte) (orchd.JSONMap, error) {
	out := orchd.JSONMap{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = orchd.JSONMap{}
	}
	return out, nil
}

// -- Users / context (C3) ----------------------------------------------

func (s *Store) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.q(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orchd_users WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pgxv5: user exists: %w", err)
	}
	return exists, nil
}

func (s *Store) ReadUserContext(ctx context.Context, userID string) (orchd.JSONMap, orchd.JSONMap, error) {
	var profileRaw, sharedRaw []byte
	err := s.q(ctx).QueryRow(ctx,
		`SELECT profile, shared_context FROM orchd_users WHERE user_id = $1`, userID,
	).Scan(&profileRaw, &sharedRaw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("pgxv5: read user context: %w", err)
	}
	profile, err := unmarshalMap(profileRaw)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxv5: unmarshal profile: %w", err)
	}
	shared, err := unmarshalMap(sharedRaw)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxv5: unmarshal shared_context: %w", err)
	}
	return profile, shared, nil
}

func (s *Store) UpsertSharedContext(ctx context.Context, userID string, patch orchd.JSONMap) (orchd.JSONMap, error) {
	_, shared, err := s.ReadUserContext(ctx, userID)
	if err != nil {
		return nil, err
	}
	merged := store.ShallowMerge(shared, patch)
	raw, err := marshalMap(merged)
	if err != nil {
		return nil, fmt.Errorf("pgxv5: marshal shared_context: %w", err)
	}
	_, err = s.q(ctx).Exec(ctx,
		`UPDATE orchd_users SET shared_context = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, raw,
	)
	if err != nil {
		return nil, fmt.Errorf("pgxv5: update shared_context: %w", err)
	}
	return merged, nil
}

func (s *Store) ReadAgentMemory(ctx context.Context, installationID string) (orchd.JSONMap, error) {
	var raw []byte
	err := s.q(ctx).QueryRow(ctx,
		`SELECT memory FROM orchd_installations WHERE id = $1`, installationID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrInstallationNotFound, installationID)
	}
	if err != nil {
		return nil, fmt.Errorf("pgxv5: read agent memory: %w", err)
	}
	return unmarshalMap(raw)
}

func (s *Store) UpsertAgentMemory(ctx context.Context, installationID string, value orchd.JSONMap, fullReplace bool) (orchd.JSONMap, error) {
	next := value
	if !fullReplace {
		current, err := s.ReadAgentMemory(ctx, installationID)
		if err != nil {
			return nil, err
		}
		next = store.ShallowMerge(current, value)
	}
	raw, err := marshalMap(next)
	if err != nil {
		return nil, fmt.Errorf("pgxv5: marshal agent memory: %w", err)
	}
	tag, err := s.q(ctx).Exec(ctx,
		`UPDATE orchd_installations SET memory = $2, updated_at = NOW() WHERE id = $1`,
		installationID, raw,
	)
	if err != nil {
		return nil, fmt.Errorf("pgxv5: update agent memory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: %s", store.ErrInstallationNotFound, installationID)
	}
	return next, nil
}

func (s *Store) AppendEvent(ctx context.Context, userID, eventType string, sourceAgent *string, payload orchd.JSONMap) (orchd.Event, error) {
	raw, err := marshalMap(payload)
	if err != nil {
		return orchd.Event{}, fmt.Errorf("pgxv5: marshal event payload: %w", err)
	}

	var ev orchd.Event
	var payloadRaw []byte
	err = s.q(ctx).QueryRow(ctx, `
		INSERT INTO orchd_events (user_id, event_type, source_agent, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, event_type, source_agent, payload, created_at
	`, userID, eventType, sourceAgent, raw).Scan(
		&ev.ID, &ev.UserID, &ev.EventType, &ev.SourceAgent, &payloadRaw, &ev.CreatedAt,
	)
	if err != nil {
		return orchd.Event{}, fmt.Errorf("pgxv5: append event: %w", err)
	}
	if ev.Payload, err = unmarshalMap(payloadRaw); err != nil {
		return orchd.Event{}, fmt.Errorf("pgxv5: unmarshal event payload: %w", err)
	}

	// Best-effort wakeup for any orchd_events listener. Event persistence
	// must never fail because no one is listening.
	if _, err := s.pool.Exec(ctx, `SELECT pg_notify('orchd_events', $1)`, userID); err != nil {
		_ = err
	}

	return ev, nil
}

func (s *Store) ListRecentEvents(ctx context.Context, userID string, limit int) ([]orchd.Event, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT id, user_id, event_type, source_agent, payload, created_at
		FROM orchd_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("pgxv5: list recent events: %w", err)
	}
	defer rows.Close()

	var events []orchd.Event
	for rows.Next() {
		var ev orchd.Event
		var payloadRaw []byte
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.EventType, &ev.SourceAgent, &payloadRaw, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgxv5: scan event: %w", err)
		}
		if ev.Payload, err = unmarshalMap(payloadRaw); err != nil {
			return nil, fmt.Errorf("pgxv5: unmarshal event payload: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// -- Manifests / installations (C2) -------------------------------------

func (s *Store) GetManifest(ctx context.Context, agentID, version string) (orchd.AgentManifest, error) {
	var m orchd.AgentManifest
	var inputsRaw, permsRaw []byte
	err := s.q(ctx).QueryRow(ctx, `
		SELECT agent_id, version, name, description, inputs_schema, subscribed_events,
		       emitted_events, permissions, tools, status
		FROM orchd_manifests
		WHERE agent_id = $1 AND version = $2
	`, agentID, version).Scan(
		&m.AgentID, &m.Version, &m.Name, &m.Description, &inputsRaw,
		&m.SubscribedEvents, &m.EmittedEvents, &permsRaw, &m.Tools, &m.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return orchd.AgentManifest{}, fmt.Errorf("%w: %s@%s", store.ErrManifestNotFound, agentID, version)
	}
	if err != nil {
		return orchd.AgentManifest{}, fmt.Errorf("pgxv5: get manifest: %w", err)
	}
	if m.InputsSchema, err = unmarshalMap(inputsRaw); err != nil {
		return orchd.AgentManifest{}, fmt.Errorf("pgxv5: unmarshal inputs_schema: %w", err)
	}
	if err := json.Unmarshal(permsRaw, &m.Permissions); err != nil {
		return orchd.AgentManifest{}, fmt.Errorf("pgxv5: unmarshal permissions: %w", err)
	}
	return m, nil
}

func (s *Store) UpsertManifest(ctx context.Context, m orchd.AgentManifest) error {
	inputsRaw, err := marshalMap(m.InputsSchema)
	if err != nil {
		return fmt.Errorf("pgxv5: marshal inputs_schema: %w", err)
	}
	permsRaw, err := json.Marshal(m.Permissions)
	if err != nil {
		return fmt.Errorf("pgxv5: marshal permissions: %w", err)
	}
	_, err = s.q(ctx).Exec(ctx, `
		INSERT INTO orchd_manifests
			(agent_id, version, name, description, inputs_schema, subscribed_events, emitted_events, permissions, tools, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (agent_id, version) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			inputs_schema = EXCLUDED.inputs_schema,
			subscribed_events = EXCLUDED.subscribed_events,
			emitted_events = EXCLUDED.emitted_events,
			permissions = EXCLUDED.permissions,
			tools = EXCLUDED.tools,
			status = EXCLUDED.status
	`, m.AgentID, m.Version, m.Name, m.Description, inputsRaw, m.SubscribedEvents, m.EmittedEvents, permsRaw, m.Tools, m.Status)
	if err != nil {
		return fmt.Errorf("pgxv5: upsert manifest: %w", err)
	}
	return nil
}

func (s *Store) FindInstallation(ctx context.Context, userID, agentID, version string) (orchd.AgentInstallation, error) {
	var inst orchd.AgentInstallation
	err := s.q(ctx).QueryRow(ctx, `
		SELECT id, user_id, agent_id, version, status, created_at, updated_at
		FROM orchd_installations
		WHERE user_id = $1 AND agent_id = $2 AND version = $3
	`, userID, agentID, version).Scan(
		&inst.ID, &inst.UserID, &inst.AgentID, &inst.Version, &inst.Status, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return orchd.AgentInstallation{}, fmt.Errorf("%w: %s/%s@%s", store.ErrInstallationNotFound, userID, agentID, version)
	}
	if err != nil {
		return orchd.AgentInstallation{}, fmt.Errorf("pgxv5: find installation: %w", err)
	}
	return inst, nil
}

func (s *Store) ListActiveInstallations(ctx context.Context, userID string) ([]orchd.AgentInstallation, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT id, user_id, agent_id, version, status, created_at, updated_at
		FROM orchd_installations
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at ASC
	`, userID, orchd.InstallationActive)
	if err != nil {
		return nil, fmt.Errorf("pgxv5: list active installations: %w", err)
	}
	defer rows.Close()

	var out []orchd.AgentInstallation
	for rows.Next() {
		var inst orchd.AgentInstallation
		if err := rows.Scan(&inst.ID, &inst.UserID, &inst.AgentID, &inst.Version, &inst.Status, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pgxv5: scan installation: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (s *Store) CreateInstallation(ctx context.Context, params store.CreateInstallationParams) (orchd.AgentInstallation, error) {
	var inst orchd.AgentInstallation
	err := s.q(ctx).QueryRow(ctx, `
		INSERT INTO orchd_installations (user_id, agent_id, version, status, memory)
		VALUES ($1, $2, $3, $4, '{}'::jsonb)
		RETURNING id, user_id, agent_id, version, status, created_at, updated_at
	`, params.UserID, params.AgentID, params.Version, orchd.InstallationActive).Scan(
		&inst.ID, &inst.UserID, &inst.AgentID, &inst.Version, &inst.Status, &inst.CreatedAt, &inst.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return orchd.AgentInstallation{}, fmt.Errorf("%w: %s/%s@%s", store.ErrAlreadyInstalled, params.UserID, params.AgentID, params.Version)
	}
	if err != nil {
		return orchd.AgentInstallation{}, fmt.Errorf("pgxv5: create installation: %w", err)
	}
	return inst, nil
}

// -- Traces (C3) ----------------------------------------------------------

func (s *Store) RecordTrace(ctx context.Context, eventID, agentID, installationID string, status orchd.TraceStatus) (string, error) {
	var id string
	err := s.q(ctx).QueryRow(ctx, `
		INSERT INTO orchd_traces (event_id, agent_id, installation_id, status, started_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id
	`, eventID, agentID, installationID, status).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("pgxv5: record trace: %w", err)
	}
	return id, nil
}

func (s *Store) FinalizeTrace(ctx context.Context, traceID string, params store.UpdateTraceParams) error {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE orchd_traces SET status = $2, error = $3, finished_at = NOW()
		WHERE id = $1
	`, traceID, params.Status, params.Error)
	if err != nil {
		return fmt.Errorf("pgxv5: finalize trace: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrTraceNotFound, traceID)
	}
	return nil
}

// -- Tool definitions / executions (C4) -----------------------------------

func (s *Store) GetToolDefinition(ctx context.Context, toolID string) (orchd.ToolDefinition, error) {
	var td orchd.ToolDefinition
	err := s.q(ctx).QueryRow(ctx, `
		SELECT tool_id, description, requires_human_approval, approval_role, risk_level
		FROM orchd_tool_definitions WHERE tool_id = $1
	`, toolID).Scan(&td.ToolID, &td.Description, &td.RequiresHumanApproval, &td.ApprovalRole, &td.RiskLevel)
	if errors.Is(err, pgx.ErrNoRows) {
		return orchd.ToolDefinition{}, fmt.Errorf("%w: %s", store.ErrToolDefNotFound, toolID)
	}
	if err != nil {
		return orchd.ToolDefinition{}, fmt.Errorf("pgxv5: get tool definition: %w", err)
	}
	return td, nil
}

func (s *Store) UpsertToolDefinition(ctx context.Context, td orchd.ToolDefinition) error {
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO orchd_tool_definitions (tool_id, description, requires_human_approval, approval_role, risk_level)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tool_id) DO UPDATE SET
			description = EXCLUDED.description,
			requires_human_approval = EXCLUDED.requires_human_approval,
			approval_role = EXCLUDED.approval_role,
			risk_level = EXCLUDED.risk_level
	`, td.ToolID, td.Description, td.RequiresHumanApproval, td.ApprovalRole, td.RiskLevel)
	if err != nil {
		return fmt.Errorf("pgxv5: upsert tool definition: %w", err)
	}
	return nil
}

func (s *Store) CreateToolExecution(ctx context.Context, params store.CreateToolExecutionParams) (orchd.ToolExecution, error) {
	raw, err := marshalMap(params.Payload)
	if err != nil {
		return orchd.ToolExecution{}, fmt.Errorf("pgxv5: marshal tool payload: %w", err)
	}

	var te orchd.ToolExecution
	var payloadRaw, outputRaw []byte
	err = s.q(ctx).QueryRow(ctx, `
		INSERT INTO orchd_tool_executions (user_id, agent_id, installation_id, tool_id, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, agent_id, installation_id, tool_id, payload, output, error, status,
			created_at, started_at, finished_at
	`, params.UserID, params.AgentID, params.InstallationID, params.ToolID, raw, params.InitialState).Scan(
		&te.ID, &te.UserID, &te.AgentID, &te.InstallationID, &te.ToolID, &payloadRaw, &outputRaw, &te.Error,
		&te.Status, &te.CreatedAt, &te.StartedAt, &te.FinishedAt,
	)
	if err != nil {
		return orchd.ToolExecution{}, fmt.Errorf("pgxv5: create tool execution: %w", err)
	}
	if te.Payload, err = unmarshalMap(payloadRaw); err != nil {
		return orchd.ToolExecution{}, fmt.Errorf("pgxv5: unmarshal tool payload: %w", err)
	}
	if te.Output, err = unmarshalMap(outputRaw); err != nil {
		return orchd.ToolExecution{}, fmt.Errorf("pgxv5: unmarshal tool output: %w", err)
	}

	if _, err := s.pool.Exec(ctx, `SELECT pg_notify('orchd_tools', $1)`, te.ID); err != nil {
		_ = err
	}

	return te, nil
}

func (s *Store) GetToolExecution(ctx context.Context, id string) (orchd.ToolExecution, error) {
	var te orchd.ToolExecution
	var payloadRaw, outputRaw []byte
	err := s.q(ctx).QueryRow(ctx, `
		SELECT id, user_id, agent_id, installation_id, tool_id, payload, output, error, status,
			created_at, started_at, finished_at
		FROM orchd_tool_executions WHERE id = $1
	`, id).Scan(
		&te.ID, &te.UserID, &te.AgentID, &te.InstallationID, &te.ToolID, &payloadRaw, &outputRaw, &te.Error,
		&te.Status, &te.CreatedAt, &te.StartedAt, &te.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return orchd.ToolExecution{}, fmt.Errorf("%w: %s", store.ErrToolExecNotFound, id)
	}
	if err != nil {
		return orchd.ToolExecution{}, fmt.Errorf("pgxv5: get tool execution: %w", err)
	}
	if te.Payload, err = unmarshalMap(payloadRaw); err != nil {
		return orchd.ToolExecution{}, fmt.Errorf("pgxv5: unmarshal tool payload: %w", err)
	}
	if te.Output, err = unmarshalMap(outputRaw); err != nil {
		return orchd.ToolExecution{}, fmt.Errorf("pgxv5: unmarshal tool output: %w", err)
	}
	return te, nil
}

func (s *Store) UpdateToolExecutionState(ctx context.Context, id string, params store.UpdateToolExecutionStateParams) error {
	outputRaw, err := marshalMap(params.Output)
	if err != nil {
		return fmt.Errorf("pgxv5: marshal tool output: %w", err)
	}

	terminal := params.State == "completed" || params.State == "failed" || params.State == "rejected"
	executing := params.State == "executing"

	var tag pgconn.CommandTag
	switch {
	case terminal:
		tag, err = s.q(ctx).Exec(ctx, `
			UPDATE orchd_tool_executions
			SET status = $2, output = $3, error = $4, finished_at = NOW()
			WHERE id = $1
		`, id, params.State, outputRaw, params.Error)
	case executing:
		tag, err = s.q(ctx).Exec(ctx, `
			UPDATE orchd_tool_executions
			SET status = $2, started_at = COALESCE(started_at, NOW())
			WHERE id = $1
		`, id, params.State)
	default:
		tag, err = s.q(ctx).Exec(ctx, `
			UPDATE orchd_tool_executions SET status = $2 WHERE id = $1
		`, id, params.State)
	}
	if err != nil {
		return fmt.Errorf("pgxv5: update tool execution state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrToolExecNotFound, id)
	}
	return nil
}

func (s *Store) ListPendingToolExecutions(ctx context.Context, userID string) ([]orchd.ToolExecution, error) {
	return s.listToolExecutions(ctx, `
		SELECT id, user_id, agent_id, installation_id, tool_id, payload, output, error, status,
			created_at, started_at, finished_at
		FROM orchd_tool_executions WHERE user_id = $1 AND status = 'pending'
		ORDER BY created_at ASC
	`, userID)
}

func (s *Store) ListStuckToolExecutions(ctx context.Context, horizon time.Time) ([]orchd.ToolExecution, error) {
	return s.listToolExecutions(ctx, `
		SELECT id, user_id, agent_id, installation_id, tool_id, payload, output, error, status,
			created_at, started_at, finished_at
		FROM orchd_tool_executions
		WHERE status = 'executing' AND started_at IS NOT NULL AND started_at < $1
		ORDER BY started_at ASC
	`, horizon)
}

func (s *Store) listToolExecutions(ctx context.Context, query string, arg any) ([]orchd.ToolExecution, error) {
	rows, err := s.q(ctx).Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("pgxv5: list tool executions: %w", err)
	}
	defer rows.Close()

	var out []orchd.ToolExecution
	for rows.Next() {
		var te orchd.ToolExecution
		var payloadRaw, outputRaw []byte
		if err := rows.Scan(
			&te.ID, &te.UserID, &te.AgentID, &te.InstallationID, &te.ToolID, &payloadRaw, &outputRaw, &te.Error,
			&te.Status, &te.CreatedAt, &te.StartedAt, &te.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("pgxv5: scan tool execution: %w", err)
		}
		if te.Payload, err = unmarshalMap(payloadRaw); err != nil {
			return nil, fmt.Errorf("pgxv5: unmarshal tool payload: %w", err)
		}
		if te.Output, err = unmarshalMap(outputRaw); err != nil {
			return nil, fmt.Errorf("pgxv5: unmarshal tool output: %w", err)
		}
		out = append(out, te)
	}
	return out, rows.Err()
}

func (s *Store) RecordHumanApproval(ctx context.Context, approval orchd.HumanApproval) error {
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO orchd_human_approvals (tool_execution_id, reviewer_id, decision, comment, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, approval.ToolExecutionID, approval.ReviewerID, approval.Decision, approval.Comment)
	if err != nil {
		return fmt.Errorf("pgxv5: record human approval: %w", err)
	}
	return nil
}

func (s *Store) GetHumanApproval(ctx context.Context, toolExecutionID string) (orchd.HumanApproval, bool, error) {
	var a orchd.HumanApproval
	err := s.q(ctx).QueryRow(ctx, `
		SELECT tool_execution_id, reviewer_id, decision, comment, created_at
		FROM orchd_human_approvals WHERE tool_execution_id = $1
	`, toolExecutionID).Scan(&a.ToolExecutionID, &a.ReviewerID, &a.Decision, &a.Comment, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return orchd.HumanApproval{}, false, nil
	}
	if err != nil {
		return orchd.HumanApproval{}, false, fmt.Errorf("pgxv5: get human approval: %w", err)
	}
	return a, true, nil
}

// -- Instance bookkeeping (supplemented, §11) -----------------------------

func (s *Store) RegisterInstance(ctx context.Context, instanceID string) error {
	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO orchd_instances (instance_id, registered_at, last_seen_at)
		VALUES ($1, NOW(), NOW())
		ON CONFLICT (instance_id) DO UPDATE SET last_seen_at = NOW()
	`, instanceID)
	if err != nil {
		return fmt.Errorf("pgxv5: register instance: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `SELECT pg_notify('orchd_instances', $1)`, instanceID); err != nil {
		_ = err
	}
	return nil
}

func (s *Store) Heartbeat(ctx context.Context, instanceID string) error {
	_, err := s.q(ctx).Exec(ctx, `UPDATE orchd_instances SET last_seen_at = NOW() WHERE instance_id = $1`, instanceID)
	if err != nil {
		return fmt.Errorf("pgxv5: heartbeat: %w", err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
