// Package orchdstate defines the ToolExecution state machine (C4): a
// pending/approved/rejected/executing/completed/failed vocabulary with
// IsValid/IsTerminal/CanTransitionTo helpers and a driver.Valuer/Scanner
// pair so the state round-trips through a database column directly.
package orchdstate

import (
	"database/sql/driver"
	"fmt"
)

// ToolExecutionState is the status field of a ToolExecution.
type ToolExecutionState string

const (
	Pending   ToolExecutionState = "pending"
	Approved  ToolExecutionState = "approved"
	Rejected  ToolExecutionState = "rejected"
	Executing ToolExecutionState = "executing"
	Completed ToolExecutionState = "completed"
	Failed    ToolExecutionState = "failed"
)

// AllStates returns every defined state.
func AllStates() []ToolExecutionState {
	return []ToolExecutionState{Pending, Approved, Rejected, Executing, Completed, Failed}
}

// TerminalStates returns the states with no further transitions:
// completed, failed, and rejected. Executing is not terminal — it still
// has to reach completed or failed.
func TerminalStates() []ToolExecutionState {
	return []ToolExecutionState{Rejected, Completed, Failed}
}

// IsValid reports whether s is one of the defined states.
func (s ToolExecutionState) IsValid() bool {
	switch s {
	case Pending, Approved, Rejected, Executing, Completed, Failed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s permits no further transitions.
func (s ToolExecutionState) IsTerminal() bool {
	switch s {
	case Rejected, Completed, Failed:
		return true
	default:
		return false
	}
}

// IsSuccess reports whether s is the successful terminal state.
func (s ToolExecutionState) IsSuccess() bool {
	return s == Completed
}

// IsWaitingForWork reports whether s is pending (awaiting either direct
// execution or human approval).
func (s ToolExecutionState) IsWaitingForWork() bool {
	return s == Pending
}

// String implements fmt.Stringer.
func (s ToolExecutionState) String() string {
	return string(s)
}

// CanTransitionTo reports whether s -> target is a legal transition.
//
// There is deliberately no failed -> pending retry edge: completed,
// failed, and rejected are terminal with no further transitions at all.
// A caller that wants a retry creates a new ToolExecution instead.
func (s ToolExecutionState) CanTransitionTo(target ToolExecutionState) bool {
	if !s.IsValid() || !target.IsValid() {
		return false
	}
	if s == target {
		return false
	}
	if s.IsTerminal() {
		return false
	}
	switch s {
	case Pending:
		return target == Approved || target == Rejected || target == Executing
	case Approved:
		return target == Executing
	case Executing:
		return target == Completed || target == Failed
	default:
		return false
	}
}

// Transition describes one state-machine edge.
type Transition struct {
	From ToolExecutionState
	To   ToolExecutionState
}

// Validate reports an error if the transition is not legal.
func (t Transition) Validate() error {
	if !t.From.CanTransitionTo(t.To) {
		return fmt.Errorf("orchdstate: invalid transition %s -> %s", t.From, t.To)
	}
	return nil
}

// ValidTransitions enumerates every legal edge, used by tests asserting
// the full transition table.
func ValidTransitions() []Transition {
	return []Transition{
		{Pending, Approved},
		{Pending, Rejected},
		{Pending, Executing},
		{Approved, Executing},
		{Executing, Completed},
		{Executing, Failed},
	}
}

// Value implements database/sql/driver.Valuer.
func (s ToolExecutionState) Value() (driver.Value, error) {
	return string(s), nil
}

// Scan implements sql.Scanner.
func (s *ToolExecutionState) Scan(src any) error {
	var str string
	switch v := src.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	case nil:
		*s = ""
		return nil
	default:
		return fmt.Errorf("orchdstate: cannot scan %T into ToolExecutionState", src)
	}
	candidate := ToolExecutionState(str)
	if !candidate.IsValid() {
		return fmt.Errorf("orchdstate: invalid state %q", str)
	}
	*s = candidate
	return nil
}
