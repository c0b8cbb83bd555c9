package orchdstate

import "testing"

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from ToolExecutionState
		to   ToolExecutionState
		want bool
	}{
		{Pending, Approved, true},
		{Pending, Rejected, true},
		{Pending, Executing, true},
		{Approved, Executing, true},
		{Executing, Completed, true},
		{Executing, Failed, true},
		{Pending, Completed, false},
		{Approved, Completed, false},
		{Rejected, Pending, false},
		{Completed, Pending, false},
		{Failed, Pending, false}, // deliberately not a retry edge, see DESIGN.md
		{Executing, Pending, false},
		{Pending, Pending, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s.CanTransitionTo(%s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range TerminalStates() {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
		for _, target := range AllStates() {
			if s.CanTransitionTo(target) {
				t.Errorf("terminal state %s should not transition to %s", s, target)
			}
		}
	}
}

func TestValidTransitionsAreLegal(t *testing.T) {
	for _, tr := range ValidTransitions() {
		if err := tr.Validate(); err != nil {
			t.Errorf("ValidTransitions entry %+v should validate, got %v", tr, err)
		}
	}
}

func TestScanInvalid(t *testing.T) {
	var s ToolExecutionState
	if err := s.Scan("bogus"); err == nil {
		t.Error("expected error scanning invalid state")
	}
}

func TestScanValid(t *testing.T) {
	var s ToolExecutionState
	if err := s.Scan("executing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != Executing {
		t.Errorf("got %s, want %s", s, Executing)
	}
}
