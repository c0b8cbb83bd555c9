package manifestvalidate_test

import (
	"testing"

	"github.com/orchestrator-core/orchd/manifestvalidate"
)

func TestInputs_NilSchemaAlwaysValidates(t *testing.T) {
	if err := manifestvalidate.Inputs(nil, map[string]any{"anything": 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInputs_Valid(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"locale"},
		"properties": map[string]any{
			"locale": map[string]any{"type": "string"},
		},
	}
	if err := manifestvalidate.Inputs(schema, map[string]any{"locale": "en-US"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInputs_MissingRequiredField(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"locale"},
		"properties": map[string]any{
			"locale": map[string]any{"type": "string"},
		},
	}
	if err := manifestvalidate.Inputs(schema, map[string]any{}); err == nil {
		t.Fatal("expected validation error for missing required field")
	}
}

func TestInputs_WrongType(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"count": map[string]any{"type": "integer"},
		},
	}
	if err := manifestvalidate.Inputs(schema, map[string]any{"count": "not-a-number"}); err == nil {
		t.Fatal("expected validation error for wrong type")
	}
}
