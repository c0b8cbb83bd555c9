package store

import (
	"reflect"
	"testing"

	"github.com/orchestrator-core/orchd"
)

func TestShallowMerge_OverwritesTopLevelKeys(t *testing.T) {
	base := orchd.JSONMap{"a": 1, "b": orchd.JSONMap{"nested": true}}
	patch := orchd.JSONMap{"b": "replaced", "c": 2}

	got := ShallowMerge(base, patch)

	want := orchd.JSONMap{"a": float64(1), "b": "replaced", "c": float64(2)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ShallowMerge = %#v, want %#v", got, want)
	}
}

func TestShallowMerge_EmptyPatchClonesBase(t *testing.T) {
	base := orchd.JSONMap{"a": 1}
	got := ShallowMerge(base, nil)
	if !reflect.DeepEqual(got, orchd.JSONMap{"a": 1}) {
		t.Fatalf("ShallowMerge with empty patch = %#v", got)
	}

	got["a"] = 2
	if base["a"] != 1 {
		t.Fatal("ShallowMerge must clone base, not alias it")
	}
}

func TestShallowMerge_KeyContainingDotIsOverwrittenWholesale(t *testing.T) {
	// A schemaless top-level key containing '.' must be replaced as one
	// literal key, not split into a nested path by sjson.
	base := orchd.JSONMap{"a.b": "old", "other": 1}
	patch := orchd.JSONMap{"a.b": "new"}

	got := ShallowMerge(base, patch)

	want := orchd.JSONMap{"a.b": "new", "other": float64(1)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ShallowMerge = %#v, want %#v", got, want)
	}
	if _, ok := got["a"]; ok {
		t.Fatalf("dotted key must not be split into a nested \"a\" object, got %#v", got)
	}
}

func TestShallowMerge_KeyContainingWildcardCharsIsOverwrittenWholesale(t *testing.T) {
	base := orchd.JSONMap{"x*y?z": "old"}
	patch := orchd.JSONMap{"x*y?z": "new"}

	got := ShallowMerge(base, patch)

	want := orchd.JSONMap{"x*y?z": "new"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ShallowMerge = %#v, want %#v", got, want)
	}
}
