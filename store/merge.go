package store

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/sjson"

	"github.com/orchestrator-core/orchd"
)

// ShallowMerge applies patch onto base with top-level-key overwrite
// semantics only: nested mappings are overwritten as atomic values, never
// recursively merged. Keys present in patch replace the value at that key
// in base wholesale; keys absent from patch are preserved from base.
//
// Implemented via sjson.SetRawBytes per top-level key over the JSON
// encoding of base. store/pgxv5 and store/databasesql call it on the
// decoded jsonb column value and write the result back.
func ShallowMerge(base, patch orchd.JSONMap) orchd.JSONMap {
	if len(patch) == 0 {
		if base == nil {
			return orchd.JSONMap{}
		}
		return cloneMap(base)
	}

	merged, err := json.Marshal(base)
	if err != nil || base == nil {
		merged = []byte("{}")
	}

	for k, v := range patch {
		raw, err := json.Marshal(v)
		if err != nil {
			continue
		}
		next, err := sjson.SetRawBytes(merged, escapeSjsonPath(k), raw)
		if err != nil {
			continue
		}
		merged = next
	}

	var out orchd.JSONMap
	if err := json.Unmarshal(merged, &out); err != nil {
		// Merge never fails in practice (every input round-tripped through
		// json.Marshal above); fall back to patch-wins if it somehow does.
		out = cloneMap(base)
		for k, v := range patch {
			out[k] = v
		}
	}
	if out == nil {
		out = orchd.JSONMap{}
	}
	return out
}

// escapeSjsonPath escapes a plain map key for use as a single sjson path
// segment. sjson treats '.', '*', '?', '|', '#', '@' and '\' as path
// syntax and a leading ':' as a flag; a schemaless top-level key
// containing any of them (e.g. "a.b") must be escaped or it gets written
// as a nested path, or not at all, instead of overwriting that literal key.
func escapeSjsonPath(k string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`.`, `\.`,
		`*`, `\*`,
		`?`, `\?`,
		`|`, `\|`,
		`#`, `\#`,
		`@`, `\@`,
		`:`, `\:`,
	)
	return r.Replace(k)
}

func cloneMap(m orchd.JSONMap) orchd.JSONMap {
	out := make(orchd.JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
