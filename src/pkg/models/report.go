package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Report is a parsed analysis report: a tree of maps, lists and scalars.
type Report = map[string]any

// Normalize rewrites a decoded value tree into the canonical shape used by the
// evaluator: string-keyed maps, []any lists, int64 for integral numbers and
// float64 for the rest.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint64:
		if t <= math.MaxInt64 {
			return int64(t)
		}
		return float64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

// Flatten returns a single-level map whose keys are the dotted paths of every
// leaf in data. Lists are leaves. Nested maps are recursed into and not
// emitted themselves.
func Flatten(data map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", data)
	return out
}

func flattenInto(out map[string]any, prefix string, data map[string]any) {
	for k, v := range data {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			flattenInto(out, key, child)
			continue
		}
		out[key] = v
	}
}

// BuildContext merges the flattened report with its top-level nested entries,
// so conditions can address values either by full dotted key or by walking
// the tree.
func BuildContext(report map[string]any) map[string]any {
	ctx := Flatten(report)
	for k, v := range report {
		ctx[k] = v
	}
	return ctx
}

// ToMap converts a JSON-serializable value into a normalized generic map.
func ToMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	var out map[string]any
	if err := UnmarshalJSON(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UnmarshalJSON decodes raw JSON keeping integral numbers as int64.
func UnmarshalJSON(raw []byte, out *map[string]any) error {
	var decoded any
	if err := decodeNumbers(raw, &decoded); err != nil {
		return err
	}
	m, ok := Normalize(decoded).(map[string]any)
	if !ok {
		return fmt.Errorf("expected a JSON object, got %T", decoded)
	}
	*out = m
	return nil
}

func decodeNumbers(raw []byte, out *any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("failed to decode JSON: %w", err)
	}
	return nil
}
