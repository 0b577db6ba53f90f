package jsonlogic

import (
	"sort"
	"strings"
)

var comparisonOps = map[string]bool{
	"==": true, "!=": true,
	">": true, ">=": true, "<": true, "<=": true,
}

// Explain renders a condition as a human-readable expression, substituting
// the current value of every variable it reads:
//
//	{"==": [{"var": "a"}, 1]}  ->  "a (1) == 1"
//
// Variables that are absent or null render as "path (MISSING)".
func Explain(condition any, data any) string {
	rule, ok := condition.(map[string]any)
	if !ok || len(rule) == 0 {
		if condition == nil {
			return "MISSING"
		}
		return Str(condition)
	}

	op, raw := firstOperation(rule)
	args := argList(raw)

	if op == "var" {
		path := ""
		if len(args) > 0 {
			path = pathString(args[0])
		}
		v, found := explainLookup(data, path)
		if !found || v == nil {
			return path + " (MISSING)"
		}
		return path + " (" + Str(v) + ")"
	}

	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Explain(a, data)
	}

	switch {
	case comparisonOps[op]:
		if len(parts) >= 2 {
			return parts[0] + " " + op + " " + parts[1]
		}
	case op == "in":
		if len(parts) == 2 {
			return parts[0] + " in " + parts[1]
		}
	case op == "!":
		if len(parts) == 1 {
			return "!(" + parts[0] + ")"
		}
	case op == "and" || op == "or":
		wrapped := make([]string, len(parts))
		for i, p := range parts {
			wrapped[i] = "(" + p + ")"
		}
		return strings.Join(wrapped, " "+op+" ")
	}
	return op + "(" + strings.Join(parts, ", ") + ")"
}

// firstOperation picks the operator of a rule; rules with several keys are
// not valid JsonLogic, the lexically first key is used for display.
func firstOperation(rule map[string]any) (string, any) {
	keys := make([]string, 0, len(rule))
	for k := range rule {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0], rule[keys[0]]
}

// explainLookup reads path as a flat key first, then as a dotted path.
func explainLookup(data any, path string) (any, bool) {
	switch d := data.(type) {
	case Scope:
		if v, ok := d.Get(path); ok {
			return v, true
		}
	case map[string]any:
		if v, ok := d[path]; ok {
			return v, true
		}
	}
	if path == "" {
		return nil, false
	}
	return lookup(data, path)
}
