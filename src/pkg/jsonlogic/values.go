package jsonlogic

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Scope is a keyed data source that can record its reads, such as a
// tracker.Tracker. Plain map[string]any data is also accepted everywhere.
type Scope interface {
	Get(key string) (any, bool)
}

type membership interface {
	Has(key string) bool
}

type unwrapper interface {
	Unwrap() map[string]any
}

type sized interface {
	Len() int
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func isInteger(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

func isNumber(v any) bool {
	_, ok := asFloat(v)
	return ok
}

// kind classifies a value the way a dynamically typed comparison would:
// int, float, bool, str, none, list, dict or other.
func kind(v any) string {
	switch v.(type) {
	case nil:
		return "none"
	case bool:
		return "bool"
	case string:
		return "str"
	case float32, float64:
		return "float"
	case []any:
		return "list"
	case map[string]any, Scope:
		return "dict"
	}
	if isInteger(v) {
		return "int"
	}
	return "other"
}

// Truthy reports the truthiness of a value: false, nil, zero numbers, empty
// strings, empty lists and empty maps are false.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	case sized:
		return t.Len() > 0
	}
	if f, ok := asFloat(v); ok {
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	}
	return true
}

// toNumeric converts an operand of an arithmetic operator. Strings
// containing a dot parse as floats, other strings as integers.
func toNumeric(v any) (float64, error) {
	switch t := v.(type) {
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string:
		if strings.Contains(t, ".") {
			f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if err != nil {
				return 0, fmt.Errorf("could not convert string to float: '%s'", t)
			}
			return f, nil
		}
		i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid literal for int(): '%s'", t)
		}
		return float64(i), nil
	}
	if f, ok := asFloat(v); ok {
		return f, nil
	}
	return 0, fmt.Errorf("unsupported operand type %s", kind(v))
}

// numberResult turns an arithmetic result back into an integer when it is
// integral.
func numberResult(f float64) any {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

// unwrap returns the plain map behind a Scope, or v itself.
func unwrap(v any) any {
	if u, ok := v.(unwrapper); ok {
		return u.Unwrap()
	}
	return v
}

// Str renders a value the way a dynamic language's str() would: None,
// True/False, integral floats with a trailing ".0", and lists and maps in
// literal notation with quoted strings.
func Str(v any) string {
	v = unwrap(v)
	switch t := v.(type) {
	case nil:
		return "None"
	case bool:
		if t {
			return "True"
		}
		return "False"
	case string:
		return t
	case float32:
		return formatFloat(float64(t))
	case float64:
		return formatFloat(t)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = Repr(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []string:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = Repr(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = Repr(k) + ": " + Repr(t[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprint(v)
}

// Repr is like Str but quotes strings.
func Repr(v any) string {
	if s, ok := v.(string); ok {
		return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
	}
	return Str(v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
