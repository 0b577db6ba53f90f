package jsonlogic

import (
	"fmt"
	"strconv"
	"strings"
)

// softEquals implements "==": when either side is a string both are compared
// as strings, when either side is a bool both are compared by truthiness,
// otherwise values compare by plain equality.
func softEquals(a, b any) bool {
	_, aStr := a.(string)
	_, bStr := b.(string)
	if aStr || bStr {
		return Str(a) == Str(b)
	}
	_, aBool := a.(bool)
	_, bBool := b.(bool)
	if aBool || bBool {
		return Truthy(a) == Truthy(b)
	}
	return equal(a, b)
}

// hardEquals implements "===": values of different kinds are never equal.
func hardEquals(a, b any) bool {
	if kind(a) != kind(b) {
		return false
	}
	return equal(a, b)
}

// equal is plain value equality. Numbers (bools included) compare
// numerically, lists and maps element by element.
func equal(a, b any) bool {
	a, b = unwrap(a), unwrap(b)
	if af, ok := numberOrBool(a); ok {
		bf, ok := numberOrBool(b)
		return ok && af == bf
	}
	switch at := a.(type) {
	case nil:
		return b == nil
	case string:
		bs, ok := b.(string)
		return ok && at == bs
	case []any:
		bl, ok := b.([]any)
		if !ok || len(at) != len(bl) {
			return false
		}
		for i := range at {
			if !equal(at[i], bl[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bm, ok := b.(map[string]any)
		if !ok || len(at) != len(bm) {
			return false
		}
		for k, av := range at {
			bv, ok := bm[k]
			if !ok || !equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

func numberOrBool(v any) (float64, bool) {
	if b, ok := v.(bool); ok {
		if b {
			return 1, true
		}
		return 0, true
	}
	return asFloat(v)
}

// less implements "<". When either operand is a number both are converted to
// floats; operands that cannot be converted (null, lists) compare false and
// unparsable strings are an error. Otherwise strings compare lexically and
// bools as integers.
func less(a, b any) (bool, error) {
	if isNumber(a) || isNumber(b) {
		af, ok, err := toFloat(a)
		if err != nil || !ok {
			return false, err
		}
		bf, ok, err := toFloat(b)
		if err != nil || !ok {
			return false, err
		}
		return af < bf, nil
	}
	switch at := a.(type) {
	case string:
		if bs, ok := b.(string); ok {
			return at < bs, nil
		}
	case bool:
		if bb, ok := b.(bool); ok {
			return !at && bb, nil
		}
	}
	return false, fmt.Errorf("'<' not supported between instances of '%s' and '%s'", kind(a), kind(b))
}

// toFloat converts a comparison operand. ok is false when the value has no
// numeric interpretation at all.
func toFloat(v any) (float64, bool, error) {
	switch t := v.(type) {
	case bool:
		if t {
			return 1, true, nil
		}
		return 0, true, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false, fmt.Errorf("could not convert string to float: '%s'", t)
		}
		return f, true, nil
	}
	f, ok := asFloat(v)
	return f, ok, nil
}

func lessOrEqual(a, b any) (bool, error) {
	lt, err := less(a, b)
	if err != nil {
		return false, err
	}
	return lt || softEquals(a, b), nil
}

// chain applies cmp to each adjacent pair, so that three operands express
// "between".
func chain(args []any, cmp func(a, b any) (bool, error)) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("comparison requires at least 2 arguments, got %d", len(args))
	}
	for i := 0; i+1 < len(args); i++ {
		ok, err := cmp(args[i], args[i+1])
		if err != nil {
			return nil, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// contains implements "in": substring for strings, membership for lists,
// key membership for maps. Any other container yields false.
func contains(needle, haystack any) (bool, error) {
	switch h := haystack.(type) {
	case string:
		s, ok := needle.(string)
		if !ok {
			return false, fmt.Errorf("'in <string>' requires string as left operand, not %s", kind(needle))
		}
		return strings.Contains(h, s), nil
	case []any:
		for _, e := range h {
			if equal(needle, e) {
				return true, nil
			}
		}
		return false, nil
	case membership:
		key, ok := needle.(string)
		if !ok {
			return false, nil
		}
		return h.Has(key), nil
	case map[string]any:
		key, ok := needle.(string)
		if !ok {
			return false, nil
		}
		_, found := h[key]
		return found, nil
	}
	return false, nil
}
