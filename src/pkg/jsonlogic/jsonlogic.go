// Package jsonlogic evaluates JsonLogic rules against report data.
//
// Data may be a plain map[string]any or a Scope such as tracker.Tracker, in
// which case every key read by "var", "missing", "missing_some" and "in" goes
// through the Scope and is recorded there.
package jsonlogic

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("package", "jsonlogic")

// ErrUnknownOperator is returned for rules naming an operator that is not supported.
var ErrUnknownOperator = errors.New("unrecognized operation")

type operator func(args []any) (any, error)

var operators map[string]operator

func init() {
	operators = map[string]operator{
		"==":  binary(func(a, b any) (any, error) { return softEquals(a, b), nil }),
		"===": binary(func(a, b any) (any, error) { return hardEquals(a, b), nil }),
		"!=":  binary(func(a, b any) (any, error) { return !softEquals(a, b), nil }),
		"!==": binary(func(a, b any) (any, error) { return !hardEquals(a, b), nil }),
		">": binary(func(a, b any) (any, error) {
			return less(b, a)
		}),
		">=": binary(func(a, b any) (any, error) {
			return lessOrEqual(b, a)
		}),
		"<":   func(args []any) (any, error) { return chain(args, less) },
		"<=":  func(args []any) (any, error) { return chain(args, lessOrEqual) },
		"!":   unary(func(a any) (any, error) { return !Truthy(a), nil }),
		"!!":  unary(func(a any) (any, error) { return Truthy(a), nil }),
		"%":   binary(modulo),
		"+":   plus,
		"-":   minus,
		"*":   multiply,
		"/":   binary(divide),
		"min": minMax(func(a, b float64) bool { return a < b }),
		"max": minMax(func(a, b float64) bool { return a > b }),
		"in": binary(func(a, b any) (any, error) {
			return contains(a, b)
		}),
		"cat":    cat,
		"substr": substr,
		"merge":  merge,
		"log": unary(func(a any) (any, error) {
			logger.WithField("value", Str(a)).Info("jsonlogic log")
			return a, nil
		}),
	}
}

// Apply evaluates rule against data. Non-map rules are literals and are
// returned as they are; lists are evaluated element by element.
func Apply(rule any, data any) (any, error) {
	switch r := rule.(type) {
	case map[string]any:
		op, raw, err := operation(r)
		if err != nil {
			return nil, err
		}
		return apply(op, raw, data)
	case []any:
		out := make([]any, len(r))
		for i, e := range r {
			v, err := Apply(e, data)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		return rule, nil
	}
}

// operation returns the single operator of a rule map and its raw arguments.
func operation(rule map[string]any) (string, any, error) {
	if len(rule) != 1 {
		return "", nil, fmt.Errorf("rule must have exactly one operator, got %d", len(rule))
	}
	for op, args := range rule {
		return op, args, nil
	}
	return "", nil, nil
}

func argList(raw any) []any {
	if l, ok := raw.([]any); ok {
		return l
	}
	return []any{raw}
}

func apply(op string, raw any, data any) (any, error) {
	args := argList(raw)

	// operators that control evaluation of their own arguments
	switch op {
	case "var":
		return applyVar(args, data)
	case "missing":
		return applyMissing(args, data)
	case "missing_some":
		return applyMissingSome(args, data)
	case "if", "?:":
		return applyIf(args, data)
	case "and":
		return applyAnd(args, data)
	case "or":
		return applyOr(args, data)
	}

	// arguments are evaluated before the operator is looked up, so the
	// variables of an unknown operation are still recorded
	values, err := evalAll(args, data)
	if err != nil {
		return nil, err
	}
	fn, ok := operators[op]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperator, op)
	}
	return fn(values)
}

func applyVar(args []any, data any) (any, error) {
	if len(args) == 0 {
		return data, nil
	}
	path, err := Apply(args[0], data)
	if err != nil {
		return nil, err
	}
	var def any
	if len(args) > 1 {
		if def, err = Apply(args[1], data); err != nil {
			return nil, err
		}
	}
	key := pathString(path)
	if key == "" {
		return data, nil
	}
	v, found := lookup(data, key)
	if !found {
		return def, nil
	}
	return v, nil
}

func pathString(path any) string {
	switch p := path.(type) {
	case nil:
		return ""
	case string:
		return p
	}
	return Str(path)
}

// lookup walks a dotted path through maps, Scopes and lists.
func lookup(data any, path string) (any, bool) {
	cur := data
	for _, seg := range strings.Split(path, ".") {
		switch c := cur.(type) {
		case Scope:
			v, ok := c.Get(seg)
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]any:
			v, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil, false
			}
			cur = c[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

func applyMissing(args []any, data any) (any, error) {
	values, err := evalAll(args, data)
	if err != nil {
		return nil, err
	}
	if len(values) > 0 {
		if l, ok := values[0].([]any); ok {
			values = l
		}
	}
	out := []any{}
	for _, key := range values {
		if _, found := lookup(data, pathString(key)); !found {
			out = append(out, key)
		}
	}
	return out, nil
}

func applyMissingSome(args []any, data any) (any, error) {
	values, err := evalAll(args, data)
	if err != nil {
		return nil, err
	}
	if len(values) < 2 {
		return nil, fmt.Errorf("missing_some requires 2 arguments, got %d", len(values))
	}
	need, err := toNumeric(values[0])
	if err != nil {
		return nil, err
	}
	out := []any{}
	if need < 1 {
		return out, nil
	}
	found := 0
	for _, key := range argList(values[1]) {
		if _, ok := lookup(data, pathString(key)); !ok {
			out = append(out, key)
			continue
		}
		found++
		if float64(found) >= need {
			return []any{}, nil
		}
	}
	return out, nil
}

func applyIf(args []any, data any) (any, error) {
	for i := 0; i+1 < len(args); i += 2 {
		cond, err := Apply(args[i], data)
		if err != nil {
			return nil, err
		}
		if Truthy(cond) {
			return Apply(args[i+1], data)
		}
	}
	if len(args)%2 == 1 {
		return Apply(args[len(args)-1], data)
	}
	return nil, nil
}

// applyAnd returns the first falsy operand, or the last one. Evaluation
// stops at the first falsy operand.
func applyAnd(args []any, data any) (any, error) {
	var last any = true
	for _, a := range args {
		v, err := Apply(a, data)
		if err != nil {
			return nil, err
		}
		if !Truthy(v) {
			return v, nil
		}
		last = v
	}
	return last, nil
}

// applyOr returns the first truthy operand, or the last one.
func applyOr(args []any, data any) (any, error) {
	var last any = false
	for _, a := range args {
		v, err := Apply(a, data)
		if err != nil {
			return nil, err
		}
		if Truthy(v) {
			return v, nil
		}
		last = v
	}
	return last, nil
}

func evalAll(args []any, data any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		v, err := Apply(a, data)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func unary(fn func(a any) (any, error)) operator {
	return func(args []any) (any, error) {
		if len(args) == 0 {
			return fn(nil)
		}
		return fn(args[0])
	}
}

func binary(fn func(a, b any) (any, error)) operator {
	return func(args []any) (any, error) {
		if len(args) < 2 {
			return nil, fmt.Errorf("operator requires 2 arguments, got %d", len(args))
		}
		return fn(args[0], args[1])
	}
}

func plus(args []any) (any, error) {
	sum := 0.0
	for _, a := range args {
		n, err := toNumeric(a)
		if err != nil {
			return nil, err
		}
		sum += n
	}
	return numberResult(sum), nil
}

func minus(args []any) (any, error) {
	switch len(args) {
	case 0:
		return nil, errors.New("'-' requires at least 1 argument")
	case 1:
		n, err := toNumeric(args[0])
		if err != nil {
			return nil, err
		}
		return numberResult(-n), nil
	}
	a, err := toNumeric(args[0])
	if err != nil {
		return nil, err
	}
	b, err := toNumeric(args[1])
	if err != nil {
		return nil, err
	}
	return numberResult(a - b), nil
}

func multiply(args []any) (any, error) {
	product := 1.0
	for _, a := range args {
		n, err := toNumeric(a)
		if err != nil {
			return nil, err
		}
		product *= n
	}
	return numberResult(product), nil
}

func divide(a, b any) (any, error) {
	x, err := toNumeric(a)
	if err != nil {
		return nil, err
	}
	y, err := toNumeric(b)
	if err != nil {
		return nil, err
	}
	if y == 0 {
		return nil, errors.New("division by zero")
	}
	return x / y, nil
}

func modulo(a, b any) (any, error) {
	x, err := toNumeric(a)
	if err != nil {
		return nil, err
	}
	y, err := toNumeric(b)
	if err != nil {
		return nil, err
	}
	if y == 0 {
		return nil, errors.New("modulo by zero")
	}
	m := math.Mod(x, y)
	if m != 0 && (m < 0) != (y < 0) {
		m += y
	}
	return numberResult(m), nil
}

func minMax(better func(a, b float64) bool) operator {
	return func(args []any) (any, error) {
		if len(args) == 0 {
			return nil, errors.New("min/max requires at least 1 argument")
		}
		best, err := toNumeric(args[0])
		if err != nil {
			return nil, err
		}
		for _, a := range args[1:] {
			n, err := toNumeric(a)
			if err != nil {
				return nil, err
			}
			if better(n, best) {
				best = n
			}
		}
		return numberResult(best), nil
	}
}

func cat(args []any) (any, error) {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(Str(a))
	}
	return sb.String(), nil
}

// substr slices a string by rune offsets; negative start and length count
// from the end.
func substr(args []any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("substr requires at least 2 arguments, got %d", len(args))
	}
	s := []rune(Str(args[0]))
	n := len(s)
	start, err := toNumeric(args[1])
	if err != nil {
		return nil, err
	}
	from := clampIndex(int(start), n)
	to := n
	if len(args) > 2 && args[2] != nil {
		length, err := toNumeric(args[2])
		if err != nil {
			return nil, err
		}
		if length < 0 {
			to = clampIndex(n+int(length), n)
		} else {
			to = clampIndex(from+int(length), n)
		}
	}
	if to < from {
		return "", nil
	}
	return string(s[from:to]), nil
}

func clampIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

func merge(args []any) (any, error) {
	out := []any{}
	for _, a := range args {
		if l, ok := a.([]any); ok {
			out = append(out, l...)
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
