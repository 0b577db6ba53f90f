package template

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/regis-cli/regis-playbook/src/pkg/jsonlogic"
)

var (
	ErrUnbalancedBrace = errors.New("unbalanced brace in format string")
	ErrMissingKey      = errors.New("missing key")
	ErrPositionalField = errors.New("positional fields are not supported")
)

// Format substitutes {name[key][0]} style replacement fields in format with
// values looked up in data. Doubled braces are literal braces. Any field that
// cannot be resolved is an error.
func Format(format string, data map[string]any) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		switch c {
		case '{':
			if i+1 < len(format) && format[i+1] == '{' {
				sb.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(format[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: single '{' encountered", ErrUnbalancedBrace)
			}
			field := format[i+1 : i+1+end]
			v, err := formatField(field, data)
			if err != nil {
				return "", err
			}
			sb.WriteString(v)
			i += end + 1
		case '}':
			if i+1 < len(format) && format[i+1] == '}' {
				sb.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("%w: single '}' encountered", ErrUnbalancedBrace)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

// formatField resolves one replacement field. Conversion (!r, !s) is honored,
// a format specifier after ':' is ignored.
func formatField(field string, data map[string]any) (string, error) {
	conv := ""
	if i := strings.IndexByte(field, '!'); i >= 0 {
		field, conv = field[:i], field[i+1:]
		if j := strings.IndexByte(conv, ':'); j >= 0 {
			conv = conv[:j]
		}
	} else if i := strings.IndexByte(field, ':'); i >= 0 {
		field = field[:i]
	}

	name, rest := splitFieldName(field)
	if name == "" || isDigits(name) {
		return "", fmt.Errorf("%w: {%s}", ErrPositionalField, field)
	}
	cur, ok := data[name]
	if !ok {
		return "", fmt.Errorf("%w: '%s'", ErrMissingKey, name)
	}

	for rest != "" {
		switch rest[0] {
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return "", fmt.Errorf("%w: missing ']' in field {%s}", ErrUnbalancedBrace, field)
			}
			key := rest[1:end]
			rest = rest[end+1:]
			next, err := index(cur, key)
			if err != nil {
				return "", err
			}
			cur = next
		case '.':
			attr, tail := splitFieldName(rest[1:])
			rest = tail
			next, err := index(cur, attr)
			if err != nil {
				return "", err
			}
			cur = next
		default:
			return "", fmt.Errorf("invalid field {%s}", field)
		}
	}

	if conv == "r" {
		return jsonlogic.Repr(cur), nil
	}
	return jsonlogic.Str(cur), nil
}

func index(v any, key string) (any, error) {
	switch c := v.(type) {
	case map[string]any:
		next, ok := c[key]
		if !ok {
			return nil, fmt.Errorf("%w: '%s'", ErrMissingKey, key)
		}
		return next, nil
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(c) {
			return nil, fmt.Errorf("list index out of range: %s", key)
		}
		return c[i], nil
	}
	return nil, fmt.Errorf("%T is not subscriptable", v)
}

func splitFieldName(s string) (string, string) {
	i := strings.IndexAny(s, ".[")
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
