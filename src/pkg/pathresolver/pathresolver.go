// Package pathresolver resolves widget value expressions against a report
// context. An expression is either a dotted path such as
// "results.trivy.vulnerabilities[0].id" or, when it carries template markers,
// a template rendered against the nested report.
package pathresolver

import (
	"strconv"
	"strings"

	"github.com/regis-cli/regis-playbook/src/pkg/template"
)

// pathReplacer turns bracket indices into dotted segments: "a[0]" -> "a.0"
var pathReplacer = strings.NewReplacer("[", ".", "]", "")

// Resolve evaluates expr. Non-string expressions are returned unchanged.
// Templates render against nested (or ctx when nested is nil) and fall back
// to the expression itself on failure. Paths that cannot be resolved yield nil.
func Resolve(expr any, ctx map[string]any, nested map[string]any) any {
	s, ok := expr.(string)
	if !ok {
		return expr
	}
	if template.IsTemplate(s) {
		return template.RenderOrKeep(s, renderContext(ctx, nested))
	}
	v, _ := Lookup(s, ctx)
	return v
}

// ResolveTemplate always renders expr as a template. It is used for URLs,
// where a plain string renders to itself.
func ResolveTemplate(expr any, ctx map[string]any, nested map[string]any) any {
	s, ok := expr.(string)
	if !ok {
		return expr
	}
	return template.RenderOrKeep(s, renderContext(ctx, nested))
}

func renderContext(ctx, nested map[string]any) map[string]any {
	if nested != nil {
		return nested
	}
	return ctx
}

// Lookup walks path through maps and lists; a list index outside
// [0, len) fails the walk. Surrounding braces and spaces are
// ignored and empty segments are skipped. ok is false when any segment
// cannot be followed; a present null value also yields (nil, false).
func Lookup(path string, root any) (any, bool) {
	clean := pathReplacer.Replace(strings.Trim(path, "{} "))
	cur := root
	for _, seg := range strings.Split(clean, ".") {
		if seg == "" {
			continue
		}
		switch c := cur.(type) {
		case map[string]any:
			next, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(c) {
				return nil, false
			}
			cur = c[i]
		default:
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}
