// Package template renders widget expressions and link URLs.
//
// Widget expressions use a Jinja-like syntax rendered with pongo2. Filters
// written with call syntax, such as {{ x|default('n/a') }}, are rewritten to
// pongo2's colon syntax before rendering.
package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/flosch/pongo2/v6"
	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("package", "template")

const (
	FilterFormatDate     = "format_date"
	FilterFormatDatetime = "format_datetime"

	DateLayout     = "2006-01-02"
	DatetimeLayout = "2006-01-02 15:04:05"

	markerFilter    = "|"
	markerExprOpen  = "{{"
	markerExprClose = "}}"
)

var (
	identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	callFilterRe = regexp.MustCompile(`\|\s*([A-Za-z_][A-Za-z0-9_]*)\(\s*([^()]*?)\s*\)`)
	quotedArgRe  = regexp.MustCompile(`^'([^']*)'$`)
)

func init() {
	registerFilter(FilterFormatDate, dateFilter(FormatDate))
	registerFilter(FilterFormatDatetime, dateFilter(FormatDatetime))
}

func registerFilter(name string, fn pongo2.FilterFunction) {
	if pongo2.FilterExists(name) {
		return
	}
	if err := pongo2.RegisterFilter(name, fn); err != nil {
		logger.WithError(err).Errorf("failed to register filter %s", name)
	}
}

func dateFilter(format func(string) string) pongo2.FilterFunction {
	return func(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		if !in.IsString() {
			return in, nil
		}
		return pongo2.AsValue(format(in.String())), nil
	}
}

// IsTemplate reports whether an expression must be rendered rather than
// looked up as a path.
func IsTemplate(expr string) bool {
	if strings.Contains(expr, markerFilter) {
		return true
	}
	return strings.Contains(expr, markerExprOpen) && strings.Contains(expr, markerExprClose)
}

// Render renders tpl against data. Only top-level keys that are valid
// identifiers are exposed to the template.
func Render(tpl string, data map[string]any) (string, error) {
	t, err := pongo2.FromString(compat(tpl))
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}
	out, err := t.Execute(contextFor(data))
	if err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return out, nil
}

// RenderOrKeep renders tpl and falls back to tpl itself on any failure.
func RenderOrKeep(tpl string, data map[string]any) string {
	out, err := Render(tpl, data)
	if err != nil {
		logger.WithField("template", tpl).WithError(err).Debug("Template rendering failed, keeping expression")
		return tpl
	}
	return out
}

func contextFor(data map[string]any) pongo2.Context {
	ctx := make(pongo2.Context, len(data))
	for k, v := range data {
		if identifierRe.MatchString(k) {
			ctx[k] = v
		}
	}
	return ctx
}

// compat rewrites call-style filter arguments to pongo2's colon syntax:
// "|f('a')" becomes "|f:\"a\"".
func compat(tpl string) string {
	return callFilterRe.ReplaceAllStringFunc(tpl, func(m string) string {
		sub := callFilterRe.FindStringSubmatch(m)
		name, arg := sub[1], sub[2]
		if arg == "" {
			return "|" + name
		}
		if q := quotedArgRe.FindStringSubmatch(arg); q != nil {
			arg = `"` + q[1] + `"`
		}
		return "|" + name + ":" + arg
	})
}
