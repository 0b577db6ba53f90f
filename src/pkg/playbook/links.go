package playbook

import (
	"github.com/regis-cli/regis-playbook/src/pkg/models"
	"github.com/regis-cli/regis-playbook/src/pkg/template"
)

// resolveLinks formats each link URL against the raw report. Links that are
// malformed, gated out, or fail to format are omitted.
func resolveLinks(links []models.Link, ctx, report map[string]any) []models.ResolvedLink {
	var out []models.ResolvedLink
	for _, l := range links {
		if l.Invalid {
			continue
		}
		format, ok := l.URL.(string)
		if !ok {
			continue
		}
		if !gateOpen("link", l.Label, l.Condition, ctx) {
			continue
		}
		url, err := template.Format(format, report)
		if err != nil {
			logger.WithField("link", l.Label).WithError(err).Warn("Could not format link")
			continue
		}
		out = append(out, models.ResolvedLink{Label: l.Label, URL: url})
	}
	return out
}
