// Package playbook evaluates playbook definitions against analysis reports.
//
// Evaluation runs in two stages. EvaluateRules scores every rule and resolves
// widgets against the report. ResolveSelfReferences then re-gates sections and
// widgets and re-resolves widget expressions against a context that also
// holds the playbook's own result, for widgets that display the score.
package playbook

import (
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/regis-cli/regis-playbook/src/pkg/jsonlogic"
	"github.com/regis-cli/regis-playbook/src/pkg/models"
	"github.com/regis-cli/regis-playbook/src/pkg/pathresolver"
)

var logger = log.WithField("package", "playbook")

// ErrNoPlacement is returned for playbooks with neither pages nor sections.
var ErrNoPlacement = errors.New("missing both 'pages' and 'sections'")

const (
	defaultPageTitle    = "Default"
	defaultPlaybookName = "unnamed"
)

// selfReferencePrefixes mark widget expressions that read the playbook's own result.
var selfReferencePrefixes = []string{"playbook", "score", "pages", "{{"}

// Evaluate runs both evaluation stages. sourceName, when not empty, is
// recorded in the result metadata.
func Evaluate(pb *models.Playbook, report map[string]any, sourceName string) (*models.PlaybookResult, error) {
	first, err := EvaluateRules(pb, report, sourceName)
	if err != nil {
		return nil, err
	}
	return ResolveSelfReferences(first, report)
}

// EvaluateRules is the first stage: it gates sections, scores rules, resolves
// widgets and links against the report, and aggregates totals.
func EvaluateRules(pb *models.Playbook, report map[string]any, sourceName string) (*models.PlaybookResult, error) {
	name := pb.Name
	if name == "" {
		name = defaultPlaybookName
	}
	if len(pb.Pages) == 0 && len(pb.Sections) == 0 {
		return nil, fmt.Errorf("playbook '%s' is %w, every playbook must define at least one", name, ErrNoPlacement)
	}

	ctx := models.BuildContext(report)

	pages := pb.Pages
	if len(pages) == 0 {
		pages = []models.Page{{Title: defaultPageTitle, Sections: pb.Sections}}
	}

	result := &models.PlaybookResult{
		PlaybookName: name,
		Slug:         pb.Slug,
		Pages:        make([]models.PageResult, 0, len(pages)),
	}

	for _, page := range pages {
		pr := models.PageResult{
			Title:    page.Title,
			Slug:     page.Slug,
			Sections: make([]models.SectionResult, 0, len(page.Sections)),
		}
		if pr.Title == "" {
			pr.Title = defaultPageTitle
		}
		for _, def := range page.Sections {
			if !gateOpen("section", def.Name, def.Condition, ctx) {
				continue
			}
			sr := evaluateSection(def, ctx, report)
			pr.Sections = append(pr.Sections, sr)
			pr.TotalScorecards += sr.TotalScorecards
			pr.PassedScorecards += sr.PassedScorecards
		}
		pr.Score = percentage(pr.PassedScorecards, pr.TotalScorecards)

		result.Pages = append(result.Pages, pr)
		result.TotalScorecards += pr.TotalScorecards
		result.PassedScorecards += pr.PassedScorecards
	}
	result.Score = percentage(result.PassedScorecards, result.TotalScorecards)

	result.Links = resolveLinks(pb.Links, ctx, report)
	if jsonlogic.Truthy(pb.Sidebar) {
		result.Sidebar = pb.Sidebar
	}
	if sourceName != "" {
		result.Meta = &models.Meta{SourceName: sourceName}
	}

	logger.WithFields(log.Fields{
		"playbook": name,
		"score":    result.Score,
		"passed":   result.PassedScorecards,
		"total":    result.TotalScorecards,
	}).Debug("Rules evaluated")
	return result, nil
}

// ResolveSelfReferences is the second stage. It returns a new result in which
// sections and widgets are re-gated, and widget expressions that reference
// the playbook's own output (or were unresolved) are resolved again, against
// {report, result fields, playbook: result, playbooks: [result], score}.
func ResolveSelfReferences(first *models.PlaybookResult, report map[string]any) (*models.PlaybookResult, error) {
	resultMap, err := models.ToMap(first)
	if err != nil {
		return nil, fmt.Errorf("failed to build self-reference context: %w", err)
	}

	full := make(map[string]any, len(report)+len(resultMap)+3)
	for k, v := range report {
		full[k] = v
	}
	for k, v := range resultMap {
		full[k] = v
	}
	full["playbook"] = resultMap
	full["playbooks"] = []any{resultMap}
	full["score"] = resultMap["score"]

	refined := *first
	refined.Pages = make([]models.PageResult, len(first.Pages))
	for i, page := range first.Pages {
		page.Sections = refineSections(page.Sections, full)
		refined.Pages[i] = page
	}
	return &refined, nil
}

func refineSections(sections []models.SectionResult, full map[string]any) []models.SectionResult {
	out := make([]models.SectionResult, 0, len(sections))
	for _, section := range sections {
		if !finalGateOpen("section", section.Name, section.Condition, full) {
			continue
		}
		if section.Widgets != nil {
			section.Widgets = refineWidgets(section.Widgets, full)
		}
		out = append(out, section)
	}
	return out
}

func refineWidgets(widgets []models.ResolvedWidget, full map[string]any) []models.ResolvedWidget {
	out := make([]models.ResolvedWidget, 0, len(widgets))
	for _, w := range widgets {
		if !finalGateOpen("widget", w.Identity(), w.Condition, full) {
			continue
		}
		if needsSecondPass(w.Value, w.ResolvedValue) {
			w.ResolvedValue = pathresolver.Resolve(w.Value, full, full)
		}
		if expr := w.SubvalueExpr(); needsSecondPass(expr, w.ResolvedSubvalue) {
			w.ResolvedSubvalue = pathresolver.Resolve(expr, full, full)
		}
		if needsSecondPass(w.URL, w.ResolvedURL) {
			w.ResolvedURL = pathresolver.ResolveTemplate(w.URL, full, full)
		}
		out = append(out, w)
	}
	return out
}

// needsSecondPass reports whether a widget expression must be resolved again:
// it was unresolved in the first stage or it reads the playbook's own result.
func needsSecondPass(expr any, resolved any) bool {
	if !jsonlogic.Truthy(expr) {
		return false
	}
	if resolved == nil {
		return true
	}
	s, ok := expr.(string)
	if !ok {
		return false
	}
	for _, prefix := range selfReferencePrefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
