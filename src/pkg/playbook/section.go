package playbook

import (
	"math"
	"sort"

	"github.com/regis-cli/regis-playbook/src/pkg/jsonlogic"
	"github.com/regis-cli/regis-playbook/src/pkg/models"
	"github.com/regis-cli/regis-playbook/src/pkg/pathresolver"
)

var defaultLevelOrder = map[string]int{
	"bronze": 1,
	"silver": 2,
	"gold":   3,
}

// percentage returns round(passed/total*100), rounding halves to even, and
// 0 when there is nothing to count.
func percentage(passed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.RoundToEven(float64(passed) / float64(total) * 100))
}

func levelOrder(l models.Level) int {
	if l.Order != nil {
		return *l.Order
	}
	return defaultLevelOrder[l.Name]
}

// evaluateSection evaluates every scorecard of a section and resolves its
// widgets. ctx is the flattened report context, nested the raw report used
// for template rendering.
func evaluateSection(def models.Section, ctx, nested map[string]any) models.SectionResult {
	results := make([]models.ScorecardResult, 0, len(def.Scorecards))
	passed := 0
	for _, sc := range def.Scorecards {
		r := evaluateScorecard(sc, ctx)
		if r.Passed {
			passed++
		}
		results = append(results, r)
	}

	out := models.SectionResult{
		Name:             def.Name,
		Score:            percentage(passed, len(results)),
		TotalScorecards:  len(results),
		PassedScorecards: passed,
		LevelsSummary:    levelsSummary(def.Levels, results),
		TagsSummary:      tagsSummary(results),
		Scorecards:       results,
		Hint:             def.Hint,
		Condition:        def.Condition,
		Display:          def.Display,
	}

	if raw := sectionWidgets(def); len(raw) > 0 {
		out.Widgets = resolveWidgets(raw, ctx, nested)
	}
	out.RenderOrder = renderOrder(def, out.TagsSummary.Len() > 0)
	return out
}

// levelsSummary counts rules per declared level, ordered by level order.
// Levels without any rule are left out.
func levelsSummary(levels []models.Level, results []models.ScorecardResult) models.Summary {
	// a level declared twice keeps its first position and its last order
	orders := make(map[string]int, len(levels))
	var names []string
	for _, l := range levels {
		if _, ok := orders[l.Name]; !ok {
			names = append(names, l.Name)
		}
		orders[l.Name] = levelOrder(l)
	}
	sort.SliceStable(names, func(i, j int) bool {
		return orders[names[i]] < orders[names[j]]
	})

	var summary models.Summary
	for _, name := range names {
		total, passed := 0, 0
		for _, r := range results {
			if r.Level != name {
				continue
			}
			total++
			if r.Passed {
				passed++
			}
		}
		if total == 0 {
			continue
		}
		summary.Set(name, models.SummaryEntry{
			Total:      total,
			Passed:     passed,
			Percentage: percentage(passed, total),
		})
	}
	return summary
}

// tagsSummary counts rules per tag, tags in alphabetical order.
func tagsSummary(results []models.ScorecardResult) models.Summary {
	type counts struct{ total, passed int }
	byTag := make(map[string]*counts)
	for _, r := range results {
		for _, tag := range r.Tags {
			c, ok := byTag[tag]
			if !ok {
				c = &counts{}
				byTag[tag] = c
			}
			c.total++
			if r.Passed {
				c.passed++
			}
		}
	}

	tags := make([]string, 0, len(byTag))
	for tag := range byTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	var summary models.Summary
	for _, tag := range tags {
		c := byTag[tag]
		summary.Set(tag, models.SummaryEntry{
			Total:      c.total,
			Passed:     c.passed,
			Percentage: percentage(c.passed, c.total),
		})
	}
	return summary
}

func sectionWidgets(def models.Section) []models.Widget {
	widgets := append([]models.Widget(nil), def.Widgets...)
	if def.Display != nil {
		widgets = append(widgets, def.Display.Widgets...)
	}
	return widgets
}

func resolveWidgets(widgets []models.Widget, ctx, nested map[string]any) []models.ResolvedWidget {
	out := make([]models.ResolvedWidget, 0, len(widgets))
	for _, w := range widgets {
		if !gateOpen("widget", w.Identity(), w.Condition, ctx) {
			continue
		}
		rw := models.ResolvedWidget{Widget: w}
		if expr := w.Value; jsonlogic.Truthy(expr) {
			rw.ResolvedValue = pathresolver.Resolve(expr, ctx, nested)
		}
		if expr := w.SubvalueExpr(); jsonlogic.Truthy(expr) {
			rw.ResolvedSubvalue = pathresolver.Resolve(expr, ctx, nested)
		}
		if expr := w.URL; jsonlogic.Truthy(expr) {
			rw.ResolvedURL = pathresolver.ResolveTemplate(expr, ctx, nested)
		}
		out = append(out, rw)
	}
	return out
}
