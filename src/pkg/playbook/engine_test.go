package playbook

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/regis-cli/regis-playbook/src/pkg/models"
)

func testReport() map[string]any {
	return map[string]any{
		"request": map[string]any{
			"registry":   "docker.io",
			"repository": "library/nginx",
			"tag":        "1.25",
		},
		"results": map[string]any{
			"trivy": map[string]any{
				"critical_count": int64(0),
				"high_count":     int64(3),
			},
			"skopeo": map[string]any{
				"platforms": []any{"linux/amd64", "linux/arm64"},
			},
		},
	}
}

func mustPlaybook(t *testing.T, src string) *models.Playbook {
	t.Helper()
	var pb models.Playbook
	require.NoError(t, yaml.Unmarshal([]byte(src), &pb))
	pb.Normalize()
	return &pb
}

const securityPlaybook = `
name: Security
slug: security
links:
  - label: Docker Hub
    url: "https://hub.docker.com/r/{request[repository]}/tags?name={request[tag]}"
  - label: Broken
    url: "https://example.com/{request[digest]}"
  - "not a link"
  - label: Numeric
    url: 42
sidebar:
  show: true
sections:
  - name: Vulnerabilities
    levels:
      - name: gold
      - name: bronze
      - name: silver
        order: 2
    scorecards:
      - name: no-critical
        title: No critical vulnerabilities
        level: bronze
        tags: [security, cve]
        condition: {"==": [{"var": "results.trivy.critical_count"}, 0]}
      - name: few-high
        level: silver
        tags: [security]
        condition: {"<": [{"var": "results.trivy.high_count"}, 2]}
      - name: grype-clean
        level: gold
        condition: {"==": [{"var": "results.grype.count"}, 0]}
    widgets:
      - label: Critical
        value: results.trivy.critical_count
      - label: Score
        value: "{{ score }}%"
        options:
          subvalue: "{{ playbook.passed_scorecards }}/{{ playbook.total_scorecards }}"
      - label: Hidden
        value: results.trivy.high_count
        condition: {"==": [{"var": "request.tag"}, "latest"]}
`

func TestEvaluate(t *testing.T) {
	pb := mustPlaybook(t, securityPlaybook)

	result, err := Evaluate(pb, testReport(), "security")
	require.NoError(t, err)

	assert.Equal(t, "Security", result.PlaybookName)
	assert.Equal(t, "security", result.Slug)
	assert.Equal(t, 3, result.TotalScorecards)
	assert.Equal(t, 1, result.PassedScorecards)
	assert.Equal(t, 33, result.Score)
	assert.Equal(t, &models.Meta{SourceName: "security"}, result.Meta)
	assert.Equal(t, map[string]any{"show": true}, result.Sidebar)

	require.Len(t, result.Pages, 1)
	page := result.Pages[0]
	assert.Equal(t, "Default", page.Title)
	assert.Equal(t, 33, page.Score)

	require.Len(t, page.Sections, 1)
	section := page.Sections[0]
	assert.Equal(t, "Vulnerabilities", section.Name)
	assert.Equal(t, []string{"levels", "tags", "scorecards", "widgets"}, section.RenderOrder)

	require.Len(t, section.Scorecards, 3)
	assert.Equal(t, models.ScorecardResult{
		Name:      "no-critical",
		Title:     "No critical vulnerabilities",
		Level:     "bronze",
		Tags:      []string{"security", "cve"},
		Analyzers: []string{"trivy"},
		Passed:    true,
		Status:    models.RuleStatusPassed,
		Condition: `{"==":[{"var":"results.trivy.critical_count"},0]}`,
		Details:   "results.trivy.critical_count (0) == 0",
	}, section.Scorecards[0])

	assert.Equal(t, "few-high", section.Scorecards[1].Title)
	assert.Equal(t, models.RuleStatusFailed, section.Scorecards[1].Status)
	assert.Equal(t, `{"<":[{"var":"results.trivy.high_count"},2]}`, section.Scorecards[1].Condition)

	grype := section.Scorecards[2]
	assert.False(t, grype.Passed)
	assert.Equal(t, models.RuleStatusIncomplete, grype.Status)
	assert.Equal(t, []string{"grype"}, grype.Analyzers)
	assert.Equal(t, []string{}, grype.Tags)
	assert.Equal(t, "results.grype.count (MISSING) == 0", grype.Details)

	levels, err := json.Marshal(section.LevelsSummary)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"bronze": {"total": 1, "passed": 1, "percentage": 100},
		"silver": {"total": 1, "passed": 0, "percentage": 0},
		"gold":   {"total": 1, "passed": 0, "percentage": 0}
	}`, string(levels))
	assert.Equal(t, []string{"bronze", "silver", "gold"}, section.LevelsSummary.Keys())
	assert.Equal(t, []string{"cve", "security"}, section.TagsSummary.Keys())
	security, _ := section.TagsSummary.Get("security")
	assert.Equal(t, models.SummaryEntry{Total: 2, Passed: 1, Percentage: 50}, security)

	require.Len(t, section.Widgets, 2)
	assert.Equal(t, int64(0), section.Widgets[0].ResolvedValue)
	assert.Equal(t, "33%", section.Widgets[1].ResolvedValue)
	assert.Equal(t, "1/3", section.Widgets[1].ResolvedSubvalue)

	assert.Equal(t, []models.ResolvedLink{{
		Label: "Docker Hub",
		URL:   "https://hub.docker.com/r/library/nginx/tags?name=1.25",
	}}, result.Links)
}

func TestResolveSelfReferencesDoesNotMutateFirstStage(t *testing.T) {
	pb := mustPlaybook(t, securityPlaybook)

	first, err := EvaluateRules(pb, testReport(), "")
	require.NoError(t, err)
	assert.Nil(t, first.Meta)
	assert.Equal(t, "%", first.Pages[0].Sections[0].Widgets[1].ResolvedValue)

	second, err := ResolveSelfReferences(first, testReport())
	require.NoError(t, err)
	assert.Equal(t, "33%", second.Pages[0].Sections[0].Widgets[1].ResolvedValue)
	assert.Equal(t, "%", first.Pages[0].Sections[0].Widgets[1].ResolvedValue)
}

func TestEvaluateRequiresPagesOrSections(t *testing.T) {
	_, err := Evaluate(&models.Playbook{Name: "empty"}, testReport(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPlacement)
	assert.Contains(t, err.Error(), "'empty'")
}

func TestEvaluateSectionGates(t *testing.T) {
	pb := mustPlaybook(t, `
name: Platforms
pages:
  - title: Build
    slug: build
    sections:
      - name: Arm
        condition: {"in": ["linux/arm64", {"var": "results.skopeo.platforms"}]}
        scorecards:
          - name: multi-arch
            condition: {">=": [{"var": "results.skopeo.platforms"}, 0]}
      - name: Windows
        condition: {"in": ["windows/amd64", {"var": "results.skopeo.platforms"}]}
      - name: Grype
        condition: {">": [{"var": "results.grype.count"}, 0]}
      - name: Broken
        condition: {"frobnicate": [1]}
      - name: BrokenMissing
        condition: {"frobnicate": [{"var": "results.grype.count"}]}
`)

	first, err := EvaluateRules(pb, testReport(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Arm", "Grype", "BrokenMissing"}, sectionNames(first.Pages[0]))

	result, err := Evaluate(pb, testReport(), "")
	require.NoError(t, err)
	require.Len(t, result.Pages, 1)
	assert.Equal(t, "Build", result.Pages[0].Title)
	assert.Equal(t, "build", result.Pages[0].Slug)
	assert.Equal(t, []string{"Arm"}, sectionNames(result.Pages[0]))
}

func sectionNames(page models.PageResult) []string {
	var names []string
	for _, s := range page.Sections {
		names = append(names, s.Name)
	}
	return names
}

func TestEvaluateFalsyConditionMeansNoGate(t *testing.T) {
	pb := mustPlaybook(t, `
name: Falsy
sections:
  - name: Disabled
    condition: false
  - name: Zeroed
    condition: 0
  - name: EmptyList
    condition: []
  - name: EmptyString
    condition: ""
    widgets:
      - label: Always
        value: request.tag
        condition: false
links:
  - label: Tag
    url: "https://example.com/{request[tag]}"
    condition: 0
`)

	result, err := Evaluate(pb, testReport(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Disabled", "Zeroed", "EmptyList", "EmptyString"}, sectionNames(result.Pages[0]))

	widgets := result.Pages[0].Sections[3].Widgets
	require.Len(t, widgets, 1)
	assert.Equal(t, "1.25", widgets[0].ResolvedValue)
	assert.Equal(t, []models.ResolvedLink{{Label: "Tag", URL: "https://example.com/1.25"}}, result.Links)
}

func TestEvaluateGatesOnOwnScore(t *testing.T) {
	pb := mustPlaybook(t, `
name: Score gates
sections:
  - name: Critical
    scorecards:
      - name: no-critical
        condition: {"==": [{"var": "results.trivy.critical_count"}, 0]}
    widgets:
      - label: Perfect
        value: score
        condition: {"==": [{"var": "score"}, 100]}
      - label: Score
        value: score
  - name: High
    scorecards:
      - name: few-high
        condition: {"<": [{"var": "results.trivy.high_count"}, 2]}
  - name: Celebration
    condition: {">=": [{"var": "score"}, 90]}
`)

	first, err := EvaluateRules(pb, testReport(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Critical", "High", "Celebration"}, sectionNames(first.Pages[0]))
	assert.Len(t, first.Pages[0].Sections[0].Widgets, 2)

	result, err := Evaluate(pb, testReport(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalScorecards)
	assert.Equal(t, 1, result.PassedScorecards)
	assert.Equal(t, 50, result.Score)
	assert.Equal(t, 50, result.Pages[0].Score)
	assert.Equal(t, []string{"Critical", "High"}, sectionNames(result.Pages[0]))

	widgets := result.Pages[0].Sections[0].Widgets
	require.Len(t, widgets, 1)
	assert.Equal(t, "Score", widgets[0].Label)
	assert.Equal(t, int64(50), widgets[0].ResolvedValue)
}

func TestEvaluateAllLevelsPassing(t *testing.T) {
	pb := mustPlaybook(t, `
name: Release readiness
sections:
  - name: Supply chain
    scorecards:
      - name: tagged
        level: bronze
        condition: {">": [{"var": "results.tags.total_tags"}, 0]}
      - name: provenance
        level: silver
        condition: {"==": [{"var": "results.provenance.has_provenance"}, true]}
      - name: scorecard
        level: gold
        condition: {">=": [{"var": "results.scorecarddev.score"}, 7]}
`)
	report := map[string]any{
		"results": map[string]any{
			"tags":         map[string]any{"total_tags": int64(100)},
			"provenance":   map[string]any{"has_provenance": true},
			"scorecarddev": map[string]any{"score": int64(8)},
		},
	}

	result, err := Evaluate(pb, report, "")
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalScorecards)
	assert.Equal(t, 3, result.PassedScorecards)
	assert.Equal(t, 100, result.Score)

	section := result.Pages[0].Sections[0]
	require.Len(t, section.Scorecards, 3)
	for _, sc := range section.Scorecards {
		assert.True(t, sc.Passed, sc.Name)
		assert.Equal(t, models.RuleStatusPassed, sc.Status, sc.Name)
	}
}

func TestEvaluateNoRules(t *testing.T) {
	pb := &models.Playbook{
		Name:     "Info",
		Sections: []models.Section{{Name: "Overview"}},
	}

	result, err := Evaluate(pb, testReport(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Score)
	assert.Equal(t, 0, result.Pages[0].Sections[0].Score)
	assert.Empty(t, result.Pages[0].Sections[0].RenderOrder)
	assert.Nil(t, result.Links)
	assert.Nil(t, result.Sidebar)
}

func TestEvaluateScorecardWithoutCondition(t *testing.T) {
	pb := &models.Playbook{
		Name: "P",
		Sections: []models.Section{{
			Name:       "S",
			Scorecards: []models.Scorecard{{Name: "bare"}},
		}},
	}

	result, err := Evaluate(pb, testReport(), "")
	require.NoError(t, err)
	sc := result.Pages[0].Sections[0].Scorecards[0]
	assert.False(t, sc.Passed)
	assert.Equal(t, models.RuleStatusIncomplete, sc.Status)
	assert.Equal(t, "{}", sc.Condition)
	assert.Equal(t, "bare", sc.Title)
}

func TestEvaluateWidgets(t *testing.T) {
	pb := mustPlaybook(t, `
name: Widgets
sections:
  - name: Overview
    display:
      analyzers: [skopeo]
      widgets:
        - label: Platforms
          value: "results.skopeo.platforms[1]"
          url: "https://hub.docker.com/r/{{ request.repository }}"
        - label: Unknown
          value: results.grype.count
        - template: gauge
          value: "{{ results.trivy.high_count|default('0') }} high"
        - label: Literal
          value: 7
        - label: Level
          value: playbook.pages.0.title
`)

	result, err := Evaluate(pb, testReport(), "")
	require.NoError(t, err)
	widgets := result.Pages[0].Sections[0].Widgets
	require.Len(t, widgets, 5)

	assert.Equal(t, "linux/arm64", widgets[0].ResolvedValue)
	assert.Equal(t, "https://hub.docker.com/r/library/nginx", widgets[0].ResolvedURL)
	assert.Nil(t, widgets[1].ResolvedValue)
	assert.Equal(t, "3 high", widgets[2].ResolvedValue)
	assert.Equal(t, int64(7), widgets[3].ResolvedValue)
	assert.Equal(t, "Default", widgets[4].ResolvedValue)

	assert.Equal(t, []string{"analyzers", "widgets"}, result.Pages[0].Sections[0].RenderOrder)
}

func TestEvaluateLinkCondition(t *testing.T) {
	pb := mustPlaybook(t, `
name: Links
sections:
  - name: S
links:
  - label: Latest only
    url: "https://example.com/{request[tag]}"
    condition: {"==": [{"var": "request.tag"}, "latest"]}
  - label: Any tag
    url: "https://example.com/{request[tag]}"
    condition: {"!!": [{"var": "request.tag"}]}
  - label: Literal braces
    url: "https://example.com/{{x}}"
`)

	result, err := Evaluate(pb, testReport(), "")
	require.NoError(t, err)
	assert.Equal(t, []models.ResolvedLink{
		{Label: "Any tag", URL: "https://example.com/1.25"},
		{Label: "Literal braces", URL: "https://example.com/{x}"},
	}, result.Links)
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		passed, total, want int
	}{
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 12},
		{3, 8, 38},
		{4, 4, 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, percentage(tt.passed, tt.total), "%d/%d", tt.passed, tt.total)
	}
}
