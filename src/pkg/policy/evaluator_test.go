package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regis-cli/regis-playbook/src/pkg/models"
)

const minScorePolicy = `package regis

deny[msg] {
	input.score < 80
	msg := sprintf("playbook %s scored %v, below 80", [input.playbook_name, input.score])
}
`

const incompletePolicy = `package regis

deny[msg] {
	some p, s, r
	rule := input.pages[p].sections[s].scorecards[r]
	rule.status == "incomplete"
	msg := sprintf("rule %s could not be evaluated", [rule.name])
}
`

const complianceConfig = `policies:
  min-score:
    name: Minimum score
    type: rego
    filePath: min_score.rego
    externalLink: https://example.com/min-score
    enforcement:
      inEffectAfter: 2020-01-01T00:00:00Z
      isWarningAfter: 2021-01-01T00:00:00Z
      isBlockingAfter: 2022-01-01T00:00:00Z
  complete-data:
    name: Complete data
    type: rego
    filePath: complete.rego
    playbooks: [Security]
    enforcement:
      inEffectAfter: 2099-01-01T00:00:00Z
`

func writePolicies(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func testResults() []*models.PlaybookResult {
	return []*models.PlaybookResult{
		{
			PlaybookName: "Security",
			Score:        50,
			Pages: []models.PageResult{{
				Title: "Default",
				Sections: []models.SectionResult{{
					Name: "Vulnerabilities",
					Scorecards: []models.ScorecardResult{
						{Name: "no-critical", Status: models.RuleStatusPassed, Passed: true},
						{Name: "grype-clean", Status: models.RuleStatusIncomplete},
					},
				}},
			}},
		},
		{
			PlaybookName: "Hygiene",
			Score:        100,
			Pages:        []models.PageResult{},
		},
	}
}

func TestLoadAndValidate(t *testing.T) {
	dir := writePolicies(t, map[string]string{
		COMPLIANCE_CONFIG_FILENAME: complianceConfig,
		"min_score.rego":           minScorePolicy,
		"complete.rego":            incompletePolicy,
	})

	e := NewPolicyEvaluator(dir)
	require.NoError(t, e.LoadAndValidate(context.Background()))
	assert.Equal(t, []string{"min-score", "complete-data"}, e.data.PolicyIDs)
}

func TestLoadAndValidateErrors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{
			name:  "missing config",
			files: map[string]string{},
		},
		{
			name:  "no policies",
			files: map[string]string{COMPLIANCE_CONFIG_FILENAME: "policies: {}\n"},
		},
		{
			name: "wrong type",
			files: map[string]string{
				COMPLIANCE_CONFIG_FILENAME: "policies:\n  p:\n    name: P\n    type: opa\n    filePath: p.rego\n",
				"p.rego":                   minScorePolicy,
			},
		},
		{
			name: "missing policy file",
			files: map[string]string{
				COMPLIANCE_CONFIG_FILENAME: "policies:\n  p:\n    name: P\n    type: rego\n    filePath: p.rego\n",
			},
		},
		{
			name: "invalid rego",
			files: map[string]string{
				COMPLIANCE_CONFIG_FILENAME: "policies:\n  p:\n    name: P\n    type: rego\n    filePath: p.rego\n",
				"p.rego":                   "package regis\n\ndeny[msg] {\n",
			},
		},
		{
			name: "dates out of order",
			files: map[string]string{
				COMPLIANCE_CONFIG_FILENAME: "policies:\n  p:\n    name: P\n    type: rego\n    filePath: p.rego\n    enforcement:\n      isWarningAfter: 2022-01-01T00:00:00Z\n      isBlockingAfter: 2021-01-01T00:00:00Z\n",
				"p.rego":                   minScorePolicy,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewPolicyEvaluator(writePolicies(t, tt.files))
			assert.Error(t, e.LoadAndValidate(context.Background()))
		})
	}
}

func TestEnforce(t *testing.T) {
	dir := writePolicies(t, map[string]string{
		COMPLIANCE_CONFIG_FILENAME: complianceConfig,
		"min_score.rego":           minScorePolicy,
		"complete.rego":            incompletePolicy,
	})
	e := NewPolicyEvaluator(dir)
	e.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	require.NoError(t, e.LoadAndValidate(context.Background()))

	report, err := e.Enforce(context.Background(), testResults())
	require.NoError(t, err)

	require.Len(t, report.BlockingPolicies, 2)
	assert.Equal(t, models.PolicyResult{
		PolicyId:     "min-score",
		PolicyName:   "Minimum score",
		Playbook:     "Security",
		Level:        POLICY_LEVEL_BLOCK,
		ExternalLink: "https://example.com/min-score",
		IsPassing:    false,
		FailMessages: []string{"playbook Security scored 50, below 80"},
	}, report.BlockingPolicies[0])
	assert.True(t, report.BlockingPolicies[1].IsPassing)
	assert.Equal(t, "Hygiene", report.BlockingPolicies[1].Playbook)

	require.Len(t, report.NotInEffectPolicies, 1)
	assert.Equal(t, []string{"rule grype-clean could not be evaluated"}, report.NotInEffectPolicies[0].FailMessages)

	assert.Equal(t, models.PolicyCounts{
		TotalCount:          3,
		TotalSuccess:        1,
		TotalFailed:         1,
		TotalOmittedFailed:  1,
		BlockingFailedCount: 1,
	}, report.Counts)
	assert.False(t, report.PassBlockingCheck())
}

func TestDetermineEnforcementLevel(t *testing.T) {
	date := func(y int) *time.Time {
		d := time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
		return &d
	}
	e := NewPolicyEvaluator("")
	e.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	e.data.Policies = map[string]models.PolicyConfig{
		"none":      {},
		"future":    {Enforcement: models.EnforcementConfig{InEffectAfter: date(2030)}},
		"recommend": {Enforcement: models.EnforcementConfig{InEffectAfter: date(2020)}},
		"warning":   {Enforcement: models.EnforcementConfig{InEffectAfter: date(2020), IsWarningAfter: date(2023)}},
		"block":     {Enforcement: models.EnforcementConfig{IsWarningAfter: date(2023), IsBlockingAfter: date(2024)}},
	}
	e.data.PolicyIDs = []string{"none", "future", "recommend", "warning", "block"}

	assert.Equal(t, map[string]string{
		"none":      POLICY_LEVEL_RECOMMEND,
		"future":    POLICY_LEVEL_NOT_IN_EFFECT,
		"recommend": POLICY_LEVEL_RECOMMEND,
		"warning":   POLICY_LEVEL_WARNING,
		"block":     POLICY_LEVEL_BLOCK,
	}, e.DetermineEnforcementLevel())
}
