package playbook

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/regis-cli/regis-playbook/src/pkg/jsonlogic"
	"github.com/regis-cli/regis-playbook/src/pkg/models"
	"github.com/regis-cli/regis-playbook/src/pkg/tracker"
)

var errNoCondition = errors.New("scorecard has no condition")

// evaluateScorecard runs one rule against ctx.
func evaluateScorecard(sc models.Scorecard, ctx map[string]any) models.ScorecardResult {
	session := tracker.NewSession()
	passed, incomplete := false, false

	result, err := applyCondition(sc.Condition, tracker.New(ctx, session))
	if err != nil {
		logger.WithField("scorecard", sc.Name).WithError(err).Warn("Scorecard evaluation failed")
		incomplete = true
	} else {
		passed = jsonlogic.Truthy(result)
		incomplete = session.Incomplete()
	}

	status := models.RuleStatusFailed
	switch {
	case incomplete:
		status = models.RuleStatusIncomplete
	case passed:
		status = models.RuleStatusPassed
	}

	tags := sc.Tags
	if tags == nil {
		tags = []string{}
	}

	return models.ScorecardResult{
		Name:      sc.Name,
		Title:     sc.DisplayTitle(),
		Level:     sc.Level,
		Tags:      tags,
		Analyzers: session.Analyzers(),
		Passed:    passed,
		Status:    status,
		Condition: conditionJSON(sc.Condition),
		Details:   explainCondition(sc.Condition, ctx),
	}
}

func applyCondition(condition any, data *tracker.Tracker) (any, error) {
	if isEmptyCondition(condition) {
		return nil, errNoCondition
	}
	return jsonlogic.Apply(condition, data)
}

func explainCondition(condition any, ctx map[string]any) string {
	if condition == nil {
		return "{}"
	}
	return jsonlogic.Explain(condition, ctx)
}

// conditionJSON serializes a condition without HTML escaping, so operators
// such as "<" stay readable.
func conditionJSON(condition any) string {
	if condition == nil {
		condition = map[string]any{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(condition); err != nil {
		return jsonlogic.Str(condition)
	}
	return strings.TrimRight(buf.String(), "\n")
}
