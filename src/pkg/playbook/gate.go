package playbook

import (
	"github.com/regis-cli/regis-playbook/src/pkg/jsonlogic"
	"github.com/regis-cli/regis-playbook/src/pkg/tracker"
)

// isEmptyCondition reports whether a scorecard has no condition to evaluate.
func isEmptyCondition(condition any) bool {
	switch c := condition.(type) {
	case nil:
		return true
	case map[string]any:
		return len(c) == 0
	}
	return false
}

// noGate reports whether condition imposes no gate: any falsy value
// (nil, false, 0, "", empty list or map) means the element is always shown.
func noGate(condition any) bool {
	return !jsonlogic.Truthy(condition)
}

// gateOpen is the first-stage rule. An element is dropped only when the
// condition is definitively false: falsy and evaluated over complete data.
// Evaluation errors keep the element only when data was missing.
func gateOpen(kind, name string, condition any, ctx map[string]any) bool {
	if noGate(condition) {
		return true
	}
	session := tracker.NewSession()
	result, err := jsonlogic.Apply(condition, tracker.New(ctx, session))
	if err != nil {
		logger.WithField(kind, name).WithError(err).Warn("Condition evaluation failed")
		return session.Incomplete()
	}
	if jsonlogic.Truthy(result) {
		return true
	}
	if session.Incomplete() {
		logger.WithField(kind, name).Debug("Condition false on incomplete data, keeping")
		return true
	}
	return false
}

// finalGateOpen is the second-stage rule, applied against the context that
// holds the playbook's own result. Any falsy result or error drops the element.
func finalGateOpen(kind, name string, condition any, ctx map[string]any) bool {
	if noGate(condition) {
		return true
	}
	result, err := jsonlogic.Apply(condition, tracker.New(ctx, nil))
	if err != nil {
		logger.WithField(kind, name).WithError(err).Debug("Final condition evaluation failed, dropping")
		return false
	}
	return jsonlogic.Truthy(result)
}
