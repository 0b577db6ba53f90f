package policy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/open-policy-agent/opa/rego"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/regis-cli/regis-playbook/src/pkg/models"
)

var logger *log.Entry = log.WithFields(log.Fields{
	"package": "policy",
})

const (
	COMPLIANCE_CONFIG_FILENAME = "compliance-config.yaml"
	POLICY_TYPE_REGO           = "rego"
	DEFAULT_QUERY              = "data.regis.deny"
)

const (
	POLICY_LEVEL_RECOMMEND     = "RECOMMEND"
	POLICY_LEVEL_WARNING       = "WARNING"
	POLICY_LEVEL_BLOCK         = "BLOCK"
	POLICY_LEVEL_NOT_IN_EFFECT = "NOT_IN_EFFECT"
)

// ErrNoPolicies indicates a compliance config without any policy
var ErrNoPolicies = errors.New("no policies defined in compliance config")

type PolicyEvaluatorInterface interface {
	LoadAndValidate(ctx context.Context) error
	Enforce(ctx context.Context, results []*models.PlaybookResult) (*models.EnforcementReport, error)
}

type EvaluatorData struct {
	models.ComplianceConfig

	// map policy id to prepared rego query
	queries map[string]rego.PreparedEvalQuery
}

type PolicyEvaluator struct {
	policiesPath string
	data         EvaluatorData
	now          func() time.Time
}

// Ensure PolicyEvaluator implements PolicyEvaluatorInterface
var _ PolicyEvaluatorInterface = (*PolicyEvaluator)(nil)

func NewPolicyEvaluator(policiesPath string) *PolicyEvaluator {
	return &PolicyEvaluator{
		policiesPath: policiesPath,
		data: EvaluatorData{
			queries: make(map[string]rego.PreparedEvalQuery),
		},
		now: time.Now,
	}
}

// LoadAndValidate loads the compliance configuration and compiles every policy
func (e *PolicyEvaluator) LoadAndValidate(ctx context.Context) error {
	logger.Info("LoadAndValidate: starting...")

	logger.Info("LoadAndValidate: loading compliance configuration...")
	if err := e.loadComplianceConfig(); err != nil {
		return err
	}

	logger.Info("LoadAndValidate: validating compliance configuration...")
	if err := e.validateComplianceConfig(); err != nil {
		return err
	}

	logger.Info("LoadAndValidate: compiling policy files...")
	for _, id := range e.data.PolicyIDs {
		policy := e.data.Policies[id]
		policyPath := filepath.Join(e.policiesPath, policy.FilePath)
		if !strings.HasSuffix(policyPath, ".rego") {
			return fmt.Errorf("policy %s: unsupported file extension (must be .rego)", id)
		}
		src, err := os.ReadFile(policyPath)
		if err != nil {
			return fmt.Errorf("policy %s: failed to read %s: %w", id, policyPath, err)
		}

		query := policy.Query
		if query == "" {
			query = DEFAULT_QUERY
		}
		prepared, err := rego.New(
			rego.Query(query),
			rego.Module(policyPath, string(src)),
		).PrepareForEval(ctx)
		if err != nil {
			return fmt.Errorf("policy %s: failed to compile: %w", id, err)
		}
		e.data.queries[id] = prepared
	}

	logger.Infof("LoadAndValidate: done, loaded %d policies.", len(e.data.PolicyIDs))
	return nil
}

// loadComplianceConfig loads the compliance configuration from a YAML file
func (e *PolicyEvaluator) loadComplianceConfig() error {
	configPath := filepath.Join(e.policiesPath, COMPLIANCE_CONFIG_FILENAME)
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read compliance config: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("failed to parse compliance config: %w", err)
	}
	if err := node.Decode(&e.data.ComplianceConfig); err != nil {
		return fmt.Errorf("failed to parse compliance config: %w", err)
	}
	e.data.PolicyIDs = policyIDsInOrder(&node)
	return nil
}

// policyIDsInOrder returns the keys of the "policies" mapping in document order
func policyIDsInOrder(doc *yaml.Node) []string {
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "policies" || root.Content[i+1].Kind != yaml.MappingNode {
			continue
		}
		policies := root.Content[i+1]
		ids := make([]string, 0, len(policies.Content)/2)
		for j := 0; j+1 < len(policies.Content); j += 2 {
			ids = append(ids, policies.Content[j].Value)
		}
		return ids
	}
	return nil
}

// validateComplianceConfig validates the common fields
func (e *PolicyEvaluator) validateComplianceConfig() error {
	if len(e.data.Policies) == 0 {
		return ErrNoPolicies
	}

	for _, id := range e.data.PolicyIDs {
		policy := e.data.Policies[id]
		if policy.Name == "" {
			return fmt.Errorf("policy %s: name is required", id)
		}
		if policy.Type == "" {
			return fmt.Errorf("policy %s: type is required", id)
		}
		if policy.Type != POLICY_TYPE_REGO {
			return fmt.Errorf("policy %s: unsupported type %s (only '%s' is supported)", id, policy.Type, POLICY_TYPE_REGO)
		}
		if policy.FilePath == "" {
			return fmt.Errorf("policy %s: filePath is required", id)
		}

		// Validate enforcement dates are in order if set
		if policy.Enforcement.InEffectAfter != nil && policy.Enforcement.IsWarningAfter != nil {
			if policy.Enforcement.IsWarningAfter.Before(*policy.Enforcement.InEffectAfter) {
				return fmt.Errorf("policy %s: isWarningAfter cannot be before inEffectAfter", id)
			}
		}
		if policy.Enforcement.IsWarningAfter != nil && policy.Enforcement.IsBlockingAfter != nil {
			if policy.Enforcement.IsBlockingAfter.Before(*policy.Enforcement.IsWarningAfter) {
				return fmt.Errorf("policy %s: isBlockingAfter cannot be before isWarningAfter", id)
			}
		}
	}

	return nil
}

// Enforce evaluates every policy against every playbook result and groups
// the outcomes by enforcement level
func (e *PolicyEvaluator) Enforce(ctx context.Context, results []*models.PlaybookResult) (*models.EnforcementReport, error) {
	logger.Info("Enforce: starting...")

	levels := e.DetermineEnforcementLevel()
	report := &models.EnforcementReport{
		BlockingPolicies:    []models.PolicyResult{},
		WarningPolicies:     []models.PolicyResult{},
		RecommendPolicies:   []models.PolicyResult{},
		NotInEffectPolicies: []models.PolicyResult{},
	}
	counts := &report.Counts

	for _, result := range results {
		failMsgs, err := e.Evaluate(ctx, result)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate policies for playbook %s: %w", result.PlaybookName, err)
		}

		for _, id := range e.data.PolicyIDs {
			msgs, ok := failMsgs[id]
			if !ok {
				continue
			}
			policy := e.data.Policies[id]
			polResult := models.PolicyResult{
				PolicyId:     id,
				PolicyName:   policy.Name,
				Playbook:     result.PlaybookName,
				Level:        levels[id],
				ExternalLink: policy.ExternalLink,
				IsPassing:    len(msgs) == 0,
				FailMessages: msgs,
			}

			counts.TotalCount++
			if polResult.IsPassing {
				counts.TotalSuccess++
			}

			switch polResult.Level {
			case POLICY_LEVEL_BLOCK:
				report.BlockingPolicies = append(report.BlockingPolicies, polResult)
				if !polResult.IsPassing {
					counts.BlockingFailedCount++
					counts.TotalFailed++
				}
			case POLICY_LEVEL_WARNING:
				report.WarningPolicies = append(report.WarningPolicies, polResult)
				if !polResult.IsPassing {
					counts.WarningFailedCount++
					counts.TotalFailed++
				}
			case POLICY_LEVEL_RECOMMEND:
				report.RecommendPolicies = append(report.RecommendPolicies, polResult)
				if !polResult.IsPassing {
					counts.RecommendFailedCount++
					counts.TotalFailed++
				}
			case POLICY_LEVEL_NOT_IN_EFFECT:
				report.NotInEffectPolicies = append(report.NotInEffectPolicies, polResult)
				if !polResult.IsPassing {
					counts.TotalOmittedFailed++
				}
			}
		}
	}

	logger.Infof("Enforce: done, %d evaluations, %d failed.", counts.TotalCount, counts.TotalFailed)
	return report, nil
}

// Evaluate evaluates the policies that apply to a playbook result
// returns: policyId -> failure messages
func (e *PolicyEvaluator) Evaluate(ctx context.Context, result *models.PlaybookResult) (map[string][]string, error) {
	input, err := models.ToMap(result)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]string)
	for _, id := range e.data.PolicyIDs {
		if !appliesTo(e.data.Policies[id], result.PlaybookName) {
			continue
		}
		msgs, err := e.evaluatePolicy(ctx, id, input)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate policy %s: %w", id, err)
		}
		out[id] = msgs
	}
	return out, nil
}

func appliesTo(policy models.PolicyConfig, playbookName string) bool {
	if len(policy.Playbooks) == 0 {
		return true
	}
	for _, name := range policy.Playbooks {
		if name == playbookName {
			return true
		}
	}
	return false
}

// evaluatePolicy runs a prepared query; every value of the resulting set is
// a failure message
func (e *PolicyEvaluator) evaluatePolicy(ctx context.Context, id string, input map[string]any) ([]string, error) {
	logger.Debugf("evaluating policy %s", id)

	query, ok := e.data.queries[id]
	if !ok {
		return nil, fmt.Errorf("policy %s was not loaded", id)
	}
	rs, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, err
	}

	failureMsgs := []string{}
	for _, r := range rs {
		for _, expr := range r.Expressions {
			failureMsgs = append(failureMsgs, messages(expr.Value)...)
		}
	}
	sort.Strings(failureMsgs)
	return failureMsgs, nil
}

func messages(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		var out []string
		for _, e := range t {
			out = append(out, messages(e)...)
		}
		return out
	case map[string]any:
		if msg, ok := t["msg"].(string); ok {
			return []string{msg}
		}
		return []string{fmt.Sprint(t)}
	case string:
		return []string{t}
	case bool:
		if t {
			return []string{"denied"}
		}
		return nil
	}
	return []string{fmt.Sprint(v)}
}

// DetermineEnforcementLevel determines the current enforcement level of every policy based on time
func (e *PolicyEvaluator) DetermineEnforcementLevel() map[string]string {
	results := make(map[string]string)
	now := e.now()

	for _, policyId := range e.data.PolicyIDs {
		enforcement := e.data.Policies[policyId].Enforcement

		enforcementLevel := POLICY_LEVEL_RECOMMEND
		if enforcement.InEffectAfter != nil && now.Before(*enforcement.InEffectAfter) {
			enforcementLevel = POLICY_LEVEL_NOT_IN_EFFECT
		}
		if enforcement.IsWarningAfter != nil && !now.Before(*enforcement.IsWarningAfter) {
			enforcementLevel = POLICY_LEVEL_WARNING
		}
		if enforcement.IsBlockingAfter != nil && !now.Before(*enforcement.IsBlockingAfter) {
			enforcementLevel = POLICY_LEVEL_BLOCK
		}

		results[policyId] = enforcementLevel
	}

	return results
}
