package models

import "time"

// ComplianceConfig represents the complete compliance configuration
// - Policies: id -> PolicyConfig
// - PolicyIDs: ordered list of policy IDs (preserves YAML order)
type ComplianceConfig struct {
	Policies  map[string]PolicyConfig `yaml:"policies"`
	PolicyIDs []string                `yaml:"-"` // Not in YAML, populated during load
}

// PolicyConfig represents a single policy configuration
type PolicyConfig struct {
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description"`
	Type         string            `yaml:"type"` // "rego" only for now
	FilePath     string            `yaml:"filePath"`
	Query        string            `yaml:"query,omitempty"`        // defaults to data.regis.deny
	Playbooks    []string          `yaml:"playbooks,omitempty"`    // playbook names this policy applies to, all when empty
	ExternalLink string            `yaml:"externalLink,omitempty"` // Optional link to policy documentation
	Enforcement  EnforcementConfig `yaml:"enforcement"`
}

// EnforcementConfig defines when and how a policy should be enforced
type EnforcementConfig struct {
	InEffectAfter   *time.Time `yaml:"inEffectAfter,omitempty"`
	IsWarningAfter  *time.Time `yaml:"isWarningAfter,omitempty"`
	IsBlockingAfter *time.Time `yaml:"isBlockingAfter,omitempty"`
}

// PolicyResult represents the result of evaluating a single policy against a playbook result
type PolicyResult struct {
	PolicyId     string   `json:"policyId"`
	PolicyName   string   `json:"policyName"`
	Playbook     string   `json:"playbook"`
	Level        string   `json:"level"`
	ExternalLink string   `json:"externalLink,omitempty"`
	IsPassing    bool     `json:"isPassing"` // false means FailMessages is not empty
	FailMessages []string `json:"failMessages"`
}

// EnforcementReport groups policy results by enforcement level
type EnforcementReport struct {
	BlockingPolicies    []PolicyResult `json:"blockingPolicies"`
	WarningPolicies     []PolicyResult `json:"warningPolicies"`
	RecommendPolicies   []PolicyResult `json:"recommendPolicies"`
	NotInEffectPolicies []PolicyResult `json:"notInEffectPolicies"`
	Counts              PolicyCounts   `json:"counts"`
}

// PolicyCounts represents the count of policy evaluations by status
type PolicyCounts struct {
	TotalCount         int `json:"totalCount"`
	TotalSuccess       int `json:"totalSuccess"`
	TotalFailed        int `json:"totalFailed"`        // failed at RECOMMEND, WARNING or BLOCK level
	TotalOmittedFailed int `json:"totalOmittedFailed"` // failed while NOT_IN_EFFECT

	BlockingFailedCount  int `json:"blockingFailedCount"`
	WarningFailedCount   int `json:"warningFailedCount"`
	RecommendFailedCount int `json:"recommendFailedCount"`
}

// PassBlockingCheck reports whether no blocking policy failed
func (r *EnforcementReport) PassBlockingCheck() bool {
	return r == nil || r.Counts.BlockingFailedCount == 0
}
