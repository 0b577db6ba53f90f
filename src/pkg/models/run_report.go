package models

import "time"

// RunReport is the complete output of one evaluation run
type RunReport struct {
	Timestamp    time.Time          `json:"timestamp"`
	ReportSource string             `json:"reportSource"`
	Playbooks    []*PlaybookResult  `json:"playbooks"`
	Enforcement  *EnforcementReport `json:"enforcement,omitempty"`
}
