package runner

import (
	"fmt"
	"strings"
)

const DEFAULT_CONCURRENCY = 4

type Options struct {
	Debug bool // Debug mode

	// Inputs
	ReportPath   string   // Analysis report (JSON or YAML)
	Playbooks    []string // Playbook sources: file path, http(s) URL or github://owner/repo/path[@ref]
	Meta         []string // key=value pairs merged into the report metadata
	PoliciesPath string   // Optional directory containing compliance-config.yaml

	// Execution
	Concurrency int // Max playbooks evaluated at the same time

	// Output
	OutputDir                     string
	EnableExportReport            bool
	EnableExportPerformanceReport bool
}

// Validate checks the options and fills in defaults
func (o *Options) Validate() error {
	if o.ReportPath == "" {
		return fmt.Errorf("--report is required")
	}
	if len(o.Playbooks) == 0 {
		return fmt.Errorf("at least one --playbook is required")
	}
	for _, p := range o.Playbooks {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("--playbook cannot be empty")
		}
	}
	if o.Concurrency == 0 {
		o.Concurrency = DEFAULT_CONCURRENCY
	}
	if o.Concurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1, got: %d", o.Concurrency)
	}
	if (o.EnableExportReport || o.EnableExportPerformanceReport) && o.OutputDir == "" {
		return fmt.Errorf("--output-dir is required when exporting reports")
	}
	if _, err := ParseMeta(o.Meta); err != nil {
		return err
	}
	return nil
}

// ParseMeta parses repeated key=value pairs. A bare key is set to "true";
// the value keeps everything after the first '='.
func ParseMeta(pairs []string) (map[string]any, error) {
	meta := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid --meta %q: key cannot be empty", pair)
		}
		if !found {
			value = "true"
		}
		meta[key] = value
	}
	return meta, nil
}
