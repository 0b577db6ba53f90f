package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{
			name:    "missing report",
			opts:    Options{Playbooks: []string{"p.yaml"}},
			wantErr: "--report is required",
		},
		{
			name:    "no playbooks",
			opts:    Options{ReportPath: "r.json"},
			wantErr: "at least one --playbook is required",
		},
		{
			name:    "empty playbook",
			opts:    Options{ReportPath: "r.json", Playbooks: []string{" "}},
			wantErr: "--playbook cannot be empty",
		},
		{
			name:    "negative concurrency",
			opts:    Options{ReportPath: "r.json", Playbooks: []string{"p.yaml"}, Concurrency: -1},
			wantErr: "--concurrency must be at least 1",
		},
		{
			name:    "export without output dir",
			opts:    Options{ReportPath: "r.json", Playbooks: []string{"p.yaml"}, EnableExportReport: true},
			wantErr: "--output-dir is required",
		},
		{
			name:    "bad meta",
			opts:    Options{ReportPath: "r.json", Playbooks: []string{"p.yaml"}, Meta: []string{"=x"}},
			wantErr: "key cannot be empty",
		},
		{
			name: "valid",
			opts: Options{ReportPath: "r.json", Playbooks: []string{"p.yaml"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, DEFAULT_CONCURRENCY, tt.opts.Concurrency)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseMeta(t *testing.T) {
	meta, err := ParseMeta([]string{"env=prod", "url=https://x?a=b", "nightly", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"env":     "prod",
		"url":     "https://x?a=b",
		"nightly": "true",
		"empty":   "",
	}, meta)

	meta, err = ParseMeta(nil)
	require.NoError(t, err)
	assert.Empty(t, meta)
}
