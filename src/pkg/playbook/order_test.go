package playbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/regis-cli/regis-playbook/src/pkg/models"
)

func TestRenderOrder(t *testing.T) {
	tests := []struct {
		name    string
		section string
		hasTags bool
		want    []string
	}{
		{
			name: "follows declared key order",
			section: `
name: s
scorecards: []
display:
  widgets: []
  analyzers: []
levels: []
`,
			want: []string{"scorecards", "widgets", "analyzers", "levels"},
		},
		{
			name: "tags inserted before scorecards",
			section: `
name: s
widgets: []
scorecards: []
`,
			hasTags: true,
			want:    []string{"widgets", "tags", "scorecards"},
		},
		{
			name: "tags appended without scorecards block",
			section: `
name: s
levels: []
`,
			hasTags: true,
			want:    []string{"levels", "tags"},
		},
		{
			name: "display widgets not duplicated",
			section: `
name: s
widgets: []
display:
  analyzers: []
  widgets: []
`,
			want: []string{"widgets", "analyzers"},
		},
		{
			name: "unrelated keys ignored",
			section: `
name: s
hint: text
condition: {"!!": 1}
`,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var def models.Section
			require.NoError(t, yaml.Unmarshal([]byte(tt.section), &def))
			assert.Equal(t, tt.want, renderOrder(def, tt.hasTags))
		})
	}
}

func TestRenderOrderWithoutKeyOrder(t *testing.T) {
	def := models.Section{
		Name:       "s",
		Levels:     []models.Level{{Name: "gold"}},
		Scorecards: []models.Scorecard{{Name: "r"}},
		Display:    &models.Display{Analyzers: []string{"trivy"}},
	}

	assert.Equal(t, []string{"levels", "tags", "scorecards", "analyzers"}, renderOrder(def, true))
}
