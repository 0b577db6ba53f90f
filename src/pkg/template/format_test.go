package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	report := map[string]any{
		"request": map[string]any{"repository": "library/nginx", "tag": "1.25"},
		"results": map[string]any{"skopeo": map[string]any{"platforms": []any{"linux/amd64"}}},
		"count":   int64(3),
	}

	tests := []struct {
		name    string
		format  string
		want    string
		wantErr error
	}{
		{
			name:   "nested keys",
			format: "https://hub.docker.com/r/{request[repository]}/tags?name={request[tag]}",
			want:   "https://hub.docker.com/r/library/nginx/tags?name=1.25",
		},
		{
			name:   "list index",
			format: "{results[skopeo][platforms][0]}",
			want:   "linux/amd64",
		},
		{
			name:   "escaped braces",
			format: "{{literal}} {count}",
			want:   "{literal} 3",
		},
		{
			name:   "no fields",
			format: "https://example.com",
			want:   "https://example.com",
		},
		{
			name:   "repr conversion",
			format: "{request[tag]!r}",
			want:   "'1.25'",
		},
		{
			name:    "missing top level key",
			format:  "{nope}",
			wantErr: ErrMissingKey,
		},
		{
			name:    "missing nested key",
			format:  "{request[digest]}",
			wantErr: ErrMissingKey,
		},
		{
			name:    "positional field",
			format:  "{0}",
			wantErr: ErrPositionalField,
		},
		{
			name:    "empty field",
			format:  "{}",
			wantErr: ErrPositionalField,
		},
		{
			name:    "unbalanced close",
			format:  "a}b",
			wantErr: ErrUnbalancedBrace,
		},
		{
			name:    "unbalanced open",
			format:  "a{b",
			wantErr: ErrUnbalancedBrace,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Format(tt.format, report)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
