package pathresolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testContext() map[string]any {
	return map[string]any{
		"results": map[string]any{
			"trivy": map[string]any{
				"critical_count":  int64(2),
				"vulnerabilities": []any{map[string]any{"id": "CVE-1"}, map[string]any{"id": "CVE-2"}},
				"fixed":           nil,
			},
		},
		"results.trivy.critical_count": int64(2),
		"score":                        int64(75),
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		want   any
		wantOK bool
	}{
		{name: "dotted path", path: "results.trivy.critical_count", want: int64(2), wantOK: true},
		{name: "bracket index", path: "results.trivy.vulnerabilities[1].id", want: "CVE-2", wantOK: true},
		{name: "dotted index", path: "results.trivy.vulnerabilities.0.id", want: "CVE-1", wantOK: true},
		{name: "negative index", path: "results.trivy.vulnerabilities[-1].id", want: nil, wantOK: false},
		{name: "negative dotted index", path: "results.trivy.vulnerabilities.-2", want: nil, wantOK: false},
		{name: "braces stripped", path: "{results.trivy.critical_count}", want: int64(2), wantOK: true},
		{name: "empty segments skipped", path: "results..trivy.critical_count", want: int64(2), wantOK: true},
		{name: "index out of range", path: "results.trivy.vulnerabilities[5].id", wantOK: false},
		{name: "non numeric index", path: "results.trivy.vulnerabilities.x", wantOK: false},
		{name: "through scalar", path: "score.value", wantOK: false},
		{name: "absent key", path: "results.grype", wantOK: false},
		{name: "null value", path: "results.trivy.fixed", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Lookup(tt.path, testContext())
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve(t *testing.T) {
	ctx := testContext()
	nested := map[string]any{"score": int64(75), "request": map[string]any{"tag": "1.25"}}

	tests := []struct {
		name string
		expr any
		want any
	}{
		{name: "non string passthrough", expr: int64(42), want: int64(42)},
		{name: "path", expr: "results.trivy.critical_count", want: int64(2)},
		{name: "unresolvable path", expr: "results.grype.count", want: nil},
		{name: "template uses nested context", expr: "tag {{ request.tag }}", want: "tag 1.25"},
		{name: "broken template kept", expr: "{{ score |", want: "{{ score |"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.expr, ctx, nested))
		})
	}
}

func TestResolveTemplate(t *testing.T) {
	ctx := map[string]any{"request": map[string]any{"repository": "nginx"}}

	assert.Equal(t, "https://example.com", ResolveTemplate("https://example.com", ctx, nil))
	assert.Equal(t, "https://hub/nginx", ResolveTemplate("https://hub/{{ request.repository }}", ctx, nil))
	assert.Nil(t, ResolveTemplate(nil, ctx, nil))
}
