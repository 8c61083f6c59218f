package findings

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmoTheDev/pct/models"
)

func quietNormalizer() *Normalizer {
	return NewNormalizer(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var secUnit = Unit{FilePath: "app/views.py", Language: "python", Pass: models.PassSecurity}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "fenced block",
			raw:  "Here you go:\n```json\n{\"findings\": []}\n```\nThanks",
			want: `{"findings": []}`,
		},
		{
			name: "object in prose",
			raw:  `I found these: {"findings": [{"message": "x"}]} hope it helps`,
			want: `{"findings": [{"message": "x"}]}`,
		},
		{
			name: "bare array",
			raw:  `[{"message": "a"}]`,
			want: `[{"message": "a"}]`,
		},
		{
			name: "skips non-json brackets",
			raw:  `see [the docs] then {"findings": []}`,
			want: `{"findings": []}`,
		},
		{
			name: "braces inside strings",
			raw:  `{"findings": [{"message": "use {} not ]"}]}`,
			want: `{"findings": [{"message": "use {} not ]"}]}`,
		},
		{
			name: "truncated after complete item",
			raw:  `{"findings": [{"message": "a", "severity": "low"}, {"message": "b", "sev`,
			want: `{"findings": [{"message": "a", "severity": "low"}]}`,
		},
		{
			name: "untagged fence after bracketed prose",
			raw:  "The parser returns an empty list [] on error. Findings:\n```\n{\"findings\":[{\"severity\":\"critical\",\"message\":\"sql injection\"}]}\n```",
			want: `{"findings":[{"severity":"critical","message":"sql injection"}]}`,
		},
		{
			name: "footnote before payload",
			raw:  "See note [1].\n{\"findings\":[{\"severity\":\"high\",\"message\":\"xss\"}]}",
			want: `{"findings":[{"severity":"high","message":"xss"}]}`,
		},
		{
			name: "empty list in prose before payload",
			raw:  `Returns [] when empty; here: [{"message": "a"}]`,
			want: `[{"message": "a"}]`,
		},
		{
			name: "empty array alone",
			raw:  `Nothing found: []`,
			want: `[]`,
		},
		{
			name: "code fence skipped for json fence",
			raw:  "```python\nx = [1, 2]\n```\n```json\n{\"findings\": []}\n```",
			want: `{"findings": []}`,
		},
		{
			name: "missing final brace",
			raw:  "```json\n{\"findings\": []\n",
			want: `{"findings": []}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.raw)
			require.True(t, ok)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestExtractJSONNoPayload(t *testing.T) {
	for _, raw := range []string{"", "no issues found", "{not json at all", "a} stray ]", "see note [1] and [2, 3]"} {
		_, ok := ExtractJSON(raw)
		assert.False(t, ok, raw)
	}
}

func TestNormalizeKeepsFindingsAfterBracketedProse(t *testing.T) {
	raw := "Note [1]: the helper returns [] on error.\n```\n" +
		`{"findings":[{"type":"security","severity":"critical","line":3,"message":"SQL built from input"}]}` +
		"\n```"
	found, err := quietNormalizer().Normalize(raw, secUnit)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, models.SeverityCritical, found[0].Severity)
}

func TestNormalizeBasicItem(t *testing.T) {
	raw := "```json\n" + `{
  "findings": [
    {
      "type": "SECURITY",
      "severity": "High",
      "message": "SQL built with string formatting",
      "line": "12",
      "column": 4.0,
      "remediation": "Use parameterized queries",
      "confidence": 0.8,
      "code_snippet": "cursor.execute(q % name)"
    }
  ]
}` + "\n```"
	got, err := quietNormalizer().Normalize(raw, secUnit)
	require.NoError(t, err)
	require.Len(t, got, 1)

	f := got[0]
	assert.Equal(t, models.TypeSecurity, f.Type)
	assert.Equal(t, models.SeverityHigh, f.Severity)
	assert.Equal(t, "app/views.py", f.Location.FilePath)
	require.NotNil(t, f.Location.Line)
	assert.Equal(t, 12, *f.Location.Line)
	require.NotNil(t, f.Location.Column)
	assert.Equal(t, 4, *f.Location.Column)
	assert.Nil(t, f.Location.EndLine)
	assert.Equal(t, 0.8, f.Confidence)
	assert.Equal(t, "Use parameterized queries", f.Remediation)
	assert.Equal(t, "cursor.execute(q % name)", f.CodeSnippet)
}

func TestNormalizeUnknownSeverityFallsBack(t *testing.T) {
	raw := `{"findings": [{"type": "bug", "severity": "weird_value", "message": "odd thing"}]}`
	got, err := quietNormalizer().Normalize(raw, secUnit)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.SeverityInfo, got[0].Severity)
	assert.Equal(t, models.TypeQuality, got[0].Type)
	assert.Contains(t, got[0].Message, "weird_value")
	assert.Contains(t, got[0].Message, "odd thing")
}

func TestNormalizeTypeHandling(t *testing.T) {
	raw := `[
  {"severity": "low", "message": "no type given"},
  {"severity": "medium", "type": "performance", "message": "slow loop"}
]`
	got, err := quietNormalizer().Normalize(raw, Unit{FilePath: "a.go", Pass: models.PassBugs})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, models.TypeBug, got[0].Type)
	assert.Equal(t, models.TypeQuality, got[1].Type)
	assert.Equal(t, models.SeverityMedium, got[1].Severity)
	assert.Contains(t, got[1].Message, `"performance"`)
}

func TestNormalizeSkipsItemsWithoutMessage(t *testing.T) {
	raw := `{"findings": [{"severity": "high"}, "junk", {"severity": "low", "message": "kept"}]}`
	got, err := quietNormalizer().Normalize(raw, secUnit)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].Message)
}

func TestNormalizeConfidence(t *testing.T) {
	raw := `[
  {"severity": "low", "message": "a"},
  {"severity": "low", "message": "b", "confidence": 7},
  {"severity": "low", "message": "c", "confidence": -2},
  {"severity": "low", "message": "d", "confidence": "nope"}
]`
	got, err := quietNormalizer().Normalize(raw, secUnit)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, 1.0, got[0].Confidence)
	assert.Equal(t, 1.0, got[1].Confidence)
	assert.Equal(t, 0.0, got[2].Confidence)
	assert.Equal(t, 1.0, got[3].Confidence)
}

func TestNormalizeCollapsesDuplicatesWithinUnit(t *testing.T) {
	raw := `[
  {"severity": "high", "message": "Hardcoded  secret", "line": 3},
  {"severity": "HIGH", "message": "hardcoded secret", "line": 3},
  {"severity": "high", "message": "hardcoded secret", "line": 9}
]`
	got, err := quietNormalizer().Normalize(raw, secUnit)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestNormalizeEmptyFindings(t *testing.T) {
	got, err := quietNormalizer().Normalize(`{"findings": []}`, secUnit)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = quietNormalizer().Normalize(`{"summary": "clean"}`, secUnit)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"prose only", "The code looks fine to me.", ErrNoPayload},
		{"findings not a list", `{"findings": "none"}`, ErrUnexpectedShape},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := quietNormalizer().Normalize(tt.raw, secUnit)
			require.Error(t, err)

			var ne *NormalizationError
			require.True(t, errors.As(err, &ne))
			assert.Equal(t, "app/views.py", ne.FilePath)
			assert.Equal(t, models.PassSecurity, ne.Pass)
			assert.True(t, errors.Is(err, tt.want))
		})
	}
}

func TestNormalizationErrorExcerptIsTruncated(t *testing.T) {
	_, err := quietNormalizer().Normalize(strings.Repeat("x", 1000), secUnit)
	var ne *NormalizationError
	require.True(t, errors.As(err, &ne))
	assert.LessOrEqual(t, len(ne.Excerpt), 203)
}
