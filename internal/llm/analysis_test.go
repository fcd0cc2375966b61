package llm_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/flagr/internal/domain"
	"github.com/Rrens/flagr/internal/llm"
)

func TestParseAnalysis_Complete(t *testing.T) {
	raw := `{
  "plainLanguageSummary": "  An employment agreement.  ",
  "flags": [
    {"id": "f1", "title": "Non-compete", "clause": "shall not compete", "explanation": "broad", "severity": "High", "suggestedRewrite": "limit to 6 months"},
    {"id": 2, "title": "Overtime", "clause": "as needed", "explanation": "vague", "severity": "low", "suggestedRewrite": "cap hours"}
  ],
  "riskAssessment": {"overallSummary": "moderate", "risks": [{"area": "Liability", "assessment": "capped", "score": 4}]},
  "aiInsights": {"overallSummary": "negotiate", "recommendations": [{"id": "i1", "recommendation": "ask", "justification": "leverage"}]},
  "detectedDocType": "Employment Agreement"
}`

	data, err := llm.ParseAnalysis(raw)
	require.NoError(t, err)

	assert.Equal(t, "An employment agreement.", data.PlainLanguageSummary)
	require.Len(t, data.Flags, 2)
	assert.Equal(t, "f1", data.Flags[0].ID)
	assert.Equal(t, domain.SeverityHigh, data.Flags[0].Severity)
	assert.Equal(t, "2", data.Flags[1].ID)
	assert.Equal(t, domain.SeverityLow, data.Flags[1].Severity)
	assert.Equal(t, 4, data.RiskAssessment.Risks[0].Score)
	assert.Equal(t, "i1", data.AIInsights.Recommendations[0].ID)
	assert.Equal(t, "Employment Agreement", data.DetectedDocType)
}

func TestParseAnalysis_FillsDefaults(t *testing.T) {
	raw := "```json\n" + `{
  "flags": [{"title": "Untitled", "severity": "catastrophic"}],
  "riskAssessment": {"risks": [{"area": "a", "score": 14.2}, {"area": "b", "score": -3}, {"area": "c", "score": "6.6"}, {"area": "d"}]},
  "aiInsights": {"recommendations": [{"recommendation": "r"}]}
}` + "\n```"

	data, err := llm.ParseAnalysis(raw)
	require.NoError(t, err)

	assert.Equal(t, "flag-1", data.Flags[0].ID)
	assert.Equal(t, domain.SeverityMedium, data.Flags[0].Severity)

	scores := []int{}
	for _, r := range data.RiskAssessment.Risks {
		scores = append(scores, r.Score)
	}
	assert.Equal(t, []int{10, 1, 7, 1}, scores)
	assert.Equal(t, "insight-1", data.AIInsights.Recommendations[0].ID)
}

func TestParseAnalysis_EmptyObject(t *testing.T) {
	data, err := llm.ParseAnalysis(`{}`)
	require.NoError(t, err)

	assert.NotNil(t, data.Flags)
	assert.Empty(t, data.Flags)
	assert.NotNil(t, data.RiskAssessment.Risks)
	assert.NotNil(t, data.AIInsights.Recommendations)
}

func TestParseAnalysis_Malformed(t *testing.T) {
	for _, raw := range []string{"", "I'm sorry, I can't do that.", `[1,2]`, `{"flags": [`, `{"flags": "none"}`} {
		_, err := llm.ParseAnalysis(raw)
		assert.True(t, errors.Is(err, llm.ErrMalformedAnalysis), "input %q: %v", raw, err)
	}
}

func TestNormalizeSeverity(t *testing.T) {
	assert.Equal(t, domain.SeverityHigh, llm.NormalizeSeverity(" HIGH "))
	assert.Equal(t, domain.SeverityHigh, llm.NormalizeSeverity("critical"))
	assert.Equal(t, domain.SeverityMedium, llm.NormalizeSeverity("Medium"))
	assert.Equal(t, domain.SeverityLow, llm.NormalizeSeverity("low"))
	assert.Equal(t, domain.SeverityMedium, llm.NormalizeSeverity(""))
}
