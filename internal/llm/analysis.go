package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Rrens/flagr/internal/domain"
)

// ErrMalformedAnalysis is returned when the model output is not a JSON
// analysis object
var ErrMalformedAnalysis = errors.New("Failed to get a valid analysis from the AI. The AI response may have been incomplete or improperly formatted.")

// The wire shapes are looser than domain types: models send scores as
// floats or strings and omit fields.
type rawAnalysis struct {
	PlainLanguageSummary string    `json:"plainLanguageSummary"`
	Flags                []rawFlag `json:"flags"`
	RiskAssessment       struct {
		OverallSummary string    `json:"overallSummary"`
		Risks          []rawRisk `json:"risks"`
	} `json:"riskAssessment"`
	AIInsights struct {
		OverallSummary  string       `json:"overallSummary"`
		Recommendations []rawInsight `json:"recommendations"`
	} `json:"aiInsights"`
	DetectedDocType string `json:"detectedDocType"`
}

type rawFlag struct {
	ID               json.RawMessage `json:"id"`
	Title            string          `json:"title"`
	Clause           string          `json:"clause"`
	Explanation      string          `json:"explanation"`
	Severity         string          `json:"severity"`
	SuggestedRewrite string          `json:"suggestedRewrite"`
}

type rawInsight struct {
	ID             json.RawMessage `json:"id"`
	Recommendation string          `json:"recommendation"`
	Justification  string          `json:"justification"`
}

type rawRisk struct {
	Area       string          `json:"area"`
	Assessment string          `json:"assessment"`
	Score      json.RawMessage `json:"score"`
}

// ParseAnalysis validates a model response and fills any missing parts
// with defaults
func ParseAnalysis(content string) (*domain.AnalysisData, error) {
	body := ExtractJSON(content)
	if !strings.HasPrefix(body, "{") {
		return nil, ErrMalformedAnalysis
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAnalysis, err)
	}

	data := &domain.AnalysisData{
		PlainLanguageSummary: strings.TrimSpace(raw.PlainLanguageSummary),
		Flags:                make([]domain.Flag, 0, len(raw.Flags)),
		RiskAssessment: domain.RiskAssessment{
			OverallSummary: raw.RiskAssessment.OverallSummary,
			Risks:          make([]domain.Risk, 0, len(raw.RiskAssessment.Risks)),
		},
		AIInsights: domain.AIInsights{
			OverallSummary:  raw.AIInsights.OverallSummary,
			Recommendations: make([]domain.Insight, 0, len(raw.AIInsights.Recommendations)),
		},
		DetectedDocType: strings.TrimSpace(raw.DetectedDocType),
	}

	for i, f := range raw.Flags {
		id := rawID(f.ID)
		if id == "" {
			id = fmt.Sprintf("flag-%d", i+1)
		}
		data.Flags = append(data.Flags, domain.Flag{
			ID:               id,
			Title:            f.Title,
			Clause:           f.Clause,
			Explanation:      f.Explanation,
			Severity:         NormalizeSeverity(f.Severity),
			SuggestedRewrite: f.SuggestedRewrite,
		})
	}

	for _, r := range raw.RiskAssessment.Risks {
		data.RiskAssessment.Risks = append(data.RiskAssessment.Risks, domain.Risk{
			Area:       r.Area,
			Assessment: r.Assessment,
			Score:      clampScore(r.Score),
		})
	}

	for i, in := range raw.AIInsights.Recommendations {
		id := rawID(in.ID)
		if id == "" {
			id = fmt.Sprintf("insight-%d", i+1)
		}
		data.AIInsights.Recommendations = append(data.AIInsights.Recommendations, domain.Insight{
			ID:             id,
			Recommendation: in.Recommendation,
			Justification:  in.Justification,
		})
	}

	return data, nil
}

// NormalizeSeverity maps free-form severities onto Low, Medium or High.
// Unknown values become Medium.
func NormalizeSeverity(s string) domain.Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "minor":
		return domain.SeverityLow
	case "high", "critical", "severe":
		return domain.SeverityHigh
	default:
		return domain.SeverityMedium
	}
}

// rawID accepts string or numeric ids
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

// clampScore accepts numbers or numeric strings and bounds them to 1..10
func clampScore(raw json.RawMessage) int {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 1
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(str), 64); err != nil {
			return 1
		}
	}

	score := int(math.Round(f))
	switch {
	case score < 1:
		return 1
	case score > 10:
		return 10
	default:
		return score
	}
}
