package domain

// Severity grades how serious a flagged clause is
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// Flag is a clause the analysis calls out
type Flag struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Clause           string   `json:"clause"`
	Explanation      string   `json:"explanation"`
	Severity         Severity `json:"severity"`
	SuggestedRewrite string   `json:"suggestedRewrite"`
}

// Risk scores one risk area from 1 (low) to 10 (high)
type Risk struct {
	Area       string `json:"area"`
	Assessment string `json:"assessment"`
	Score      int    `json:"score"`
}

// Insight is a recommendation with its justification
type Insight struct {
	ID             string `json:"id"`
	Recommendation string `json:"recommendation"`
	Justification  string `json:"justification"`
}

// RiskAssessment groups the scored risks
type RiskAssessment struct {
	OverallSummary string `json:"overallSummary"`
	Risks          []Risk `json:"risks"`
}

// AIInsights groups the recommendations
type AIInsights struct {
	OverallSummary  string    `json:"overallSummary"`
	Recommendations []Insight `json:"recommendations"`
}

// TextStats holds basic statistics of the analyzed text
type TextStats struct {
	Words       int `json:"words"`
	Characters  int `json:"characters"`
	Sentences   int `json:"sentences"`
	ReadingTime int `json:"readingTime"` // minutes
}

// AnalysisData is the structured part returned by the analysis model
type AnalysisData struct {
	PlainLanguageSummary string         `json:"plainLanguageSummary"`
	Flags                []Flag         `json:"flags"`
	RiskAssessment       RiskAssessment `json:"riskAssessment"`
	AIInsights           AIInsights     `json:"aiInsights"`
	DetectedDocType      string         `json:"detectedDocType,omitempty"`
}

// AnalysisResult is the analysis attached to a session, combining the
// model output with locally computed information
type AnalysisResult struct {
	AnalysisData
	DocType string    `json:"docType"`
	Stats   TextStats `json:"stats"`
}

// Clone returns a deep copy of the result
func (a AnalysisResult) Clone() AnalysisResult {
	out := a
	out.Flags = cloneSlice(a.Flags)
	out.RiskAssessment.Risks = cloneSlice(a.RiskAssessment.Risks)
	out.AIInsights.Recommendations = cloneSlice(a.AIInsights.Recommendations)
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
