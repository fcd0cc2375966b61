package llm

import (
	"fmt"
	"regexp"
	"strings"
)

// ChatSystemInstruction frames follow-up questions about an analyzed document
const ChatSystemInstruction = `You are Flagr, an expert AI assistant specializing in document analysis. The user has already seen the initial analysis of their document. Your role now is to answer follow-up questions accurately and conversationally, based ONLY on the document context provided in the chat history. If the answer is not in the document, state that clearly. Use formatting like bolding and bullet points to improve readability.`

// MissingKeyReply is streamed in place of a reply when no provider has
// credentials
const MissingKeyReply = "Error: Missing API Key in the application configuration."

// BuildAnalysisPrompt creates the system prompt for document analysis
func BuildAnalysisPrompt(docType string) string {
	return fmt.Sprintf(`You are an expert AI legal assistant. Your task is to analyze a %s and return a structured JSON object. The JSON output must conform to this exact TypeScript interface:
interface AIAnalysisData {
  plainLanguageSummary: string;
  flags: { id: string; title: string; clause: string; explanation: string; severity: 'Low' | 'Medium' | 'High'; suggestedRewrite: string; }[];
  riskAssessment: { overallSummary: string; risks: { area: string; assessment: string; score: number; }[]; };
  aiInsights: { overallSummary: string; recommendations: { id: string; recommendation: string; justification: string; }[]; };
  detectedDocType?: string;
}

First, as a preliminary step, identify the most likely type of this document (e.g., 'Employment Agreement', 'Privacy Policy', 'Terms of Service'). Add this identification to the final JSON object under a key called 'detectedDocType'. Then, proceed with the rest of the analysis as requested.

GUIDELINES:
1.  **plainLanguageSummary**: Concise, neutral summary in simple language.
2.  **flags**: Look for POWER EXPANSION, VAGUE LANGUAGE, RIGHTS RESTRICTIONS, SURVEILLANCE, EMERGENCY POWERS, FINANCIAL IMPACT. 'clause' must be an exact quote. If none, return [].
3.  **riskAssessment**: Provide an 'overallSummary' and list 'risks' with a 'score' from 1-10.
4.  **aiInsights**: Provide an 'overallSummary' and 'recommendations'.
5.  **suggestedRewrite**: For each flag you create, also provide a 'suggestedRewrite' property. This should contain a rewritten version of the clause that is safer and more favorable to the user.
Generate at least 2-3 flags, 2-3 risks, and 2-3 insights for a complex document.

Respond with the JSON object only.`, docType)
}

// BuildAnalysisInput wraps the document text as the user turn
func BuildAnalysisInput(text string) string {
	return "Document for analysis:\n\n" + text
}

var titleMarkupRe = regexp.MustCompile("[*_`]")

// GenerateTitle derives a session title from the first five words of a
// message, dropping markdown emphasis characters
func GenerateTitle(message string) string {
	clean := strings.TrimSpace(titleMarkupRe.ReplaceAllString(message, ""))
	words := strings.Fields(clean)
	if len(words) == 0 {
		return ""
	}
	if len(words) > 5 {
		return strings.Join(words[:5], " ") + "..."
	}
	return strings.Join(words, " ")
}

// ExtractJSON extracts the JSON object from an LLM response, unwrapping a
// markdown code block if the model added one
func ExtractJSON(content string) string {
	if js := extractFromCodeBlock(content, "```json", "```"); js != "" {
		return js
	}
	if js := extractFromCodeBlock(content, "```", "```"); js != "" {
		return js
	}

	content = strings.TrimSpace(content)
	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}

func extractFromCodeBlock(content, startMarker, endMarker string) string {
	startIdx := strings.Index(content, startMarker)
	if startIdx == -1 {
		return ""
	}

	contentStart := startIdx + len(startMarker)
	// Skip newline after marker
	if contentStart < len(content) && content[contentStart] == '\n' {
		contentStart++
	}

	endIdx := strings.Index(content[contentStart:], endMarker)
	if endIdx == -1 {
		return ""
	}

	return strings.TrimSpace(content[contentStart : contentStart+endIdx])
}
