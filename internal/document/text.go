package document

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Rrens/flagr/internal/domain"
)

// DefaultMaxChars bounds the text sent for analysis
const DefaultMaxChars = 4000

var (
	// ASCII whitespace plus vertical tab, Unicode separators (NBSP, em
	// space, line and paragraph separators) and the byte order mark
	whitespaceRe = regexp.MustCompile(`[\s\v\p{Z}\x{FEFF}]+`)
	sentenceRe   = regexp.MustCompile(`[.!?…]+`)
)

// Clean strips extraction artifacts, collapses whitespace and truncates the
// text to maxChars characters followed by "...". A non-positive maxChars
// uses DefaultMaxChars.
func Clean(text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	text = strings.NewReplacer("\uFFFD", " ", "\x00", " ").Replace(text)
	text = strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))

	if utf8.RuneCountInString(text) > maxChars {
		runes := []rune(text)
		text = string(runes[:maxChars]) + "..."
	}
	return text
}

type typeRule struct {
	docType  string
	keywords []string
}

// Order matters: the first rule with a matching keyword wins.
var typeRules = []typeRule{
	{"Privacy Policy", []string{"privacy policy", "privacy notice", "data collection"}},
	{"Terms of Service", []string{"terms of service", "terms of use", "user agreement"}},
	{"Legislation/Bill", []string{"bill", "act", "legislation", "congress", "senate"}},
	{"Policy Document", []string{"policy", "directive", "guideline", "procedure"}},
	{"Contract/Agreement", []string{"contract", "agreement", "license"}},
}

// DefaultDocType is used when no keyword matches
const DefaultDocType = "Legal Document"

// DetectType classifies text by keyword. Keywords match as substrings, so
// "act" also matches "contract".
func DetectType(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range typeRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.docType
			}
		}
	}
	return DefaultDocType
}

// Stats counts words, characters and sentences and estimates reading time
// at 200 words per minute
func Stats(text string) domain.TextStats {
	words := len(strings.Fields(text))

	sentences := len(sentenceRe.FindAllStringIndex(text, -1))
	if sentences == 0 {
		sentences = 1
	}

	reading := int(math.Round(float64(words) / 200))
	if reading < 1 {
		reading = 1
	}

	return domain.TextStats{
		Words:       words,
		Characters:  utf8.RuneCountInString(text),
		Sentences:   sentences,
		ReadingTime: reading,
	}
}
