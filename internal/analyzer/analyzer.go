// Package analyzer classifies a question's dependency shape from its ID and
// text: parent chains, explicit ranges ("Q1-7"), and synthesis questions
// that need full-section context.
package analyzer

import (
	"regexp"
	"strings"
)

// rangePatterns are tried in order; the first match wins.
var rangePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Q(\d+)-(\d+)`),
	regexp.MustCompile(`(?i)Q(\d+)\s+to\s+Q?(\d+)`),
	regexp.MustCompile(`(?i)questions?\s+(\d+)\s+through\s+(\d+)`),
	regexp.MustCompile(`(?i)Question\s+(\d+)\s+to\s+Question\s+(\d+)`),
}

// synthesisKeywords flag questions that ask for a section-level summary
// rather than a narrow fact.
var synthesisKeywords = []string{
	"additional insights",
	"provide any",
	"summarize",
	"overall",
	"in summary",
	"additional information",
	"additional context",
	"any other",
	"further details",
}

// ExtractParentChain returns every strict ancestor of a dot-separated
// question ID, shallowest first: "7.2.1" yields ["7", "7.2"]. A top-level ID
// has no ancestors.
func ExtractParentChain(questionID string) []string {
	parts := strings.Split(questionID, ".")
	if len(parts) == 1 {
		return nil
	}
	parents := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		parents = append(parents, strings.Join(parts[:i], "."))
	}
	return parents
}

// IsSubQuestion reports whether the ID names a sub-question.
func IsSubQuestion(questionID string) bool {
	return strings.Contains(questionID, ".")
}

// ParseQuestionRange scans question text for an explicit range reference
// such as "Q1-7" or "questions 1 through 7". It returns the two captured
// numbers and true, or false when no pattern matches.
func ParseQuestionRange(questionText string) (startID, endID string, ok bool) {
	for _, re := range rangePatterns {
		if m := re.FindStringSubmatch(questionText); m != nil {
			return m[1], m[2], true
		}
	}
	return "", "", false
}

// IsSynthesisQuestion reports whether the text asks for a broad section
// summary, keyed off a fixed phrase list.
func IsSynthesisQuestion(questionText string) bool {
	lower := strings.ToLower(questionText)
	for _, kw := range synthesisKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
