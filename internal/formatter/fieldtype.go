package formatter

import (
	"regexp"
	"strings"

	"github.com/caseforms/formfill-cli/internal/model"
)

// FieldType is the detected payload kind of a free-text answer, used to pick
// a cleanup strategy.
type FieldType string

const (
	FieldPhone   FieldType = "phone"
	FieldDate    FieldType = "date"
	FieldEmail   FieldType = "email"
	FieldName    FieldType = "name"
	FieldAddress FieldType = "address"
	FieldText    FieldType = "text"
)

// fieldKeywords drives detection. Categories are checked in this order and
// the first keyword hit wins.
var fieldKeywords = []struct {
	field    FieldType
	keywords []string
}{
	{FieldPhone, []string{"phone", "contact", "number"}},
	{FieldDate, []string{"date", "when", "time"}},
	{FieldEmail, []string{"email", "mail"}},
	{FieldName, []string{"name", "defendant", "plaintiff", "attorney", "reviewer"}},
	{FieldAddress, []string{"address", "location", "city", "state", "zip"}},
}

// extractPatterns pulls the bare value out of a verbose answer for field
// types with a recognizable shape.
var extractPatterns = map[FieldType]*regexp.Regexp{
	FieldPhone: regexp.MustCompile(`(?:\+?1?\s*)?(?:\()?(\d{3})(?:\))?[-.\s]?(\d{3})[-.\s]?(\d{4}|\d+)|\b\d{7,10}\b`),
	FieldDate:  regexp.MustCompile(`(?i)\b(?:\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|\d{4}[-/]\d{1,2}[-/]\d{1,2}|(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},?\s+\d{4})\b`),
	FieldEmail: regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
}

// labelStrips removes label prefixes the model tends to echo back.
var labelStrips = map[FieldType][]*regexp.Regexp{
	FieldName: {
		regexp.MustCompile(`(?i)^(?:defendant|plaintiff|attorney|reviewer)\s+name\s*:\s*`),
		regexp.MustCompile(`(?i)^The\s+defendants?\s+are\s*:\s*`),
		regexp.MustCompile(`(?i)^Defendant\s+names?\s*:\s*`),
		regexp.MustCompile(`^[A-Z]:\s*`),
		regexp.MustCompile(`^\d+\.\s+`),
	},
	FieldAddress: {
		regexp.MustCompile(`(?i)^(?:address|location)\s*:\s*`),
	},
}

var (
	bulletPrefix  = regexp.MustCompile(`^[-•*]\s*`)
	leadingPhrase = regexp.MustCompile(`(?i)^The\s+\w+\s+(?:is|are)\s+`)
	sourceCite    = regexp.MustCompile(`(?is)\s*\[\s*(?:Source|Sources)\s*:.*?\]\s*`)
)

// emptyAnswers are post-cleanup values that mean the service had nothing.
var emptyAnswers = map[string]bool{
	"":              true,
	"unknown":       true,
	"n/a":           true,
	"not available": true,
	"not provided":  true,
}

// DetectFieldType classifies a question by keyword membership against its
// lower-cased text. Unmatched questions are plain text.
func DetectFieldType(questionText string) FieldType {
	lower := strings.ToLower(questionText)
	for _, cat := range fieldKeywords {
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				return cat.field
			}
		}
	}
	return FieldText
}

// CleanAnswer applies field-aware cleanup to a raw answer string. Sentinels
// pass through untouched; anything that cleans down to a known empty value
// becomes the NOT_FOUND sentinel.
func CleanAnswer(answerText, questionText string) string {
	if answerText == "" || answerText == model.AnswerNotFound {
		return answerText
	}

	cleaned := strings.TrimSpace(answerText)
	field := DetectFieldType(questionText)

	switch field {
	case FieldPhone:
		if m := extractPatterns[FieldPhone].FindString(cleaned); m != "" {
			cleaned = strings.ReplaceAll(strings.TrimSpace(m), " ", "")
		}
	case FieldDate, FieldEmail:
		if m := extractPatterns[field].FindString(cleaned); m != "" {
			cleaned = m
		}
	case FieldName:
		for _, re := range labelStrips[FieldName] {
			cleaned = re.ReplaceAllString(cleaned, "")
		}
		cleaned = cleanNameLines(cleaned)
	case FieldAddress:
		for _, re := range labelStrips[FieldAddress] {
			cleaned = re.ReplaceAllString(cleaned, "")
		}
	}

	cleaned = leadingPhrase.ReplaceAllString(cleaned, "")
	cleaned = sourceCite.ReplaceAllString(cleaned, " ")
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if (field == FieldPhone || field == FieldEmail || field == FieldDate) && len(cleaned) < 100 {
		cleaned = strings.TrimRight(cleaned, ".")
	}

	if emptyAnswers[strings.ToLower(cleaned)] {
		return model.AnswerNotFound
	}
	return cleaned
}

// cleanNameLines trims each line and strips bullet markers, dropping blank
// lines, so multi-name answers keep one name per line.
func cleanNameLines(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = bulletPrefix.ReplaceAllString(strings.TrimSpace(line), "")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
