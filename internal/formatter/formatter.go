// Package formatter converts raw answer-service text into the shape a
// question's type requires: option selection for choice questions, parsed
// rating numbers for rating scales, and field-aware cleanup for free text.
// All functions are pure; parse failures produce "Not Found" values, never
// errors.
package formatter

import (
	"fmt"
	"strings"

	"github.com/caseforms/formfill-cli/internal/model"
)

// singleChoiceScanWindow limits single-choice option matching to the start
// of the answer, where the selected option is stated.
const singleChoiceScanWindow = 100

// Payload is a formatted answer ready to be placed on an AnswerRecord.
type Payload struct {
	Answer      any
	RawAnswer   string
	Confidence  float64
	Explanation string
}

// FormatAnswer shapes a raw answer according to the question type.
// Questions without response options are free text; dual ratings go through
// FormatDualRating instead.
func FormatAnswer(answerText string, qType model.QuestionType, options []string, confidence float64, requiresExplanation bool) Payload {
	if len(options) == 0 {
		answer := answerText
		if answer == model.AnswerNotFound {
			answer = model.AnswerMissing
		}
		return Payload{Answer: answer, Confidence: confidence}
	}

	var selected string
	var p Payload

	switch qType {
	case model.TypeMultiChoice:
		matched := extractMultipleOptions(answerText, options)
		selected = model.AnswerMissing
		if len(matched) > 0 {
			selected = strings.Join(matched, ", ")
		}
		p = Payload{Answer: selected, Confidence: confidence}

	case model.TypeRating1To5:
		rating, option, explanation := parseRating(answerText, options)
		raw := "RATING: " + model.AnswerMissing
		if n, ok := rating.(int); ok {
			raw = fmt.Sprintf("RATING: %d. %s\n\nEXPLANATION: %s", n, option, explanation)
		}
		return Payload{Answer: rating, RawAnswer: raw, Confidence: confidence}

	default:
		selected = extractOption(answerText, options)
		p = Payload{Answer: selected, Confidence: confidence}
	}

	if requiresExplanation && selected != "" && selected != model.AnswerMissing {
		p.Explanation = extractExplanation(answerText)
	}
	return p
}

// FormatDualRating shapes the two-aspect rating of a 1-to-9 question. Each
// aspect's raw text is parsed independently; the raw answer is a formatted
// block with one header per aspect.
func FormatDualRating(allegedText, sufferedText string, options []string, confidence float64) Payload {
	allegedRating, allegedOption, allegedExpl := parseRating(allegedText, options)
	sufferedRating, sufferedOption, sufferedExpl := parseRating(sufferedText, options)

	var parts []string
	parts = append(parts, "=== DEGREE OF INJURY ALLEGED ===")
	if n, ok := allegedRating.(int); ok {
		parts = append(parts, fmt.Sprintf("RATING: %d. %s", n, allegedOption))
		parts = append(parts, fmt.Sprintf("\nEXPLANATION: %s\n", allegedExpl))
	} else {
		parts = append(parts, "RATING: "+model.AnswerMissing+"\n")
	}
	parts = append(parts, "\n=== DEGREE OF INJURY SUFFERED ===")
	if n, ok := sufferedRating.(int); ok {
		parts = append(parts, fmt.Sprintf("RATING: %d. %s", n, sufferedOption))
		parts = append(parts, fmt.Sprintf("\nEXPLANATION: %s", sufferedExpl))
	} else {
		parts = append(parts, "RATING: "+model.AnswerMissing)
	}

	return Payload{
		Answer: model.DualRating{
			DegreeAlleged:  allegedRating,
			DegreeSuffered: sufferedRating,
		},
		RawAnswer:  strings.Join(parts, "\n"),
		Confidence: confidence,
	}
}

// extractOption returns the first option appearing within the scan window
// of the answer, or "Not Found". Options are tried in canonical order.
func extractOption(answerText string, options []string) string {
	if answerText == "" || len(options) == 0 {
		return model.AnswerMissing
	}
	window := strings.ToLower(answerText)
	if len(window) > singleChoiceScanWindow {
		window = window[:singleChoiceScanWindow]
	}
	for _, option := range options {
		if strings.Contains(window, strings.ToLower(option)) {
			return option
		}
	}
	return model.AnswerMissing
}

// extractMultipleOptions returns every option whose text appears anywhere in
// the answer, preserving canonical option order rather than order of
// appearance.
func extractMultipleOptions(answerText string, options []string) []string {
	if answerText == "" || len(options) == 0 {
		return nil
	}
	lower := strings.ToLower(answerText)
	var selected []string
	for _, option := range options {
		if strings.Contains(lower, strings.ToLower(option)) {
			selected = append(selected, option)
		}
	}
	return selected
}

// extractExplanation returns the answer text after the first sentence break,
// truncated before any source citation.
func extractExplanation(answerText string) string {
	idx := strings.Index(answerText, ". ")
	if idx < 0 {
		return ""
	}
	explanation := strings.TrimSpace(answerText[idx+2:])
	if cite := strings.Index(explanation, "[Source:"); cite >= 0 {
		explanation = strings.TrimSpace(explanation[:cite])
	}
	return explanation
}
