package pipeline

import (
	"fmt"
	"strings"
)

// Aspect labels for the two calls a dual-rating question requires.
const (
	aspectAlleged  = "alleged"
	aspectSuffered = "suffered"
)

// enumerateOptions appends the selectable options to a multi-choice query
// so the answer service states its selections in the options' own words.
func enumerateOptions(questionText string, options []string) string {
	if len(options) == 0 {
		return questionText
	}
	var b strings.Builder
	b.WriteString(questionText)
	b.WriteString("\n\nOptions to select from:\n")
	for i, opt := range options {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("  - " + opt)
	}
	return b.String()
}

const ratingFocusAlleged = `YOUR TASK:
Based on the medical records and evidence provided, determine which rating level (1-9) best describes the DEGREE OF INJURY ALLEGED by the plaintiff/claimant.

Focus SPECIFICALLY on what injury was CLAIMED or ALLEGED, not what actually occurred.
This is what the plaintiff states they suffered according to their complaint or claim.`

const ratingFocusSuffered = `YOUR TASK:
Based on the medical records and evidence provided, determine which rating level (1-9) best describes the DEGREE OF INJURY ACTUALLY SUFFERED by the patient.

Focus SPECIFICALLY on what injury ACTUALLY OCCURRED based on medical documentation and evidence.
This is the objective medical outcome, not the claim.`

// ratingQuery1To9 builds the aspect-specific query for one half of a dual
// 1-to-9 rating. The scale and the required RATING:/EXPLANATION: response
// format are spelled out so the reply is machine-parseable.
func ratingQuery1To9(questionText string, options []string, aspect string) string {
	focus := ratingFocusSuffered
	if strings.EqualFold(aspect, aspectAlleged) {
		focus = ratingFocusAlleged
	}

	return strings.TrimSpace(fmt.Sprintf(`ORIGINAL QUESTION:
%s

RATING SCALE REFERENCE (1-9):
%s

%s

REQUIRED RESPONSE FORMAT:
RATING: [number 1-9]. [Full text of the selected rating option]

EXPLANATION: [Detailed reasoning based on medical evidence, including specific references to documents, findings, and clinical outcomes. Cite specific sources.]

IMPORTANT:
- You MUST select exactly ONE rating from 1-9
- Include the COMPLETE text of the rating option you select
- Provide comprehensive medical reasoning with document references
- Be objective and base your assessment only on documented medical evidence`,
		questionText, strings.Join(options, "\n"), focus))
}

// ratingQuery1To5 builds the query for a single 1-to-5 rating.
func ratingQuery1To5(questionText string, options []string) string {
	return strings.TrimSpace(fmt.Sprintf(`ORIGINAL QUESTION:
%s

RATING SCALE REFERENCE (1-5):
%s

YOUR TASK:
Based on the medical records and evidence provided, carefully evaluate and select the most appropriate rating level (1-5) that accurately answers the question above.

REQUIRED RESPONSE FORMAT:
RATING: [number 1-5]. [Full text of the selected rating option]

EXPLANATION: [Detailed reasoning based on medical evidence, including specific references to documents, clinical findings, and applicable standards. Cite specific sources.]

IMPORTANT:
- You MUST select exactly ONE rating from 1-5
- Include the COMPLETE text of the rating option you select
- Provide comprehensive reasoning with document references
- Base your assessment only on documented evidence and established medical/legal standards
- Be objective and avoid hindsight bias`,
		questionText, strings.Join(options, "\n")))
}

// withContext prepends prior-answer context to a query.
func withContext(contextText, query string) string {
	if contextText == "" {
		return query
	}
	return fmt.Sprintf("%s\n\nNow answer this question:\n%s", contextText, query)
}
