package model

// QuestionType classifies how a question's answer must be parsed and shaped.
type QuestionType string

const (
	TypeFreeText     QuestionType = "free_text"
	TypeSingleChoice QuestionType = "single_choice"
	TypeMultiChoice  QuestionType = "multi_choice"
	TypeRating1To5   QuestionType = "rating_1_to_5"
	TypeRating1To9   QuestionType = "rating_1_to_9"
)

// typeAliases maps question type labels emitted by the form extractor to
// canonical types. Unknown labels fall back to free text.
var typeAliases = map[string]QuestionType{
	"free_text":           TypeFreeText,
	"text":                TypeFreeText,
	"date":                TypeFreeText,
	"numeric":             TypeFreeText,
	"single_choice":       TypeSingleChoice,
	"radio":               TypeSingleChoice,
	"checkbox":            TypeSingleChoice,
	"yes_no_unclear":      TypeSingleChoice,
	"dropdown":            TypeSingleChoice,
	"multi_choice":        TypeMultiChoice,
	"multi_select":        TypeMultiChoice,
	"checkbox_group":      TypeMultiChoice,
	"rating_1_to_5":       TypeRating1To5,
	"rating_scale_1_to_5": TypeRating1To5,
	"rating_1_to_9":       TypeRating1To9,
	"rating_scale_1_to_9": TypeRating1To9,
}

// NormalizeType canonicalizes an extractor question type label.
func NormalizeType(label string) QuestionType {
	if t, ok := typeAliases[label]; ok {
		return t
	}
	return TypeFreeText
}

// ConditionalDisplay gates a question on a specific parent answer value.
type ConditionalDisplay struct {
	ParentQuestionID     string   `json:"parent_question_id"`
	ParentResponseValues []string `json:"parent_response_values"`
}

// Question is a single form question as produced by the form extractor.
// IDs are dot-separated and hierarchical ("7", "7.2", "7.2.1"); the ID depth
// determines the ancestor chain.
type Question struct {
	SectionName         string              `json:"section_name"`
	ID                  string              `json:"question_id"`
	ParentID            string              `json:"parent_question_id,omitempty"`
	Text                string              `json:"main_question"`
	Type                QuestionType        `json:"question_type"`
	ResponseOptions     []string            `json:"response_options,omitempty"`
	IsSubQuestion       bool                `json:"is_sub_question,omitempty"`
	SubQuestionTrigger  string              `json:"sub_question_trigger,omitempty"`
	RequiresExplanation bool                `json:"requires_explanation,omitempty"`
	ExplanationTrigger  string              `json:"explanation_trigger,omitempty"`
	ExplanationType     string              `json:"explanation_type,omitempty"`
	PageNumber          int                 `json:"page_number"`
	IndentationLevel    int                 `json:"indentation_level,omitempty"`
	ConditionalDisplay  *ConditionalDisplay `json:"conditional_display,omitempty"`
}
