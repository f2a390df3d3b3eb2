package model

import (
	"fmt"
	"time"
)

// Sentinel answer values. Both are excluded from section memory.
const (
	// AnswerNotFound marks a question the answer service found nothing for.
	AnswerNotFound = "NOT_FOUND"
	// AnswerSkipped marks a question suppressed by a conditional display rule.
	AnswerSkipped = "SKIPPED"
	// AnswerMissing is the display form used inside formatted answers when
	// no option or rating could be extracted.
	AnswerMissing = "Not Found"
)

// AnsweredQuestion is an immutable snapshot of a question that received a
// non-sentinel answer. Owned by section memory for the life of a section.
type AnsweredQuestion struct {
	ID          string       `json:"question_id"`
	Text        string       `json:"main_question"`
	Answer      string       `json:"answer"`
	Type        QuestionType `json:"question_type"`
	SectionName string       `json:"section_name"`
}

// RecordSource echoes one retrieved chunk backing an answer.
type RecordSource struct {
	File         string  `json:"file"`
	Pages        []int   `json:"pages"`
	Similarity   float64 `json:"similarity"`
	ChunkPreview string  `json:"chunk_preview"`
	ChunkFull    string  `json:"chunk_full"`
}

// DualRating holds the two rating values of a 1-to-9 question. Each value is
// either an int rating or the AnswerMissing string.
type DualRating struct {
	DegreeAlleged  any `json:"degree_alleged"`
	DegreeSuffered any `json:"degree_suffered"`
}

// AnswerRecord is the output unit for a single processed question. Answer is
// a string for text and choice questions, an int for single ratings, and a
// DualRating for dual ratings.
type AnswerRecord struct {
	SectionName  string         `json:"section_name"`
	QuestionID   string         `json:"question_id"`
	QuestionText string         `json:"main_question"`
	QuestionType QuestionType   `json:"question_type"`
	Answer       any            `json:"answer"`
	RawAnswer    string         `json:"raw_answer,omitempty"`
	Explanation  string         `json:"explanation,omitempty"`
	SkipReason   string         `json:"skip_reason,omitempty"`
	Confidence   float64        `json:"confidence"`
	PageNumber   int            `json:"page_number"`
	Sources      []RecordSource `json:"sources"`
	UsedContext  bool           `json:"used_context"`
}

// AnswerText renders the answer as a plain string: choice and text answers
// pass through, rating answers render their number, dual ratings fall back
// to the formatted raw answer block.
func (r AnswerRecord) AnswerText() string {
	switch a := r.Answer.(type) {
	case string:
		return a
	case int:
		return fmt.Sprintf("%d", a)
	case DualRating:
		return r.RawAnswer
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", a)
	}
}

// IsSubstantive reports whether the record carries a real answer, i.e. one
// that should be visible to later questions in the same section.
func (r AnswerRecord) IsSubstantive() bool {
	if s, ok := r.Answer.(string); ok {
		return s != AnswerNotFound && s != AnswerSkipped
	}
	return r.Answer != nil
}

// ConfigSnapshot records the toggles in effect for a run.
type ConfigSnapshot struct {
	EnableQueryEnhancement bool `json:"enable_query_enhancement"`
	EnableDistanceFilter   bool `json:"enable_distance_filter"`
	EnableReranking        bool `json:"enable_reranking"`
	EnableContextInjection bool `json:"enable_context_injection"`
	TopK                   int  `json:"top_k"`
	MaxWorkers             int  `json:"max_workers"`
}

// RunStats aggregates counts for a completed run.
type RunStats struct {
	TotalQuestions int     `json:"total_questions"`
	Answered       int     `json:"answered"`
	NotFound       int     `json:"not_found"`
	Skipped        int     `json:"skipped"`
	WithContext    int     `json:"with_context"`
	CacheHits      int     `json:"cache_hits"`
	CacheMisses    int     `json:"cache_misses"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// ResultMetadata is the metadata block attached to a result document.
type ResultMetadata struct {
	Timestamp      time.Time      `json:"timestamp"`
	TotalQuestions int            `json:"total_questions"`
	TotalAnswered  int            `json:"total_answered"`
	TotalSkipped   int            `json:"total_skipped"`
	Config         ConfigSnapshot `json:"config"`
	Stats          RunStats       `json:"stats"`
}

// ResultDocument is the full output of a run, consumed by downstream
// PDF-filling and spreadsheet export tooling.
type ResultDocument struct {
	Metadata ResultMetadata `json:"metadata"`
	Answers  []AnswerRecord `json:"answers"`
}
