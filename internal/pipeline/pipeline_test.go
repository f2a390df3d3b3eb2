package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseforms/formfill-cli/internal/memory"
	"github.com/caseforms/formfill-cli/internal/model"
	"github.com/caseforms/formfill-cli/internal/qcontext"
	"github.com/caseforms/formfill-cli/internal/resilience"
	"github.com/caseforms/formfill-cli/pkg/answerer"
)

// mockAnswerer routes each query through fn and records every request.
type mockAnswerer struct {
	fn    func(req answerer.Request) (*answerer.Response, error)
	calls []answerer.Request
}

func (m *mockAnswerer) Ask(_ context.Context, req answerer.Request) (*answerer.Response, error) {
	m.calls = append(m.calls, req)
	return m.fn(req)
}

func newOrchestrator(client answerer.Client, cfg Config) *Orchestrator {
	return New(client, qcontext.New(memory.New()), cfg)
}

func mustParse(t *testing.T, raw string) *QuestionSet {
	t.Helper()
	qs, err := ParseQuestions([]byte(raw))
	require.NoError(t, err)
	return qs
}

func answerWithSource(answer string, distances ...float64) *answerer.Response {
	resp := &answerer.Response{Answer: answer, Success: true}
	for _, d := range distances {
		resp.Sources = append(resp.Sources, answerer.Source{
			ChunkText: "supporting chunk text",
			Metadata:  answerer.SourceMetadata{Source: "records.pdf", PageNumbers: []int{2}},
			Distance:  d,
		})
	}
	return resp
}

func TestRunConditionalSkip(t *testing.T) {
	qs := mustParse(t, `[
		{"section_name": "Consent", "question_id": "7", "main_question": "Was the procedure elective?",
		 "question_type": "yes_no_unclear", "response_options": ["Yes", "No"], "page_number": 1},
		{"section_name": "Consent", "question_id": "7.1", "main_question": "Describe the consent discussion.",
		 "question_type": "text", "page_number": 1,
		 "conditional_display": {"parent_question_id": "7", "parent_response_values": ["Yes"]}}
	]`)

	client := &mockAnswerer{fn: func(answerer.Request) (*answerer.Response, error) {
		return answerWithSource("No", 0.2), nil
	}}

	doc, err := newOrchestrator(client, Config{}).Run(context.Background(), qs)
	require.NoError(t, err)
	require.Len(t, doc.Answers, 2)

	assert.Equal(t, "No", doc.Answers[0].Answer)

	skipped := doc.Answers[1]
	assert.Equal(t, model.AnswerSkipped, skipped.Answer)
	assert.Equal(t, "Parent Q7 = 'No', needed: ['Yes']", skipped.SkipReason)
	assert.Zero(t, skipped.Confidence)
	assert.Empty(t, skipped.Sources)

	// Only the parent reached the service.
	assert.Len(t, client.calls, 1)

	assert.Equal(t, 1, doc.Metadata.TotalAnswered)
	assert.Equal(t, 1, doc.Metadata.TotalSkipped)
	assert.Equal(t, 1, doc.Metadata.Stats.Skipped)
	assert.Equal(t, 0, doc.Metadata.Stats.NotFound)
}

func TestRunServiceFailureDegradesToNotFound(t *testing.T) {
	qs := mustParse(t, `[
		{"section_name": "History", "question_id": "1", "main_question": "Describe the first complaint.",
		 "question_type": "text", "page_number": 1},
		{"section_name": "History", "question_id": "2", "main_question": "Describe the second complaint.",
		 "question_type": "text", "page_number": 1}
	]`)

	client := &mockAnswerer{fn: func(req answerer.Request) (*answerer.Response, error) {
		if strings.Contains(req.Query, "first") {
			return nil, errors.New("answerer: unmarshal response")
		}
		return answerWithSource("Persistent back pain.", 0.5), nil
	}}

	doc, err := newOrchestrator(client, Config{}).Run(context.Background(), qs)
	require.NoError(t, err)
	require.Len(t, doc.Answers, 2)

	failed := doc.Answers[0]
	assert.Equal(t, model.AnswerNotFound, failed.Answer)
	assert.Zero(t, failed.Confidence)
	assert.Empty(t, failed.Sources)

	// The run continued past the failure.
	assert.Equal(t, "Persistent back pain.", doc.Answers[1].Answer)
	assert.Equal(t, 1, doc.Metadata.Stats.NotFound)
	assert.Equal(t, 1, doc.Metadata.Stats.Answered)
}

func TestRunContextInjection(t *testing.T) {
	qs := mustParse(t, `[
		{"section_name": "Treatment", "question_id": "3", "main_question": "Was surgery performed?",
		 "question_type": "text", "page_number": 1},
		{"section_name": "Treatment", "question_id": "3.1", "main_question": "What type of surgery?",
		 "question_type": "text", "page_number": 1}
	]`)

	client := &mockAnswerer{fn: func(req answerer.Request) (*answerer.Response, error) {
		if strings.Contains(req.Query, "Was surgery") {
			return answerWithSource("Yes, on March 12.", 0.3), nil
		}
		return answerWithSource("Laminectomy.", 0.3), nil
	}}

	doc, err := newOrchestrator(client, Config{EnableContextInjection: true}).Run(context.Background(), qs)
	require.NoError(t, err)
	require.Len(t, client.calls, 2)

	// The sub-question's query carried the parent chain context.
	subQuery := client.calls[1].Query
	assert.Contains(t, subQuery, "Previous questions in this chain:")
	assert.Contains(t, subQuery, `Q3`)
	assert.Contains(t, subQuery, "Now answer this question:\nWhat type of surgery?")

	assert.False(t, doc.Answers[0].UsedContext)
	assert.True(t, doc.Answers[1].UsedContext)
	assert.Equal(t, 1, doc.Metadata.Stats.WithContext)
}

func TestRunContextDisabled(t *testing.T) {
	qs := mustParse(t, `[
		{"section_name": "Treatment", "question_id": "3", "main_question": "Was surgery performed?",
		 "question_type": "text", "page_number": 1},
		{"section_name": "Treatment", "question_id": "3.1", "main_question": "What type of surgery?",
		 "question_type": "text", "page_number": 1}
	]`)

	client := &mockAnswerer{fn: func(answerer.Request) (*answerer.Response, error) {
		return answerWithSource("Yes.", 0.3), nil
	}}

	doc, err := newOrchestrator(client, Config{}).Run(context.Background(), qs)
	require.NoError(t, err)

	assert.NotContains(t, client.calls[1].Query, "Previous questions")
	assert.False(t, doc.Answers[1].UsedContext)
	assert.Zero(t, doc.Metadata.Stats.WithContext)
}

func TestRunSectionChangeClearsMemory(t *testing.T) {
	qs := mustParse(t, `[
		{"section_name": "History", "question_id": "1", "main_question": "First complaint?",
		 "question_type": "text", "page_number": 1},
		{"section_name": "Outcome", "question_id": "9", "main_question": "Summarize the overall outcome.",
		 "question_type": "text", "page_number": 2}
	]`)

	client := &mockAnswerer{fn: func(answerer.Request) (*answerer.Response, error) {
		return answerWithSource("Back pain.", 0.3), nil
	}}

	doc, err := newOrchestrator(client, Config{EnableContextInjection: true}).Run(context.Background(), qs)
	require.NoError(t, err)

	// The synthesis question on the new section sees an empty memory.
	assert.NotContains(t, client.calls[1].Query, "Previous answers in this section:")
	assert.False(t, doc.Answers[1].UsedContext)
}

func TestRunDualRating(t *testing.T) {
	options := `["1. No physical injury", "2. Very slight injury", "3. Slight injury",
		"4. Moderate injury", "5. Significant injury", "6. Serious injury",
		"7. Severe injury", "8. Grave injury", "9. Death"]`
	qs := mustParse(t, `[
		{"section_name": "Injury", "question_id": "12", "main_question": "Rate the degree of injury.",
		 "question_type": "rating_scale_1_to_9", "response_options": `+options+`, "page_number": 4}
	]`)

	client := &mockAnswerer{fn: func(req answerer.Request) (*answerer.Response, error) {
		if strings.Contains(req.Query, "INJURY ALLEGED") {
			return answerWithSource("RATING: 7. Severe injury\n\nEXPLANATION: per the complaint.", 0), nil
		}
		return answerWithSource("RATING: 4. Moderate injury\n\nEXPLANATION: per the records.", 1.0), nil
	}}

	doc, err := newOrchestrator(client, Config{}).Run(context.Background(), qs)
	require.NoError(t, err)
	require.Len(t, client.calls, 2)

	assert.Contains(t, client.calls[0].Query, "DEGREE OF INJURY ALLEGED")
	assert.Contains(t, client.calls[1].Query, "DEGREE OF INJURY ACTUALLY SUFFERED")

	rec := doc.Answers[0]
	rating, ok := rec.Answer.(model.DualRating)
	require.True(t, ok)
	assert.Equal(t, 7, rating.DegreeAlleged)
	assert.Equal(t, 4, rating.DegreeSuffered)
	assert.Contains(t, rec.RawAnswer, "=== DEGREE OF INJURY ALLEGED ===")
	assert.Contains(t, rec.RawAnswer, "=== DEGREE OF INJURY SUFFERED ===")

	// Sources from both calls, concatenated.
	require.Len(t, rec.Sources, 2)
	// Similarities 100 and 50 → confidence 0.75.
	assert.InDelta(t, 0.75, rec.Confidence, 0.001)
}

func TestRunRating1To5Query(t *testing.T) {
	qs := mustParse(t, `[
		{"section_name": "Standard", "question_id": "5", "main_question": "Rate the departure from the standard of care.",
		 "question_type": "rating_scale_1_to_5",
		 "response_options": ["1. No departure", "2. Minimal departure", "3. Moderate departure", "4. Major departure", "5. Gross departure"],
		 "page_number": 3}
	]`)

	client := &mockAnswerer{fn: func(answerer.Request) (*answerer.Response, error) {
		return answerWithSource("RATING: 3. Moderate departure\n\nEXPLANATION: charting gaps.", 0.1), nil
	}}

	doc, err := newOrchestrator(client, Config{}).Run(context.Background(), qs)
	require.NoError(t, err)

	query := client.calls[0].Query
	assert.Contains(t, query, "RATING SCALE REFERENCE (1-5):")
	assert.Contains(t, query, "REQUIRED RESPONSE FORMAT:")

	rec := doc.Answers[0]
	assert.Equal(t, 3, rec.Answer)
	assert.Equal(t, "RATING: 3. 3. Moderate departure\n\nEXPLANATION: charting gaps.", rec.RawAnswer)
}

func TestRunMultiChoiceQueryEnumeratesOptions(t *testing.T) {
	qs := mustParse(t, `[
		{"section_name": "Factors", "question_id": "8", "main_question": "Which factors contributed?",
		 "question_type": "checkbox_group",
		 "response_options": ["Handoff", "Interdisciplinary", "Emergency Situation"],
		 "page_number": 2}
	]`)

	client := &mockAnswerer{fn: func(answerer.Request) (*answerer.Response, error) {
		return answerWithSource("The records support Emergency Situation and Handoff.", 0.2), nil
	}}

	doc, err := newOrchestrator(client, Config{}).Run(context.Background(), qs)
	require.NoError(t, err)

	query := client.calls[0].Query
	assert.Contains(t, query, "Options to select from:")
	assert.Contains(t, query, "  - Handoff")

	// Canonical option order, not order of appearance.
	assert.Equal(t, "Handoff, Emergency Situation", doc.Answers[0].Answer)
}

func TestRunTimeoutDegradesToNotFound(t *testing.T) {
	qs := mustParse(t, `[
		{"section_name": "History", "question_id": "1", "main_question": "First complaint?",
		 "question_type": "text", "page_number": 1}
	]`)

	client := &mockAnswerer{fn: func(answerer.Request) (*answerer.Response, error) {
		return nil, context.DeadlineExceeded
	}}

	cfg := Config{
		Timeout: 10 * time.Millisecond,
		Retry:   resilience.RetryConfig{MaxAttempts: 1},
	}
	doc, err := newOrchestrator(client, cfg).Run(context.Background(), qs)
	require.NoError(t, err)
	assert.Equal(t, model.AnswerNotFound, doc.Answers[0].Answer)
}

func TestRunAppliesFieldCleanup(t *testing.T) {
	qs := mustParse(t, `[
		{"section_name": "Facts", "question_id": "2", "main_question": "What procedure was performed?",
		 "question_type": "text", "page_number": 1}
	]`)

	client := &mockAnswerer{fn: func(answerer.Request) (*answerer.Response, error) {
		return answerWithSource("The procedure is appendectomy [Source: op-note.pdf]", 0.2), nil
	}}

	doc, err := newOrchestrator(client, Config{}).Run(context.Background(), qs)
	require.NoError(t, err)
	assert.Equal(t, "appendectomy", doc.Answers[0].Answer)
	// Raw answer keeps the uncleaned service text.
	assert.Equal(t, "The procedure is appendectomy [Source: op-note.pdf]", doc.Answers[0].RawAnswer)
}

func TestRunEmptyAnswerBecomesNotFound(t *testing.T) {
	qs := mustParse(t, `[
		{"section_name": "Facts", "question_id": "2", "main_question": "What procedure was performed?",
		 "question_type": "text", "page_number": 1}
	]`)

	client := &mockAnswerer{fn: func(answerer.Request) (*answerer.Response, error) {
		return &answerer.Response{Answer: "", Success: true}, nil
	}}

	doc, err := newOrchestrator(client, Config{}).Run(context.Background(), qs)
	require.NoError(t, err)
	assert.Equal(t, model.AnswerNotFound, doc.Answers[0].Answer)
}

func TestRunRecordSourceEcho(t *testing.T) {
	qs := mustParse(t, `[
		{"section_name": "Facts", "question_id": "2", "main_question": "What procedure was performed?",
		 "question_type": "text", "page_number": 1}
	]`)

	long := strings.Repeat("x", 300)
	client := &mockAnswerer{fn: func(answerer.Request) (*answerer.Response, error) {
		return &answerer.Response{
			Answer: "Appendectomy.",
			Sources: []answerer.Source{
				{ChunkText: long, Metadata: answerer.SourceMetadata{PageNumbers: []int{5, 6}}, Distance: 0.25},
			},
			Success: true,
		}, nil
	}}

	doc, err := newOrchestrator(client, Config{}).Run(context.Background(), qs)
	require.NoError(t, err)

	require.Len(t, doc.Answers[0].Sources, 1)
	src := doc.Answers[0].Sources[0]
	assert.Equal(t, "Unknown", src.File)
	assert.Equal(t, []int{5, 6}, src.Pages)
	assert.InDelta(t, 80.0, src.Similarity, 0.001)
	assert.Len(t, src.ChunkPreview, 200)
	assert.Equal(t, long, src.ChunkFull)
}

func TestRunCacheStats(t *testing.T) {
	qs := mustParse(t, `[
		{"section_name": "Facts", "question_id": "1", "main_question": "First?",
		 "question_type": "text", "page_number": 1},
		{"section_name": "Facts", "question_id": "2", "main_question": "Second?",
		 "question_type": "text", "page_number": 1}
	]`)

	client := &mockAnswerer{fn: func(answerer.Request) (*answerer.Response, error) {
		return answerWithSource("Yes.", 0.2), nil
	}}

	doc, err := newOrchestrator(client, Config{}).Run(context.Background(), qs)
	require.NoError(t, err)

	// First question misses, second hits the chunks stored for the page.
	assert.Equal(t, 1, doc.Metadata.Stats.CacheHits)
	assert.Equal(t, 1, doc.Metadata.Stats.CacheMisses)
}

func TestRunCancelledContext(t *testing.T) {
	qs := mustParse(t, `[
		{"section_name": "Facts", "question_id": "1", "main_question": "First?",
		 "question_type": "text", "page_number": 1}
	]`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &mockAnswerer{fn: func(answerer.Request) (*answerer.Response, error) {
		return answerWithSource("Yes.", 0.2), nil
	}}

	_, err := newOrchestrator(client, Config{}).Run(ctx, qs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run aborted")
}

func TestRunMetadataSnapshot(t *testing.T) {
	qs := mustParse(t, `[
		{"section_name": "Facts", "question_id": "1", "main_question": "First?",
		 "question_type": "text", "page_number": 1}
	]`)

	client := &mockAnswerer{fn: func(req answerer.Request) (*answerer.Response, error) {
		assert.Equal(t, 7, req.TopK)
		assert.True(t, req.Flags.Query)
		assert.True(t, req.Flags.Rerank)
		assert.False(t, req.Flags.Distance)
		return answerWithSource("Yes.", 0.2), nil
	}}

	cfg := Config{
		TopK:                   7,
		EnableQueryEnhancement: true,
		EnableReranking:        true,
		MaxWorkers:             4,
	}
	doc, err := newOrchestrator(client, cfg).Run(context.Background(), qs)
	require.NoError(t, err)

	snap := doc.Metadata.Config
	assert.True(t, snap.EnableQueryEnhancement)
	assert.True(t, snap.EnableReranking)
	assert.False(t, snap.EnableDistanceFilter)
	assert.Equal(t, 7, snap.TopK)
	assert.Equal(t, 4, snap.MaxWorkers)
	assert.False(t, doc.Metadata.Timestamp.IsZero())
}
