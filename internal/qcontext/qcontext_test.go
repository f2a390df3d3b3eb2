package qcontext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseforms/formfill-cli/internal/memory"
	"github.com/caseforms/formfill-cli/internal/model"
)

func newManager(opts ...Option) *Manager {
	m := New(memory.New(), opts...)
	m.UpdateSection("TREATMENT")
	return m
}

func q(id, text string) model.Question {
	return model.Question{ID: id, Text: text, Type: model.TypeFreeText, SectionName: "TREATMENT"}
}

func TestGetContextParentChain(t *testing.T) {
	t.Parallel()

	t.Run("formats answered parents", func(t *testing.T) {
		t.Parallel()
		m := newManager()
		m.AddAnswer(q("7", "Was care appropriate?"), "Yes")
		m.AddAnswer(q("7.2", "Which factors applied?"), "Handoff")

		ctx, ok := m.GetContext(q("7.2.1", "Explain the handoff"))
		require.True(t, ok)
		assert.True(t, strings.HasPrefix(ctx, "Previous questions in this chain:"))
		assert.Contains(t, ctx, `- Q7: "Was care appropriate?" → Answer: "Yes"`)
		assert.Contains(t, ctx, `- Q7.2: "Which factors applied?" → Answer: "Handoff"`)
	})

	t.Run("chain with no stored parents short-circuits to no context", func(t *testing.T) {
		t.Parallel()
		m := newManager()
		// Sub-question text mentions a range; chain membership must still win.
		_, ok := m.GetContext(q("7.1", "Summarize Q1-7 findings"))
		assert.False(t, ok)
	})
}

func TestGetContextRange(t *testing.T) {
	t.Parallel()

	m := newManager()
	m.AddAnswer(q("1", "First?"), "A")
	m.AddAnswer(q("3", "Third?"), "C")
	m.AddAnswer(q("9", "Ninth?"), "I")

	ctx, ok := m.GetContext(q("12", "Considering Q1-3, anything to add?"))
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(ctx, "Previous answers from Q1 to Q3:"))
	assert.Contains(t, ctx, "Q1")
	assert.Contains(t, ctx, "Q3")
	assert.NotContains(t, ctx, "Q9")
}

func TestGetContextSynthesis(t *testing.T) {
	t.Parallel()

	t.Run("collects full section", func(t *testing.T) {
		t.Parallel()
		m := newManager()
		m.AddAnswer(q("1", "First?"), "A")
		m.AddAnswer(q("2", "Second?"), "B")

		ctx, ok := m.GetContext(q("3", "Please provide any additional insights"))
		require.True(t, ok)
		assert.True(t, strings.HasPrefix(ctx, "Previous answers in this section:"))
		assert.Contains(t, ctx, "Q1")
		assert.Contains(t, ctx, "Q2")
	})

	t.Run("empty section yields none", func(t *testing.T) {
		t.Parallel()
		m := newManager()
		_, ok := m.GetContext(q("3", "Please provide any additional insights"))
		assert.False(t, ok)
	})
}

func TestGetContextPlainQuestion(t *testing.T) {
	t.Parallel()

	m := newManager()
	m.AddAnswer(q("1", "First?"), "A")
	_, ok := m.GetContext(q("2", "What medication was prescribed?"))
	assert.False(t, ok)
}

func TestTokenBudgetTruncation(t *testing.T) {
	t.Parallel()

	m := newManager(WithTokenBudget(20)) // 80 chars
	m.AddAnswer(q("1", "First question with a fairly long text"), strings.Repeat("a", 60))
	m.AddAnswer(q("2", "Second question with a fairly long text"), strings.Repeat("b", 60))

	ctx, ok := m.GetContext(q("3", "In summary, what happened?"))
	require.True(t, ok)
	assert.LessOrEqual(t, len(ctx), 80)
	assert.False(t, strings.HasSuffix(ctx, "\n"))
}

func TestShouldSkip(t *testing.T) {
	t.Parallel()

	conditional := func(id string, values ...string) model.Question {
		qq := q(id, "conditional question")
		qq.ConditionalDisplay = &model.ConditionalDisplay{
			ParentQuestionID:     "7",
			ParentResponseValues: values,
		}
		return qq
	}

	t.Run("no rule", func(t *testing.T) {
		t.Parallel()
		m := newManager()
		skip, reason := m.ShouldSkip(q("7.1", "child"))
		assert.False(t, skip)
		assert.Empty(t, reason)
	})

	t.Run("empty required values", func(t *testing.T) {
		t.Parallel()
		m := newManager()
		skip, _ := m.ShouldSkip(conditional("7.1"))
		assert.False(t, skip)
	})

	t.Run("parent unanswered never skips", func(t *testing.T) {
		t.Parallel()
		m := newManager()
		skip, reason := m.ShouldSkip(conditional("7.1", "Yes", "Unclear"))
		assert.False(t, skip)
		assert.Empty(t, reason)
	})

	t.Run("no required value matches", func(t *testing.T) {
		t.Parallel()
		m := newManager()
		m.AddAnswer(q("7", "parent"), "No")
		skip, reason := m.ShouldSkip(conditional("7.1", "Yes", "Unclear"))
		assert.True(t, skip)
		assert.Equal(t, "Parent Q7 = 'No', needed: ['Yes', 'Unclear']", reason)
	})

	t.Run("substring match keeps question", func(t *testing.T) {
		t.Parallel()
		m := newManager()
		m.AddAnswer(q("7", "parent"), "Yes, confirmed")
		skip, reason := m.ShouldSkip(conditional("7.1", "Yes", "Unclear"))
		assert.False(t, skip)
		assert.Empty(t, reason)
	})

	t.Run("match is case-insensitive", func(t *testing.T) {
		t.Parallel()
		m := newManager()
		m.AddAnswer(q("7", "parent"), "UNCLEAR from the records")
		skip, _ := m.ShouldSkip(conditional("7.1", "Yes", "Unclear"))
		assert.False(t, skip)
	})
}
