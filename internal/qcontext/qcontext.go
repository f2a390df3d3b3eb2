// Package qcontext decides what prior-answer context a question needs and
// whether a conditionally displayed question should be skipped.
package qcontext

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/caseforms/formfill-cli/internal/analyzer"
	"github.com/caseforms/formfill-cli/internal/memory"
	"github.com/caseforms/formfill-cli/internal/model"
)

// Manager assembles context strings from section memory and evaluates
// conditional-skip rules. The zero budget means unlimited context.
type Manager struct {
	memory   *memory.SectionMemory
	maxChars int
}

// Option configures a Manager.
type Option func(*Manager)

// WithTokenBudget caps assembled context at roughly maxTokens tokens
// (4 chars per token). Over-budget context is truncated at a line boundary.
func WithTokenBudget(maxTokens int) Option {
	return func(m *Manager) {
		if maxTokens > 0 {
			m.maxChars = maxTokens * 4
		}
	}
}

// New creates a Manager over the given section memory.
func New(mem *memory.SectionMemory, opts ...Option) *Manager {
	m := &Manager{memory: mem}
	for _, o := range opts {
		o(m)
	}
	return m
}

// UpdateSection switches the active section, clearing memory on change.
func (m *Manager) UpdateSection(name string) {
	m.memory.SetSection(name)
}

// AddAnswer records an answered question for later context lookups.
func (m *Manager) AddAnswer(q model.Question, answer string) {
	m.memory.AddAnswer(q, answer)
}

// GetContext returns the context string a question needs, if any. Rules are
// evaluated in strict priority order and the first applicable one wins:
// parent chain for sub-questions, explicit range references, then synthesis
// questions. Chain membership short-circuits even when no parent answers are
// stored yet.
func (m *Manager) GetContext(q model.Question) (string, bool) {
	if analyzer.IsSubQuestion(q.ID) {
		parents := m.memory.GetAnswersByIDs(analyzer.ExtractParentChain(q.ID))
		if len(parents) == 0 {
			return "", false
		}
		return m.format("Previous questions in this chain:", parents), true
	}

	if start, end, ok := analyzer.ParseQuestionRange(q.Text); ok {
		answers := m.memory.GetAnswersInRange(start, end)
		if len(answers) == 0 {
			return "", false
		}
		header := fmt.Sprintf("Previous answers from Q%s to Q%s:", start, end)
		return m.format(header, answers), true
	}

	if analyzer.IsSynthesisQuestion(q.Text) {
		answers := m.memory.GetAllAnswers()
		if len(answers) == 0 {
			return "", false
		}
		return m.format("Previous answers in this section:", answers), true
	}

	return "", false
}

// ShouldSkip evaluates a question's conditional display rule against the
// parent's stored answer. A question is skipped only when the parent has
// been answered and none of the required values appear in its answer;
// an unanswered parent never causes a skip.
func (m *Manager) ShouldSkip(q model.Question) (bool, string) {
	cond := q.ConditionalDisplay
	if cond == nil || cond.ParentQuestionID == "" || len(cond.ParentResponseValues) == 0 {
		return false, ""
	}

	parent, ok := m.memory.GetAnswer(cond.ParentQuestionID)
	if !ok {
		return false, ""
	}

	parentLower := strings.ToLower(parent.Answer)
	for _, required := range cond.ParentResponseValues {
		if strings.Contains(parentLower, strings.ToLower(required)) {
			return false, ""
		}
	}

	reason := fmt.Sprintf("Parent Q%s = '%s', needed: %s",
		cond.ParentQuestionID, parent.Answer, formatValues(cond.ParentResponseValues))
	zap.L().Debug("conditional skip",
		zap.String("question", q.ID),
		zap.String("reason", reason),
	)
	return true, reason
}

// Clear resets the underlying section memory.
func (m *Manager) Clear() {
	m.memory.Clear()
}

func (m *Manager) format(header string, answers []model.AnsweredQuestion) string {
	parts := make([]string, 0, len(answers)+1)
	parts = append(parts, header)
	for _, a := range answers {
		parts = append(parts, fmt.Sprintf("- Q%s: %q → Answer: %q", a.ID, a.Text, a.Answer))
	}
	return m.truncate(strings.Join(parts, "\n"))
}

// truncate enforces the advisory token budget, cutting at the last complete
// line that fits so a context entry is never split mid-answer.
func (m *Manager) truncate(s string) string {
	if m.maxChars <= 0 || len(s) <= m.maxChars {
		return s
	}
	cut := strings.LastIndexByte(s[:m.maxChars], '\n')
	if cut <= 0 {
		return s[:m.maxChars]
	}
	return s[:cut]
}

func formatValues(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
