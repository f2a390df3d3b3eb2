// Package memory holds the section-scoped store of already-answered
// questions. The scope is cleared whenever the section changes, so later
// questions only ever see answers from their own section.
package memory

import (
	"sort"
	"strconv"
	"strings"

	"github.com/caseforms/formfill-cli/internal/model"
)

// SectionMemory stores answered questions for the current section. It has a
// single writer (the orchestrator loop) and requires no locking under the
// sequential execution model.
type SectionMemory struct {
	currentSection string
	hasSection     bool
	answers        map[string]model.AnsweredQuestion
}

// New returns an empty SectionMemory with no section set.
func New() *SectionMemory {
	return &SectionMemory{answers: make(map[string]model.AnsweredQuestion)}
}

// CurrentSection returns the active section name and whether one is set.
func (m *SectionMemory) CurrentSection() (string, bool) {
	return m.currentSection, m.hasSection
}

// SetSection switches to a new section, clearing stored answers if the name
// differs from the current one. Re-setting the same section is a no-op.
func (m *SectionMemory) SetSection(name string) {
	if m.hasSection && m.currentSection == name {
		return
	}
	m.Clear()
	m.currentSection = name
	m.hasSection = true
}

// AddAnswer records an answered question, overwriting any prior entry for
// the same question ID.
func (m *SectionMemory) AddAnswer(q model.Question, answer string) {
	m.answers[q.ID] = model.AnsweredQuestion{
		ID:          q.ID,
		Text:        q.Text,
		Answer:      answer,
		Type:        q.Type,
		SectionName: q.SectionName,
	}
}

// GetAnswer returns the stored answer for an ID, if any.
func (m *SectionMemory) GetAnswer(questionID string) (model.AnsweredQuestion, bool) {
	a, ok := m.answers[questionID]
	return a, ok
}

// GetAnswersByIDs returns the stored answers among the given IDs, ordered by
// numeric question ID rather than input order.
func (m *SectionMemory) GetAnswersByIDs(questionIDs []string) []model.AnsweredQuestion {
	var result []model.AnsweredQuestion
	for _, id := range questionIDs {
		if a, ok := m.answers[id]; ok {
			result = append(result, a)
		}
	}
	sortAnswers(result)
	return result
}

// GetAnswersInRange returns stored answers whose ID's first dot-segment,
// parsed as an integer, lies in [startID, endID] inclusive. IDs with a
// non-numeric first segment are excluded. Non-numeric bounds yield nil.
func (m *SectionMemory) GetAnswersInRange(startID, endID string) []model.AnsweredQuestion {
	start, err := strconv.Atoi(startID)
	if err != nil {
		return nil
	}
	end, err := strconv.Atoi(endID)
	if err != nil {
		return nil
	}

	var result []model.AnsweredQuestion
	for id, a := range m.answers {
		base, err := strconv.Atoi(strings.SplitN(id, ".", 2)[0])
		if err != nil {
			continue
		}
		if base >= start && base <= end {
			result = append(result, a)
		}
	}
	sortAnswers(result)
	return result
}

// GetAllAnswers returns every stored answer in the current section, sorted
// by numeric question ID.
func (m *SectionMemory) GetAllAnswers() []model.AnsweredQuestion {
	result := make([]model.AnsweredQuestion, 0, len(m.answers))
	for _, a := range m.answers {
		result = append(result, a)
	}
	sortAnswers(result)
	return result
}

// Len returns the number of stored answers.
func (m *SectionMemory) Len() int {
	return len(m.answers)
}

// Clear empties the store and unsets the current section.
func (m *SectionMemory) Clear() {
	m.answers = make(map[string]model.AnsweredQuestion)
	m.currentSection = ""
	m.hasSection = false
}

func sortAnswers(answers []model.AnsweredQuestion) {
	sort.SliceStable(answers, func(i, j int) bool {
		return CompareIDs(answers[i].ID, answers[j].ID) < 0
	})
}

// CompareIDs orders dot-separated question IDs by tuple comparison of their
// integer segments, so "7" sorts before "7.1" and "7.2" before "7.10". IDs
// with any non-numeric segment sort after all parseable IDs.
func CompareIDs(a, b string) int {
	ka, okA := sortKey(a)
	kb, okB := sortKey(b)
	switch {
	case okA && !okB:
		return -1
	case !okA && okB:
		return 1
	case !okA && !okB:
		return strings.Compare(a, b)
	}
	for i := 0; i < len(ka) && i < len(kb); i++ {
		if ka[i] != kb[i] {
			if ka[i] < kb[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(ka) < len(kb):
		return -1
	case len(ka) > len(kb):
		return 1
	}
	return 0
}

func sortKey(questionID string) ([]int, bool) {
	parts := strings.Split(questionID, ".")
	key := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
		key[i] = n
	}
	return key, true
}
