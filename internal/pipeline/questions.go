package pipeline

import (
	"bytes"
	"encoding/json"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/caseforms/formfill-cli/internal/model"
)

// QuestionSet holds the parsed question list indexed for page-ordered
// processing.
type QuestionSet struct {
	All []model.Question

	byPage   map[int][]model.Question
	byID     map[string]model.Question
	byParent map[string][]model.Question
}

// LoadQuestions reads and parses a question file produced by the form
// extractor.
func LoadQuestions(path string) (*QuestionSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read question file")
	}
	qs, err := ParseQuestions(data)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse %s", path)
	}
	return qs, nil
}

// ParseQuestions parses extractor JSON. Three layouts are accepted: a plain
// array of questions, a nested [[...]] array, and a {"questions": [...]}
// envelope. Entries that are not JSON objects (stray strings, embedded
// images) are dropped with a warning and never abort parsing.
func ParseQuestions(data []byte) (*QuestionSet, error) {
	entries, err := rawEntries(data)
	if err != nil {
		return nil, err
	}

	qs := &QuestionSet{
		byPage:   make(map[int][]model.Question),
		byID:     make(map[string]model.Question),
		byParent: make(map[string][]model.Question),
	}

	skipped := 0
	for _, raw := range entries {
		if !isJSONObject(raw) {
			skipped++
			zap.L().Warn("skipping non-question entry",
				zap.String("preview", entryPreview(raw)),
			)
			continue
		}

		var q model.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			skipped++
			zap.L().Warn("skipping malformed question entry",
				zap.String("preview", entryPreview(raw)),
				zap.Error(err),
			)
			continue
		}
		q.Type = model.NormalizeType(string(q.Type))

		qs.All = append(qs.All, q)
		if q.PageNumber != 0 {
			qs.byPage[q.PageNumber] = append(qs.byPage[q.PageNumber], q)
		}
		if q.ID != "" {
			qs.byID[q.ID] = q
		}
		if q.ParentID != "" {
			qs.byParent[q.ParentID] = append(qs.byParent[q.ParentID], q)
		}
	}

	zap.L().Info("loaded questions",
		zap.Int("questions", len(qs.All)),
		zap.Int("skipped_entries", skipped),
		zap.Int("pages", len(qs.byPage)),
	)
	return qs, nil
}

// rawEntries unwraps the three accepted top-level layouts into a flat list
// of raw entries.
func rawEntries(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, eris.New("pipeline: empty question file")
	}

	if trimmed[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return nil, eris.Wrap(err, "pipeline: decode question array")
		}
		// Nested [[...]] layout: unwrap the first inner array.
		if len(arr) > 0 && isJSONArray(arr[0]) {
			var inner []json.RawMessage
			if err := json.Unmarshal(arr[0], &inner); err != nil {
				return nil, eris.Wrap(err, "pipeline: decode nested question array")
			}
			return inner, nil
		}
		return arr, nil
	}

	var envelope struct {
		Questions []json.RawMessage `json:"questions"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, eris.Wrap(err, "pipeline: decode question envelope")
	}
	return envelope.Questions, nil
}

func isJSONObject(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '{'
}

func isJSONArray(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '['
}

func entryPreview(raw json.RawMessage) string {
	s := string(bytes.TrimSpace(raw))
	if len(s) > 50 {
		return s[:50] + "..."
	}
	return s
}

// PageNumbers returns all pages that carry questions, ascending.
func (s *QuestionSet) PageNumbers() []int {
	pages := make([]int, 0, len(s.byPage))
	for p := range s.byPage {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// QuestionsForPage returns the questions on a page in source order.
func (s *QuestionSet) QuestionsForPage(page int) []model.Question {
	return s.byPage[page]
}

// Question returns a single question by id.
func (s *QuestionSet) Question(id string) (model.Question, bool) {
	q, ok := s.byID[id]
	return q, ok
}

// SubQuestions returns the questions that declare the given parent.
func (s *QuestionSet) SubQuestions(parentID string) []model.Question {
	return s.byParent[parentID]
}

// Len returns the total question count.
func (s *QuestionSet) Len() int {
	return len(s.All)
}
