// Package pipeline drives the per-question execution loop: it loads the
// extractor's question file, walks pages in order, consults section memory
// for context and skip rules, calls the answer service, and assembles the
// final result document.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/caseforms/formfill-cli/internal/formatter"
	"github.com/caseforms/formfill-cli/internal/model"
	"github.com/caseforms/formfill-cli/internal/qcontext"
	"github.com/caseforms/formfill-cli/internal/resilience"
	"github.com/caseforms/formfill-cli/pkg/answerer"
)

const chunkPreviewLen = 200

// Config carries the toggles and limits for a run.
type Config struct {
	// TopK is the retrieval width passed to the answer service.
	TopK int

	// Timeout bounds each answer-service call. Zero disables the deadline.
	Timeout time.Duration

	// EnableContextInjection gates prior-answer context lookup.
	EnableContextInjection bool

	// Enhancement toggles forwarded to the answer service.
	EnableQueryEnhancement bool
	EnableDistanceFilter   bool
	EnableReranking        bool

	// MaxWorkers is recorded in the result metadata. The loop itself is
	// sequential; see Run.
	MaxWorkers int

	// Retry controls retries of transient answer-service failures. The
	// zero value gets defaults with answer-service error classification.
	Retry resilience.RetryConfig
}

// Orchestrator owns one run's mutable state: the section-scoped context
// manager and the page chunk cache.
type Orchestrator struct {
	client answerer.Client
	ctxmgr *qcontext.Manager
	cache  *ChunkCache
	cfg    Config
}

// New creates an orchestrator around an answer service client and a
// section-scoped context manager.
func New(client answerer.Client, ctxmgr *qcontext.Manager, cfg Config) *Orchestrator {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.Retry.ShouldRetry == nil {
		cfg.Retry.ShouldRetry = shouldRetryAsk
	}
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = func(attempt int, err error) {
			zap.L().Warn("retrying answer service call",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
	}
	return &Orchestrator{
		client: client,
		ctxmgr: ctxmgr,
		cache:  NewChunkCache(),
		cfg:    cfg,
	}
}

// Run processes every page in ascending order and every question on a page
// in source order, and returns the assembled result document.
//
// The loop is strictly sequential on purpose: later questions read section
// memory written by earlier ones (context chains, conditional skips), so
// reordering would change answers. MaxWorkers is recorded in the metadata
// but does not parallelize this loop; independent sections with separate
// memories are the only safe place to add concurrency.
func (o *Orchestrator) Run(ctx context.Context, qs *QuestionSet) (*model.ResultDocument, error) {
	start := time.Now()

	records := make([]model.AnswerRecord, 0, qs.Len())
	withContext := 0
	currentSection := ""
	haveSection := false

	for _, page := range qs.PageNumbers() {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "pipeline: run aborted")
		}

		pageQuestions := qs.QuestionsForPage(page)
		if len(pageQuestions) == 0 {
			continue
		}

		pageSection := pageQuestions[0].SectionName
		if !haveSection || pageSection != currentSection {
			zap.L().Info("section changed",
				zap.String("from", currentSection),
				zap.String("to", pageSection),
				zap.Int("page", page),
			)
			o.ctxmgr.UpdateSection(pageSection)
			currentSection = pageSection
			haveSection = true
		}

		for _, q := range pageQuestions {
			record, usedContext := o.answerQuestion(ctx, q)
			if usedContext {
				withContext++
			}
			records = append(records, record)

			if record.IsSubstantive() {
				o.ctxmgr.AddAnswer(q, record.AnswerText())
			}
		}
	}

	return o.buildDocument(records, withContext, time.Since(start)), nil
}

// answerQuestion produces the record for one question. Service errors are
// absorbed into a NOT_FOUND record; this never fails the run.
func (o *Orchestrator) answerQuestion(ctx context.Context, q model.Question) (model.AnswerRecord, bool) {
	if skip, reason := o.ctxmgr.ShouldSkip(q); skip {
		zap.L().Info("question skipped",
			zap.String("question_id", q.ID),
			zap.String("reason", reason),
		)
		return model.AnswerRecord{
			SectionName:  q.SectionName,
			QuestionID:   q.ID,
			QuestionText: q.Text,
			QuestionType: q.Type,
			Answer:       model.AnswerSkipped,
			SkipReason:   reason,
			Confidence:   0,
			PageNumber:   q.PageNumber,
			Sources:      []model.RecordSource{},
		}, false
	}

	contextText := ""
	if o.cfg.EnableContextInjection {
		if c, ok := o.ctxmgr.GetContext(q); ok {
			contextText = c
		}
	}

	o.cache.Get(q.PageNumber)

	var rawAnswer string
	var sources []answerer.Source
	var payload formatter.Payload

	switch {
	case q.Type == model.TypeRating1To9 && len(q.ResponseOptions) > 0:
		// Dual rating: one call per aspect, sources concatenated.
		alleged, allegedSources := o.ask(ctx, ratingQuery1To9(q.Text, q.ResponseOptions, aspectAlleged), contextText)
		suffered, sufferedSources := o.ask(ctx, ratingQuery1To9(q.Text, q.ResponseOptions, aspectSuffered), contextText)
		sources = append(allegedSources, sufferedSources...)
		payload = formatter.FormatDualRating(alleged, suffered, q.ResponseOptions, confidenceFrom(sources))
		rawAnswer = payload.RawAnswer

	case q.Type == model.TypeRating1To5 && len(q.ResponseOptions) > 0:
		rawAnswer, sources = o.ask(ctx, ratingQuery1To5(q.Text, q.ResponseOptions), contextText)
		payload = formatter.FormatAnswer(rawAnswer, q.Type, q.ResponseOptions, confidenceFrom(sources), q.RequiresExplanation)
		if payload.RawAnswer != "" {
			rawAnswer = payload.RawAnswer
		}

	case q.Type == model.TypeMultiChoice && len(q.ResponseOptions) > 0:
		rawAnswer, sources = o.ask(ctx, enumerateOptions(q.Text, q.ResponseOptions), contextText)
		payload = formatter.FormatAnswer(rawAnswer, q.Type, q.ResponseOptions, confidenceFrom(sources), q.RequiresExplanation)

	default:
		rawAnswer, sources = o.ask(ctx, q.Text, contextText)
		payload = formatter.FormatAnswer(rawAnswer, q.Type, q.ResponseOptions, confidenceFrom(sources), q.RequiresExplanation)
	}

	o.cache.Put(q.PageNumber, sources)

	return model.AnswerRecord{
		SectionName:  q.SectionName,
		QuestionID:   q.ID,
		QuestionText: q.Text,
		QuestionType: q.Type,
		Answer:       payload.Answer,
		RawAnswer:    rawAnswer,
		Explanation:  payload.Explanation,
		Confidence:   payload.Confidence,
		PageNumber:   q.PageNumber,
		Sources:      recordSources(sources),
		UsedContext:  contextText != "",
	}, contextText != ""
}

// ask performs one answer-service round trip with the configured deadline
// and transient-failure retries. Failures degrade to NOT_FOUND with no
// sources.
func (o *Orchestrator) ask(ctx context.Context, query, contextText string) (string, []answerer.Source) {
	callCtx := ctx
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	req := answerer.Request{
		Query: withContext(contextText, query),
		TopK:  o.cfg.TopK,
		Flags: answerer.EnhancementFlags{
			Query:    o.cfg.EnableQueryEnhancement,
			Distance: o.cfg.EnableDistanceFilter,
			Rerank:   o.cfg.EnableReranking,
		},
	}

	resp, err := resilience.DoVal(callCtx, o.cfg.Retry, func(ctx context.Context) (*answerer.Response, error) {
		return o.client.Ask(ctx, req)
	})
	if err != nil {
		zap.L().Warn("answer service call failed", zap.Error(err))
		return model.AnswerNotFound, nil
	}

	if resp.Answer == "" {
		return model.AnswerNotFound, resp.Sources
	}
	return resp.Answer, resp.Sources
}

// shouldRetryAsk classifies answer-service failures: transient HTTP
// statuses and network-level errors are retried, everything else is not.
func shouldRetryAsk(err error) bool {
	var se *answerer.StatusError
	if errors.As(err, &se) {
		return resilience.IsTransientHTTPStatus(se.Code)
	}
	return resilience.IsTransient(err)
}

// confidenceFrom derives confidence as the clamped mean source similarity.
func confidenceFrom(sources []answerer.Source) float64 {
	if len(sources) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sources {
		sum += s.Similarity()
	}
	c := sum / float64(len(sources)) / 100.0
	if c > 1 {
		c = 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

func recordSources(sources []answerer.Source) []model.RecordSource {
	out := make([]model.RecordSource, 0, len(sources))
	for _, s := range sources {
		file := s.Metadata.Source
		if file == "" {
			file = "Unknown"
		}
		out = append(out, model.RecordSource{
			File:         file,
			Pages:        s.Metadata.PageNumbers,
			Similarity:   s.Similarity(),
			ChunkPreview: truncateRunes(s.ChunkText, chunkPreviewLen),
			ChunkFull:    s.ChunkText,
		})
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// buildDocument applies the final field cleanup pass and computes the run
// statistics and metadata block.
func (o *Orchestrator) buildDocument(records []model.AnswerRecord, withContext int, elapsed time.Duration) *model.ResultDocument {
	for i := range records {
		rec := &records[i]
		s, ok := rec.Answer.(string)
		if !ok || s == model.AnswerSkipped {
			continue
		}
		// Rating answers are already structured; cleanup is for text.
		if rec.QuestionType == model.TypeRating1To5 || rec.QuestionType == model.TypeRating1To9 {
			continue
		}
		rec.Answer = formatter.CleanAnswer(s, rec.QuestionText)
	}

	answered, notFound, skipped := 0, 0, 0
	for _, rec := range records {
		switch rec.Answer {
		case model.AnswerSkipped:
			skipped++
		case model.AnswerNotFound:
			notFound++
		default:
			answered++
		}
	}

	hits, misses := o.cache.Stats()
	stats := model.RunStats{
		TotalQuestions: len(records),
		Answered:       answered,
		NotFound:       notFound,
		Skipped:        skipped,
		WithContext:    withContext,
		CacheHits:      hits,
		CacheMisses:    misses,
		ElapsedSeconds: elapsed.Seconds(),
	}

	zap.L().Info("run complete",
		zap.Int("total", stats.TotalQuestions),
		zap.Int("answered", answered),
		zap.Int("not_found", notFound),
		zap.Int("skipped", skipped),
		zap.Int("with_context", withContext),
		zap.Float64("elapsed_seconds", stats.ElapsedSeconds),
	)

	return &model.ResultDocument{
		Metadata: model.ResultMetadata{
			Timestamp:      time.Now(),
			TotalQuestions: len(records),
			TotalAnswered:  answered,
			TotalSkipped:   skipped + notFound,
			Config: model.ConfigSnapshot{
				EnableQueryEnhancement: o.cfg.EnableQueryEnhancement,
				EnableDistanceFilter:   o.cfg.EnableDistanceFilter,
				EnableReranking:        o.cfg.EnableReranking,
				EnableContextInjection: o.cfg.EnableContextInjection,
				TopK:                   o.cfg.TopK,
				MaxWorkers:             o.cfg.MaxWorkers,
			},
			Stats: stats,
		},
		Answers: records,
	}
}
