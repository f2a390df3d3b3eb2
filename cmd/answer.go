package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caseforms/formfill-cli/internal/memory"
	"github.com/caseforms/formfill-cli/internal/model"
	"github.com/caseforms/formfill-cli/internal/pipeline"
	"github.com/caseforms/formfill-cli/internal/qcontext"
	"github.com/caseforms/formfill-cli/internal/resilience"
	"github.com/caseforms/formfill-cli/pkg/answerer"
)

var (
	answerOut     string
	answerNoStore bool
)

var answerCmd = &cobra.Command{
	Use:   "answer <questions.json>",
	Short: "Answer every question in a form file",
	Long:  "Processes the question file page by page, skipping conditional sub-questions whose parent answer does not require them, and writes the result document as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(); err != nil {
			return err
		}

		qs, err := pipeline.LoadQuestions(args[0])
		if err != nil {
			return err
		}
		zap.L().Info("questions loaded",
			zap.String("file", args[0]),
			zap.Int("count", qs.Len()),
			zap.Int("pages", len(qs.PageNumbers())),
		)

		client := answerer.NewClient(cfg.Answerer.BaseURL, cfg.Answerer.APIKey,
			answerer.WithRateLimit(cfg.Answerer.RateLimitPerSec),
		)

		var ctxOpts []qcontext.Option
		if cfg.Context.MaxTokens > 0 {
			ctxOpts = append(ctxOpts, qcontext.WithTokenBudget(cfg.Context.MaxTokens))
		}
		ctxmgr := qcontext.New(memory.New(), ctxOpts...)

		retry := resilience.DefaultRetryConfig()
		if cfg.Answerer.MaxRetries > 0 {
			retry.MaxAttempts = cfg.Answerer.MaxRetries
		}

		p := pipeline.New(client, ctxmgr, pipeline.Config{
			TopK:                   cfg.Answerer.TopK,
			Timeout:                cfg.Answerer.Timeout(),
			EnableContextInjection: cfg.Context.Enabled,
			EnableQueryEnhancement: cfg.Answerer.EnableQueryEnhancement,
			EnableDistanceFilter:   cfg.Answerer.EnableDistanceFilter,
			EnableReranking:        cfg.Answerer.EnableReranking,
			MaxWorkers:             cfg.Workers.Max,
			Retry:                  retry,
		})

		if answerNoStore {
			result, err := p.Run(ctx, qs)
			if err != nil {
				return eris.Wrap(err, "answer run")
			}
			return writeResult(result, answerOut)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.CreateRun(ctx, args[0])
		if err != nil {
			return err
		}
		if err := st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
			return err
		}

		result, err := p.Run(ctx, qs)
		if err != nil {
			if serr := st.UpdateRunStatus(ctx, run.ID, model.RunStatusFailed); serr != nil {
				zap.L().Warn("mark run failed", zap.Error(serr))
			}
			return eris.Wrap(err, "answer run")
		}

		if err := st.UpdateRunResult(ctx, run.ID, result); err != nil {
			return err
		}
		zap.L().Info("run recorded", zap.String("run_id", run.ID))

		return writeResult(result, answerOut)
	},
}

func writeResult(result any, path string) error {
	out := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create %s", path)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func init() {
	answerCmd.Flags().StringVar(&answerOut, "out", "", "write the result document to this path instead of stdout")
	answerCmd.Flags().BoolVar(&answerNoStore, "no-store", false, "skip recording the run in the store")
	rootCmd.AddCommand(answerCmd)
}
