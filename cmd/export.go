package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caseforms/formfill-cli/internal/export"
	"github.com/caseforms/formfill-cli/internal/model"
)

var (
	exportOut    string
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export <answers.json>",
	Short: "Convert a result document to an Excel or CSV report",
	Long:  "Reads a result document produced by the answer command and writes a workbook with summary, per-source detail, full chunk text, and statistics sheets.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}

		var doc model.ResultDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return eris.Wrapf(err, "parse %s", args[0])
		}

		out := exportOut
		if out == "" {
			out = fmt.Sprintf("answers_report_%s.%s", time.Now().Format("20060102_150405"), exportFormat)
		}

		switch exportFormat {
		case "xlsx":
			err = export.WriteXLSX(&doc, out)
		case "csv":
			err = export.WriteCSV(&doc, out)
		default:
			return eris.Errorf("unsupported format: %s", exportFormat)
		}
		if err != nil {
			return err
		}

		zap.L().Info("report written",
			zap.String("file", out),
			zap.Int("answers", len(doc.Answers)),
		)
		fmt.Fprintln(os.Stdout, out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file path (default: answers_report_<timestamp>)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "xlsx", "output format: xlsx or csv")
	rootCmd.AddCommand(exportCmd)
}
