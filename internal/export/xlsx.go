// Package export renders a result document as an Excel workbook or CSV for
// review outside the CLI.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/caseforms/formfill-cli/internal/model"
)

var summaryHeader = []string{
	"Section", "Question ID", "Question", "Question Type", "Answer",
	"Explanation", "Model Reasoning", "Source Files", "# Sources", "Page Number",
}

var sourceHeader = []string{
	"Question ID", "Question", "Source #", "File", "Pages", "Similarity", "Preview (200 chars)",
}

var fullTextHeader = []string{
	"Question ID", "Question", "Source #", "File", "Pages", "Similarity", "Full Chunk Text",
}

// WriteXLSX writes a four-sheet workbook: one row per question, one row per
// source with a preview, one row per source with the complete chunk text, and
// a statistics sheet summarizing the run.
func WriteXLSX(doc *model.ResultDocument, path string) error {
	if doc == nil || len(doc.Answers) == 0 {
		return eris.New("export: no answers to export")
	}

	f := xlsx.NewFile()

	if err := addSheet(f, "Summary", summaryHeader, summaryRows(doc), []float64{20, 12, 50, 20, 25, 40, 50, 30, 10, 12}); err != nil {
		return err
	}
	if err := addSheet(f, "Source Details", sourceHeader, sourceRows(doc, false), []float64{12, 40, 10, 30, 15, 12, 50}); err != nil {
		return err
	}
	if err := addSheet(f, "Full Chunk Text", fullTextHeader, sourceRows(doc, true), []float64{12, 35, 10, 30, 15, 12, 80}); err != nil {
		return err
	}
	if err := addSheet(f, "Statistics", []string{"Metric", "Value"}, statsRows(doc), []float64{30, 40}); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// WriteCSV writes the summary sheet only.
func WriteCSV(doc *model.ResultDocument, path string) error {
	if doc == nil || len(doc.Answers) == 0 {
		return eris.New("export: no answers to export")
	}

	out, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write(summaryHeader); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, row := range summaryRows(doc) {
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "export: flush csv")
}

func addSheet(f *xlsx.File, name string, header []string, rows [][]string, widths []float64) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", name)
	}

	bold := xlsx.NewStyle()
	bold.Font.Bold = true

	hr := sheet.AddRow()
	for _, h := range header {
		cell := hr.AddCell()
		cell.Value = h
		cell.SetStyle(bold)
	}
	for _, row := range rows {
		r := sheet.AddRow()
		for _, v := range row {
			r.AddCell().Value = v
		}
	}
	for i, w := range widths {
		if i < len(header) {
			sheet.SetColWidth(i, i, w)
		}
	}
	return nil
}

func summaryRows(doc *model.ResultDocument) [][]string {
	rows := make([][]string, 0, len(doc.Answers))
	for _, rec := range doc.Answers {
		rows = append(rows, []string{
			rec.SectionName,
			rec.QuestionID,
			rec.QuestionText,
			string(rec.QuestionType),
			rec.AnswerText(),
			rec.Explanation,
			rec.RawAnswer,
			sourceFiles(rec.Sources),
			strconv.Itoa(len(rec.Sources)),
			strconv.Itoa(rec.PageNumber),
		})
	}
	return rows
}

func sourceRows(doc *model.ResultDocument, fullText bool) [][]string {
	var rows [][]string
	for _, rec := range doc.Answers {
		for i, src := range rec.Sources {
			text := src.ChunkPreview
			if fullText {
				text = src.ChunkFull
				if text == "" {
					text = src.ChunkPreview
				}
			}
			rows = append(rows, []string{
				rec.QuestionID,
				rec.QuestionText,
				strconv.Itoa(i + 1),
				src.File,
				joinInts(src.Pages),
				fmt.Sprintf("%.1f%%", src.Similarity),
				text,
			})
		}
	}
	return rows
}

func statsRows(doc *model.ResultDocument) [][]string {
	m := doc.Metadata
	s := m.Stats
	return [][]string{
		{"Timestamp", m.Timestamp.Format("2006-01-02 15:04:05")},
		{"Total Questions", strconv.Itoa(m.TotalQuestions)},
		{"Answered", strconv.Itoa(s.Answered)},
		{"Not Found", strconv.Itoa(s.NotFound)},
		{"Skipped", strconv.Itoa(s.Skipped)},
		{"Answered With Context", strconv.Itoa(s.WithContext)},
		{"Cache Hits", strconv.Itoa(s.CacheHits)},
		{"Cache Misses", strconv.Itoa(s.CacheMisses)},
		{"Elapsed (seconds)", fmt.Sprintf("%.1f", s.ElapsedSeconds)},
		{"Top K", strconv.Itoa(m.Config.TopK)},
		{"Query Enhancement", strconv.FormatBool(m.Config.EnableQueryEnhancement)},
		{"Distance Filter", strconv.FormatBool(m.Config.EnableDistanceFilter)},
		{"Reranking", strconv.FormatBool(m.Config.EnableReranking)},
		{"Context Injection", strconv.FormatBool(m.Config.EnableContextInjection)},
	}
}

// sourceFiles returns the distinct file names in first-seen order.
func sourceFiles(sources []model.RecordSource) string {
	seen := make(map[string]bool, len(sources))
	var files []string
	for _, s := range sources {
		if !seen[s.File] {
			seen[s.File] = true
			files = append(files, s.File)
		}
	}
	return strings.Join(files, ", ")
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
