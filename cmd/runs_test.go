package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/caseforms/formfill-cli/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Form:      "forms/intake-questions.json",
			Status:    model.RunStatusComplete,
			Result:    &model.ResultDocument{Metadata: model.ResultMetadata{TotalQuestions: 40, TotalAnswered: 36}},
			CreatedAt: now,
			UpdatedAt: now.Add(2 * time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Form:      "q.json",
			Status:    model.RunStatusRunning,
			CreatedAt: now.Add(-1 * time.Hour),
			UpdatedAt: now.Add(-30 * time.Minute),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "FORM")
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "36/40")
	assert.Contains(t, output, "q.json")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "2026-06-15 10:30")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "forms/intake-questions.json")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000-0000-000000000000"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["answer"])
	assert.True(t, names["export"])
	assert.True(t, names["runs"])
}

func TestAnswerCommand_Flags(t *testing.T) {
	assert.NotNil(t, answerCmd.Flags().Lookup("out"))
	assert.NotNil(t, answerCmd.Flags().Lookup("no-store"))
}

func TestExportCommand_Flags(t *testing.T) {
	assert.NotNil(t, exportCmd.Flags().Lookup("out"))
	assert.NotNil(t, exportCmd.Flags().Lookup("format"))
}
