package report

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/scan-router/internal/domain"
)

func TestCSVWriter_WriteReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "CSV")
	w := NewCSVWriter(dir)
	rows := []domain.LogRow{
		{Document: "batch1", Page: 1, Decoded: "ABC-001"},
		{Document: "batch1", Page: 2, Decoded: "ABC-002"},
		{Document: "batch1", Page: 3, Decoded: ""},
	}

	path, err := w.WriteReport("batch1", rows)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "batch1.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "PDF_Name,Page_Number,Decoded_ID\nbatch1,1,ABC-001\nbatch1,2,ABC-002\nbatch1,3,\n", string(data))
}

func TestCSVWriter_QuotesDelimiters(t *testing.T) {
	w := NewCSVWriter(t.TempDir())

	path, err := w.WriteReport("tricky", []domain.LogRow{{Document: "scan, final", Page: 1, Decoded: `ID,"7"`}})
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"scan, final", "1", `ID,"7"`}, records[1])
}

func TestCSVWriter_Errors(t *testing.T) {
	_, err := NewCSVWriter(t.TempDir()).WriteReport("", nil)
	assert.True(t, domain.IsType(err, domain.ErrorTypeWrite))

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	_, err = NewCSVWriter(filepath.Join(blocker, "CSV")).WriteReport("x", nil)
	assert.True(t, domain.IsType(err, domain.ErrorTypeWrite))
}

func TestJournal_RoundTrip(t *testing.T) {
	ctx := context.Background()
	j, err := OpenJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, j.StartRun(ctx, "run-1", "/scans", "/out", started))
	require.NoError(t, j.RecordPages(ctx, "run-1", []Entry{
		{Source: "b.pdf", Row: domain.LogRow{Document: "b", Page: 2, Decoded: ""}, Folders: "NOQRS", Attempts: 13},
		{Source: "b.pdf", Row: domain.LogRow{Document: "b", Page: 1, Decoded: "ABC-001"}, Strategy: "native", Folders: "IDS", Attempts: 1},
		{Source: "a.pdf", Row: domain.LogRow{Document: "a", Page: 1, Decoded: "CARD1"}, Strategy: "scale", Folders: "CARDS", Attempts: 3},
	}))
	require.NoError(t, j.FinishRun(ctx, "run-1", 3, started.Add(time.Minute)))

	rows, err := j.Rows(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []domain.LogRow{
		{Document: "a", Page: 1, Decoded: "CARD1"},
		{Document: "b", Page: 1, Decoded: "ABC-001"},
		{Document: "b", Page: 2, Decoded: ""},
	}, rows)

	runs, err := j.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, int64(3), runs[0].Pages)
	assert.True(t, runs[0].FinishedAt.Valid)
	assert.True(t, started.Equal(runs[0].StartedAt))
}

func TestJournal_SameNameInDifferentFolders(t *testing.T) {
	ctx := context.Background()
	j, err := OpenJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.StartRun(ctx, "run-1", "/scans", "/out", time.Now()))
	require.NoError(t, j.RecordPages(ctx, "run-1", []Entry{
		{Source: "a/scan.pdf", Row: domain.LogRow{Document: "scan", Page: 1, Decoded: "A1"}},
	}))
	require.NoError(t, j.RecordPages(ctx, "run-1", []Entry{
		{Source: "b/scan.pdf", Row: domain.LogRow{Document: "scan", Page: 1, Decoded: "B1"}},
	}))

	rows, err := j.Rows(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []domain.LogRow{
		{Document: "scan", Page: 1, Decoded: "A1"},
		{Document: "scan", Page: 1, Decoded: "B1"},
	}, rows)
}

func TestJournal_DuplicateRun(t *testing.T) {
	ctx := context.Background()
	j, err := OpenJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.StartRun(ctx, "run-1", "a", "b", time.Now()))
	err = j.StartRun(ctx, "run-1", "a", "b", time.Now())
	assert.True(t, domain.IsType(err, domain.ErrorTypeWrite))
}
