package ui

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	var stdout, stderr bytes.Buffer
	SetOutput(&stdout, &stderr)
	t.Cleanup(func() {
		color.NoColor = prev
		SetOutput(os.Stdout, os.Stderr)
	})
	return &stdout, &stderr
}

func TestMessages(t *testing.T) {
	stdout, stderr := capture(t)

	Success("wrote %d pages", 3)
	Warning("unrouted %s", "X")
	Info("run %s", "abc")
	Error("failed: %v", "boom")

	assert.Equal(t, "✓ wrote 3 pages\n⚠ unrouted X\nℹ run abc\n", stdout.String())
	assert.Equal(t, "✗ failed: boom\n", stderr.String())
}

func TestTable(t *testing.T) {
	stdout, _ := capture(t)

	Table([]string{"Run", "Pages"}, [][]string{{"a", "1"}, {"bbbb", "20"}})

	assert.Equal(t, "Run   Pages\n---   -----\na     1\nbbbb  20\n", stdout.String())
}

func TestSummary(t *testing.T) {
	stdout, _ := capture(t)

	Summary([]Stat{{Label: "Pages", Value: 3}, {Label: "Write failures", Value: 1, Bad: true}}, 1500*time.Millisecond)

	got := stdout.String()
	assert.Contains(t, got, "Run summary")
	assert.Contains(t, got, "Pages           3")
	assert.Contains(t, got, "Write failures  1")
	assert.Contains(t, got, "Processed pages in 1.50 seconds")
}
