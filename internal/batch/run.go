// Package batch walks a source tree and drives every page of every PDF
// through the decode cascade, the router and the writers.
package batch

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/scan-router/internal/observability"
)

// Counters are the run-wide tallies. They are updated atomically so that
// documents may be processed concurrently.
type Counters struct {
	Pages           atomic.Int64
	Documents       atomic.Int64
	DocumentsFailed atomic.Int64
	Decoded         atomic.Int64
	Undecoded       atomic.Int64
	Unrouted        atomic.Int64
	AttemptFailures atomic.Int64
	WriteFailures   atomic.Int64
}

// Counts is a point-in-time copy of Counters.
type Counts struct {
	Pages           int64
	Documents       int64
	DocumentsFailed int64
	Decoded         int64
	Undecoded       int64
	Unrouted        int64
	AttemptFailures int64
	WriteFailures   int64
}

// Snapshot copies the current counter values.
func (c *Counters) Snapshot() Counts {
	return Counts{
		Pages:           c.Pages.Load(),
		Documents:       c.Documents.Load(),
		DocumentsFailed: c.DocumentsFailed.Load(),
		Decoded:         c.Decoded.Load(),
		Undecoded:       c.Undecoded.Load(),
		Unrouted:        c.Unrouted.Load(),
		AttemptFailures: c.AttemptFailures.Load(),
		WriteFailures:   c.WriteFailures.Load(),
	}
}

// Run is the state of one batch invocation, passed explicitly to every step.
type Run struct {
	ID         string
	SourceRoot string
	OutputRoot string
	StartedAt  time.Time
	Counters   *Counters
	Logger     *observability.Logger
}

// NewRun starts a run with a fresh ID.
func NewRun(sourceRoot, outputRoot string, logger *observability.Logger) *Run {
	if logger == nil {
		logger = observability.Nop()
	}
	id := uuid.NewString()
	return &Run{
		ID:         id,
		SourceRoot: sourceRoot,
		OutputRoot: outputRoot,
		StartedAt:  time.Now(),
		Counters:   &Counters{},
		Logger:     logger.WithRun(id),
	}
}

// Summary is returned when a run ends.
type Summary struct {
	RunID     string
	Counts    Counts
	Elapsed   time.Duration
	Documents int      // Documents found under the source root
	Reports   []string // CSV reports written
}
