// Package history keeps the reports of past runs so operators can see what
// was converted, from which file, and why files were rejected.
//
// Two stores are provided: an in-memory ring used when no database is
// configured, and a PostgreSQL store backed by pgxpool.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/sheetflow/internal/core"
)

// DefaultListLimit is the page size used when ListOptions.Limit is unset.
const DefaultListLimit = 50

// MaxListLimit caps a single page.
const MaxListLimit = 500

// ErrNotFound is returned by GetRun for an unknown run id.
var ErrNotFound = errors.New("run not found")

// Store persists run reports.
type Store interface {
	SaveRun(ctx context.Context, report core.RunReport) error
	ListRuns(ctx context.Context, opts ListOptions) ([]RunSummary, error)
	GetRun(ctx context.Context, runID string) (core.RunReport, error)
}

// RunSummary is one line of the run list.
type RunSummary struct {
	RunID      string         `json:"runId"`
	Mode       core.InputMode `json:"mode"`
	Trigger    string         `json:"trigger,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Succeeded  int            `json:"succeeded"`
	Rejected   int            `json:"rejected"`
}

// Summarize reduces a report to its list line.
func Summarize(r core.RunReport) RunSummary {
	return RunSummary{
		RunID:      r.RunID,
		Mode:       r.Mode,
		Trigger:    r.Trigger,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Succeeded:  len(r.Succeeded),
		Rejected:   len(r.Rejected),
	}
}

// ListOptions filters and pages ListRuns. Runs are returned newest first.
type ListOptions struct {
	Mode       core.InputMode // empty for all modes
	Trigger    string         // empty for all triggers
	OnlyFailed bool           // runs with at least one rejected file
	Limit      int
	Offset     int
}

func (o ListOptions) normalized() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

func (o ListOptions) matches(s RunSummary) bool {
	if o.Mode != "" && s.Mode != o.Mode {
		return false
	}
	if o.Trigger != "" && s.Trigger != o.Trigger {
		return false
	}
	if o.OnlyFailed && s.Rejected == 0 {
		return false
	}
	return true
}
