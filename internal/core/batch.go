package core

import (
	"time"

	"github.com/google/uuid"
)

// BatchContext is the state of one run: which types are taken and what
// happened to each file. Types are only ever added. It has a single writer
// and is not safe for concurrent use.
type BatchContext struct {
	RunID     string
	Mode      InputMode
	Trigger   string
	StartedAt time.Time

	occupied  map[string]string // type id -> file
	succeeded []FileResult
	rejected  []FileResult
}

// NewBatchContext starts a run.
func NewBatchContext(mode InputMode) *BatchContext {
	return &BatchContext{
		RunID:     uuid.NewString(),
		Mode:      mode,
		StartedAt: time.Now().UTC(),
		occupied:  make(map[string]string),
	}
}

// IsOccupied reports whether typeID was already assigned in this run.
func (b *BatchContext) IsOccupied(typeID string) bool {
	_, ok := b.occupied[typeID]
	return ok
}

// OccupiedBy returns the file that took typeID.
func (b *BatchContext) OccupiedBy(typeID string) (string, bool) {
	f, ok := b.occupied[typeID]
	return f, ok
}

// Occupy marks typeID as taken by file. Call only after the file's output
// has been written. Returns false if the type was already taken.
func (b *BatchContext) Occupy(typeID, file string) bool {
	if b.IsOccupied(typeID) {
		return false
	}
	b.occupied[typeID] = file
	return true
}

// RecordSuccess appends a processed file.
func (b *BatchContext) RecordSuccess(r FileResult) {
	b.succeeded = append(b.succeeded, r)
}

// RecordRejection appends a rejected file with its error.
func (b *BatchContext) RecordRejection(r FileResult, err error) {
	if err != nil {
		r.ErrorKind = Kind(err)
		r.ErrorCode = MapError(err).Code
		r.Error = err.Error()
	}
	b.rejected = append(b.rejected, r)
}

// Succeeded returns the processed files in order.
func (b *BatchContext) Succeeded() []FileResult { return b.succeeded }

// Rejected returns the rejected files in order.
func (b *BatchContext) Rejected() []FileResult { return b.rejected }

// Report closes the run and returns its summary.
func (b *BatchContext) Report() RunReport {
	return RunReport{
		RunID:      b.RunID,
		Mode:       b.Mode,
		Trigger:    b.Trigger,
		StartedAt:  b.StartedAt,
		FinishedAt: time.Now().UTC(),
		Succeeded:  append([]FileResult(nil), b.succeeded...),
		Rejected:   append([]FileResult(nil), b.rejected...),
	}
}
