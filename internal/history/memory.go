package history

import (
	"context"
	"sync"

	"github.com/JonMunkholm/sheetflow/internal/core"
)

// DefaultMemoryCapacity is how many runs a MemoryStore keeps.
const DefaultMemoryCapacity = 200

// MemoryStore keeps the most recent runs in process memory.
// Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	runs     []core.RunReport // oldest first
	capacity int
}

// NewMemoryStore creates a store holding up to capacity runs; older runs
// are dropped first.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{capacity: capacity}
}

func (m *MemoryStore) SaveRun(ctx context.Context, report core.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.runs {
		if m.runs[i].RunID == report.RunID {
			m.runs[i] = report
			return nil
		}
	}
	m.runs = append(m.runs, report)
	if over := len(m.runs) - m.capacity; over > 0 {
		m.runs = append(m.runs[:0:0], m.runs[over:]...)
	}
	return nil
}

func (m *MemoryStore) ListRuns(ctx context.Context, opts ListOptions) ([]RunSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.normalized()

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RunSummary, 0)
	skipped := 0
	for i := len(m.runs) - 1; i >= 0 && len(out) < opts.Limit; i-- {
		s := Summarize(m.runs[i])
		if !opts.matches(s) {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *MemoryStore) GetRun(ctx context.Context, runID string) (core.RunReport, error) {
	if err := ctx.Err(); err != nil {
		return core.RunReport{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.runs {
		if r.RunID == runID {
			return r, nil
		}
	}
	return core.RunReport{}, ErrNotFound
}
