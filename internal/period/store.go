package period

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abverdict/abverdict/internal/stats"
)

// ErrNotFound is returned when an experiment, period or snapshot does not exist.
var ErrNotFound = errors.New("not found")

// Store persists source periods and the consolidated snapshot per experiment.
// Source periods are the truth; the snapshot is derived from them and is
// dropped whenever they change.
type Store interface {
	// AddPeriod stores p, replacing any period of the experiment with the
	// same date range. The returned period carries its ID.
	AddPeriod(ctx context.Context, experiment string, p Period) (Period, error)
	ListPeriods(ctx context.Context, experiment string) ([]Period, error)
	RemovePeriod(ctx context.Context, experiment, id string) error
	ClearPeriods(ctx context.Context, experiment string) error
	// ReplaceConsolidated overwrites the experiment's snapshot.
	ReplaceConsolidated(ctx context.Context, experiment string, c Consolidated) error
	GetConsolidated(ctx context.Context, experiment string) (*Consolidated, error)
	ListExperiments(ctx context.Context) ([]ExperimentSummary, error)
}

type memoryExperiment struct {
	periods      []Period
	consolidated *Consolidated
	updatedAt    time.Time
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu          sync.RWMutex
	experiments map[string]*memoryExperiment
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{experiments: make(map[string]*memoryExperiment)}
}

func (m *MemoryStore) AddPeriod(ctx context.Context, experiment string, p Period) (Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.experiments[experiment]
	if !ok {
		exp = &memoryExperiment{}
		m.experiments[experiment] = exp
	}

	p = clonePeriod(p)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	replaced := false
	for i, existing := range exp.periods {
		if existing.DateRange == p.DateRange {
			p.ID = existing.ID
			exp.periods[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		exp.periods = append(exp.periods, p)
	}

	exp.consolidated = nil
	exp.updatedAt = time.Now().UTC()
	return clonePeriod(p), nil
}

func (m *MemoryStore) ListPeriods(ctx context.Context, experiment string) ([]Period, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exp, ok := m.experiments[experiment]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Period, len(exp.periods))
	for i, p := range exp.periods {
		out[i] = clonePeriod(p)
	}
	return out, nil
}

func (m *MemoryStore) RemovePeriod(ctx context.Context, experiment, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.experiments[experiment]
	if !ok {
		return ErrNotFound
	}
	for i, p := range exp.periods {
		if p.ID == id {
			exp.periods = append(exp.periods[:i], exp.periods[i+1:]...)
			exp.consolidated = nil
			exp.updatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) ClearPeriods(ctx context.Context, experiment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.experiments[experiment]
	if !ok {
		return ErrNotFound
	}
	exp.periods = nil
	exp.consolidated = nil
	exp.updatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) ReplaceConsolidated(ctx context.Context, experiment string, c Consolidated) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.experiments[experiment]
	if !ok {
		return ErrNotFound
	}
	snapshot := cloneConsolidated(c)
	exp.consolidated = &snapshot
	exp.updatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) GetConsolidated(ctx context.Context, experiment string) (*Consolidated, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exp, ok := m.experiments[experiment]
	if !ok || exp.consolidated == nil {
		return nil, ErrNotFound
	}
	c := cloneConsolidated(*exp.consolidated)
	return &c, nil
}

func (m *MemoryStore) ListExperiments(ctx context.Context) ([]ExperimentSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ExperimentSummary, 0, len(m.experiments))
	for name, exp := range m.experiments {
		out = append(out, ExperimentSummary{
			Name:            name,
			PeriodCount:     len(exp.periods),
			HasConsolidated: exp.consolidated != nil,
			UpdatedAt:       exp.updatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func clonePeriod(p Period) Period {
	p.Variants = append([]stats.Arm(nil), p.Variants...)
	return p
}

func cloneConsolidated(c Consolidated) Consolidated {
	c.Period = clonePeriod(c.Period)
	c.Warnings = append([]string(nil), c.Warnings...)
	return c
}
