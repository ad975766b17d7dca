package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"nagarpalika/backend/internal/models"
)

// MemoryStore keeps reports in process memory. It backs STORE_DRIVER=memory and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*memEntry
	seq     uint64
	now     func() time.Time
}

type memEntry struct {
	report *models.Report
	seq    uint64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]*memEntry), now: time.Now}
}

func (m *MemoryStore) CreateReport(ctx context.Context, report *models.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := prepareNew(report); err != nil {
		return err
	}
	if err := report.BeforeCreate(nil); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	report.CreatedAt = now
	report.UpdatedAt = now
	m.seq++
	m.reports[report.ID] = &memEntry{report: report.Clone(), seq: m.seq}
	return nil
}

func (m *MemoryStore) UpdateReport(ctx context.Context, id string, patch models.ReportPatch) (*models.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.reports[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	next := entry.report.Clone()
	now := m.now()
	if err := applyPatch(next, patch, now); err != nil {
		return nil, err
	}
	next.UpdatedAt = now
	entry.report = next
	return next.Clone(), nil
}

func (m *MemoryStore) GetReport(ctx context.Context, id string) (*models.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.reports[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return entry.report.Clone(), nil
}

func (m *MemoryStore) ListReports(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	entries := make([]*memEntry, 0, len(m.reports))
	for _, e := range m.reports {
		r := e.report
		if filter.Department != "" && r.TargetDepartment != filter.Department {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		entries = append(entries, &memEntry{report: r.Clone(), seq: e.seq})
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.report.CreatedAt.Equal(b.report.CreatedAt) {
			return a.report.CreatedAt.After(b.report.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]models.Report, len(entries))
	for i, e := range entries {
		out[i] = *e.report
	}
	return out, nil
}
