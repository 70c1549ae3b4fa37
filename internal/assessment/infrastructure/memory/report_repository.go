package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	assessment "shipboard-health/internal/assessment/domain"
)

// ReportRepository is an in-memory repository for demo/testing.
type ReportRepository struct {
	mu   sync.RWMutex
	data map[string]assessment.Report
}

// NewReportRepository constructs a repository.
func NewReportRepository() *ReportRepository {
	return &ReportRepository{
		data: make(map[string]assessment.Report),
	}
}

// Save stores a copy of the report.
func (r *ReportRepository) Save(ctx context.Context, report *assessment.Report) error {
	_ = ctx
	if report == nil || report.ID == "" {
		return errors.New("report repo: invalid report")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[report.ID] = *report
	return nil
}

// Get loads a report by id.
func (r *ReportRepository) Get(ctx context.Context, id string) (*assessment.Report, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.data[id]
	if !ok {
		return nil, assessment.ErrReportNotFound
	}
	return &report, nil
}

// ListByEquipment returns reports created within [from, to), newest first.
// Zero bounds are open.
func (r *ReportRepository) ListByEquipment(ctx context.Context, equipmentID string, from, to time.Time) ([]assessment.Report, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []assessment.Report
	for _, report := range r.data {
		if report.EquipmentID != equipmentID {
			continue
		}
		if !from.IsZero() && report.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !report.CreatedAt.Before(to) {
			continue
		}
		result = append(result, report)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Count returns the number of stored reports.
func (r *ReportRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}
