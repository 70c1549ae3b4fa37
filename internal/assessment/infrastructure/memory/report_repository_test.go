package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	assessment "shipboard-health/internal/assessment/domain"
)

func TestReportRepositoryListByEquipment(t *testing.T) {
	repo := NewReportRepository()
	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	for i, equipmentID := range []string{"pump-1", "pump-1", "pump-2", "pump-1"} {
		report := &assessment.Report{
			ID:          assessment.NewReportID(),
			EquipmentID: equipmentID,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}
		if err := repo.Save(context.Background(), report); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	all, err := repo.ListByEquipment(context.Background(), "pump-1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(all))
	}
	if !all[0].CreatedAt.After(all[1].CreatedAt) {
		t.Fatalf("expected newest first")
	}

	windowed, err := repo.ListByEquipment(context.Background(), "pump-1", base, base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("list window: %v", err)
	}
	if len(windowed) != 2 {
		t.Fatalf("expected 2 reports in window, got %d", len(windowed))
	}
}

func TestReportRepositoryGetMissing(t *testing.T) {
	repo := NewReportRepository()
	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, assessment.ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
	if err := repo.Save(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil report")
	}
}
