package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Thapan6/StudentReportCard/internal/grading"
	"github.com/Thapan6/StudentReportCard/internal/model"
	"gorm.io/gorm"
)

type RepairReport struct {
	Scanned   int
	Canonical int
	Converted int
	Defaulted int
}

func (r RepairReport) String() string {
	return fmt.Sprintf("scanned=%d canonical=%d converted=%d defaulted=%d",
		r.Scanned, r.Canonical, r.Converted, r.Defaulted)
}

// RepairService rewrites stored marks that are not valid JSON.
type RepairService struct {
	db *gorm.DB
}

func NewRepairService(db *gorm.DB) *RepairService {
	return &RepairService{db: db}
}

// RepairMarks tries JSON, then the legacy literal form, then falls back to
// zero marks. Repaired rows get total, percentage and grade recomputed.
func (s *RepairService) RepairMarks(ctx context.Context) (RepairReport, error) {
	var report RepairReport

	var students []model.Student
	if err := s.db.WithContext(ctx).Order("id").Find(&students).Error; err != nil {
		return report, fmt.Errorf("load students: %w", err)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, st := range students {
			report.Scanned++

			if _, err := grading.Decode(st.Marks); err == nil {
				report.Canonical++
				continue
			}

			marks, err := grading.ParseLegacy(st.Marks)
			source := "literal"
			if err != nil {
				marks = grading.DefaultMarks()
				source = "default"
			}
			result, err := grading.Compute(marks)
			if err != nil {
				slog.Warn("legacy marks unusable, resetting", "id", st.ID, "error", err)
				marks = grading.DefaultMarks()
				source = "default"
				result, _ = grading.Compute(marks)
			}
			encoded, err := grading.Encode(marks)
			if err != nil {
				return err
			}

			err = tx.Model(&model.Student{}).Where("id = ?", st.ID).Updates(map[string]interface{}{
				"marks":      encoded,
				"total":      result.Total,
				"percentage": result.Percentage,
				"grade":      result.Grade,
			}).Error
			if err != nil {
				return fmt.Errorf("repair student %d: %w", st.ID, err)
			}

			if source == "literal" {
				report.Converted++
			} else {
				report.Defaulted++
			}
			slog.Info("repaired marks", "id", st.ID, "from", st.Marks, "to", encoded, "source", source)
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	return report, nil
}
