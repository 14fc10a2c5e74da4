package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/Thapan6/StudentReportCard/internal/grading"
	"github.com/Thapan6/StudentReportCard/internal/model"
	"gorm.io/gorm"
)

var (
	ErrStudentNotFound = errors.New("student not found")
	ErrNameRequired    = errors.New("name is required")
	ErrRollRequired    = errors.New("roll is required")
)

// StudentInput is everything a caller supplies; the derived fields are
// always computed here.
type StudentInput struct {
	Name  string
	Roll  string
	Marks grading.Marks
}

// StudentRow is a record with decoded marks and a display percentage.
type StudentRow struct {
	ID         uint    `json:"id"`
	Name       string  `json:"name"`
	Roll       string  `json:"roll"`
	Math       int     `json:"math"`
	Science    int     `json:"science"`
	English    int     `json:"english"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Grade      string  `json:"grade"`
}

type Stats struct {
	Total             int     `json:"total"`
	AverageMath       float64 `json:"average_math"`
	AverageScience    float64 `json:"average_science"`
	AverageEnglish    float64 `json:"average_english"`
	AveragePercentage float64 `json:"average_percentage"`
	TopPerformer      string  `json:"top_performer"`
}

type PageQuery struct {
	Page          int
	Limit         int
	SortBy        string
	SortOrder     string
	Search        string
	Grade         string
	MinPercentage float64
	MaxPercentage float64
}

var sortColumns = map[string]string{
	"id":         "id",
	"name":       "name",
	"roll":       "roll",
	"total":      "total",
	"percentage": "percentage",
	"grade":      "grade",
}

type StudentService struct {
	db *gorm.DB
}

func NewStudentService(db *gorm.DB) *StudentService {
	return &StudentService{db: db}
}

// ListStudents returns every record whose name or roll contains search.
// An empty search returns all records.
func (s *StudentService) ListStudents(ctx context.Context, search string) ([]StudentRow, error) {
	var students []model.Student
	q := searchScope(s.db.WithContext(ctx).Model(&model.Student{}), search)
	if err := q.Order("id").Find(&students).Error; err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return toRows(students), nil
}

func (s *StudentService) ListStudentsPage(ctx context.Context, pq PageQuery) ([]StudentRow, int64, int, error) {
	if pq.Page < 1 {
		pq.Page = 1
	}
	if pq.Limit < 1 {
		pq.Limit = 10
	}
	column, ok := sortColumns[strings.ToLower(pq.SortBy)]
	if !ok {
		column = "name"
	}
	order := "asc"
	if strings.EqualFold(pq.SortOrder, "desc") {
		order = "desc"
	}

	base := func() *gorm.DB {
		q := searchScope(s.db.WithContext(ctx).Model(&model.Student{}), pq.Search)
		if pq.Grade != "" {
			q = q.Where("grade = ?", pq.Grade)
		}
		if pq.MinPercentage > 0 {
			q = q.Where("percentage >= ?", pq.MinPercentage)
		}
		if pq.MaxPercentage > 0 {
			q = q.Where("percentage <= ?", pq.MaxPercentage)
		}
		return q
	}

	var totalCount int64
	if err := base().Count(&totalCount).Error; err != nil {
		return nil, 0, 0, fmt.Errorf("count students: %w", err)
	}

	var students []model.Student
	err := base().
		Order(column + " " + order).
		Order("id").
		Offset((pq.Page - 1) * pq.Limit).
		Limit(pq.Limit).
		Find(&students).Error
	if err != nil {
		return nil, 0, 0, fmt.Errorf("list students: %w", err)
	}

	totalPages := int(math.Ceil(float64(totalCount) / float64(pq.Limit)))
	return toRows(students), totalCount, totalPages, nil
}

// AllStudents returns the stored rows untouched.
func (s *StudentService) AllStudents(ctx context.Context) ([]model.Student, error) {
	var students []model.Student
	if err := s.db.WithContext(ctx).Order("id").Find(&students).Error; err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

func (s *StudentService) CreateStudent(ctx context.Context, in StudentInput) (model.Student, error) {
	student, err := buildStudent(in)
	if err != nil {
		return model.Student{}, err
	}
	if err := s.db.WithContext(ctx).Create(&student).Error; err != nil {
		return model.Student{}, fmt.Errorf("create student: %w", err)
	}
	slog.Info("student created", "id", student.ID, "roll", student.Roll, "grade", student.Grade)
	return student, nil
}

func (s *StudentService) GetStudent(ctx context.Context, id uint) (StudentRow, error) {
	var student model.Student
	err := s.db.WithContext(ctx).First(&student, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return StudentRow{}, ErrStudentNotFound
	}
	if err != nil {
		return StudentRow{}, fmt.Errorf("get student %d: %w", id, err)
	}
	return toRow(student), nil
}

// UpdateStudent replaces every stored field of the record.
func (s *StudentService) UpdateStudent(ctx context.Context, id uint, in StudentInput) (model.Student, error) {
	student, err := buildStudent(in)
	if err != nil {
		return model.Student{}, err
	}
	student.ID = id

	res := s.db.WithContext(ctx).Model(&model.Student{}).Where("id = ?", id).Updates(map[string]interface{}{
		"name":       student.Name,
		"roll":       student.Roll,
		"marks":      student.Marks,
		"total":      student.Total,
		"percentage": student.Percentage,
		"grade":      student.Grade,
	})
	if res.Error != nil {
		return model.Student{}, fmt.Errorf("update student %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return model.Student{}, ErrStudentNotFound
	}
	slog.Info("student updated", "id", id, "grade", student.Grade)
	return student, nil
}

// DeleteStudent removes the record. Deleting a missing id is not an error.
func (s *StudentService) DeleteStudent(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&model.Student{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete student %d: %w", id, res.Error)
	}
	slog.Info("student deleted", "id", id, "rows", res.RowsAffected)
	return nil
}

// Summarize computes the figures shown above the student table.
func Summarize(rows []StudentRow) Stats {
	stats := Stats{Total: len(rows), TopPerformer: "N/A"}
	if len(rows) == 0 {
		return stats
	}

	var sumMath, sumScience, sumEnglish int
	var sumPercentage float64
	maxPercentage := -1.0
	for _, r := range rows {
		sumMath += r.Math
		sumScience += r.Science
		sumEnglish += r.English
		sumPercentage += r.Percentage
		if r.Percentage > maxPercentage {
			maxPercentage = r.Percentage
			stats.TopPerformer = r.Name
		}
	}

	n := float64(len(rows))
	stats.AverageMath = grading.Round2(float64(sumMath) / n)
	stats.AverageScience = grading.Round2(float64(sumScience) / n)
	stats.AverageEnglish = grading.Round2(float64(sumEnglish) / n)
	stats.AveragePercentage = grading.Round2(sumPercentage / n)
	return stats
}

func buildStudent(in StudentInput) (model.Student, error) {
	name := strings.TrimSpace(in.Name)
	roll := strings.TrimSpace(in.Roll)
	if name == "" {
		return model.Student{}, ErrNameRequired
	}
	if roll == "" {
		return model.Student{}, ErrRollRequired
	}

	result, err := grading.Compute(in.Marks)
	if err != nil {
		return model.Student{}, err
	}
	encoded, err := grading.Encode(in.Marks)
	if err != nil {
		return model.Student{}, err
	}

	return model.Student{
		Name:       name,
		Roll:       roll,
		Marks:      encoded,
		Total:      result.Total,
		Percentage: result.Percentage,
		Grade:      result.Grade,
	}, nil
}

func searchScope(q *gorm.DB, search string) *gorm.DB {
	search = strings.TrimSpace(search)
	if search == "" {
		return q
	}
	// SQLite LOWER folds ASCII only, so the raw term is matched as well.
	raw := "%" + search + "%"
	lowered := "%" + strings.ToLower(search) + "%"
	return q.Where("(name LIKE ? OR roll LIKE ? OR LOWER(name) LIKE ? OR LOWER(roll) LIKE ?)", raw, raw, lowered, lowered)
}

// DecodeMarks reads a stored marks value, substituting zero marks when the
// text cannot be decoded.
func DecodeMarks(s model.Student) grading.Marks {
	marks, err := grading.Decode(s.Marks)
	if err != nil {
		slog.Warn("malformed marks, using defaults; run the repair command", "id", s.ID, "error", err)
		return grading.DefaultMarks()
	}
	return marks
}

func toRow(s model.Student) StudentRow {
	marks := DecodeMarks(s)
	return StudentRow{
		ID:         s.ID,
		Name:       s.Name,
		Roll:       s.Roll,
		Math:       marks[grading.Math],
		Science:    marks[grading.Science],
		English:    marks[grading.English],
		Total:      s.Total,
		Percentage: grading.Round2(s.Percentage),
		Grade:      s.Grade,
	}
}

func toRows(students []model.Student) []StudentRow {
	rows := make([]StudentRow, 0, len(students))
	for _, s := range students {
		rows = append(rows, toRow(s))
	}
	return rows
}
