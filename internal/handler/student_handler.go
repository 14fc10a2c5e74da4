package handler

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Thapan6/StudentReportCard/internal/grading"
	"github.com/Thapan6/StudentReportCard/internal/model"
	"github.com/Thapan6/StudentReportCard/internal/service"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// StudentService is the store surface the web handlers use.
type StudentService interface {
	ListStudents(ctx context.Context, search string) ([]service.StudentRow, error)
	ListStudentsPage(ctx context.Context, q service.PageQuery) ([]service.StudentRow, int64, int, error)
	CreateStudent(ctx context.Context, in service.StudentInput) (model.Student, error)
	GetStudent(ctx context.Context, id uint) (service.StudentRow, error)
	UpdateStudent(ctx context.Context, id uint, in service.StudentInput) (model.Student, error)
	DeleteStudent(ctx context.Context, id uint) error
}

type StudentHandler struct {
	studentService StudentService
	exporter       *service.ExportService
}

func NewStudentHandler(studentService StudentService, exporter *service.ExportService) *StudentHandler {
	return &StudentHandler{studentService: studentService, exporter: exporter}
}

type indexPage struct {
	Search   string
	Students []service.StudentRow
	Stats    service.Stats
}

type studentDetail struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Roll    string `json:"roll"`
	Math    int    `json:"math"`
	Science int    `json:"science"`
	English int    `json:"english"`
}

// Index renders the student table and summary statistics.
func (h *StudentHandler) Index(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	students, err := h.studentService.ListStudents(r.Context(), search)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	var buf bytes.Buffer
	err = indexTemplate.Execute(&buf, indexPage{
		Search:   search,
		Students: students,
		Stats:    service.Summarize(students),
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (h *StudentHandler) AddStudent(w http.ResponseWriter, r *http.Request) {
	input, err := parseStudentForm(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if _, err := h.studentService.CreateStudent(r.Context(), input); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *StudentHandler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Student not found"})
		return
	}

	student, err := h.studentService.GetStudent(r.Context(), id)
	if errors.Is(err, service.ErrStudentNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Student not found"})
		return
	}
	if err != nil {
		slog.Error("get student", "request_id", RequestIDFrom(r.Context()), "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, studentDetail{
		ID:      student.ID,
		Name:    student.Name,
		Roll:    student.Roll,
		Math:    student.Math,
		Science: student.Science,
		English: student.English,
	})
}

func (h *StudentHandler) EditStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusNotFound, service.ErrStudentNotFound)
		return
	}
	input, err := parseStudentForm(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	_, err = h.studentService.UpdateStudent(r.Context(), id, input)
	if errors.Is(err, service.ErrStudentNotFound) {
		writeError(w, r, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *StudentHandler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusNotFound, service.ErrStudentNotFound)
		return
	}
	if err := h.studentService.DeleteStudent(r.Context(), id); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// Download sends every record as students.csv, or students.xlsx with
// ?format=xlsx.
func (h *StudentHandler) Download(w http.ResponseWriter, r *http.Request) {
	students, err := h.studentService.ListStudents(r.Context(), "")
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	var buf bytes.Buffer
	fileName, contentType := "students.csv", "text/csv"
	if strings.EqualFold(r.URL.Query().Get("format"), "xlsx") {
		fileName = "students.xlsx"
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = h.exporter.WriteXLSX(&buf, students)
	} else {
		err = h.exporter.WriteCSV(&buf, students)
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+fileName)
	_, _ = buf.WriteTo(w)
}

// ListStudents is the paginated JSON listing.
func (h *StudentHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	pq := service.PageQuery{
		Page:          atoiOr(query.Get("page"), 1),
		Limit:         atoiOr(query.Get("limit"), 10),
		SortBy:        query.Get("sort_by"),
		SortOrder:     query.Get("sort_order"),
		Search:        query.Get("search"),
		Grade:         query.Get("grade"),
		MinPercentage: floatOr(query.Get("min_percentage"), 0),
		MaxPercentage: floatOr(query.Get("max_percentage"), 0),
	}
	if pq.Page < 1 {
		pq.Page = 1
	}
	if pq.Limit < 1 {
		pq.Limit = 10
	}

	students, totalCount, totalPages, err := h.studentService.ListStudentsPage(r.Context(), pq)
	if err != nil {
		slog.Error("list students", "request_id", RequestIDFrom(r.Context()), "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       students,
		"page":       pq.Page,
		"limit":      pq.Limit,
		"total":      totalCount,
		"totalPages": totalPages,
	})
}

func parseStudentForm(r *http.Request) (service.StudentInput, error) {
	if err := r.ParseForm(); err != nil {
		return service.StudentInput{}, err
	}
	marks, err := grading.ParseScores(r.PostFormValue("math"), r.PostFormValue("science"), r.PostFormValue("english"))
	if err != nil {
		return service.StudentInput{}, err
	}
	return service.StudentInput{
		Name:  r.PostFormValue("name"),
		Roll:  r.PostFormValue("roll"),
		Marks: marks,
	}, nil
}
