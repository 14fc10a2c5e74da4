package handler

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/Thapan6/StudentReportCard/internal/config"
	"github.com/Thapan6/StudentReportCard/internal/database"
	"github.com/Thapan6/StudentReportCard/internal/model"
	"github.com/Thapan6/StudentReportCard/internal/service"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type MockStudentService struct {
	mock.Mock
}

func (m *MockStudentService) ListStudents(ctx context.Context, search string) ([]service.StudentRow, error) {
	args := m.Called(ctx, search)
	rows, _ := args.Get(0).([]service.StudentRow)
	return rows, args.Error(1)
}

func (m *MockStudentService) ListStudentsPage(ctx context.Context, q service.PageQuery) ([]service.StudentRow, int64, int, error) {
	args := m.Called(ctx, q)
	rows, _ := args.Get(0).([]service.StudentRow)
	return rows, args.Get(1).(int64), args.Int(2), args.Error(3)
}

func (m *MockStudentService) CreateStudent(ctx context.Context, in service.StudentInput) (model.Student, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(model.Student), args.Error(1)
}

func (m *MockStudentService) GetStudent(ctx context.Context, id uint) (service.StudentRow, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(service.StudentRow), args.Error(1)
}

func (m *MockStudentService) UpdateStudent(ctx context.Context, id uint, in service.StudentInput) (model.Student, error) {
	args := m.Called(ctx, id, in)
	return args.Get(0).(model.Student), args.Error(1)
}

func (m *MockStudentService) DeleteStudent(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	db, err := database.InitDB(&config.Config{DBDriver: "sqlite", DBPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	uploads := service.NewUploadService(db)
	return NewRouter(
		NewStudentHandler(service.NewStudentService(db), service.NewExportService()),
		NewUploadHandler(uploads, t.TempDir()),
		NewProgressHandler(uploads),
	)
}

func do(router http.Handler, method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func studentForm(name, roll, math, science, english string) url.Values {
	return url.Values{
		"name":    {name},
		"roll":    {roll},
		"math":    {math},
		"science": {science},
		"english": {english},
	}
}

func TestAddThenGetStudent(t *testing.T) {
	router := newTestRouter(t)

	rr := do(router, http.MethodPost, "/add", studentForm("Asha", "R1", "90", "80", "70"))
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))

	rr = do(router, http.MethodGet, "/get_student/1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var got studentDetail
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, studentDetail{ID: 1, Name: "Asha", Roll: "R1", Math: 90, Science: 80, English: 70}, got)
}

func TestAddStudentRejectsBadInput(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name string
		form url.Values
	}{
		{"not a number", studentForm("Asha", "R1", "ninety", "80", "70")},
		{"missing mark", studentForm("Asha", "R1", "90", "", "70")},
		{"out of range", studentForm("Asha", "R1", "190", "80", "70")},
		{"missing name", studentForm("", "R1", "90", "80", "70")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(router, http.MethodPost, "/add", tt.form)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.True(t, strings.HasPrefix(rr.Body.String(), "Error: "), rr.Body.String())
		})
	}

	rr := do(router, http.MethodGet, "/download", nil)
	records, err := csv.NewReader(rr.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1, "nothing stored")
}

func TestGetStudentNotFound(t *testing.T) {
	router := newTestRouter(t)

	rr := do(router, http.MethodGet, "/get_student/99", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"Student not found"}`, rr.Body.String())

	rr = do(router, http.MethodGet, "/get_student/abc", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestEditStudentReplacesRecord(t *testing.T) {
	router := newTestRouter(t)
	do(router, http.MethodPost, "/add", studentForm("Asha", "R1", "90", "80", "70"))

	rr := do(router, http.MethodPost, "/edit/1", studentForm("Asha K", "R9", "50", "50", "50"))
	assert.Equal(t, http.StatusFound, rr.Code)

	rr = do(router, http.MethodGet, "/download", nil)
	records, err := csv.NewReader(rr.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"1", "Asha K", "R9", "50", "50", "50", "150", "50", "C"}, records[1])

	rr = do(router, http.MethodPost, "/edit/42", studentForm("X", "Y", "1", "1", "1"))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(router, http.MethodPost, "/edit/1", studentForm("X", "Y", "1", "x", "1"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeleteStudentRemovesFromIndex(t *testing.T) {
	router := newTestRouter(t)
	do(router, http.MethodPost, "/add", studentForm("Asha", "R1", "90", "80", "70"))
	do(router, http.MethodPost, "/add", studentForm("Bilal", "R2", "60", "60", "60"))

	rr := do(router, http.MethodPost, "/delete/1", nil)
	assert.Equal(t, http.StatusFound, rr.Code)

	rr = do(router, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.NotContains(t, body, "Asha")
	assert.Contains(t, body, "Bilal")

	rr = do(router, http.MethodGet, "/get_student/1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestIndexSearchAndStats(t *testing.T) {
	router := newTestRouter(t)
	do(router, http.MethodPost, "/add", studentForm("Asha", "R1", "90", "80", "70"))
	do(router, http.MethodPost, "/add", studentForm("Bilal", "R2", "95", "95", "95"))

	rr := do(router, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	body := rr.Body.String()
	assert.Contains(t, body, "Asha")
	assert.Contains(t, body, "Bilal")
	assert.Contains(t, body, `<strong id="stat-total">2</strong>`)
	assert.Contains(t, body, `<strong id="stat-top">Bilal</strong>`)

	rr = do(router, http.MethodGet, "/?search=asha", nil)
	body = rr.Body.String()
	assert.Contains(t, body, "Asha")
	assert.NotContains(t, body, "Bilal")
	assert.Contains(t, body, `<strong id="stat-total">1</strong>`)

	rr = do(router, http.MethodGet, "/?search=", nil)
	assert.Contains(t, rr.Body.String(), `<strong id="stat-total">2</strong>`)
}

func TestIndexEmptyStore(t *testing.T) {
	router := newTestRouter(t)

	rr := do(router, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "No students found")
	assert.Contains(t, rr.Body.String(), `<strong id="stat-top">N/A</strong>`)
}

func TestDownloadCSV(t *testing.T) {
	router := newTestRouter(t)
	do(router, http.MethodPost, "/add", studentForm("Asha", "R1", "100", "100", "50"))
	do(router, http.MethodPost, "/add", studentForm("Bilal", "R2", "60", "60", "60"))

	rr := do(router, http.MethodGet, "/download", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=students.csv", rr.Header().Get("Content-Disposition"))

	records, err := csv.NewReader(rr.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, service.ReportHeader, records[0])
	assert.Equal(t, "83.33", records[1][7])
	assert.Equal(t, "A", records[1][8])
}

func TestDownloadXLSX(t *testing.T) {
	router := newTestRouter(t)
	do(router, http.MethodPost, "/add", studentForm("Asha", "R1", "90", "80", "70"))

	rr := do(router, http.MethodGet, "/download?format=xlsx", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "attachment; filename=students.xlsx", rr.Header().Get("Content-Disposition"))

	f, err := excelize.OpenReader(rr.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestListStudentsJSON(t *testing.T) {
	router := newTestRouter(t)
	do(router, http.MethodPost, "/add", studentForm("John Doe", "R1", "90", "90", "90"))
	do(router, http.MethodPost, "/add", studentForm("Jane Doe", "R2", "80", "70", "75"))
	do(router, http.MethodPost, "/add", studentForm("Alice", "R3", "40", "50", "45"))

	tests := []struct {
		name        string
		query       string
		expectedLen int
		total       float64
	}{
		{"All students", "", 3, 3},
		{"Search", "?search=doe", 2, 2},
		{"Grade filter", "?grade=F", 1, 1},
		{"Pagination", "?page=1&limit=2", 2, 3},
		{"Bad paging falls back", "?page=-4&limit=zero", 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(router, http.MethodGet, "/students"+tt.query, nil)
			require.Equal(t, http.StatusOK, rr.Code)

			var response map[string]interface{}
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
			data := response["data"].([]interface{})
			assert.Len(t, data, tt.expectedLen)
			assert.Equal(t, tt.total, response["total"])
		})
	}
}

func TestHandlersSurfaceStoreErrors(t *testing.T) {
	mockService := new(MockStudentService)
	storeErr := errors.New("disk I/O error")
	mockService.On("ListStudents", mock.Anything, "").Return(nil, storeErr)
	mockService.On("GetStudent", mock.Anything, uint(3)).Return(service.StudentRow{}, storeErr)
	mockService.On("DeleteStudent", mock.Anything, uint(3)).Return(storeErr)
	mockService.On("ListStudentsPage", mock.Anything, mock.AnythingOfType("service.PageQuery")).Return(nil, int64(0), 0, storeErr)

	router := NewRouter(NewStudentHandler(mockService, service.NewExportService()), nil, nil)

	rr := do(router, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Error: disk I/O error\n", rr.Body.String())

	rr = do(router, http.MethodGet, "/download", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = do(router, http.MethodGet, "/get_student/3", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = do(router, http.MethodPost, "/delete/3", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(router, http.MethodGet, "/students", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	mockService.AssertExpectations(t)
}

func TestAddStudentPassesParsedInput(t *testing.T) {
	mockService := new(MockStudentService)
	want := service.StudentInput{Name: "Asha", Roll: "R1", Marks: map[string]int{"Math": 1, "Science": 2, "English": 3}}
	mockService.On("CreateStudent", mock.Anything, want).Return(model.Student{ID: 1}, nil)

	router := NewRouter(NewStudentHandler(mockService, service.NewExportService()), nil, nil)
	rr := do(router, http.MethodPost, "/add", studentForm("Asha", "R1", "1", "2", "3"))

	assert.Equal(t, http.StatusFound, rr.Code)
	mockService.AssertExpectations(t)
}
