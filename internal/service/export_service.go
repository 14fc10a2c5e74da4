package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/Thapan6/StudentReportCard/internal/model"
	"github.com/xuri/excelize/v2"
)

var (
	ReportHeader = []string{"ID", "Name", "Roll", "Math", "Science", "English", "Total", "Percentage", "Grade"}
	RawHeader    = []string{"ID", "Name", "Roll", "Marks", "Total", "Percentage", "Grade"}
)

const sheetName = "Students"

// ExportService renders student records as CSV or Excel.
type ExportService struct{}

func NewExportService() *ExportService {
	return &ExportService{}
}

// WriteCSV writes one line per row with the subject columns split out. Row
// percentages are already rounded by the service.
func (e *ExportService) WriteCSV(w io.Writer, rows []StudentRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ReportHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := writer.Write(reportRecord(r)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteRawCSV writes the stored columns as they are, including the encoded
// marks text. Nothing is recomputed.
func (e *ExportService) WriteRawCSV(w io.Writer, students []model.Student) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(RawHeader); err != nil {
		return err
	}
	for _, s := range students {
		if err := writer.Write(rawRecord(s)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func (e *ExportService) WriteXLSX(w io.Writer, rows []StudentRow) error {
	records := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		records = append(records, []interface{}{r.ID, r.Name, r.Roll, r.Math, r.Science, r.English, r.Total, r.Percentage, r.Grade})
	}
	return writeSheet(w, ReportHeader, records)
}

func (e *ExportService) WriteRawXLSX(w io.Writer, students []model.Student) error {
	records := make([][]interface{}, 0, len(students))
	for _, s := range students {
		records = append(records, []interface{}{s.ID, s.Name, s.Roll, s.Marks, s.Total, s.Percentage, s.Grade})
	}
	return writeSheet(w, RawHeader, records)
}

func writeSheet(w io.Writer, header []string, records [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}
	for r, record := range records {
		for c, v := range record {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("write cell %s: %w", cell, err)
			}
		}
	}
	return f.Write(w)
}

func reportRecord(r StudentRow) []string {
	return []string{
		strconv.FormatUint(uint64(r.ID), 10),
		r.Name,
		r.Roll,
		strconv.Itoa(r.Math),
		strconv.Itoa(r.Science),
		strconv.Itoa(r.English),
		strconv.Itoa(r.Total),
		formatFloat(r.Percentage),
		r.Grade,
	}
}

func rawRecord(s model.Student) []string {
	return []string{
		strconv.FormatUint(uint64(s.ID), 10),
		s.Name,
		s.Roll,
		s.Marks,
		strconv.Itoa(s.Total),
		formatFloat(s.Percentage),
		s.Grade,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
