// Package desk is the terminal form front end. It shares the store and the
// grading rules with the web server.
package desk

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Thapan6/StudentReportCard/internal/grading"
	"github.com/Thapan6/StudentReportCard/internal/model"
	"github.com/Thapan6/StudentReportCard/internal/service"
)

const (
	msgRequired     = "All fields are required."
	msgInvalidInput = "Please enter valid numbers for marks."
	msgInvalidMarks = "Marks must be between 0 and 100."
	msgAdded        = "Student added successfully!"
	msgExported     = "Data exported successfully!"
)

type Store interface {
	CreateStudent(ctx context.Context, in service.StudentInput) (model.Student, error)
	AllStudents(ctx context.Context) ([]model.Student, error)
}

type app struct {
	store    Store
	exporter *service.ExportService
	reader   *bufio.Reader
	out      io.Writer
}

// Run drives the form until the user quits or input ends.
func Run(ctx context.Context, in io.Reader, out io.Writer, store Store) error {
	a := &app{
		store:    store,
		exporter: service.NewExportService(),
		reader:   bufio.NewReader(in),
		out:      out,
	}

	fmt.Fprintln(out, "Student Report Card System")
	if err := a.printTable(ctx); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
	}
	a.printHelp()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		cmd, ok := a.prompt("> ")
		if !ok {
			return nil
		}

		switch strings.ToLower(cmd) {
		case "":
		case "a", "add":
			if !a.add(ctx) {
				return nil
			}
		case "l", "list":
			if err := a.printTable(ctx); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			}
		case "e", "export":
			if !a.export(ctx) {
				return nil
			}
		case "q", "quit", "exit":
			return nil
		default:
			a.printHelp()
		}
	}
}

func (a *app) add(ctx context.Context) bool {
	labels := []string{"Name", "Roll", grading.Math, grading.Science, grading.English}
	values := make([]string, len(labels))
	for i, label := range labels {
		v, ok := a.prompt(label + ": ")
		if !ok {
			return false
		}
		values[i] = v
	}

	for _, v := range values {
		if v == "" {
			fmt.Fprintln(a.out, msgRequired)
			return true
		}
	}

	marks, err := grading.ParseScores(values[2], values[3], values[4])
	if err != nil {
		fmt.Fprintln(a.out, msgInvalidInput)
		return true
	}

	_, err = a.store.CreateStudent(ctx, service.StudentInput{Name: values[0], Roll: values[1], Marks: marks})
	switch {
	case errors.Is(err, grading.ErrMarkOutOfRange):
		fmt.Fprintln(a.out, msgInvalidMarks)
		return true
	case err != nil:
		fmt.Fprintf(a.out, "Error: %v\n", err)
		return true
	}

	if err := a.printTable(ctx); err != nil {
		fmt.Fprintf(a.out, "Error: %v\n", err)
	}
	fmt.Fprintln(a.out, msgAdded)
	return true
}

func (a *app) export(ctx context.Context) bool {
	path, ok := a.prompt("Save as (.csv or .xlsx): ")
	if !ok {
		return false
	}
	if path == "" {
		fmt.Fprintln(a.out, "Export cancelled.")
		return true
	}
	if filepath.Ext(path) == "" {
		path += ".csv"
	}

	if err := a.writeExport(ctx, path); err != nil {
		fmt.Fprintf(a.out, "Error: %v\n", err)
		return true
	}
	fmt.Fprintln(a.out, msgExported)
	return true
}

func (a *app) writeExport(ctx context.Context, path string) error {
	students, err := a.store.AllStudents(ctx)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		err = a.exporter.WriteRawXLSX(f, students)
	} else {
		err = a.exporter.WriteRawCSV(f, students)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func (a *app) printTable(ctx context.Context) error {
	students, err := a.store.AllStudents(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(service.RawHeader, "\t"))
	for _, s := range students {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			s.ID, s.Name, s.Roll, s.Marks, s.Total,
			strconv.FormatFloat(s.Percentage, 'f', -1, 64), s.Grade)
	}
	return tw.Flush()
}

func (a *app) printHelp() {
	fmt.Fprintln(a.out, "Commands: add, list, export, quit")
}

// prompt returns the trimmed line, or false once input is exhausted.
func (a *app) prompt(label string) (string, bool) {
	fmt.Fprint(a.out, label)
	line, err := a.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimSpace(line), true
}
