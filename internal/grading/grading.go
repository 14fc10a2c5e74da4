// Package grading turns a set of subject marks into the derived report card
// figures. Every front end goes through Compute so the thresholds live in one
// place.
package grading

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	Math    = "Math"
	Science = "Science"
	English = "English"

	MaxMark = 100
)

// Subjects is the fixed subject set in display order.
var Subjects = []string{Math, Science, English}

var (
	ErrNoMarks        = errors.New("at least one mark is required")
	ErrMarkOutOfRange = errors.New("marks must be between 0 and 100")
	ErrInvalidMark    = errors.New("marks must be whole numbers")
)

// Marks maps a subject name to its score.
type Marks map[string]int

type Result struct {
	Total      int
	Percentage float64
	Grade      string
}

func Compute(marks Marks) (Result, error) {
	if len(marks) == 0 {
		return Result{}, ErrNoMarks
	}

	total := 0
	for subject, score := range marks {
		if score < 0 || score > MaxMark {
			return Result{}, fmt.Errorf("%s: %w", subject, ErrMarkOutOfRange)
		}
		total += score
	}

	percentage := float64(total) / float64(len(marks))
	return Result{
		Total:      total,
		Percentage: percentage,
		Grade:      Letter(percentage),
	}, nil
}

// Letter maps a percentage to a grade. Thresholds are inclusive.
func Letter(percentage float64) string {
	switch {
	case percentage >= 90:
		return "A+"
	case percentage >= 75:
		return "A"
	case percentage >= 60:
		return "B"
	case percentage >= 50:
		return "C"
	default:
		return "F"
	}
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func DefaultMarks() Marks {
	m := make(Marks, len(Subjects))
	for _, s := range Subjects {
		m[s] = 0
	}
	return m
}

// ParseScores converts raw form values for the fixed subjects.
func ParseScores(math, science, english string) (Marks, error) {
	raw := []string{math, science, english}
	marks := make(Marks, len(Subjects))
	for i, subject := range Subjects {
		v, err := strconv.Atoi(strings.TrimSpace(raw[i]))
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", subject, raw[i], ErrInvalidMark)
		}
		marks[subject] = v
	}
	return marks, nil
}

// Encode renders marks as the JSON text stored in the marks column.
func Encode(marks Marks) (string, error) {
	b, err := json.Marshal(marks)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func Decode(text string) (Marks, error) {
	var marks Marks
	if err := json.Unmarshal([]byte(text), &marks); err != nil {
		return nil, err
	}
	if marks == nil {
		return nil, errors.New("marks: null value")
	}
	return marks, nil
}
