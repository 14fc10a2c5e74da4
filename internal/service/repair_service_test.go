package service

import (
	"context"
	"testing"

	"github.com/Thapan6/StudentReportCard/internal/grading"
	"github.com/Thapan6/StudentReportCard/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairMarks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	good, err := NewStudentService(db).CreateStudent(ctx, StudentInput{Name: "Good", Roll: "1", Marks: marks(90, 80, 70)})
	require.NoError(t, err)

	legacy := model.Student{Name: "Legacy", Roll: "2", Marks: "{'Math': 90, 'Science': 90, 'English': 90}", Total: 270, Percentage: 90, Grade: "A+"}
	garbage := model.Student{Name: "Garbage", Roll: "3", Marks: "not marks", Total: 200, Percentage: 66.67, Grade: "B"}
	outOfRange := model.Student{Name: "Huge", Roll: "4", Marks: "{'Math': 500}", Total: 500, Percentage: 500, Grade: "A+"}
	require.NoError(t, db.Create(&legacy).Error)
	require.NoError(t, db.Create(&garbage).Error)
	require.NoError(t, db.Create(&outOfRange).Error)

	report, err := NewRepairService(db).RepairMarks(ctx)
	require.NoError(t, err)
	assert.Equal(t, RepairReport{Scanned: 4, Canonical: 1, Converted: 1, Defaulted: 2}, report)

	var got model.Student
	require.NoError(t, db.First(&got, good.ID).Error)
	assert.Equal(t, good.Marks, got.Marks)

	require.NoError(t, db.First(&got, legacy.ID).Error)
	m, err := grading.Decode(got.Marks)
	require.NoError(t, err)
	assert.Equal(t, marks(90, 90, 90), m)
	assert.Equal(t, 270, got.Total)
	assert.Equal(t, "A+", got.Grade)

	for _, id := range []uint{garbage.ID, outOfRange.ID} {
		require.NoError(t, db.First(&got, id).Error)
		m, err = grading.Decode(got.Marks)
		require.NoError(t, err)
		assert.Equal(t, grading.DefaultMarks(), m)
		assert.Equal(t, 0, got.Total)
		assert.Equal(t, 0.0, got.Percentage)
		assert.Equal(t, "F", got.Grade)
	}

	again, err := NewRepairService(db).RepairMarks(ctx)
	require.NoError(t, err)
	assert.Equal(t, RepairReport{Scanned: 4, Canonical: 4}, again)
}
