package model

// Student is one row of the students table. Total, Percentage and Grade are
// derived from Marks and are always written together with it.
type Student struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Name       string `gorm:"type:text"`
	Roll       string `gorm:"type:text;index"`
	Marks      string `gorm:"type:text"` // JSON object, subject -> score
	Total      int
	Percentage float64
	Grade      string `gorm:"type:text"`
}
