package models

// Course groups materials by academic course.
type Course struct {
	ID           uint   `gorm:"primaryKey"`
	CourseNumber string `gorm:"uniqueIndex;size:20;not null"`
	CourseName   string `gorm:"size:200;not null"`
	Department   string `gorm:"size:100"`
	Description  string `gorm:"type:text"`

	// Relations
	Materials []Material `gorm:"constraint:OnDelete:CASCADE"`
}
