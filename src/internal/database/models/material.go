package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// MaterialType is the kind of uploaded study material
type MaterialType string

const (
	MaterialTypeSummary MaterialType = "summary"
	MaterialTypeExam    MaterialType = "exam"
	MaterialTypeSlides  MaterialType = "slides"
	MaterialTypeNotes   MaterialType = "notes"
	MaterialTypeLink    MaterialType = "link"
	MaterialTypeOther   MaterialType = "other"
)

// MaterialTypes lists every accepted material type in display order.
var MaterialTypes = []MaterialType{
	MaterialTypeSummary,
	MaterialTypeExam,
	MaterialTypeSlides,
	MaterialTypeNotes,
	MaterialTypeLink,
	MaterialTypeOther,
}

// ParseMaterialType validates a raw material type value.
func ParseMaterialType(s string) (MaterialType, error) {
	for _, t := range MaterialTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown material type %q", s)
}

// Material is an uploaded study material (file or link).
type Material struct {
	ID           uint         `gorm:"primaryKey"`
	Title        string       `gorm:"size:200;not null;index"`
	Description  *string      `gorm:"type:text"`
	MaterialType MaterialType `gorm:"size:20;not null;index"`

	// File information
	FilePath      string  `gorm:"size:500"`
	FileName      *string `gorm:"size:255"`
	FileSize      int64   `gorm:"default:0"`
	FileExtension string  `gorm:"size:10"`
	ExternalURL   string  `gorm:"size:500"`

	// Extracted text and AI metadata, written by ingestion
	FileContentText *string        `gorm:"type:text"`
	PageCount       *int
	Topics          datatypes.JSON `gorm:"type:json"`
	AIProcessed     bool           `gorm:"default:false;not null"`

	DownloadCount int     `gorm:"default:0;not null"`
	AverageRating float64 `gorm:"default:0;not null;index"`
	RatingCount   int     `gorm:"default:0;not null"`

	UploaderID uint      `gorm:"not null;index"`
	CourseID   uint      `gorm:"not null;index"`
	CreatedAt  time.Time `gorm:"index"`
	UpdatedAt  time.Time

	// Relations
	Uploader *User   `gorm:"foreignKey:UploaderID"`
	Course   *Course `gorm:"foreignKey:CourseID"`
}

// TopicList decodes the stored topics column.
func (m *Material) TopicList() []string {
	if len(m.Topics) == 0 {
		return nil
	}
	var topics []string
	if err := json.Unmarshal(m.Topics, &topics); err != nil {
		return nil
	}
	return topics
}

// SetTopics encodes topics into the JSON column.
func (m *Material) SetTopics(topics []string) error {
	if topics == nil {
		topics = []string{}
	}
	raw, err := json.Marshal(topics)
	if err != nil {
		return fmt.Errorf("failed to encode topics: %w", err)
	}
	m.Topics = datatypes.JSON(raw)
	return nil
}
