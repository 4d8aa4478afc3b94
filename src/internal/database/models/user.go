package models

import (
	"time"
)

// User is the uploader side of a material. Only the fields search needs
// are mapped; the rest of the account lives with the auth collaborator.
type User struct {
	ID        uint   `gorm:"primaryKey"`
	Username  string `gorm:"uniqueIndex;size:50;not null"`
	Email     string `gorm:"uniqueIndex;size:255;not null"`
	FullName  string `gorm:"size:100;not null"`
	IsActive  bool   `gorm:"default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// Relations
	Materials []Material `gorm:"foreignKey:UploaderID;constraint:OnDelete:CASCADE"`
}
