package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"gorm.io/gorm"

	"github.com/studyhub/studyhub/src/internal/database/models"
	"github.com/studyhub/studyhub/src/internal/metadata"
)

const unknownName = "Unknown"

// ErrMaterialNotFound is returned when a material id does not exist
var ErrMaterialNotFound = errors.New("material not found")

// IngestTarget is the file information ingestion needs for one material
type IngestTarget struct {
	ID            uint
	FilePath      string
	FileExtension string
	MaterialType  models.MaterialType
}

// GormStore implements MaterialStore on top of the relational schema
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new gorm-backed material store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Candidates returns materials that may match filter. The term test uses
// LIKE (ILIKE on PostgreSQL), which can over-match; the engine re-checks.
// It is skipped when LIKE would miss case variants of the term.
func (s *GormStore) Candidates(ctx context.Context, filter CandidateFilter) ([]SearchableMaterial, error) {
	query := s.db.WithContext(ctx).Model(&models.Material{})

	if term := strings.TrimSpace(filter.Term); term != "" && s.likeFoldsCase(term) {
		op := "LIKE"
		if s.db.Dialector.Name() == "postgres" {
			op = "ILIKE"
		}
		pattern := "%" + term + "%"
		query = query.Where(
			fmt.Sprintf("title %[1]s ? OR description %[1]s ? OR file_name %[1]s ? OR file_content_text %[1]s ?", op),
			pattern, pattern, pattern, pattern,
		)
	}

	if filter.CourseID != nil {
		query = query.Where("course_id = ?", *filter.CourseID)
	}
	if filter.MaterialType != nil {
		query = query.Where("material_type = ?", *filter.MaterialType)
	}

	var materials []models.Material
	if err := query.Preload("Course").Preload("Uploader").Order("id ASC").Find(&materials).Error; err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}

	out := make([]SearchableMaterial, len(materials))
	for i := range materials {
		out[i] = toSearchable(&materials[i])
	}
	return out, nil
}

func toSearchable(m *models.Material) SearchableMaterial {
	sm := SearchableMaterial{
		ID:               m.ID,
		Title:            m.Title,
		Description:      deref(m.Description),
		FileName:         deref(m.FileName),
		BodyText:         deref(m.FileContentText),
		CourseID:         m.CourseID,
		CourseName:       unknownName,
		UploaderUsername: unknownName,
		MaterialType:     m.MaterialType,
		CreatedAt:        m.CreatedAt,
		AverageRating:    m.AverageRating,
	}
	if m.Course != nil {
		sm.CourseName = m.Course.CourseName
	}
	if m.Uploader != nil {
		sm.UploaderUsername = m.Uploader.Username
	}
	return sm
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// likeFoldsCase reports whether LIKE matches term regardless of case.
// SQLite folds ASCII letters only.
func (s *GormStore) likeFoldsCase(term string) bool {
	if s.db.Dialector.Name() != "sqlite" {
		return true
	}
	for _, r := range term {
		if r > unicode.MaxASCII && unicode.SimpleFold(r) != r {
			return false
		}
	}
	return true
}

// IngestTarget loads the stored file location of a material.
func (s *GormStore) IngestTarget(ctx context.Context, id uint) (*IngestTarget, error) {
	var m models.Material
	err := s.db.WithContext(ctx).
		Select("id", "file_path", "file_extension", "material_type").
		First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrMaterialNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load material %d: %w", id, err)
	}
	return &IngestTarget{
		ID:            m.ID,
		FilePath:      m.FilePath,
		FileExtension: m.FileExtension,
		MaterialType:  m.MaterialType,
	}, nil
}

// SaveExtraction stores extracted body text and, when meta is non-nil, the
// AI metadata. An empty text clears the stored body.
func (s *GormStore) SaveExtraction(ctx context.Context, id uint, text string, meta *metadata.Metadata) error {
	updates := map[string]interface{}{
		"file_content_text": nil,
	}
	if text != "" {
		updates["file_content_text"] = text
	}

	if meta != nil {
		m := models.Material{}
		if err := m.SetTopics(meta.Topics); err != nil {
			return err
		}
		updates["page_count"] = meta.PageCount
		updates["topics"] = m.Topics
		updates["ai_processed"] = true
	}

	result := s.db.WithContext(ctx).Model(&models.Material{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to save extraction for material %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrMaterialNotFound, id)
	}
	return nil
}
