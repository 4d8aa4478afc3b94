package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/studyhub/studyhub/src/internal/database/models"
	"github.com/studyhub/studyhub/src/internal/metadata"
)

func setupStoreTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.GetAllModels()...))
	return db
}

func strPtr(s string) *string { return &s }

func seedMaterials(t *testing.T, db *gorm.DB) {
	user := &models.User{Username: "dana", Email: "dana@example.com"}
	require.NoError(t, db.Create(user).Error)

	calc := &models.Course{CourseNumber: "0366-1101", CourseName: "Calculus 1"}
	physics := &models.Course{CourseNumber: "0321-1101", CourseName: "Physics 1"}
	require.NoError(t, db.Create(calc).Error)
	require.NoError(t, db.Create(physics).Error)

	materials := []models.Material{
		{Title: "Calculus Notes", MaterialType: models.MaterialTypeNotes, UploaderID: user.ID, CourseID: calc.ID},
		{Title: "Intro", Description: strPtr("calculus basics"), MaterialType: models.MaterialTypeSlides, UploaderID: user.ID, CourseID: calc.ID},
		{Title: "Week 2", FileName: strPtr("mechanics.pdf"), FileContentText: strPtr("newton and calculus"), MaterialType: models.MaterialTypeSummary, UploaderID: user.ID, CourseID: physics.ID},
		{Title: "Orphan", Description: strPtr("calculus without a course"), MaterialType: models.MaterialTypeOther, UploaderID: 999, CourseID: 999},
		{Title: "Unrelated", MaterialType: models.MaterialTypeExam, UploaderID: user.ID, CourseID: physics.ID},
	}
	for i := range materials {
		require.NoError(t, db.Create(&materials[i]).Error)
	}
}

func TestGormStoreCandidates(t *testing.T) {
	db := setupStoreTestDB(t)
	seedMaterials(t, db)
	store := NewGormStore(db)
	ctx := context.Background()

	t.Run("TermAcrossFields", func(t *testing.T) {
		got, err := store.Candidates(ctx, CandidateFilter{Term: "CALCULUS"})
		require.NoError(t, err)
		require.Len(t, got, 4)
		assert.Equal(t, "Calculus Notes", got[0].Title)
		assert.Equal(t, "Calculus 1", got[0].CourseName)
		assert.Equal(t, "dana", got[0].UploaderUsername)
		assert.Equal(t, "calculus basics", got[1].Description)
		assert.Equal(t, "mechanics.pdf", got[2].FileName)
		assert.Equal(t, "newton and calculus", got[2].BodyText)
	})

	t.Run("MissingRelationsAreUnknown", func(t *testing.T) {
		got, err := store.Candidates(ctx, CandidateFilter{Term: "orphan"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Unknown", got[0].CourseName)
		assert.Equal(t, "Unknown", got[0].UploaderUsername)
	})

	t.Run("CourseAndType", func(t *testing.T) {
		var calc models.Course
		require.NoError(t, db.Where("course_name = ?", "Calculus 1").First(&calc).Error)
		slides := models.MaterialTypeSlides

		got, err := store.Candidates(ctx, CandidateFilter{Term: "calculus", CourseID: &calc.ID, MaterialType: &slides})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Intro", got[0].Title)
	})

	t.Run("NoTerm", func(t *testing.T) {
		got, err := store.Candidates(ctx, CandidateFilter{})
		require.NoError(t, err)
		assert.Len(t, got, 5)
	})
}

func TestEngineOverGormStore(t *testing.T) {
	db := setupStoreTestDB(t)
	seedMaterials(t, db)
	engine := NewEngine(NewGormStore(db), nil)

	results, err := engine.Search(context.Background(), SearchQuery{Term: "calculus", Limit: 20})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, MatchTitle, results[0].MatchType)
	assert.Equal(t, MatchDescription, results[1].MatchType)
	assert.Equal(t, MatchDescription, results[2].MatchType)
	assert.Equal(t, MatchContent, results[3].MatchType)
	assert.Equal(t, "newton and **calculus**", results[3].Snippet)
}

func TestEngineOverGormStoreFoldsNonASCIICase(t *testing.T) {
	db := setupStoreTestDB(t)
	seedMaterials(t, db)
	require.NoError(t, db.Create(&models.Material{
		Title: "Élan Vital Über", MaterialType: models.MaterialTypeNotes, UploaderID: 1, CourseID: 1,
	}).Error)
	require.NoError(t, db.Create(&models.Material{
		Title: "סיכום אינפי 1", MaterialType: models.MaterialTypeSummary, UploaderID: 1, CourseID: 1,
	}).Error)

	store := NewGormStore(db)
	engine := NewEngine(store, nil)
	ctx := context.Background()

	for _, term := range []string{"Élan", "élan", "ÉLAN", "über", "ÜBER"} {
		results, err := engine.Search(ctx, SearchQuery{Term: term, Limit: 20})
		require.NoError(t, err)
		require.Len(t, results, 1, term)
		assert.Equal(t, "Élan Vital Über", results[0].Title, term)
	}

	got, err := store.Candidates(ctx, CandidateFilter{Term: "אינפי"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "סיכום אינפי 1", got[0].Title)

	got, err = store.Candidates(ctx, CandidateFilter{Term: "calculus"})
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestGormStoreIngestion(t *testing.T) {
	db := setupStoreTestDB(t)
	seedMaterials(t, db)
	store := NewGormStore(db)
	ctx := context.Background()

	require.NoError(t, db.Model(&models.Material{}).Where("id = ?", 1).
		Updates(map[string]interface{}{"file_path": "uploads/calc.pdf", "file_extension": ".pdf"}).Error)

	target, err := store.IngestTarget(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "uploads/calc.pdf", target.FilePath)
	assert.Equal(t, ".pdf", target.FileExtension)

	_, err = store.IngestTarget(ctx, 404)
	assert.ErrorIs(t, err, ErrMaterialNotFound)

	meta := &metadata.Metadata{PageCount: 9, Topics: []string{"limits", "series"}}
	require.NoError(t, store.SaveExtraction(ctx, 1, "limits and series", meta))

	var m models.Material
	require.NoError(t, db.First(&m, 1).Error)
	require.NotNil(t, m.FileContentText)
	assert.Equal(t, "limits and series", *m.FileContentText)
	require.NotNil(t, m.PageCount)
	assert.Equal(t, 9, *m.PageCount)
	assert.Equal(t, []string{"limits", "series"}, m.TopicList())
	assert.True(t, m.AIProcessed)

	require.NoError(t, store.SaveExtraction(ctx, 1, "", nil))
	var cleared models.Material
	require.NoError(t, db.First(&cleared, 1).Error)
	assert.Nil(t, cleared.FileContentText)
	assert.True(t, cleared.AIProcessed)

	assert.ErrorIs(t, store.SaveExtraction(ctx, 404, "x", nil), ErrMaterialNotFound)
}
