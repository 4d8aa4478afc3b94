package search

import (
	"context"
	"time"

	"github.com/studyhub/studyhub/src/internal/database/models"
)

// SearchableMaterial is the read-only projection of a material that the
// engine scans. Empty strings stand for absent optional fields.
type SearchableMaterial struct {
	ID               uint
	Title            string
	Description      string
	FileName         string
	BodyText         string
	CourseID         uint
	CourseName       string
	UploaderUsername string
	MaterialType     models.MaterialType
	CreatedAt        time.Time
	AverageRating    float64
}

// SearchQuery is the input of a material search
type SearchQuery struct {
	Term         string
	Limit        int
	CourseID     *uint
	MaterialType *models.MaterialType
	SortBy       SortBy
}

// SearchResult is a single ranked hit with its highlighted snippet
type SearchResult struct {
	MaterialID       uint                `json:"material_id"`
	Title            string              `json:"title"`
	MaterialType     models.MaterialType `json:"material_type"`
	CourseName       string              `json:"course_name"`
	CourseID         uint                `json:"course_id"`
	UploaderUsername string              `json:"uploader_username"`
	Snippet          string              `json:"snippet"`
	MatchType        MatchType           `json:"match_type"`
	CreatedAt        time.Time           `json:"created_at"`
}

// SearchResponse echoes the query next to its results
type SearchResponse struct {
	Query        string         `json:"query"`
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`
}

// CandidateFilter narrows what a MaterialStore returns. Stores may return a
// superset; the engine re-applies every condition.
type CandidateFilter struct {
	Term         string
	CourseID     *uint
	MaterialType *models.MaterialType
}

// MaterialStore provides material snapshots with course and uploader names
// already joined in.
type MaterialStore interface {
	Candidates(ctx context.Context, filter CandidateFilter) ([]SearchableMaterial, error)
}

const (
	// DefaultLimit is used when a query does not set one
	DefaultLimit = 5
	// MaxLimit is the largest limit accepted at the HTTP boundary
	MaxLimit     = 20
)
