package search

import (
	"fmt"
	"sort"
	"strings"
)

// MatchType names the field a result's snippet was drawn from
type MatchType string

const (
	MatchTitle       MatchType = "title"
	MatchDescription MatchType = "description"
	MatchFilename    MatchType = "filename"
	MatchContent     MatchType = "content"
)

// SortBy selects the ordering of search results
type SortBy string

const (
	SortRelevance SortBy = "relevance"
	SortDate      SortBy = "date"
	SortRating    SortBy = "rating"
)

// ParseSortBy validates a raw sort value; empty means relevance.
func ParseSortBy(s string) (SortBy, error) {
	switch SortBy(s) {
	case "", SortRelevance:
		return SortRelevance, nil
	case SortDate, SortRating:
		return SortBy(s), nil
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

// Field is one row of the field priority table.
type Field struct {
	Match         MatchType
	Weight        int
	ContextLength int
}

// FieldPriority is ordered from most to least significant. The order decides
// which field supplies the snippet; the weights feed the relevance score.
var FieldPriority = []Field{
	{Match: MatchTitle, Weight: 10, ContextLength: ShortFieldContext},
	{Match: MatchDescription, Weight: 5, ContextLength: LongFieldContext},
	{Match: MatchFilename, Weight: 3, ContextLength: ShortFieldContext},
	{Match: MatchContent, Weight: 1, ContextLength: LongFieldContext},
}

// FieldValue returns the text of the field identified by t.
func (m *SearchableMaterial) FieldValue(t MatchType) string {
	switch t {
	case MatchTitle:
		return m.Title
	case MatchDescription:
		return m.Description
	case MatchFilename:
		return m.FileName
	case MatchContent:
		return m.BodyText
	}
	return ""
}

func containsFold(text, lowerTerm string) bool {
	return text != "" && strings.Contains(strings.ToLower(text), lowerTerm)
}

// Matches reports whether any searchable field contains term.
func Matches(m *SearchableMaterial, term string) bool {
	lower := strings.ToLower(term)
	for _, f := range FieldPriority {
		if containsFold(m.FieldValue(f.Match), lower) {
			return true
		}
	}
	return false
}

// Score sums the weights of every field containing term. Fields are tested
// independently, so a title and body hit scores 11.
func Score(m *SearchableMaterial, term string) int {
	lower := strings.ToLower(term)
	score := 0
	for _, f := range FieldPriority {
		if containsFold(m.FieldValue(f.Match), lower) {
			score += f.Weight
		}
	}
	return score
}

// SelectMatch walks FieldPriority in order and stops at the first field
// containing term.
func SelectMatch(m *SearchableMaterial, term string) (Field, bool) {
	lower := strings.ToLower(term)
	for _, f := range FieldPriority {
		if containsFold(m.FieldValue(f.Match), lower) {
			return f, true
		}
	}
	return Field{}, false
}

// Highlight picks the match type and snippet shown for a material.
func Highlight(m *SearchableMaterial, term string) (MatchType, string) {
	if f, ok := SelectMatch(m, term); ok {
		if snippet := GenerateSnippet(m.FieldValue(f.Match), term, f.ContextLength); snippet != "" {
			return f.Match, snippet
		}
		return f.Match, fallbackSnippet(m)
	}
	return MatchContent, fallbackSnippet(m)
}

func fallbackSnippet(m *SearchableMaterial) string {
	source := m.Description
	if source == "" {
		source = m.Title
	}
	return truncate(source, LongFieldContext)
}

// Rank orders materials in place. Sorting is stable so ties keep the order
// the store returned them in.
func Rank(materials []SearchableMaterial, term string, sortBy SortBy) {
	switch sortBy {
	case SortDate:
		sort.SliceStable(materials, func(i, j int) bool {
			return materials[i].CreatedAt.After(materials[j].CreatedAt)
		})
	case SortRating:
		sort.SliceStable(materials, func(i, j int) bool {
			return materials[i].AverageRating > materials[j].AverageRating
		})
	default:
		type scored struct {
			material SearchableMaterial
			score    int
		}
		ranked := make([]scored, len(materials))
		for i := range materials {
			ranked[i] = scored{material: materials[i], score: Score(&materials[i], term)}
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].score > ranked[j].score
		})
		for i := range ranked {
			materials[i] = ranked[i].material
		}
	}
}
