package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studyhub/studyhub/src/internal/database/models"
	"github.com/studyhub/studyhub/src/internal/search"
)

var (
	searchLimit    int
	searchCourseID uint
	searchType     string
	searchSort     string
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search course materials",
	Long: `Matches the query against titles, descriptions, file names and
extracted text, and prints ranked results with highlighted snippets.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", search.DefaultLimit, "maximum number of results")
	searchCmd.Flags().UintVar(&searchCourseID, "course", 0, "only materials of this course id")
	searchCmd.Flags().StringVar(&searchType, "type", "", "only materials of this type (summary, exam, slides, notes, link, other)")
	searchCmd.Flags().StringVar(&searchSort, "sort", "relevance", "sort order: relevance, date or rating")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	sortBy, err := search.ParseSortBy(searchSort)
	if err != nil {
		return err
	}
	q := search.SearchQuery{
		Term:   args[0],
		Limit:  searchLimit,
		SortBy: sortBy,
	}
	if searchCourseID != 0 {
		courseID := searchCourseID
		q.CourseID = &courseID
	}
	if searchType != "" {
		materialType, err := models.ParseMaterialType(searchType)
		if err != nil {
			return err
		}
		q.MaterialType = &materialType
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.search.Search(context.Background(), args[0], q)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if resp.TotalResults == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}
	for i, r := range resp.Results {
		fmt.Fprintf(out, "  [%d] %s (%s, %s)\n", i+1, r.Title, r.MaterialType, r.CourseName)
		fmt.Fprintf(out, "      %s: %s\n", r.MatchType, r.Snippet)
	}
	return nil
}
