// Package metadata derives page counts and topics from extracted document text.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidResponse is returned when a model reply lacks the expected fields
var ErrInvalidResponse = errors.New("invalid metadata response")

// Metadata is what an extractor derives from a document
type Metadata struct {
	PageCount int      `json:"page_count"`
	Topics    []string `json:"topics"`
}

// MetadataExtractor derives Metadata from document text.
type MetadataExtractor interface {
	Extract(ctx context.Context, text string) (*Metadata, error)
	Enabled() bool
}

// NoopExtractor is used when AI extraction is disabled or unconfigured.
type NoopExtractor struct{}

// Extract always returns nil metadata
func (NoopExtractor) Extract(ctx context.Context, text string) (*Metadata, error) {
	return nil, nil
}

// Enabled always returns false
func (NoopExtractor) Enabled() bool { return false }

// ParseResponse decodes a model reply. Markdown code fences around the JSON
// are removed; both page_count and topics must be present. A topics value
// that is not a list becomes an empty list.
func ParseResponse(reply string) (*Metadata, error) {
	body := stripFences(strings.TrimSpace(reply))

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse metadata response as JSON: %w", err)
	}

	rawCount, hasCount := raw["page_count"]
	rawTopics, hasTopics := raw["topics"]
	if !hasCount || !hasTopics {
		return nil, ErrInvalidResponse
	}

	count, err := parsePageCount(rawCount)
	if err != nil {
		return nil, err
	}

	topics := []string{}
	var list []string
	if err := json.Unmarshal(rawTopics, &list); err == nil && list != nil {
		topics = list
	}

	return &Metadata{PageCount: count, Topics: topics}, nil
}

// stripFences drops the first and last lines of a fenced reply.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return ""
	}
	return strings.Join(lines[1:len(lines)-1], "\n")
}

func parsePageCount(raw json.RawMessage) (int, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		if f, err := n.Float64(); err == nil {
			return int(f), nil
		}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, nil
		}
	}

	return 0, fmt.Errorf("%w: page_count %s is not a number", ErrInvalidResponse, string(raw))
}
