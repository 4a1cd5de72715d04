package jobfeed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/eduhub/eduhub-dashboard/internal/domain/job"
)

// ══════════════════════════════════════════════════════════════════════════════
// WIRE FORMAT
// ══════════════════════════════════════════════════════════════════════════════

// PostingDTO is a job posting as returned by the scraped feed.
type PostingDTO struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Company      string          `json:"company"`
	Type         string          `json:"type"`
	SalaryRange  string          `json:"salaryRange"`
	Location     string          `json:"location"`
	Requirements json.RawMessage `json:"requirements"`
	Link         string          `json:"link"`
	PostedAt     string          `json:"postedAt"`
	Source       string          `json:"source"`
}

// envelope is the wrapped response shape {"data": [...]}.
type envelope struct {
	Data []PostingDTO `json:"data"`
}

// decodePostings accepts either a bare JSON array or {"data": [...]}.
func decodePostings(body []byte) ([]PostingDTO, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return []PostingDTO{}, nil
	}

	if trimmed[0] == '[' {
		var list []PostingDTO
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode postings: %w", err)
		}
		return list, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode postings envelope: %w", err)
	}
	if env.Data == nil {
		return []PostingDTO{}, nil
	}
	return env.Data, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MAPPING
// ══════════════════════════════════════════════════════════════════════════════

var postedAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// toDomain converts a DTO. Unparseable dates become the zero time and sort last.
func (d PostingDTO) toDomain(defaultSource string) job.Posting {
	p := job.Posting{
		ID:           strings.TrimSpace(d.ID),
		Title:        strings.TrimSpace(d.Title),
		Company:      strings.TrimSpace(d.Company),
		Type:         d.Type,
		SalaryRange:  d.SalaryRange,
		Location:     d.Location,
		Requirements: parseRequirements(d.Requirements),
		Link:         d.Link,
		PostedAt:     parsePostedAt(d.PostedAt),
		Source:       d.Source,
	}
	if p.Source == "" {
		p.Source = defaultSource
	}
	return p
}

func parsePostedAt(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range postedAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// parseRequirements accepts a JSON array of strings or one comma-separated string.
func parseRequirements(raw json.RawMessage) []string {
	out := []string{}
	if len(raw) == 0 || string(raw) == "null" {
		return out
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, r := range list {
			if r = strings.TrimSpace(r); r != "" {
				out = append(out, r)
			}
		}
		return out
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		for _, r := range strings.Split(single, ",") {
			if r = strings.TrimSpace(r); r != "" {
				out = append(out, r)
			}
		}
	}
	return out
}

func mapPostings(dtos []PostingDTO, defaultSource string) []job.Posting {
	postings := make([]job.Posting, 0, len(dtos))
	for _, d := range dtos {
		postings = append(postings, d.toDomain(defaultSource))
	}
	job.SortByPostedAtDesc(postings)
	return postings
}
