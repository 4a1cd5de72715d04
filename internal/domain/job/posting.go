// Package job holds job postings consumed from the external scraped feed.
// The feed is read-only for this system.
package job

import (
	"context"
	"sort"
	"time"
)

// Posting is a single job listing.
type Posting struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Company      string    `json:"company"`
	Type         string    `json:"type"`
	SalaryRange  string    `json:"salaryRange"`
	Location     string    `json:"location"`
	Requirements []string  `json:"requirements"`
	Link         string    `json:"link"`
	PostedAt     time.Time `json:"postedAt"`
	Source       string    `json:"source"`
}

// Feed pulls postings from the external source, newest first.
type Feed interface {
	List(ctx context.Context) ([]Posting, error)
}

// SortByPostedAtDesc orders postings newest first. Ties keep their input order.
func SortByPostedAtDesc(postings []Posting) {
	sort.SliceStable(postings, func(i, j int) bool {
		return postings[i].PostedAt.After(postings[j].PostedAt)
	})
}

// EmptyFeed is used when no job source is configured.
type EmptyFeed struct{}

// List always returns an empty list.
func (EmptyFeed) List(context.Context) ([]Posting, error) {
	return []Posting{}, nil
}
