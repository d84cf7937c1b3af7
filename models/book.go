// Package models defines the catalog data structures shared by the crawler,
// the serializer, and the query store.
package models

import "time"

// Book is one catalog record. IDs are crawl-order sequence numbers assigned
// at extraction time (1-based); they are stable for the lifetime of one
// ingestion run but not across runs.
type Book struct {
	ID           int     `csv:"id" json:"id"`
	Title        string  `csv:"title" json:"title"`
	Price        float64 `csv:"price" json:"price"`
	Rating       int     `csv:"rating" json:"rating"`
	Availability string  `csv:"availability" json:"availability"`
	Category     string  `csv:"category" json:"category"`
	ImageURL     string  `csv:"image_url" json:"image_url"`
	BookURL      string  `csv:"book_url" json:"book_url"`
}

// Summary is the reduced projection of Book used in list, search, and
// ranking results.
type Summary struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Price        float64 `json:"price"`
	Rating       int     `json:"rating"`
	Category     string  `json:"category"`
	Availability string  `json:"availability"`
}

// Summarize reduces a Book to its Summary projection.
func (b Book) Summarize() Summary {
	return Summary{
		ID:           b.ID,
		Title:        b.Title,
		Price:        b.Price,
		Rating:       b.Rating,
		Category:     b.Category,
		Availability: b.Availability,
	}
}

// Category pairs a distinct category label with its record count.
type Category struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// PriceRange holds inclusive price bounds.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// StatsOverview aggregates the whole dataset.
type StatsOverview struct {
	TotalBooks         int         `json:"total_books"`
	TotalCategories    int         `json:"total_categories"`
	AveragePrice       float64     `json:"average_price"`
	AverageRating      float64     `json:"average_rating"`
	PriceRange         PriceRange  `json:"price_range"`
	RatingDistribution map[int]int `json:"rating_distribution"`
}

// CategoryStats aggregates one category's subset.
type CategoryStats struct {
	Category      string     `json:"category"`
	TotalBooks    int        `json:"total_books"`
	AveragePrice  float64    `json:"average_price"`
	AverageRating float64    `json:"average_rating"`
	PriceRange    PriceRange `json:"price_range"`
}

// HealthStatus is the API health payload.
type HealthStatus struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	TotalBooks int    `json:"total_books"`
	Version    string `json:"version"`
}

// CrawlResult holds the overall outcome of one ingestion run.
type CrawlResult struct {
	RunID        string
	StartTime    time.Time
	EndTime      time.Time
	TotalCount   int
	PageCount    int
	RequestCount int
	ErrorCount   int
	RetryCount   int
	ErrorsByType map[string]int
}
