// Package store serves read queries over the ingested catalog.
//
// The dataset is immutable once loaded; the only mutation point is Reload,
// which swaps the whole dataset atomically so concurrent readers observe
// either the fully-old or the fully-new catalog, never a mix.
package store

import (
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/bookworm-labs/catalog/models"
	"github.com/bookworm-labs/catalog/pipeline"
)

// Store answers paginated, filtered, and aggregated read queries over an
// in-memory catalog. Every operation is total: well-typed input never
// produces an error, and "nothing matched" is an empty result.
type Store struct {
	data atomic.Pointer[dataset]
}

type dataset struct {
	books []models.Book
	byID  map[int]int

	// categoryOrder preserves first-seen (ingestion) order; it is the
	// documented tie-break for equal category counts.
	categoryOrder []string
	categoryCount map[string]int
}

func buildDataset(books []models.Book) *dataset {
	d := &dataset{
		books:         books,
		byID:          make(map[int]int, len(books)),
		categoryCount: make(map[string]int),
	}
	for i := range books {
		d.byID[books[i].ID] = i
		category := books[i].Category
		if _, seen := d.categoryCount[category]; !seen {
			d.categoryOrder = append(d.categoryOrder, category)
		}
		d.categoryCount[category]++
	}
	return d
}

// New builds a store over an already-loaded dataset, in the given order.
func New(books []models.Book) *Store {
	s := &Store{}
	s.data.Store(buildDataset(books))
	return s
}

// Open loads the flat store at path. A missing or unreadable file yields a
// usable empty store: the service runs degraded rather than failing to start.
func Open(path string) *Store {
	books, err := pipeline.ReadCatalog(path)
	if err != nil {
		slog.Warn("catalog unavailable, serving empty dataset; run the scraper to ingest",
			slog.String("path", path),
			slog.Any("error", err),
		)
		return New(nil)
	}
	slog.Info("catalog loaded", slog.String("path", path), slog.Int("books", len(books)))
	return New(books)
}

// Reload replaces the dataset from path in one atomic swap. On failure the
// current dataset stays in place.
func (s *Store) Reload(path string) error {
	books, err := pipeline.ReadCatalog(path)
	if err != nil {
		return err
	}
	s.data.Store(buildDataset(books))
	slog.Info("catalog reloaded", slog.String("path", path), slog.Int("books", len(books)))
	return nil
}

// Count returns the dataset size.
func (s *Store) Count() int {
	return len(s.data.Load().books)
}

// List returns the 1-indexed page of the dataset in load order. Out-of-range
// pages yield an empty result.
func (s *Store) List(page, limit int) []models.Summary {
	d := s.data.Load()
	return summarize(slicePage(d.books, page, limit))
}

// GetByID returns the record with the given id, or ok=false when absent.
func (s *Store) GetByID(id int) (models.Book, bool) {
	d := s.data.Load()
	idx, ok := d.byID[id]
	if !ok {
		return models.Book{}, false
	}
	return d.books[idx], true
}

// Search returns records whose title and/or category contain the given
// filters case-insensitively. Both filters must match when both are given.
// The boundary guarantees at least one filter is present.
func (s *Store) Search(title, category string, page, limit int) []models.Summary {
	d := s.data.Load()

	title = strings.ToLower(title)
	category = strings.ToLower(category)

	var matched []models.Book
	for i := range d.books {
		if title != "" && !strings.Contains(strings.ToLower(d.books[i].Title), title) {
			continue
		}
		if category != "" && !strings.Contains(strings.ToLower(d.books[i].Category), category) {
			continue
		}
		matched = append(matched, d.books[i])
	}
	return summarize(slicePage(matched, page, limit))
}

// Categories returns every distinct category with its record count, ordered
// by descending count; ties keep first-seen ingestion order.
func (s *Store) Categories() []models.Category {
	d := s.data.Load()

	out := make([]models.Category, 0, len(d.categoryOrder))
	for _, name := range d.categoryOrder {
		out = append(out, models.Category{Name: name, Count: d.categoryCount[name]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

// Overview computes dataset-wide statistics. An empty dataset yields zero
// values and an empty rating distribution.
func (s *Store) Overview() models.StatsOverview {
	d := s.data.Load()

	overview := models.StatsOverview{
		RatingDistribution: make(map[int]int),
	}
	if len(d.books) == 0 {
		return overview
	}

	var priceSum, ratingSum float64
	minPrice, maxPrice := d.books[0].Price, d.books[0].Price
	for i := range d.books {
		book := &d.books[i]
		priceSum += book.Price
		ratingSum += float64(book.Rating)
		if book.Price < minPrice {
			minPrice = book.Price
		}
		if book.Price > maxPrice {
			maxPrice = book.Price
		}
		overview.RatingDistribution[book.Rating]++
	}

	n := float64(len(d.books))
	overview.TotalBooks = len(d.books)
	overview.TotalCategories = len(d.categoryOrder)
	overview.AveragePrice = priceSum / n
	overview.AverageRating = ratingSum / n
	overview.PriceRange = models.PriceRange{Min: minPrice, Max: maxPrice}
	return overview
}

// CategoryStats computes per-category aggregates, one entry per distinct
// category in first-seen order.
func (s *Store) CategoryStats() []models.CategoryStats {
	d := s.data.Load()

	out := make([]models.CategoryStats, 0, len(d.categoryOrder))
	for _, name := range d.categoryOrder {
		var priceSum, ratingSum float64
		var count int
		minPrice, maxPrice := 0.0, 0.0
		for i := range d.books {
			book := &d.books[i]
			if book.Category != name {
				continue
			}
			if count == 0 {
				minPrice, maxPrice = book.Price, book.Price
			}
			count++
			priceSum += book.Price
			ratingSum += float64(book.Rating)
			if book.Price < minPrice {
				minPrice = book.Price
			}
			if book.Price > maxPrice {
				maxPrice = book.Price
			}
		}
		if count == 0 {
			continue
		}
		out = append(out, models.CategoryStats{
			Category:      name,
			TotalBooks:    count,
			AveragePrice:  priceSum / float64(count),
			AverageRating: ratingSum / float64(count),
			PriceRange:    models.PriceRange{Min: minPrice, Max: maxPrice},
		})
	}
	return out
}

// TopRated returns up to limit records under a total order: rating
// descending, then price ascending (cheaper wins the tie), then id ascending.
// The order is deterministic across calls on an unchanged dataset.
func (s *Store) TopRated(limit int) []models.Summary {
	d := s.data.Load()
	if limit <= 0 {
		return []models.Summary{}
	}

	ranked := make([]models.Book, len(d.books))
	copy(ranked, d.books)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Rating != ranked[j].Rating {
			return ranked[i].Rating > ranked[j].Rating
		}
		if ranked[i].Price != ranked[j].Price {
			return ranked[i].Price < ranked[j].Price
		}
		return ranked[i].ID < ranked[j].ID
	})

	if limit > len(ranked) {
		limit = len(ranked)
	}
	return summarize(ranked[:limit])
}

// ByPriceRange returns records with min <= price <= max, paginated in load
// order. The boundary guarantees min <= max.
func (s *Store) ByPriceRange(min, max float64, page, limit int) []models.Summary {
	d := s.data.Load()

	var matched []models.Book
	for i := range d.books {
		if d.books[i].Price >= min && d.books[i].Price <= max {
			matched = append(matched, d.books[i])
		}
	}
	return summarize(slicePage(matched, page, limit))
}

// slicePage returns the contiguous [(page-1)*limit, page*limit) slice of
// books, empty when out of range.
func slicePage(books []models.Book, page, limit int) []models.Book {
	if page < 1 || limit < 1 {
		return nil
	}
	start := (page - 1) * limit
	if start >= len(books) {
		return nil
	}
	end := start + limit
	if end > len(books) {
		end = len(books)
	}
	return books[start:end]
}

func summarize(books []models.Book) []models.Summary {
	out := make([]models.Summary, 0, len(books))
	for i := range books {
		out = append(out, books[i].Summarize())
	}
	return out
}
