// Package parser normalizes raw field text recovered from listing pages.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bookworm-labs/catalog/models"
)

var ratingWords = map[string]int{
	"One":   1,
	"Two":   2,
	"Three": 3,
	"Four":  4,
	"Five":  5,
}

// ParsePrice strips everything that is not a digit or decimal point from the
// displayed price text and parses the remainder. Missing or unparsable text
// degrades to 0 rather than an error.
func ParsePrice(text string) float64 {
	var cleaned strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' {
			cleaned.WriteRune(r)
		}
	}
	if cleaned.Len() == 0 {
		return 0
	}
	price, err := strconv.ParseFloat(cleaned.String(), 64)
	if err != nil || price < 0 {
		return 0
	}
	return price
}

// RatingFromClass scans a class attribute for the first word-form numeral
// token (One..Five) and maps it to 1..5. Absence or non-recognition yields 0,
// which means "rating signal absent", not "zero stars awarded".
func RatingFromClass(classAttr string) int {
	for _, token := range strings.Fields(classAttr) {
		if rating, ok := ratingWords[token]; ok {
			return rating
		}
	}
	return 0
}

// NormalizeAvailability trims spacing from the availability text.
func NormalizeAvailability(text string) string {
	return strings.TrimSpace(text)
}

// ValidateBook ensures the crawler captured the fields that have no sane
// default. Fields with documented defaults (price, rating, image, availability)
// are range-checked only.
func ValidateBook(b *models.Book) error {
	if b == nil {
		return fmt.Errorf("book is nil")
	}
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("book missing title")
	}
	if strings.TrimSpace(b.BookURL) == "" {
		return fmt.Errorf("book missing URL for %s", b.Title)
	}
	if b.Rating < 0 || b.Rating > 5 {
		return fmt.Errorf("book rating %d out of range for %s", b.Rating, b.Title)
	}
	if b.Price < 0 {
		return fmt.Errorf("book price %.2f negative for %s", b.Price, b.Title)
	}
	if strings.TrimSpace(b.Category) == "" {
		return fmt.Errorf("book missing category for %s", b.Title)
	}
	return nil
}
