package parser

import (
	"testing"

	"github.com/bookworm-labs/catalog/models"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
	}{
		{name: "with currency symbol", input: "£51.77", expected: 51.77},
		{name: "mojibake currency symbol", input: "Â£26.08", expected: 26.08},
		{name: "with whitespace", input: "  £10.50  ", expected: 10.50},
		{name: "already clean", input: "25.99", expected: 25.99},
		{name: "no decimals", input: "£10", expected: 10},
		{name: "empty string", input: "", expected: 0},
		{name: "no digits", input: "free", expected: 0},
		{name: "multiple dots", input: "1.2.3", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParsePrice(tt.input); got != tt.expected {
				t.Errorf("ParsePrice(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestRatingFromClass(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{name: "one", input: "star-rating One", expected: 1},
		{name: "three", input: "star-rating Three", expected: 3},
		{name: "five", input: "star-rating Five", expected: 5},
		{name: "word first", input: "Four star-rating", expected: 4},
		{name: "first recognized wins", input: "star-rating Two Five", expected: 2},
		{name: "no numeral token", input: "star-rating", expected: 0},
		{name: "lowercase not recognized", input: "star-rating three", expected: 0},
		{name: "empty", input: "", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RatingFromClass(tt.input); got != tt.expected {
				t.Errorf("RatingFromClass(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeAvailability(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "with whitespace", input: "  In stock (22 available)  ", expected: "In stock (22 available)"},
		{name: "no whitespace", input: "Out of stock", expected: "Out of stock"},
		{name: "empty string", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeAvailability(tt.input); got != tt.expected {
				t.Errorf("NormalizeAvailability(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValidateBook(t *testing.T) {
	valid := models.Book{
		Title:        "Test Book",
		Price:        10.0,
		Rating:       5,
		Availability: "In stock",
		Category:     "Fiction",
		BookURL:      "http://example.test/book/1",
	}

	tests := []struct {
		name    string
		mutate  func(*models.Book)
		wantErr bool
	}{
		{name: "valid book", mutate: func(b *models.Book) {}, wantErr: false},
		{name: "defaulted fields are fine", mutate: func(b *models.Book) {
			b.Price = 0
			b.Rating = 0
			b.ImageURL = ""
		}, wantErr: false},
		{name: "missing title", mutate: func(b *models.Book) { b.Title = " " }, wantErr: true},
		{name: "missing url", mutate: func(b *models.Book) { b.BookURL = "" }, wantErr: true},
		{name: "missing category", mutate: func(b *models.Book) { b.Category = "" }, wantErr: true},
		{name: "rating above range", mutate: func(b *models.Book) { b.Rating = 6 }, wantErr: true},
		{name: "negative price", mutate: func(b *models.Book) { b.Price = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book := valid
			tt.mutate(&book)
			err := ValidateBook(&book)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBook() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if err := ValidateBook(nil); err == nil {
		t.Errorf("ValidateBook(nil) should error")
	}
}
