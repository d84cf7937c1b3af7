package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/bookworm-labs/catalog/models"
)

// ReadCatalog loads the flat CSV store written by a previous ingestion run.
// Malformed rows are skipped with a diagnostic rather than failing the load;
// a missing or unreadable file is reported to the caller, which decides how
// degraded it is willing to run.
func ReadCatalog(path string) ([]models.Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	if len(header) != len(catalogHeader) || header[0] != catalogHeader[0] {
		return nil, fmt.Errorf("unexpected catalog header: %v", header)
	}

	var books []models.Book
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			slog.Warn("skipping malformed catalog row", slog.Int("line", line), slog.Any("error", err))
			continue
		}

		book, err := parseRecord(record)
		if err != nil {
			slog.Warn("skipping malformed catalog row", slog.Int("line", line), slog.Any("error", err))
			continue
		}
		books = append(books, book)
	}
	return books, nil
}

func parseRecord(record []string) (models.Book, error) {
	if len(record) != len(catalogHeader) {
		return models.Book{}, fmt.Errorf("expected %d columns, got %d", len(catalogHeader), len(record))
	}

	id, err := strconv.Atoi(record[0])
	if err != nil {
		return models.Book{}, fmt.Errorf("parse id %q: %w", record[0], err)
	}
	price, err := strconv.ParseFloat(record[2], 64)
	if err != nil {
		return models.Book{}, fmt.Errorf("parse price %q: %w", record[2], err)
	}
	rating, err := strconv.Atoi(record[3])
	if err != nil {
		return models.Book{}, fmt.Errorf("parse rating %q: %w", record[3], err)
	}

	return models.Book{
		ID:           id,
		Title:        record[1],
		Price:        price,
		Rating:       rating,
		Availability: record[4],
		Category:     record[5],
		ImageURL:     record[6],
		BookURL:      record[7],
	}, nil
}
