package pipeline

import (
	"fmt"

	"github.com/bookworm-labs/catalog/models"
)

// DualWriter persists the dataset to both the flat CSV store and a JSONL
// export in one run.
type DualWriter struct {
	csvWriter  *CSVWriter
	jsonWriter *JSONWriter
}

// NewDualWriter creates a writer targeting both output files.
func NewDualWriter(csvPath, jsonPath string) (*DualWriter, error) {
	csvWriter, err := NewCSVWriter(csvPath)
	if err != nil {
		return nil, fmt.Errorf("create CSV writer: %w", err)
	}
	jsonWriter, err := NewJSONWriter(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("create JSON writer: %w", err)
	}
	return &DualWriter{
		csvWriter:  csvWriter,
		jsonWriter: jsonWriter,
	}, nil
}

// WriteAll writes the dataset to both targets. Each target is replaced
// atomically on its own; the CSV store is written first since it is the
// contract the query service loads.
func (dw *DualWriter) WriteAll(books []models.Book) error {
	if err := dw.csvWriter.WriteAll(books); err != nil {
		return fmt.Errorf("CSV write failed: %w", err)
	}
	if err := dw.jsonWriter.WriteAll(books); err != nil {
		return fmt.Errorf("JSON write failed: %w", err)
	}
	return nil
}

// Close closes both writers.
func (dw *DualWriter) Close() error {
	if err := dw.csvWriter.Close(); err != nil {
		return err
	}
	return dw.jsonWriter.Close()
}

// Validate validates both output files.
func (dw *DualWriter) Validate() error {
	if err := dw.csvWriter.Validate(); err != nil {
		return fmt.Errorf("CSV validation failed: %w", err)
	}
	if err := dw.jsonWriter.Validate(); err != nil {
		return fmt.Errorf("JSON validation failed: %w", err)
	}
	return nil
}
