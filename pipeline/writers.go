package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bookworm-labs/catalog/models"
)

// catalogHeader is the flat store's column contract. Order and names are
// consumed by ReadCatalog and by the query service's loader.
var catalogHeader = []string{"id", "title", "price", "rating", "availability", "category", "image_url", "book_url"}

// OutputWriter persists one complete dataset. WriteAll must be atomic: the
// destination either holds the previous dataset or the whole new one.
type OutputWriter interface {
	WriteAll(books []models.Book) error
	Close() error
	Validate() error
}

// CSVWriter writes the dataset to the flat CSV store.
type CSVWriter struct {
	path  string
	wrote bool
}

// NewCSVWriter prepares a CSV writer targeting path.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return &CSVWriter{path: path}, nil
}

// WriteAll writes the whole dataset to a temporary file and renames it over
// the destination, so readers never observe a half-written store.
func (cw *CSVWriter) WriteAll(books []models.Book) error {
	tmp, err := os.CreateTemp(filepath.Dir(cw.path), filepath.Base(cw.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp csv file: %w", err)
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	if err := writer.Write(catalogHeader); err != nil {
		tmp.Close()
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := range books {
		book := &books[i]
		record := []string{
			strconv.Itoa(book.ID),
			book.Title,
			strconv.FormatFloat(book.Price, 'f', 2, 64),
			strconv.Itoa(book.Rating),
			book.Availability,
			book.Category,
			book.ImageURL,
			book.BookURL,
		}
		if err := writer.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush csv records: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync csv file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close csv file: %w", err)
	}
	if err := os.Rename(tmp.Name(), cw.path); err != nil {
		return fmt.Errorf("replace csv file: %w", err)
	}
	cw.wrote = true
	return nil
}

// Close is a no-op; WriteAll leaves no handle open.
func (cw *CSVWriter) Close() error {
	return nil
}

// Validate ensures a dataset was written and has content besides the header.
func (cw *CSVWriter) Validate() error {
	if !cw.wrote {
		return fmt.Errorf("csv dataset was never written")
	}
	info, err := os.Stat(cw.path)
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// JSONWriter writes the dataset as newline-delimited JSON, for consumers
// that want a richer export than the flat store.
type JSONWriter struct {
	path  string
	wrote bool
}

// NewJSONWriter prepares a JSONL writer targeting path.
func NewJSONWriter(path string) (*JSONWriter, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return &JSONWriter{path: path}, nil
}

// WriteAll writes the whole dataset atomically in JSONL format.
func (jw *JSONWriter) WriteAll(books []models.Book) error {
	tmp, err := os.CreateTemp(filepath.Dir(jw.path), filepath.Base(jw.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp json file: %w", err)
	}
	defer os.Remove(tmp.Name())

	buffer := bufio.NewWriter(tmp)
	encoder := json.NewEncoder(buffer)
	for i := range books {
		if err := encoder.Encode(&books[i]); err != nil {
			tmp.Close()
			return fmt.Errorf("encode json record: %w", err)
		}
	}
	if err := buffer.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush json writer: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync json file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close json file: %w", err)
	}
	if err := os.Rename(tmp.Name(), jw.path); err != nil {
		return fmt.Errorf("replace json file: %w", err)
	}
	jw.wrote = true
	return nil
}

// Close is a no-op; WriteAll leaves no handle open.
func (jw *JSONWriter) Close() error {
	return nil
}

// Validate ensures a dataset was written.
func (jw *JSONWriter) Validate() error {
	if !jw.wrote {
		return fmt.Errorf("json dataset was never written")
	}
	info, err := os.Stat(jw.path)
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
