package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/mariemby1/data-scraping/store"
)

// Export file base names, one per table.
const (
	categoriesFile = "categories"
	statusFile     = "status"
	booksFile      = "books"
)

// tableFiles lists the exported tables in load order.
var tableFiles = []string{categoriesFile, statusFile, booksFile}

// rowCounts returns the number of rows per exported table.
func rowCounts(tables *store.Tables) map[string]int {
	return map[string]int{
		categoriesFile: len(tables.Categories),
		statusFile:     len(tables.Statuses),
		booksFile:      len(tables.Books),
	}
}

// checkCounts compares the rows found in each file with the rows written.
func checkCounts(format string, want map[string]int, count func(name string) (int, error)) error {
	for _, name := range tableFiles {
		got, err := count(name)
		if err != nil {
			return fmt.Errorf("read %s file %s: %w", format, name, err)
		}
		if got != want[name] {
			return fmt.Errorf("%s file %s has %d rows, want %d", format, name, got, want[name])
		}
	}
	return nil
}

// CSVWriter writes each table to its own CSV file inside a directory.
type CSVWriter struct {
	files   map[string]*os.File
	writers map[string]*csv.Writer
	written map[string]int
	mu      sync.Mutex
}

var csvHeaders = map[string][]string{
	categoriesFile: {"id", "title"},
	statusFile:     {"id", "status"},
	booksFile:      {"id", "id_categorie", "id_status", "ratings", "title", "price"},
}

// NewCSVWriter creates the three CSV files and writes their header rows.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %q: %w", dir, err)
	}

	cw := &CSVWriter{
		files:   make(map[string]*os.File, len(csvHeaders)),
		writers: make(map[string]*csv.Writer, len(csvHeaders)),
		written: make(map[string]int, len(csvHeaders)),
	}
	for name, header := range csvHeaders {
		f, err := os.Create(filepath.Join(dir, name+".csv"))
		if err != nil {
			cw.Close()
			return nil, fmt.Errorf("create csv file: %w", err)
		}
		cw.files[name] = f

		writer := csv.NewWriter(f)
		cw.writers[name] = writer
		if err := writer.Write(header); err != nil {
			cw.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			cw.Close()
			return nil, fmt.Errorf("flush csv header: %w", err)
		}
	}
	return cw, nil
}

// Write appends every row of the tables.
func (cw *CSVWriter) Write(tables *store.Tables) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, c := range tables.Categories {
		if err := cw.writers[categoriesFile].Write([]string{strconv.Itoa(c.ID), c.Title}); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	for _, s := range tables.Statuses {
		if err := cw.writers[statusFile].Write([]string{strconv.Itoa(s.ID), s.Status}); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	for _, b := range tables.Books {
		record := []string{
			strconv.Itoa(b.ID),
			strconv.Itoa(b.CategoryID),
			strconv.Itoa(b.StatusID),
			strconv.Itoa(b.Ratings),
			b.Title,
			b.Price.StringFixed(2),
		}
		if err := cw.writers[booksFile].Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	for _, writer := range cw.writers {
		writer.Flush()
		if err := writer.Error(); err != nil {
			return fmt.Errorf("flush csv records: %w", err)
		}
	}
	for name, n := range rowCounts(tables) {
		cw.written[name] += n
	}
	return nil
}

// Close flushes and closes the file handles.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	var firstErr error
	for name, f := range cw.files {
		if writer, ok := cw.writers[name]; ok {
			writer.Flush()
			if err := writer.Error(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("flush csv writer: %w", err)
			}
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Validate ensures every file holds its header and exactly the rows written.
// An empty table is valid.
func (cw *CSVWriter) Validate() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	return checkCounts("csv", cw.written, func(name string) (int, error) {
		f, err := os.Open(cw.files[name].Name())
		if err != nil {
			return 0, err
		}
		defer f.Close()

		records, err := csv.NewReader(f).ReadAll()
		if err != nil {
			return 0, err
		}
		if len(records) == 0 {
			return 0, fmt.Errorf("missing header")
		}
		return len(records) - 1, nil
	})
}

// JSONWriter writes each table as newline-delimited JSON.
type JSONWriter struct {
	files    map[string]*os.File
	buffers  map[string]*bufio.Writer
	encoders map[string]*json.Encoder
	written  map[string]int
	mu       sync.Mutex
}

// NewJSONWriter creates the three JSONL files.
func NewJSONWriter(dir string) (*JSONWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %q: %w", dir, err)
	}

	jw := &JSONWriter{
		files:    make(map[string]*os.File, 3),
		buffers:  make(map[string]*bufio.Writer, 3),
		encoders: make(map[string]*json.Encoder, 3),
		written:  make(map[string]int, 3),
	}
	for _, name := range tableFiles {
		f, err := os.Create(filepath.Join(dir, name+".jsonl"))
		if err != nil {
			jw.Close()
			return nil, fmt.Errorf("create json file: %w", err)
		}
		buffer := bufio.NewWriter(f)
		jw.files[name] = f
		jw.buffers[name] = buffer
		jw.encoders[name] = json.NewEncoder(buffer)
	}
	return jw, nil
}

// Write appends every row in JSONL format.
func (jw *JSONWriter) Write(tables *store.Tables) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, c := range tables.Categories {
		if err := jw.encoders[categoriesFile].Encode(c); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}
	for _, s := range tables.Statuses {
		if err := jw.encoders[statusFile].Encode(s); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}
	for _, b := range tables.Books {
		if err := jw.encoders[booksFile].Encode(b); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}

	for _, buffer := range jw.buffers {
		if err := buffer.Flush(); err != nil {
			return fmt.Errorf("flush json writer: %w", err)
		}
	}
	for name, n := range rowCounts(tables) {
		jw.written[name] += n
	}
	return nil
}

// Close flushes buffers and closes the underlying files.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	var firstErr error
	for name, f := range jw.files {
		if buffer, ok := jw.buffers[name]; ok {
			if err := buffer.Flush(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("flush json writer: %w", err)
			}
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Validate ensures every file holds exactly the rows written, one JSON
// object per line. An empty table is valid.
func (jw *JSONWriter) Validate() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	return checkCounts("json", jw.written, func(name string) (int, error) {
		f, err := os.Open(jw.files[name].Name())
		if err != nil {
			return 0, err
		}
		defer f.Close()

		rows := 0
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !json.Valid(scanner.Bytes()) {
				return 0, fmt.Errorf("invalid json on line %d", rows+1)
			}
			rows++
		}
		return rows, scanner.Err()
	})
}
