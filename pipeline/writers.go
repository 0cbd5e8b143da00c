package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aluiziolira/hyppado-ingest/models"
)

// CSVWriter writes records of one kind to CSV.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	width  int
	rows   int
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row. Every
// record written must produce a row of the header's width.
func NewCSVWriter(filename string, header []string) (*CSVWriter, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("csv header cannot be empty")
	}

	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
		width:  len(header),
	}, nil
}

// Write appends records to the CSV output.
func (cw *CSVWriter) Write(records []models.Record) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, rec := range records {
		row := rec.CSVRow()
		if len(row) != cw.width {
			return fmt.Errorf("csv record %s has %d columns, want %d", rec.RecordID(), len(row), cw.width)
		}
		if err := cw.writer.Write(row); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
		cw.rows++
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures at least one data row follows the header.
func (cw *CSVWriter) Validate() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.rows == 0 {
		return fmt.Errorf("csv file %s has no records", cw.file.Name())
	}
	return nil
}

// Rows returns the number of data rows written.
func (cw *CSVWriter) Rows() int {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.rows
}

// JSONWriter writes one JSON object per line, tagging each record with its
// kind so mixed outputs can be split again.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	counts  map[models.RecordKind]int
	mu      sync.Mutex
}

type jsonLine struct {
	Kind   models.RecordKind `json:"kind"`
	ID     string            `json:"id"`
	Record models.Record     `json:"record"`
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &JSONWriter{
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
		counts:  make(map[models.RecordKind]int),
	}, nil
}

// Write appends records in JSONL format.
func (jw *JSONWriter) Write(records []models.Record) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, rec := range records {
		kind := models.KindOf(rec)
		line := jsonLine{Kind: kind, ID: rec.RecordID(), Record: rec}
		if err := jw.encoder.Encode(line); err != nil {
			return fmt.Errorf("encode json record %s: %w", rec.RecordID(), err)
		}
		jw.counts[kind]++
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}

	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures at least one record was written.
func (jw *JSONWriter) Validate() error {
	if jw.Lines() == 0 {
		return fmt.Errorf("json file %s has no records", jw.file.Name())
	}
	return nil
}

// Counts returns the number of lines written per record kind.
func (jw *JSONWriter) Counts() map[models.RecordKind]int {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	out := make(map[models.RecordKind]int, len(jw.counts))
	for kind, n := range jw.counts {
		out[kind] = n
	}
	return out
}

// Lines returns the total number of lines written.
func (jw *JSONWriter) Lines() int {
	total := 0
	for _, n := range jw.Counts() {
		total += n
	}
	return total
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
