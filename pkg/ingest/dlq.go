package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DLQRecord is one dropped row with enough context to reprocess it later.
type DLQRecord struct {
	SourceFile string            `json:"source_file"`
	Family     string            `json:"family"`
	RowNumber  int               `json:"row_number"`
	Row        map[string]string `json:"row,omitempty"`
	Reason     string            `json:"reason"`
	RunID      string            `json:"run_id"`
	Timestamp  time.Time         `json:"timestamp"`
}

// DLQWriter appends dropped rows to a JSONL file, one file per run.
// Dropped rows never block the import: a row that cannot be normalized
// is recorded here and the surrounding file continues.
type DLQWriter struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	encoder *json.Encoder
	count   int64
	closed  bool
}

// NewDLQWriter creates the DLQ directory and opens this run's file.
func NewDLQWriter(dir, runID string) (*DLQWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create DLQ directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("dropped_%s_%s.jsonl",
		time.Now().Format("20060102_150405"), runID))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open DLQ file: %w", err)
	}
	return &DLQWriter{path: path, file: file, encoder: json.NewEncoder(file)}, nil
}

// Path returns the file this writer appends to.
func (w *DLQWriter) Path() string {
	return w.path
}

// Write appends one dropped row.
func (w *DLQWriter) Write(rec DLQRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("DLQ writer is closed")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if err := w.encoder.Encode(rec); err != nil {
		return fmt.Errorf("failed to write DLQ record: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of records written so far.
func (w *DLQWriter) Count() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close flushes and closes the file. A run that dropped nothing removes
// its empty file so the directory only holds runs with real failures.
func (w *DLQWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.file.Close(); err != nil {
		return err
	}
	if w.count == 0 {
		os.Remove(w.path)
	}
	return nil
}

// ReadDLQ decodes every record in a DLQ file.
func ReadDLQ(path string) ([]DLQRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var out []DLQRecord
	dec := json.NewDecoder(file)
	for dec.More() {
		var rec DLQRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode DLQ record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
