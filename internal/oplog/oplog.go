// Package oplog reads and writes operation logs in JSONL form: one
// accepted operation envelope per line, with its acceptance time. The
// log is the input for deterministic replay.
package oplog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"token-ledger/internal/domain"
)

// Record is one logged operation.
type Record struct {
	At int64            `json:"at"` // acceptance time, Unix milliseconds
	Op domain.Operation `json:"op"` // the signed envelope as accepted
}

// Writer appends records to an operation log. Safe for concurrent
// use.
type Writer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewWriter creates a Writer appending JSONL records to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// Append writes one record as a single line.
func (w *Writer) Append(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("append oplog record: %w", err)
	}
	return nil
}

// Read parses an operation log file.
func Read(filename string) ([]Record, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return ReadFrom(f)
}

// ReadFrom parses an operation log from a reader. Empty lines are
// skipped; a malformed line fails the whole read with its line
// number, because replaying around holes would change the result.
func ReadFrom(r io.Reader) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		// Skip empty lines
		if line == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}
		if err := rec.Op.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading oplog: %w", err)
	}
	return records, nil
}
