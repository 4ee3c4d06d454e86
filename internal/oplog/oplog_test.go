package oplog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"token-ledger/internal/domain"
)

func TestWriteAndReadBack(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	records := []Record{
		{At: 1000, Op: domain.Operation{Kind: domain.OpCreate, Caller: "alice", Owner: "alice", Name: "Token", Symbol: "TOK", Value: 100}},
		{At: 2000, Op: domain.Operation{Kind: domain.OpTransfer, Caller: "alice", Token: 0, To: "bob", Value: 10}},
		{At: 3000, Op: domain.Operation{Kind: domain.OpSetPaused, Caller: "alice", Token: 0, Paused: true}},
	}
	for _, rec := range records {
		if err := w.Append(rec); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	if got := strings.Count(buf.String(), "\n"); got != 3 {
		t.Errorf("expected 3 lines, got %d", got)
	}

	back, err := ReadFrom(&buf)
	if err != nil {
		t.Fatalf("ReadFrom failed: %v", err)
	}
	if len(back) != 3 {
		t.Fatalf("expected 3 records, got %d", len(back))
	}
	for i, rec := range back {
		if rec.At != records[i].At || rec.Op.Kind != records[i].Op.Kind || rec.Op.Value != records[i].Op.Value {
			t.Errorf("record %d mismatch: %+v", i, rec)
		}
	}
	// Amounts survive as strings
	if back[0].Op.Value != 100 {
		t.Errorf("value mismatch: %d", back[0].Op.Value)
	}
}

func TestReadSkipsEmptyLines(t *testing.T) {
	input := `{"at":1,"op":{"kind":"MINT","caller":"alice","token":0,"value":"5"}}

{"at":2,"op":{"kind":"BURN","caller":"alice","token":0,"value":"5"}}
`
	records, err := ReadFrom(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadFrom failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}
}

func TestReadRejectsMalformedLine(t *testing.T) {
	input := `{"at":1,"op":{"kind":"MINT","caller":"alice","token":0,"value":"5"}}
not json
`
	_, err := ReadFrom(strings.NewReader(input))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected line 2 error, got %v", err)
	}
}

func TestReadRejectsInvalidOperation(t *testing.T) {
	// Structurally valid JSON, structurally invalid operation
	input := `{"at":1,"op":{"kind":"TRANSFER","caller":"alice","token":0,"value":"5"}}`
	_, err := ReadFrom(strings.NewReader(input))
	if err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Errorf("expected line 1 validation error, got %v", err)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.jsonl")
	content := `{"at":1,"op":{"kind":"CREATE","caller":"alice","owner":"bob","name":"T","symbol":"T","value":"1"}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	records, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(records) != 1 || records[0].Op.Owner != "bob" {
		t.Errorf("unexpected records: %+v", records)
	}

	if _, err := Read(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("expected error for missing file")
	}
}
