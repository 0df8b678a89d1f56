package main

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestPrintSchemas(t *testing.T) {
	var buf bytes.Buffer
	if err := printSchemas(&buf); err != nil {
		t.Fatalf("print schemas: %v", err)
	}

	var entries []struct {
		Type   string         `json:"type"`
		Schema map[string]any `json:"schema"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entries); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one schema")
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Type > entries[i].Type {
			t.Fatalf("expected schemas sorted by type, got %q before %q", entries[i-1].Type, entries[i].Type)
		}
	}
	for _, entry := range entries {
		if entry.Schema["title"] != entry.Type {
			t.Fatalf("expected schema title %q, got %v", entry.Type, entry.Schema["title"])
		}
	}
}
