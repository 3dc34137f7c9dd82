package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/xraph/rostersync/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"RunID", id.NewRunID, "run_"},
		{"WorkerID", id.NewWorkerID, "wkr_"},
		{"TokenID", id.NewTokenID, "tok_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"RunID", id.NewRunID, id.ParseRunID},
		{"WorkerID", id.NewWorkerID, id.ParseWorkerID},
		{"TokenID", id.NewTokenID, id.ParseTokenID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := tt.newFn()
			parsed, err := tt.parseFn(orig.String())
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if parsed.String() != orig.String() {
				t.Errorf("round trip mismatch: %q != %q", parsed, orig)
			}
		})
	}
}

func TestParseRejectsWrongPrefix(t *testing.T) {
	runID := id.NewRunID()
	if _, err := id.ParseTokenID(runID.String()); err == nil {
		t.Error("expected error parsing a run ID as a token ID")
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var zero id.ID
	if !zero.IsNil() {
		t.Error("zero value should be nil")
	}
	if zero.String() != "" {
		t.Errorf("nil ID should stringify empty, got %q", zero)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	orig := id.NewTokenID()

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back id.ID
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.String() != orig.String() {
		t.Errorf("JSON round trip mismatch: %q != %q", back, orig)
	}
}

func TestSQLRoundTrip(t *testing.T) {
	orig := id.NewWorkerID()

	v, err := orig.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}

	var back id.ID
	if err := back.Scan(v); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if back.String() != orig.String() {
		t.Errorf("SQL round trip mismatch: %q != %q", back, orig)
	}

	var null id.ID
	if err := null.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if !null.IsNil() {
		t.Error("scan of nil should yield the Nil ID")
	}
}
