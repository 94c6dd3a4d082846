package lode

import (
	"encoding/json"
	"testing"

	"github.com/hby-star/minnow/metrics"
)

func TestToSummaryRecordMap_PartitionKeys(t *testing.T) {
	m := toSummaryRecordMap(&SessionSummary{Outcome: "complete"}, testConfig("sess-9"))

	for _, key := range partitionKeys {
		if _, ok := m[key]; !ok {
			t.Errorf("record missing partition key %q", key)
		}
	}
	if m["record_kind"] != RecordKindSessionSummary {
		t.Errorf("record_kind = %v", m["record_kind"])
	}
	for _, key := range []string{"eof", "declared_bytes", "payload_path"} {
		if _, ok := m[key]; ok {
			t.Errorf("%s should be omitted when unset", key)
		}
	}
}

func TestParseSummaryRecord(t *testing.T) {
	// Round trip through JSON so numbers arrive as float64, as from JSONL.
	summary := testSummary(77)
	declared := uint64(80)
	summary.DeclaredBytes = &declared
	summary.PayloadPath = "datasets/minnow/x/files/payload.bin"
	summary.Metrics = metrics.Snapshot{Reassembly: metrics.Reassembly{BytesBeyondWindow: 5}}

	data, err := json.Marshal(toSummaryRecordMap(summary, testConfig("sess-1")))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	got := ParseSummaryRecord(raw)
	if got.SessionID != "sess-1" || got.StreamID != "stream-a" || got.Day != "2026-10-16" {
		t.Errorf("identity = %s/%s/%s", got.SessionID, got.StreamID, got.Day)
	}
	if got.BytesDelivered != 77 || got.Capacity != 64 || got.Frames != 3 {
		t.Errorf("counters = %d/%d/%d", got.BytesDelivered, got.Capacity, got.Frames)
	}
	if got.EOF == nil || *got.EOF != 77 {
		t.Errorf("EOF = %v, want 77", got.EOF)
	}
	if got.DeclaredBytes == nil || *got.DeclaredBytes != 80 {
		t.Errorf("DeclaredBytes = %v, want 80", got.DeclaredBytes)
	}
	if got.BytesBeyondWindow != 5 {
		t.Errorf("BytesBeyondWindow = %d, want 5", got.BytesBeyondWindow)
	}
	if got.PayloadPath != summary.PayloadPath {
		t.Errorf("PayloadPath = %q", got.PayloadPath)
	}
	if got.ContractVersion != summary.ContractVersion {
		t.Errorf("ContractVersion = %q, want %q", got.ContractVersion, summary.ContractVersion)
	}
}

func TestAsUint64(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want uint64
	}{
		{"uint64", uint64(7), 7},
		{"int64", int64(7), 7},
		{"negative int", -3, 0},
		{"float64", float64(9), 9},
		{"negative float", -1.5, 0},
		{"json number", json.Number("12"), 12},
		{"string", "12", 0},
		{"nil", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := asUint64(tt.in); got != tt.want {
				t.Errorf("asUint64(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
