package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hby-star/minnow/types"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	meta := &types.SessionMeta{SessionID: "sess-1", StreamID: "stream-a", Capacity: 4096}
	l := newLoggerWithWriter(meta, &buf)

	l.Info("segment accepted", map[string]any{"offset": 10})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e["message"] != "segment accepted" {
		t.Errorf("message = %v", e["message"])
	}
	if e["level"] != "info" {
		t.Errorf("level = %v, want info", e["level"])
	}
	if e["session_id"] != "sess-1" || e["stream_id"] != "stream-a" {
		t.Errorf("context fields missing: %v", e)
	}
	if e["capacity"] != float64(4096) {
		t.Errorf("capacity = %v, want 4096", e["capacity"])
	}
	fields, ok := e["fields"].(map[string]any)
	if !ok || fields["offset"] != float64(10) {
		t.Errorf("fields = %v", e["fields"])
	}
	if _, ok := e["timestamp"]; !ok {
		t.Error("timestamp missing")
	}
}

func TestLogger_OmitsEmptyStreamID(t *testing.T) {
	var buf bytes.Buffer
	l := newLoggerWithWriter(&types.SessionMeta{SessionID: "s", Capacity: 1}, &buf)
	l.Warn("w", nil)

	e := decodeLines(t, &buf)[0]
	if _, ok := e["stream_id"]; ok {
		t.Error("stream_id should be omitted when empty")
	}
	if e["level"] != "warn" {
		t.Errorf("level = %v, want warn", e["level"])
	}
}

func TestLogger_WithOutputKeepsContext(t *testing.T) {
	var first, second bytes.Buffer
	l := newLoggerWithWriter(&types.SessionMeta{SessionID: "sess-2", Capacity: 8}, &first)

	l.WithOutput(&second).Error("boom", map[string]any{"error": "x"})

	if first.Len() != 0 {
		t.Error("original writer should be untouched")
	}
	e := decodeLines(t, &second)[0]
	if e["session_id"] != "sess-2" {
		t.Errorf("session_id = %v, want sess-2", e["session_id"])
	}
}

func TestSugaredLogger_Formats(t *testing.T) {
	var buf bytes.Buffer
	l := newLoggerWithWriter(&types.SessionMeta{SessionID: "s", Capacity: 1}, &buf)

	l.Sugar().With("component", "cli").Infof("wrote %d frames", 3)

	e := decodeLines(t, &buf)[0]
	if e["message"] != "wrote 3 frames" {
		t.Errorf("message = %v", e["message"])
	}
	if e["component"] != "cli" {
		t.Errorf("component = %v", e["component"])
	}
}
