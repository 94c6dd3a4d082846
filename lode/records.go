package lode

import (
	"encoding/json"
	"strconv"

	"github.com/hby-star/minnow/metrics"
)

// RecordKindSessionSummary is the record_kind of a session summary.
const RecordKindSessionSummary = "session_summary"

// SessionSummary is the persisted description of one finished session.
type SessionSummary struct {
	ContractVersion  string
	Outcome          string
	Message          string
	Capacity         uint64
	Frames           int64
	BytesDelivered   uint64
	FirstUnassembled uint64
	BytesPending     uint64
	EOF              *uint64
	DeclaredBytes    *uint64
	StartedAt        string
	DurationMs       int64
	// PayloadPath is the sidecar path of the payload, empty if not stored.
	PayloadPath string
	Metrics     metrics.Snapshot
}

// toSummaryRecordMap converts a summary to a map for Lode storage.
// Lode HiveLayout requires records as map[string]any carrying the
// partition keys.
func toSummaryRecordMap(s *SessionSummary, cfg Config) map[string]any {
	snap := s.Metrics
	m := map[string]any{
		"record_kind":       RecordKindSessionSummary,
		"contract_version":  s.ContractVersion,
		"outcome":           s.Outcome,
		"message":           s.Message,
		"capacity":          s.Capacity,
		"frames":            s.Frames,
		"bytes_delivered":   s.BytesDelivered,
		"first_unassembled": s.FirstUnassembled,
		"bytes_pending":     s.BytesPending,
		"started_at":        s.StartedAt,
		"duration_ms":       s.DurationMs,

		"segment_frames":      snap.SegmentFrames,
		"stream_end_frames":   snap.StreamEndFrames,
		"foreign_segments":    snap.ForeignSegments,
		"frame_decode_errors": snap.FrameDecodeErrors,
		"segments_inserted":   snap.Reassembly.SegmentsInserted,
		"bytes_stale":         snap.Reassembly.BytesStale,
		"bytes_beyond_window": snap.Reassembly.BytesBeyondWindow,
		"bytes_stored":        snap.Reassembly.BytesStored,
		"conflicting_eof":     snap.Reassembly.ConflictingEOF,

		"stream_id":  cfg.StreamID,
		"day":        cfg.Day,
		"session_id": cfg.SessionID,
	}
	if s.EOF != nil {
		m["eof"] = *s.EOF
	}
	if s.DeclaredBytes != nil {
		m["declared_bytes"] = *s.DeclaredBytes
	}
	if s.PayloadPath != "" {
		m["payload_path"] = s.PayloadPath
	}
	return m
}

// SummaryRecord is a session summary read back from storage.
type SummaryRecord struct {
	SessionID         string  `json:"session_id"`
	StreamID          string  `json:"stream_id"`
	Day               string  `json:"day"`
	Outcome           string  `json:"outcome"`
	Message           string  `json:"message"`
	Capacity          uint64  `json:"capacity"`
	Frames            uint64  `json:"frames"`
	BytesDelivered    uint64  `json:"bytes_delivered"`
	FirstUnassembled  uint64  `json:"first_unassembled"`
	BytesPending      uint64  `json:"bytes_pending"`
	EOF               *uint64 `json:"eof,omitempty"`
	DeclaredBytes     *uint64 `json:"declared_bytes,omitempty"`
	SegmentsInserted  uint64  `json:"segments_inserted"`
	BytesStale        uint64  `json:"bytes_stale"`
	BytesBeyondWindow uint64  `json:"bytes_beyond_window"`
	DurationMs        uint64  `json:"duration_ms"`
	StartedAt         string  `json:"started_at"`
	PayloadPath       string  `json:"payload_path,omitempty"`
	ContractVersion   string  `json:"contract_version"`
}

// ParseSummaryRecord converts a raw session_summary record map.
// Numbers decoded from JSONL arrive as float64 and are converted.
func ParseSummaryRecord(m map[string]any) *SummaryRecord {
	r := &SummaryRecord{
		SessionID:         toString(m["session_id"]),
		StreamID:          toString(m["stream_id"]),
		Day:               toString(m["day"]),
		Outcome:           toString(m["outcome"]),
		Message:           toString(m["message"]),
		Capacity:          asUint64(m["capacity"]),
		Frames:            asUint64(m["frames"]),
		BytesDelivered:    asUint64(m["bytes_delivered"]),
		FirstUnassembled:  asUint64(m["first_unassembled"]),
		BytesPending:      asUint64(m["bytes_pending"]),
		SegmentsInserted:  asUint64(m["segments_inserted"]),
		BytesStale:        asUint64(m["bytes_stale"]),
		BytesBeyondWindow: asUint64(m["bytes_beyond_window"]),
		DurationMs:        asUint64(m["duration_ms"]),
		StartedAt:         toString(m["started_at"]),
		PayloadPath:       toString(m["payload_path"]),
		ContractVersion:   toString(m["contract_version"]),
	}
	if v, ok := m["eof"]; ok {
		eof := asUint64(v)
		r.EOF = &eof
	}
	if v, ok := m["declared_bytes"]; ok {
		declared := asUint64(v)
		r.DeclaredBytes = &declared
	}
	return r
}

// asUint64 converts a decoded number to uint64. Negative and non-numeric
// values yield 0.
func asUint64(v any) uint64 {
	switch n := v.(type) {
	case uint64:
		return n
	case int64:
		return uint64(max(n, 0))
	case int:
		return uint64(max(n, 0))
	case float64:
		if n < 0 {
			return 0
		}
		return uint64(n)
	case json.Number:
		u, _ := strconv.ParseUint(n.String(), 10, 64)
		return u
	default:
		return 0
	}
}
