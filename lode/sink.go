// Package lode persists finished sessions to Lode.
//
// Each session produces one session_summary record in a Hive-partitioned
// JSONL dataset and, optionally, the reassembled payload as a sidecar file
// next to it.
package lode

import (
	"context"
	"errors"
	"time"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "minnow"

// PayloadFilename is the sidecar file name for the reassembled payload.
const PayloadFilename = "payload.bin"

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"stream_id", "day", "session_id", "record_kind"}

// DeriveDay computes the partition day from the session start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Config holds the partition identity of one session.
type Config struct {
	// Dataset is the Lode dataset ID.
	Dataset string
	// StreamID is the partition key for the reassembled stream.
	StreamID string
	// Day is the partition key derived from session start (YYYY-MM-DD UTC).
	Day string
	// SessionID is the partition key for the session.
	SessionID string
}

// Validate checks that every partition key is set.
func (c Config) Validate() error {
	switch {
	case c.Dataset == "":
		return errors.New("dataset is required")
	case c.StreamID == "":
		return errors.New("stream_id is required")
	case c.Day == "":
		return errors.New("day is required")
	case c.SessionID == "":
		return errors.New("session_id is required")
	}
	return nil
}

// Sink receives the artifacts of a finished session.
type Sink interface {
	// WriteSummary writes the session summary record.
	WriteSummary(ctx context.Context, summary *SessionSummary) error
	// PutFile writes a sidecar file under the session's files/ prefix.
	// The filename must not contain path separators or "..".
	PutFile(ctx context.Context, filename, contentType string, data []byte) error
	// Close releases resources.
	Close() error
}

// StubSink records writes without persisting. Use for testing callers.
type StubSink struct {
	Summaries []*SessionSummary
	Files     []StubFileRecord
	Closed    bool

	// WriteErr and PutErr are returned by the matching calls when set.
	WriteErr error
	PutErr   error
}

// StubFileRecord is a recorded file write.
type StubFileRecord struct {
	Filename    string
	ContentType string
	Data        []byte
}

// NewStubSink creates a new stub sink.
func NewStubSink() *StubSink {
	return &StubSink{}
}

// WriteSummary implements Sink.
func (s *StubSink) WriteSummary(_ context.Context, summary *SessionSummary) error {
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.Summaries = append(s.Summaries, summary)
	return nil
}

// PutFile implements Sink.
func (s *StubSink) PutFile(_ context.Context, filename, contentType string, data []byte) error {
	if s.PutErr != nil {
		return s.PutErr
	}
	s.Files = append(s.Files, StubFileRecord{
		Filename:    filename,
		ContentType: contentType,
		Data:        data,
	})
	return nil
}

// Close implements Sink.
func (s *StubSink) Close() error {
	s.Closed = true
	return nil
}

var _ Sink = (*StubSink)(nil)
