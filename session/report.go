package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hby-star/minnow/metrics"
	"github.com/hby-star/minnow/types"
)

// Report is the structured JSON report written by --report.
type Report struct {
	SessionID  string              `json:"session_id"`
	StreamID   string              `json:"stream_id"`
	Capacity   uint64              `json:"capacity"`
	Outcome    types.OutcomeStatus `json:"outcome"`
	Message    string              `json:"message"`
	ExitCode   int                 `json:"exit_code"`
	DurationMs int64               `json:"duration_ms"`
	Frames     int64               `json:"frames"`

	Stream  *ReportStream     `json:"stream"`
	Metrics *metrics.Snapshot `json:"metrics"`

	StoragePath string `json:"storage_path,omitempty"`
}

// ReportStream holds the reassembly position in the report.
type ReportStream struct {
	State            string  `json:"state"`
	BytesDelivered   uint64  `json:"bytes_delivered"`
	FirstUnassembled uint64  `json:"first_unassembled"`
	BytesPending     uint64  `json:"bytes_pending"`
	EOF              *uint64 `json:"eof,omitempty"`
	DeclaredBytes    *uint64 `json:"declared_bytes,omitempty"`
}

// BuildReport composes a Report from a Result and metrics snapshot.
// exitCode is the process exit code that will be returned to the caller.
func BuildReport(result *Result, snap metrics.Snapshot, exitCode int, storagePath string) *Report {
	return &Report{
		SessionID:  result.Meta.SessionID,
		StreamID:   result.Meta.StreamID,
		Capacity:   result.Meta.Capacity,
		Outcome:    result.Outcome.Status,
		Message:    result.Outcome.Message,
		ExitCode:   exitCode,
		DurationMs: result.Duration.Milliseconds(),
		Frames:     result.Frames,
		Stream: &ReportStream{
			State:            string(result.State),
			BytesDelivered:   result.BytesDelivered,
			FirstUnassembled: result.FirstUnassembled,
			BytesPending:     result.BytesPending,
			EOF:              result.EOF,
			DeclaredBytes:    result.DeclaredBytes,
		},
		Metrics:     &snap,
		StoragePath: storagePath,
	}
}

// WriteReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteReport(report *Report, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	if err := writeReportTo(report, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return f.Close()
}

// writeReportTo writes report JSON to any writer.
func writeReportTo(report *Report, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
