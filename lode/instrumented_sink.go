package lode

import (
	"context"

	"github.com/hby-star/minnow/metrics"
)

// InstrumentedSink wraps a Sink and records write metrics. Each
// WriteSummary/PutFile call increments lode_write_success or
// lode_write_failure on the collector.
type InstrumentedSink struct {
	inner     Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with metrics instrumentation.
func NewInstrumentedSink(inner Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// WriteSummary delegates to the inner sink and records success or failure.
func (s *InstrumentedSink) WriteSummary(ctx context.Context, summary *SessionSummary) error {
	return s.record(s.inner.WriteSummary(ctx, summary))
}

// PutFile delegates to the inner sink and records success or failure.
func (s *InstrumentedSink) PutFile(ctx context.Context, filename, contentType string, data []byte) error {
	return s.record(s.inner.PutFile(ctx, filename, contentType, data))
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

func (s *InstrumentedSink) record(err error) error {
	if err != nil {
		s.collector.IncLodeWriteFailure()
	} else {
		s.collector.IncLodeWriteSuccess()
	}
	return err
}

var _ Sink = (*InstrumentedSink)(nil)
