// Package adapter publishes stream completion notifications to downstream
// systems once a reassembly session ends.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/hby-star/minnow/metrics"
)

// EventTypeStreamCompleted is the event_type of every published event.
const EventTypeStreamCompleted = "stream_completed"

// DefaultBackoff is the delay before the first retry. It doubles per retry.
const DefaultBackoff = 500 * time.Millisecond

// StreamCompletedEvent is the payload published when a session finishes.
type StreamCompletedEvent struct {
	ContractVersion string  `json:"contract_version"`
	EventType       string  `json:"event_type"`
	SessionID       string  `json:"session_id"`
	StreamID        string  `json:"stream_id"`
	Day             string  `json:"day"`
	Outcome         string  `json:"outcome"`
	BytesDelivered  uint64  `json:"bytes_delivered"`
	EOF             *uint64 `json:"eof,omitempty"`
	StoragePath     string  `json:"storage_path,omitempty"`
	Timestamp       string  `json:"timestamp"` // RFC 3339
	DurationMs      int64   `json:"duration_ms"`
}

// Adapter publishes completion events to a downstream system.
type Adapter interface {
	// Publish sends a completion event. Must respect ctx cancellation.
	Publish(ctx context.Context, event *StreamCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// Retry runs attempt up to 1+retries times with exponential backoff starting
// at base. It stops early when attempt returns an error for which permanent
// reports true. The returned error is prefixed with name.
func Retry(ctx context.Context, name string, retries int, base time.Duration, permanent func(error) bool, attempt func(context.Context) error) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * base
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}

// Instrumented wraps an Adapter and counts publish outcomes.
type Instrumented struct {
	inner     Adapter
	collector *metrics.Collector
}

// NewInstrumented wraps a with metrics instrumentation.
func NewInstrumented(a Adapter, collector *metrics.Collector) *Instrumented {
	return &Instrumented{inner: a, collector: collector}
}

// Publish delegates and records adapter_publish_success or _failure.
func (i *Instrumented) Publish(ctx context.Context, event *StreamCompletedEvent) error {
	err := i.inner.Publish(ctx, event)
	if err != nil {
		i.collector.IncAdapterPublishFailure()
	} else {
		i.collector.IncAdapterPublishSuccess()
	}
	return err
}

// Close delegates to the wrapped adapter.
func (i *Instrumented) Close() error {
	return i.inner.Close()
}

var _ Adapter = (*Instrumented)(nil)
