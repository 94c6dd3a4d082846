package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/hby-star/minnow/adapter"
)

func testEvent() *adapter.StreamCompletedEvent {
	return &adapter.StreamCompletedEvent{
		ContractVersion: "0.3.0",
		EventType:       adapter.EventTypeStreamCompleted,
		SessionID:       "sess-001",
		StreamID:        "stream-a",
		Day:             "2026-10-16",
		Outcome:         "incomplete",
		BytesDelivered:  100,
		Timestamp:       "2026-10-16T12:00:00Z",
		DurationMs:      20,
	}
}

// asyncReceive reads one message from sub in the background. Call it before
// Publish: miniredis delivers pub/sub messages synchronously.
func asyncReceive(sub *miniredis.Subscriber) <-chan miniredis.PubsubMessage {
	ch := make(chan miniredis.PubsubMessage, 1)
	go func() {
		ch <- <-sub.Messages()
	}()
	return ch
}

func waitMessage(t *testing.T, ch <-chan miniredis.PubsubMessage) miniredis.PubsubMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pub/sub message")
		return miniredis.PubsubMessage{}
	}
}

func TestPublish_Channels(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		want    string
	}{
		{"default", "", DefaultChannel},
		{"custom", "streams:done", "streams:done"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr := miniredis.RunT(t)

			a, err := New(Config{URL: "redis://" + mr.Addr(), Channel: tt.channel})
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			defer func() { _ = a.Close() }()

			sub := mr.NewSubscriber()
			sub.Subscribe(tt.want)
			ch := asyncReceive(sub)

			if err := a.Publish(t.Context(), testEvent()); err != nil {
				t.Fatalf("publish: %v", err)
			}

			msg := waitMessage(t, ch)
			if msg.Channel != tt.want {
				t.Errorf("channel = %q, want %q", msg.Channel, tt.want)
			}

			var received adapter.StreamCompletedEvent
			if err := json.Unmarshal([]byte(msg.Message), &received); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if received.SessionID != "sess-001" || received.Outcome != "incomplete" {
				t.Errorf("received = %+v", received)
			}
			if received.EOF != nil {
				t.Errorf("eof = %v, want nil", *received.EOF)
			}
		})
	}
}

func TestPublish_ExhaustsRetries(t *testing.T) {
	a, err := New(Config{
		URL:     "redis://127.0.0.1:1",
		Retries: 2,
		Timeout: 100 * time.Millisecond,
		Backoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = a.Close() }()

	if err := a.Publish(t.Context(), testEvent()); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	a, err := New(Config{URL: "redis://127.0.0.1:1", Retries: 5, Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	if err := a.Publish(ctx, testEvent()); err == nil {
		t.Fatal("expected error on canceled context")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"requires url", Config{}, true},
		{"invalid url", Config{URL: "not-a-redis-url"}, true},
		{"negative retries", Config{URL: "redis://localhost:6379", Retries: -1}, true},
		{"defaults", Config{URL: "redis://localhost:6379"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer func() { _ = a.Close() }()
			if a.config.Channel != DefaultChannel {
				t.Errorf("channel = %q, want %q", a.config.Channel, DefaultChannel)
			}
			if a.config.Timeout != DefaultTimeout {
				t.Errorf("timeout = %v, want %v", a.config.Timeout, DefaultTimeout)
			}
		})
	}
}

func TestPublish_AfterClose(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + mr.Addr(), Backoff: time.Millisecond})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := a.Publish(t.Context(), testEvent()); err == nil {
		t.Fatal("expected error after close")
	}
}
