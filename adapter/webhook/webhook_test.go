package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hby-star/minnow/adapter"
	"github.com/hby-star/minnow/iox"
)

func u64(v uint64) *uint64 { return &v }

func testEvent() *adapter.StreamCompletedEvent {
	return &adapter.StreamCompletedEvent{
		ContractVersion: "0.3.0",
		EventType:       adapter.EventTypeStreamCompleted,
		SessionID:       "sess-001",
		StreamID:        "stream-a",
		Day:             "2026-10-16",
		Outcome:         "complete",
		BytesDelivered:  4096,
		EOF:             u64(4096),
		StoragePath:     "datasets/minnow/partitions/stream_id=stream-a/day=2026-10-16/session_id=sess-001",
		Timestamp:       "2026-10-16T12:00:00Z",
		DurationMs:      1500,
	}
}

func TestPublish_Success(t *testing.T) {
	var received adapter.StreamCompletedEvent
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a, err := New(Config{URL: ts.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if received.SessionID != "sess-001" {
		t.Errorf("expected sess-001, got %s", received.SessionID)
	}
	if received.EventType != adapter.EventTypeStreamCompleted {
		t.Errorf("expected stream_completed, got %s", received.EventType)
	}
	if received.EOF == nil || *received.EOF != 4096 {
		t.Errorf("expected eof 4096, got %v", received.EOF)
	}
}

func TestPublish_CustomHeaders(t *testing.T) {
	var authHeader string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	a, err := New(Config{URL: ts.URL, Headers: map[string]string{"Authorization": "Bearer tok"}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if authHeader != "Bearer tok" {
		t.Errorf("expected Bearer tok, got %q", authHeader)
	}
}

func TestPublish_StatusHandling(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		retries   int
		wantCalls int32
		wantErr   bool
		wantCode  int
	}{
		{"200", []int{200}, 3, 1, false, 0},
		{"202", []int{202}, 0, 1, false, 0},
		{"5xx then ok", []int{503, 500, 200}, 3, 3, false, 0},
		{"5xx exhausts", []int{500, 502, 503}, 2, 3, true, 503},
		{"400 fails fast", []int{400}, 3, 1, true, 400},
		{"404 fails fast", []int{404}, 3, 1, true, 404},
		{"5xx then 4xx", []int{500, 401}, 3, 2, true, 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				n := int(calls.Add(1)) - 1
				w.WriteHeader(tt.statuses[min(n, len(tt.statuses)-1)])
			}))
			defer ts.Close()

			a, err := New(Config{URL: ts.URL, Retries: tt.retries, Backoff: time.Millisecond})
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			defer iox.DiscardClose(a)

			err = a.Publish(t.Context(), testEvent())
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("expected *StatusError in chain, got %v", err)
			}
			if statusErr.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", statusErr.Code, tt.wantCode)
			}
		})
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a, err := New(Config{URL: ts.URL, Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
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
		{"negative retries", Config{URL: "http://example.com", Retries: -1}, true},
		{"valid", Config{URL: "http://example.com", Retries: 5}, false},
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
			if a.config.Timeout != DefaultTimeout {
				t.Errorf("timeout = %v, want %v", a.config.Timeout, DefaultTimeout)
			}
			if a.config.Backoff != adapter.DefaultBackoff {
				t.Errorf("backoff = %v, want %v", a.config.Backoff, adapter.DefaultBackoff)
			}
			if a.config.Retries != tt.cfg.Retries {
				t.Errorf("retries = %d, want %d", a.config.Retries, tt.cfg.Retries)
			}
		})
	}
}

func TestStatusError_Message(t *testing.T) {
	err := &StatusError{Code: 418}
	if got := err.Error(); got != "unexpected status "+strconv.Itoa(418) {
		t.Errorf("Error() = %q", got)
	}
}
