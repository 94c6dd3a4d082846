package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "minnow.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %q, want %q", field, got, want)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	yaml := `capacity: 65536
drain_chunk: 4096
stream_id: stream-a
report: report.json

storage:
  dataset: minnow
  backend: s3
  path: my-bucket/prefix
  region: us-east-1
  endpoint: https://minio.local:9000
  s3_path_style: true
  store_payload: true

adapter:
  type: webhook
  url: https://hooks.example.com/minnow
  headers:
    Authorization: Bearer token123
  timeout: 10s
  retries: 2
`
	cfg, err := Load(writeTemp(t, yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Capacity != 65536 || cfg.DrainChunk != 4096 {
		t.Errorf("capacity/drain_chunk = %d/%d", cfg.Capacity, cfg.DrainChunk)
	}
	assertEqual(t, "stream_id", cfg.StreamID, "stream-a")
	assertEqual(t, "report", cfg.Report, "report.json")

	assertEqual(t, "storage.dataset", cfg.Storage.Dataset, "minnow")
	assertEqual(t, "storage.backend", cfg.Storage.Backend, BackendS3)
	assertEqual(t, "storage.path", cfg.Storage.Path, "my-bucket/prefix")
	assertEqual(t, "storage.region", cfg.Storage.Region, "us-east-1")
	assertEqual(t, "storage.endpoint", cfg.Storage.Endpoint, "https://minio.local:9000")
	if !cfg.Storage.S3PathStyle || !cfg.Storage.StorePayload {
		t.Error("expected s3_path_style and store_payload to be true")
	}

	assertEqual(t, "adapter.type", cfg.Adapter.Type, AdapterWebhook)
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "https://hooks.example.com/minnow")
	if cfg.Adapter.Timeout.Duration != 10*time.Second {
		t.Errorf("adapter.timeout = %v, want 10s", cfg.Adapter.Timeout.Duration)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 2 {
		t.Error("expected adapter.retries=2")
	}
	assertEqual(t, "adapter.headers", cfg.Adapter.Headers["Authorization"], "Bearer token123")
}

func TestLoad_EmptyConfig(t *testing.T) {
	cfg, err := Load(writeTemp(t, ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Capacity != 0 || cfg.Adapter.Retries != nil {
		t.Errorf("expected zero config, got %+v", cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"invalid yaml", "{{invalid yaml", "invalid YAML"},
		{"bad duration", "adapter:\n  timeout: soon\n", "invalid duration"},
		{"bad backend", "storage:\n  backend: gcs\n  path: x\n", "storage.backend"},
		{"backend without path", "storage:\n  backend: fs\n", "storage.path"},
		{"adapter without url", "adapter:\n  type: redis\n", "adapter.url"},
		{"bad adapter", "adapter:\n  type: kafka\n  url: x\n", "adapter.type"},
		{"negative retries", "adapter:\n  type: webhook\n  url: x\n  retries: -1\n", "adapter.retries"},
		{"drain chunk too large", "capacity: 8\ndrain_chunk: 16\n", "drain_chunk"},
		{"capacity too large", "capacity: 4611686018427387904\n", "capacity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTemp(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/minnow.yaml")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("MINNOW_STREAM", "stream-env")
	t.Setenv("MINNOW_HOOK", "http://hooks.local/done")

	yaml := `stream_id: ${MINNOW_STREAM}
adapter:
  type: webhook
  url: ${MINNOW_HOOK}
  retries: ${MINNOW_RETRIES:-4}
`
	cfg, err := Load(writeTemp(t, yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "stream_id", cfg.StreamID, "stream-env")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "http://hooks.local/done")
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 4 {
		t.Error("expected adapter.retries default of 4")
	}
}

func TestDuration_EmptyIsZero(t *testing.T) {
	cfg, err := Load(writeTemp(t, "adapter:\n  timeout: \"\"\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Timeout.Duration != 0 {
		t.Errorf("timeout = %v, want 0", cfg.Adapter.Timeout.Duration)
	}
}
