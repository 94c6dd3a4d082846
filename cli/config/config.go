// Package config loads minnow.yaml files for minnow reassemble.
//
// Every value is optional and acts as a default for the matching flag.
// Flags always override config values.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/hby-star/minnow/types"
)

// Config represents a minnow.yaml configuration file.
type Config struct {
	Capacity   uint64        `yaml:"capacity"`
	DrainChunk uint64        `yaml:"drain_chunk"`
	StreamID   string        `yaml:"stream_id"`
	Report     string        `yaml:"report"`
	Storage    StorageConfig `yaml:"storage"`
	Adapter    AdapterConfig `yaml:"adapter"`
}

// StorageConfig holds storage defaults.
type StorageConfig struct {
	Dataset      string `yaml:"dataset"`
	Backend      string `yaml:"backend"`
	Path         string `yaml:"path"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	S3PathStyle  bool   `yaml:"s3_path_style"`
	StorePayload bool   `yaml:"store_payload"`
}

// AdapterConfig holds completion adapter defaults.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Storage backends.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// Adapter types.
const (
	AdapterWebhook = "webhook"
	AdapterRedis   = "redis"
)

// Validate checks value ranges and enumerations. Zero values are valid:
// they mean "not set".
func (c *Config) Validate() error {
	var errs []error

	if c.Capacity > types.MaxCapacity {
		errs = append(errs, fmt.Errorf("capacity %d exceeds maximum %d", c.Capacity, uint64(types.MaxCapacity)))
	}
	if c.DrainChunk > 0 && c.Capacity > 0 && c.DrainChunk > c.Capacity {
		errs = append(errs, fmt.Errorf("drain_chunk %d exceeds capacity %d", c.DrainChunk, c.Capacity))
	}

	switch c.Storage.Backend {
	case "", BackendFS, BackendS3:
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be %q or %q, got %q", BackendFS, BackendS3, c.Storage.Backend))
	}
	if c.Storage.Backend != "" && c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required when storage.backend is set"))
	}

	switch c.Adapter.Type {
	case "":
	case AdapterWebhook, AdapterRedis:
		if c.Adapter.URL == "" {
			errs = append(errs, fmt.Errorf("adapter.url is required for %s adapter", c.Adapter.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("adapter.type must be %q or %q, got %q", AdapterWebhook, AdapterRedis, c.Adapter.Type))
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		errs = append(errs, fmt.Errorf("adapter.retries must be >= 0, got %d", *c.Adapter.Retries))
	}

	return errors.Join(errs...)
}

// Duration wraps time.Duration for YAML strings such as "10s" or "5m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
