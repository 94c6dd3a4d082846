package cmd

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hby-star/minnow/cli/config"
)

// reassembleChoice is the resolved configuration of one reassemble run.
type reassembleChoice struct {
	input     string
	output    string
	sessionID string
	quiet     bool
	cfg       *config.Config
}

// resolveReassembleChoice merges --config with flags. A flag that was set
// explicitly always wins; an unset flag falls back to the config value and
// then to the flag default.
func resolveReassembleChoice(c *cli.Context) (*reassembleChoice, error) {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.Capacity = uint64Opt(c, "capacity", cfg.Capacity)
	cfg.DrainChunk = uint64Opt(c, "drain-chunk", cfg.DrainChunk)
	cfg.StreamID = stringOpt(c, "stream-id", cfg.StreamID)
	cfg.Report = stringOpt(c, "report", cfg.Report)

	cfg.Storage.Backend = stringOpt(c, "storage-backend", cfg.Storage.Backend)
	cfg.Storage.Path = stringOpt(c, "storage-path", cfg.Storage.Path)
	cfg.Storage.Dataset = stringOpt(c, "storage-dataset", cfg.Storage.Dataset)
	cfg.Storage.Region = stringOpt(c, "storage-region", cfg.Storage.Region)
	cfg.Storage.Endpoint = stringOpt(c, "storage-endpoint", cfg.Storage.Endpoint)
	cfg.Storage.S3PathStyle = boolOpt(c, "storage-s3-path-style", cfg.Storage.S3PathStyle)
	cfg.Storage.StorePayload = boolOpt(c, "store-payload", cfg.Storage.StorePayload)

	cfg.Adapter.Type = stringOpt(c, "adapter-type", cfg.Adapter.Type)
	cfg.Adapter.URL = stringOpt(c, "adapter-url", cfg.Adapter.URL)
	cfg.Adapter.Channel = stringOpt(c, "adapter-channel", cfg.Adapter.Channel)
	if c.IsSet("adapter-timeout") {
		cfg.Adapter.Timeout = config.Duration{Duration: c.Duration("adapter-timeout")}
	}
	if c.IsSet("adapter-retries") {
		retries := c.Int("adapter-retries")
		cfg.Adapter.Retries = &retries
	}
	headers, err := parseHeaders(c.StringSlice("adapter-header"))
	if err != nil {
		return nil, err
	}
	if len(headers) > 0 {
		if cfg.Adapter.Headers == nil {
			cfg.Adapter.Headers = make(map[string]string, len(headers))
		}
		maps.Copy(cfg.Adapter.Headers, headers)
	}

	if cfg.Capacity == 0 {
		return nil, errors.New("capacity must be positive")
	}
	if cfg.Storage.StorePayload && cfg.Storage.Backend == "" {
		return nil, errors.New("--store-payload requires a storage backend")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sessionID := c.String("session-id")
	if sessionID == "" {
		sessionID = newSessionID()
	}

	return &reassembleChoice{
		input:     c.String("input"),
		output:    c.String("output"),
		sessionID: sessionID,
		quiet:     c.Bool("quiet"),
		cfg:       cfg,
	}, nil
}

func stringOpt(c *cli.Context, flag, fromConfig string) string {
	if c.IsSet(flag) || fromConfig == "" {
		return c.String(flag)
	}
	return fromConfig
}

func uint64Opt(c *cli.Context, flag string, fromConfig uint64) uint64 {
	if c.IsSet(flag) || fromConfig == 0 {
		return c.Uint64(flag)
	}
	return fromConfig
}

func boolOpt(c *cli.Context, flag string, fromConfig bool) bool {
	if c.IsSet(flag) {
		return c.Bool(flag)
	}
	return fromConfig
}

// parseHeaders parses Key=Value pairs.
func parseHeaders(pairs []string) (map[string]string, error) {
	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q (want Key=Value)", pair)
		}
		headers[key] = value
	}
	return headers, nil
}
