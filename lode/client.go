package lode

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/justapithecus/lode/lode"
)

// LodeClient is the Lode-backed Sink.
// Uses Lode's HiveLayout with partition keys stream_id/day/session_id/record_kind.
type LodeClient struct {
	dataset lode.Dataset
	config  Config

	storeFactory lode.StoreFactory
	storeOnce    sync.Once
	store        lode.Store
	storeErr     error
}

// NewLodeClient creates a new Lode client with filesystem storage.
// The root parameter is the base directory for Hive-partitioned storage.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a new Lode client with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lode config: %w", err)
	}
	ds, err := newDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, wrapStorageError(OpOpen, cfg.Dataset, err)
	}
	return newClient(ds, cfg, factory), nil
}

func newDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

func newClient(ds lode.Dataset, cfg Config, factory lode.StoreFactory) *LodeClient {
	return &LodeClient{
		dataset:      ds,
		config:       cfg,
		storeFactory: factory,
	}
}

// WriteSummary writes one session_summary record.
func (c *LodeClient) WriteSummary(ctx context.Context, summary *SessionSummary) error {
	records := []any{toSummaryRecordMap(summary, c.config)}
	if _, err := c.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return wrapStorageError(OpWriteSummary, c.PartitionPath(), err)
	}
	return nil
}

// PutFile writes a sidecar file to the Lode Store at the session's files/ path.
// Files bypass the Dataset segment and manifest machinery.
func (c *LodeClient) PutFile(ctx context.Context, filename, _ string, data []byte) error {
	if err := validateFilename(filename); err != nil {
		return err
	}

	store, err := c.getOrCreateStore()
	if err != nil {
		return wrapStorageError(OpOpen, c.config.Dataset, err)
	}

	path := c.FilePath(filename)
	if err := store.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return wrapStorageError(OpPutFile, path, err)
	}
	return nil
}

// FilePath returns the store path of a sidecar file.
// Format: datasets/<dataset>/partitions/stream_id=<s>/day=<d>/session_id=<id>/files/<filename>
func (c *LodeClient) FilePath(filename string) string {
	return c.PartitionPath() + "/files/" + filename
}

// PartitionPath returns the store prefix of this session's partition.
func (c *LodeClient) PartitionPath() string {
	return fmt.Sprintf("datasets/%s/partitions/stream_id=%s/day=%s/session_id=%s",
		c.config.Dataset,
		c.config.StreamID,
		c.config.Day,
		c.config.SessionID,
	)
}

// getOrCreateStore lazily initializes the Store from the factory.
func (c *LodeClient) getOrCreateStore() (lode.Store, error) {
	c.storeOnce.Do(func() {
		c.store, c.storeErr = c.storeFactory()
	})
	return c.store, c.storeErr
}

// Close releases client resources.
func (c *LodeClient) Close() error {
	return nil
}

func validateFilename(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid file name %q", name)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("file name %q must not contain path separators", name)
	}
	return nil
}

var _ Sink = (*LodeClient)(nil)
