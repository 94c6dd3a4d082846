package lode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/justapithecus/lode/lode"
)

// ErrNoSummaryFound is returned when no session summary matches a query.
var ErrNoSummaryFound = errors.New("no session summary found")

// NewReadDataset creates a Lode Dataset for reading.
// Uses the same codec and layout as the write path.
func NewReadDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return newDataset(dataset, factory)
}

// NewReadDatasetFS creates a read Dataset with filesystem storage.
func NewReadDatasetFS(dataset, rootPath string) (lode.Dataset, error) {
	return NewReadDataset(dataset, lode.NewFSFactory(rootPath))
}

// NewReadDatasetS3 creates a read Dataset with S3 storage.
func NewReadDatasetS3(ctx context.Context, dataset string, s3cfg S3Config) (lode.Dataset, error) {
	factory, err := NewS3Factory(ctx, s3cfg)
	if err != nil {
		return nil, err
	}
	return NewReadDataset(dataset, factory)
}

// QueryLatestSummary finds the most recent session summary.
// Filters by sessionID and streamID if non-empty.
// Returns the raw record map or ErrNoSummaryFound.
func QueryLatestSummary(ctx context.Context, ds lode.Dataset, sessionID, streamID string) (map[string]any, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, wrapStorageError(OpQuerySummary, string(ds.ID())+"/snapshots", err)
	}

	// Snapshots are ordered by creation time; walk latest first.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]

		if !snapshotMatchesFilter(snap, "record_kind", RecordKindSessionSummary) {
			continue
		}
		if !snapshotMatchesFilter(snap, "session_id", sessionID) {
			continue
		}
		if !snapshotMatchesFilter(snap, "stream_id", streamID) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, wrapStorageError(OpQuerySummary, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID), err)
		}

		// Manifest paths are a coarse pre-filter; record fields decide.
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if record["record_kind"] != RecordKindSessionSummary {
				continue
			}
			if sessionID != "" && toString(record["session_id"]) != sessionID {
				continue
			}
			if streamID != "" && toString(record["stream_id"]) != streamID {
				continue
			}
			return record, nil
		}
	}

	return nil, ErrNoSummaryFound
}

// snapshotMatchesFilter checks if any of a snapshot's file paths carry the
// given partition key=value. An empty value matches everything.
func snapshotMatchesFilter(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue checks if a Hive-partitioned path contains an exact
// key=value segment, so session_id=s-1 never matches session_id=s-10.
func matchesPartitionValue(path, key, value string) bool {
	segment := key + "=" + value
	for part := range strings.SplitSeq(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
