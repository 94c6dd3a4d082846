package cmd

import (
	"context"
	"errors"
	"fmt"

	lodelibrary "github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/hby-star/minnow/cli/config"
	"github.com/hby-star/minnow/cli/render"
	"github.com/hby-star/minnow/cli/tui"
	"github.com/hby-star/minnow/lode"
)

// StatsCommand returns the stats command with subcommands.
// Stats reads persisted session summaries; it never writes.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show persisted session statistics",
		Subcommands: []*cli.Command{
			statsSummaryCommand(),
		},
	}
}

func statsSummaryCommand() *cli.Command {
	flags := append(ReadOnlyFlags(), storageFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:  "session-id",
			Usage: "Filter by session ID",
		},
		&cli.StringFlag{
			Name:  "stream-id",
			Usage: "Filter by stream ID",
		},
	)
	return &cli.Command{
		Name:   "summary",
		Usage:  "Show the latest session summary in storage",
		Flags:  flags,
		Action: statsSummaryAction,
	}
}

func statsSummaryAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	storage := config.StorageConfig{
		Dataset:     c.String("storage-dataset"),
		Backend:     c.String("storage-backend"),
		Path:        c.String("storage-path"),
		Region:      c.String("storage-region"),
		Endpoint:    c.String("storage-endpoint"),
		S3PathStyle: c.Bool("storage-s3-path-style"),
	}
	if storage.Backend == "" {
		storage.Backend = config.BackendFS
	}
	if storage.Path == "" {
		return cli.Exit("--storage-path is required", 1)
	}

	ds, err := openReadDataset(c.Context, storage)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot open dataset: %v", err), 1)
	}

	record, err := lode.QueryLatestSummary(c.Context, ds, c.String("session-id"), c.String("stream-id"))
	if errors.Is(err, lode.ErrNoSummaryFound) {
		return cli.Exit("no session summary found", 1)
	}
	if err != nil {
		return fmt.Errorf("query summary: %w", err)
	}

	summary := lode.ParseSummaryRecord(record)
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatsSummary, summary)
	}
	return r.Render(summary)
}

// openReadDataset opens the summary dataset of a storage location.
func openReadDataset(ctx context.Context, storage config.StorageConfig) (lodelibrary.Dataset, error) {
	dataset := storage.Dataset
	if dataset == "" {
		dataset = lode.DefaultDataset
	}

	switch storage.Backend {
	case config.BackendFS:
		return lode.NewReadDatasetFS(dataset, storage.Path)
	case config.BackendS3:
		bucket, prefix := lode.ParseS3Path(storage.Path)
		return lode.NewReadDatasetS3(ctx, dataset, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       storage.Region,
			Endpoint:     storage.Endpoint,
			UsePathStyle: storage.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (must be fs or s3)", storage.Backend)
	}
}
