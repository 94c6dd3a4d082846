package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/hby-star/minnow/adapter"
	"github.com/hby-star/minnow/adapter/redis"
	"github.com/hby-star/minnow/adapter/webhook"
	"github.com/hby-star/minnow/cli/config"
	"github.com/hby-star/minnow/iox"
	"github.com/hby-star/minnow/lode"
	"github.com/hby-star/minnow/log"
	"github.com/hby-star/minnow/metrics"
	"github.com/hby-star/minnow/session"
	"github.com/hby-star/minnow/types"
)

// DefaultCapacity is the byte pipe capacity when neither flag nor config
// sets one.
const DefaultCapacity = 64 * 1024

// unknownStreamID partitions sessions whose input carried no frames and no
// --stream-id.
const unknownStreamID = "unknown"

// persistTimeout bounds post-session storage and adapter work.
const persistTimeout = 2 * time.Minute

// ReassembleCommand returns the reassemble command.
// This is the only command that writes (output file, storage, adapter).
func ReassembleCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "input",
			Aliases: []string{"i"},
			Usage:   "Frame stream to read (- for stdin)",
			Value:   iox.StdioPath,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "File to write the reassembled bytes to (- for stdout)",
			Value:   iox.StdioPath,
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to minnow.yaml; flags override its values",
		},
		&cli.Uint64Flag{
			Name:  "capacity",
			Usage: "Byte pipe capacity; also the reassembly window",
			Value: DefaultCapacity,
		},
		&cli.Uint64Flag{
			Name:  "drain-chunk",
			Usage: "Maximum bytes per output write (0 = everything buffered)",
		},
		&cli.StringFlag{
			Name:  "stream-id",
			Usage: "Stream to accept (default: stream of the first frame)",
		},
		&cli.StringFlag{
			Name:  "session-id",
			Usage: "Session identifier (default: random UUID)",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a JSON session report to this path (- for stderr)",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Suppress the result summary on stderr",
		},
		&cli.BoolFlag{
			Name:  "store-payload",
			Usage: "Also store the reassembled bytes as payload.bin",
		},
		&cli.StringFlag{
			Name:  "adapter-type",
			Usage: "Completion adapter: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Webhook URL or redis:// URL",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis pub/sub channel (default: " + redis.DefaultChannel + ")",
		},
		&cli.StringSliceFlag{
			Name:  "adapter-header",
			Usage: "Webhook header as Key=Value (repeatable)",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-attempt adapter timeout",
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Adapter retries after the first attempt",
		},
	}

	return &cli.Command{
		Name:   "reassemble",
		Usage:  "Reassemble a segment frame stream into its original bytes",
		Flags:  append(flags, storageFlags()...),
		Action: reassembleAction,
	}
}

func reassembleAction(c *cli.Context) error {
	choice, err := resolveReassembleChoice(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), session.ExitCodeInvalidConfig)
	}

	in, err := iox.OpenInput(choice.input)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot open input: %v", err), session.ExitCodeInvalidConfig)
	}
	defer iox.DiscardClose(in)

	out, err := iox.CreateOutput(choice.output)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot create output: %v", err), session.ExitCodeInvalidConfig)
	}
	defer iox.DiscardClose(out)

	meta := &types.SessionMeta{
		SessionID: choice.sessionID,
		StreamID:  choice.cfg.StreamID,
		Capacity:  choice.cfg.Capacity,
	}
	logger := log.NewLogger(meta)
	defer iox.DiscardErr(logger.Sync)
	collector := metrics.NewCollector(meta.SessionID, meta.StreamID, choice.cfg.Storage.Backend, meta.Capacity)

	// The payload is only buffered when it will be stored.
	var payload *bytes.Buffer
	var output io.Writer = out
	if choice.cfg.Storage.Backend != "" && choice.cfg.Storage.StorePayload {
		payload = &bytes.Buffer{}
		output = io.MultiWriter(out, payload)
	}

	sess, err := session.New(&session.Config{
		Meta:       meta,
		Input:      in,
		Output:     output,
		DrainChunk: choice.cfg.DrainChunk,
		Logger:     logger,
		Collector:  collector,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid session: %v", err), session.ExitCodeInvalidConfig)
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	result := sess.Run(ctx)
	if err := out.Close(); err != nil {
		logger.Warn("output close failed", map[string]any{"error": err.Error()})
	}

	// Storage and adapter run even after cancellation so the outcome is
	// recorded.
	finishCtx, finishCancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer finishCancel()

	day := lode.DeriveDay(result.StartedAt)
	storagePath := persistSession(finishCtx, choice.cfg, result, day, payload, logger, collector)
	publishCompletion(finishCtx, choice.cfg.Adapter, result, day, storagePath, logger, collector)

	exitCode := session.ExitCode(result.Outcome.Status)
	if choice.cfg.Report != "" {
		report := session.BuildReport(result, collector.Snapshot(), exitCode, storagePath)
		if err := session.WriteReport(report, choice.cfg.Report); err != nil {
			logger.Error("report write failed", map[string]any{"error": err.Error()})
		}
	}

	if !choice.quiet && isStderrTTY() {
		printSessionResult(os.Stderr, result)
	}

	return cli.Exit("", exitCode)
}

// partitionConfig builds the Lode partition identity of a finished session.
func partitionConfig(cfg *config.Config, result *session.Result, day string) lode.Config {
	dataset := cfg.Storage.Dataset
	if dataset == "" {
		dataset = lode.DefaultDataset
	}
	streamID := result.Meta.StreamID
	if streamID == "" {
		streamID = unknownStreamID
	}
	return lode.Config{
		Dataset:   dataset,
		StreamID:  streamID,
		Day:       day,
		SessionID: result.Meta.SessionID,
	}
}

// buildStorageSink opens the configured Lode backend. Returns nil, nil when
// storage is disabled.
func buildStorageSink(ctx context.Context, storage config.StorageConfig, cfg lode.Config) (*lode.LodeClient, error) {
	switch storage.Backend {
	case "":
		return nil, nil
	case config.BackendFS:
		return lode.NewLodeClient(cfg, storage.Path)
	case config.BackendS3:
		bucket, prefix := lode.ParseS3Path(storage.Path)
		return lode.NewLodeS3Client(ctx, cfg, lode.S3Config{
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

// persistSession writes the payload sidecar and the session summary.
// Failures are logged and counted; they never change the outcome.
// Returns the partition path of the session, or "" if nothing was stored.
func persistSession(
	ctx context.Context,
	cfg *config.Config,
	result *session.Result,
	day string,
	payload *bytes.Buffer,
	logger *log.Logger,
	collector *metrics.Collector,
) string {
	partition := partitionConfig(cfg, result, day)
	client, err := buildStorageSink(ctx, cfg.Storage, partition)
	if err != nil {
		collector.IncLodeWriteFailure()
		logger.Error("storage init failed", storageErrorFields(err))
		return ""
	}
	if client == nil {
		return ""
	}

	sink := lode.NewInstrumentedSink(client, collector)
	defer iox.DiscardClose(sink)

	summary := buildSessionSummary(result)
	if payload != nil {
		err := sink.PutFile(ctx, lode.PayloadFilename, "application/octet-stream", payload.Bytes())
		if err != nil {
			logger.Error("payload write failed", storageErrorFields(err))
		} else {
			summary.PayloadPath = client.FilePath(lode.PayloadFilename)
		}
	}

	// The snapshot is taken last so the summary carries the payload write.
	summary.Metrics = collector.Snapshot()
	if err := sink.WriteSummary(ctx, summary); err != nil {
		logger.Error("summary write failed", storageErrorFields(err))
		return ""
	}

	path := client.PartitionPath()
	logger.Info("session persisted", map[string]any{"path": path})
	return path
}

// storageErrorFields describes a storage failure for the log. Classified
// failures also carry their kind and retryability.
func storageErrorFields(err error) map[string]any {
	fields := map[string]any{"error": err.Error()}
	var storageErr *lode.StorageError
	if errors.As(err, &storageErr) {
		fields["op"] = string(storageErr.Op)
		fields["kind"] = storageErr.Kind.Error()
		fields["retryable"] = storageErr.Retryable()
	}
	return fields
}

func buildSessionSummary(result *session.Result) *lode.SessionSummary {
	return &lode.SessionSummary{
		ContractVersion:  types.Version,
		Outcome:          string(result.Outcome.Status),
		Message:          result.Outcome.Message,
		Capacity:         result.Meta.Capacity,
		Frames:           result.Frames,
		BytesDelivered:   result.BytesDelivered,
		FirstUnassembled: result.FirstUnassembled,
		BytesPending:     result.BytesPending,
		EOF:              result.EOF,
		DeclaredBytes:    result.DeclaredBytes,
		StartedAt:        result.StartedAt.UTC().Format(time.RFC3339Nano),
		DurationMs:       result.Duration.Milliseconds(),
	}
}

// buildAdapter constructs the configured completion adapter. Returns nil,
// nil when no adapter is configured.
func buildAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	retries := -1
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}

	switch cfg.Type {
	case "":
		return nil, nil
	case config.AdapterWebhook:
		if retries < 0 {
			retries = webhook.DefaultRetries
		}
		return webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	case config.AdapterRedis:
		if retries < 0 {
			retries = redis.DefaultRetries
		}
		return redis.New(redis.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type: %s (must be webhook or redis)", cfg.Type)
	}
}

// publishCompletion sends the stream_completed event. Failures are logged
// and counted; they never change the outcome.
func publishCompletion(
	ctx context.Context,
	cfg config.AdapterConfig,
	result *session.Result,
	day, storagePath string,
	logger *log.Logger,
	collector *metrics.Collector,
) {
	a, err := buildAdapter(cfg)
	if err != nil {
		collector.IncAdapterPublishFailure()
		logger.Error("adapter init failed", map[string]any{"error": err.Error()})
		return
	}
	if a == nil {
		return
	}

	inst := adapter.NewInstrumented(a, collector)
	defer iox.DiscardClose(inst)

	if err := inst.Publish(ctx, buildCompletionEvent(result, day, storagePath)); err != nil {
		logger.Error("adapter publish failed", map[string]any{
			"adapter": cfg.Type,
			"error":   err.Error(),
		})
		return
	}
	logger.Info("completion published", map[string]any{"adapter": cfg.Type})
}

func buildCompletionEvent(result *session.Result, day, storagePath string) *adapter.StreamCompletedEvent {
	return &adapter.StreamCompletedEvent{
		ContractVersion: types.Version,
		EventType:       adapter.EventTypeStreamCompleted,
		SessionID:       result.Meta.SessionID,
		StreamID:        result.Meta.StreamID,
		Day:             day,
		Outcome:         string(result.Outcome.Status),
		BytesDelivered:  result.BytesDelivered,
		EOF:             result.EOF,
		StoragePath:     storagePath,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		DurationMs:      result.Duration.Milliseconds(),
	}
}

func printSessionResult(w io.Writer, result *session.Result) {
	_, _ = fmt.Fprintf(w, "session_id=%s, stream_id=%s, outcome=%s, duration=%s\n",
		result.Meta.SessionID,
		result.Meta.StreamID,
		result.Outcome.Status,
		result.Duration.Round(time.Millisecond),
	)
	_, _ = fmt.Fprintf(w, "frames=%d, delivered=%d, first_unassembled=%d, pending=%d\n",
		result.Frames,
		result.BytesDelivered,
		result.FirstUnassembled,
		result.BytesPending,
	)
	if result.Outcome.Message != "" {
		_, _ = fmt.Fprintf(w, "%s\n", result.Outcome.Message)
	}
}

// newSessionID returns the session ID to use when none is given.
func newSessionID() string {
	return uuid.NewString()
}
