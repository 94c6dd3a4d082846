// Package session replays a segment frame stream through a reassembler.
//
// A Session reads length-prefixed frames, inserts every segment into one
// Reassembler, drains the in-order bytes into an io.Writer after each frame
// and classifies the outcome once input ends.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hby-star/minnow/bytestream"
	"github.com/hby-star/minnow/ipc"
	"github.com/hby-star/minnow/log"
	"github.com/hby-star/minnow/metrics"
	"github.com/hby-star/minnow/reassembler"
	"github.com/hby-star/minnow/types"
)

// Config configures a single session.
type Config struct {
	// Meta is the session identity. Meta.Capacity sizes the byte pipe.
	// If Meta.StreamID is empty it is taken from the first frame.
	Meta *types.SessionMeta
	// Input is the frame stream.
	Input io.Reader
	// Output receives the reassembled bytes in order.
	Output io.Writer
	// DrainChunk caps a single write to Output. Zero writes everything
	// buffered at once.
	DrainChunk uint64
	// Logger overrides the session logger. If nil, a stderr logger is built
	// from Meta.
	Logger *log.Logger
	// Collector is the metrics collector for this session.
	// If nil, no metrics are recorded (all Collector methods are nil-safe).
	Collector *metrics.Collector
}

// Result represents the result of a session.
type Result struct {
	// Meta is the session identity, with the stream ID resolved.
	Meta types.SessionMeta
	// Outcome is the session outcome.
	Outcome *types.Outcome
	// StartedAt is when Run began.
	StartedAt time.Time
	// Duration is the total session duration.
	Duration time.Duration
	// Frames is the number of frames read.
	Frames int64
	// State is the final reassembler state.
	State reassembler.State
	// Stats is the final reassembler stats.
	Stats reassembler.Stats
	// BytesDelivered is the number of bytes written to Output.
	BytesDelivered uint64
	// FirstUnassembled is the offset of the first byte never assembled.
	FirstUnassembled uint64
	// BytesPending is the number of bytes held past a gap at the end.
	BytesPending uint64
	// EOF is the end-of-stream offset, nil if no last segment was seen.
	EOF *uint64
	// DeclaredBytes is the stream_end total, nil if none was seen.
	DeclaredBytes *uint64
}

// Session drives one reassembler from one frame stream.
// A Session is single-use.
type Session struct {
	config    *Config
	meta      types.SessionMeta
	logger    *log.Logger
	collector *metrics.Collector

	decoder *ipc.FrameDecoder
	r       *reassembler.Reassembler

	frames    int64
	delivered uint64
	declared  *uint64
}

// New creates a session. Returns error if the configuration is invalid.
func New(config *Config) (*Session, error) {
	if config.Meta == nil {
		return nil, errors.New("session metadata is required")
	}
	if err := config.Meta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session metadata: %w", err)
	}
	if config.Input == nil || config.Output == nil {
		return nil, errors.New("input and output are required")
	}

	meta := *config.Meta
	logger := config.Logger
	if logger == nil {
		logger = log.NewLogger(&meta)
	}

	return &Session{
		config:    config,
		meta:      meta,
		logger:    logger,
		collector: config.Collector,
		decoder:   ipc.NewFrameDecoder(config.Input),
		r:         reassembler.New(bytestream.New(meta.Capacity)),
	}, nil
}

// Run runs the session until input ends, a fatal error occurs, or ctx is
// canceled. Cancellation is observed between frames.
func (s *Session) Run(ctx context.Context) *Result {
	start := time.Now()
	s.collector.IncSessionStarted()

	s.logger.Info("starting session", map[string]any{
		"drain_chunk": s.config.DrainChunk,
	})

	runErr := s.loop(ctx)
	if runErr != nil {
		s.logger.Error("session aborted", map[string]any{
			"error": runErr.Error(),
		})
	}

	result := s.buildResult(start, runErr)
	s.collector.AbsorbReassembly(toMetrics(result.Stats, result.BytesPending))
	s.collector.IncOutcome(string(result.Outcome.Status))

	s.logger.Info("session finished", map[string]any{
		"outcome":           result.Outcome.Status,
		"message":           result.Outcome.Message,
		"bytes_delivered":   result.BytesDelivered,
		"first_unassembled": result.FirstUnassembled,
		"frames":            result.Frames,
		"duration_ms":       result.Duration.Milliseconds(),
	})

	return result
}

func (s *Session) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return &Error{Kind: ErrorCanceled, Err: ctx.Err()}
		default:
		}

		payload, err := s.decoder.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			s.collector.IncFrameDecodeErrors()
			return &Error{
				Kind: ErrorStream,
				Err:  fmt.Errorf("frame error: %w", err),
			}
		}
		s.frames++
		s.collector.IncFrameRead()

		if err := s.processFrame(payload); err != nil {
			return err
		}
	}
}

// processFrame decodes one frame, applies it and drains the output.
func (s *Session) processFrame(payload []byte) error {
	decoded, err := ipc.DecodeFrame(payload)
	if err != nil {
		s.collector.IncFrameDecodeErrors()
		return &Error{
			Kind: ErrorStream,
			Err:  fmt.Errorf("frame decode error: %w", err),
		}
	}

	switch frame := decoded.(type) {
	case *types.SegmentFrame:
		s.collector.IncSegmentFrame()
		if !s.acceptStream(frame.StreamID) {
			return nil
		}
		s.insert(frame)
	case *types.StreamEndFrame:
		s.collector.IncStreamEndFrame()
		if !s.acceptStream(frame.StreamID) {
			return nil
		}
		s.declare(frame.TotalBytes)
	default:
		return &Error{
			Kind: ErrorStream,
			Err:  fmt.Errorf("unexpected frame type: %T", decoded),
		}
	}

	return s.drain()
}

// acceptStream latches the first stream ID seen and reports whether a frame
// for streamID belongs to this session.
func (s *Session) acceptStream(streamID string) bool {
	if s.meta.StreamID == "" {
		s.meta.StreamID = streamID
		return true
	}
	if streamID == s.meta.StreamID {
		return true
	}
	s.collector.IncForeignSegment()
	s.logger.Warn("ignoring frame for foreign stream", map[string]any{
		"frame_stream_id": streamID,
	})
	return false
}

func (s *Session) insert(frame *types.SegmentFrame) {
	conflicts := s.r.Stats().ConflictingEOF
	s.r.Insert(frame.Offset, frame.Data, frame.IsLast)

	if s.r.Stats().ConflictingEOF > conflicts {
		eof, _ := s.r.EOF()
		s.logger.Warn("ignoring conflicting last segment", map[string]any{
			"offset":   frame.Offset,
			"eof":      eof,
			"received": frame.End(),
		})
	}
}

// declare records the first stream_end total. Later differing totals are
// logged and ignored.
func (s *Session) declare(total uint64) {
	if s.declared == nil {
		s.declared = &total
		return
	}
	if *s.declared != total {
		s.logger.Warn("ignoring conflicting stream_end", map[string]any{
			"declared": *s.declared,
			"received": total,
		})
	}
}

// drain writes every buffered byte to the output, DrainChunk at a time.
// Popping slides the acceptance window, so bytes dropped as beyond-window
// before the drain are accepted when the sender retransmits them.
func (s *Session) drain() error {
	reader := s.r.Reader()
	for reader.BytesBuffered() > 0 {
		n, err := reader.WriteChunk(s.config.Output, s.config.DrainChunk)
		if n > 0 {
			s.delivered += uint64(n)
			s.collector.AddBytesDelivered(n)
		}
		if err != nil {
			s.collector.IncOutputWriteErrors()
			return &Error{
				Kind: ErrorOutput,
				Err:  fmt.Errorf("output write failed: %w", err),
			}
		}
	}
	return nil
}

func (s *Session) buildResult(start time.Time, runErr error) *Result {
	result := &Result{
		Meta:             s.meta,
		StartedAt:        start,
		Duration:         time.Since(start),
		Frames:           s.frames,
		State:            s.r.State(),
		Stats:            s.r.Stats(),
		BytesDelivered:   s.delivered,
		FirstUnassembled: s.r.FirstUnassembled(),
		BytesPending:     s.r.BytesPending(),
		DeclaredBytes:    s.declared,
	}
	if eof, ok := s.r.EOF(); ok {
		result.EOF = &eof
	}

	result.Outcome = DetermineOutcome(runErr, Progress{
		Finished:         s.r.Reader().IsFinished(),
		Delivered:        result.BytesDelivered,
		FirstUnassembled: result.FirstUnassembled,
		EOF:              result.EOF,
		Declared:         result.DeclaredBytes,
		Pending:          result.BytesPending,
	})
	return result
}

func toMetrics(st reassembler.Stats, pending uint64) metrics.Reassembly {
	return metrics.Reassembly{
		SegmentsInserted:  st.Segments,
		TerminalSegments:  st.TerminalSegments,
		ConflictingEOF:    st.ConflictingEOF,
		BytesStale:        st.BytesStale,
		BytesBeyondWindow: st.BytesBeyondWindow,
		BytesStored:       st.BytesStored,
		BytesAssembled:    st.BytesAssembled,
		BytesPending:      pending,
	}
}
