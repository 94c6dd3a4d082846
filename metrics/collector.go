// Package metrics provides per-session metrics collection.
//
// The Collector accumulates counters during a single session. It is a leaf
// package with no internal dependencies. Reassembly counters are absorbed
// from the reassembler's cumulative stats at session end rather than
// recorded live, avoiding double-counting.
package metrics

import "sync"

// Reassembly mirrors the reassembler's cumulative counters. It is declared
// here so this package stays free of dependencies on the core packages.
type Reassembly struct {
	SegmentsInserted  uint64 `json:"segments_inserted"`
	TerminalSegments  uint64 `json:"terminal_segments"`
	ConflictingEOF    uint64 `json:"conflicting_eof"`
	BytesStale        uint64 `json:"bytes_stale"`
	BytesBeyondWindow uint64 `json:"bytes_beyond_window"`
	BytesStored       uint64 `json:"bytes_stored"`
	BytesAssembled    uint64 `json:"bytes_assembled"`
	BytesPending      uint64 `json:"bytes_pending"`
}

// Snapshot is an immutable point-in-time view of all session metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Session lifecycle
	SessionsStarted   int64            `json:"sessions_started"`
	SessionsByOutcome map[string]int64 `json:"sessions_by_outcome"`

	// Frames
	FramesRead        int64 `json:"frames_read"`
	SegmentFrames     int64 `json:"segment_frames"`
	StreamEndFrames   int64 `json:"stream_end_frames"`
	FrameDecodeErrors int64 `json:"frame_decode_errors"`
	ForeignSegments   int64 `json:"foreign_segments"`

	// Output
	BytesDelivered    int64 `json:"bytes_delivered"`
	OutputWriteErrors int64 `json:"output_write_errors"`

	// Reassembly (absorbed at session end)
	Reassembly Reassembly `json:"reassembly"`

	// Lode / Storage
	LodeWriteSuccess int64 `json:"lode_write_success"`
	LodeWriteFailure int64 `json:"lode_write_failure"`

	// Adapter
	AdapterPublishSuccess int64 `json:"adapter_publish_success"`
	AdapterPublishFailure int64 `json:"adapter_publish_failure"`

	// Dimensions (informational, set at construction)
	SessionID      string `json:"session_id"`
	StreamID       string `json:"stream_id"`
	StorageBackend string `json:"storage_backend"`
	Capacity       uint64 `json:"capacity"`
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	sessionsStarted   int64
	sessionsByOutcome map[string]int64

	framesRead        int64
	segmentFrames     int64
	streamEndFrames   int64
	frameDecodeErrors int64
	foreignSegments   int64

	bytesDelivered    int64
	outputWriteErrors int64

	reassembly Reassembly

	lodeWriteSuccess int64
	lodeWriteFailure int64

	adapterPublishSuccess int64
	adapterPublishFailure int64

	sessionID      string
	streamID       string
	storageBackend string
	capacity       uint64
}

// NewCollector creates a Collector with dimension labels.
// storageBackend is empty when the session does not persist.
func NewCollector(sessionID, streamID, storageBackend string, capacity uint64) *Collector {
	return &Collector{
		sessionsByOutcome: make(map[string]int64),
		sessionID:         sessionID,
		streamID:          streamID,
		storageBackend:    storageBackend,
		capacity:          capacity,
	}
}

// --- Session lifecycle ---

// IncSessionStarted records a session start.
func (c *Collector) IncSessionStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsStarted++
	c.mu.Unlock()
}

// IncOutcome records a session end with the given outcome status.
func (c *Collector) IncOutcome(status string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsByOutcome[status]++
	c.mu.Unlock()
}

// --- Frames ---

// IncFrameRead records a frame read off the wire, whatever its type.
func (c *Collector) IncFrameRead() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesRead++
	c.mu.Unlock()
}

// IncSegmentFrame records a decoded segment frame.
func (c *Collector) IncSegmentFrame() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.segmentFrames++
	c.mu.Unlock()
}

// IncStreamEndFrame records a decoded stream_end frame.
func (c *Collector) IncStreamEndFrame() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.streamEndFrames++
	c.mu.Unlock()
}

// IncFrameDecodeErrors records a frame that could not be read or decoded.
func (c *Collector) IncFrameDecodeErrors() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.frameDecodeErrors++
	c.mu.Unlock()
}

// IncForeignSegment records a segment whose stream ID did not match.
func (c *Collector) IncForeignSegment() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.foreignSegments++
	c.mu.Unlock()
}

// --- Output ---

// AddBytesDelivered records bytes drained to the output writer.
func (c *Collector) AddBytesDelivered(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.bytesDelivered += n
	c.mu.Unlock()
}

// IncOutputWriteErrors records a failed write to the output.
func (c *Collector) IncOutputWriteErrors() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.outputWriteErrors++
	c.mu.Unlock()
}

// --- Lode / Storage ---
// Lode counters are per-call, not per-record.

// IncLodeWriteSuccess records a successful Lode write operation (per-call).
func (c *Collector) IncLodeWriteSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lodeWriteSuccess++
	c.mu.Unlock()
}

// IncLodeWriteFailure records a failed Lode write operation (per-call).
func (c *Collector) IncLodeWriteFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lodeWriteFailure++
	c.mu.Unlock()
}

// --- Adapter ---

// IncAdapterPublishSuccess records a delivered completion event.
func (c *Collector) IncAdapterPublishSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.adapterPublishSuccess++
	c.mu.Unlock()
}

// IncAdapterPublishFailure records a completion event that could not be
// delivered after retries.
func (c *Collector) IncAdapterPublishFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.adapterPublishFailure++
	c.mu.Unlock()
}

// --- Reassembly (absorbed) ---

// AbsorbReassembly copies the reassembler's counters into the collector.
// Called once after the session ends with the final stats.
func (c *Collector) AbsorbReassembly(r Reassembly) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.reassembly = r
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	outcomes := make(map[string]int64, len(c.sessionsByOutcome))
	for k, v := range c.sessionsByOutcome {
		outcomes[k] = v
	}

	return Snapshot{
		SessionsStarted:   c.sessionsStarted,
		SessionsByOutcome: outcomes,

		FramesRead:        c.framesRead,
		SegmentFrames:     c.segmentFrames,
		StreamEndFrames:   c.streamEndFrames,
		FrameDecodeErrors: c.frameDecodeErrors,
		ForeignSegments:   c.foreignSegments,

		BytesDelivered:    c.bytesDelivered,
		OutputWriteErrors: c.outputWriteErrors,

		Reassembly: c.reassembly,

		LodeWriteSuccess: c.lodeWriteSuccess,
		LodeWriteFailure: c.lodeWriteFailure,

		AdapterPublishSuccess: c.adapterPublishSuccess,
		AdapterPublishFailure: c.adapterPublishFailure,

		SessionID:      c.sessionID,
		StreamID:       c.streamID,
		StorageBackend: c.storageBackend,
		Capacity:       c.capacity,
	}
}
