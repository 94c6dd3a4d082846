// Package types defines the wire and outcome types shared across minnow.
//
//nolint:revive // types is a common Go package naming convention
package types

// Frame type discriminants.
const (
	// SegmentType is the type discriminant for segment frames.
	SegmentType = "segment"
	// StreamEndType is the type discriminant for stream end control frames.
	StreamEndType = "stream_end"
)

// SegmentFrame carries one indexed byte range of a stream.
// Discriminated from other frames by Type == "segment".
type SegmentFrame struct {
	// Type is always "segment" for segment frames.
	Type string `msgpack:"type"`
	// StreamID identifies the stream this segment belongs to.
	StreamID string `msgpack:"stream_id"`
	// Offset is the absolute stream offset of the first byte of Data.
	Offset uint64 `msgpack:"offset"`
	// IsLast is true if Data ends the stream.
	IsLast bool `msgpack:"is_last"`
	// Data is the raw segment bytes. May be empty.
	Data []byte `msgpack:"data"`
}

// End returns the offset one past the last byte of the segment.
func (f *SegmentFrame) End() uint64 {
	return f.Offset + uint64(len(f.Data))
}

// StreamEndFrame is a control frame declaring the total stream length.
// It is advisory: the sender's declaration is reconciled against what was
// assembled, it never drives reassembly.
type StreamEndFrame struct {
	// Type is always "stream_end".
	Type string `msgpack:"type"`
	// StreamID identifies the stream.
	StreamID string `msgpack:"stream_id"`
	// TotalBytes is the declared stream length.
	TotalBytes uint64 `msgpack:"total_bytes"`
}

// NewSegmentFrame returns a segment frame with the discriminant set.
func NewSegmentFrame(streamID string, offset uint64, data []byte, isLast bool) *SegmentFrame {
	return &SegmentFrame{
		Type:     SegmentType,
		StreamID: streamID,
		Offset:   offset,
		IsLast:   isLast,
		Data:     data,
	}
}

// NewStreamEndFrame returns a stream end frame with the discriminant set.
func NewStreamEndFrame(streamID string, totalBytes uint64) *StreamEndFrame {
	return &StreamEndFrame{
		Type:       StreamEndType,
		StreamID:   streamID,
		TotalBytes: totalBytes,
	}
}
