package ipc

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/hby-star/minnow/types"
)

// FrameEncoder writes length-prefixed msgpack frames to a stream.
type FrameEncoder struct {
	writer io.Writer
	frames int64
	bytes  int64
}

// NewFrameEncoder creates a new frame encoder.
func NewFrameEncoder(w io.Writer) *FrameEncoder {
	return &FrameEncoder{writer: w}
}

// WriteSegment encodes and writes a segment frame.
// Returns a *FrameError with Kind=FrameErrorTooLarge if the data exceeds
// MaxSegmentSize, or Kind=FrameErrorDecode if the segment end overflows.
func (e *FrameEncoder) WriteSegment(seg *types.SegmentFrame) error {
	if len(seg.Data) > MaxSegmentSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("segment size %d exceeds maximum %d", len(seg.Data), MaxSegmentSize),
		}
	}
	if err := checkSegmentRange(seg); err != nil {
		return err
	}
	return e.writeValue(seg)
}

// WriteStreamEnd encodes and writes a stream end frame.
func (e *FrameEncoder) WriteStreamEnd(end *types.StreamEndFrame) error {
	return e.writeValue(end)
}

// Frames returns the number of frames written.
func (e *FrameEncoder) Frames() int64 {
	return e.frames
}

// BytesWritten returns the number of bytes written, including prefixes.
func (e *FrameEncoder) BytesWritten() int64 {
	return e.bytes
}

func (e *FrameEncoder) writeValue(v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	frame, err := EncodeFrame(payload)
	if err != nil {
		return err
	}
	n, err := e.writer.Write(frame)
	e.bytes += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	e.frames++
	return nil
}

// EncodeFrame prefixes payload with its big-endian length.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf, nil
}
