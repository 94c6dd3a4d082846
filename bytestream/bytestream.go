// Package bytestream implements a bounded, flow-controlled byte pipe.
//
// A ByteStream has a fixed capacity and a close/finish lifecycle. The
// producer pushes through a Writer view and the consumer drains through a
// Reader view. Every operation is total over its input: oversized pushes are
// truncated to the available capacity, oversized pops are clamped to the
// buffered length, and pushes after Close are ignored.
//
// A ByteStream is not safe for concurrent use. The producer and consumer may
// be different roles, but calls must be serialized by the caller.
package bytestream

import (
	"fmt"
	"io"
)

// ByteStream is a fixed-capacity single-producer/single-consumer byte pipe.
//
// Buffered bytes live in buf[head:tail]. Pushes append at tail and compact
// the live region to the front of buf when the tail would overflow; pops
// advance head. buf never grows past capacity.
type ByteStream struct {
	capacity uint64
	buf      []byte
	head     int
	tail     int

	closed   bool
	finished bool

	pushed uint64
	popped uint64

	reader Reader
	writer Writer
}

// New creates a ByteStream holding at most capacity bytes.
// Panics if capacity is zero.
func New(capacity uint64) *ByteStream {
	if capacity == 0 {
		panic("bytestream: capacity must be positive")
	}
	s := &ByteStream{
		capacity: capacity,
		buf:      make([]byte, capacity),
	}
	s.reader = Reader{s: s}
	s.writer = Writer{s: s}
	return s
}

// Capacity returns the fixed capacity of the stream.
func (s *ByteStream) Capacity() uint64 {
	return s.capacity
}

// Reader returns the consumer view of the stream.
func (s *ByteStream) Reader() *Reader {
	return &s.reader
}

// Writer returns the producer view of the stream.
func (s *ByteStream) Writer() *Writer {
	return &s.writer
}

func (s *ByteStream) buffered() uint64 {
	return uint64(s.tail - s.head)
}

// checkInvariants panics if the buffer accounting is inconsistent.
// A failure here is a bug in this package, never a caller error.
func (s *ByteStream) checkInvariants() {
	n := s.buffered()
	if n > s.capacity {
		panic(fmt.Sprintf("bytestream: buffered %d exceeds capacity %d", n, s.capacity))
	}
	if s.pushed-s.popped != n {
		panic(fmt.Sprintf("bytestream: pushed %d - popped %d != buffered %d", s.pushed, s.popped, n))
	}
	if s.finished && (!s.closed || n != 0) {
		panic("bytestream: finished stream must be closed and empty")
	}
}

// Writer is the producer view of a ByteStream.
type Writer struct {
	s *ByteStream
}

// Push appends as much of data as fits in the available capacity.
// Bytes beyond the available capacity are silently discarded; callers that
// care consult AvailableCapacity first. Push is a no-op on a closed stream or
// an empty slice. The stream copies data; the caller keeps ownership.
func (w *Writer) Push(data []byte) {
	s := w.s
	if s.closed || len(data) == 0 {
		return
	}

	avail := w.AvailableCapacity()
	if avail == 0 {
		return
	}
	if uint64(len(data)) > avail {
		data = data[:avail]
	}

	if s.tail+len(data) > len(s.buf) {
		n := copy(s.buf, s.buf[s.head:s.tail])
		s.head, s.tail = 0, n
	}
	s.tail += copy(s.buf[s.tail:], data)
	s.pushed += uint64(len(data))

	s.checkInvariants()
}

// Close signals that nothing more will be written.
// If the buffer is already empty the stream becomes finished immediately.
// Close is idempotent.
func (w *Writer) Close() {
	s := w.s
	s.closed = true
	if s.buffered() == 0 {
		s.finished = true
	}
}

// IsClosed reports whether Close has been called.
func (w *Writer) IsClosed() bool {
	return w.s.closed
}

// AvailableCapacity returns how many bytes can be pushed right now.
func (w *Writer) AvailableCapacity() uint64 {
	return w.s.capacity - w.s.buffered()
}

// BytesPushed returns the cumulative number of bytes accepted by Push.
func (w *Writer) BytesPushed() uint64 {
	return w.s.pushed
}

// Reader is the consumer view of a ByteStream.
type Reader struct {
	s *ByteStream
}

// Peek returns every buffered byte as one contiguous read-only view.
// The view aliases the stream's storage and is only valid until the next
// Push, Pop or WriteTo. Returns nil if the stream is finished or empty.
func (r *Reader) Peek() []byte {
	s := r.s
	if s.finished || s.head == s.tail {
		return nil
	}
	return s.buf[s.head:s.tail:s.tail]
}

// Pop removes up to n bytes from the front of the buffer.
// n larger than the buffered length is clamped. If the stream is closed and
// the buffer becomes empty, the stream becomes finished.
func (r *Reader) Pop(n uint64) {
	s := r.s
	if s.finished || s.head == s.tail {
		return
	}

	if buffered := s.buffered(); n > buffered {
		n = buffered
	}
	s.head += int(n)
	s.popped += n

	if s.head == s.tail {
		s.head, s.tail = 0, 0
		if s.closed {
			s.finished = true
		}
	}

	s.checkInvariants()
}

// WriteTo drains every buffered byte into w, popping only what w accepted.
// It implements io.WriterTo. It never blocks waiting for more data: once
// the buffer is empty it returns, whether or not the stream is finished.
func (r *Reader) WriteTo(w io.Writer) (int64, error) {
	return r.WriteChunk(w, 0)
}

// WriteChunk performs one write of at most limit buffered bytes into w and
// pops what w accepted. A zero limit writes everything buffered.
func (r *Reader) WriteChunk(w io.Writer, limit uint64) (int64, error) {
	view := r.Peek()
	if len(view) == 0 {
		return 0, nil
	}
	if limit > 0 && uint64(len(view)) > limit {
		view = view[:limit]
	}
	n, err := w.Write(view)
	if n > 0 {
		r.Pop(uint64(n))
	}
	if err == nil && n < len(view) {
		err = io.ErrShortWrite
	}
	return int64(n), err
}

// IsFinished reports whether the stream is closed and fully drained.
func (r *Reader) IsFinished() bool {
	return r.s.finished
}

// BytesBuffered returns the number of bytes pushed but not yet popped.
func (r *Reader) BytesBuffered() uint64 {
	return r.s.buffered()
}

// BytesPopped returns the cumulative number of bytes popped.
func (r *Reader) BytesPopped() uint64 {
	return r.s.popped
}

// Verify Reader implements io.WriterTo.
var _ io.WriterTo = (*Reader)(nil)
