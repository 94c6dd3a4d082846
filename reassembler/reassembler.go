// Package reassembler turns out-of-order, overlapping, indexed byte segments
// into an in-order byte stream.
//
// A Reassembler owns one bytestream.ByteStream. Segments are tagged with the
// absolute offset of their first byte. Bytes that can be delivered in order
// are pushed into the stream immediately; bytes that arrive ahead of a gap
// are held in a fixed-size circular arena until the gap fills; bytes that
// were already delivered, or that lie beyond the acceptance window, are
// discarded. The acceptance window is
//
//	[bytes popped by the consumer, bytes popped + capacity)
//
// so memory never exceeds the stream's capacity no matter what arrives.
//
// Closing: the stream is closed once the end-of-stream offset is known and
// every byte before it has been assembled. The condition is only evaluated
// inside Insert. Draining the stream does not re-evaluate it, so a caller
// waiting on the close after a drain issues an empty Insert.
package reassembler

import (
	"github.com/hby-star/minnow/bytestream"
)

// State is the lifecycle state of a Reassembler.
type State string

// Reassembler states. Transitions only move forward.
const (
	// StateAccepting means the end-of-stream offset is not yet known.
	StateAccepting State = "accepting"
	// StateDraining means the end-of-stream offset is known but bytes before
	// it are still missing or undelivered.
	StateDraining State = "draining"
	// StateClosed means the stream is closed but the consumer has not
	// drained it.
	StateClosed State = "closed"
	// StateFinished means the stream is closed and fully drained.
	StateFinished State = "finished"
)

// WriterView is the read-only part of the producer side of the stream.
// Callers outside the reassembler observe the writer but never push to it.
type WriterView interface {
	IsClosed() bool
	AvailableCapacity() uint64
	BytesPushed() uint64
}

// Stats holds cumulative counters for observation. Stats never influence
// reassembly.
type Stats struct {
	// Segments is the number of Insert calls.
	Segments uint64
	// TerminalSegments is the number of Insert calls flagged as last.
	TerminalSegments uint64
	// ConflictingEOF counts terminal segments whose end offset disagreed
	// with the first observed end-of-stream offset.
	ConflictingEOF uint64
	// BytesStale counts bytes discarded because they were already assembled.
	BytesStale uint64
	// BytesBeyondWindow counts bytes discarded because they lay at or past
	// the end of the acceptance window.
	BytesBeyondWindow uint64
	// BytesStored counts bytes written into the arena, including rewrites
	// of bytes already held.
	BytesStored uint64
	// BytesAssembled counts bytes pushed into the stream.
	BytesAssembled uint64
}

// slot is one arena cell. index is the absolute offset the cell currently
// represents; a cell whose index differs from the queried offset is empty.
type slot struct {
	occupied bool
	index    uint64
	b        byte
}

// Reassembler feeds a ByteStream from indexed segments.
// It is not safe for concurrent use.
type Reassembler struct {
	output *bytestream.ByteStream

	slots   []slot
	scratch []byte

	firstUnassembled uint64

	eofReceived bool
	eofIndex    uint64

	stats Stats
}

// New creates a Reassembler that takes ownership of output. The arena is
// sized to the stream's capacity. Callers reach the stream afterwards only
// through Reader and Writer.
func New(output *bytestream.ByteStream) *Reassembler {
	capacity := output.Capacity()
	return &Reassembler{
		output:  output,
		slots:   make([]slot, capacity),
		scratch: make([]byte, 0, capacity),
	}
}

// Insert offers the segment data starting at absolute offset firstIndex.
// isLast marks data as the final segment of the stream: the byte after it
// is the end-of-stream offset. firstIndex+len(data) must not overflow
// uint64; the frame decoder rejects such segments.
//
// Insert never fails. Stale bytes and bytes beyond the acceptance window are
// dropped, overlapping bytes are merged, and everything that becomes
// contiguous is pushed to the stream before Insert returns.
func (r *Reassembler) Insert(firstIndex uint64, data []byte, isLast bool) {
	r.stats.Segments++
	if isLast {
		r.recordEOF(firstIndex + uint64(len(data)))
	}

	if len(data) == 0 {
		r.closeIfComplete()
		return
	}

	capacity := r.output.Capacity()
	firstUnacceptable := r.output.Reader().BytesPopped() + capacity

	begin := firstIndex
	end := firstIndex + uint64(len(data))

	if end <= r.firstUnassembled {
		r.stats.BytesStale += end - begin
		r.closeIfComplete()
		return
	}
	if begin < r.firstUnassembled {
		r.stats.BytesStale += r.firstUnassembled - begin
		begin = r.firstUnassembled
	}
	if begin >= firstUnacceptable {
		r.stats.BytesBeyondWindow += end - begin
		r.closeIfComplete()
		return
	}
	if end > firstUnacceptable {
		r.stats.BytesBeyondWindow += end - firstUnacceptable
		end = firstUnacceptable
	}

	for idx := begin; idx < end; idx++ {
		s := &r.slots[idx%capacity]
		s.b = data[idx-firstIndex]
		s.index = idx
		s.occupied = true
	}
	r.stats.BytesStored += end - begin

	r.assemble()
	r.closeIfComplete()
}

// recordEOF keeps the first observed end-of-stream offset.
func (r *Reassembler) recordEOF(index uint64) {
	r.stats.TerminalSegments++
	if !r.eofReceived {
		r.eofReceived = true
		r.eofIndex = index
		return
	}
	if index != r.eofIndex {
		r.stats.ConflictingEOF++
	}
}

// has reports whether the arena holds the byte at absolute offset idx.
func (r *Reassembler) has(idx uint64) bool {
	s := &r.slots[idx%uint64(len(r.slots))]
	return s.occupied && s.index == idx
}

// assemble pushes the longest known contiguous run starting at
// firstUnassembled, bounded by the stream's available capacity, and repeats
// until either the stream is full or the next byte is missing.
func (r *Reassembler) assemble() {
	w := r.output.Writer()
	capacity := uint64(len(r.slots))

	for {
		avail := w.AvailableCapacity()
		if w.IsClosed() || avail == 0 || !r.has(r.firstUnassembled) {
			return
		}

		chunk := r.scratch[:0]
		for cur := r.firstUnassembled; uint64(len(chunk)) < avail && r.has(cur); cur++ {
			chunk = append(chunk, r.slots[cur%capacity].b)
		}

		w.Push(chunk)
		for i := range uint64(len(chunk)) {
			r.slots[(r.firstUnassembled+i)%capacity].occupied = false
		}
		r.firstUnassembled += uint64(len(chunk))
		r.stats.BytesAssembled += uint64(len(chunk))
	}
}

// closeIfComplete closes the stream once every byte before the
// end-of-stream offset has been assembled.
func (r *Reassembler) closeIfComplete() {
	if r.eofReceived && r.firstUnassembled >= r.eofIndex {
		r.output.Writer().Close()
	}
}

// BytesPending returns how many bytes the arena holds that are not yet
// assembled and still inside the current acceptance window. It is a pure
// observation and does not change any state.
func (r *Reassembler) BytesPending() uint64 {
	firstUnacceptable := r.output.Reader().BytesPopped() + r.output.Capacity()

	var n uint64
	for i := range r.slots {
		s := &r.slots[i]
		if s.occupied && s.index >= r.firstUnassembled && s.index < firstUnacceptable {
			n++
		}
	}
	return n
}

// Reader returns the consumer view of the output stream.
func (r *Reassembler) Reader() *bytestream.Reader {
	return r.output.Reader()
}

// Writer returns a read-only view of the producer side of the output stream.
func (r *Reassembler) Writer() WriterView {
	return r.output.Writer()
}

// Capacity returns the capacity of the output stream and the arena.
func (r *Reassembler) Capacity() uint64 {
	return r.output.Capacity()
}

// FirstUnassembled returns the absolute offset of the next byte the stream
// is missing.
func (r *Reassembler) FirstUnassembled() uint64 {
	return r.firstUnassembled
}

// EOF returns the end-of-stream offset and whether it is known.
func (r *Reassembler) EOF() (uint64, bool) {
	return r.eofIndex, r.eofReceived
}

// State returns the current lifecycle state.
func (r *Reassembler) State() State {
	switch {
	case r.output.Reader().IsFinished():
		return StateFinished
	case r.output.Writer().IsClosed():
		return StateClosed
	case r.eofReceived:
		return StateDraining
	default:
		return StateAccepting
	}
}

// Stats returns a copy of the cumulative counters.
func (r *Reassembler) Stats() Stats {
	return r.stats
}
