// Package traffic generates adversarial segment frame streams for testing
// reassembly: overlapping cuts, local reordering, duplicates and an
// optional in-order retransmit pass.
package traffic

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/hby-star/minnow/ipc"
	"github.com/hby-star/minnow/types"
)

// DefaultSegmentSize is the segment size used when Options.SegmentSize is 0.
const DefaultSegmentSize = 1024

// Options controls how a payload is cut and shuffled.
type Options struct {
	// StreamID is stamped on every frame.
	StreamID string
	// SegmentSize is the maximum data length of one segment.
	SegmentSize int
	// Overlap is how many bytes each segment repeats from its predecessor.
	// Must be smaller than SegmentSize.
	Overlap int
	// ReorderWindow bounds how far the shuffle may pull a segment forward.
	// 0 and 1 keep the cut order.
	ReorderWindow int
	// DuplicateRate is the probability in [0, 1] that a segment is sent twice.
	DuplicateRate float64
	// Retransmit appends every segment again, in order, after the shuffled
	// pass. A receiver whose window is at least SegmentSize then always
	// completes.
	Retransmit bool
	// StreamEnd appends a stream_end frame declaring the payload length.
	StreamEnd bool
	// Seed makes the output reproducible.
	Seed uint64
}

// Validate checks option ranges.
func (o *Options) Validate() error {
	var errs []error
	if o.SegmentSize < 0 || o.SegmentSize > ipc.MaxSegmentSize {
		errs = append(errs, fmt.Errorf("segment size must be in [0, %d] (0 = default), got %d", ipc.MaxSegmentSize, o.SegmentSize))
	}
	if o.Overlap < 0 || o.Overlap >= o.segmentSize() {
		errs = append(errs, fmt.Errorf("overlap must be in [0, segment size), got %d", o.Overlap))
	}
	if o.ReorderWindow < 0 {
		errs = append(errs, fmt.Errorf("reorder window must be >= 0, got %d", o.ReorderWindow))
	}
	if o.DuplicateRate < 0 || o.DuplicateRate > 1 {
		errs = append(errs, fmt.Errorf("duplicate rate must be in [0, 1], got %g", o.DuplicateRate))
	}
	return errors.Join(errs...)
}

func (o *Options) segmentSize() int {
	if o.SegmentSize == 0 {
		return DefaultSegmentSize
	}
	return o.SegmentSize
}

// Plan is a generated frame sequence.
type Plan struct {
	Segments  []*types.SegmentFrame
	StreamEnd *types.StreamEndFrame
	// Cuts is the number of distinct segments before duplication.
	Cuts int
	// Duplicates is the number of extra copies added.
	Duplicates int
}

// Generate cuts data into segment frames according to opts.
// Segments reference data; callers must not modify it while the plan is
// in use.
func Generate(data []byte, opts Options) (*Plan, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	cuts := cut(data, opts.StreamID, opts.segmentSize(), opts.Overlap)
	plan := &Plan{Cuts: len(cuts)}

	frames := make([]*types.SegmentFrame, 0, len(cuts))
	for _, seg := range cuts {
		frames = append(frames, seg)
		if opts.DuplicateRate > 0 && rng.Float64() < opts.DuplicateRate {
			frames = append(frames, seg)
			plan.Duplicates++
		}
	}
	shuffleWindowed(rng, frames, opts.ReorderWindow)

	if opts.Retransmit {
		frames = append(frames, cuts...)
	}
	plan.Segments = frames

	if opts.StreamEnd {
		plan.StreamEnd = types.NewStreamEndFrame(opts.StreamID, uint64(len(data)))
	}
	return plan, nil
}

// cut splits data into segments of at most size bytes, each starting
// overlap bytes before the end of its predecessor. The segment reaching the
// end of data carries IsLast. Empty data yields one empty last segment.
func cut(data []byte, streamID string, size, overlap int) []*types.SegmentFrame {
	if len(data) == 0 {
		return []*types.SegmentFrame{types.NewSegmentFrame(streamID, 0, nil, true)}
	}

	step := size - overlap
	var segs []*types.SegmentFrame
	for off := 0; ; off += step {
		end := min(off+size, len(data))
		last := end == len(data)
		segs = append(segs, types.NewSegmentFrame(streamID, uint64(off), data[off:end], last))
		if last {
			return segs
		}
	}
}

// shuffleWindowed swaps each position with a random later position less
// than window away.
func shuffleWindowed(rng *rand.Rand, frames []*types.SegmentFrame, window int) {
	if window <= 1 {
		return
	}
	for i := range frames {
		span := min(window, len(frames)-i)
		j := i + rng.IntN(span)
		frames[i], frames[j] = frames[j], frames[i]
	}
}

// Write encodes the plan to enc: segments first, then the stream_end frame.
func (p *Plan) Write(enc *ipc.FrameEncoder) error {
	for _, seg := range p.Segments {
		if err := enc.WriteSegment(seg); err != nil {
			return fmt.Errorf("write segment at offset %d: %w", seg.Offset, err)
		}
	}
	if p.StreamEnd != nil {
		if err := enc.WriteStreamEnd(p.StreamEnd); err != nil {
			return fmt.Errorf("write stream end: %w", err)
		}
	}
	return nil
}
