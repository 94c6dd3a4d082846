package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hby-star/minnow/cli/render"
	"github.com/hby-star/minnow/iox"
	"github.com/hby-star/minnow/ipc"
	"github.com/hby-star/minnow/traffic"
)

// SegmentResponse summarizes a generated frame stream.
type SegmentResponse struct {
	StreamID     string `json:"stream_id"`
	PayloadBytes int    `json:"payload_bytes"`
	Cuts         int    `json:"cuts"`
	Duplicates   int    `json:"duplicates"`
	Frames       int64  `json:"frames"`
	FrameBytes   int64  `json:"frame_bytes"`
	Seed         uint64 `json:"seed"`
}

// SegmentCommand returns the segment command, a test-traffic generator
// whose output feeds reassemble.
func SegmentCommand() *cli.Command {
	return &cli.Command{
		Name:  "segment",
		Usage: "Cut a payload into shuffled, overlapping, duplicated segment frames",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Payload file (- for stdin)",
				Value:   iox.StdioPath,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Frame stream to write (- for stdout)",
				Value:   iox.StdioPath,
			},
			&cli.StringFlag{
				Name:  "stream-id",
				Usage: "Stream ID stamped on every frame",
				Value: "stream-1",
			},
			&cli.IntFlag{
				Name:  "segment-size",
				Usage: "Maximum bytes per segment",
				Value: traffic.DefaultSegmentSize,
			},
			&cli.IntFlag{
				Name:  "overlap",
				Usage: "Bytes each segment repeats from the previous one",
			},
			&cli.IntFlag{
				Name:  "reorder-window",
				Usage: "Shuffle segments within windows of this many frames (0 = in order)",
			},
			&cli.Float64Flag{
				Name:  "duplicate-rate",
				Usage: "Probability in [0, 1] that a segment is sent twice",
			},
			&cli.BoolFlag{
				Name:  "retransmit",
				Usage: "Append an in-order pass of every segment",
			},
			&cli.BoolFlag{
				Name:  "stream-end",
				Usage: "Append a stream_end frame declaring the payload length",
				Value: true,
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "Random seed (default: time-based)",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Do not print the generation summary on stderr",
			},
		},
		Action: segmentAction,
	}
}

func segmentAction(c *cli.Context) error {
	seed := c.Uint64("seed")
	if !c.IsSet("seed") {
		seed = uint64(time.Now().UnixNano())
	}
	opts := traffic.Options{
		StreamID:      c.String("stream-id"),
		SegmentSize:   c.Int("segment-size"),
		Overlap:       c.Int("overlap"),
		ReorderWindow: c.Int("reorder-window"),
		DuplicateRate: c.Float64("duplicate-rate"),
		Retransmit:    c.Bool("retransmit"),
		StreamEnd:     c.Bool("stream-end"),
		Seed:          seed,
	}
	if err := opts.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid options: %v", err), 1)
	}

	in, err := iox.OpenInput(c.String("input"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot open input: %v", err), 1)
	}
	defer iox.DiscardClose(in)

	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	resp, err := writeSegments(c.String("output"), data, opts)
	if err != nil {
		return err
	}

	if c.Bool("quiet") {
		return nil
	}
	return render.NewRendererWithWriter(render.FormatJSON, os.Stderr).Render(resp)
}

// writeSegments generates the plan for data and encodes it to path.
func writeSegments(path string, data []byte, opts traffic.Options) (*SegmentResponse, error) {
	plan, err := traffic.Generate(data, opts)
	if err != nil {
		return nil, err
	}

	out, err := iox.CreateOutput(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	defer iox.DiscardClose(out)

	enc := ipc.NewFrameEncoder(out)
	if err := plan.Write(enc); err != nil {
		return nil, err
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("close output: %w", err)
	}

	return &SegmentResponse{
		StreamID:     opts.StreamID,
		PayloadBytes: len(data),
		Cuts:         plan.Cuts,
		Duplicates:   plan.Duplicates,
		Frames:       enc.Frames(),
		FrameBytes:   enc.BytesWritten(),
		Seed:         opts.Seed,
	}, nil
}
