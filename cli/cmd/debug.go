package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/hby-star/minnow/cli/render"
	"github.com/hby-star/minnow/iox"
	"github.com/hby-star/minnow/ipc"
	"github.com/hby-star/minnow/types"
)

// FrameRow describes one decoded frame.
type FrameRow struct {
	Index      int    `json:"index"`
	Type       string `json:"type"`
	StreamID   string `json:"stream_id,omitempty"`
	Offset     uint64 `json:"offset"`
	Length     int    `json:"length"`
	IsLast     bool   `json:"is_last"`
	TotalBytes uint64 `json:"total_bytes,omitempty"`
	Error      string `json:"error,omitempty"`
}

// DebugCommand returns the debug command with subcommands.
// Debug commands are read-only diagnostic tools.
func DebugCommand() *cli.Command {
	return &cli.Command{
		Name:  "debug",
		Usage: "Diagnostic tools (frames)",
		Subcommands: []*cli.Command{
			debugFramesCommand(),
		},
	}
}

func debugFramesCommand() *cli.Command {
	return &cli.Command{
		Name:  "frames",
		Usage: "Decode and list the frames of a frame stream",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Frame stream to read (- for stdin)",
				Value:   iox.StdioPath,
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Stop after this many frames (0 = all)",
			},
		),
		Action: debugFramesAction,
	}
}

func debugFramesAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// TUI not supported for debug commands
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for debug commands", 1)
	}

	in, err := iox.OpenInput(c.String("input"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot open input: %v", err), 1)
	}
	defer iox.DiscardClose(in)

	rows, readErr := readFrameRows(in, c.Int("limit"))
	if err := r.Render(rows); err != nil {
		return err
	}
	if readErr != nil {
		return cli.Exit(fmt.Sprintf("frame stream is corrupt after %d frames: %v", len(rows), readErr), 2)
	}
	return nil
}

// readFrameRows decodes frames until EOF, limit, or a fatal framing error.
// Undecodable payloads become rows with Error set.
func readFrameRows(r io.Reader, limit int) ([]FrameRow, error) {
	dec := ipc.NewFrameDecoder(r)
	rows := []FrameRow{}
	for limit <= 0 || len(rows) < limit {
		payload, err := dec.ReadFrame()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}

		row := FrameRow{Index: len(rows)}
		frame, err := ipc.DecodeFrame(payload)
		if err != nil {
			row.Type = "invalid"
			row.Error = err.Error()
			rows = append(rows, row)
			continue
		}
		switch f := frame.(type) {
		case *types.SegmentFrame:
			row.Type = f.Type
			row.StreamID = f.StreamID
			row.Offset = f.Offset
			row.Length = len(f.Data)
			row.IsLast = f.IsLast
		case *types.StreamEndFrame:
			row.Type = f.Type
			row.StreamID = f.StreamID
			row.TotalBytes = f.TotalBytes
		}
		rows = append(rows, row)
	}
	return rows, nil
}
