// Package main provides the minnow CLI entrypoint.
//
// Usage:
//
//	minnow <command> [subcommand] [options]
//
// Exit codes for `reassemble`:
//   - 0: stream complete
//   - 1: incomplete stream or size mismatch
//   - 2: stream error (corrupt frames, output failure)
//   - 3: invalid configuration
//   - 130: canceled
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/hby-star/minnow/cli/cmd"
	"github.com/hby-star/minnow/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "minnow",
		Usage:          "Bounded-memory stream reassembly",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.ReassembleCommand(),
			cmd.SegmentCommand(),
			cmd.InspectCommand(),
			cmd.StatsCommand(),
			cmd.DebugCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		os.Exit(1)
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from
// cli.Exit so reassemble outcomes reach the shell.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	os.Exit(handleExitErr(err, os.Stderr))
}

// handleExitErr prints err when it carries a message and returns the exit
// code to use.
func handleExitErr(err error, w io.Writer) int {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N"; skip those.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			_, _ = fmt.Fprintln(w, msg)
		}
		return code
	}

	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return 1
}
