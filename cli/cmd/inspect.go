package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/hby-star/minnow/cli/render"
	"github.com/hby-star/minnow/cli/tui"
	"github.com/hby-star/minnow/iox"
	"github.com/hby-star/minnow/session"
)

// InspectCommand returns the inspect command with subcommands.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect session artifacts",
		Subcommands: []*cli.Command{
			inspectReportCommand(),
		},
	}
}

func inspectReportCommand() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Show a session report written by reassemble --report",
		ArgsUsage: "<report.json | ->",
		Flags:     ReadOnlyFlags(),
		Action:    inspectReportAction,
	}
}

func inspectReportAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("report path required", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	in, err := iox.OpenInput(c.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot open report: %v", err), 1)
	}
	defer iox.DiscardClose(in)

	report, err := readReport(in)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectReport, report)
	}
	return r.Render(report)
}

func readReport(r io.Reader) (*session.Report, error) {
	var report session.Report
	if err := json.NewDecoder(r).Decode(&report); err != nil {
		return nil, fmt.Errorf("invalid report JSON: %w", err)
	}
	if report.SessionID == "" {
		return nil, errors.New("report has no session_id")
	}
	return &report, nil
}
