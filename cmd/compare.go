package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/achilleasa/raystream/asset"
	"github.com/achilleasa/raystream/raylog"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Verify a primary/verify stream pair or, with --runs, diff the verify
// streams of two runs.
func CompareLogs(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 2 {
		return errors.New("expected two ray log file arguments")
	}

	width := ctx.Int("width")
	resA, err := asset.NewResource(ctx.Args().Get(0), nil)
	if err != nil {
		return err
	}
	defer resA.Close()

	resB, err := asset.NewResource(ctx.Args().Get(1), nil)
	if err != nil {
		return err
	}
	defer resB.Close()

	if ctx.Bool("runs") {
		return compareRuns(ctx, resA.Path(), resB.Path(), resA, resB, width)
	}

	report, err := raylog.ComparePairs(resA, resB, width)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Width", "Records", "Intersect", "Occluded", "Active rays", "Hits"})
	table.Append([]string{
		fmt.Sprintf("%d", report.Width),
		fmt.Sprintf("%d", report.Records),
		fmt.Sprintf("%d", report.Intersect),
		fmt.Sprintf("%d", report.Occluded),
		fmt.Sprintf("%d", report.ActiveRays),
		fmt.Sprintf("%d", report.Hits),
	})
	table.Render()

	logger.Noticef(`"%s" and "%s" are consistent`+"\n%s", resA.Path(), resB.Path(), buf.String())
	return nil
}

func compareRuns(ctx *cli.Context, pathA, pathB string, a, b io.Reader, width int) error {
	diff, err := raylog.CompareRuns(a, b, width, float32(ctx.Float64("epsilon")))
	if err != nil {
		return err
	}

	if len(diff.Mismatches) == 0 {
		logger.Noticef(`compared %d records; "%s" and "%s" report identical hits`, diff.Records, pathA, pathB)
		return nil
	}

	maxShown := ctx.Int("max-mismatches")
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Record", "Lane", "Field", "First run", "Second run"})
	for index, m := range diff.Mismatches {
		if index == maxShown {
			break
		}
		table.Append([]string{
			fmt.Sprintf("%d", m.Record),
			fmt.Sprintf("%d", m.Lane),
			m.Field,
			m.A,
			m.B,
		})
	}
	table.Render()

	logger.Warningf("found %d mismatches in %d records\n%s", len(diff.Mismatches), diff.Records, buf.String())
	return fmt.Errorf("runs differ in %d lane fields", len(diff.Mismatches))
}
