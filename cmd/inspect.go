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

// Open a ray log stream and wrap it with a record reader. The caller must
// close the returned resource.
func openRecordStream(path string, width int) (*asset.Resource, *raylog.RecordReader, error) {
	res, err := asset.NewResource(path, nil)
	if err != nil {
		return nil, nil, err
	}

	rr, err := raylog.NewRecordReader(res, width)
	if err != nil {
		res.Close()
		return nil, nil, err
	}
	return res, rr, nil
}

// Summarize the records of a single ray log stream.
func InspectLog(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing ray log file argument")
	}

	width := ctx.Int("width")
	res, rr, err := openRecordStream(ctx.Args().First(), width)
	if err != nil {
		return err
	}
	defer res.Close()

	showRecords := ctx.Int("records")

	var details bytes.Buffer
	var opCount, activeRays [2]int
	for {
		rec, err := rr.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return fmt.Errorf("record %d: %w", rr.Count(), err)
		}

		if int(rec.Op) < len(opCount) {
			opCount[rec.Op]++
			activeRays[rec.Op] += len(rec.ActiveLanes())
		}

		if rr.Count() <= showRecords {
			fmt.Fprintf(&details, "[%d] %s mask=%#x active=%d\n", rr.Count()-1, rec.Op, rec.Mask, rec.ActiveCount)
			for _, lane := range rec.ActiveLanes() {
				ray := rec.Packet.Lane(lane)
				fmt.Fprintf(&details, "  lane %2d org=%v dir=%v tfar=%g geomID=%d primID=%d\n", lane, ray.Org, ray.Dir, ray.TFar, int32(ray.GeomID), int32(ray.PrimID))
			}
		}
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Operation", "Records", "Active rays"})
	for _, op := range []raylog.Operation{raylog.Intersect, raylog.Occluded} {
		table.Append([]string{
			op.String(),
			fmt.Sprintf("%d", opCount[op]),
			fmt.Sprintf("%d", activeRays[op]),
		})
	}
	table.SetFooter([]string{"TOTAL", fmt.Sprintf("%d", rr.Count()), fmt.Sprintf("%d", activeRays[0]+activeRays[1])})
	table.Render()

	logger.Noticef(`ray log "%s" (width %d, %d bytes per record)`+"\n%s%s", res.Path(), width, raylog.RecordSize(width), buf.String(), details.String())
	return nil
}
