package cmd

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/achilleasa/raystream/asset"
	"github.com/achilleasa/raystream/geometry"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Parse a wavefront scene and write its eligible meshes to a geometry dump.
func DumpGeometry(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing scene file argument")
	}

	opts, err := loadOptions(ctx)
	if err != nil {
		return err
	}
	outFile := ctx.String("out")
	if outFile == "" {
		outFile = opts.GeometryPath()
	}

	sc, err := geometry.ReadWavefront(ctx.Args().First())
	if err != nil {
		return err
	}
	logger.Noticef("scene information:\n%s", sc.Stats())

	stats, err := geometry.Dump(sc, outFile)
	if err != nil {
		return err
	}

	displayDumpStats(outFile, stats)
	return nil
}

func displayDumpStats(outFile string, stats *geometry.DumpStats) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Scene groups", "Meshes", "Vertices", "Triangles", "Padding", "Size"})
	table.Append([]string{
		fmt.Sprintf("%d", stats.SceneGroups),
		fmt.Sprintf("%d", stats.Meshes),
		fmt.Sprintf("%d", stats.Vertices),
		fmt.Sprintf("%d", stats.Triangles),
		fmt.Sprintf("%d", stats.PaddingBytes),
		fmt.Sprintf("%d", stats.Bytes),
	})

	table.Render()
	logger.Noticef(`wrote geometry dump to "%s"`+"\n%s", outFile, buf.String())
}

// Decode and validate a geometry dump and display its contents.
func InspectGeometry(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing geometry dump argument")
	}

	res, err := asset.NewResource(ctx.Args().First(), nil)
	if err != nil {
		return err
	}
	defer res.Close()

	df, err := geometry.ReadDump(res)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Mesh", "Vertices", "Triangles", "Degenerate", "BBox min", "BBox max"})
	for index, mesh := range df.Meshes {
		bbox := mesh.BBox()
		table.Append([]string{
			fmt.Sprintf("%d", index),
			fmt.Sprintf("%d", len(mesh.Vertices)),
			fmt.Sprintf("%d", len(mesh.Triangles)),
			fmt.Sprintf("%d", mesh.DegenerateTriangles()),
			fmt.Sprintf("%v", bbox[0]),
			fmt.Sprintf("%v", bbox[1]),
		})
	}
	table.SetFooter([]string{
		fmt.Sprintf("%d", df.GroupCount),
		"TOTAL",
		fmt.Sprintf("%d", df.TotalTriangles),
		"",
		"SIZE",
		fmt.Sprintf("%d", df.Size),
	})

	table.Render()
	logger.Noticef(`geometry dump "%s"`+"\n%s", res.Path(), buf.String())
	return nil
}
