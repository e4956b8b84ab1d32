package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/achilleasa/raystream/asset"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Compress the ray logs and geometry dumps in a folder.
func ArchiveLogs(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing log folder argument")
	}

	files, err := filepath.Glob(filepath.Join(ctx.Args().First(), "*.bin"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Warningf(`no log files found in "%s"`, ctx.Args().First())
		return nil
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"File", "Size", "Compressed", "Ratio"})

	var totalRaw, totalPacked int64
	for _, file := range files {
		rawBytes, packedBytes, err := asset.CompressFile(file, file+asset.CompressedSuffix)
		if err != nil {
			return err
		}

		if ctx.Bool("remove") {
			if err = os.Remove(file); err != nil {
				return err
			}
		}

		totalRaw += rawBytes
		totalPacked += packedBytes
		table.Append([]string{
			filepath.Base(file),
			fmt.Sprintf("%d", rawBytes),
			fmt.Sprintf("%d", packedBytes),
			ratio(rawBytes, packedBytes),
		})
	}
	table.SetFooter([]string{"TOTAL", fmt.Sprintf("%d", totalRaw), fmt.Sprintf("%d", totalPacked), ratio(totalRaw, totalPacked)})

	table.Render()
	logger.Noticef("archived %d files\n%s", len(files), buf.String())
	return nil
}

func ratio(rawBytes, packedBytes int64) string {
	if packedBytes == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2fx", float64(rawBytes)/float64(packedBytes))
}
