package main

import (
	"os"

	"github.com/achilleasa/raystream/cmd"
	"github.com/achilleasa/raystream/log"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	widthFlag := cli.IntFlag{
		Name:  "width, w",
		Value: 4,
		Usage: "packet width of the ray log (1, 4, 8 or 16)",
	}

	app := cli.NewApp()
	app.Name = "raystream"
	app.Usage = "record, inspect and verify ray packet logs"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "config, c",
			Usage: "load logger options from a yaml file",
		},
		cli.StringFlag{
			Name:  "out-dir",
			Usage: "override the output folder for ray logs and geometry dumps",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "geometry",
			Usage: "create and inspect geometry dumps",
			Subcommands: []cli.Command{
				{
					Name:  "dump",
					Usage: "dump the triangle meshes of a wavefront scene",
					Description: `
Parse a scene definition from a wavefront obj file and write every enabled,
single time step triangle mesh to a binary geometry dump. The dump layout keeps
each mesh block aligned to 16 bytes.`,
					ArgsUsage: "scene_file.obj",
					Flags: []cli.Flag{
						cli.StringFlag{
							Name:  "out, o",
							Usage: "geometry dump filename; defaults to the configured geometry file",
						},
					},
					Action: cmd.DumpGeometry,
				},
				{
					Name:      "inspect",
					Usage:     "validate a geometry dump and display its meshes",
					ArgsUsage: "geometry.bin[.zst]",
					Action:    cmd.InspectGeometry,
				},
			},
		},
		{
			Name:      "inspect",
			Usage:     "summarize the records of a ray log",
			ArgsUsage: "ray_log.bin[.zst]",
			Flags: []cli.Flag{
				widthFlag,
				cli.IntFlag{
					Name:  "records, n",
					Value: 0,
					Usage: "display the active lanes of the first N records",
				},
			},
			Action: cmd.InspectLog,
		},
		{
			Name:  "compare",
			Usage: "verify a primary/verify log pair or diff two runs",
			Description: `
By default the two arguments are the primary and verify streams of a single run.
Both streams must contain the same number of records and each pair of records
must carry the same operation and validity mask.

With --runs the arguments are the verify streams of two runs over the same
query sequence and the hit data of active lanes is compared.`,
			ArgsUsage: "ray_log_a.bin[.zst] ray_log_b.bin[.zst]",
			Flags: []cli.Flag{
				widthFlag,
				cli.BoolFlag{
					Name:  "runs",
					Usage: "compare the verify streams of two runs",
				},
				cli.Float64Flag{
					Name:  "epsilon",
					Value: 1e-4,
					Usage: "max difference for floating point hit data",
				},
				cli.IntFlag{
					Name:  "max-mismatches",
					Value: 50,
					Usage: "max number of mismatches to display",
				},
			},
			Action: cmd.CompareLogs,
		},
		{
			Name:      "archive",
			Usage:     "compress the ray logs and geometry dumps in a folder",
			ArgsUsage: "log_folder",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "remove",
					Usage: "remove the uncompressed files",
				},
			},
			Action: cmd.ArchiveLogs,
		},
		{
			Name:  "stress",
			Usage: "log synthetic queries from concurrent workers and verify the output",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "workers",
					Value: 8,
					Usage: "number of concurrent workers",
				},
				cli.IntFlag{
					Name:  "queries",
					Value: 1000,
					Usage: "number of queries per worker",
				},
				cli.StringFlag{
					Name:  "scene",
					Usage: "dump the geometry of a wavefront scene before logging",
				},
			},
			Action: cmd.StressLogger,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.New("raystream").Error(err)
		os.Exit(1)
	}
}
