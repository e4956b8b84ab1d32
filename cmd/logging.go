package cmd

import (
	"github.com/achilleasa/raystream/log"
	"github.com/achilleasa/raystream/raylog"
	"github.com/urfave/cli"
)

var logger = log.New("raystream")

func setupLogging(ctx *cli.Context) {
	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
}

// Build logger options from the global --config and --out-dir flags.
func loadOptions(ctx *cli.Context) (raylog.Options, error) {
	opts := raylog.DefaultOptions()
	if cfgFile := ctx.GlobalString("config"); cfgFile != "" {
		var err error
		if opts, err = raylog.LoadOptions(cfgFile); err != nil {
			return opts, err
		}
		logger.Infof(`loaded options from "%s"`, cfgFile)
	}

	if outDir := ctx.GlobalString("out-dir"); outDir != "" {
		opts.Dir = outDir
	}
	return opts, nil
}
