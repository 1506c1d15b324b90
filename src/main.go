package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"stem-unmixer/src/lib/cerr"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "unmix",
		Usage: "Extract stems from audio files with the LALAL.AI service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file",
				Sources: cli.EnvVars("UNMIX_CONFIG"),
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "Dotenv files to load before reading the configuration",
				Value: []string{".env"},
			},
		},
		Commands: []*cli.Command{
			splitCommand(),
			workerCommand(),
			enqueueCommand(),
			settingsCommand(),
			configCommand(),
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		cerr.Log(err)
		os.Exit(1)
	}
}
