package main

import (
	"context"
	"fmt"
	"os"

	"stem-unmixer/src/application"
	"stem-unmixer/src/application/config"
	"stem-unmixer/src/application/jobs/extract"
	"stem-unmixer/src/application/progress"
	"stem-unmixer/src/application/publish"
	"stem-unmixer/src/application/settings"
	"stem-unmixer/src/lib/cerr"
	"stem-unmixer/src/lib/env"

	"github.com/apex/log"
	"github.com/streadway/amqp"
	"github.com/urfave/cli/v3"
)

func loadConfig(cmd *cli.Command) (config.Config, error) {
	if err := env.LoadDotEnv(cmd.StringSlice("env-file")...); err != nil {
		return config.Config{}, cerr.Wrap(err).Error("Failed to load dotenv files")
	}

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return config.Config{}, err
	}

	// progress lines own stdout, logs go to stderr
	if err := application.SetupLogging(cfg.Log, os.Stderr); err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}

func requestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "input",
			Aliases:  []string{"i"},
			Usage:    "Audio file to unmix",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:  "stems",
			Usage: "Stems to extract: vocals, drum, bass, piano, electric_guitar, acoustic_guitar, synthesizer, voice, strings, wind",
		},
		&cli.StringSliceFlag{
			Name:  "backing-tracks",
			Usage: "Stems whose backing track (everything but the stem) should be downloaded too",
		},
		&cli.StringFlag{
			Name:  "filter",
			Usage: "Processing level: 0 (mild), 1 (normal) or 2 (aggressive)",
		},
		&cli.StringFlag{
			Name:  "splitter",
			Usage: "Neural network: phoenix or cassiopeia",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Directory the stems are written to",
		},
		&cli.StringFlag{
			Name:  "license",
			Usage: "LALAL.AI license key",
		},
	}
}

func jobParamsFromFlags(cmd *cli.Command, runID string) extract.JobParams {
	params := extract.JobParams{
		InputPath:     cmd.String("input"),
		OutputDir:     cmd.String("output"),
		Stems:         cmd.StringSlice("stems"),
		BackingTracks: cmd.StringSlice("backing-tracks"),
		Filter:        cmd.String("filter"),
		Splitter:      cmd.String("splitter"),
		License:       cmd.String("license"),
	}
	params.RunID = runID

	return params
}

// storedDefaults reads the settings with a handle that lives for this call
// only, layering the configured license under anything saved.
func storedDefaults(ctx context.Context, cfg config.Config) (settings.Defaults, error) {
	store, err := settings.Open(cfg.Settings.Path)
	if err != nil {
		return settings.Defaults{}, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			cerr.Log(err)
		}
	}()

	defaults, err := store.Defaults(ctx)
	if err != nil {
		return settings.Defaults{}, err
	}

	if defaults.License == "" {
		defaults.License = cfg.Lalalai.License
	}

	return defaults, nil
}

func splitCommand() *cli.Command {
	return &cli.Command{
		Name:  "split",
		Usage: "Upload a file, split it and download the stems, printing progress lines to stdout",
		Flags: requestFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			defaults, err := storedDefaults(ctx, cfg)
			if err != nil {
				return err
			}

			request, err := extract.RequestFromParams(jobParamsFromFlags(cmd, ""), defaults)
			if err != nil {
				return err
			}

			orchestrator := application.NewOrchestrator(cfg)
			result, err := orchestrator.Run(ctx, request, progress.NewLineSink(os.Stdout))
			if err != nil {
				return err
			}

			log.WithFields(log.Fields{
				"fileID":    result.FileID,
				"artifacts": len(result.Artifacts),
			}).Info("Done")
			return nil
		},
	}
}

func workerCommand() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Consume extract jobs from RabbitMQ",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			app, err := application.NewApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			app.Start(ctx)
			return nil
		},
	}
}

func enqueueCommand() *cli.Command {
	return &cli.Command{
		Name:  "enqueue",
		Usage: "Record a run and queue it for a worker, printing the run ID",
		Flags: requestFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			conn, err := amqp.Dial(cfg.RabbitMQ.URL)
			if err != nil {
				return cerr.Wrap(err).Error("Failed to connect to RabbitMQ")
			}
			defer conn.Close()

			publisher, err := publish.NewRabbitMQPublisher(conn, cfg.RabbitMQ.Queue)
			if err != nil {
				return err
			}
			defer publisher.Close()

			runID, err := application.Enqueue(ctx, cfg, application.NewRunStore(cfg), publisher, jobParamsFromFlags(cmd, ""))
			if err != nil {
				return err
			}

			fmt.Println(runID)
			return nil
		},
	}
}

func settingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Read or change the saved defaults",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Print a saved value: api_key, output_dir, filter or splitter",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "key"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}

					key, err := settings.ConvertToKey(cmd.StringArg("key"))
					if err != nil {
						return err
					}

					store, err := settings.Open(cfg.Settings.Path)
					if err != nil {
						return err
					}
					defer store.Close()

					value, found, err := store.Get(ctx, key)
					if err != nil {
						return err
					}
					if !found {
						return cerr.Field("key", key).Error("Nothing saved for this key")
					}

					fmt.Println(value)
					return nil
				},
			},
			{
				Name:  "set",
				Usage: "Validate and save a value",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "key"},
					&cli.StringArg{Name: "value"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}

					key, err := settings.ConvertToKey(cmd.StringArg("key"))
					if err != nil {
						return err
					}

					store, err := settings.Open(cfg.Settings.Path)
					if err != nil {
						return err
					}
					defer store.Close()

					return store.Set(ctx, key, cmd.StringArg("value"))
				},
			},
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the configuration file",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write the example configuration",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path", Value: "config.toml"},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					path := cmd.StringArg("path")
					if err := config.CreateFile(path); err != nil {
						return err
					}

					fmt.Println(path)
					return nil
				},
			},
		},
	}
}
