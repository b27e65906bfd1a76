package main

import (
	"context"
	"os"

	"github.com/Jikexiaobai/Y2B/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: logger,
	})

	app := &cli.Command{
		Name:    "y2b",
		Usage:   "Mirror YouTube channel uploads to Bilibili",
		Version: "1.0.0",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "token"},
			&cli.StringArg{Name: "gistId"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "logLevel",
				Usage: "Log level: debug, info, warn, error",
				Value: "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Select and report pending videos without migrating them",
			},
		},
		Commands: []*cli.Command{initCommand(runner)},
		Action:   runner.Migrate,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}

func initCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write an annotated default config file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Init,
	}
}
