// Fundus Viewer - view, adjust and annotate retinal fundus photographs.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"fundus-viewer/internal/commands"
	"fundus-viewer/internal/config"
	"fundus-viewer/internal/version"
	"fundus-viewer/pkg/logutils"
)

func main() {
	ctx := context.Background()

	var logCloser func()

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "fundus-viewer",
		Usage:     "View, adjust and annotate retinal fundus photographs",
		UsageText: "fundus-viewer [global options] [command] [image]",
		Description: `Fundus Viewer shows a fundus photograph with its vessel segmentation and
freehand annotations, with pan, zoom, brush and window/level tools.

Run 'fundus-viewer [image]' to open the viewer.
Run 'fundus-viewer export' or 'fundus-viewer segment' for headless use.`,
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("FUNDUS_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to stderr)",
				Sources:     cli.EnvVars("FUNDUS_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("FUNDUS_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, closer, err := logutils.New(flags.LogLevel, flags.LogFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			log.Debug().Str("config", flags.ConfigPath).Str("version", version.Version).Msg("starting")
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	viewCmd := commands.NewViewCmd(flags)

	app = viewCmd.Register(app)
	app = commands.NewExportCmd(flags).Register(app)
	app = commands.NewSegmentCmd(flags).Register(app)

	// The viewer is the default action, so its flags also live on the root.
	app.Flags = append(app.Flags, viewCmd.Flags()...)
	app.Action = viewCmd.Run

	exitCode := 0
	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
