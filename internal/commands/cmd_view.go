package commands

import (
	"context"
	"fmt"
	"time"

	fyneapp "fyne.io/fyne/v2/app"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"fundus-viewer/internal/app"
	"fundus-viewer/internal/segment"
	"fundus-viewer/ui/mainwindow"
	"fundus-viewer/ui/prefs"
)

const appID = "io.github.fundus-viewer"

type ViewCmd struct {
	flags        *Flags
	segmentation string
	watch        bool
}

// NewViewCmd creates the interactive viewer command.
func NewViewCmd(flags *Flags) *ViewCmd {
	return &ViewCmd{flags: flags}
}

// Flags returns the view flags so they can also be set on the root command.
func (cmd *ViewCmd) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "segmentation",
			Aliases:     []string{"s"},
			Usage:       "segmentation overlay for the image",
			Destination: &cmd.segmentation,
		},
		&cli.BoolFlag{
			Name:        "watch",
			Usage:       "offer a restart when the binary is rebuilt",
			Sources:     cli.EnvVars("FUNDUS_WATCH"),
			Destination: &cmd.watch,
		},
	}
}

// Register adds the view command to the application.
func (cmd *ViewCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "view",
		Usage:     "Open images in the viewer",
		UsageText: "fundus-viewer view [options] [image]",
		Description: `Opens the interactive viewer. With an image argument the image is loaded
in the background and shown as soon as it is decoded.

Supported formats: TIFF, PNG and JPEG.`,
		Flags:  cmd.Flags(),
		Action: cmd.Run,
	})

	return app
}

// Run opens the main window and blocks until it is closed.
func (cmd *ViewCmd) Run(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() > 1 {
		return fmt.Errorf("expected at most one image, got %d", c.Args().Len())
	}
	if cmd.segmentation != "" && c.Args().Len() == 0 {
		return fmt.Errorf("--segmentation needs an image")
	}

	a := fyneapp.NewWithID(appID)
	a.Settings().SetTheme(&app.ViewerTheme{})

	session := app.NewSession(log.Logger)
	session.SetSegmenter(segment.Overlay(segment.FromConfig(cmd.flags.Config)))

	p := prefs.Load()
	mw := mainwindow.New(a, session, cmd.flags.Config, p, log.Logger)

	if path := c.Args().First(); path != "" {
		mw.OpenImageWithSegmentation(path, cmd.segmentation)
	}

	if cmd.watch {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		if reloader := app.NewHotReloader(2*time.Second, log.Logger); reloader != nil {
			reloader.OnNewBinary(func() { mw.OfferRestart(reloader) })
			reloader.Start(ctx)
		}
	}

	mw.ShowAndRun()
	return nil
}
