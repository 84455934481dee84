package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"fundus-viewer/internal/fundus"
	"fundus-viewer/internal/viewer"
)

type ExportCmd struct {
	flags        *Flags
	input        string
	segmentation string
	output       string
	opts         viewer.RenderOptions
}

// NewExportCmd creates the headless export command.
func NewExportCmd(flags *Flags) *ExportCmd {
	return &ExportCmd{flags: flags}
}

// Register adds the export command to the application.
func (cmd *ExportCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "export",
		Usage:     "Render an image to PNG without opening a window",
		UsageText: "fundus-viewer export --input eye.tif [options]",
		Description: `Renders an image the way the viewer shows it and writes a PNG.

By default the image is fitted to a --width x --height viewport. With
--flatten the visible layers are flattened at the base image resolution,
which is the same output the viewer's save button produces.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "base image",
				Required:    true,
				Destination: &cmd.input,
			},
			&cli.StringFlag{
				Name:        "segmentation",
				Aliases:     []string{"s"},
				Usage:       "segmentation overlay",
				Destination: &cmd.segmentation,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "output PNG, - for stdout",
				Value:       "-",
				Destination: &cmd.output,
			},
			&cli.IntFlag{
				Name:        "width",
				Usage:       "viewport width in pixels",
				Value:       1024,
				Destination: &cmd.opts.Width,
			},
			&cli.IntFlag{
				Name:        "height",
				Usage:       "viewport height in pixels",
				Value:       768,
				Destination: &cmd.opts.Height,
			},
			&cli.BoolFlag{
				Name:        "flatten",
				Usage:       "flatten layers at base resolution",
				Destination: &cmd.opts.Flatten,
			},
			&cli.BoolFlag{
				Name:        "grayscale",
				Usage:       "render the base image in grayscale",
				Destination: &cmd.opts.Grayscale,
			},
			&cli.FloatFlag{
				Name:        "window",
				Usage:       "display window (0 keeps the default)",
				Destination: &cmd.opts.Window,
			},
			&cli.FloatFlag{
				Name:        "level",
				Usage:       "display level, used with --window",
				Value:       fundus.DefaultLevel,
				Destination: &cmd.opts.Level,
			},
			&cli.BoolFlag{
				Name:        "auto",
				Usage:       "pick window and level from the image histogram",
				Destination: &cmd.opts.AutoWindowLevel,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ExportCmd) run(ctx context.Context, c *cli.Command) error {
	img, err := fundus.Load(cmd.input, cmd.segmentation)
	if err != nil {
		return fmt.Errorf("load %s: %w", cmd.input, err)
	}

	data, err := viewer.Render(img, cmd.opts, cmd.flags.Config, log.Logger)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	if err := writeOutput(cmd.output, c.Root().Writer, data); err != nil {
		return err
	}
	log.Info().Str("input", cmd.input).Str("output", cmd.output).Int("bytes", len(data)).Msg("exported")
	return nil
}

// writeOutput writes data to path, or to stdout when path is "-".
func writeOutput(path string, stdout io.Writer, data []byte) error {
	if path == "-" {
		if _, err := stdout.Write(data); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
