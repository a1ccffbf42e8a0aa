package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
)

// Set by compiler with -ldflags -X
var (
	version = "v0.1.0"
	commit  = "unknown"
	builtBy = "unknown"
)

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "indexed.db"
	}
	return filepath.Join(dir, "indexed", "palettes.db")
}

func main() {

	app := &cli.App{
		Name:                   "indexed",
		Usage:                  "convert images to indexed color, with palettes that stay consistent across a batch.",
		Description:            "indexed reduces images to a palette of at most 256 colors.\n\nThe palette is derived after any downscaling, so it matches what ends up in the\noutput. A batch can share one reference palette, so an index means the same\ncolor in every image, and palette entries can be edited or made transparent\nafterwards without quantizing again.",
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:    "colors",
				Aliases: []string{"n"},
				Value:   16,
				Usage:   "number of palette colors to derive, 2-256",
			},
			&cli.BoolFlag{
				Name:    "dither",
				Aliases: []string{"d"},
				Usage:   "use error diffusion when quantizing",
			},
			&cli.StringFlag{
				Name:  "matrix",
				Usage: "error diffusion matrix: name, inline JSON or JSON file (default Floyd-Steinberg)",
			},
			&cli.StringFlag{
				Name:    "strength",
				Aliases: []string{"s"},
				Usage:   "error diffusion strength, like 0.8 or 80%",
			},
			&cli.BoolFlag{
				Name:  "serpentine",
				Usage: "alternate the diffusion direction on every row",
			},
			&cli.StringFlag{
				Name:  "downscale",
				Usage: "resize before quantizing: WxH, N% or max=N",
			},
			&cli.StringFlag{
				Name:  "down-kernel",
				Value: "lanczos",
				Usage: "downscale kernel: nearest, bilinear, bicubic or lanczos",
			},
			&cli.StringFlag{
				Name:  "upscale",
				Usage: "resize after quantizing: WxH, N% or max=N",
			},
			&cli.StringFlag{
				Name:  "up-kernel",
				Value: "nearest",
				Usage: "upscale kernel, only used with --redither: nearest, bilinear or bicubic",
			},
			&cli.BoolFlag{
				Name:  "redither",
				Usage: "upscale colors instead of indices, then dither back to the same palette",
			},
			&cli.StringFlag{
				Name:    "edit",
				Aliases: []string{"e"},
				Usage:   "space separated palette edits, like '0=white 3=255,0,0,128'",
			},
			&cli.StringFlag{
				Name:    "transparent",
				Aliases: []string{"t"},
				Usage:   "palette indices to make fully transparent, like '0,4'",
			},
			&cli.StringFlag{
				Name:    "palette",
				Aliases: []string{"p"},
				Usage:   "use this palette instead of deriving one: colors, a .pal file, @name of a stored palette, or 'sample'",
			},
			&cli.StringFlag{
				Name:    "db",
				Value:   defaultDBPath(),
				EnvVars: []string{"INDEXED_DB"},
				Usage:   "palette database",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "output file or existing directory (default next to the input)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "png",
				Usage:   "png, gif, bmp or tiff",
			},
			&cli.StringFlag{
				Name:    "compression",
				Aliases: []string{"c"},
				Value:   "default",
				Usage:   "PNG compression: default, no, speed or size",
			},
			&cli.BoolFlag{
				Name: "no-overwrite",
			},
			&cli.BoolFlag{
				Name: "no-exif-rotation",
			},
			&cli.UintFlag{
				Name:    "threads",
				Aliases: []string{"j"},
			},
			&cli.BoolFlag{
				Name: "verbose",
			},
			&cli.BoolFlag{
				Name:    "version",
				Aliases: []string{"v"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "convert",
				Usage:     "convert one image to indexed color",
				ArgsUsage: "IMAGE (- for stdin)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "save",
						Usage: "store the palette and edits under this name",
					},
				},
				Action: convert,
			},
			{
				Name:      "batch",
				Usage:     "convert many images, sharing one palette if one is given",
				ArgsUsage: "IMAGES...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "reference",
						Usage: "derive the shared palette from this image",
					},
					&cli.StringFlag{
						Name:  "use",
						Usage: "use the stored palette with this name",
					},
				},
				Action: batchCmd,
			},
			{
				Name:      "recolor",
				Usage:     "apply edits, upscaling and transparency to an indexed image",
				ArgsUsage: "INDEXED",
				Action:    recolorCmd,
			},
			{
				Name:      "transparent",
				Usage:     "make palette indices of an indexed image transparent",
				ArgsUsage: "INDEXED",
				Action:    transparentCmd,
			},
			{
				Name:  "palette",
				Usage: "inspect, export and store palettes",
				Subcommands: []*cli.Command{
					{
						Name:      "show",
						Usage:     "list the colors used by an indexed image",
						ArgsUsage: "INDEXED",
						Action:    paletteShow,
					},
					{
						Name:      "export",
						Usage:     "write the palette of an indexed image as a RIFF .pal file",
						ArgsUsage: "INDEXED FILE.pal",
						Action:    paletteExport,
					},
					{
						Name:      "save",
						Usage:     "derive a palette from an image or .pal file and store it with the current edits",
						ArgsUsage: "NAME IMAGE",
						Action:    paletteSave,
					},
					{
						Name:   "list",
						Usage:  "list stored palettes",
						Action: paletteList,
					},
					{
						Name:      "delete",
						Usage:     "delete a stored palette",
						ArgsUsage: "NAME",
						Action:    paletteDelete,
					},
				},
			},
		},
		Before: preProcess,
		Action: func(c *cli.Context) error {
			return errors.New("no command specified")
		},
	}

	// Handle version flag
	if len(os.Args) == 2 && (os.Args[1] == "-v" || os.Args[1] == "--version") {
		fmt.Println("indexed", version)
		fmt.Println("Commit:", commit)
		fmt.Println("Built by:", builtBy)
		return
	}

	err := app.Run(os.Args)
	if err != nil {
		if len(os.Args) == 1 {
			// Just ran the command with no flags
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
