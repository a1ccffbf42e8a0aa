package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/makeworld-the-better-one/indexed/batch"
	"github.com/makeworld-the-better-one/indexed/indexed"
	"github.com/makeworld-the-better-one/indexed/palette"
	"github.com/makeworld-the-better-one/indexed/pipeline"
	"github.com/makeworld-the-better-one/indexed/pixbuf"
	"github.com/makeworld-the-better-one/indexed/quantize"
	"github.com/makeworld-the-better-one/indexed/resample"
)

const (
	unsupportedFormat string = "'%s' is an unsupported format, only 'png', 'gif', 'bmp' or 'tiff' keep a palette"
)

var (
	logger *slog.Logger

	// cfg is shared by every command. It's set after pre-processing.
	cfg pipeline.Config

	// paletteArg is the raw --palette value. It is resolved per command since
	// "sample" needs an input image.
	paletteArg string

	autoOrient bool

	outPath   string
	outIsDir  bool
	outExt    string // Without the dot
	pngLevel  png.CompressionLevel
	overwrite bool

	workers int
	dbPath  string
)

// preProcess is automatically called by the app before anything else.
// It's run in the global context.
func preProcess(c *cli.Context) error {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	workers = int(c.Uint("threads"))
	if workers > 0 {
		runtime.GOMAXPROCS(workers)
	}

	var err error

	cfg = pipeline.Config{Colors: int(c.Uint("colors"))}

	cfg.Quantize.Dither = c.Bool("dither")
	cfg.Quantize.Serpentine = c.Bool("serpentine")
	cfg.Quantize.Matrix, err = quantize.ParseMatrix(c.String("matrix"))
	if err != nil {
		return fmt.Errorf("matrix: %w", err)
	}
	strength, err := parsePercentArg(c.String("strength"), true)
	if err != nil {
		return fmt.Errorf("strength: %w", err)
	}
	cfg.Quantize.Strength = float32(strength)
	if (cfg.Quantize.Matrix != nil || cfg.Quantize.Strength != 0) && !cfg.Quantize.Dither {
		logger.Warn("--matrix and --strength have no effect without --dither")
	}

	if s := c.String("downscale"); s != "" {
		cfg.Downscale, err = resampleSpec(resample.Downscale, s, c.String("down-kernel"), false)
		if err != nil {
			return fmt.Errorf("downscale: %w", err)
		}
	}
	if s := c.String("upscale"); s != "" {
		cfg.Upscale, err = resampleSpec(resample.Upscale, s, c.String("up-kernel"), c.Bool("redither"))
		if err != nil {
			return fmt.Errorf("upscale: %w", err)
		}
	} else if c.Bool("redither") {
		return errors.New("--redither needs --upscale")
	}

	if s := c.String("edit"); s != "" {
		cfg.Edits, err = palette.ParseMapping(palette.SplitArgs([]string{s}, " "))
		if err != nil {
			return fmt.Errorf("edit: %w", err)
		}
	}
	if s := c.String("transparent"); s != "" {
		cfg.Transparent, err = palette.ParseIndices([]string{s})
		if err != nil {
			return fmt.Errorf("transparent: %w", err)
		}
	}

	if err := cfg.Validate(false); err != nil {
		return err
	}

	paletteArg = strings.TrimSpace(c.String("palette"))
	if paletteArg == "" {
		if err := palette.CheckCount(cfg.Colors); err != nil {
			return err
		}
	}

	autoOrient = !c.Bool("no-exif-rotation")
	overwrite = !c.Bool("no-overwrite")
	dbPath = c.String("db")

	// Figure out output format

	formatVal := strings.ToLower(c.String("format"))
	if _, err := outputFormat(formatVal); err != nil {
		return err
	}
	outExt = formatVal

	outPath = c.String("out")
	if outPath != "" {
		outFI, err := os.Stat(outPath)
		if err == nil && outFI.IsDir() {
			// Exists and is a directory
			// Just use what the flag is
			outIsDir = true
		} else if !c.IsSet("format") {
			// Format wasn't set, so ignore default value of "png"
			// Try to figure out format from output filename
			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(outPath), "."))
			if ext == "" {
				outPath += "." + outExt
			} else if _, err := outputFormat(ext); err != nil {
				return err
			} else {
				outExt = ext
			}
		} else if !strings.EqualFold(strings.TrimPrefix(filepath.Ext(outPath), "."), outExt) {
			return fmt.Errorf("output file '%s' doesn't match format '%s'", outPath, outExt)
		}
	}

	// Set PNG compression type

	switch c.String("compression") {
	case "default":
		pngLevel = png.DefaultCompression
	case "no":
		pngLevel = png.NoCompression
	case "speed":
		pngLevel = png.BestSpeed
	case "size":
		pngLevel = png.BestCompression
	default:
		return fmt.Errorf("invalid compression type '%s'", c.String("compression"))
	}

	return nil
}

func resampleSpec(phase resample.Phase, target, kernel string, redither bool) (*resample.Spec, error) {
	t, err := resample.ParseTarget(target)
	if err != nil {
		return nil, err
	}
	k, err := resample.ParseKernel(kernel)
	if err != nil {
		return nil, err
	}
	spec := &resample.Spec{Phase: phase, Target: t, Kernel: k, Redither: redither}
	return spec, spec.Validate()
}

func convert(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("convert needs exactly one image")
	}
	in := c.Args().First()

	buf, err := loadInput(in)
	if err != nil {
		return err
	}

	ref, edits, err := resolvePalette(buf)
	if err != nil {
		return err
	}
	if ref == nil {
		ref, err = pipeline.Reference(buf, cfg)
		if err != nil {
			return err
		}
	}
	runCfg := cfg
	runCfg.Edits = edits

	res, err := pipeline.Replay(buf, ref, runCfg, logger.With("image", in))
	if err != nil {
		return err
	}

	path := singleOutputPath(in)
	if err := writeResult(res, path); err != nil {
		return err
	}
	logger.Info("wrote image", "path", path, "colors", res.Image.Palette().Used())
	printPalette(res.Image)

	if name := c.String("save"); name != "" {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Save(name, ref, edits); err != nil {
			return fmt.Errorf("saving palette '%s': %w", name, err)
		}
		logger.Info("stored palette", "name", name)
	}
	return nil
}

func batchCmd(c *cli.Context) error {
	inputs, err := expandGlobs(c.Args().Slice())
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return errors.New("no input images")
	}
	if outPath != "" && !outIsDir && len(inputs) > 1 {
		return fmt.Errorf("multiple input images need an existing output directory, '%s' is not one", outPath)
	}

	set := 0
	for _, v := range []string{c.String("reference"), c.String("use"), paletteArg} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return errors.New("only one of --reference, --use and --palette can be given")
	}

	var ref *palette.Palette
	edits := cfg.Edits
	switch {
	case c.String("reference") != "":
		buf, err := pixbuf.Load(c.String("reference"), autoOrient)
		if err != nil {
			return err
		}
		ref, err = pipeline.Reference(buf, cfg)
		if err != nil {
			return err
		}
	case c.String("use") != "":
		ref, edits, err = storedPalette(c.String("use"))
		if err != nil {
			return err
		}
	case paletteArg != "":
		first, err := pixbuf.Load(inputs[0], autoOrient)
		if err != nil {
			return err
		}
		ref, edits, err = resolvePalette(first)
		if err != nil {
			return err
		}
	}

	var paths []string
	if outPath != "" && !outIsDir {
		paths = []string{outPath}
	} else {
		paths = outputPaths(inputs, outPath, outExt)
	}

	items := make([]batch.Item, len(inputs))
	for i, in := range inputs {
		items[i] = batch.FileItem(in, autoOrient)
	}

	runCfg := cfg
	runCfg.Edits = edits

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := batch.Process(ctx, items, batch.Options{
		Config:    runCfg,
		Reference: ref,
		Workers:   workers,
		Output: func(r batch.Result) error {
			return writeResult(r.Result, paths[r.Index])
		},
		Progress: func(done, total int) {
			logger.Info("progress", "done", done, "total", total, "percent", done*100/total)
		},
	}, logger)

	for _, r := range results {
		if r.Err != nil {
			logger.Error("failed", "image", r.ID, "err", r.Err)
			continue
		}
		logger.Debug("wrote image", "image", r.ID, "path", paths[r.Index], "mode", r.Mode.String())
	}
	return err
}

func recolorCmd(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("recolor needs exactly one indexed image")
	}
	in := c.Args().First()
	if len(cfg.Edits) == 0 && cfg.Upscale == nil && len(cfg.Transparent) == 0 {
		return errors.New("nothing to do, give --edit, --upscale or --transparent")
	}

	m, err := loadIndexed(in)
	if err != nil {
		return err
	}
	res, err := pipeline.Recolor(m, cfg, logger.With("image", in))
	if err != nil {
		return err
	}

	path := singleOutputPath(in)
	if err := writeResult(res, path); err != nil {
		return err
	}
	logger.Info("wrote image", "path", path)
	return nil
}

func transparentCmd(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("transparent needs exactly one indexed image")
	}
	if len(cfg.Transparent) == 0 {
		return errors.New("no indices given, use --transparent")
	}
	in := c.Args().First()

	m, err := loadIndexed(in)
	if err != nil {
		return err
	}
	res := &pipeline.Result{
		Image:       m,
		Transparent: indexed.MakeTransparent(m, cfg.Transparent, logger.With("image", in)),
	}

	path := singleOutputPath(in)
	if err := writeResult(res, path); err != nil {
		return err
	}
	logger.Info("wrote image", "path", path)
	return nil
}

func paletteShow(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("palette show needs exactly one indexed image")
	}
	m, err := loadIndexed(c.Args().First())
	if err != nil {
		return err
	}
	printPalette(m)
	return nil
}

func paletteExport(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return errors.New("palette export needs an indexed image and an output file")
	}
	m, err := loadIndexed(c.Args().Get(0))
	if err != nil {
		return err
	}

	path := c.Args().Get(1)
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return fmt.Errorf("'%s': %w", path, err)
	}
	if err := palette.WriteRIFF(file, m.Palette()); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func paletteSave(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return errors.New("palette save needs a name and an image or .pal file")
	}
	name, in := c.Args().Get(0), c.Args().Get(1)

	var (
		ref   *palette.Palette
		edits = cfg.Edits
		err   error
	)
	if strings.EqualFold(filepath.Ext(in), ".pal") {
		ref, err = readPaletteFile(in)
	} else {
		var buf *pixbuf.Buffer
		buf, err = pixbuf.Load(in, autoOrient)
		if err != nil {
			return err
		}
		ref, edits, err = resolvePalette(buf)
		if err == nil && ref == nil {
			ref, err = pipeline.Reference(buf, cfg)
		}
	}
	if err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Save(name, ref, edits); err != nil {
		return err
	}
	logger.Info("stored palette", "name", name, "colors", ref.Used(), "edits", len(edits))
	return nil
}

func paletteList(c *cli.Context) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s\t%d colors\t%d edits\n", e.Name, e.Colors, e.Edits)
	}
	return nil
}

func paletteDelete(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("palette delete needs exactly one name")
	}
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Delete(c.Args().First())
}

// loadIndexed decodes a paletted image file without converting it.
func loadIndexed(path string) (*indexed.Image, error) {
	img, err := pixbuf.Open(path)
	if err != nil {
		return nil, err
	}
	pm, ok := img.(*image.Paletted)
	if !ok {
		return nil, fmt.Errorf("'%s' is not an indexed image", path)
	}
	m, err := indexed.FromPaletted(pm)
	if err != nil {
		return nil, fmt.Errorf("'%s': %w", path, err)
	}
	return m, nil
}
