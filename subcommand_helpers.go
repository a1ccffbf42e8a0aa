package main

import (
	"errors"
	"fmt"
	"image/color"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/makeworld-the-better-one/indexed/indexed"
	"github.com/makeworld-the-better-one/indexed/palette"
	"github.com/makeworld-the-better-one/indexed/pipeline"
	"github.com/makeworld-the-better-one/indexed/pixbuf"
	"github.com/makeworld-the-better-one/indexed/store"
)

// parsePercentArg takes a string like "0.5" or "50%" and returns 0.5 for
// both. An empty string returns 0.
func parsePercentArg(arg string, maxOne bool) (float64, error) {
	if arg == "" {
		return 0, nil
	}
	percent := strings.HasSuffix(arg, "%")
	f64, err := strconv.ParseFloat(strings.TrimSuffix(arg, "%"), 64)
	if err != nil {
		return 0, err
	}
	if percent {
		f64 /= 100.0
	}
	if maxOne && (f64 < -1 || f64 > 1) {
		return 0, fmt.Errorf("%s is outside the range -100%% to 100%%", arg)
	}
	return f64, nil
}

// expandGlobs expands every argument containing a '*'. Other arguments are
// kept as they are.
func expandGlobs(args []string) ([]string, error) {
	paths := make([]string, 0, len(args))
	for _, path := range args {
		if !strings.Contains(path, "*") {
			paths = append(paths, path)
			continue
		}
		matches, err := filepath.Glob(path)
		if err != nil {
			return nil, fmt.Errorf("bad glob pattern '%s': %w", path, err)
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}

// loadInput decodes an input image. "-" reads from stdin.
func loadInput(path string) (*pixbuf.Buffer, error) {
	if path == "-" {
		return pixbuf.Decode(os.Stdin, "stdin", autoOrient)
	}
	return pixbuf.Load(path, autoOrient)
}

// outputFormat accepts the extensions of formats that can store a palette.
func outputFormat(ext string) (imaging.Format, error) {
	f, err := imaging.FormatFromExtension(ext)
	if err != nil || f == imaging.JPEG {
		return 0, fmt.Errorf(unsupportedFormat, ext)
	}
	return f, nil
}

// outputPaths names the output of every input as <name>_indexed.<ext>, in dir
// or next to the input if dir is empty. A suffix _1, _2... is added until the
// path neither exists nor was handed out to an earlier input, so images of a
// batch never overwrite each other.
func outputPaths(inputs []string, dir, ext string) []string {
	taken := make(map[string]struct{}, len(inputs))
	paths := make([]string, len(inputs))

	for i, in := range inputs {
		d := dir
		if d == "" {
			d = filepath.Dir(in)
		}
		name := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
		if in == "-" {
			name = "stdin"
		}
		base := name + "_indexed"

		path := filepath.Join(d, base+"."+ext)
		for n := 1; ; n++ {
			_, used := taken[path]
			_, err := os.Stat(path)
			if !used && errors.Is(err, os.ErrNotExist) {
				break
			}
			path = filepath.Join(d, fmt.Sprintf("%s_%d.%s", base, n, ext))
		}

		taken[path] = struct{}{}
		paths[i] = path
	}
	return paths
}

// singleOutputPath is where a command working on one input writes.
func singleOutputPath(in string) string {
	if outPath != "" && !outIsDir {
		return outPath
	}
	return outputPaths([]string{in}, outPath, outExt)[0]
}

// gifPalette is the palette of m with the transparent indices cleared, so
// transparent pixels map back onto them when the GIF is drawn.
func gifPalette(m *indexed.Image, transparent []int) color.Palette {
	p := m.Palette().ColorPalette()
	for _, i := range transparent {
		if m.Palette().Valid(i) {
			p[i] = color.NRGBA{}
		}
	}
	return p
}

func writeResult(res *pipeline.Result, path string) error {
	opts := []imaging.EncodeOption{imaging.PNGCompressionLevel(pngLevel)}

	if res.Transparent != nil && strings.EqualFold(filepath.Ext(path), ".gif") {
		// Keep the palette instead of letting the GIF encoder build a new one
		opts = append(opts,
			imaging.GIFNumColors(palette.MaxColors),
			imaging.GIFQuantizer(&fakeQuantizer{gifPalette(res.Image, cfg.Transparent)}),
			imaging.GIFDrawer(draw.Src),
		)
	}

	return pixbuf.Save(res.Output(), path, !overwrite, opts...)
}

// printPalette lists the palette entries used by m, with their pixel counts.
func printPalette(m *indexed.Image) {
	hist := m.Histogram()
	for _, i := range m.UsedIndices() {
		c := m.Palette().At(i)
		fmt.Printf("%3d  #%02x%02x%02x%02x  %d\n", i, c.R, c.G, c.B, c.A, hist[i])
	}
}

// resolvePalette turns the --palette flag into a palette. It returns a nil
// palette if none was given, meaning one should be derived. The returned
// edits are the ones to apply: a stored palette brings its own, and edits
// from the command line take precedence over them.
func resolvePalette(buf *pixbuf.Buffer) (*palette.Palette, palette.Mapping, error) {
	switch {
	case paletteArg == "":
		return nil, cfg.Edits, nil

	case paletteArg == "sample":
		pal, err := palette.Sample(buf, cfg.Colors)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("sampled palette", "colors", pal.Used())
		return pal, cfg.Edits, nil

	case strings.HasPrefix(paletteArg, "@"):
		return storedPalette(strings.TrimPrefix(paletteArg, "@"))

	case strings.EqualFold(filepath.Ext(paletteArg), ".pal"):
		pal, err := readPaletteFile(paletteArg)
		return pal, cfg.Edits, err
	}

	colors, err := palette.ParseColors(paletteArg)
	if err != nil {
		return nil, nil, fmt.Errorf("palette: %w", err)
	}
	pal, err := palette.New(colors)
	if err != nil {
		return nil, nil, fmt.Errorf("palette: %w", err)
	}
	return pal, cfg.Edits, nil
}

func storedPalette(name string) (*palette.Palette, palette.Mapping, error) {
	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	defer db.Close()

	pal, edits, err := db.Load(name)
	if err != nil {
		return nil, nil, err
	}
	if edits == nil {
		edits = make(palette.Mapping)
	}
	maps.Copy(edits, cfg.Edits)
	return pal, edits, nil
}

func readPaletteFile(path string) (*palette.Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pal, err := palette.ReadRIFF(f)
	if err != nil {
		return nil, fmt.Errorf("'%s': %w", path, err)
	}
	return pal, nil
}

func openDB() (*store.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}
	return store.Open(dbPath)
}
