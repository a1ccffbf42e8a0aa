// Package pipeline runs the full sequence for one image: optional
// downscale, palette, quantization, palette edits, optional upscale and
// optional transparency.
//
// Everything the run depends on is passed in through Config; nothing is kept
// between calls, so calls for different images may run concurrently.
package pipeline

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/makeworld-the-better-one/indexed/indexed"
	"github.com/makeworld-the-better-one/indexed/palette"
	"github.com/makeworld-the-better-one/indexed/pixbuf"
	"github.com/makeworld-the-better-one/indexed/quantize"
	"github.com/makeworld-the-better-one/indexed/resample"
)

type Config struct {
	// Colors is the number of palette entries to derive, 2-256. Not used
	// when a palette is supplied.
	Colors int

	Quantize quantize.Options

	// Downscale, if set, must be in the Downscale phase.
	Downscale *resample.Spec
	// Upscale, if set, must be in the Upscale phase.
	Upscale *resample.Spec

	// Edits are applied after quantization. Indices outside the palette
	// are skipped with a warning.
	Edits palette.Mapping

	// Transparent indices make the result a truecolor image with alpha.
	Transparent []int
}

// Validate checks everything that can be checked before touching pixels.
// Colors is only checked if generate is set.
func (c Config) Validate(generate bool) error {
	if generate {
		if err := palette.CheckCount(c.Colors); err != nil {
			return err
		}
	}
	if c.Downscale != nil {
		if c.Downscale.Phase != resample.Downscale {
			return &resample.ConfigConflictError{Phase: c.Downscale.Phase, Kernel: c.Downscale.Kernel, Reason: "downscale step must use the downscale phase"}
		}
		if err := c.Downscale.Validate(); err != nil {
			return err
		}
	}
	if c.Upscale != nil {
		if c.Upscale.Phase != resample.Upscale {
			return &resample.ConfigConflictError{Phase: c.Upscale.Phase, Kernel: c.Upscale.Kernel, Reason: "upscale step must use the upscale phase"}
		}
		if err := c.Upscale.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Result is the outcome for one image.
type Result struct {
	// Image is the indexed result, after edits and upscaling.
	Image *indexed.Image
	// Transparent is set when Config.Transparent is not empty. It replaces
	// Image as the final output.
	Transparent *pixbuf.Buffer
}

// Output returns the image that should be written out.
func (r *Result) Output() image.Image {
	if r.Transparent != nil {
		return r.Transparent.Image()
	}
	return r.Image.Paletted()
}

// Prepare applies the downscale step, if any.
func Prepare(buf *pixbuf.Buffer, cfg Config) (*pixbuf.Buffer, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	if cfg.Downscale == nil {
		return buf, nil
	}
	out, err := resample.Resample(buf, *cfg.Downscale)
	if err != nil {
		return nil, fmt.Errorf("downscale: %w", err)
	}
	return out, nil
}

// Reference derives the palette of buf as Run would, after downscaling.
func Reference(buf *pixbuf.Buffer, cfg Config) (*palette.Palette, error) {
	if err := cfg.Validate(true); err != nil {
		return nil, err
	}
	prepared, err := Prepare(buf, cfg)
	if err != nil {
		return nil, err
	}
	return palette.Generate(prepared, cfg.Colors)
}

// Run processes buf with a palette derived from buf itself.
func Run(buf *pixbuf.Buffer, cfg Config, logger *slog.Logger) (*Result, error) {
	if err := cfg.Validate(true); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	prepared, err := Prepare(buf, cfg)
	if err != nil {
		return nil, err
	}
	if buf.HasAlpha() {
		logger.Debug("input alpha is ignored when matching colors")
	}
	pal, err := palette.Generate(prepared, cfg.Colors)
	if err != nil {
		return nil, err
	}
	logger.Debug("generated palette", "colors", pal.Used(), "width", prepared.Width(), "height", prepared.Height())
	return finish(prepared, pal, cfg, logger)
}

// Replay processes buf against pal instead of deriving a palette, so index k
// means the same color in every image replayed against pal. A palette with
// fewer entries than cfg.Colors is used as it is.
func Replay(buf *pixbuf.Buffer, pal *palette.Palette, cfg Config, logger *slog.Logger) (*Result, error) {
	if err := cfg.Validate(false); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	prepared, err := Prepare(buf, cfg)
	if err != nil {
		return nil, err
	}
	if buf.HasAlpha() {
		logger.Debug("input alpha is ignored when matching colors")
	}
	return finish(prepared, pal, cfg, logger)
}

func finish(buf *pixbuf.Buffer, pal *palette.Palette, cfg Config, logger *slog.Logger) (*Result, error) {
	m, err := quantize.Quantize(buf, pal, cfg.Quantize)
	if err != nil {
		return nil, err
	}
	return Recolor(m, cfg, logger)
}

// Recolor runs the steps that follow quantization on an existing indexed
// image: edits, upscale and transparency.
func Recolor(m *indexed.Image, cfg Config, logger *slog.Logger) (*Result, error) {
	if err := cfg.Validate(false); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	m = indexed.ApplyEdits(m, cfg.Edits, logger)

	if cfg.Upscale != nil {
		var err error
		m, err = resample.UpscaleIndexed(m, *cfg.Upscale, cfg.Quantize, logger)
		if err != nil {
			return nil, fmt.Errorf("upscale: %w", err)
		}
	}

	res := &Result{Image: m}
	if len(cfg.Transparent) > 0 {
		res.Transparent = indexed.MakeTransparent(m, cfg.Transparent, logger)
	}
	return res, nil
}
