// Package quantize maps truecolor rasters onto an existing palette, with or
// without error diffusion dithering.
//
// Only realized palette entries are candidates, and palette alpha is ignored
// while matching. The result depends only on the pixels, the palette and the
// options, so repeated calls give identical index grids.
package quantize

import (
	"image"

	"github.com/makeworld-the-better-one/dither/v2"
	"golang.org/x/image/draw"

	"github.com/makeworld-the-better-one/indexed/indexed"
	"github.com/makeworld-the-better-one/indexed/palette"
	"github.com/makeworld-the-better-one/indexed/pixbuf"
)

// Options controls how pixels are assigned to palette entries.
type Options struct {
	// Dither enables error diffusion. Without it each pixel gets the nearest
	// entry by squared RGB distance and banding is expected.
	Dither bool

	// Matrix is the diffusion matrix. Nil means classic Floyd-Steinberg
	// done in sRGB, anything else is handed to the dither library, which
	// diffuses in linear RGB.
	Matrix dither.ErrorDiffusionMatrix

	// Strength scales Matrix, range [-1, 1]. Zero means 1.
	Strength float32

	// Serpentine alternates the scan direction of each row. Only used with
	// Matrix.
	Serpentine bool
}

// Quantize assigns every pixel of buf to a realized entry of pal. The returned
// image owns a copy of pal.
//
// A palette with fewer realized entries than were asked for is used as it is.
func Quantize(buf *pixbuf.Buffer, pal *palette.Palette, opts Options) (*indexed.Image, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	if pal == nil || pal.Used() == 0 {
		return nil, palette.ErrNoColors
	}

	match := pal.Opaque()
	src := buf.Opaque()
	r := src.Rect

	var pm *image.Paletted
	switch {
	case !opts.Dither || len(match) < 2:
		// Nothing to diffuse towards with a single entry
		pm = image.NewPaletted(r, match)
		draw.Draw(pm, r, src, r.Min, draw.Src)
	case opts.Matrix == nil:
		pm = image.NewPaletted(r, match)
		draw.FloydSteinberg.Draw(pm, r, src, r.Min)
	default:
		strength := opts.Strength
		if strength == 0 {
			strength = 1
		}
		d := dither.NewDitherer(match)
		d.Matrix = dither.ErrorDiffusionStrength(opts.Matrix, strength)
		d.Serpentine = opts.Serpentine
		pm = d.DitherPaletted(src)
	}

	pix := make([]uint8, r.Dx()*r.Dy())
	for y := 0; y < r.Dy(); y++ {
		copy(pix[y*r.Dx():(y+1)*r.Dx()], pm.Pix[pm.PixOffset(r.Min.X, r.Min.Y+y):])
	}
	return indexed.New(r.Dx(), r.Dy(), pix, pal.Clone())
}
