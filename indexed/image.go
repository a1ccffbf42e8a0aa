// Package indexed implements images stored as palette indices: the result of
// quantization, and the thing palette edits and transparency act on.
package indexed

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/makeworld-the-better-one/indexed/palette"
	"github.com/makeworld-the-better-one/indexed/pixbuf"
)

// ErrBadIndex is returned when a pixel references a palette slot that isn't
// realized.
var ErrBadIndex = errors.New("pixel index outside the realized palette")

// Image is a grid of palette indices plus the palette they refer to.
//
// The index grid is never modified after creation. Operations that change
// colors return a new Image that shares the grid.
type Image struct {
	width, height int
	pix           []uint8
	pal           *palette.Palette
}

// New creates an Image from row-major indices. It takes ownership of pix.
// Every index must reference a realized entry of pal.
func New(width, height int, pix []uint8, pal *palette.Palette) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, &pixbuf.InputError{Err: pixbuf.ErrEmpty}
	}
	if len(pix) != width*height {
		return nil, fmt.Errorf("index grid has %d entries, want %dx%d", len(pix), width, height)
	}
	used := pal.Used()
	for _, i := range pix {
		if int(i) >= used {
			return nil, fmt.Errorf("%w: %d, palette has %d entries", ErrBadIndex, i, used)
		}
	}
	return &Image{width: width, height: height, pix: pix, pal: pal}, nil
}

// FromPaletted recovers an Image from a decoded paletted file. Trailing
// palette slots that hold palette.Filler and that no pixel uses are treated as
// unused.
func FromPaletted(pm *image.Paletted) (*Image, error) {
	b := pm.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &pixbuf.InputError{Err: pixbuf.ErrEmpty}
	}
	if len(pm.Palette) == 0 {
		return nil, palette.ErrNoColors
	}

	w, h := b.Dx(), b.Dy()
	pix := make([]uint8, w*h)
	maxIdx := 0
	for y := 0; y < h; y++ {
		row := pm.Pix[pm.PixOffset(b.Min.X, b.Min.Y+y):]
		copy(pix[y*w:(y+1)*w], row[:w])
		for _, i := range row[:w] {
			if int(i) > maxIdx {
				maxIdx = int(i)
			}
		}
	}
	if maxIdx >= len(pm.Palette) {
		return nil, fmt.Errorf("%w: %d, palette has %d entries", ErrBadIndex, maxIdx, len(pm.Palette))
	}

	colors := make([]color.NRGBA, len(pm.Palette))
	for i, c := range pm.Palette {
		colors[i] = color.NRGBAModel.Convert(c).(color.NRGBA)
	}
	used := len(colors)
	for used > maxIdx+1 && colors[used-1] == palette.Filler {
		used--
	}

	pal, err := palette.New(colors[:used])
	if err != nil {
		return nil, err
	}
	return &Image{width: w, height: h, pix: pix, pal: pal}, nil
}

func (m *Image) Width() int {
	return m.width
}

func (m *Image) Height() int {
	return m.height
}

// Palette returns the palette of m. Palettes are not modified in place, so it
// is safe to keep.
func (m *Image) Palette() *palette.Palette {
	return m.pal
}

func (m *Image) ColorIndexAt(x, y int) uint8 {
	return m.pix[y*m.width+x]
}

// Histogram counts the pixels referencing each palette slot.
func (m *Image) Histogram() [palette.MaxColors]int {
	var h [palette.MaxColors]int
	for _, i := range m.pix {
		h[i]++
	}
	return h
}

// UsedIndices returns the indices referenced by at least one pixel, ascending.
func (m *Image) UsedIndices() []int {
	h := m.Histogram()
	var out []int
	for i, n := range h {
		if n > 0 {
			out = append(out, i)
		}
	}
	return out
}

// Paletted returns a copy of m as *image.Paletted, with the full palette table
// including filler slots.
func (m *Image) Paletted() *image.Paletted {
	pm := image.NewPaletted(image.Rect(0, 0, m.width, m.height), m.pal.ColorPalette())
	copy(pm.Pix, m.pix)
	return pm
}

// Truecolor looks every index up in the palette. Pixel alpha is the alpha of
// the palette entry.
func (m *Image) Truecolor() *pixbuf.Buffer {
	img := image.NewNRGBA(image.Rect(0, 0, m.width, m.height))
	for i, idx := range m.pix {
		c := m.pal.At(int(idx))
		img.Pix[i*4+0] = c.R
		img.Pix[i*4+1] = c.G
		img.Pix[i*4+2] = c.B
		img.Pix[i*4+3] = c.A
	}
	buf, _ := pixbuf.Wrap(img)
	return buf
}

// Stretch resizes the index grid to width x height with nearest neighbor
// sampling. Indices are labels, so no other kind of sampling makes sense.
func (m *Image) Stretch(width, height int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, &pixbuf.InputError{Err: pixbuf.ErrEmpty}
	}
	if width == m.width && height == m.height {
		return m, nil
	}

	// The grid is read as a gray plane, so each label comes back unchanged
	// in every color channel.
	labels := &image.Gray{Pix: m.pix, Stride: m.width, Rect: image.Rect(0, 0, m.width, m.height)}
	out := imaging.Resize(labels, width, height, imaging.NearestNeighbor)

	pix := make([]uint8, width*height)
	for i := range pix {
		pix[i] = out.Pix[i*4]
	}
	return &Image{width: width, height: height, pix: pix, pal: m.pal}, nil
}
