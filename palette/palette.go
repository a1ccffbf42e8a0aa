// Package palette implements the color table of an indexed image: how it is
// derived from a truecolor raster, edited, parsed from user input and stored
// in RIFF .pal files.
//
// A Palette always has MaxColors slots. The first Used() slots are realized
// entries that quantization may assign; the rest hold Filler and must never
// be referenced by a pixel.
package palette

import (
	"errors"
	"fmt"
	"image/color"
)

const (
	MinColors = 2
	MaxColors = 256
)

// Filler is the color of unused palette slots. It is deliberately not black,
// so an unused slot can never pass for a dark pixel or a transparency key.
var Filler = color.NRGBA{240, 240, 240, 255}

// ErrNoColors is returned when a palette would have no usable entry.
var ErrNoColors = errors.New("palette has no colors")

// RangeError reports a color count or palette index outside its valid range.
type RangeError struct {
	What  string
	Value int
	Min   int
	Max   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %d is out of range %d-%d", e.What, e.Value, e.Min, e.Max)
}

// CheckCount validates a requested number of palette colors.
func CheckCount(n int) error {
	if n < MinColors || n > MaxColors {
		return &RangeError{What: "color count", Value: n, Min: MinColors, Max: MaxColors}
	}
	return nil
}

type Palette struct {
	colors [MaxColors]color.NRGBA
	used   int
}

// New creates a palette whose realized entries are colors, in order.
// Remaining slots are set to Filler.
func New(colors []color.NRGBA) (*Palette, error) {
	if len(colors) == 0 {
		return nil, ErrNoColors
	}
	if len(colors) > MaxColors {
		return nil, &RangeError{What: "palette size", Value: len(colors), Min: 1, Max: MaxColors}
	}
	p := &Palette{used: len(colors)}
	copy(p.colors[:], colors)
	for i := len(colors); i < MaxColors; i++ {
		p.colors[i] = Filler
	}
	return p, nil
}

// FromColors is like New, but accepts any color type.
func FromColors(colors []color.Color) (*Palette, error) {
	nc := make([]color.NRGBA, len(colors))
	for i, c := range colors {
		nc[i] = color.NRGBAModel.Convert(c).(color.NRGBA)
	}
	return New(nc)
}

// Len is the size of the full color table, filler slots included.
func (p *Palette) Len() int {
	return MaxColors
}

// Used is the number of realized entries.
func (p *Palette) Used() int {
	return p.used
}

// At returns the color of slot i. It panics if i is not in [0, MaxColors).
func (p *Palette) At(i int) color.NRGBA {
	return p.colors[i]
}

// Valid reports whether i references a realized entry.
func (p *Palette) Valid(i int) bool {
	return i >= 0 && i < p.used
}

// Usable returns a copy of the realized entries.
func (p *Palette) Usable() []color.NRGBA {
	out := make([]color.NRGBA, p.used)
	copy(out, p.colors[:p.used])
	return out
}

// Opaque returns the realized entries with alpha forced to 255. Nearest color
// matching is done against this, so an edited alpha never changes which
// entry a pixel is assigned to.
func (p *Palette) Opaque() color.Palette {
	out := make(color.Palette, p.used)
	for i, c := range p.colors[:p.used] {
		c.A = 0xff
		out[i] = c
	}
	return out
}

// ColorPalette returns the full table, filler slots included, for use with
// *image.Paletted.
func (p *Palette) ColorPalette() color.Palette {
	out := make(color.Palette, MaxColors)
	for i, c := range p.colors {
		out[i] = c
	}
	return out
}

func (p *Palette) Clone() *Palette {
	dup := *p
	return &dup
}

// Equal reports whether both palettes realize the same colors in the same
// slots.
func (p *Palette) Equal(o *Palette) bool {
	if p.used != o.used {
		return false
	}
	return p.colors == o.colors
}

// Edit returns a copy of p with the colors in m written over their slots.
// Indices that don't reference a realized entry are not applied, and are
// returned in ascending order.
func (p *Palette) Edit(m Mapping) (*Palette, []int) {
	dup := p.Clone()
	var skipped []int
	for _, i := range m.Indices() {
		if !p.Valid(i) {
			skipped = append(skipped, i)
			continue
		}
		dup.colors[i] = m[i]
	}
	return dup, skipped
}
