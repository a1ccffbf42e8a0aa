package indexed

import (
	"image"
	"log/slog"

	"github.com/makeworld-the-better-one/indexed/palette"
	"github.com/makeworld-the-better-one/indexed/pixbuf"
)

// ApplyEdits recolors m by rewriting palette entries. The index grid is
// shared with m, so the cost depends on the size of edits, not on the number
// of pixels, and any dithering pattern is kept as it is.
//
// Edits for indices outside the realized palette are skipped with a warning.
func ApplyEdits(m *Image, edits palette.Mapping, logger *slog.Logger) *Image {
	if len(edits) == 0 {
		return m
	}
	if logger == nil {
		logger = slog.Default()
	}

	pal, skipped := m.pal.Edit(edits)
	for _, i := range skipped {
		logger.Warn("skipping color edit outside the palette", "index", i, "colors", m.pal.Used())
	}
	return &Image{width: m.width, height: m.height, pix: m.pix, pal: pal}
}

// MakeTransparent renders m to truecolor with every pixel whose index is in
// indices fully transparent. Other pixels keep the alpha of their palette
// entry. The result is no longer indexed.
//
// Indices outside the realized palette are skipped with a warning.
func MakeTransparent(m *Image, indices []int, logger *slog.Logger) *pixbuf.Buffer {
	if logger == nil {
		logger = slog.Default()
	}

	var transparent [palette.MaxColors]bool
	for _, i := range indices {
		if !m.pal.Valid(i) {
			logger.Warn("skipping transparent index outside the palette", "index", i, "colors", m.pal.Used())
			continue
		}
		transparent[i] = true
	}

	img := image.NewNRGBA(image.Rect(0, 0, m.width, m.height))
	for i, idx := range m.pix {
		c := m.pal.At(int(idx))
		if transparent[idx] {
			c.A = 0
		}
		img.Pix[i*4+0] = c.R
		img.Pix[i*4+1] = c.G
		img.Pix[i*4+2] = c.B
		img.Pix[i*4+3] = c.A
	}
	buf, _ := pixbuf.Wrap(img)
	return buf
}
