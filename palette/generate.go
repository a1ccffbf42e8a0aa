package palette

import (
	"image/color"

	"github.com/ericpauley/go-quantize/quantize"

	"github.com/makeworld-the-better-one/indexed/pixbuf"
)

// Generate derives a palette of exactly n realized entries from buf.
//
// A coarse median cut palette of n+1 colors is computed without any
// dithering. Pure black and repeated colors are dropped from it, and the
// first n survivors are kept. If fewer than n remain, more entries are made
// by adding 1 to each channel of the last one (saturating at 255). The extra
// coarse color is there to make up for a dropped black entry.
//
// The result only depends on the pixels of buf.
func Generate(buf *pixbuf.Buffer, n int) (*Palette, error) {
	if err := CheckCount(n); err != nil {
		return nil, err
	}
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	q := quantize.MedianCutQuantizer{}
	coarse := q.Quantize(make(color.Palette, 0, n+1), buf.Opaque())

	colors := make([]color.NRGBA, 0, n)
	seen := make(map[color.NRGBA]struct{}, n)
	for _, c := range coarse {
		nc := color.NRGBAModel.Convert(c).(color.NRGBA)
		nc.A = 0xff
		if nc.R == 0 && nc.G == 0 && nc.B == 0 {
			continue
		}
		if _, ok := seen[nc]; ok {
			continue
		}
		seen[nc] = struct{}{}
		colors = append(colors, nc)
		if len(colors) == n {
			break
		}
	}

	for len(colors) < n {
		// Black if nothing was collected, so the first made up entry is 1,1,1
		last := color.NRGBA{A: 0xff}
		if len(colors) > 0 {
			last = colors[len(colors)-1]
		}
		colors = append(colors, color.NRGBA{inc(last.R), inc(last.G), inc(last.B), 0xff})
	}

	return New(colors)
}

func inc(v uint8) uint8 {
	if v == 0xff {
		return v
	}
	return v + 1
}
