package main

import (
	"image"
	"image/color"
)

// fakeQuantizer implements draw.Quantizer. It ignores the provided image
// and just returns the provided palette each time. The image/gif encoder only
// takes a palette through a draw.Quantizer, and it's used there to write
// transparent results with the palette they came from.
type fakeQuantizer struct {
	p color.Palette
}

func (fq *fakeQuantizer) Quantize(p color.Palette, m image.Image) color.Palette {
	return append(p[:0], fq.p...)
}
