package resample

import (
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/makeworld-the-better-one/indexed/indexed"
	"github.com/makeworld-the-better-one/indexed/pixbuf"
	"github.com/makeworld-the-better-one/indexed/quantize"
)

// Resample resizes a truecolor buffer. It never sees palette indices.
func Resample(buf *pixbuf.Buffer, spec Spec) (*pixbuf.Buffer, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	w, h := spec.Target.Dimensions(buf.Width(), buf.Height())
	if w == buf.Width() && h == buf.Height() {
		return buf, nil
	}
	return pixbuf.Wrap(imaging.Resize(buf.Image(), w, h, spec.Kernel.filter()))
}

// UpscaleIndexed resizes an indexed image.
//
// Without Redither the index grid is stretched with nearest neighbor
// sampling, whatever kernel spec names, since interpolated indices mean
// nothing. With Redither the image is expanded to truecolor, resized with
// the kernel, and quantized with dithering against the palette of img, so
// no new colors appear. q selects the diffusion matrix; its Dither flag is
// ignored.
func UpscaleIndexed(img *indexed.Image, spec Spec, q quantize.Options, logger *slog.Logger) (*indexed.Image, error) {
	if spec.Phase != Upscale {
		return nil, spec.conflict("indexed images can only be upscaled")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	w, h := spec.Target.Dimensions(img.Width(), img.Height())

	if !spec.Redither {
		if spec.Kernel != Nearest {
			logger.Debug("stretching indices with nearest neighbor", "kernel", spec.Kernel.String())
		}
		return img.Stretch(w, h)
	}

	// Alpha from palette edits would bleed into the colors while resizing
	rgb, err := pixbuf.Wrap(img.Truecolor().Opaque())
	if err != nil {
		return nil, err
	}
	stretched, err := pixbuf.Wrap(imaging.Resize(rgb.Image(), w, h, spec.Kernel.filter()))
	if err != nil {
		return nil, err
	}
	q.Dither = true
	return quantize.Quantize(stretched, img.Palette(), q)
}
