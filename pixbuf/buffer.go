// Package pixbuf holds the truecolor rasters every other stage reads from,
// plus the codec glue that loads and saves them.
//
// A Buffer is immutable once created. Functions that need a modified raster
// make their own copy.
package pixbuf

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ErrEmpty is returned for nil images and images with a zero dimension.
var ErrEmpty = errors.New("image is empty or has a zero dimension")

// InputError reports an image that could not be turned into a Buffer.
// Source is the path or identifier of the image, if known.
type InputError struct {
	Source string
	Err    error
}

func (e *InputError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("bad input image: %v", e.Err)
	}
	return fmt.Sprintf("bad input image '%s': %v", e.Source, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// Buffer is a truecolor raster with its origin at (0, 0).
type Buffer struct {
	img *image.NRGBA
}

// New copies img into a new Buffer.
func New(img image.Image) (*Buffer, error) {
	if img == nil {
		return nil, &InputError{Err: ErrEmpty}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &InputError{Err: ErrEmpty}
	}
	// Clone also moves the origin to (0, 0)
	return &Buffer{img: imaging.Clone(img)}, nil
}

// Wrap takes ownership of img without copying it. The caller must not modify
// img afterwards.
func Wrap(img *image.NRGBA) (*Buffer, error) {
	if img == nil {
		return nil, &InputError{Err: ErrEmpty}
	}
	if img.Rect.Dx() <= 0 || img.Rect.Dy() <= 0 {
		return nil, &InputError{Err: ErrEmpty}
	}
	if img.Rect.Min != (image.Point{}) || img.Stride != 4*img.Rect.Dx() {
		return New(img)
	}
	return &Buffer{img: img}, nil
}

// Validate reports an InputError for a nil or zero-value Buffer. Buffers
// made by New or Wrap are always valid.
func (b *Buffer) Validate() error {
	if b == nil || b.img == nil || b.img.Rect.Empty() {
		return &InputError{Err: ErrEmpty}
	}
	return nil
}

func (b *Buffer) Width() int {
	return b.img.Rect.Dx()
}

func (b *Buffer) Height() int {
	return b.img.Rect.Dy()
}

func (b *Buffer) Bounds() image.Rectangle {
	return b.img.Rect
}

// At returns the non-premultiplied color at (x, y).
func (b *Buffer) At(x, y int) color.NRGBA {
	return b.img.NRGBAAt(x, y)
}

// Image returns the underlying raster. It must be treated as read-only.
func (b *Buffer) Image() image.Image {
	return b.img
}

// HasAlpha reports whether any pixel is not fully opaque.
func (b *Buffer) HasAlpha() bool {
	pix := b.img.Pix
	for i := 3; i < len(pix); i += 4 {
		if pix[i] != 0xff {
			return true
		}
	}
	return false
}

// Opaque returns a copy of the raster with every alpha value set to 255.
// The color channels are kept as they are, not composited onto a background.
func (b *Buffer) Opaque() *image.NRGBA {
	dst := image.NewNRGBA(b.img.Rect)
	copy(dst.Pix, b.img.Pix)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}
