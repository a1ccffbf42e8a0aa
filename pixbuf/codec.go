package pixbuf

import (
	"fmt"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"

	// Registers the webp decoder, imaging already covers the rest
	_ "golang.org/x/image/webp"
)

// Load opens and decodes the image at path. EXIF orientation is applied when
// autoOrient is true.
func Load(path string, autoOrient bool) (*Buffer, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(autoOrient))
	if err != nil {
		return nil, &InputError{Source: path, Err: err}
	}
	buf, err := New(img)
	if err != nil {
		return nil, &InputError{Source: path, Err: ErrEmpty}
	}
	return buf, nil
}

// Decode reads an image from r. source is only used in errors.
func Decode(r io.Reader, source string, autoOrient bool) (*Buffer, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(autoOrient))
	if err != nil {
		return nil, &InputError{Source: source, Err: err}
	}
	buf, err := New(img)
	if err != nil {
		return nil, &InputError{Source: source, Err: ErrEmpty}
	}
	return buf, nil
}

// Open decodes the image at path without converting it, so paletted files
// stay *image.Paletted.
func Open(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, &InputError{Source: path, Err: err}
	}
	return img, nil
}

// Format returns the output format implied by the extension of path.
func Format(path string) (imaging.Format, error) {
	f, err := imaging.FormatFromFilename(path)
	if err != nil {
		return 0, fmt.Errorf("'%s': %w", path, err)
	}
	return f, nil
}

// Save encodes img to path, in the format given by the path extension.
// With noOverwrite set an existing file is an error instead of being truncated.
func Save(img image.Image, path string, noOverwrite bool, opts ...imaging.EncodeOption) error {
	format, err := Format(path)
	if err != nil {
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if noOverwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return fmt.Errorf("'%s': %w", path, err)
	}

	if err = imaging.Encode(file, img, format, opts...); err != nil {
		file.Close()
		return fmt.Errorf("error writing %s to '%s': %w", format, path, err)
	}
	return file.Close()
}
