package palette

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image/color"
	"io"

	"golang.org/x/image/riff"
)

// Microsoft RIFF palette layout, one data chunk per palette:
//
//	typedef struct tagLOGPALETTE {
//	  WORD         palVersion;
//	  WORD         palNumEntries;
//	  PALETTEENTRY palPalEntry[1];
//	} LOGPALETTE;
//
// Each PALETTEENTRY is red, green, blue and a flags byte. Alpha is not
// representable, so it is dropped on write.

var (
	riffType = riff.FourCC{'R', 'I', 'F', 'F'}
	palType  = riff.FourCC{'P', 'A', 'L', ' '}
	dataType = riff.FourCC{'d', 'a', 't', 'a'}
)

const palVersion = 0x0300

// ReadRIFF reads the first palette of a RIFF .pal stream. Its entries become
// the realized entries of the result.
func ReadRIFF(r io.Reader) (*Palette, error) {
	formType, rd, err := riff.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("could not open RIFF stream: %w", err)
	}
	if formType != palType {
		return nil, fmt.Errorf("unsupported RIFF content type: %s", string(formType[:]))
	}

	for {
		id, _, data, err := rd.Next()
		if err != nil {
			if err == io.EOF {
				return nil, errors.New("RIFF stream holds no palette")
			}
			return nil, fmt.Errorf("could not read chunk: %w", err)
		}
		if id != dataType {
			// Unknown chunks are skipped by the riff reader on the next call
			continue
		}
		colors, err := readEntries(data)
		if err != nil {
			return nil, err
		}
		return New(colors)
	}
}

func readEntries(r io.Reader) ([]color.NRGBA, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("could not read palette header: %w", err)
	}
	if ver := binary.LittleEndian.Uint16(hdr[0:2]); ver != palVersion {
		return nil, fmt.Errorf("unsupported palette version: %#04x", ver)
	}

	count := int(binary.LittleEndian.Uint16(hdr[2:4]))
	if count == 0 {
		return nil, ErrNoColors
	}
	if count > MaxColors {
		return nil, &RangeError{What: "palette size", Value: count, Min: 1, Max: MaxColors}
	}

	buf := make([]byte, count*4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("could not read %d palette entries: %w", count, err)
	}
	colors := make([]color.NRGBA, count)
	for i := range colors {
		colors[i] = color.NRGBA{buf[i*4], buf[i*4+1], buf[i*4+2], 0xff}
	}
	return colors, nil
}

// WriteRIFF writes the realized entries of p as a RIFF .pal stream.
func WriteRIFF(w io.Writer, p *Palette) error {
	n := p.Used()
	dataSize := 4 + n*4 // palVersion + palNumEntries + 4 bytes/color

	buf := make([]byte, 0, 20+dataSize)
	buf = append(buf, riffType[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(4+8+dataSize))
	buf = append(buf, palType[:]...)
	buf = append(buf, dataType[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dataSize))
	buf = binary.LittleEndian.AppendUint16(buf, palVersion)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(n))
	for _, c := range p.colors[:n] {
		buf = append(buf, c.R, c.G, c.B, 0)
	}

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("could not save palette: %w", err)
	}
	return nil
}
