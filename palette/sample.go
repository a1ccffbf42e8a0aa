package palette

import (
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/mccutchen/palettor"

	"github.com/makeworld-the-better-one/indexed/pixbuf"
)

// Sample extracts an n color palette from buf with k-means clustering.
//
// Unlike Generate, the result is not reproducible between runs, so it
// should only be used to pick a palette once, not inside a batch.
func Sample(buf *pixbuf.Buffer, n int) (*Palette, error) {
	if err := CheckCount(n); err != nil {
		return nil, err
	}
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	// Resize: keep palettor.Extract fast. See the palettor CLI source:
	// https://github.com/mccutchen/palettor/blob/3eaed180/cmd/palettor/palettor.go#L57
	thumbnail := imaging.Resize(buf.Opaque(), 200, 200, imaging.NearestNeighbor)

	p, err := palettor.Extract(n, 500, thumbnail)
	if err != nil {
		return nil, fmt.Errorf("error extracting image palette: %w", err)
	}
	pal, err := FromColors(p.Colors())
	if err != nil {
		return nil, err
	}
	for i := 0; i < pal.used; i++ {
		pal.colors[i].A = 0xff
	}
	return pal, nil
}
