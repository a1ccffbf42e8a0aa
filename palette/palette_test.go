package palette

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makeworld-the-better-one/indexed/pixbuf"
)

var (
	black = color.NRGBA{0, 0, 0, 255}
	white = color.NRGBA{255, 255, 255, 255}
	red   = color.NRGBA{255, 0, 0, 255}
	blue  = color.NRGBA{0, 0, 255, 255}
)

func solid(t *testing.T, w, h int, c color.NRGBA) *pixbuf.Buffer {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	buf, err := pixbuf.Wrap(img)
	require.NoError(t, err)
	return buf
}

func gradient(t *testing.T, w, h int) *pixbuf.Buffer {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: uint8((x + y) * 127 / max(w+h-2, 1)),
				A: 255,
			})
		}
	}
	buf, err := pixbuf.Wrap(img)
	require.NoError(t, err)
	return buf
}

func TestNewPadsWithFiller(t *testing.T) {
	p, err := New([]color.NRGBA{red, blue})
	require.NoError(t, err)

	assert.Equal(t, 2, p.Used())
	assert.Equal(t, MaxColors, p.Len())
	assert.Equal(t, red, p.At(0))
	assert.Equal(t, blue, p.At(1))
	for i := 2; i < MaxColors; i++ {
		assert.Equal(t, Filler, p.At(i), "slot %d", i)
	}
	assert.NotEqual(t, black, Filler)

	assert.True(t, p.Valid(1))
	assert.False(t, p.Valid(2))
	assert.False(t, p.Valid(-1))
	assert.Len(t, p.ColorPalette(), MaxColors)
	assert.Len(t, p.Opaque(), 2)
}

func TestNewRejects(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNoColors)

	_, err = New(make([]color.NRGBA, MaxColors+1))
	var re *RangeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, MaxColors+1, re.Value)
}

func TestGenerateRejectsEmpty(t *testing.T) {
	for _, buf := range []*pixbuf.Buffer{nil, {}} {
		_, err := Generate(buf, 4)
		var ie *pixbuf.InputError
		assert.ErrorAs(t, err, &ie)

		_, err = Sample(buf, 4)
		assert.ErrorIs(t, err, pixbuf.ErrEmpty)
	}
}

func TestGenerateSize(t *testing.T) {
	buf := gradient(t, 64, 64)
	for _, n := range []int{2, 3, 16, 100, 255, 256} {
		p, err := Generate(buf, n)
		require.NoError(t, err, "n=%d", n)
		assert.Equal(t, n, p.Used(), "n=%d", n)
		for i := 0; i < n; i++ {
			assert.NotEqual(t, black, p.At(i), "n=%d slot %d", n, i)
		}
		for i := n; i < MaxColors; i++ {
			assert.Equal(t, Filler, p.At(i), "n=%d slot %d", n, i)
		}
	}
}

func TestGenerateSolid(t *testing.T) {
	p, err := Generate(solid(t, 4, 4, red), 2)
	require.NoError(t, err)
	require.Equal(t, 2, p.Used())
	assert.Equal(t, red, p.At(0))
	// Made up entry, saturated red channel
	assert.Equal(t, color.NRGBA{255, 1, 1, 255}, p.At(1))
}

func TestGenerateAllBlack(t *testing.T) {
	p, err := Generate(solid(t, 3, 3, black), 3)
	require.NoError(t, err)
	assert.Equal(t, []color.NRGBA{{1, 1, 1, 255}, {2, 2, 2, 255}, {3, 3, 3, 255}}, p.Usable())
}

func TestGenerateDropsBlack(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if x < 4 {
				img.SetNRGBA(x, y, black)
			} else {
				img.SetNRGBA(x, y, white)
			}
		}
	}
	buf, err := pixbuf.Wrap(img)
	require.NoError(t, err)

	p, err := Generate(buf, 2)
	require.NoError(t, err)
	assert.Equal(t, []color.NRGBA{white, white}, p.Usable())
}

func TestGenerateDeterministic(t *testing.T) {
	buf := gradient(t, 40, 30)
	a, err := Generate(buf, 16)
	require.NoError(t, err)
	b, err := Generate(buf, 16)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestGenerateRange(t *testing.T) {
	buf := solid(t, 2, 2, red)
	for _, n := range []int{-1, 0, 1, 257} {
		_, err := Generate(buf, n)
		var re *RangeError
		assert.True(t, errors.As(err, &re), "n=%d", n)
	}
}

func TestEdit(t *testing.T) {
	p, err := New([]color.NRGBA{red, white, black})
	require.NoError(t, err)

	edited, skipped := p.Edit(Mapping{1: blue, 7: blue, 300: blue, -2: blue})
	assert.Equal(t, []int{-2, 7, 300}, skipped)
	assert.Equal(t, blue, edited.At(1))
	assert.Equal(t, red, edited.At(0))
	assert.Equal(t, 3, edited.Used())
	// Original is untouched
	assert.Equal(t, white, p.At(1))
}

func TestOpaqueIgnoresEditedAlpha(t *testing.T) {
	p, err := New([]color.NRGBA{red, white})
	require.NoError(t, err)
	edited, _ := p.Edit(Mapping{0: {10, 20, 30, 0}})
	assert.Equal(t, color.NRGBA{10, 20, 30, 0}, edited.At(0))
	assert.Equal(t, color.NRGBA{10, 20, 30, 255}, edited.Opaque()[0])
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in        string
		withAlpha bool
		want      color.NRGBA
		wantErr   bool
	}{
		{"255,0,0", false, red, false},
		{"0,0,255,128", true, color.NRGBA{0, 0, 255, 128}, false},
		{"0,0,255,128", false, color.NRGBA{}, true},
		{"#ff0000", false, red, false},
		{"ff0000", false, red, false},
		{"#f00", false, red, false},
		{"#0000ff80", true, color.NRGBA{0, 0, 255, 128}, false},
		{"#0000ff80", false, color.NRGBA{}, true},
		{"128", false, color.NRGBA{128, 128, 128, 255}, false},
		{"300", false, color.NRGBA{}, true},
		{"Blue", false, blue, false},
		{"notacolor", false, color.NRGBA{}, true},
		{"1,2", false, color.NRGBA{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in, tt.withAlpha)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseColors(t *testing.T) {
	got, err := ParseColors("red  #0000ff 255,255,255")
	require.NoError(t, err)
	assert.Equal(t, []color.NRGBA{red, blue, white}, got)
}

func TestParseMapping(t *testing.T) {
	m, err := ParseMapping([]string{"0=#0000ff", "3 = 255,0,0,0"})
	require.NoError(t, err)
	assert.Equal(t, Mapping{0: blue, 3: {255, 0, 0, 0}}, m)
	assert.Equal(t, []int{0, 3}, m.Indices())

	_, err = ParseMapping([]string{"3"})
	assert.Error(t, err)
	_, err = ParseMapping([]string{"256=red"})
	var re *RangeError
	assert.ErrorAs(t, err, &re)
}

func TestParseIndices(t *testing.T) {
	got, err := ParseIndices([]string{"3,1", "2 3"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)

	_, err = ParseIndices([]string{"1,x"})
	assert.Error(t, err)
}

func TestRIFFRoundTrip(t *testing.T) {
	p, err := New([]color.NRGBA{red, blue, {1, 2, 3, 255}})
	require.NoError(t, err)

	var b bytes.Buffer
	require.NoError(t, WriteRIFF(&b, p))
	assert.Equal(t, "RIFF", b.String()[:4])
	assert.Equal(t, "PAL ", b.String()[8:12])

	got, err := ReadRIFF(&b)
	require.NoError(t, err)
	assert.True(t, p.Equal(got))
}

func TestReadRIFFRejectsOtherForms(t *testing.T) {
	data := []byte("RIFF\x04\x00\x00\x00WAVE")
	_, err := ReadRIFF(bytes.NewReader(data))
	assert.Error(t, err)
}
