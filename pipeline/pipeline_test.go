package pipeline

import (
	"bytes"
	"image"
	"image/color"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makeworld-the-better-one/indexed/palette"
	"github.com/makeworld-the-better-one/indexed/pixbuf"
	"github.com/makeworld-the-better-one/indexed/quantize"
	"github.com/makeworld-the-better-one/indexed/resample"
)

var (
	red  = color.NRGBA{255, 0, 0, 255}
	blue = color.NRGBA{0, 0, 255, 255}
)

func fill(t *testing.T, w, h int, f func(x, y int) color.NRGBA) *pixbuf.Buffer {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, f(x, y))
		}
	}
	buf, err := pixbuf.Wrap(img)
	require.NoError(t, err)
	return buf
}

func stripes(t *testing.T) *pixbuf.Buffer {
	return fill(t, 8, 1, func(x, _ int) color.NRGBA {
		if x%2 == 0 {
			return red
		}
		return blue
	})
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestRunSolidRed(t *testing.T) {
	buf := fill(t, 4, 4, func(_, _ int) color.NRGBA { return red })

	res, err := Run(buf, Config{Colors: 2}, quiet())
	require.NoError(t, err)

	pal := res.Image.Palette()
	assert.Equal(t, 2, pal.Used())
	assert.Equal(t, red, pal.At(0))
	assert.Equal(t, color.NRGBA{255, 1, 1, 255}, pal.At(1))
	assert.Equal(t, []int{0}, res.Image.UsedIndices())
	assert.Nil(t, res.Transparent)

	_, ok := res.Output().(*image.Paletted)
	assert.True(t, ok)
}

func TestRejectsEmptyInput(t *testing.T) {
	for _, buf := range []*pixbuf.Buffer{nil, {}} {
		_, err := Run(buf, Config{Colors: 4}, quiet())
		var ie *pixbuf.InputError
		assert.ErrorAs(t, err, &ie)
		assert.ErrorIs(t, err, pixbuf.ErrEmpty)

		_, err = Reference(buf, Config{Colors: 4})
		assert.ErrorAs(t, err, &ie)

		pal, err := palette.New([]color.NRGBA{red})
		require.NoError(t, err)
		_, err = Replay(buf, pal, Config{}, quiet())
		assert.ErrorIs(t, err, pixbuf.ErrEmpty)
	}
}

func TestRunNotesIgnoredAlpha(t *testing.T) {
	buf := fill(t, 2, 2, func(x, _ int) color.NRGBA {
		return color.NRGBA{255, 0, 0, uint8(100 + x)}
	})
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Run(buf, Config{Colors: 2}, logger)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "input alpha is ignored")

	logs.Reset()
	_, err = Run(stripes(t), Config{Colors: 2}, logger)
	require.NoError(t, err)
	assert.NotContains(t, logs.String(), "input alpha is ignored")
}

func TestPaletteComesFromDownscaledImage(t *testing.T) {
	buf := stripes(t)
	cfg := Config{
		Colors:    2,
		Downscale: &resample.Spec{Phase: resample.Downscale, Target: resample.Size{Width: 4, Height: 1}, Kernel: resample.Bilinear},
	}

	res, err := Run(buf, cfg, quiet())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Image.Width())
	assert.Equal(t, 1, res.Image.Height())

	small, err := resample.Resample(buf, *cfg.Downscale)
	require.NoError(t, err)
	want, err := palette.Generate(small, 2)
	require.NoError(t, err)
	assert.True(t, want.Equal(res.Image.Palette()))

	ref, err := Reference(buf, cfg)
	require.NoError(t, err)
	assert.True(t, ref.Equal(res.Image.Palette()))

	// Blending happens before the palette exists, so pure red is gone
	assert.NotContains(t, res.Image.Palette().Usable(), red)

	full, err := palette.Generate(buf, 2)
	require.NoError(t, err)
	assert.Contains(t, full.Usable(), red)
}

func TestReplaySharesPalette(t *testing.T) {
	ref, err := palette.New([]color.NRGBA{red, blue, {0, 255, 0, 255}})
	require.NoError(t, err)

	images := []*pixbuf.Buffer{
		stripes(t),
		fill(t, 3, 3, func(_, _ int) color.NRGBA { return color.NRGBA{10, 240, 10, 255} }),
		fill(t, 5, 2, func(x, _ int) color.NRGBA { return color.NRGBA{uint8(x * 60), 0, 200, 255} }),
	}
	cfg := Config{Quantize: quantize.Options{Dither: true}}

	for i, buf := range images {
		res, err := Replay(buf, ref, cfg, quiet())
		require.NoError(t, err, "image %d", i)
		assert.True(t, ref.Equal(res.Image.Palette()), "image %d", i)
		for _, idx := range res.Image.UsedIndices() {
			assert.Less(t, idx, 3)
		}
	}
}

func TestEditsThenTransparency(t *testing.T) {
	buf := stripes(t)
	cfg := Config{
		Colors:      2,
		Edits:       palette.Mapping{0: {0, 255, 0, 255}, 40: red},
		Transparent: []int{1},
	}

	res, err := Run(buf, cfg, quiet())
	require.NoError(t, err)
	require.NotNil(t, res.Transparent)

	pal := res.Image.Palette()
	assert.Equal(t, color.NRGBA{0, 255, 0, 255}, pal.At(0))
	for x := 0; x < 8; x++ {
		idx := res.Image.ColorIndexAt(x, 0)
		got := res.Transparent.At(x, 0)
		if idx == 1 {
			assert.Zero(t, got.A, "x=%d", x)
		} else {
			assert.Equal(t, pal.At(int(idx)), got, "x=%d", x)
		}
	}
	_, ok := res.Output().(*image.NRGBA)
	assert.True(t, ok)
}

func TestRunUpscale(t *testing.T) {
	buf := fill(t, 2, 2, func(x, y int) color.NRGBA {
		if x == y {
			return red
		}
		return blue
	})
	cfg := Config{
		Colors:  2,
		Upscale: &resample.Spec{Phase: resample.Upscale, Target: resample.Factor(2), Kernel: resample.Bicubic},
	}

	res, err := Run(buf, cfg, quiet())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Image.Width())
	assert.Equal(t, 4, res.Image.Height())
	assert.Equal(t, res.Image.ColorIndexAt(0, 0), res.Image.ColorIndexAt(1, 1))
	assert.NotEqual(t, res.Image.ColorIndexAt(0, 0), res.Image.ColorIndexAt(2, 0))
}

func TestValidate(t *testing.T) {
	var re *palette.RangeError
	assert.ErrorAs(t, Config{Colors: 1}.Validate(true), &re)
	assert.ErrorAs(t, Config{Colors: 257}.Validate(true), &re)
	assert.NoError(t, Config{}.Validate(false))

	var ce *resample.ConfigConflictError
	cfg := Config{Colors: 4, Upscale: &resample.Spec{Phase: resample.Upscale, Target: resample.Factor(2), Kernel: resample.Lanczos}}
	assert.ErrorAs(t, cfg.Validate(true), &ce)

	cfg = Config{Colors: 4, Downscale: &resample.Spec{Phase: resample.Upscale, Target: resample.Factor(2)}}
	assert.ErrorAs(t, cfg.Validate(true), &ce)

	_, err := Run(stripes(t), Config{Colors: 300}, quiet())
	assert.ErrorAs(t, err, &re)
}
