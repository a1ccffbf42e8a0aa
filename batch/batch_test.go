package batch

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makeworld-the-better-one/indexed/indexed"
	"github.com/makeworld-the-better-one/indexed/palette"
	"github.com/makeworld-the-better-one/indexed/pipeline"
	"github.com/makeworld-the-better-one/indexed/pixbuf"
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

func items(t *testing.T, n int) []Item {
	t.Helper()
	out := make([]Item, n)
	for i := range out {
		shift := uint8(i * 40)
		buf := fill(t, 6, 4, func(x, y int) color.NRGBA {
			return color.NRGBA{uint8(x*40) + shift, uint8(y * 60), 255 - shift, 255}
		})
		out[i] = BufferItem(string(rune('a'+i)), buf)
	}
	return out
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestConsistentBatchSharesPalette(t *testing.T) {
	ref, err := palette.New([]color.NRGBA{{255, 0, 0, 255}, {0, 255, 0, 255}, {0, 0, 255, 255}, {255, 255, 255, 255}})
	require.NoError(t, err)

	in := items(t, 5)
	results, err := Process(context.Background(), in, Options{
		Config:    pipeline.Config{Colors: 16},
		Reference: ref,
		Workers:   3,
	}, quiet())
	require.NoError(t, err)
	require.Len(t, results, len(in))

	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, i, r.Index)
		assert.Equal(t, in[i].ID, r.ID)
		assert.Equal(t, Consistent, r.Mode)
		assert.True(t, ref.Equal(r.Image.Palette()), "item %d", i)
	}

	// Recoloring index 2 afterwards gives the same color in every output
	purple := color.NRGBA{128, 0, 128, 255}
	for _, r := range results {
		edited := indexed.ApplyEdits(r.Image, palette.Mapping{2: purple}, quiet())
		assert.Equal(t, purple, edited.Palette().At(2))
		assert.Equal(t, r.Image.Histogram(), edited.Histogram())
	}
}

func TestReferenceIsCopied(t *testing.T) {
	ref, err := palette.New([]color.NRGBA{{255, 0, 0, 255}, {0, 0, 255, 255}})
	require.NoError(t, err)
	want := ref.Clone()

	results, err := Process(context.Background(), items(t, 2), Options{
		Config:    pipeline.Config{Edits: palette.Mapping{0: {0, 255, 0, 255}}},
		Reference: ref,
	}, quiet())
	require.NoError(t, err)

	assert.True(t, want.Equal(ref))
	for _, r := range results {
		assert.Equal(t, color.NRGBA{0, 255, 0, 255}, r.Image.Palette().At(0))
	}
}

func TestIndependentBatch(t *testing.T) {
	in := items(t, 3)
	results, err := Process(context.Background(), in, Options{
		Config:  pipeline.Config{Colors: 4},
		Workers: 2,
	}, quiet())
	require.NoError(t, err)

	for i, r := range results {
		assert.Equal(t, Independent, r.Mode)
		buf, err := in[i].Load()
		require.NoError(t, err)
		want, err := palette.Generate(buf, 4)
		require.NoError(t, err)
		assert.True(t, want.Equal(r.Image.Palette()), "item %d", i)
	}
}

func TestBadItemsDontStopBatch(t *testing.T) {
	in := items(t, 3)
	in = append(in,
		BufferItem("empty", nil),
		FileItem(filepath.Join(t.TempDir(), "missing.png"), true),
	)

	results, err := Process(context.Background(), in, Options{Config: pipeline.Config{Colors: 8}, Workers: 2}, quiet())
	require.Error(t, err)

	var pf *PartialFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, 5, pf.Total)
	require.Len(t, pf.Failures, 2)
	assert.Equal(t, 3, pf.Failures[0].Index)
	assert.Equal(t, "empty", pf.Failures[0].ID)
	assert.Equal(t, 4, pf.Failures[1].Index)
	assert.ErrorIs(t, err, pixbuf.ErrEmpty)

	var ie *pixbuf.InputError
	assert.ErrorAs(t, pf.Failures[1].Err, &ie)

	for _, r := range results[:3] {
		assert.NoError(t, r.Err)
		assert.NotNil(t, r.Result)
	}
}

func TestConfigErrorStopsEverything(t *testing.T) {
	called := false
	results, err := Process(context.Background(), items(t, 2), Options{
		Config:   pipeline.Config{Colors: 1},
		Progress: func(int, int) { called = true },
	}, quiet())

	var re *palette.RangeError
	assert.ErrorAs(t, err, &re)
	assert.Nil(t, results)
	assert.False(t, called)
}

func TestCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := Process(ctx, items(t, 3), Options{Config: pipeline.Config{Colors: 4}, Workers: 2}, quiet())
	assert.ErrorIs(t, err, context.Canceled)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
		assert.Nil(t, r.Result)
	}
}

func TestCancelBetweenImages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results, err := Process(ctx, items(t, 4), Options{
		Config:  pipeline.Config{Colors: 4},
		Workers: 1,
		Output: func(Result) error {
			cancel()
			return nil
		},
	}, quiet())

	var pf *PartialFailure
	require.ErrorAs(t, err, &pf)
	assert.Len(t, pf.Failures, 3)
	assert.NoError(t, results[0].Err)
	for _, r := range results[1:] {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestOutputErrorFailsItem(t *testing.T) {
	boom := errors.New("disk full")
	results, err := Process(context.Background(), items(t, 2), Options{
		Config: pipeline.Config{Colors: 4},
		Output: func(r Result) error {
			if r.Index == 1 {
				return boom
			}
			return nil
		},
	}, quiet())

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, results[0].Err)
	assert.Nil(t, results[1].Result)
}

func TestProgress(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []int
	)
	_, err := Process(context.Background(), items(t, 6), Options{
		Config:  pipeline.Config{Colors: 4},
		Workers: 4,
		Progress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, 6, total)
			seen = append(seen, done)
		},
	}, quiet())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, seen)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "consistent", Consistent.String())
	assert.Equal(t, "independent", Independent.String())
}
