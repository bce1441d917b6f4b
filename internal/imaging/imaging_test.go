package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/transac/go-offline-cache/config"
)

func newTestOptimizer(threshold int64) *Optimizer {
	return New(&config.ImageCfg{
		OptimizeThresholdBytes: threshold,
		MaxDimensionPx:         1920,
		Quality:                0.8,
	}, slog.Default())
}

// noisyImage produces a poorly compressible image so re-encoding at a lower
// quality reliably shrinks it.
func noisyImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 7 % 251),
				G: uint8(y * 13 % 241),
				B: uint8((x + y) * 31 % 239),
				A: 255,
			})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// TestOptimize_SmallPassesThrough verifies payloads under the threshold keep
// their bytes.
func TestOptimize_SmallPassesThrough(t *testing.T) {
	o := newTestOptimizer(50 << 10)
	raw := encodePNG(t, noisyImage(8, 8))

	res := o.Optimize("/img/icon.png", raw, "image/png")

	require.False(t, res.Optimized)
	require.Equal(t, raw, res.Bytes)
	require.Equal(t, "image/png", res.ContentType)
	require.Equal(t, "png", res.Meta.Format)
	require.Equal(t, 8, res.Meta.Width)
	require.Equal(t, len(raw), res.Meta.OriginalSize)
}

// TestOptimize_LargeIsRecompressed verifies big payloads come out as smaller
// JPEGs with populated metadata.
func TestOptimize_LargeIsRecompressed(t *testing.T) {
	o := newTestOptimizer(1024)
	raw := encodePNG(t, noisyImage(256, 128))
	require.Greater(t, len(raw), 1024)

	res := o.Optimize("/img/photo.png", raw, "image/png")

	require.True(t, res.Optimized)
	require.Less(t, len(res.Bytes), len(raw))
	require.Equal(t, "image/jpeg", res.ContentType)
	require.Equal(t, "jpeg", res.Meta.Format)
	require.Equal(t, 256, res.Meta.Width)
	require.Equal(t, 128, res.Meta.Height)
	require.Equal(t, len(raw), res.Meta.OriginalSize)
	require.Equal(t, len(res.Bytes), res.Meta.CompressedSize)

	// The output decodes as a valid jpeg.
	_, err := jpeg.Decode(bytes.NewReader(res.Bytes))
	require.NoError(t, err)
}

// TestOptimize_ScalesDownOversized verifies the dimension cap.
func TestOptimize_ScalesDownOversized(t *testing.T) {
	o := New(&config.ImageCfg{
		OptimizeThresholdBytes: 256,
		MaxDimensionPx:         100,
		Quality:                0.8,
	}, slog.Default())

	raw := encodePNG(t, noisyImage(400, 200))
	res := o.Optimize("/img/wide.png", raw, "image/png")

	require.True(t, res.Optimized)
	require.Equal(t, 100, res.Meta.Width)
	require.Equal(t, 50, res.Meta.Height)

	img, err := jpeg.Decode(bytes.NewReader(res.Bytes))
	require.NoError(t, err)
	require.Equal(t, 100, img.Bounds().Dx())
	require.Equal(t, 50, img.Bounds().Dy())
}

// TestOptimize_TallImage verifies proportional scaling keys on the longer side.
func TestOptimize_TallImage(t *testing.T) {
	o := New(&config.ImageCfg{
		OptimizeThresholdBytes: 256,
		MaxDimensionPx:         100,
		Quality:                0.8,
	}, slog.Default())

	raw := encodePNG(t, noisyImage(200, 400))
	res := o.Optimize("/img/tall.png", raw, "image/png")

	require.True(t, res.Optimized)
	require.Equal(t, 50, res.Meta.Width)
	require.Equal(t, 100, res.Meta.Height)
}

// TestOptimize_GarbageFallsBack verifies undecodable bytes pass through.
func TestOptimize_GarbageFallsBack(t *testing.T) {
	o := newTestOptimizer(16)
	raw := bytes.Repeat([]byte("definitely not an image "), 10)

	res := o.Optimize("/img/broken.jpg", raw, "image/jpeg")

	require.False(t, res.Optimized)
	require.Equal(t, raw, res.Bytes)
	require.Equal(t, "image/jpeg", res.ContentType)
	require.Equal(t, len(raw), res.Meta.OriginalSize)
}

// TestMeta_MapRoundTrip verifies metadata survives the flattened form.
func TestMeta_MapRoundTrip(t *testing.T) {
	m := Meta{Width: 1920, Height: 1080, Format: "jpeg", OriginalSize: 300000, CompressedSize: 120000}

	got := MetaFromMap(m.ToMap())
	require.Equal(t, m, got)
}
