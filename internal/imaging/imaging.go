// Package imaging shrinks large images before they enter the cache: decode,
// scale proportionally under a dimension cap, re-encode as JPEG at a fixed
// quality. Anything that cannot be processed passes through unchanged, since
// optimization is never allowed to cost a cacheable payload.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // register codec
	"image/jpeg"
	_ "image/png" // register codec
	"log/slog"
	"strconv"

	"golang.org/x/image/draw"

	"github.com/transac/go-offline-cache/config"
)

// Meta describes a stored image payload.
type Meta struct {
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Format         string `json:"format"`
	OriginalSize   int    `json:"originalSize"`
	CompressedSize int    `json:"compressedSize"`
}

// ToMap flattens the metadata for storage alongside the payload.
func (m Meta) ToMap() map[string]string {
	return map[string]string{
		"width":          strconv.Itoa(m.Width),
		"height":         strconv.Itoa(m.Height),
		"format":         m.Format,
		"originalSize":   strconv.Itoa(m.OriginalSize),
		"compressedSize": strconv.Itoa(m.CompressedSize),
	}
}

// MetaFromMap rebuilds metadata from its stored form.
func MetaFromMap(m map[string]string) Meta {
	atoi := func(s string) int {
		n, _ := strconv.Atoi(s)
		return n
	}
	return Meta{
		Width:          atoi(m["width"]),
		Height:         atoi(m["height"]),
		Format:         m["format"],
		OriginalSize:   atoi(m["originalSize"]),
		CompressedSize: atoi(m["compressedSize"]),
	}
}

// Result is the outcome of one optimization pass.
type Result struct {
	Bytes       []byte
	ContentType string
	Meta        Meta
	Optimized   bool
}

type Optimizer struct {
	cfg    *config.ImageCfg
	logger *slog.Logger
}

func New(cfg *config.ImageCfg, logger *slog.Logger) *Optimizer {
	return &Optimizer{cfg: cfg, logger: logger}
}

// Optimize processes one fetched image. Payloads at or under the small-image
// threshold keep their original bytes, as do GIFs (re-encoding would drop
// animation frames) and anything that fails to decode or re-encode larger
// than it started.
func (o *Optimizer) Optimize(url string, raw []byte, contentType string) Result {
	passthrough := func(format string, w, h int) Result {
		return Result{
			Bytes:       raw,
			ContentType: contentType,
			Meta: Meta{
				Width:          w,
				Height:         h,
				Format:         format,
				OriginalSize:   len(raw),
				CompressedSize: len(raw),
			},
		}
	}

	if int64(len(raw)) <= o.cfg.OptimizeThresholdBytes {
		format, w, h := sniff(raw)
		return passthrough(format, w, h)
	}

	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		o.logger.Debug("image decode failed, caching original", "url", url, "error", err)
		return passthrough("", 0, 0)
	}
	if format == "gif" {
		b := src.Bounds()
		return passthrough(format, b.Dx(), b.Dy())
	}

	scaled := o.scale(src)
	encoded, err := o.encodeJPEG(scaled)
	if err != nil {
		o.logger.Debug("image encode failed, caching original", "url", url, "error", err)
		b := src.Bounds()
		return passthrough(format, b.Dx(), b.Dy())
	}
	if len(encoded) >= len(raw) {
		// Re-encoding did not help; keep the original.
		b := src.Bounds()
		return passthrough(format, b.Dx(), b.Dy())
	}

	b := scaled.Bounds()
	return Result{
		Bytes:       encoded,
		ContentType: "image/jpeg",
		Optimized:   true,
		Meta: Meta{
			Width:          b.Dx(),
			Height:         b.Dy(),
			Format:         "jpeg",
			OriginalSize:   len(raw),
			CompressedSize: len(encoded),
		},
	}
}

// scale shrinks src proportionally so both dimensions fit the configured
// maximum. Images already within bounds are returned as is.
func (o *Optimizer) scale(src image.Image) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	maxDim := o.cfg.MaxDimensionPx
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return src
	}

	ratio := float64(maxDim) / float64(w)
	if h > w {
		ratio = float64(maxDim) / float64(h)
	}
	nw := int(float64(w) * ratio)
	nh := int(float64(h) * ratio)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func (o *Optimizer) encodeJPEG(img image.Image) ([]byte, error) {
	quality := int(o.cfg.Quality * 100)
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// sniff reads only the header so small payloads never pay a full decode.
func sniff(raw []byte) (format string, w, h int) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return "", 0, 0
	}
	return format, cfg.Width, cfg.Height
}
