// Package imageproc normalizes generated illustrations before they are
// cached: a center crop to the target aspect ratio, a resize, and a
// re-encode as JPEG. The output depends only on the input bytes.
package imageproc

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultWidth   = 768
	DefaultHeight  = 432
	DefaultQuality = 70

	// MaxSourcePixels bounds the decoded size of a generated image.
	MaxSourcePixels = 4096 * 4096
)

// Processor holds the output geometry and encoder quality.
type Processor struct {
	Width   int
	Height  int
	Quality int
}

// Default returns the 768x432 quality-70 processor.
func Default() Processor {
	return Processor{Width: DefaultWidth, Height: DefaultHeight, Quality: DefaultQuality}
}

// Normalize decodes raw (PNG, JPEG, GIF or WebP) and returns the cropped
// and scaled image as JPEG.
func (p Processor) Normalize(raw []byte) (out []byte, err error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", p.Width, p.Height)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	// Some decoders panic on malformed input.
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("decode image: %v", r)
		}
	}()

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return nil, fmt.Errorf("decode image: %dx%d exceeds %d pixels", cfg.Width, cfg.Height, MaxSourcePixels)
	}

	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if src.Bounds().Empty() {
		return nil, fmt.Errorf("decode image: %s has no pixels", format)
	}

	crop := CenterCrop(src.Bounds(), p.Width, p.Height)
	dst := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: p.quality()}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func (p Processor) quality() int {
	if p.Quality < 1 || p.Quality > 100 {
		return DefaultQuality
	}
	return p.Quality
}

// CenterCrop returns the largest rectangle centered in b with the aspect
// ratio w:h.
func CenterCrop(b image.Rectangle, w, h int) image.Rectangle {
	bw, bh := b.Dx(), b.Dy()
	cw, ch := bw, bh
	// Compare bw/bh with w/h without floating point.
	if bw*h > bh*w {
		cw = bh * w / h
	} else {
		ch = bw * h / w
	}
	cw, ch = max(cw, 1), max(ch, 1)
	x0 := b.Min.X + (bw-cw)/2
	y0 := b.Min.Y + (bh-ch)/2
	return image.Rect(x0, y0, x0+cw, y0+ch)
}

// DataURI renders a JPEG as a data URI.
func DataURI(jpegBytes []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegBytes)
}
