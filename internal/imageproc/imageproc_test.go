package imageproc

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checker(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			if (x/8+y/8)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
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

func TestNormalize_Dimensions(t *testing.T) {
	sources := map[string]func(t *testing.T) []byte{
		"square png": func(t *testing.T) []byte { return encodePNG(t, checker(512, 512)) },
		"tall png":   func(t *testing.T) []byte { return encodePNG(t, checker(100, 400)) },
		"tiny png":   func(t *testing.T) []byte { return encodePNG(t, checker(3, 2)) },
		"jpeg": func(t *testing.T) []byte {
			var buf bytes.Buffer
			require.NoError(t, jpeg.Encode(&buf, checker(1024, 1024), nil))
			return buf.Bytes()
		},
		"gif": func(t *testing.T) []byte {
			var buf bytes.Buffer
			require.NoError(t, gif.Encode(&buf, checker(64, 64), nil))
			return buf.Bytes()
		},
	}

	p := Default()
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			out, err := p.Normalize(src(t))
			require.NoError(t, err)

			cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
			require.NoError(t, err)
			assert.Equal(t, "jpeg", format)
			assert.Equal(t, 768, cfg.Width)
			assert.Equal(t, 432, cfg.Height)
		})
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	raw := encodePNG(t, checker(300, 200))
	p := Default()

	first, err := p.Normalize(raw)
	require.NoError(t, err)
	for range 5 {
		again, err := p.Normalize(raw)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(first, again))
	}
}

func TestNormalize_RejectsGarbage(t *testing.T) {
	p := Default()

	_, err := p.Normalize(nil)
	assert.Error(t, err)

	_, err = p.Normalize([]byte("definitely not an image"))
	assert.Error(t, err)

	// A PNG header followed by junk.
	_, err = p.Normalize(append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0xff}, 64)...))
	assert.Error(t, err)

	_, err = Processor{Width: 0, Height: 10}.Normalize(encodePNG(t, checker(4, 4)))
	assert.Error(t, err)
}

// withClaimedSize rewrites the IHDR chunk of a PNG so the header claims
// w x h pixels while the data stays small.
func withClaimedSize(t *testing.T, raw []byte, w, h uint32) []byte {
	t.Helper()
	out := bytes.Clone(raw)
	require.Equal(t, "IHDR", string(out[12:16]))
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestNormalize_RejectsOversizedSource(t *testing.T) {
	raw := withClaimedSize(t, encodePNG(t, checker(4, 4)), 60000, 60000)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, 60000, cfg.Width)

	_, err = Default().Normalize(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestCenterCrop(t *testing.T) {
	tests := []struct {
		name string
		in   image.Rectangle
		want image.Rectangle
	}{
		{"square", image.Rect(0, 0, 1024, 1024), image.Rect(0, 224, 1024, 800)},
		{"already 16:9", image.Rect(0, 0, 1920, 1080), image.Rect(0, 0, 1920, 1080)},
		{"wide", image.Rect(0, 0, 2000, 450), image.Rect(600, 0, 1400, 450)},
		{"offset origin", image.Rect(10, 10, 170, 100), image.Rect(10, 10, 170, 100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CenterCrop(tt.in, 768, 432))
		})
	}
}

func TestDataURI(t *testing.T) {
	uri := DataURI([]byte{0xff, 0xd8, 0xff})
	assert.True(t, strings.HasPrefix(uri, "data:image/jpeg;base64,"))
	assert.Equal(t, "data:image/jpeg;base64,/9j/", uri)
}
