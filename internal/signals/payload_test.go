package signals

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outfitlab/matchflow/internal/common"
)

// noisePNG builds a deterministic high-entropy PNG so the encoded payload
// is large relative to its dimensions.
func noisePNG(t *testing.T, w, h int) ImagePayload {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	seed := uint32(42)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			seed = seed*1664525 + 1013904223
			img.Set(x, y, color.RGBA{
				R: uint8(seed >> 24),
				G: uint8(seed >> 16),
				B: uint8(seed >> 8),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return ImagePayload{Data: buf.Bytes(), MIME: "image/png"}
}

func flatPNG(t *testing.T, w, h int, c color.RGBA) ImagePayload {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return ImagePayload{Data: buf.Bytes(), MIME: "image/png"}
}

func TestPreparePayloadPassThrough(t *testing.T) {
	p := flatPNG(t, 32, 32, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	got, err := PreparePayload(p, DefaultPayloadLimits())
	require.NoError(t, err)
	assert.Equal(t, p, got, "small payloads are untouched")
}

func TestPreparePayloadCompressesOversized(t *testing.T) {
	p := noisePNG(t, 400, 400)
	limits := PayloadLimits{MaxBytes: 200_000}
	require.Greater(t, len(p.Data), limits.MaxBytes, "fixture must start oversized")

	got, err := PreparePayload(p, limits)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(got.Data), limits.MaxBytes)
	assert.Equal(t, "image/jpeg", got.MIME)
}

func TestPreparePayloadRejectsAfterTwoPasses(t *testing.T) {
	p := noisePNG(t, 400, 400)
	_, err := PreparePayload(p, PayloadLimits{MaxBytes: 64})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPayloadTooLarge)
}

func TestPreparePayloadRejectsGarbage(t *testing.T) {
	p := ImagePayload{Data: bytes.Repeat([]byte{0xAB}, 2<<20), MIME: "image/png"}
	_, err := PreparePayload(p, DefaultPayloadLimits())
	assert.Error(t, err, "undecodable oversized data cannot be compressed")
}

func TestPerceptualKey(t *testing.T) {
	dark := flatPNG(t, 64, 64, color.RGBA{A: 255})

	split := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := color.RGBA{A: 255}
			if x >= 32 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			split.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, split))
	halves := ImagePayload{Data: buf.Bytes(), MIME: "image/png"}

	k1, err := PerceptualKey(dark)
	require.NoError(t, err)
	k2, err := PerceptualKey(dark)
	require.NoError(t, err)
	assert.Equal(t, k1, k2, "same payload hashes identically")

	k3, err := PerceptualKey(halves)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)

	_, err = PerceptualKey(ImagePayload{Data: []byte("not an image")})
	assert.Error(t, err)
}
