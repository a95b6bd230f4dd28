package signals

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG decoding for captured screenshots

	"github.com/corona10/goimagehash"
	"golang.org/x/image/draw"

	"github.com/outfitlab/matchflow/internal/common"
)

// PayloadLimits bounds what the provider will send to the remote
// generator. Oversized payloads get at most two compression passes before
// the request is rejected outright.
type PayloadLimits struct {
	// MaxBytes is the hard ceiling on the encoded payload.
	MaxBytes int
	// SecondPassBytes triggers the more aggressive second pass even when
	// the first pass got under MaxBytes.
	SecondPassBytes int
}

// DefaultPayloadLimits returns the default limits.
func DefaultPayloadLimits() PayloadLimits {
	return PayloadLimits{
		MaxBytes:        1 << 20, // 1 MiB
		SecondPassBytes: 600 << 10,
	}
}

// compressionPass describes one downscale-and-re-encode attempt.
type compressionPass struct {
	scale   float64
	quality int
}

// The two permitted passes, mildest first.
var compressionPasses = []compressionPass{
	{scale: 0.75, quality: 80},
	{scale: 0.50, quality: 70},
}

// ImagePayload is the raw item image handed to the remote generator.
type ImagePayload struct {
	Data []byte
	MIME string
}

// PreparePayload enforces the size guard: payloads under the limit pass
// through untouched; oversized ones are recompressed up to twice, and a
// payload still over the limit after both passes is a typed error, never
// retried indefinitely.
func PreparePayload(p ImagePayload, limits PayloadLimits) (ImagePayload, error) {
	if limits.MaxBytes <= 0 {
		limits = DefaultPayloadLimits()
	}
	if limits.SecondPassBytes <= 0 {
		limits.SecondPassBytes = limits.MaxBytes
	}
	if len(p.Data) <= limits.MaxBytes && len(p.Data) < limits.SecondPassBytes {
		return p, nil
	}

	for i, pass := range compressionPasses {
		if i == 1 && len(p.Data) <= limits.MaxBytes && len(p.Data) < limits.SecondPassBytes {
			break
		}
		compressed, err := recompress(p.Data, pass)
		if err != nil {
			return ImagePayload{}, fmt.Errorf("compression pass %d: %w", i+1, err)
		}
		p = ImagePayload{Data: compressed, MIME: "image/jpeg"}
	}

	if len(p.Data) > limits.MaxBytes {
		return ImagePayload{}, fmt.Errorf("%w: %d bytes after %d passes (limit %d)",
			common.ErrPayloadTooLarge, len(p.Data), len(compressionPasses), limits.MaxBytes)
	}
	return p, nil
}

// recompress decodes, downscales, and re-encodes as JPEG.
func recompress(data []byte, pass compressionPass) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	w := int(float64(bounds.Dx()) * pass.scale)
	h := int(float64(bounds.Dy()) * pass.scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: pass.quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// PerceptualKey derives a compression-stable key for an image payload, so
// a re-encoded copy of the same photo still hits the durable cache.
func PerceptualKey(p ImagePayload) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(p.Data))
	if err != nil {
		return "", fmt.Errorf("decode image for hashing: %w", err)
	}
	hash, err := goimagehash.AverageHash(img)
	if err != nil {
		return "", fmt.Errorf("perceptual hash: %w", err)
	}
	return hash.ToString(), nil
}
