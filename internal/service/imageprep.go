package service

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png" // Register PNG decoder
	"strings"

	"xplore/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultMaxImageDimension = 2048
	DefaultMaxImageBytes     = 10 << 20
	WebPQuality              = 70
)

// preparedImage is an image ready for the blob store.
type preparedImage struct {
	data        []byte
	contentType string
}

// ImagePrep validates base64 image payloads and normalizes them for storage.
type ImagePrep struct {
	maxDimension int
	maxBytes     int
	transcode    bool
}

// NewImagePrep creates a preparer. Images larger than maxDimension on either
// side are scaled down; with transcode set they are re-encoded to WebP.
func NewImagePrep(maxDimension int, transcode bool) *ImagePrep {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxImageDimension
	}
	return &ImagePrep{maxDimension: maxDimension, maxBytes: DefaultMaxImageBytes, transcode: transcode}
}

// Prepare decodes one payload. Both bare base64 and data URLs are accepted.
// keepOriginal skips transcoding for this call.
func (p *ImagePrep) Prepare(payload string, keepOriginal bool) (preparedImage, error) {
	raw, err := decodeImagePayload(payload)
	if err != nil {
		return preparedImage{}, models.NewValidationError("Image is not valid base64")
	}
	return p.PrepareRaw(raw, keepOriginal)
}

// PrepareRaw is Prepare for image bytes that were never encoded.
func (p *ImagePrep) PrepareRaw(raw []byte, keepOriginal bool) (preparedImage, error) {
	if len(raw) == 0 {
		return preparedImage{}, models.NewValidationError("Image is empty")
	}
	if len(raw) > p.maxBytes {
		return preparedImage{}, models.NewValidationError(fmt.Sprintf("Image too large (max %dMB)", p.maxBytes>>20))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return preparedImage{}, models.NewValidationError("Invalid image file")
	}
	contentType := decodedFormatToMime(format)
	if contentType == "" || cfg.Width <= 0 || cfg.Height <= 0 {
		return preparedImage{}, models.NewValidationError("Unsupported image format")
	}

	oversized := cfg.Width > p.maxDimension || cfg.Height > p.maxDimension
	if keepOriginal || (!p.transcode && !oversized) || format == "gif" {
		return preparedImage{data: raw, contentType: contentType}, nil
	}

	decoded, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return preparedImage{}, models.NewValidationError("Invalid image file")
	}
	// Downscaled output is re-encoded as WebP even when transcoding is off.
	scaled := resizeToFit(decoded, p.maxDimension, p.maxDimension)
	out, err := encodeWebP(scaled, WebPQuality)
	if err != nil {
		return preparedImage{}, models.NewInternalError(err)
	}
	return preparedImage{data: out, contentType: "image/webp"}, nil
}

func decodeImagePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		if _, after, ok := strings.Cut(payload, ","); ok {
			payload = after
		}
	}
	if raw, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return raw, nil
	}
	return base64.RawStdEncoding.DecodeString(payload)
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 || (w <= maxWidth && h <= maxHeight) {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if s := float64(maxHeight) / float64(h); s < scale {
		scale = s
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}
