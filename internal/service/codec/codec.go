// Package codec turns inbound frame payloads into images and annotated
// images back into storable JPEG bytes.
package codec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"hazardcam/internal/model"
)

// ErrDecode marks a payload that could not be turned into a frame.
var ErrDecode = errors.New("frame decode failed")

var (
	jpegMagic = []byte{0xFF, 0xD8}
	pngMagic  = []byte("\x89PNG")
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 90

// Codec decodes frames and encodes annotated evidence. It holds no per-frame
// state and is safe for concurrent use.
type Codec struct {
	quality int
}

// New returns a codec that encodes JPEG at the given quality (1-100).
func New(quality int) *Codec {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &Codec{quality: quality}
}

// Decode accepts either raw JPEG/PNG bytes or text carrying a base64 image,
// optionally behind a data URL prefix ("data:image/jpeg;base64,").
func (c *Codec) Decode(payload []byte) (image.Image, error) {
	raw, err := unwrap(payload)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	return img, nil
}

// unwrap returns the encoded image bytes carried by payload.
func unwrap(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	if bytes.HasPrefix(payload, jpegMagic) || bytes.HasPrefix(payload, pngMagic) {
		return payload, nil
	}

	body := strings.TrimSpace(string(payload))
	if i := strings.IndexByte(body, ','); i >= 0 {
		body = body[i+1:]
	}
	if body == "" {
		return nil, fmt.Errorf("%w: no image body", ErrDecode)
	}

	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(body, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid base64: %v", ErrDecode, err)
		}
	}
	return raw, nil
}

// Encode draws the detection overlays on a copy of frame and returns JPEG bytes.
func (c *Codec) Encode(frame image.Image, detections []model.Detection) ([]byte, error) {
	annotated := annotate(frame, detections)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, annotated, imaging.JPEG, imaging.JPEGQuality(c.quality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
