package encoder

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedImage indicates the bytes are not an image the encoder can read.
var ErrUnsupportedImage = errors.New("unsupported image")

// DecodeBase64 decodes an image sent as base64, with or without a
// "data:image/...;base64," prefix.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if _, payload, ok := strings.Cut(s, ","); ok {
		s = payload
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrUnsupportedImage)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if b, err2 := base64.RawStdEncoding.DecodeString(s); err2 == nil {
			return b, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return b, nil
}

// CheckImage reads only the image header and returns its format name.
func CheckImage(b []byte) (string, error) {
	if len(b) == 0 {
		return "", fmt.Errorf("%w: empty", ErrUnsupportedImage)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return "", fmt.Errorf("%w: zero size", ErrUnsupportedImage)
	}
	return format, nil
}
