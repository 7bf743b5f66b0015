package service

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/set-night/apexinspect/internal/config"
	"github.com/set-night/apexinspect/internal/domain"
)

// NormalizeImage decodes an upload, applies EXIF orientation, bounds its size
// and re-encodes it as JPEG, the format announced in the request data URI.
func NormalizeImage(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, domain.ErrUnsupportedImage
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnsupportedImage, err)
	}

	b := img.Bounds()
	if b.Dx() > config.MaxImageEdge || b.Dy() > config.MaxImageEdge {
		img = imaging.Fit(img, config.MaxImageEdge, config.MaxImageEdge, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(config.ImageJPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
