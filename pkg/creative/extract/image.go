package extract

import (
	"bytes"
	"fmt"
	"image"

	// Registered decoders for DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/tendant/creative-analysis/pkg/creative"
)

// ImageDimensions reads the pixel dimensions from the image header without
// decoding the pixel data.
func ImageDimensions(data []byte) (creative.Dimensions, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return creative.Dimensions{}, "", fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return creative.Dimensions{}, format, fmt.Errorf("image header reports %dx%d", cfg.Width, cfg.Height)
	}
	return creative.Dimensions{Width: cfg.Width, Height: cfg.Height}, format, nil
}
