package extract_test

import (
	"bytes"
	"image"
	"image/gif"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/creative-analysis/pkg/creative"
	"github.com/tendant/creative-analysis/pkg/creative/extract"
)

func TestImageDimensions(t *testing.T) {
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, image.NewRGBA(image.Rect(0, 0, 300, 250))))

	dims, format, err := extract.ImageDimensions(pngBuf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, creative.Dimensions{Width: 300, Height: 250}, dims)
	assert.Equal(t, "png", format)

	var gifBuf bytes.Buffer
	require.NoError(t, gif.Encode(&gifBuf, image.NewPaletted(image.Rect(0, 0, 728, 90), nil), nil))
	dims, format, err = extract.ImageDimensions(gifBuf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "728x90", dims.String())
	assert.Equal(t, "gif", format)
}

func TestImageDimensions_Corrupt(t *testing.T) {
	_, _, err := extract.ImageDimensions([]byte("definitely not an image"))
	assert.Error(t, err)
}
