package statusicon

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePNG(t *testing.T, size int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestEncodeProducesDataURI(t *testing.T) {
	data := samplePNG(t, 128, color.RGBA{R: 200, G: 10, B: 10, A: 255})

	uri, err := Encode(data)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))
}

func TestEncodeResizesToIconSize(t *testing.T) {
	data := samplePNG(t, 256, color.RGBA{A: 255})

	uri, err := Encode(data)
	require.NoError(t, err)

	raw := strings.TrimPrefix(uri, "data:image/png;base64,")
	decoded, err := base64.StdEncoding.DecodeString(raw)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(decoded))
	require.NoError(t, err)

	bounds := img.Bounds()
	assert.Equal(t, iconSize, bounds.Dx())
	assert.Equal(t, iconSize, bounds.Dy())
}

func TestEncodeCachesRepeatedInput(t *testing.T) {
	data := samplePNG(t, 64, color.RGBA{B: 255, A: 255})

	first, err := Encode(data)
	require.NoError(t, err)
	second, err := Encode(data)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEncodeRejectsNonPNGInput(t *testing.T) {
	_, err := Encode([]byte("not a png"))
	assert.Error(t, err)
}
