package qrpng

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncoder_Encode(t *testing.T) {
	enc := New(0)

	b, err := enc.Encode(`{"shortId":"qr_1","url":"http://localhost:8080/api/info/qr_1"}`)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	require.Equal(t, DefaultSize, img.Bounds().Dx())
}

func TestEncoder_TooLong(t *testing.T) {
	_, err := New(128).Encode(strings.Repeat("x", 5000))
	require.Error(t, err)
	require.Contains(t, err.Error(), "qr encode")
}
