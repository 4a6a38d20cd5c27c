package qr

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/scan-router/internal/domain"
)

func encodeQR(t *testing.T, text string, size int) image.Image {
	t.Helper()
	img, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, size, size, nil)
	require.NoError(t, err)
	return img
}

// page returns a white w×h page with src drawn at offset.
func page(w, h int, src image.Image, offset image.Point) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if src != nil {
		r := src.Bounds().Sub(src.Bounds().Min).Add(offset)
		draw.Draw(dst, r, src, src.Bounds().Min, draw.Src)
	}
	return dst
}

func TestDecoder_DecodesSymbol(t *testing.T) {
	d := NewDecoder()

	got, err := d.Decode(encodeQR(t, "ABC-001", 200))
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC-001"}, got)
}

func TestDecoder_DecodesSymbolOnPage(t *testing.T) {
	d := NewDecoder()
	img := page(612, 792, encodeQR(t, "12-345-A-XYZ123", 200), image.Pt(150, 50))

	got, err := d.Decode(img)
	require.NoError(t, err)
	assert.Equal(t, []string{"12-345-A-XYZ123"}, got)
}

func TestDecoder_BlankPage(t *testing.T) {
	d := NewDecoder()

	got, err := d.Decode(page(300, 300, nil, image.Point{}))
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDecoder_EmptyImage(t *testing.T) {
	d := NewDecoder()

	_, err := d.Decode(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.True(t, domain.IsType(err, domain.ErrorTypeDecode))
	assert.False(t, errors.Is(err, domain.ErrNotFound))

	_, err = d.Decode(nil)
	assert.Error(t, err)
}
