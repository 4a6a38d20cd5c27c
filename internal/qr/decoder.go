// Package qr decodes QR symbols from raster images with gozxing.
package qr

import (
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	multiqr "github.com/makiuchi-d/gozxing/multi/qrcode"

	"github.com/spherical/scan-router/internal/domain"
)

type multiReader interface {
	DecodeMultiple(image *gozxing.BinaryBitmap, hints map[gozxing.DecodeHintType]interface{}) ([]*gozxing.Result, error)
}

// Decoder finds every QR symbol in an image. Each call uses its own reader,
// so one Decoder may be shared between goroutines.
type Decoder struct {
	newReader func() multiReader
	hints     map[gozxing.DecodeHintType]interface{}
}

// NewDecoder creates a QR decoder that tries harder on every image.
func NewDecoder() *Decoder {
	return &Decoder{
		newReader: func() multiReader { return multiqr.NewQRCodeMultiReader() },
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// Decode returns the text of every QR symbol found in img, or an error
// wrapping domain.ErrNotFound when there is none.
func (d *Decoder) Decode(img image.Image) ([]string, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, domain.DecodeError("empty image", nil)
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, domain.DecodeError("binarize image", err)
	}

	results, err := d.newReader().DecodeMultiple(bmp, d.hints)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}

	texts := make([]string, 0, len(results))
	for _, r := range results {
		if r == nil || r.GetText() == "" {
			continue
		}
		texts = append(texts, r.GetText())
	}
	if len(texts) == 0 {
		return nil, domain.ErrNotFound
	}
	return texts, nil
}
