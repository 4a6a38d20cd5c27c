// Package imaging holds the raster transforms used by the decode cascade.
package imaging

import (
	"image"
	"image/color"

	"github.com/spherical/scan-router/internal/domain"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop returns the part of img inside r, which must overlap the image bounds.
func Crop(img image.Image, r image.Rectangle) (image.Image, error) {
	if img == nil {
		return nil, domain.TransformError("crop of nil image", nil)
	}
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return nil, domain.TransformError("crop window lies outside the image", nil)
	}
	if si, ok := img.(subImager); ok {
		return si.SubImage(r), nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst, nil
}

// ScaleOnCanvas scales img uniformly by factor with bilinear interpolation and
// draws the result onto a white canvas the size of the original. Magnified
// content beyond the canvas is clipped; reduced content leaves white padding.
func ScaleOnCanvas(img image.Image, factor float64) (image.Image, error) {
	if img == nil {
		return nil, domain.TransformError("scale of nil image", nil)
	}
	if factor <= 0 {
		return nil, domain.TransformError("scale factor must be positive", nil)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, domain.TransformError("scale of empty image", nil)
	}

	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	s2d := f64.Aff3{
		factor, 0, -factor * float64(b.Min.X),
		0, factor, -factor * float64(b.Min.Y),
	}
	draw.BiLinear.Transform(dst, s2d, img, b, draw.Over, nil)
	return dst, nil
}
