package raster

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// EnhanceMode selects the enhancement sequence applied after cropping.
type EnhanceMode int

const (
	EnhanceNone EnhanceMode = iota
	// EnhanceText: grayscale, contrast, sharpen, rule-line removal.
	EnhanceText
	// EnhanceNumeric: EnhanceText plus mean-brightness binarization, for
	// small printed identifier fields.
	EnhanceNumeric
)

// Box is a relative rectangle (x0,y0,x1,y1), coordinates in [0,1].
type Box [4]float64

// Crop cuts a relative sub-region out of img, optionally upscales it and
// applies enhancement. Coordinates are clamped to the image bounds and the
// result is never empty: a degenerate box yields a 1x1 crop.
func Crop(img Image, box Box, scale int, mode EnhanceMode) Image {
	w, h := img.Width(), img.Height()
	b := img.Img.Bounds()

	left := clamp(int(float64(w)*box[0]), 0, w-1)
	top := clamp(int(float64(h)*box[1]), 0, h-1)
	right := clamp(int(float64(w)*box[2]), left+1, w)
	bottom := clamp(int(float64(h)*box[3]), top+1, h)

	dst := image.NewRGBA(image.Rect(0, 0, right-left, bottom-top))
	xdraw.Draw(dst, dst.Bounds(), img.Img, b.Min.Add(image.Pt(left, top)), xdraw.Src)

	var out image.Image = dst
	if scale > 1 {
		scaled := image.NewRGBA(image.Rect(0, 0, dst.Bounds().Dx()*scale, dst.Bounds().Dy()*scale))
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), dst, dst.Bounds(), xdraw.Src, nil)
		out = scaled
	}

	switch mode {
	case EnhanceText:
		out = enhance(out, false)
	case EnhanceNumeric:
		out = enhance(out, true)
	}
	return Image{Img: out}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
