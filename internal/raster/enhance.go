package raster

import (
	"image"
	"image/color"
)

const (
	contrastFactor = 1.6
	// A row or column whose dark-pixel fraction exceeds this is treated as a
	// printed table rule and blanked out.
	ruleLineDarkFraction = 0.55
	darkThreshold        = 128
)

// enhance applies, in order: grayscale conversion, contrast boost, sharpen,
// rule-line removal, and for numeric fields adaptive binarization around the
// image's mean brightness.
func enhance(img image.Image, numeric bool) image.Image {
	g := toGray(img)
	adjustContrast(g, contrastFactor)
	g = sharpen(g)
	removeRuleLines(g)
	if numeric {
		binarizeMean(g)
	}
	return g
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.Set(x, y, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)))
		}
	}
	return g
}

// adjustContrast stretches pixel values around mid-gray in place.
func adjustContrast(g *image.Gray, factor float64) {
	for i, p := range g.Pix {
		v := (float64(p)-128)*factor + 128
		g.Pix[i] = clampByte(v)
	}
}

// sharpen applies a 3x3 sharpening kernel. Border pixels are kept as-is.
func sharpen(g *image.Gray) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(g.Rect)
	copy(out.Pix, g.Pix)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			c := 5 * int(g.GrayAt(x, y).Y)
			c -= int(g.GrayAt(x-1, y).Y)
			c -= int(g.GrayAt(x+1, y).Y)
			c -= int(g.GrayAt(x, y-1).Y)
			c -= int(g.GrayAt(x, y+1).Y)
			out.SetGray(x, y, color.Gray{Y: clampByte(float64(c))})
		}
	}
	return out
}

// removeRuleLines blanks any row or column whose dark-pixel fraction exceeds
// the threshold, stripping printed table rules that confuse digit OCR.
func removeRuleLines(g *image.Gray) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if w == 0 || h == 0 {
		return
	}
	for y := 0; y < h; y++ {
		dark := 0
		for x := 0; x < w; x++ {
			if g.GrayAt(x, y).Y < darkThreshold {
				dark++
			}
		}
		if float64(dark)/float64(w) > ruleLineDarkFraction {
			for x := 0; x < w; x++ {
				g.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	for x := 0; x < w; x++ {
		dark := 0
		for y := 0; y < h; y++ {
			if g.GrayAt(x, y).Y < darkThreshold {
				dark++
			}
		}
		if float64(dark)/float64(h) > ruleLineDarkFraction {
			for y := 0; y < h; y++ {
				g.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
}

// binarizeMean thresholds slightly below the mean brightness so faint print
// survives while paper texture drops out.
func binarizeMean(g *image.Gray) {
	if len(g.Pix) == 0 {
		return
	}
	var sum uint64
	for _, p := range g.Pix {
		sum += uint64(p)
	}
	mean := float64(sum) / float64(len(g.Pix))
	thr := clampByte(mean * 0.85)
	for i, p := range g.Pix {
		if p < thr {
			g.Pix[i] = 0
		} else {
			g.Pix[i] = 255
		}
	}
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
