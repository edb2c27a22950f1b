package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"

	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// maxPhotoDim bounds camera photos before they go to the extraction service;
// phone originals are routinely 4000px+ and only add latency.
const maxPhotoDim = 2000

// LoadPhoto decodes a camera photo, flattens any alpha channel onto white and
// downscales oversized images.
func LoadPhoto(path string) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return Image{}, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return Image{}, fmt.Errorf("decode photo: %w", err)
	}

	b := img.Bounds()
	flat := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, b.Min, draw.Over)

	w, h := flat.Bounds().Dx(), flat.Bounds().Dy()
	if w <= maxPhotoDim && h <= maxPhotoDim {
		return Image{Img: flat}, nil
	}

	ratio := float64(maxPhotoDim) / float64(max(w, h))
	nw, nh := int(float64(w)*ratio), int(float64(h)*ratio)
	scaled := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), flat, flat.Bounds(), xdraw.Src, nil)
	return Image{Img: scaled}, nil
}
