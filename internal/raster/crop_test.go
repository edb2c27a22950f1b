package raster

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/transportschein/internal/common"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func grayImage(w, h int, val uint8) Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{val, val, val, 255})
		}
	}
	return Image{Img: img}
}

func TestCropIdentity(t *testing.T) {
	src := grayImage(200, 100, 200)
	got := Crop(src, Box{0, 0, 1, 1}, 1, EnhanceNone)
	if got.Width() != 200 || got.Height() != 100 {
		t.Fatalf("identity crop changed dimensions: %dx%d", got.Width(), got.Height())
	}
}

func TestCropSubRegion(t *testing.T) {
	src := grayImage(200, 100, 200)
	got := Crop(src, Box{0.25, 0.5, 0.75, 1}, 1, EnhanceNone)
	if got.Width() != 100 || got.Height() != 50 {
		t.Fatalf("unexpected crop dimensions: %dx%d", got.Width(), got.Height())
	}
}

func TestCropClampsOutOfRangeBox(t *testing.T) {
	src := grayImage(100, 100, 200)
	got := Crop(src, Box{-0.5, -0.5, 1.5, 1.5}, 1, EnhanceNone)
	if got.Width() != 100 || got.Height() != 100 {
		t.Fatalf("unexpected clamped dimensions: %dx%d", got.Width(), got.Height())
	}
}

func TestCropDegenerateBoxNeverEmpty(t *testing.T) {
	src := grayImage(100, 100, 200)
	got := Crop(src, Box{0.5, 0.5, 0.5, 0.5}, 1, EnhanceNone)
	if got.Width() < 1 || got.Height() < 1 {
		t.Fatalf("degenerate crop produced empty image: %dx%d", got.Width(), got.Height())
	}
}

func TestCropUpscale(t *testing.T) {
	src := grayImage(100, 50, 200)
	got := Crop(src, Box{0, 0, 1, 1}, 2, EnhanceNone)
	if got.Width() != 200 || got.Height() != 100 {
		t.Fatalf("unexpected upscaled dimensions: %dx%d", got.Width(), got.Height())
	}
}

func TestEnhanceNumericBinarizes(t *testing.T) {
	// Light background with a small dark blob, like a printed digit.
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			v := uint8(230)
			if x >= 18 && x < 22 && y >= 8 && y < 12 {
				v = 30
			}
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	got := Crop(Image{Img: img}, Box{0, 0, 1, 1}, 1, EnhanceNumeric)
	dark := color.GrayModel.Convert(got.Img.At(20, 10)).(color.Gray).Y
	light := color.GrayModel.Convert(got.Img.At(5, 5)).(color.Gray).Y
	if dark != 0 {
		t.Fatalf("expected black ink pixel, got %d", dark)
	}
	if light != 255 {
		t.Fatalf("expected white background pixel, got %d", light)
	}
}

func TestEnhanceRemovesRuleLines(t *testing.T) {
	// A full-width dark line must be blanked, a small blob must survive.
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			v := uint8(230)
			if y == 10 {
				v = 30 // table rule
			}
			if x >= 4 && x < 7 && y >= 3 && y < 6 {
				v = 30 // ink blob
			}
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	got := Crop(Image{Img: img}, Box{0, 0, 1, 1}, 1, EnhanceNumeric)
	line := color.GrayModel.Convert(got.Img.At(30, 10)).(color.Gray).Y
	blob := color.GrayModel.Convert(got.Img.At(5, 4)).(color.Gray).Y
	if line != 255 {
		t.Fatalf("rule line not removed, got %d", line)
	}
	if blob != 0 {
		t.Fatalf("ink blob lost, got %d", blob)
	}
}

func TestRasterizeRejectsUnknownExtension(t *testing.T) {
	r := NewRasterizer(Config{}, testLogger())
	_, err := r.Rasterize(context.Background(), "form.txt", 1)
	if !errors.Is(err, common.ErrUnsupportedDocument) {
		t.Fatalf("expected unsupported document, got %v", err)
	}
}

func TestRasterizeRejectsSecondPhotoPage(t *testing.T) {
	r := NewRasterizer(Config{}, testLogger())
	_, err := r.Rasterize(context.Background(), "form.jpg", 2)
	if !errors.Is(err, common.ErrUnsupportedDocument) {
		t.Fatalf("expected unsupported document, got %v", err)
	}
}

func TestLoadPhotoDownscalesAndFlattens(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3000, 1500))
	// fully transparent; flattening must land on white
	path := filepath.Join(t.TempDir(), "big.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	_ = f.Close()

	got, err := LoadPhoto(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Width() > 2000 || got.Height() > 2000 {
		t.Fatalf("photo not downscaled: %dx%d", got.Width(), got.Height())
	}
	// aspect ratio preserved (2:1)
	if got.Width() != 2*got.Height() {
		t.Fatalf("aspect ratio lost: %dx%d", got.Width(), got.Height())
	}
	white := color.GrayModel.Convert(got.Img.At(10, 10)).(color.Gray).Y
	if white < 250 {
		t.Fatalf("transparent background not flattened to white, got %d", white)
	}
}

func TestImagePNGRoundTrip(t *testing.T) {
	src := grayImage(10, 10, 100)
	b, err := src.PNG()
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	if len(b) == 0 {
		t.Fatal("empty png")
	}
	b64, err := src.Base64PNG()
	if err != nil {
		t.Fatalf("base64: %v", err)
	}
	if len(b64) == 0 {
		t.Fatal("empty base64")
	}
}

func TestImageJPEGEncode(t *testing.T) {
	src := grayImage(12, 8, 100)
	b, err := src.JPEG()
	if err != nil {
		t.Fatalf("jpeg: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decode jpeg: %v", err)
	}
	if img.Bounds().Dx() != 12 || img.Bounds().Dy() != 8 {
		t.Fatalf("jpeg dimensions changed: %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
	b64, err := src.Base64JPEG()
	if err != nil {
		t.Fatalf("base64 jpeg: %v", err)
	}
	if len(b64) == 0 {
		t.Fatal("empty base64")
	}
}
