// Package raster turns source documents (PDF pages or photos) into in-memory
// bitmaps and produces rectangular sub-region crops with optional enhancement
// for numeric fields. All transforms are pure; rendering shells out to
// pdftoppm through a mockable Runner.
package raster

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/joseph-ayodele/transportschein/constants"
	"github.com/joseph-ayodele/transportschein/internal/common"
)

// Image is an in-memory bitmap plus its pixel dimensions. Derived, never
// persisted; owned transiently by one pipeline invocation.
type Image struct {
	Img image.Image
}

func (i Image) Width() int  { return i.Img.Bounds().Dx() }
func (i Image) Height() int { return i.Img.Bounds().Dy() }

// PNG encodes the bitmap as PNG bytes.
func (i Image) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, i.Img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Base64PNG encodes the bitmap as base64 PNG, the form rendered pages and
// crops travel in.
func (i Image) Base64PNG() (string, error) {
	b, err := i.PNG()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// JPEG encodes the bitmap as JPEG bytes. Camera photos go to the extraction
// service in this form; the alpha channel is already flattened by LoadPhoto.
func (i Image) JPEG() ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, i.Img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Base64JPEG encodes the bitmap as base64 JPEG.
func (i Image) Base64JPEG() (string, error) {
	b, err := i.JPEG()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

const jpegQuality = 90

type Config struct {
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"
	DPI      int    // rendering resolution, default 250
}

type Rasterizer struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewRasterizer(cfg Config, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 250
	}
	return &Rasterizer{cfg: cfg, runner: execRunner{}, logger: logger}
}

// Rasterize renders one page of a source document into a full-page bitmap.
// Pages are 1-indexed. A page index out of range is an unsupported-document
// error, not a crash.
func (r *Rasterizer) Rasterize(ctx context.Context, path string, page int) (Image, error) {
	ext := filepath.Ext(path)
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		return r.rasterizePDF(ctx, path, page)
	case constants.IMAGE:
		if page != 1 {
			return Image{}, fmt.Errorf("%w: page %d requested from a single-page photo",
				common.ErrUnsupportedDocument, page)
		}
		return LoadPhoto(path)
	}
	return Image{}, fmt.Errorf("%w: unknown extension %q", common.ErrUnsupportedDocument, ext)
}

func (r *Rasterizer) rasterizePDF(ctx context.Context, path string, page int) (Image, error) {
	pages, err := api.PageCountFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", common.ErrUnsupportedDocument, err)
	}
	if page < 1 || page > pages {
		return Image{}, fmt.Errorf("%w: page %d does not exist, pdf has %d pages",
			common.ErrUnsupportedDocument, page, pages)
	}

	tmpDir, err := os.MkdirTemp("", "ts-pp-*")
	if err != nil {
		return Image{}, err
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			r.logger.Warn("raster.tmpdir.remove_failed", "dir", tmpDir, "error", rmErr)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -f N -l N -r DPI -png <in.pdf> <tmp/page>
	_, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm,
		"-f", fmt.Sprintf("%d", page), "-l", fmt.Sprintf("%d", page),
		"-r", fmt.Sprintf("%d", r.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return Image{}, fmt.Errorf("pdftoppm: %w (%s)", err, truncate(string(errb), 512))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return Image{}, fmt.Errorf("pdftoppm produced no image for page %d", page)
	}
	f, err := os.Open(matches[0])
	if err != nil {
		return Image{}, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return Image{}, fmt.Errorf("decode rendered page: %w", err)
	}
	r.logger.Debug("raster.page.ok", "path", path, "page", page,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy(), "dpi", r.cfg.DPI)
	return Image{Img: img}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
