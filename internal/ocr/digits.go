// Package ocr is the local fallback for small printed identifier fields:
// a digit-whitelisted tesseract pass over an enhanced crop, scanned for a
// contiguous run of the exact required digit count.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DigitReader reads a fixed-length digit run out of a bitmap.
type DigitReader interface {
	ReadDigits(ctx context.Context, png []byte, count int) (string, error)
}

type Config struct {
	TessdataDir string
	Lang        string // default "deu"
}

type Reader struct {
	cfg    Config
	engine Engine
	logger *slog.Logger
}

func NewReader(cfg Config, logger *slog.Logger) *Reader {
	if cfg.Lang == "" {
		cfg.Lang = "deu"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{cfg: cfg, engine: gosseractEngine{tessdataDir: cfg.TessdataDir, lang: cfg.Lang}, logger: logger}
}

// ReadDigits runs the whitelist pass and returns the first contiguous run of
// exactly count digits, or "" when none is present.
func (r *Reader) ReadDigits(ctx context.Context, png []byte, count int) (string, error) {
	if count <= 0 {
		return "", fmt.Errorf("digit count must be positive, got %d", count)
	}
	start := time.Now()

	text, err := r.engine.Text(ctx, png)
	if err != nil {
		r.logger.Warn("ocr.digits.failed", "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}

	run := findDigitRun(text, count)
	r.logger.Debug("ocr.digits.ok",
		"raw_len", len(text), "digits", count, "found", run != "",
		"elapsed_ms", time.Since(start).Milliseconds())
	return run, nil
}

// findDigitRun scans text for a maximal digit run of exactly n digits.
// Longer runs are rejected: a 10-digit run is not a 9-digit identifier.
func findDigitRun(text string, n int) string {
	runStart := -1
	flush := func(end int) string {
		if runStart >= 0 && end-runStart == n {
			return text[runStart:end]
		}
		return ""
	}
	for i := 0; i < len(text); i++ {
		if text[i] >= '0' && text[i] <= '9' {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if s := flush(i); s != "" {
			return s
		}
		runStart = -1
	}
	return flush(len(text))
}
