package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/transportschein/internal/common"
	"github.com/joseph-ayodele/transportschein/internal/llm/openai"
	"github.com/joseph-ayodele/transportschein/internal/normalize"
	"github.com/joseph-ayodele/transportschein/internal/ocr"
	"github.com/joseph-ayodele/transportschein/internal/pipeline"
	"github.com/joseph-ayodele/transportschein/internal/raster"
	"github.com/joseph-ayodele/transportschein/internal/recovery"
	"github.com/joseph-ayodele/transportschein/internal/schema"
)

// parseform runs the extraction pipeline against a single file and prints
// the normalized record as JSON. No database involved.
func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	attempts := flag.Bool("attempts", false, "include the field recovery audit log in the output")
	noLetterFix := flag.Bool("no-letter-fix", false, "disable the insurance number letter correction")
	flag.Parse()

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "parseform [-attempts] [-no-letter-fix] <file>")
		os.Exit(2)
	}
	filePath := flag.Arg(0)

	cfg := common.LoadConfig()
	if err := cfg.ValidatePipeline(); err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	form, err := schema.Load()
	if err != nil {
		logger.Error("load form definition", "error", err)
		os.Exit(1)
	}

	extractor := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	rasterizer := raster.NewRasterizer(raster.Config{
		Pdftoppm: cfg.Raster.Pdftoppm,
		DPI:      cfg.Raster.DPI,
	}, logger)
	digits := ocr.NewReader(ocr.Config{TessdataDir: cfg.OCR.TessdataDir}, logger)
	engine := recovery.NewEngine(extractor, digits, form, logger)

	opts := normalize.DefaultOptions()
	if *noLetterFix {
		opts.FixInsuranceLetter = false
	}
	processor := pipeline.NewProcessor(logger, rasterizer, extractor, engine, form, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := processor.Run(ctx, filePath)
	if err != nil {
		logger.Error("pipeline failed", "path", filePath, "error", err)
		os.Exit(1)
	}

	out := map[string]any{
		"data":  result.Record.Data,
		"flags": result.Record.Flags,
	}
	if *attempts {
		out["recovery_attempts"] = result.Attempts
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("encode output", "error", err)
		os.Exit(1)
	}
}
