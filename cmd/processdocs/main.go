package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/transportschein/internal/async"
	"github.com/joseph-ayodele/transportschein/internal/common"
	"github.com/joseph-ayodele/transportschein/internal/ingest"
	"github.com/joseph-ayodele/transportschein/internal/llm/openai"
	"github.com/joseph-ayodele/transportschein/internal/normalize"
	"github.com/joseph-ayodele/transportschein/internal/ocr"
	"github.com/joseph-ayodele/transportschein/internal/pipeline"
	"github.com/joseph-ayodele/transportschein/internal/raster"
	"github.com/joseph-ayodele/transportschein/internal/recovery"
	"github.com/joseph-ayodele/transportschein/internal/repository"
	"github.com/joseph-ayodele/transportschein/internal/schema"
)

// processdocs registers every form file under a directory and runs the
// extraction pipeline over them with a worker pool.
func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	workers := flag.Int("workers", 4, "concurrent pipeline runs")
	flag.Parse()

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "processdocs [-workers N] <upload-dir>")
		os.Exit(2)
	}
	root := flag.Arg(0)

	cfg := common.LoadConfig()
	if err := cfg.ValidatePipeline(); err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateDatabase(); err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("open db", "error", err)
		os.Exit(1)
	}
	defer repository.Close(pool, logger)

	store := repository.NewDocuments(pool, logger)
	if err := store.Migrate(ctx); err != nil {
		logger.Error("migrate", "error", err)
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
	processor := pipeline.NewProcessor(logger, rasterizer, extractor, engine, form, normalize.DefaultOptions())
	svc := pipeline.NewService(logger, processor, store)

	queue := async.NewProcessorQueue(svc, logger, async.WithWorkers(*workers))

	scanner := ingest.NewScanner(store, logger)
	results, stats, err := scanner.ScanDirectory(ctx, root, true)
	if err != nil {
		logger.Error("scan failed", "root", root, "error", err)
		os.Exit(1)
	}

	for _, r := range results {
		if r.Err != "" {
			continue
		}
		_ = queue.Enqueue(ctx, async.Job{DocumentID: r.DocumentID, SubmittedAt: time.Now()})
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(stats.Registered+1)*10*time.Minute)
	defer cancel()
	queue.Shutdown(shutdownCtx)

	logger.Info("batch finished",
		"registered", stats.Registered, "failed", stats.Failed)
}
