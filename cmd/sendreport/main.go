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
	"github.com/joseph-ayodele/transportschein/internal/dispatch"
	"github.com/joseph-ayodele/transportschein/internal/schema"
)

// sendreport builds the dispatch payload from a normalized record file and
// either previews it or submits it to the dispatch API.
func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	submit := flag.Bool("submit", false, "submit the payload instead of printing it")
	targetStreet := flag.String("target-street", "", "manual destination street override")
	targetZip := flag.String("target-zip", "", "manual destination zip override")
	targetCity := flag.String("target-city", "", "manual destination city override")
	flag.Parse()

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "sendreport [-submit] [-target-street ... -target-zip ... -target-city ...] <record.json>")
		os.Exit(2)
	}

	raw, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		logger.Error("read record file", "error", err)
		os.Exit(1)
	}
	rec, err := schema.Decode(raw)
	if err != nil {
		logger.Error("parse record file", "error", err)
		os.Exit(1)
	}

	cfg := common.LoadConfig()
	if err := cfg.ValidateDispatch(); err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	client := dispatch.NewClient(cfg.Dispatch, logger)
	builder := dispatch.NewBuilder(client, cfg.Dispatch, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	override := dispatch.Address{
		Street: *targetStreet,
		Zip:    *targetZip,
		City:   *targetCity,
	}
	report, err := builder.Build(ctx, rec.Data, override)
	if err != nil {
		logger.Error("build payload", "error", err)
		os.Exit(1)
	}

	if !*submit {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			logger.Error("encode payload", "error", err)
			os.Exit(1)
		}
		return
	}

	resp, err := client.CreateDriverReport(ctx, report)
	if err != nil {
		logger.Error("submit payload", "error", err)
		os.Exit(1)
	}
	_, _ = os.Stdout.Write(append(resp, '\n'))
}
