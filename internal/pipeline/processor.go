// Package pipeline coordinates the extraction stages: rasterize the source
// document, run the whole-page extraction, recover weak identifier fields,
// and normalize the record deterministically.
package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/transportschein/constants"
	"github.com/joseph-ayodele/transportschein/internal/llm"
	"github.com/joseph-ayodele/transportschein/internal/normalize"
	"github.com/joseph-ayodele/transportschein/internal/raster"
	"github.com/joseph-ayodele/transportschein/internal/recovery"
	"github.com/joseph-ayodele/transportschein/internal/repository"
	"github.com/joseph-ayodele/transportschein/internal/schema"
)

// Result is the outcome of one pipeline run.
type Result struct {
	Record   schema.ExtractionResult
	Attempts []recovery.Attempt
}

// Processor runs the extraction stages against one document.
type Processor struct {
	logger   *slog.Logger
	raster   *raster.Rasterizer
	extract  llm.Extractor
	recovery *recovery.Engine
	form     *schema.Form
	opts     normalize.Options
}

func NewProcessor(logger *slog.Logger, r *raster.Rasterizer, ex llm.Extractor,
	rec *recovery.Engine, form *schema.Form, opts normalize.Options) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:   logger,
		raster:   r,
		extract:  ex,
		recovery: rec,
		form:     form,
		opts:     opts,
	}
}

// encodePage picks the wire encoding for the full page. Rendered PDF pages
// stay PNG; camera photos are re-encoded as JPEG after the flatten and
// downscale in LoadPhoto.
func encodePage(filePath string, page raster.Image) (llm.PageImage, error) {
	if constants.MapExtToFormat(filepath.Ext(filePath)) == constants.IMAGE {
		b64, err := page.Base64JPEG()
		if err != nil {
			return llm.PageImage{}, err
		}
		return llm.PageImage{Base64: b64, MIME: "image/jpeg"}, nil
	}
	b64, err := page.Base64PNG()
	if err != nil {
		return llm.PageImage{}, err
	}
	return llm.PageImage{Base64: b64}, nil
}

// Run executes the stages against a file on disk. It has no store
// dependency; cmd/parseform uses it directly.
func (p *Processor) Run(ctx context.Context, filePath string) (Result, error) {
	runID := uuid.New()
	log := p.logger.With("run_id", runID, "path", filePath)

	page, err := p.raster.Rasterize(ctx, filePath, 1)
	if err != nil {
		log.Error("pipeline.raster.failed", "err", err)
		return Result{}, err
	}
	log.Info("pipeline.raster.ok", "width", page.Width(), "height", page.Height())

	img, err := encodePage(filePath, page)
	if err != nil {
		return Result{}, err
	}
	res, _, err := p.extract.ExtractPage(ctx, img, p.form)
	if err != nil {
		log.Error("pipeline.extract.failed", "err", err)
		return Result{}, err
	}
	log.Info("pipeline.extract.ok", "flags", len(res.Flags))

	res, attempts := p.recovery.Recover(ctx, res, page)
	log.Info("pipeline.recovery.ok", "attempts", len(attempts))

	normalize.Normalize(&res, p.opts)
	log.Info("pipeline.normalize.ok", "flags", len(res.Flags))

	return Result{Record: res, Attempts: attempts}, nil
}

// Service binds the processor to the document store and drives the status
// transitions.
type Service struct {
	logger    *slog.Logger
	processor *Processor
	store     *repository.Documents
}

func NewService(logger *slog.Logger, processor *Processor, store *repository.Documents) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, processor: processor, store: store}
}

// Process claims the document, runs the pipeline, and lands the result in
// pending_review. A failed run records the failure verbatim and moves the
// document to error; both outcomes leave it reprocessable.
func (s *Service) Process(ctx context.Context, id uuid.UUID) error {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.StartProcessing(ctx, id); err != nil {
		return err
	}

	result, err := s.processor.Run(ctx, doc.FilePath)
	if err != nil {
		if markErr := s.store.MarkError(ctx, id, err.Error()); markErr != nil {
			s.logger.Error("pipeline.mark_error.failed", "document_id", id, "err", markErr)
		}
		return err
	}

	record, err := schema.Encode(result.Record)
	if err != nil {
		if markErr := s.store.MarkError(ctx, id, err.Error()); markErr != nil {
			s.logger.Error("pipeline.mark_error.failed", "document_id", id, "err", markErr)
		}
		return err
	}
	return s.store.SavePendingReview(ctx, id, record)
}
