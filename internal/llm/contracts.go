package llm

import (
	"context"

	"github.com/joseph-ayodele/transportschein/internal/schema"
)

// PageImage carries one base64-encoded raster for a vision request. Crops
// travel as PNG; camera photos are re-encoded as JPEG.
type PageImage struct {
	Base64 string
	MIME   string // default image/png
}

// Extractor is the interface the pipeline depends on. One call, one request;
// retry and recovery live in the recovery engine, never here.
type Extractor interface {
	// ExtractPage runs the whole-page extraction under the fixed instruction
	// set and returns the schema-validated record plus the raw body.
	ExtractPage(ctx context.Context, img PageImage, form *schema.Form) (schema.ExtractionResult, []byte, error)

	// ExtractField runs a narrow single-field request with its own minimal
	// instruction text and returns the raw field value (may be empty).
	ExtractField(ctx context.Context, img PageImage, prompt FieldPrompt) (string, error)
}
