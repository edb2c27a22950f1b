// Package recovery repairs specific low-confidence fields after the first
// whole-page extraction. Small print-only identifiers are systematically
// undersampled by whole-page extraction; they need pixel-level isolation
// plus a stricter prompt or pure OCR.
//
// Each attempt's outcome is a value, not a thrown error: callers and tests
// inspect every step uniformly, and nothing here ever aborts the pipeline.
package recovery

import (
	"context"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/transportschein/internal/llm"
	"github.com/joseph-ayodele/transportschein/internal/ocr"
	"github.com/joseph-ayodele/transportschein/internal/raster"
	"github.com/joseph-ayodele/transportschein/internal/schema"
)

// Step identifies one stage of the per-field recovery pipeline.
type Step string

const (
	StepPredicate  Step = "predicate"
	StepNarrowCrop Step = "narrow_crop"
	StepOCR        Step = "ocr_fallback"
	StepFullPage   Step = "full_page"
)

// Attempt records one recovery step and its outcome, for auditability.
type Attempt struct {
	Field string
	Step  Step
	Value string
	OK    bool
	Err   string
}

// RecoveryOrder fixes the field order; it matters for flag purposes when
// steps are measured, so it is not derived from the form definition order.
var RecoveryOrder = []string{"status_number", "ordering_party_phone", "betriebsstaetten_nr"}

const cropScale = 2

type Engine struct {
	extract llm.Extractor
	digits  ocr.DigitReader
	form    *schema.Form
	logger  *slog.Logger
}

func NewEngine(extract llm.Extractor, digits ocr.DigitReader, form *schema.Form, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{extract: extract, digits: digits, form: form, logger: logger}
}

// Recover runs the per-field pipeline (predicate → narrow crop → narrow call
// → OCR fallback → full-page retry → give up) over the recoverable fields in
// fixed order. Failures at any step are swallowed; a field that cannot be
// recovered stays empty and is flagged by the normalization engine later.
func (e *Engine) Recover(ctx context.Context, res schema.ExtractionResult, page raster.Image) (schema.ExtractionResult, []Attempt) {
	var log []Attempt
	for _, field := range RecoveryOrder {
		spec, ok := e.form.RecoverableByField(field)
		if !ok {
			continue
		}
		log = append(log, e.recoverField(ctx, &res, page, spec)...)
	}
	return res, log
}

func (e *Engine) recoverField(ctx context.Context, res *schema.ExtractionResult, page raster.Image, spec schema.RecoverableField) []Attempt {
	var attempts []Attempt
	record := func(a Attempt) {
		attempts = append(attempts, a)
		e.logger.Info("recovery.attempt",
			"field", a.Field, "step", string(a.Step), "ok", a.OK, "error", a.Err)
	}

	current := getField(&res.Data, spec.Field)
	if e.valid(spec, current) {
		record(Attempt{Field: spec.Field, Step: StepPredicate, Value: current, OK: true})
		return attempts
	}
	record(Attempt{Field: spec.Field, Step: StepPredicate, Value: current, OK: false})

	prompt, hasPrompt := llm.FieldPrompts[spec.Field]
	if !hasPrompt {
		return attempts
	}

	mode := raster.EnhanceText
	if spec.Enhance {
		mode = raster.EnhanceNumeric
	}
	crop := raster.Crop(page, raster.Box(spec.Box), cropScale, mode)

	// Narrow crop + narrow prompt.
	cropOK := false
	if img, err := pageImage(crop); err != nil {
		record(Attempt{Field: spec.Field, Step: StepNarrowCrop, Err: err.Error()})
	} else {
		cropOK = true
		val, err := e.extract.ExtractField(ctx, img, prompt)
		if err != nil {
			record(Attempt{Field: spec.Field, Step: StepNarrowCrop, Err: err.Error()})
		} else {
			val = e.canonical(spec, val)
			if e.valid(spec, val) {
				setField(&res.Data, spec.Field, val)
				record(Attempt{Field: spec.Field, Step: StepNarrowCrop, Value: val, OK: true})
				return attempts
			}
			record(Attempt{Field: spec.Field, Step: StepNarrowCrop, Value: val})
		}
	}

	// Local OCR over the same crop, digit whitelist, exact run length.
	if spec.Digits > 0 && cropOK && e.digits != nil {
		if png, err := crop.PNG(); err != nil {
			record(Attempt{Field: spec.Field, Step: StepOCR, Err: err.Error()})
		} else if run, err := e.digits.ReadDigits(ctx, png, spec.Digits); err != nil {
			record(Attempt{Field: spec.Field, Step: StepOCR, Err: err.Error()})
		} else if e.valid(spec, run) {
			setField(&res.Data, spec.Field, run)
			record(Attempt{Field: spec.Field, Step: StepOCR, Value: run, OK: true})
			return attempts
		} else {
			record(Attempt{Field: spec.Field, Step: StepOCR, Value: run})
		}
	}

	// Last resort: the narrow prompt against the full page.
	if img, err := pageImage(page); err != nil {
		record(Attempt{Field: spec.Field, Step: StepFullPage, Err: err.Error()})
	} else {
		val, err := e.extract.ExtractField(ctx, img, prompt)
		if err != nil {
			record(Attempt{Field: spec.Field, Step: StepFullPage, Err: err.Error()})
		} else {
			val = e.canonical(spec, val)
			if e.valid(spec, val) {
				setField(&res.Data, spec.Field, val)
				record(Attempt{Field: spec.Field, Step: StepFullPage, Value: val, OK: true})
				return attempts
			}
			record(Attempt{Field: spec.Field, Step: StepFullPage, Value: val})
		}
	}

	return attempts
}

// valid is the field's validity predicate: exact digit count with an optional
// fixed leading digit, or for free-form fields (Digits==0) a phone-shaped
// minimum of digits.
func (e *Engine) valid(spec schema.RecoverableField, value string) bool {
	digits := schema.DigitsOnly(value)
	if spec.Digits > 0 {
		if len(digits) != spec.Digits {
			return false
		}
		return spec.Leading == "" || strings.HasPrefix(digits, spec.Leading)
	}
	return len(digits) >= 6
}

// canonical reduces a narrow-extraction answer to the comparable form:
// digits only for identifier fields, trimmed text otherwise.
func (e *Engine) canonical(spec schema.RecoverableField, value string) string {
	if spec.Digits > 0 {
		return schema.DigitsOnly(value)
	}
	return strings.TrimSpace(value)
}

func pageImage(img raster.Image) (llm.PageImage, error) {
	b64, err := img.Base64PNG()
	if err != nil {
		return llm.PageImage{}, err
	}
	return llm.PageImage{Base64: b64}, nil
}

func getField(f *schema.FormFields, name string) string {
	switch name {
	case "status_number":
		return f.StatusNumber
	case "ordering_party_phone":
		return f.OrderingPartyPhone
	case "betriebsstaetten_nr":
		return f.FacilityNumber
	}
	return ""
}

func setField(f *schema.FormFields, name, value string) {
	switch name {
	case "status_number":
		f.StatusNumber = value
	case "ordering_party_phone":
		f.OrderingPartyPhone = value
	case "betriebsstaetten_nr":
		f.FacilityNumber = value
	}
}
