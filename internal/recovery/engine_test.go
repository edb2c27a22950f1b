package recovery

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"testing"

	"github.com/joseph-ayodele/transportschein/internal/llm"
	"github.com/joseph-ayodele/transportschein/internal/raster"
	"github.com/joseph-ayodele/transportschein/internal/schema"
)

type fakeExtractor struct {
	fieldAnswers map[string][]string // per json key, consumed in order
	fieldCalls   int
}

func (f *fakeExtractor) ExtractPage(context.Context, llm.PageImage, *schema.Form) (schema.ExtractionResult, []byte, error) {
	return schema.ExtractionResult{}, nil, errors.New("not used")
}

func (f *fakeExtractor) ExtractField(_ context.Context, _ llm.PageImage, p llm.FieldPrompt) (string, error) {
	f.fieldCalls++
	answers := f.fieldAnswers[p.JSONKey]
	if len(answers) == 0 {
		return "", nil
	}
	v := answers[0]
	f.fieldAnswers[p.JSONKey] = answers[1:]
	return v, nil
}

type fakeDigits struct {
	value string
	err   error
	calls int
}

func (f *fakeDigits) ReadDigits(context.Context, []byte, int) (string, error) {
	f.calls++
	return f.value, f.err
}

func testPage() raster.Image {
	img := image.NewRGBA(image.Rect(0, 0, 100, 140))
	for y := 0; y < 140; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{220, 220, 220, 255})
		}
	}
	return raster.Image{Img: img}
}

func testForm(t *testing.T) *schema.Form {
	t.Helper()
	f, err := schema.Load()
	if err != nil {
		t.Fatalf("load form: %v", err)
	}
	return f
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecoverSkipsValidFields(t *testing.T) {
	ex := &fakeExtractor{fieldAnswers: map[string][]string{}}
	e := NewEngine(ex, &fakeDigits{}, testForm(t), testLogger())

	res := schema.ExtractionResult{Data: schema.FormFields{
		StatusNumber:       "5000000",
		OrderingPartyPhone: "030/123456",
		FacilityNumber:     "123456789",
	}}
	got, attempts := e.Recover(context.Background(), res, testPage())

	if ex.fieldCalls != 0 {
		t.Fatalf("no narrow calls expected, got %d", ex.fieldCalls)
	}
	if len(attempts) != 3 {
		t.Fatalf("expected one predicate attempt per field, got %d", len(attempts))
	}
	for _, a := range attempts {
		if a.Step != StepPredicate || !a.OK {
			t.Fatalf("unexpected attempt %+v", a)
		}
	}
	if got.Data.StatusNumber != "5000000" {
		t.Fatalf("valid value changed: %q", got.Data.StatusNumber)
	}
}

func TestRecoverNarrowCropRepairsStatus(t *testing.T) {
	ex := &fakeExtractor{fieldAnswers: map[string][]string{
		"status": {"51234 67"},
	}}
	e := NewEngine(ex, &fakeDigits{}, testForm(t), testLogger())

	res := schema.ExtractionResult{Data: schema.FormFields{StatusNumber: "12"}}
	got, attempts := e.Recover(context.Background(), res, testPage())

	if got.Data.StatusNumber != "5123467" {
		t.Fatalf("expected canonical repaired status, got %q", got.Data.StatusNumber)
	}
	// predicate(fail) + narrow_crop(ok) for status, predicate for the others
	var statusSteps []Step
	for _, a := range attempts {
		if a.Field == "status_number" {
			statusSteps = append(statusSteps, a.Step)
		}
	}
	if len(statusSteps) != 2 || statusSteps[1] != StepNarrowCrop {
		t.Fatalf("unexpected status steps %v", statusSteps)
	}
}

func TestRecoverFallsBackToOCR(t *testing.T) {
	ex := &fakeExtractor{fieldAnswers: map[string][]string{
		"status":              {"unreadable", "still unreadable"},
		"betriebsstaetten_nr": {"", ""},
		"phone":               {"", ""},
	}}
	digits := &fakeDigits{value: "5765432"}
	e := NewEngine(ex, digits, testForm(t), testLogger())

	res := schema.ExtractionResult{}
	got, attempts := e.Recover(context.Background(), res, testPage())

	if got.Data.StatusNumber != "5765432" {
		t.Fatalf("expected OCR value, got %q", got.Data.StatusNumber)
	}
	var sawOCRSuccess bool
	for _, a := range attempts {
		if a.Field == "status_number" && a.Step == StepOCR && a.OK {
			sawOCRSuccess = true
		}
	}
	if !sawOCRSuccess {
		t.Fatal("expected a successful OCR attempt for status_number")
	}
}

func TestRecoverFullPageLastResort(t *testing.T) {
	// Narrow crop answers garbage, OCR errors, full page answers validly.
	ex := &fakeExtractor{fieldAnswers: map[string][]string{
		"betriebsstaetten_nr": {"no digits here", "987654321"},
	}}
	digits := &fakeDigits{err: errors.New("tesseract unavailable")}
	e := NewEngine(ex, digits, testForm(t), testLogger())

	res := schema.ExtractionResult{Data: schema.FormFields{
		StatusNumber:       "5000000",
		OrderingPartyPhone: "030/123456",
	}}
	got, attempts := e.Recover(context.Background(), res, testPage())

	if got.Data.FacilityNumber != "987654321" {
		t.Fatalf("expected full-page value, got %q", got.Data.FacilityNumber)
	}
	var steps []Step
	for _, a := range attempts {
		if a.Field == "betriebsstaetten_nr" {
			steps = append(steps, a.Step)
		}
	}
	want := []Step{StepPredicate, StepNarrowCrop, StepOCR, StepFullPage}
	if len(steps) != len(want) {
		t.Fatalf("unexpected step count %v", steps)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Fatalf("step %d: got %s, want %s", i, steps[i], want[i])
		}
	}
}

func TestRecoverGivesUpQuietly(t *testing.T) {
	ex := &fakeExtractor{fieldAnswers: map[string][]string{}}
	digits := &fakeDigits{value: "12"}
	e := NewEngine(ex, digits, testForm(t), testLogger())

	res := schema.ExtractionResult{Data: schema.FormFields{
		StatusNumber:       "5000000",
		OrderingPartyPhone: "030/123456",
	}}
	got, attempts := e.Recover(context.Background(), res, testPage())

	if got.Data.FacilityNumber != "" {
		t.Fatalf("expected field left empty, got %q", got.Data.FacilityNumber)
	}
	last := attempts[len(attempts)-1]
	if last.Field != "betriebsstaetten_nr" || last.OK {
		t.Fatalf("unexpected final attempt %+v", last)
	}
}

func TestPhoneRecoveryHasNoOCRStep(t *testing.T) {
	ex := &fakeExtractor{fieldAnswers: map[string][]string{
		"phone": {"", ""},
	}}
	digits := &fakeDigits{}
	e := NewEngine(ex, digits, testForm(t), testLogger())

	res := schema.ExtractionResult{Data: schema.FormFields{
		StatusNumber:   "5000000",
		FacilityNumber: "123456789",
	}}
	_, attempts := e.Recover(context.Background(), res, testPage())

	if digits.calls != 0 {
		t.Fatalf("phone recovery must not hit OCR, got %d calls", digits.calls)
	}
	for _, a := range attempts {
		if a.Field == "ordering_party_phone" && a.Step == StepOCR {
			t.Fatalf("unexpected OCR attempt %+v", a)
		}
	}
}
