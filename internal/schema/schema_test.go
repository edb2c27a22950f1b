package schema

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/joseph-ayodele/transportschein/internal/common"
)

func TestLoadForm(t *testing.T) {
	f, err := Load()
	if err != nil {
		t.Fatalf("load form: %v", err)
	}
	if len(f.Blocks) == 0 {
		t.Fatal("expected blocks")
	}
	names := f.FieldNames()
	if len(names) == 0 {
		t.Fatal("expected field names")
	}
	seen := map[string]bool{}
	for _, n := range names {
		if seen[n] {
			t.Fatalf("duplicate field name %q", n)
		}
		seen[n] = true
	}
}

func TestFormFieldSetMatchesRecordStruct(t *testing.T) {
	f, err := Load()
	if err != nil {
		t.Fatalf("load form: %v", err)
	}
	raw, err := json.Marshal(FormFields{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, name := range f.FieldNames() {
		if _, ok := m[name]; !ok {
			t.Fatalf("form field %q has no struct counterpart", name)
		}
	}
	if len(m) != len(f.FieldNames()) {
		t.Fatalf("struct has %d fields, form has %d", len(m), len(f.FieldNames()))
	}
}

func TestRecoverableFields(t *testing.T) {
	f, err := Load()
	if err != nil {
		t.Fatalf("load form: %v", err)
	}
	spec, ok := f.RecoverableByField("status_number")
	if !ok {
		t.Fatal("status_number must be recoverable")
	}
	if spec.Digits != 7 || spec.Leading != "5" {
		t.Fatalf("unexpected status spec %+v", spec)
	}
	if _, ok := f.RecoverableByField("patient_city"); ok {
		t.Fatal("patient_city must not be recoverable")
	}
}

func TestCheckKeySetAcceptsExample(t *testing.T) {
	f, err := Load()
	if err != nil {
		t.Fatalf("load form: %v", err)
	}
	raw, err := json.Marshal(f.Example())
	if err != nil {
		t.Fatalf("marshal example: %v", err)
	}
	if err := f.CheckKeySet(raw); err != nil {
		t.Fatalf("example must satisfy the key set: %v", err)
	}
}

func TestCheckKeySetRejectsMissingAndExtra(t *testing.T) {
	f, err := Load()
	if err != nil {
		t.Fatalf("load form: %v", err)
	}
	example := f.Example()
	data := example["data"].(map[string]any)
	delete(data, "status_number")
	data["made_up_field"] = "x"
	raw, _ := json.Marshal(example)

	err = f.CheckKeySet(raw)
	if !errors.Is(err, common.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestCheckKeySetRejectsUnknownTopLevel(t *testing.T) {
	f, err := Load()
	if err != nil {
		t.Fatalf("load form: %v", err)
	}
	example := f.Example()
	example["confidence"] = 0.9
	raw, _ := json.Marshal(example)

	err = f.CheckKeySet(raw)
	if !errors.Is(err, common.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestDecodeFlexibleFrequency(t *testing.T) {
	raw := []byte(`{"data":{"treatment_frequency_per_week":3},"flags":[]}`)
	rec, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Data.TreatmentFrequencyPerWeek.String() != "3" {
		t.Fatalf("expected numeric coercion, got %q", rec.Data.TreatmentFrequencyPerWeek)
	}
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	if !errors.Is(err, common.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestDigitsOnly(t *testing.T) {
	if got := DigitsOnly("12 34-5/6a7"); got != "1234567" {
		t.Fatalf("got %q", got)
	}
}

func TestEncodeAlwaysHasFlagsArray(t *testing.T) {
	raw, err := Encode(ExtractionResult{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(m["flags"]) != "[]" {
		t.Fatalf("expected empty flags array, got %s", m["flags"])
	}
}
