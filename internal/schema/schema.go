// Package schema holds the Muster 4 form definition: the ordered block/field
// layout every extraction result must satisfy, and the crop geometry for
// recoverable fields. The definition lives in form.yaml so rule changes are
// reviewable independently of the calling code.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/transportschein/internal/common"
)

//go:embed form.yaml
var formYAML []byte

// Field types understood by the extraction contract.
const (
	TypeString  = "string"
	TypeBoolean = "boolean"
	TypeDate    = "date"
	TypeNumber  = "number"
)

type Field struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type Block struct {
	Name   string  `yaml:"name"`
	Fields []Field `yaml:"fields"`
}

// RecoverableField describes a field with a validity predicate and a narrow
// re-extraction strategy. Digits==0 means no fixed digit count (no OCR step).
type RecoverableField struct {
	Field   string     `yaml:"field"`
	Digits  int        `yaml:"digits"`
	Leading string     `yaml:"leading"`
	Box     [4]float64 `yaml:"box,flow"`
	Enhance bool       `yaml:"enhance"`
}

// Form is the immutable extraction schema, loaded once per pipeline run.
type Form struct {
	Version     int                `yaml:"version"`
	Blocks      []Block            `yaml:"blocks"`
	Recoverable []RecoverableField `yaml:"recoverable"`
}

// Load parses the embedded form definition.
func Load() (*Form, error) {
	var f Form
	if err := yaml.Unmarshal(formYAML, &f); err != nil {
		return nil, fmt.Errorf("parse form.yaml: %w", err)
	}
	if len(f.Blocks) == 0 {
		return nil, fmt.Errorf("form.yaml: no blocks defined")
	}
	return &f, nil
}

// FieldNames returns every field name in block order.
func (f *Form) FieldNames() []string {
	var names []string
	for _, b := range f.Blocks {
		for _, fl := range b.Fields {
			names = append(names, fl.Name)
		}
	}
	return names
}

// FieldType returns the declared type for name, or "".
func (f *Form) FieldType(name string) string {
	for _, b := range f.Blocks {
		for _, fl := range b.Fields {
			if fl.Name == name {
				return fl.Type
			}
		}
	}
	return ""
}

// RecoverableByField returns the recovery descriptor for a field name.
func (f *Form) RecoverableByField(name string) (RecoverableField, bool) {
	for _, r := range f.Recoverable {
		if r.Field == name {
			return r, true
		}
	}
	return RecoverableField{}, false
}

// Example builds the example JSON object sent to the extraction service:
// every field present with its zero value, plus an empty flags array.
func (f *Form) Example() map[string]any {
	data := make(map[string]any, 64)
	for _, b := range f.Blocks {
		for _, fl := range b.Fields {
			if fl.Type == TypeBoolean {
				data[fl.Name] = false
			} else {
				data[fl.Name] = ""
			}
		}
	}
	return map[string]any{
		"data":  data,
		"flags": []any{},
	}
}

// JSONSchema builds a draft 2020-12 subset schema for response validation.
// Every field is required and unknown keys are rejected.
func (f *Form) JSONSchema() map[string]any {
	props := map[string]any{}
	var required []string
	for _, b := range f.Blocks {
		for _, fl := range b.Fields {
			switch fl.Type {
			case TypeBoolean:
				props[fl.Name] = map[string]any{"type": "boolean"}
			case TypeDate:
				props[fl.Name] = map[string]any{
					"type":    "string",
					"pattern": `^$|^\d{4}-\d{2}-\d{2}$`,
				}
			case TypeNumber:
				props[fl.Name] = map[string]any{"type": []any{"string", "number"}}
			default:
				props[fl.Name] = map[string]any{"type": "string"}
			}
			required = append(required, fl.Name)
		}
	}
	flagItem := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code":           map[string]any{"type": "string"},
			"severity":       map[string]any{"enum": []any{"error", "warning", "info"}},
			"field":          map[string]any{"type": []any{"string", "null"}},
			"related_fields": map[string]any{"type": []any{"array", "null"}},
			"message":        map[string]any{"type": "string"},
		},
		"required": []any{"code", "severity", "message"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"data": map[string]any{
				"type":                 "object",
				"properties":           props,
				"required":             toAny(required),
				"additionalProperties": false,
			},
			"flags": map[string]any{"type": "array", "items": flagItem},
		},
		"required":             []any{"data", "flags"},
		"additionalProperties": false,
	}
}

// CheckKeySet verifies the exact-key-set invariant: top-level keys must be
// {data, flags} and the data keys must equal the form's field set. A
// violation rejects the whole result.
func (f *Form) CheckKeySet(raw []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return fmt.Errorf("%w: %v", common.ErrParse, err)
	}
	for k := range top {
		if k != "data" && k != "flags" {
			return fmt.Errorf("%w: unexpected top-level key %q", common.ErrSchemaMismatch, k)
		}
	}
	dataRaw, ok := top["data"]
	if !ok {
		return fmt.Errorf("%w: missing top-level key \"data\"", common.ErrSchemaMismatch)
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(dataRaw, &data); err != nil {
		return fmt.Errorf("%w: %v", common.ErrParse, err)
	}

	want := map[string]struct{}{}
	for _, n := range f.FieldNames() {
		want[n] = struct{}{}
	}
	var missing, extra []string
	for n := range want {
		if _, ok := data[n]; !ok {
			missing = append(missing, n)
		}
	}
	for n := range data {
		if _, ok := want[n]; !ok {
			extra = append(extra, n)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		sort.Strings(missing)
		sort.Strings(extra)
		return fmt.Errorf("%w: field key set mismatch (missing=%v extra=%v)",
			common.ErrSchemaMismatch, missing, extra)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
