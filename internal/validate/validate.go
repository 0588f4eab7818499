// Package validate checks admin and seed payloads against embedded JSON
// schemas before they reach the store.
package validate

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jordanhubbard/modelhub/internal/store"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBase = "https://modelhub.dev/schemas/"

// printer formats schema error messages.
var printer = message.NewPrinter(language.English)

var (
	modelSchema   *jsonschema.Schema
	patchSchema   *jsonschema.Schema
	metricsSchema *jsonschema.Schema
	bulkSchema    *jsonschema.Schema
)

func init() {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat()

	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		panic(fmt.Sprintf("read embedded schemas: %v", err))
	}
	for _, e := range entries {
		raw, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			panic(fmt.Sprintf("read %s: %v", e.Name(), err))
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			panic(fmt.Sprintf("failed to parse embedded %s: %v", e.Name(), err))
		}
		if err := compiler.AddResource(schemaBase+e.Name(), doc); err != nil {
			panic(fmt.Sprintf("failed to add %s resource: %v", e.Name(), err))
		}
	}

	modelSchema = mustCompile(compiler, "model.schema.json")
	patchSchema = mustCompile(compiler, "patch.schema.json")
	metricsSchema = mustCompile(compiler, "metrics.schema.json")
	bulkSchema = mustCompile(compiler, "bulk.schema.json")
}

func mustCompile(c *jsonschema.Compiler, name string) *jsonschema.Schema {
	sch, err := c.Compile(schemaBase + name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// FieldError is one schema violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error lists every violation found in a payload.
type Error struct {
	Errors []FieldError
}

func (e *Error) Error() string {
	if len(e.Errors) == 0 {
		return "invalid payload"
	}
	first := e.Errors[0]
	msg := first.Message
	if first.Field != "" {
		msg = first.Field + ": " + msg
	}
	if n := len(e.Errors) - 1; n > 0 {
		msg += fmt.Sprintf(" (and %d more)", n)
	}
	return msg
}

// Field returns the location of the first violation.
func (e *Error) Field() string {
	if len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Field
}

// Model validates a full model payload and decodes it.
func Model(data []byte) (store.ModelRecord, error) {
	var m store.ModelRecord
	if err := check(modelSchema, data); err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, &Error{Errors: []FieldError{{Message: err.Error()}}}
	}
	return m, nil
}

// ModelValue validates an already-decoded model document, such as one
// entry of a YAML seed file.
func ModelValue(doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return &Error{Errors: []FieldError{{Message: err.Error()}}}
	}
	return check(modelSchema, raw)
}

// Patch validates a partial model update. The slug cannot be changed.
func Patch(data []byte) (map[string]json.RawMessage, error) {
	if err := check(patchSchema, data); err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &Error{Errors: []FieldError{{Message: err.Error()}}}
	}
	return fields, nil
}

// ApplyPatch overlays validated patch fields onto m. Identity and
// bookkeeping fields (id, slug, timestamps, metrics) are kept.
func ApplyPatch(m store.ModelRecord, fields map[string]json.RawMessage) (store.ModelRecord, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return m, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return m, err
	}
	for k, v := range fields {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return m, err
	}
	var out store.ModelRecord
	if err := json.Unmarshal(merged, &out); err != nil {
		return m, &Error{Errors: []FieldError{{Message: err.Error()}}}
	}
	out.ID, out.Slug = m.ID, m.Slug
	out.CreatedAt, out.Metrics = m.CreatedAt, m.Metrics
	return out, nil
}

// Metrics validates and decodes a market metrics payload.
func Metrics(data []byte) (store.MarketMetrics, error) {
	var mm store.MarketMetrics
	if err := check(metricsSchema, data); err != nil {
		return mm, err
	}
	if err := json.Unmarshal(data, &mm); err != nil {
		return mm, &Error{Errors: []FieldError{{Message: err.Error()}}}
	}
	return mm, nil
}

// BulkUpdate is a partial update applied to several models.
type BulkUpdate struct {
	Slugs   []string
	Updates map[string]json.RawMessage
}

// Bulk validates a bulk update payload.
func Bulk(data []byte) (BulkUpdate, error) {
	if err := check(bulkSchema, data); err != nil {
		return BulkUpdate{}, err
	}
	var req struct {
		Slugs   []string                   `json:"slugs"`
		Updates map[string]json.RawMessage `json:"updates"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return BulkUpdate{}, &Error{Errors: []FieldError{{Message: err.Error()}}}
	}
	return BulkUpdate{Slugs: req.Slugs, Updates: req.Updates}, nil
}

func check(schema *jsonschema.Schema, data []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return &Error{Errors: []FieldError{{Message: "malformed JSON: " + err.Error()}}}
	}
	err = schema.Validate(inst)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return &Error{Errors: []FieldError{{Message: err.Error()}}}
	}
	out := &Error{}
	collect(ve, out)
	return out
}

func collect(ve *jsonschema.ValidationError, out *Error) {
	if len(ve.Causes) == 0 {
		out.Errors = append(out.Errors, FieldError{
			Field:   strings.Join(ve.InstanceLocation, "."),
			Message: ve.ErrorKind.LocalizedString(printer),
		})
		return
	}
	for _, c := range ve.Causes {
		collect(c, out)
	}
}
