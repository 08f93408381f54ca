package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ormasoftchile/goalrun/pkg/kernel/schema"
)

var (
	compileOnce sync.Once
	compiled    *sjsonschema.Schema
	compileErr  error
)

// documentSchema compiles the generated goal/v1 schema once per process.
func documentSchema() (*sjsonschema.Schema, error) {
	compileOnce.Do(func() {
		raw, err := schema.GenerateJSONSchema()
		if err != nil {
			compileErr = fmt.Errorf("generate schema: %w", err)
			return
		}
		doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			compileErr = fmt.Errorf("unmarshal schema: %w", err)
			return
		}
		c := sjsonschema.NewCompiler()
		if err := c.AddResource(schema.SchemaID, doc); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schema.SchemaID)
	})
	return compiled, compileErr
}

// validateSemantic validates the decoded document against the JSON Schema
// generated from the Go types.
func validateSemantic(doc *schema.Document) []*ValidationError {
	sch, err := documentSchema()
	if err != nil {
		return []*ValidationError{errorf("semantic", "", "%v", err)}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return []*ValidationError{errorf("semantic", "", "marshal for schema validation: %v", err)}
	}
	inst, err := sjsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return []*ValidationError{errorf("semantic", "", "unmarshal document: %v", err)}
	}

	err = sch.Validate(inst)
	if err == nil {
		return nil
	}
	ve, ok := err.(*sjsonschema.ValidationError)
	if !ok {
		return []*ValidationError{errorf("semantic", "", "%v", err)}
	}
	p := message.NewPrinter(language.English)
	var errs []*ValidationError
	for _, cause := range flattenValidationErrors(ve) {
		errs = append(errs, errorf("semantic", strings.Join(cause.InstanceLocation, "/"), "%s", cause.ErrorKind.LocalizedString(p)))
	}
	return errs
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}
