package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaID is the canonical identifier of the goal/v1 JSON Schema.
const SchemaID = "https://github.com/ormasoftchile/goalrun/schemas/goal-v1.json"

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document
// from the goal/v1 Document Go types.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	s := r.Reflect(&Document{})
	s.ID = SchemaID
	s.Title = "Goal workflow - goal/v1"
	s.Description = "Schema for goal/v1 workflow YAML documents (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal workflow schema: %w", err)
	}
	return data, nil
}
