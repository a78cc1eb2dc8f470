package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildExtractionJSONSchema returns the JSON-Schema (draft 2020-12 subset)
// the model output must satisfy at the top level. Absence of
// pagewise_line_items is a fatal schema error for the call, never
// silently defaulted; item fields stay loose because numeric coercion
// runs after validation.
func BuildExtractionJSONSchema() map[string]any {
	numberish := map[string]any{
		"type": []string{"number", "string", "null"},
	}
	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"item_name":     map[string]any{"type": []string{"string", "null"}},
			"item_amount":   numberish,
			"item_rate":     numberish,
			"item_quantity": numberish,
		},
	}
	page := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"page_no":    map[string]any{"type": []string{"string", "number"}},
			"page_type":  map[string]any{"type": "string"},
			"bill_items": map[string]any{"type": "array", "items": item},
		},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pagewise_line_items": map[string]any{"type": "array", "items": page},
			"total_item_count":    map[string]any{"type": []string{"number", "null"}},
		},
		"required": []string{"pagewise_line_items"},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
