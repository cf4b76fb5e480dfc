// internal/schema/validator.go
// Package schema provides JSON schema validation for ingestion messages.
// The message shape is a fixed contract with the processing pipeline, so the
// schema is embedded and compiled once rather than resolved remotely.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ingestionSchema is the contract for messages published to the ingestion
// queue. Every field is required; file_category is constrained to the two
// categories the pipeline routes on.
const ingestionSchema = `{
	"type": "object",
	"required": ["asset_id", "file_location", "content_type", "file_category", "file_name", "source"],
	"properties": {
		"asset_id":      {"type": "string", "minLength": 1},
		"file_location": {"type": "string", "minLength": 1},
		"content_type":  {"type": "string", "minLength": 1},
		"file_category": {"type": "string", "enum": ["audio", "video"]},
		"file_name":     {"type": "string", "minLength": 1},
		"source":        {"type": "string", "enum": ["GCS", "youtube"]}
	}
}`

// Validator validates ingestion messages before they are published.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the embedded ingestion message schema.
func NewValidator() (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(ingestionSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile ingestion schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// ValidateIngestion validates a message payload against the ingestion
// contract. The payload may be any JSON-marshalable value.
func (v *Validator) ValidateIngestion(payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal ingestion message: %w", err)
	}

	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate ingestion message: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("ingestion message rejected: %s", strings.Join(problems, "; "))
	}
	return nil
}
