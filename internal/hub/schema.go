package hub

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const inboundSchemaURL = "playerhub://inbound.json"

// inboundSchema constrains the envelope of every inbound message and the
// payloads of the message types that carry structured values.
const inboundSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {"type": "string", "minLength": 1}
  },
  "allOf": [
    {
      "if": {"properties": {"type": {"const": "connected"}}},
      "then": {
        "properties": {
          "value": {
            "type": "object",
            "properties": {
              "ratingMode": {"type": ["string", "null"]},
              "quicklinks": {}
            }
          }
        }
      }
    },
    {
      "if": {"properties": {"type": {"const": "rated"}}},
      "then": {
        "required": ["value"],
        "properties": {
          "value": {
            "type": "object",
            "required": ["rating"],
            "properties": {
              "song": {"type": ["object", "null"]},
              "rating": {"type": "number"}
            }
          }
        }
      }
    }
  ]
}`

// compileInboundSchema compiles the embedded schema.
func compileInboundSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(inboundSchemaURL, strings.NewReader(inboundSchema)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(inboundSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// decodeInbound validates raw against schema and decodes it.
func decodeInbound(schema *jsonschema.Schema, raw []byte) (Inbound, error) {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Inbound{}, fmt.Errorf("invalid json: %w", err)
	}
	if err := schema.Validate(payload); err != nil {
		return Inbound{}, fmt.Errorf("invalid message: %w", err)
	}

	var msg Inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Inbound{}, fmt.Errorf("invalid message: %w", err)
	}
	return msg, nil
}
