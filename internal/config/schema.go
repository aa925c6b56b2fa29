package config

import (
	"fmt"
	"strings"

	"github.com/harun/cortex/pkg/memory"
	"github.com/xeipuuv/gojsonschema"
)

// Schema is the JSON Schema every configuration file must satisfy before it
// is decoded. Required region fields are never defaulted.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["regions"],
  "properties": {
    "data_dir": {"type": "string"},
    "logging": {
      "type": "object",
      "properties": {
        "level": {"type": "string", "enum": ["debug", "info", "warn", "error"]},
        "file": {"type": "string"},
        "console": {"type": "boolean"},
        "pretty": {"type": "boolean"},
        "max_size": {"type": "integer", "minimum": 0},
        "max_age": {"type": "integer", "minimum": 0},
        "compress": {"type": "boolean"},
        "redaction": {"type": "boolean"}
      }
    },
    "maintenance": {
      "type": "object",
      "properties": {
        "checkpoint_schedule": {"type": "string"}
      }
    },
    "regions": {
      "type": "object",
      "required": ["working", "declarative", "procedural", "associative", "emotional"],
      "additionalProperties": false,
      "properties": {
        "working": {"allOf": [{"$ref": "#/definitions/region"}, {"required": ["capacity"]}]},
        "declarative": {"$ref": "#/definitions/durable"},
        "procedural": {"$ref": "#/definitions/durable"},
        "associative": {"$ref": "#/definitions/durable"},
        "emotional": {"$ref": "#/definitions/durable"}
      }
    }
  },
  "definitions": {
    "region": {
      "type": "object",
      "required": ["cache_enabled", "max_retry_limit", "max_iterations"],
      "properties": {
        "role": {"type": "string"},
        "cache_enabled": {"type": "boolean"},
        "max_retry_limit": {"type": "integer", "minimum": 0},
        "max_iterations": {"type": "integer", "minimum": 0},
        "capacity": {"type": "integer", "minimum": 0},
        "storage_location": {"type": "string", "minLength": 1}
      }
    },
    "durable": {
      "allOf": [{"$ref": "#/definitions/region"}, {"required": ["storage_location"]}]
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(Schema)

// ValidateDocument validates a JSON configuration document against Schema.
func ValidateDocument(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return memory.InvalidConfigf("schema validation error: %v", err)
	}

	if !result.Valid() {
		// Collect all validation errors
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
		}
		return memory.InvalidConfigf("%s", strings.Join(msgs, "; "))
	}

	return nil
}
