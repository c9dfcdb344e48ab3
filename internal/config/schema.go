package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ConfigSchema is the JSON Schema for shellbox configuration validation
const ConfigSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "workspace": {
      "type": "object",
      "properties": {
        "path": {
          "type": "string",
          "description": "Workspace root every session is confined to"
        },
        "create": {
          "type": "boolean",
          "description": "Create a missing root instead of failing"
        },
        "watch": {
          "type": "boolean",
          "description": "Watch the root for out-of-band changes"
        }
      }
    },
    "shell": {
      "type": "object",
      "properties": {
        "program": {
          "type": "string",
          "minLength": 1,
          "description": "Shell binary to spawn"
        },
        "allow_list": {
          "type": "array",
          "items": {"type": "string"}
        },
        "deny_list": {
          "type": "array",
          "items": {"type": "string"}
        },
        "disable_scripts": {
          "type": "boolean"
        },
        "close_timeout_seconds": {
          "type": "integer",
          "minimum": 0
        }
      }
    },
    "audit": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "path": {"type": "string"},
        "retention_days": {
          "type": "integer",
          "minimum": 0
        }
      }
    },
    "logging": {
      "type": "object",
      "properties": {
        "level": {
          "type": "string",
          "enum": ["trace", "debug", "info", "warn", "error"]
        },
        "file": {"type": "string"},
        "console": {"type": "boolean"},
        "pretty": {"type": "boolean"}
      }
    },
    "data_dir": {"type": "string"}
  }
}`

// ValidateSchema validates raw JSON config bytes against the schema.
func ValidateSchema(raw []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(ConfigSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to validate config: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}
