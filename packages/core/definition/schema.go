package definition

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/jsonprobe/packages/assertions"
	"github.com/xeipuuv/gojsonschema"
)

const schemaTemplate = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["request"],
    "properties": {
      "name": {"type": "string"},
      "request": {
        "type": "object",
        "required": ["method", "url"],
        "properties": {
          "method": {"type": "string", "minLength": 1},
          "url": {"type": "string"},
          "params": {"type": ["object", "null"]},
          "headers": {
            "type": ["object", "null"],
            "additionalProperties": {"type": "string"}
          },
          "payload": {}
        }
      },
      "assertions": {
        "type": ["object", "null"],
        "additionalProperties": {
          "type": "object",
          "required": ["validator", "expected"],
          "properties": {
            "validator": {"enum": %s},
            "expected": {}
          }
        }
      }
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	names, err := json.Marshal(assertions.Names())
	if err != nil {
		return nil, err
	}
	loader := gojsonschema.NewStringLoader(fmt.Sprintf(schemaTemplate, names))
	return gojsonschema.NewSchema(loader)
})

// validateDocument checks a decoded definition document against the schema.
func validateDocument(doc any) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compiling definition schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if result.Valid() {
		return nil
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("invalid test definitions: %s", strings.Join(problems, "; "))
}
