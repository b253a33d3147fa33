package parser

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonschema"
)

// resultSchema is the strict contract for a structured analysis response.
// ValidateSchema is advisory: orchestration relies on the tolerant Parse as
// its primary path and uses this check only for upfront verification.
const resultSchema = `{
  "type": "object",
  "required": ["hypotheses"],
  "properties": {
    "hypotheses": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "confidence", "summary"],
        "properties": {
          "title": {"type": "string"},
          "confidence": {"type": "string", "enum": ["high", "medium", "low"]},
          "summary": {"type": "string"},
          "evidence": {"type": "array", "items": {"type": "string"}},
          "visualization_type": {"type": "string", "enum": ["chart", "table", "text", "none"]}
        }
      }
    },
    "search_results": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["source", "relevance", "snippet"],
        "properties": {
          "source": {"type": "string"},
          "relevance": {"type": "string", "enum": ["high", "medium", "low"]},
          "snippet": {"type": "string"},
          "url": {"type": "string"}
        }
      }
    },
    "explanation": {
      "type": "object",
      "required": ["methodology", "limitations"],
      "properties": {
        "methodology": {"type": "string"},
        "limitations": {"type": "string"},
        "next_steps": {"type": "array", "items": {"type": "string"}}
      }
    }
  }
}`

var compiledResultSchema = func() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(resultSchema))
	if err != nil {
		panic(fmt.Sprintf("compile analysis result schema: %v", err))
	}
	return schema
}()

// ValidateSchema checks a raw response against the strict result contract.
func ValidateSchema(raw map[string]any) (bool, string) {
	if raw == nil {
		return false, "output must be an object"
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return false, fmt.Sprintf("output is not serializable: %v", err)
	}
	result := compiledResultSchema.ValidateJSON(data)
	if !result.IsValid() {
		return false, fmt.Sprintf("schema validation failed: %v", result.Errors)
	}
	return true, ""
}
