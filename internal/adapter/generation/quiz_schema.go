package generation

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// quizQuestionsSchema is the contract the model's quiz output must satisfy
// before any per-question checks run. Conditional shape rules (choices for
// mcq, tokens for fill_blank) are enforced afterwards by domain validation.
const quizQuestionsSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "array",
	"minItems": 3,
	"items": {
		"type": "object",
		"required": ["type", "question"],
		"properties": {
			"type": {
				"type": "string",
				"enum": ["mcq", "multiple_choice", "translation", "translate", "fill_blank", "fill-blank"]
			},
			"question": {"type": "string", "minLength": 1},
			"choices": {"type": "array", "items": {"type": "string"}},
			"answer_index": {"type": "integer", "minimum": 0},
			"answer_text": {"type": "string"},
			"answer_blanks": {"type": "array", "items": {"type": "string"}},
			"rationale": {"type": "string"}
		}
	}
}`

var (
	quizSchemaOnce     sync.Once
	quizSchemaCompiled *jsonschema.Schema
	quizSchemaErr      error
)

// compiledQuizSchema compiles the schema on first use and caches it.
func compiledQuizSchema() (*jsonschema.Schema, error) {
	quizSchemaOnce.Do(func() {
		// The jsonschema library expects a parsed JSON value (any), not raw bytes.
		var parsed any
		if err := json.Unmarshal([]byte(quizQuestionsSchema), &parsed); err != nil {
			quizSchemaErr = fmt.Errorf("parse schema definition: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		const schemaURL = "schema://quiz_questions.json"
		if err := c.AddResource(schemaURL, parsed); err != nil {
			quizSchemaErr = fmt.Errorf("add resource: %w", err)
			return
		}
		quizSchemaCompiled, quizSchemaErr = c.Compile(schemaURL)
	})
	return quizSchemaCompiled, quizSchemaErr
}

// validateQuizPayload checks raw quiz JSON against the schema.
func validateQuizPayload(raw []byte) error {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	schema, err := compiledQuizSchema()
	if err != nil {
		return fmt.Errorf("compile quiz schema: %w", err)
	}

	if err := schema.Validate(parsed); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
