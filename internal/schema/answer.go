package schema

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Citation points at the source backing part of an answer.
type Citation struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Answer is the validated final output of one question.
type Answer struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`

	// Raw is the validated document, including fields of custom schemas
	// that Answer does not model.
	Raw json.RawMessage `json:"-"`
}

// AnswerSchemaName is the name the answer schema is advertised under.
const AnswerSchemaName = "agent_answer"

// AnswerSchema describes Answer. Every field is required and no other
// fields are allowed, which strict structured-output modes demand.
func AnswerSchema() *jsonschema.Schema {
	citation := Object(map[string]*jsonschema.Schema{
		"text":   String("Short excerpt supporting the answer"),
		"source": String("URL or handbook section the excerpt comes from"),
	}, "text", "source")

	return Object(map[string]*jsonschema.Schema{
		"answer":    String("The answer to the user's question"),
		"citations": Array(citation, "Sources backing the answer"),
	}, "answer", "citations")
}

// CheckAnswerSchema verifies that s declares a string "answer" property, the
// minimum every answer schema must have.
func CheckAnswerSchema(s *jsonschema.Schema) error {
	if s == nil {
		return fmt.Errorf("answer schema is nil")
	}
	prop, ok := s.Properties["answer"]
	if !ok || prop == nil || prop.Type != "string" {
		return fmt.Errorf("answer schema must declare a string \"answer\" property")
	}
	return nil
}

// DecodeAnswer validates raw against v and decodes it. Nothing is returned
// unless validation succeeds.
func DecodeAnswer(v *Validator, raw json.RawMessage) (*Answer, error) {
	if err := v.Validate(raw); err != nil {
		return nil, err
	}
	var ans Answer
	if err := json.Unmarshal(raw, &ans); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMismatch, err)
	}
	if ans.Citations == nil {
		ans.Citations = []Citation{}
	}
	ans.Raw = append(json.RawMessage(nil), raw...)
	return &ans, nil
}

// TextAnswer wraps free text as an answer document without citations.
func TextAnswer(text string) json.RawMessage {
	raw, _ := json.Marshal(Answer{Answer: text, Citations: []Citation{}})
	return raw
}
