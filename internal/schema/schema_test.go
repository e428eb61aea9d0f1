package schema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/require"
)

func TestValidator_ClosedObject(t *testing.T) {
	v, err := NewValidator(Object(map[string]*jsonschema.Schema{
		"query": String("search query"),
	}, "query"))
	require.NoError(t, err)

	require.NoError(t, v.Validate(json.RawMessage(`{"query":"IAMA"}`)))
	require.ErrorIs(t, v.Validate(json.RawMessage(`{}`)), ErrMismatch)
	require.ErrorIs(t, v.Validate(json.RawMessage(`{"query":1}`)), ErrMismatch)
	require.ErrorIs(t, v.Validate(json.RawMessage(`{"query":"x","extra":true}`)), ErrMismatch)
	require.ErrorIs(t, v.Validate(json.RawMessage(`{"query":`)), ErrMismatch)
}

func TestValidator_EmptyInputIsEmptyObject(t *testing.T) {
	v, err := NewValidator(Object(map[string]*jsonschema.Schema{}))
	require.NoError(t, err)
	require.NoError(t, v.Validate(nil))
}

func TestAnswerSchema_MarshalsClosedObjects(t *testing.T) {
	data, err := json.Marshal(AnswerSchema())
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), `"additionalProperties":false`), string(data))
}

func TestDecodeAnswer(t *testing.T) {
	v, err := NewValidator(AnswerSchema())
	require.NoError(t, err)

	ans, err := DecodeAnswer(v, json.RawMessage(`{"answer":"Yes","citations":[{"text":"IAMA is required","source":"3.2"}]}`))
	require.NoError(t, err)
	require.Equal(t, "Yes", ans.Answer)
	require.Equal(t, []Citation{{Text: "IAMA is required", Source: "3.2"}}, ans.Citations)
	require.NotEmpty(t, ans.Raw)
}

func TestDecodeAnswer_RejectsWrongType(t *testing.T) {
	v, err := NewValidator(AnswerSchema())
	require.NoError(t, err)

	ans, err := DecodeAnswer(v, json.RawMessage(`{"answer":123}`))
	require.ErrorIs(t, err, ErrMismatch)
	require.Nil(t, ans)
}

func TestTextAnswerValidates(t *testing.T) {
	v, err := NewValidator(AnswerSchema())
	require.NoError(t, err)

	ans, err := DecodeAnswer(v, TextAnswer("I can search the handbook."))
	require.NoError(t, err)
	require.Equal(t, "I can search the handbook.", ans.Answer)
	require.Empty(t, ans.Citations)
}

func TestCheckAnswerSchema(t *testing.T) {
	require.NoError(t, CheckAnswerSchema(AnswerSchema()))
	require.Error(t, CheckAnswerSchema(Object(map[string]*jsonschema.Schema{
		"answer": Integer("not text"),
	}, "answer")))
	require.Error(t, CheckAnswerSchema(nil))
}

func TestFromAny(t *testing.T) {
	s, err := FromAny(map[string]any{
		"type":     "object",
		"required": []any{"path"},
		"properties": map[string]any{
			"path": map[string]any{"type": "string"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "object", s.Type)
	require.Equal(t, []string{"path"}, s.Required)
	require.Equal(t, "string", s.Properties["path"].Type)
}
