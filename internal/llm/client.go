package llm

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

// Client is a model endpoint: messages in, a response of text, tool-call
// requests or a schema-constrained value out. Retries and rate limiting are
// the implementation's concern.
type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	Provider() string
	Model() string
}

type Request struct {
	System       string
	Messages     []Message
	Tools        []ToolDefinition
	OutputSchema *OutputSchema
	Temperature  float32
	MaxTokens    int
}

// ToolDefinition advertises one tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// OutputSchema asks the model to constrain its answer to Schema.
type OutputSchema struct {
	Name   string
	Schema *jsonschema.Schema
}

type Response struct {
	Items      []Item
	StopReason StopReason
	Usage      Usage
}

// ToolCalls returns the tool-call requests of the response in order.
func (r *Response) ToolCalls() []*ToolCall {
	var calls []*ToolCall
	for _, item := range r.Items {
		if tc, ok := item.(ToolCallItem); ok {
			calls = append(calls, tc.Call)
		}
	}
	return calls
}

// Text concatenates the plain text items of the response.
func (r *Response) Text() string {
	var text string
	for _, item := range r.Items {
		if t, ok := item.(TextItem); ok {
			text += t.Text
		}
	}
	return text
}
