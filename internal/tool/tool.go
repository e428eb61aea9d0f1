// Package tool holds the tool registry the agent advertises to the model and
// the executor that runs the model's tool calls.
package tool

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// Tool defines the interface that all tools must implement
type Tool interface {
	// Name returns the unique identifier for this tool
	Name() string

	// Description returns a brief description of what this tool does
	Description() string

	// Parameters returns the JSON schema for the tool's arguments
	Parameters() *jsonschema.Schema

	// Execute runs the tool with arguments that already passed Parameters.
	// A returned error is reported to the model, not to the caller.
	Execute(ctx context.Context, params json.RawMessage) (*Result, error)
}

// BestPracticer is implemented by tools with usage guidance worth adding to
// the system prompt.
type BestPracticer interface {
	BestPractices() string
}

type Result struct {
	Success bool
	Output  string
	Error   string
	Data    map[string]any
}

// Text is the content fed back to the model for this result.
func (r *Result) Text() string {
	if r == nil {
		return EmptyOutputPlaceholder
	}
	if r.Success {
		if r.Output == "" {
			return EmptyOutputPlaceholder
		}
		return r.Output
	}
	if r.Output != "" {
		return r.Output
	}
	return "Error: " + r.Error
}

// Failure builds an unsuccessful result.
func Failure(msg string) *Result {
	return &Result{Success: false, Error: msg}
}

type CallResult struct {
	ToolName  string
	CallID    string
	Params    json.RawMessage
	Result    *Result
	Denied    bool
	StartTime time.Time
	EndTime   time.Time
}

func (c *CallResult) Duration() time.Duration {
	return c.EndTime.Sub(c.StartTime)
}
