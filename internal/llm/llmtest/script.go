// Package llmtest provides a scripted model endpoint for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"scout/internal/llm"
)

// Step produces the response for one Complete call. It sees the request so
// scripts can assert on what the loop sent.
type Step func(req *llm.Request) (*llm.Response, error)

// Client replays Steps in order and records every request it received.
type Client struct {
	mu       sync.Mutex
	steps    []Step
	repeat   Step
	requests []*llm.Request
}

// NewClient creates a client that answers with the given steps in order and
// fails once they run out.
func NewClient(steps ...Step) *Client {
	return &Client{steps: steps}
}

// Repeat creates a client that answers every call with step.
func Repeat(step Step) *Client {
	return &Client{repeat: step}
}

func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.requests = append(c.requests, copyRequest(req))
	n := len(c.requests)
	var step Step
	switch {
	case n <= len(c.steps):
		step = c.steps[n-1]
	case c.repeat != nil:
		step = c.repeat
	}
	c.mu.Unlock()

	if step == nil {
		return nil, fmt.Errorf("llmtest: script exhausted after %d calls", len(c.steps))
	}
	return step(req)
}

func (c *Client) Provider() string { return "llmtest" }
func (c *Client) Model() string    { return "scripted" }

// Requests returns the requests received so far.
func (c *Client) Requests() []*llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*llm.Request(nil), c.requests...)
}

// Calls returns the number of Complete calls so far.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func copyRequest(req *llm.Request) *llm.Request {
	out := *req
	out.Messages = llm.CloneMessages(req.Messages)
	out.Tools = append([]llm.ToolDefinition(nil), req.Tools...)
	return &out
}

// Text answers with plain text.
func Text(text string) Step {
	return func(*llm.Request) (*llm.Response, error) {
		return &llm.Response{
			Items:      []llm.Item{llm.TextItem{Text: text}},
			StopReason: llm.StopReasonStop,
		}, nil
	}
}

// Answer answers with a structured value marshalled to JSON.
func Answer(v any) Step {
	return func(*llm.Request) (*llm.Response, error) {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return &llm.Response{
			Items:      []llm.Item{llm.AnswerItem{Raw: raw}},
			StopReason: llm.StopReasonStop,
		}, nil
	}
}

// Call is a shorthand for a tool-call request used by ToolCalls.
type Call struct {
	ID   string
	Name string
	Args string
}

// ToolCalls answers with tool-call requests, in the given order.
func ToolCalls(calls ...Call) Step {
	return func(*llm.Request) (*llm.Response, error) {
		items := make([]llm.Item, len(calls))
		for i, c := range calls {
			items[i] = llm.ToolCallItem{Call: &llm.ToolCall{
				ID:        c.ID,
				Name:      c.Name,
				Arguments: json.RawMessage(c.Args),
			}}
		}
		return &llm.Response{Items: items, StopReason: llm.StopReasonToolCalls}, nil
	}
}

// Fail answers with an error.
func Fail(err error) Step {
	return func(*llm.Request) (*llm.Response, error) {
		return nil, err
	}
}
