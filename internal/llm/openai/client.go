// Package openai implements llm.Client over the OpenAI chat completions API
// and compatible servers.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"scout/internal/llm"
)

// ErrRefusal is returned when the model declines to answer under an output
// schema.
var ErrRefusal = errors.New("model refused the request")

type Client struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
}

type Option func(*options)

type options struct {
	baseURL    string
	httpClient *http.Client
	rpm        int
	burst      int
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithRateLimit allows at most rpm requests per minute with the given burst.
// rpm <= 0 disables limiting.
func WithRateLimit(rpm, burst int) Option {
	return func(o *options) {
		o.rpm = rpm
		o.burst = burst
	}
}

// NewClient creates a new OpenAI client with the given API key and model.
func NewClient(apiKey, model string, opts ...Option) *Client {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	config := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		config.BaseURL = o.baseURL
	}
	if o.httpClient != nil {
		config.HTTPClient = o.httpClient
	}

	c := &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
	if o.rpm > 0 {
		if o.burst <= 0 {
			o.burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(o.rpm)), o.burst)
	}
	return c
}

func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    c.convertMessages(req.System, req.Messages),
		Tools:       c.convertTools(req.Tools),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.OutputSchema != nil {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.OutputSchema.Name,
				Schema: req.OutputSchema.Schema,
				Strict: true,
			},
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	return c.convertResponse(resp, req.OutputSchema != nil)
}

func (c *Client) Provider() string {
	return "openai"
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) convertMessages(system string, msgs []llm.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range msgs {
		ocMsg := openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
			Name:    msg.Name,
		}

		if len(msg.ToolCalls) > 0 {
			ocMsg.ToolCalls = make([]openai.ToolCall, len(msg.ToolCalls))
			for j, tc := range msg.ToolCalls {
				ocMsg.ToolCalls[j] = openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				}
			}
		}

		if msg.Role == llm.RoleTool {
			ocMsg.ToolCallID = msg.ToolCallID
		}

		result = append(result, ocMsg)
	}
	return result
}

func (c *Client) convertTools(tools []llm.ToolDefinition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Strict:      isStrict(t.Parameters),
				Parameters:  t.Parameters,
			},
		}
	}
	return result
}

// isStrict reports whether s satisfies strict function calling: a closed
// object with every property required.
func isStrict(s *jsonschema.Schema) bool {
	if s == nil || s.Type != "object" || s.AdditionalProperties == nil || s.AdditionalProperties.Not == nil {
		return false
	}
	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}
	for name := range s.Properties {
		if !required[name] {
			return false
		}
	}
	return true
}

func (c *Client) convertResponse(resp openai.ChatCompletionResponse, structured bool) (*llm.Response, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: response has no choices")
	}
	choice := resp.Choices[0]
	msg := choice.Message

	if msg.Refusal != "" {
		return nil, fmt.Errorf("%w: %s", ErrRefusal, msg.Refusal)
	}

	result := &llm.Response{
		StopReason: llm.StopReason(choice.FinishReason),
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	if len(msg.ToolCalls) > 0 {
		if msg.Content != "" {
			result.Items = append(result.Items, llm.TextItem{Text: msg.Content})
		}
		for _, tc := range msg.ToolCalls {
			args := tc.Function.Arguments
			if args == "" {
				args = "{}"
			}
			result.Items = append(result.Items, llm.ToolCallItem{Call: &llm.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(args),
			}})
		}
		result.StopReason = llm.StopReasonToolCalls
		return result, nil
	}

	if structured && msg.Content != "" {
		result.Items = append(result.Items, llm.AnswerItem{Raw: json.RawMessage(msg.Content)})
		return result, nil
	}

	result.Items = append(result.Items, llm.TextItem{Text: msg.Content})
	return result, nil
}
