package agent

import (
	"github.com/google/jsonschema-go/jsonschema"
	"go.opentelemetry.io/otel/trace"

	"scout/internal/history"
	"scout/internal/hook"
	"scout/internal/logger"
	"scout/internal/tool"
)

const (
	DefaultMaxRounds  = 8
	DefaultChunkWords = 3

	DefaultSystemPrompt = "You are a research assistant for Dutch government organizations. " +
		"You can help answer questions by: " +
		"1. Searching the AI implementation handbook (for policy questions) " +
		"2. Fetching specific web pages (when given a URL) " +
		"3. Performing wider web searches (for general information) " +
		"Use the most appropriate tool(s) based on the question. " +
		"Provide clear answers with citations."

	// DefaultFollowUp is appended to the system prompt once tools have run.
	DefaultFollowUp = " Use the retrieved information to provide a comprehensive answer. " +
		"Include 2-4 key citations with text excerpts and sources (URLs or section numbers)."

	// reRequestPrompt asks for the structured form of a plain-text answer.
	reRequestPrompt = " Restate your previous answer in the required structured format."
)

type config struct {
	systemPrompt    string
	followUp        string
	maxRounds       int
	schemaName      string
	schema          *jsonschema.Schema
	mode            tool.ExecutionMode
	concurrency     int
	hooks           *hook.Manager
	log             *logger.Logger
	tracerProvider  trace.TracerProvider
	temperature     float32
	maxTokens       int
	reRequestOnText bool
	history         *history.Log
	chunkWords      int
}

// Option configures an Agent.
type Option func(*config)

func WithSystemPrompt(prompt string) Option {
	return func(c *config) { c.systemPrompt = prompt }
}

// WithFollowUpInstructions replaces the text added to the system prompt for
// rounds that follow tool execution.
func WithFollowUpInstructions(text string) Option {
	return func(c *config) { c.followUp = text }
}

// WithMaxRounds caps the model calls of one question.
func WithMaxRounds(n int) Option {
	return func(c *config) { c.maxRounds = n }
}

// WithOutputSchema replaces the answer schema. It must declare a string
// "answer" property.
func WithOutputSchema(name string, s *jsonschema.Schema) Option {
	return func(c *config) {
		c.schemaName = name
		c.schema = s
	}
}

// WithExecutionMode selects sequential or parallel tool execution within a
// round; concurrency bounds parallel mode (0 for unbounded).
func WithExecutionMode(mode tool.ExecutionMode, concurrency int) Option {
	return func(c *config) {
		c.mode = mode
		c.concurrency = concurrency
	}
}

func WithHookManager(m *hook.Manager) Option {
	return func(c *config) { c.hooks = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *config) { c.log = l }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) { c.tracerProvider = tp }
}

func WithTemperature(t float32) Option {
	return func(c *config) { c.temperature = t }
}

func WithMaxTokens(n int) Option {
	return func(c *config) { c.maxTokens = n }
}

// WithReRequestOnText makes a plain-text final round trigger one more model
// call that asks for the structured answer. Without it the text is wrapped
// as an answer without citations.
func WithReRequestOnText(enabled bool) Option {
	return func(c *config) { c.reRequestOnText = enabled }
}

// WithHistory makes the agent continue an existing conversation log.
func WithHistory(h *history.Log) Option {
	return func(c *config) { c.history = h }
}

// WithChunkWords sets how many words AskStream sends per chunk.
func WithChunkWords(n int) Option {
	return func(c *config) { c.chunkWords = n }
}
