// Package agent implements the tool-augmented question loop: it sends the
// conversation to a model, runs the tools the model asks for, feeds the
// results back and returns a schema-validated answer.
package agent

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"scout/internal/history"
	"scout/internal/llm"
	"scout/internal/logger"
	"scout/internal/schema"
	"scout/internal/tool"
)

// ToolCallStatus is the outcome of one tool call.
type ToolCallStatus string

const (
	ToolCallCompleted ToolCallStatus = "completed"
	ToolCallFailed    ToolCallStatus = "failed"
	ToolCallDenied    ToolCallStatus = "denied"
)

// ToolCallRecord summarises a tool call of the last question.
type ToolCallRecord struct {
	CallID     string
	Name       string
	Args       string
	Status     ToolCallStatus
	ResultSize int
	Duration   time.Duration
}

// Agent answers questions within one conversation. Ask calls are serialized;
// use one Agent per conversation.
type Agent struct {
	cfg       config
	client    llm.Client
	registry  *tool.Registry
	executor  *tool.Executor
	validator *schema.Validator
	history   *history.Log
	log       *logger.Logger
	tracer    trace.Tracer

	mu sync.Mutex // serializes Ask and history operations

	statusMu  sync.RWMutex
	state     State
	lastCalls []ToolCallRecord
}

// New creates an agent talking to client with the tools of registry.
func New(client llm.Client, registry *tool.Registry, opts ...Option) (*Agent, error) {
	if client == nil {
		return nil, errors.New("agent: model client is required")
	}
	if registry == nil {
		return nil, errors.New("agent: tool registry is required")
	}

	cfg := config{
		systemPrompt: DefaultSystemPrompt,
		followUp:     DefaultFollowUp,
		maxRounds:    DefaultMaxRounds,
		schemaName:   schema.AnswerSchemaName,
		schema:       schema.AnswerSchema(),
		mode:         tool.ExecutionModeSequential,
		chunkWords:   DefaultChunkWords,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.maxRounds < 1 {
		return nil, fmt.Errorf("agent: max rounds must be at least 1, got %d", cfg.maxRounds)
	}
	if err := schema.CheckAnswerSchema(cfg.schema); err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}
	validator, err := schema.NewValidator(cfg.schema)
	if err != nil {
		return nil, fmt.Errorf("agent: output schema: %w", err)
	}
	if cfg.chunkWords < 1 {
		cfg.chunkWords = DefaultChunkWords
	}
	if cfg.log == nil {
		cfg.log = logger.Nop()
	}
	if cfg.tracerProvider == nil {
		cfg.tracerProvider = otel.GetTracerProvider()
	}
	if cfg.history == nil {
		cfg.history = history.New()
	}

	tracer := cfg.tracerProvider.Tracer("scout/internal/agent")

	executor := tool.NewExecutor(registry)
	executor.SetMode(cfg.mode)
	executor.SetConcurrency(cfg.concurrency)
	executor.SetHookManager(cfg.hooks)
	executor.SetTracer(tracer)

	return &Agent{
		cfg:       cfg,
		client:    client,
		registry:  registry,
		executor:  executor,
		validator: validator,
		history:   cfg.history,
		log:       cfg.log,
		tracer:    tracer,
		state:     StateIdle,
	}, nil
}

// History returns a copy of the committed conversation.
func (a *Agent) History() []llm.Message {
	return a.history.Messages()
}

// Reset clears the conversation.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history.Reset()
	a.setLastCalls(nil)
}

// Compact drops the oldest messages so at most keepLast remain, never
// splitting a tool call from its result. It returns the number dropped.
func (a *Agent) Compact(keepLast int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Compact(keepLast)
}

// Restore replaces the conversation with msgs after validating them.
func (a *Agent) Restore(msgs []llm.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.history.Restore(msgs); err != nil {
		return fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}
	return nil
}

// State returns the state of the current or last question.
func (a *Agent) State() State {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	return a.state
}

// LastToolCalls returns the tool calls of the most recent question.
func (a *Agent) LastToolCalls() []ToolCallRecord {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	return append([]ToolCallRecord(nil), a.lastCalls...)
}

// Tools returns the catalog advertised to the model.
func (a *Agent) Tools() []llm.ToolDefinition {
	return a.registry.Declare()
}

func (a *Agent) setState(s State) {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	a.state = s
}

func (a *Agent) setLastCalls(records []ToolCallRecord) {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	a.lastCalls = records
}

func (a *Agent) addCalls(records ...ToolCallRecord) {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	a.lastCalls = append(a.lastCalls, records...)
}

func recordOf(cr *tool.CallResult) ToolCallRecord {
	status := ToolCallCompleted
	switch {
	case cr.Denied:
		status = ToolCallDenied
	case !cr.Result.Success:
		status = ToolCallFailed
	}
	return ToolCallRecord{
		CallID:     cr.CallID,
		Name:       cr.ToolName,
		Args:       string(cr.Params),
		Status:     status,
		ResultSize: len(cr.Result.Text()),
		Duration:   cr.Duration(),
	}
}
