package tool

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"scout/internal/hook"
	"scout/internal/llm"
)

type ExecutionMode string

const (
	ExecutionModeSequential ExecutionMode = "sequential"
	ExecutionModeParallel   ExecutionMode = "parallel"
)

// EmptyOutputPlaceholder is returned when a tool produces no output.
// This ensures LLM APIs (which require non-empty content) don't fail with 400 errors.
const EmptyOutputPlaceholder = "(Tool executed successfully with no output)"

type Executor struct {
	registry    *Registry
	mode        ExecutionMode
	concurrency int
	hookManager *hook.Manager
	tracer      trace.Tracer
}

func NewExecutor(registry *Registry) *Executor {
	return &Executor{
		registry: registry,
		mode:     ExecutionModeSequential,
		tracer:   noop.NewTracerProvider().Tracer(""),
	}
}

func (e *Executor) SetMode(mode ExecutionMode) {
	e.mode = mode
}

// SetConcurrency bounds parallel mode; n <= 0 means unbounded.
func (e *Executor) SetConcurrency(n int) {
	e.concurrency = n
}

// SetHookManager sets the hook manager for tool execution hooks
func (e *Executor) SetHookManager(manager *hook.Manager) {
	e.hookManager = manager
}

func (e *Executor) SetTracer(tracer trace.Tracer) {
	if tracer != nil {
		e.tracer = tracer
	}
}

func (e *Executor) Registry() *Registry {
	return e.registry
}

// Validate checks every call of a round against the registry. The first
// violation is returned, wrapping ErrUnknownTool or ErrInvalidArguments.
func (e *Executor) Validate(toolCalls []*llm.ToolCall) error {
	for _, tc := range toolCalls {
		if err := e.registry.Validate(tc.Name, tc.Arguments); err != nil {
			return fmt.Errorf("tool call %s: %w", tc.ID, err)
		}
	}
	return nil
}

// Execute runs one round of tool calls and returns their results in request
// order. All calls are validated before any of them runs. The only errors
// returned are contract violations and context cancellation; tool failures
// are reported inside the CallResults.
func (e *Executor) Execute(ctx context.Context, toolCalls []*llm.ToolCall) ([]*CallResult, error) {
	if err := e.Validate(toolCalls); err != nil {
		return nil, err
	}

	switch e.mode {
	case ExecutionModeParallel:
		return e.executeParallel(ctx, toolCalls)
	default:
		return e.executeSequential(ctx, toolCalls)
	}
}

func (e *Executor) executeSequential(ctx context.Context, toolCalls []*llm.ToolCall) ([]*CallResult, error) {
	results := make([]*CallResult, len(toolCalls))

	for i, tc := range toolCalls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results[i] = e.executeOne(ctx, tc)
	}

	return results, nil
}

func (e *Executor) executeParallel(ctx context.Context, toolCalls []*llm.ToolCall) ([]*CallResult, error) {
	results := make([]*CallResult, len(toolCalls))

	g, gctx := errgroup.WithContext(ctx)
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}
	for i, tc := range toolCalls {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.executeOne(gctx, tc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

func (e *Executor) executeOne(ctx context.Context, tc *llm.ToolCall) (cr *CallResult) {
	ctx, span := e.tracer.Start(ctx, "tool "+tc.Name, trace.WithAttributes(
		attribute.String("tool.name", tc.Name),
		attribute.String("tool.call_id", tc.ID),
	))
	defer span.End()

	cr = &CallResult{
		ToolName:  tc.Name,
		CallID:    tc.ID,
		Params:    tc.Arguments,
		StartTime: time.Now(),
	}
	defer func() {
		cr.EndTime = time.Now()
		if !cr.Result.Success {
			span.SetStatus(codes.Error, cr.Result.Error)
		}
		span.SetAttributes(attribute.Int("tool.result_size", len(cr.Result.Text())))
	}()

	t, err := e.registry.Get(tc.Name)
	if err != nil {
		cr.Result = Failure(err.Error())
		return cr
	}

	// Trigger before tool execution hook
	if e.hookManager != nil {
		hookData := hook.NewHookData(hook.BeforeToolExecution, tc.Name).
			Set(hook.KeyParams, string(tc.Arguments)).
			Set(hook.KeyCallID, tc.ID)

		feedback, err := e.hookManager.Trigger(ctx, hookData)
		if err != nil {
			cr.Result = Failure(fmt.Sprintf("hook error: %v", err))
			return cr
		}

		if !feedback.Allow {
			denyMsg := fmt.Sprintf("Tool execution was DENIED by user. Reason: %s. Answer with the information you already have or explain what is missing.", feedback.Message)
			cr.Result = &Result{Success: false, Output: denyMsg, Error: denyMsg}
			cr.Denied = true
			return cr
		}
	}

	cr.Result = e.run(ctx, t, tc)

	// After hooks don't block, just trigger
	if e.hookManager != nil {
		e.hookManager.Notify(ctx, hook.NewHookData(hook.AfterToolExecution, tc.Name).
			Set(hook.KeyParams, string(tc.Arguments)).
			Set(hook.KeyCallID, tc.ID).
			Set(hook.KeyResult, cr.Result.Text()).
			Set(hook.KeyFailed, !cr.Result.Success).
			Set(hook.KeyDuration, time.Since(cr.StartTime)))
	}

	return cr
}

// run executes the tool, turning errors and panics into failed results.
func (e *Executor) run(ctx context.Context, t Tool, tc *llm.ToolCall) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Failure(fmt.Sprintf("tool panicked: %v", r))
		}
	}()

	result, err := t.Execute(ctx, tc.Arguments)
	if err != nil {
		return Failure(err.Error())
	}
	if result == nil {
		return &Result{Success: true, Output: EmptyOutputPlaceholder}
	}

	// Ensure non-empty output for LLM APIs that require non-empty content
	if result.Success && result.Output == "" {
		result.Output = EmptyOutputPlaceholder
	}
	return result
}
