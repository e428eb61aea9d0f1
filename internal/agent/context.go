package agent

import (
	"time"

	"scout/internal/logger"
)

// ExecutionContext tracks the progress of one question for logging.
type ExecutionContext struct {
	Logger        *logger.Logger
	StartTime     time.Time
	CurrentRound  int
	MaxRounds     int
	ToolCallCount int
}

// NewExecutionContext creates a new execution context with the given logger
func NewExecutionContext(log *logger.Logger, maxRounds int) *ExecutionContext {
	return &ExecutionContext{
		Logger:    log,
		StartTime: time.Now(),
		MaxRounds: maxRounds,
	}
}

// NextRound advances and logs the round counter.
func (ctx *ExecutionContext) NextRound() int {
	ctx.CurrentRound++
	ctx.Logger.Round(ctx.CurrentRound, ctx.MaxRounds)
	return ctx.CurrentRound
}

// LogToolCall logs a tool call with its parameters
func (ctx *ExecutionContext) LogToolCall(toolName, params string) {
	ctx.ToolCallCount++
	ctx.Logger.ToolCall(toolName, params)
}

// LogToolResult logs a tool execution result
func (ctx *ExecutionContext) LogToolResult(toolName string, success bool, output string, duration time.Duration) {
	ctx.Logger.ToolResult(toolName, success, output, duration)
}

// LogResponse logs the agent's response
func (ctx *ExecutionContext) LogResponse(content string) {
	ctx.Logger.AgentResponse(content)
}

// End logs the session summary.
func (ctx *ExecutionContext) End() {
	ctx.Logger.SessionEnd(time.Since(ctx.StartTime), ctx.CurrentRound, ctx.ToolCallCount)
}
