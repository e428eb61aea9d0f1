package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"scout/internal/history"
	"scout/internal/hook"
	"scout/internal/llm"
	"scout/internal/schema"
)

// Ask answers query, running whatever tools the model requests, and returns
// the validated answer. The question, the tool traffic and the answer are
// committed to history together, and only on success.
func (a *Agent) Ask(ctx context.Context, query string) (*schema.Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, span := a.tracer.Start(ctx, "agent.ask", trace.WithAttributes(
		attribute.String("llm.provider", a.client.Provider()),
		attribute.String("llm.model", a.client.Model()),
		attribute.Int("agent.max_rounds", a.cfg.maxRounds),
	))
	defer span.End()

	a.setLastCalls(nil)
	r := &run{
		agent: a,
		m:     machine{state: a.State()},
		exec:  NewExecutionContext(a.log, a.cfg.maxRounds),
		turn:  a.history.Begin(),
	}

	a.cfg.hooks.Notify(ctx, hook.NewHookData(hook.OnAgentStart, "").Set(hook.KeyQuery, query))
	a.log.SessionStart(query)

	ans, err := r.ask(ctx, query)

	span.SetAttributes(
		attribute.Int("agent.rounds", r.exec.CurrentRound),
		attribute.Int("agent.tool_calls", r.exec.ToolCallCount),
	)
	end := hook.NewHookData(hook.OnAgentEnd, "").Set(hook.KeyQuery, query)

	if err != nil {
		r.turn.Discard()
		if r.m.state != StateFailed {
			_ = r.to(StateFailed)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.log.Error("%v", err)
		a.cfg.hooks.Notify(context.WithoutCancel(ctx), end.Set(hook.KeyError, err.Error()))
		return nil, err
	}

	r.exec.End()
	a.cfg.hooks.Notify(ctx, end.Set(hook.KeyAnswer, ans.Answer))
	return ans, nil
}

// run is the state of one Ask call.
type run struct {
	agent *Agent
	m     machine
	exec  *ExecutionContext
	turn  *history.Turn
}

// response is a model response split by item kind.
type response struct {
	text    string
	answer  json.RawMessage
	calls   []*llm.ToolCall
	builtin []llm.BuiltinToolItem
}

func (r *run) to(s State) error {
	if err := r.m.to(s); err != nil {
		return err
	}
	r.agent.setState(s)
	r.agent.log.Debug("state -> %s", s)
	return nil
}

func (r *run) ask(ctx context.Context, query string) (*schema.Answer, error) {
	if r.m.state != StateIdle {
		if err := r.to(StateIdle); err != nil {
			return nil, err
		}
	}
	if err := r.to(StateAwaitingModel); err != nil {
		return nil, err
	}
	if err := r.turn.Append(llm.Message{Role: llm.RoleUser, Content: query}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}

	tools := r.agent.registry.Declare()
	toolsRan := false

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		round := r.exec.NextRound()
		resp, err := r.complete(ctx, "agent.round", round, r.request(tools, toolsRan))
		if err != nil {
			return nil, err
		}

		if len(resp.calls) == 0 {
			if err := r.to(StateTerminal); err != nil {
				return nil, err
			}
			return r.finish(ctx, resp)
		}

		if round >= r.agent.cfg.maxRounds {
			return nil, fmt.Errorf("%w: model still requested %d tool call(s) after %d rounds",
				ErrToolLoopExceeded, len(resp.calls), r.agent.cfg.maxRounds)
		}

		if err := r.to(StateExecutingTools); err != nil {
			return nil, err
		}
		if err := r.runTools(ctx, resp); err != nil {
			return nil, err
		}
		toolsRan = true
		if err := r.to(StateAwaitingModel); err != nil {
			return nil, err
		}
	}
}

// request builds the model request for the next round. Once tools have run,
// the answer is constrained to the output schema.
func (r *run) request(tools []llm.ToolDefinition, toolsRan bool) *llm.Request {
	cfg := r.agent.cfg
	req := &llm.Request{
		System:      r.systemPrompt(),
		Messages:    r.turn.Messages(),
		Tools:       tools,
		Temperature: cfg.temperature,
		MaxTokens:   cfg.maxTokens,
	}
	if toolsRan {
		req.System += cfg.followUp
	}
	if toolsRan || len(tools) == 0 {
		req.OutputSchema = r.outputSchema()
	}
	return req
}

func (r *run) systemPrompt() string {
	prompt := r.agent.cfg.systemPrompt
	if bp := r.agent.registry.GetToolBestPractices(); bp != "" {
		prompt += "\n\n" + bp
	}
	return prompt
}

func (r *run) outputSchema() *llm.OutputSchema {
	return &llm.OutputSchema{Name: r.agent.cfg.schemaName, Schema: r.agent.cfg.schema}
}

// complete calls the model inside a span and splits the response.
func (r *run) complete(ctx context.Context, spanName string, round int, req *llm.Request) (*response, error) {
	ctx, span := r.agent.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.Int("agent.round", round),
		attribute.Int("llm.messages", len(req.Messages)),
		attribute.Int("llm.tools", len(req.Tools)),
		attribute.Bool("llm.structured", req.OutputSchema != nil),
	))
	defer span.End()

	raw, err := r.agent.client.Complete(ctx, req)
	if err != nil {
		err = fmt.Errorf("model call failed (round %d): %w", round, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	resp, err := split(raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("llm.tool_calls", len(resp.calls)),
		attribute.Int("llm.usage.total_tokens", raw.Usage.TotalTokens),
	)
	for _, b := range resp.builtin {
		r.agent.log.Debug("provider tool %s: %s", b.Name, b.Status)
	}
	return resp, nil
}

func split(raw *llm.Response) (*response, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: model returned no response", ErrProtocolViolation)
	}
	resp := &response{}
	for _, item := range raw.Items {
		switch it := item.(type) {
		case llm.TextItem:
			resp.text += it.Text
		case llm.ToolCallItem:
			if it.Call == nil {
				return nil, fmt.Errorf("%w: empty tool call", ErrProtocolViolation)
			}
			resp.calls = append(resp.calls, it.Call)
		case llm.AnswerItem:
			resp.answer = it.Raw
		case llm.BuiltinToolItem:
			resp.builtin = append(resp.builtin, it)
		default:
			return nil, fmt.Errorf("%w: unsupported response item %T", ErrProtocolViolation, item)
		}
	}
	return resp, nil
}

// runTools executes one round of tool calls and stages each request with its
// result, in request order.
func (r *run) runTools(ctx context.Context, resp *response) error {
	seen := make(map[string]bool, len(resp.calls))
	for _, c := range resp.calls {
		if c.ID == "" || c.Name == "" {
			return fmt.Errorf("%w: tool call without id or name", ErrProtocolViolation)
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: duplicate tool call id %q", ErrProtocolViolation, c.ID)
		}
		seen[c.ID] = true
	}
	if err := r.agent.executor.Validate(resp.calls); err != nil {
		return err
	}

	if resp.text != "" {
		r.exec.LogResponse(resp.text)
		if err := r.turn.Append(llm.Message{Role: llm.RoleAssistant, Content: resp.text}); err != nil {
			return fmt.Errorf("%w: %w", ErrProtocolViolation, err)
		}
	}

	for _, c := range resp.calls {
		r.exec.LogToolCall(c.Name, string(c.Arguments))
	}

	results, err := r.agent.executor.Execute(ctx, resp.calls)
	if err != nil {
		return err
	}

	for i, cr := range results {
		r.exec.LogToolResult(cr.ToolName, cr.Result.Success, cr.Result.Text(), cr.Duration())
		r.agent.addCalls(recordOf(cr))

		request := llm.Message{Role: llm.RoleAssistant, ToolCalls: []*llm.ToolCall{resp.calls[i]}}
		result := llm.Message{
			Role:       llm.RoleTool,
			ToolCallID: cr.CallID,
			Name:       cr.ToolName,
			Content:    cr.Result.Text(),
		}
		if err := r.turn.Append(request); err != nil {
			return fmt.Errorf("%w: %w", ErrProtocolViolation, err)
		}
		if err := r.turn.Append(result); err != nil {
			return fmt.Errorf("%w: %w", ErrProtocolViolation, err)
		}
	}
	return nil
}

// finish turns the terminal response into a validated answer and commits
// the turn.
func (r *run) finish(ctx context.Context, resp *response) (*schema.Answer, error) {
	raw := resp.answer
	if raw == nil {
		text := strings.TrimSpace(resp.text)
		switch {
		case text == "":
			return nil, fmt.Errorf("%w: model returned an empty response", ErrProtocolViolation)
		case isJSONObject(text):
			raw = json.RawMessage(text)
		case r.agent.cfg.reRequestOnText:
			var err error
			if raw, err = r.reRequest(ctx, resp.text); err != nil {
				return nil, err
			}
		default:
			raw = schema.TextAnswer(resp.text)
		}
	}

	if err := r.to(StateValidating); err != nil {
		return nil, err
	}
	ans, err := schema.DecodeAnswer(r.agent.validator, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaValidation, err)
	}

	feedback, err := r.agent.cfg.hooks.Trigger(ctx, hook.NewHookData(hook.BeforeAnswerAccepted, "").
		Set(hook.KeyAnswer, ans.Answer).
		Set(hook.KeyRaw, string(ans.Raw)))
	if err != nil {
		return nil, fmt.Errorf("answer hook: %w", err)
	}
	if !feedback.Allow {
		return nil, fmt.Errorf("%w: %s", ErrAnswerRejected, feedback.Message)
	}

	r.exec.LogResponse(ans.Answer)
	if err := r.turn.Append(llm.Message{Role: llm.RoleAssistant, Content: ans.Answer}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}
	if err := r.turn.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}
	if err := r.to(StateDone); err != nil {
		return nil, err
	}
	return ans, nil
}

// isJSONObject reports whether text is a complete JSON object. Prose that
// merely starts with a brace is still plain text.
func isJSONObject(text string) bool {
	return strings.HasPrefix(text, "{") && json.Valid([]byte(text))
}

// reRequest stages the plain-text answer and asks the model once more for
// its structured form, without tools.
func (r *run) reRequest(ctx context.Context, text string) (json.RawMessage, error) {
	if err := r.turn.Append(llm.Message{Role: llm.RoleAssistant, Content: text}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}
	if err := r.to(StateAwaitingModel); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := r.agent.cfg
	resp, err := r.complete(ctx, "agent.rerequest", r.exec.CurrentRound, &llm.Request{
		System:       r.systemPrompt() + reRequestPrompt,
		Messages:     r.turn.Messages(),
		OutputSchema: r.outputSchema(),
		Temperature:  cfg.temperature,
		MaxTokens:    cfg.maxTokens,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.calls) > 0 {
		return nil, fmt.Errorf("%w: tool calls requested without a tool catalog", ErrProtocolViolation)
	}
	if err := r.to(StateTerminal); err != nil {
		return nil, err
	}

	if resp.answer != nil {
		return resp.answer, nil
	}
	if text := strings.TrimSpace(resp.text); text != "" {
		return json.RawMessage(text), nil
	}
	return nil, fmt.Errorf("%w: model returned an empty response", ErrProtocolViolation)
}
