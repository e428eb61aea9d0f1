// Package handlers provides interactive hook handlers.
package handlers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"scout/internal/hook"
)

// prompter asks y/N questions on a shared reader so buffered input is not
// lost between prompts.
type prompter struct {
	mu     sync.Mutex
	reader *bufio.Reader
	writer io.Writer
}

func newPrompter(r io.Reader, w io.Writer) *prompter {
	return &prompter{reader: bufio.NewReader(r), writer: w}
}

// confirm prints the question and returns whether the user typed y or yes.
// A closed input counts as no.
func (p *prompter) confirm(ctx context.Context, title string, lines ...string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}

	fmt.Fprintf(p.writer, "\n\033[33m⚠️  %s\033[0m\n", title)
	for _, l := range lines {
		fmt.Fprintf(p.writer, "    %s\n", l)
	}
	fmt.Fprintf(p.writer, "\nAllow? [y/N]: ")

	line, err := p.reader.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintf(p.writer, "\n")
		return false, nil
	}

	switch strings.TrimSpace(strings.ToLower(line)) {
	case "y", "yes":
		fmt.Fprintf(p.writer, "\033[32m✓ Allowed\033[0m\n\n")
		return true, nil
	default:
		fmt.Fprintf(p.writer, "\033[31m✗ Denied\033[0m\n\n")
		return false, nil
	}
}

// ToolConfirmHandler prompts user for confirmation before executing a tool
type ToolConfirmHandler struct {
	p         *prompter
	toolNames map[string]bool // Only confirm these tools (empty = all)
}

// NewToolConfirmHandler creates a new tool confirmation handler
func NewToolConfirmHandler(tools ...string) *ToolConfirmHandler {
	return NewToolConfirmHandlerWithIO(os.Stdin, os.Stdout, tools...)
}

// NewToolConfirmHandlerWithIO creates a handler with custom IO (for testing)
func NewToolConfirmHandlerWithIO(reader io.Reader, writer io.Writer, tools ...string) *ToolConfirmHandler {
	toolNames := make(map[string]bool)
	for _, t := range tools {
		toolNames[t] = true
	}
	return &ToolConfirmHandler{p: newPrompter(reader, writer), toolNames: toolNames}
}

func (h *ToolConfirmHandler) Name() string {
	return "tool_confirm"
}

func (h *ToolConfirmHandler) Points() []hook.HookPoint {
	return []hook.HookPoint{hook.BeforeToolExecution}
}

func (h *ToolConfirmHandler) Priority() int {
	return 100
}

func (h *ToolConfirmHandler) Handle(ctx context.Context, data *hook.HookData) (*hook.Feedback, error) {
	if len(h.toolNames) > 0 && !h.toolNames[data.ToolName] {
		return hook.AllowFeedback(), nil
	}

	var lines []string
	if params := data.GetString(hook.KeyParams); params != "" {
		lines = append(lines, "Parameters: "+params)
	}

	ok, err := h.p.confirm(ctx, fmt.Sprintf("Tool '%s' requires confirmation:", data.ToolName), lines...)
	if err != nil {
		return nil, err
	}
	if !ok {
		return hook.DenyFeedback("User denied tool execution"), nil
	}
	return hook.AllowFeedback(), nil
}

// AnswerConfirmHandler asks the user to approve the final answer before it
// is accepted.
type AnswerConfirmHandler struct {
	p *prompter
}

func NewAnswerConfirmHandler() *AnswerConfirmHandler {
	return NewAnswerConfirmHandlerWithIO(os.Stdin, os.Stdout)
}

// NewAnswerConfirmHandlerWithIO creates a handler with custom IO (for testing)
func NewAnswerConfirmHandlerWithIO(reader io.Reader, writer io.Writer) *AnswerConfirmHandler {
	return &AnswerConfirmHandler{p: newPrompter(reader, writer)}
}

func (h *AnswerConfirmHandler) Name() string {
	return "answer_confirm"
}

func (h *AnswerConfirmHandler) Points() []hook.HookPoint {
	return []hook.HookPoint{hook.BeforeAnswerAccepted}
}

func (h *AnswerConfirmHandler) Priority() int {
	return 100
}

func (h *AnswerConfirmHandler) Handle(ctx context.Context, data *hook.HookData) (*hook.Feedback, error) {
	answer := data.GetString(hook.KeyAnswer)
	ok, err := h.p.confirm(ctx, "Answer requires approval:", strings.Split(answer, "\n")...)
	if err != nil {
		return nil, err
	}
	if !ok {
		return hook.DenyFeedback("User rejected the answer"), nil
	}
	return hook.AllowFeedback(), nil
}
