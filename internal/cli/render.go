package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"scout/internal/agent"
	"scout/internal/llm"
	"scout/internal/logger"
	"scout/internal/schema"
)

// citationExcerpt is how much of a citation's text is shown.
const citationExcerpt = 100

// RenderChunks prints answer chunks as they arrive and returns the full
// text. It stops early if ctx is cancelled.
func (sw *StreamingWriter) RenderChunks(ctx context.Context, chunks <-chan string) (string, error) {
	var b strings.Builder
	sw.Write("\nAssistant: ")
	for {
		select {
		case <-ctx.Done():
			sw.WriteLine("")
			return b.String(), ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				sw.WriteLine("")
				return b.String(), nil
			}
			b.WriteString(chunk)
			sw.Write(chunk)
		}
	}
}

// RenderAnswer prints the answer followed by its citations.
func (sw *StreamingWriter) RenderAnswer(ans *schema.Answer) {
	sw.WriteLine(fmt.Sprintf("\nAssistant: %s\n", ans.Answer))
	sw.RenderCitations(ans.Citations)
}

// RenderCitations prints one line per citation with a shortened excerpt.
func (sw *StreamingWriter) RenderCitations(citations []schema.Citation) {
	if len(citations) == 0 {
		return
	}
	sw.WriteColored("Citations:\n", ColorBold)
	for _, c := range citations {
		excerpt := []rune(c.Text)
		if len(excerpt) > citationExcerpt {
			excerpt = excerpt[:citationExcerpt]
		}
		sw.WriteLine(fmt.Sprintf("  %s: %s...", c.Source, string(excerpt)))
	}
	sw.WriteLine("")
}

// RenderToolCalls prints the tools used for the last answer.
func (sw *StreamingWriter) RenderToolCalls(records []agent.ToolCallRecord) {
	if len(records) == 0 {
		sw.WriteColored("No tools needed - responding directly\n", ColorGray)
		return
	}

	sw.WriteColored("🔧 Tool Calls\n", ColorBold)
	for _, r := range records {
		mark, color := "✔", ColorGreen
		switch r.Status {
		case agent.ToolCallFailed:
			mark, color = "✖", ColorRed
		case agent.ToolCallDenied:
			mark, color = "⛔", ColorYellow
		}
		sw.WriteColored(fmt.Sprintf("  %s %s", mark, r.Name), color)
		sw.WriteLine(fmt.Sprintf(" (%s)", r.Duration.Round(time.Millisecond)))

		if detail := argumentCaption(r.Args); detail != "" {
			sw.WriteColored("      "+detail+"\n", ColorGray)
		}
		if r.ResultSize > 0 {
			sw.WriteColored(fmt.Sprintf("      Retrieved: %d characters\n", r.ResultSize), ColorGray)
		}
	}
}

// argumentCaption picks the argument worth showing for a tool call.
func argumentCaption(args string) string {
	var fields map[string]any
	if err := json.Unmarshal([]byte(args), &fields); err != nil {
		return ""
	}
	if url, ok := fields["url"].(string); ok {
		return "URL: " + url
	}
	if q, ok := fields["query"].(string); ok {
		return "Query: " + q
	}
	return ""
}

// RenderToolCatalog prints every declared tool with its input schema.
func (sw *StreamingWriter) RenderToolCatalog(defs []llm.ToolDefinition) {
	if len(defs) == 0 {
		sw.WriteLine("No tools configured.")
		return
	}
	for _, d := range defs {
		sw.WriteColored(d.Name+"\n", ColorBold+ColorCyan)
		sw.WriteLine("  " + strings.ReplaceAll(d.Description, "\n", "\n  "))
		if d.Parameters != nil {
			if data, err := json.MarshalIndent(d.Parameters, "  ", "  "); err == nil {
				sw.WriteColored("  "+string(data)+"\n", ColorGray)
			}
		}
		sw.WriteLine("")
	}
}

// RenderConversation prints a stored conversation, shortening tool output.
func (sw *StreamingWriter) RenderConversation(msgs []llm.Message) {
	for _, m := range msgs {
		switch {
		case m.IsToolRequest():
			for _, c := range m.ToolCalls {
				sw.WriteColored(fmt.Sprintf("→ %s %s\n", c.Name, string(c.Arguments)), ColorCyan)
			}
		case m.IsToolResult():
			sw.WriteColored(fmt.Sprintf("← %s\n", logger.Shorten(m.Content, 2, 200)), ColorGray)
		case m.Role == llm.RoleUser:
			sw.WriteColored("You: ", ColorBold+ColorBlue)
			sw.WriteLine(m.Content)
		default:
			sw.WriteColored("Assistant: ", ColorBold+ColorGreen)
			sw.WriteLine(m.Content)
		}
	}
}
