// Package logger is the terminal logger shared by the agent, its tools and
// the CLI.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Level represents the log level
type Level int

const (
	LevelDebug Level = iota // Debug information (only shown with --verbose)
	LevelInfo               // Important steps
	LevelTool               // Tool call related
	LevelAgent              // Agent answer
	LevelWarn               // Recoverable problems
	LevelError              // Error messages
	LevelSilent             // Nothing
)

// ANSI color codes for terminal output
const (
	ColorReset   = "\033[0m"
	ColorRed     = "\033[31m"
	ColorGreen   = "\033[32m"
	ColorYellow  = "\033[33m"
	ColorBlue    = "\033[34m"
	ColorMagenta = "\033[35m"
	ColorCyan    = "\033[36m"
	ColorGray    = "\033[90m"
	ColorBold    = "\033[1m"
)

// ParseLevel maps a config value to a Level. Unknown names are an error.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "tool":
		return LevelTool, nil
	case "agent":
		return LevelAgent, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "silent", "off":
		return LevelSilent, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger writes levelled, optionally coloured output. It is safe for
// concurrent use.
type Logger struct {
	mu        sync.Mutex
	writer    io.Writer
	level     Level
	showTime  bool
	colorMode bool
}

// NewLogger creates a new Logger instance
func NewLogger(w io.Writer, level Level) *Logger {
	if w == nil {
		w = os.Stdout
	}
	return &Logger{
		writer:    w,
		level:     level,
		showTime:  true,
		colorMode: true,
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{writer: io.Discard, level: LevelSilent}
}

// SetColorMode enables or disables colored output
func (l *Logger) SetColorMode(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.colorMode = enabled
}

// SetShowTime enables or disables timestamp display
func (l *Logger) SetShowTime(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.showTime = enabled
}

func (l *Logger) Level() Level {
	return l.level
}

// Debug logs debug information (only shown in verbose mode)
func (l *Logger) Debug(format string, args ...any) {
	if l.level <= LevelDebug {
		l.log(ColorGray, "DEBUG", format, args...)
	}
}

// Info logs general information
func (l *Logger) Info(format string, args ...any) {
	if l.level <= LevelInfo {
		l.log(ColorBlue, "INFO", format, args...)
	}
}

func (l *Logger) Warn(format string, args ...any) {
	if l.level <= LevelWarn {
		l.log(ColorYellow, "WARN", format, args...)
	}
}

// Error logs error messages
func (l *Logger) Error(format string, args ...any) {
	if l.level <= LevelError {
		l.log(ColorRed, "ERROR", format, args...)
	}
}

// AgentResponse logs text the model produced alongside tool calls or as its
// answer.
func (l *Logger) AgentResponse(content string) {
	if l.level <= LevelAgent {
		l.printSection(ColorGreen, "💬 Agent Response", content)
	}
}

// ToolCall logs a tool call with its arguments
func (l *Logger) ToolCall(toolName string, params string) {
	if l.level <= LevelTool {
		l.printSection(ColorCyan, fmt.Sprintf("🔧 Tool Call: %s", toolName), formatJSON(params))
	}
}

// ToolResult logs a tool result, shortened to two lines and 500 characters.
func (l *Logger) ToolResult(toolName string, success bool, output string, duration time.Duration) {
	if l.level > LevelTool {
		return
	}

	status := "✅ Success"
	color := ColorGreen
	if !success {
		status = "❌ Failed"
		color = ColorRed
	}

	header := fmt.Sprintf("📊 Tool Result: %s [%s] (%s)", toolName, status, duration.Round(time.Millisecond))
	l.printSection(color, header, Shorten(output, 2, 500))
}

// Round logs the start of a model round.
func (l *Logger) Round(current, max int) {
	if l.level <= LevelInfo {
		l.log(ColorMagenta, "ROUND", "%d/%d: calling model", current, max)
	}
}

// SessionStart logs the beginning of a question
func (l *Logger) SessionStart(query string) {
	if l.level <= LevelInfo {
		l.printBanner(ColorCyan, "🚀 Question", query)
	}
}

// SessionEnd logs the completion of a question with statistics
func (l *Logger) SessionEnd(duration time.Duration, rounds, toolCallCount int) {
	if l.level <= LevelInfo {
		summary := fmt.Sprintf("Duration: %s | Rounds: %d | Tool Calls: %d", duration.Round(time.Millisecond), rounds, toolCallCount)
		l.printBanner(ColorGreen, "✨ Answered", summary)
	}
}

// Shorten keeps at most maxLines lines and maxChars characters of s,
// marking the cut with an ellipsis.
func Shorten(s string, maxLines, maxChars int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	out := s
	cutLines := false
	if len(lines) > maxLines {
		out = strings.Join(lines[:maxLines], "\n")
		cutLines = true
	}

	if utf8.RuneCountInString(out) > maxChars {
		return string([]rune(out)[:maxChars]) + "..."
	}
	if cutLines {
		return out + "\n..."
	}
	return out
}

func (l *Logger) log(color, level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := ""
	if l.showTime {
		timestamp = time.Now().Format("15:04:05") + " "
	}

	msg := fmt.Sprintf(format, args...)

	if l.colorMode {
		fmt.Fprintf(l.writer, "%s%s[%s]%s %s\n", color, timestamp, level, ColorReset, msg)
	} else {
		fmt.Fprintf(l.writer, "%s[%s] %s\n", timestamp, level, msg)
	}
}

func (l *Logger) printSection(color, header, content string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	separator := strings.Repeat("─", 60)

	if l.colorMode {
		fmt.Fprintf(l.writer, "\n%s%s%s%s\n", ColorBold, color, header, ColorReset)
		fmt.Fprintf(l.writer, "%s%s%s\n", color, separator, ColorReset)
		fmt.Fprintf(l.writer, "%s\n", content)
		fmt.Fprintf(l.writer, "%s%s%s\n\n", color, separator, ColorReset)
	} else {
		fmt.Fprintf(l.writer, "\n%s\n%s\n%s\n%s\n\n", header, separator, content, separator)
	}
}

func (l *Logger) printBanner(color, title, subtitle string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	separator := strings.Repeat("═", 70)

	if l.colorMode {
		fmt.Fprintf(l.writer, "\n%s%s%s%s\n", ColorBold, color, separator, ColorReset)
		fmt.Fprintf(l.writer, "%s%s  %s%s\n", ColorBold, color, title, ColorReset)
		if subtitle != "" {
			fmt.Fprintf(l.writer, "%s  %s%s\n", color, subtitle, ColorReset)
		}
		fmt.Fprintf(l.writer, "%s%s%s%s\n\n", ColorBold, color, separator, ColorReset)
	} else {
		fmt.Fprintf(l.writer, "\n%s\n  %s\n", separator, title)
		if subtitle != "" {
			fmt.Fprintf(l.writer, "  %s\n", subtitle)
		}
		fmt.Fprintf(l.writer, "%s\n\n", separator)
	}
}

// formatJSON keeps short JSON compact and pretty-prints long JSON.
func formatJSON(jsonStr string) string {
	compact := strings.TrimSpace(jsonStr)
	if len(compact) < 80 {
		return compact
	}

	var obj any
	if err := json.Unmarshal([]byte(compact), &obj); err != nil {
		return compact
	}
	pretty, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return compact
	}
	return string(pretty)
}
