// Package cli renders agent output for the terminal.
package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ANSI Color codes
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

// StreamingWriter provides utilities for writing progressive output
type StreamingWriter struct {
	mu        sync.Mutex
	writer    io.Writer
	colorMode bool
}

func NewStreamingWriter(w io.Writer) *StreamingWriter {
	if w == nil {
		w = os.Stdout
	}
	return &StreamingWriter{
		writer:    w,
		colorMode: true,
	}
}

func (sw *StreamingWriter) SetColorMode(enabled bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.colorMode = enabled
}

// Write writes content to the output
func (sw *StreamingWriter) Write(content string) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	fmt.Fprint(sw.writer, content)
	sw.flush()
}

// WriteLine writes a line to the output
func (sw *StreamingWriter) WriteLine(content string) {
	sw.Write(content + "\n")
}

// WriteColored writes colored content if color mode is enabled
func (sw *StreamingWriter) WriteColored(content, color string) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.colorMode {
		fmt.Fprintf(sw.writer, "%s%s%s", color, content, ColorReset)
	} else {
		fmt.Fprint(sw.writer, content)
	}
	sw.flush()
}

// flush pushes buffered output so chunks appear as they arrive
func (sw *StreamingWriter) flush() {
	if flusher, ok := sw.writer.(interface{ Flush() error }); ok {
		flusher.Flush()
	}
}

// ProgressIndicator animates a spinner while the agent works. It only draws
// in color mode, which is off when output is not a terminal.
type ProgressIndicator struct {
	writer *StreamingWriter
	frames []string
	stop   chan struct{}
	done   chan struct{}
}

func NewProgressIndicator(writer *StreamingWriter) *ProgressIndicator {
	return &ProgressIndicator{
		writer: writer,
		frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	}
}

// Start shows message next to the spinner until Stop is called
func (pi *ProgressIndicator) Start(message string) {
	pi.writer.mu.Lock()
	enabled := pi.writer.colorMode
	pi.writer.mu.Unlock()
	if !enabled || pi.stop != nil {
		return
	}

	pi.stop = make(chan struct{})
	pi.done = make(chan struct{})
	go func() {
		defer close(pi.done)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			pi.writer.WriteColored(fmt.Sprintf("\r%s %s", pi.frames[i%len(pi.frames)], message), ColorCyan)
			select {
			case <-pi.stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop stops and clears the progress indicator
func (pi *ProgressIndicator) Stop() {
	if pi.stop == nil {
		return
	}
	close(pi.stop)
	<-pi.done
	pi.stop, pi.done = nil, nil
	pi.writer.Write("\r\033[K") // Clear line
}
