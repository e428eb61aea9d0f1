// Package history holds the append-only conversation log an agent owns.
//
// Every append is checked against the tool-call protocol: results must
// answer the oldest outstanding request, and nothing else may be appended
// while requests are outstanding. The only ways to remove messages are the
// explicit Reset and Compact operations.
package history

import (
	"errors"
	"fmt"
	"sync"

	"scout/internal/llm"
)

var (
	// ErrUnmatchedToolResult is returned when a tool result does not answer
	// the oldest outstanding tool call.
	ErrUnmatchedToolResult = errors.New("tool result does not match an outstanding tool call")

	// ErrUnansweredToolCalls is returned when a message other than a tool
	// result is appended while tool calls are still outstanding.
	ErrUnansweredToolCalls = errors.New("tool calls are still unanswered")

	// ErrInvalidMessage is returned for messages that are malformed on their own.
	ErrInvalidMessage = errors.New("invalid message")
)

// Log is an ordered, append-only sequence of messages. It is safe for
// concurrent use, but a conversation should still have a single writer.
type Log struct {
	mu       sync.RWMutex
	messages []llm.Message
	pending  []string // outstanding tool call ids, oldest first
}

// New creates an empty log.
func New() *Log {
	return &Log{}
}

// Append validates msg against the protocol and appends a copy of it.
func (l *Log) Append(msg llm.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	pending, err := check(l.pending, msg)
	if err != nil {
		return err
	}
	l.pending = pending
	l.messages = append(l.messages, msg.Clone())
	return nil
}

// Messages returns a copy of the committed messages.
func (l *Log) Messages() []llm.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return llm.CloneMessages(l.messages)
}

// Len returns the number of committed messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Outstanding returns the ids of tool calls not yet answered, oldest first.
func (l *Log) Outstanding() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.pending...)
}

// Reset drops every message.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
	l.pending = nil
}

// Compact drops the oldest messages so that at most keepLast remain. The cut
// is moved forward until it no longer splits a tool-call request from its
// results, so fewer than keepLast messages may remain. Nothing is dropped
// while tool calls are outstanding. It returns the number of messages
// dropped.
func (l *Log) Compact(keepLast int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if keepLast < 0 {
		keepLast = 0
	}
	if len(l.pending) > 0 || len(l.messages) <= keepLast {
		return 0
	}

	cut := len(l.messages) - keepLast
	for cut < len(l.messages) && l.messages[cut].IsToolResult() {
		cut++
	}

	dropped := cut
	l.messages = llm.CloneMessages(l.messages[cut:])
	if len(l.messages) == 0 {
		l.messages = nil
	}
	return dropped
}

// Restore replaces the log with msgs, validating them in order. A log that
// ends with unanswered tool calls is rejected. On error the log is left
// unchanged.
func (l *Log) Restore(msgs []llm.Message) error {
	var pending []string
	for i, msg := range msgs {
		var err error
		pending, err = check(pending, msg)
		if err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	if len(pending) > 0 {
		return fmt.Errorf("%w: %v", ErrUnansweredToolCalls, pending)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = llm.CloneMessages(msgs)
	l.pending = pending
	return nil
}

// check validates msg given the outstanding call ids and returns the new
// outstanding set.
func check(pending []string, msg llm.Message) ([]string, error) {
	switch msg.Role {
	case llm.RoleTool:
		if msg.ToolCallID == "" {
			return nil, fmt.Errorf("%w: tool result without correlation id", ErrInvalidMessage)
		}
		if len(pending) == 0 || pending[0] != msg.ToolCallID {
			return nil, fmt.Errorf("%w: %q", ErrUnmatchedToolResult, msg.ToolCallID)
		}
		return pending[1:], nil

	case llm.RoleAssistant:
		if len(pending) > 0 {
			return nil, fmt.Errorf("%w: %v", ErrUnansweredToolCalls, pending)
		}
		if len(msg.ToolCalls) == 0 {
			return pending, nil
		}
		seen := make(map[string]bool, len(msg.ToolCalls))
		next := make([]string, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			if tc == nil || tc.ID == "" || tc.Name == "" {
				return nil, fmt.Errorf("%w: tool call without id or name", ErrInvalidMessage)
			}
			if seen[tc.ID] {
				return nil, fmt.Errorf("%w: duplicate tool call id %q", ErrInvalidMessage, tc.ID)
			}
			seen[tc.ID] = true
			next = append(next, tc.ID)
		}
		return next, nil

	case llm.RoleUser, llm.RoleSystem:
		if len(pending) > 0 {
			return nil, fmt.Errorf("%w: %v", ErrUnansweredToolCalls, pending)
		}
		if len(msg.ToolCalls) > 0 || msg.ToolCallID != "" {
			return nil, fmt.Errorf("%w: %s message with tool fields", ErrInvalidMessage, msg.Role)
		}
		return pending, nil

	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidMessage, msg.Role)
	}
}
