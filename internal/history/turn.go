package history

import (
	"errors"
	"fmt"

	"scout/internal/llm"
)

// ErrTurnClosed is returned when a committed or discarded turn is used again.
var ErrTurnClosed = errors.New("turn already closed")

// Turn stages the messages of one exchange on top of a Log. The model sees
// the committed messages followed by the staged ones; nothing reaches the
// log until Commit.
type Turn struct {
	log     *Log
	base    []llm.Message
	pending []string
	staged  []llm.Message
	closed  bool
}

// Begin starts a turn on top of the current contents of the log.
func (l *Log) Begin() *Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Turn{
		log:     l,
		base:    llm.CloneMessages(l.messages),
		pending: append([]string(nil), l.pending...),
	}
}

// Append validates and stages msg.
func (t *Turn) Append(msg llm.Message) error {
	if t.closed {
		return ErrTurnClosed
	}
	pending, err := check(t.pending, msg)
	if err != nil {
		return err
	}
	t.pending = pending
	t.staged = append(t.staged, msg.Clone())
	return nil
}

// Messages returns the committed messages followed by the staged ones.
func (t *Turn) Messages() []llm.Message {
	out := make([]llm.Message, 0, len(t.base)+len(t.staged))
	out = append(out, llm.CloneMessages(t.base)...)
	out = append(out, llm.CloneMessages(t.staged)...)
	return out
}

// Staged returns a copy of the messages staged by this turn.
func (t *Turn) Staged() []llm.Message {
	return llm.CloneMessages(t.staged)
}

// Outstanding returns the tool call ids still waiting for a result.
func (t *Turn) Outstanding() []string {
	return append([]string(nil), t.pending...)
}

// Commit appends the staged messages to the log. It fails if a tool call is
// unanswered or if the log changed since Begin.
func (t *Turn) Commit() error {
	if t.closed {
		return ErrTurnClosed
	}
	if len(t.pending) > 0 {
		return fmt.Errorf("%w: %v", ErrUnansweredToolCalls, t.pending)
	}

	t.log.mu.Lock()
	defer t.log.mu.Unlock()

	if len(t.log.messages) != len(t.base) || len(t.log.pending) != 0 {
		return errors.New("history changed while the turn was open")
	}
	t.log.messages = append(t.log.messages, llm.CloneMessages(t.staged)...)
	t.closed = true
	return nil
}

// Discard closes the turn without touching the log.
func (t *Turn) Discard() {
	t.closed = true
}
