// Package store persists conversations between runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"scout/internal/config"
	"scout/internal/llm"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// Store keeps the committed messages of conversations, in order.
type Store interface {
	// Load returns the messages of a conversation, or ErrNotFound.
	Load(ctx context.Context, conversationID string) ([]llm.Message, error)
	// Append adds messages to the end of a conversation, creating it if
	// needed.
	Append(ctx context.Context, conversationID string, msgs ...llm.Message) error
	Delete(ctx context.Context, conversationID string) error
	// List returns the known conversations, most recently updated first.
	List(ctx context.Context) ([]Conversation, error)
	Close() error
}

// Conversation summarises a stored conversation.
type Conversation struct {
	ID        string
	Messages  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewConversationID returns a fresh, time-ordered conversation id.
func NewConversationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Open creates the store selected by cfg. The "none" driver returns a nil
// Store and no error.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create store directory: %w", err)
			}
		}
		s, err := NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		s, err := NewMemoryStore(cfg.MemorySize)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "none", "":
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
}
