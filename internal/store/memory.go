package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"scout/internal/llm"
)

// MemoryStore keeps conversations in process memory. Once size
// conversations are held, the least recently used one is evicted.
type MemoryStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *memConversation]
}

type memConversation struct {
	messages  []llm.Message
	createdAt time.Time
	updatedAt time.Time
}

func NewMemoryStore(size int) (*MemoryStore, error) {
	cache, err := lru.New[string, *memConversation](size)
	if err != nil {
		return nil, fmt.Errorf("memory store: %w", err)
	}
	return &MemoryStore{cache: cache}, nil
}

func (s *MemoryStore) Load(ctx context.Context, conversationID string) ([]llm.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.cache.Get(conversationID)
	if !ok {
		return nil, ErrNotFound
	}
	msgs := llm.CloneMessages(conv.messages)
	if msgs == nil {
		msgs = []llm.Message{}
	}
	return msgs, nil
}

func (s *MemoryStore) Append(ctx context.Context, conversationID string, msgs ...llm.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	conv, ok := s.cache.Get(conversationID)
	if !ok {
		conv = &memConversation{createdAt: now}
		s.cache.Add(conversationID, conv)
	}
	conv.messages = append(conv.messages, llm.CloneMessages(msgs)...)
	conv.updatedAt = now
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(conversationID)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Conversation, 0, s.cache.Len())
	for _, id := range s.cache.Keys() {
		conv, ok := s.cache.Peek(id)
		if !ok {
			continue
		}
		out = append(out, Conversation{
			ID:        id,
			Messages:  len(conv.messages),
			CreatedAt: conv.createdAt,
			UpdatedAt: conv.updatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
	return nil
}
