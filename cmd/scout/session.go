package main

import (
	"context"
	"errors"
	"fmt"

	"scout/internal/agent"
	"scout/internal/store"
)

// session ties the agent's history to a stored conversation.
type session struct {
	id    string
	store store.Store // nil when storage is disabled
	agent *agent.Agent
	limit int
}

// openSession restores conversation id into ag. An unknown id starts a new
// conversation.
func openSession(ctx context.Context, st store.Store, ag *agent.Agent, id string, limit int) (*session, error) {
	s := &session{id: id, store: st, agent: ag, limit: limit}
	if st == nil {
		return s, nil
	}

	msgs, err := st.Load(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("load conversation %s: %w", id, err)
	}

	if err := ag.Restore(msgs); err != nil {
		return nil, fmt.Errorf("conversation %s: %w", id, err)
	}
	s.compact()
	return s, nil
}

// persist saves the messages committed after the first before messages and
// then trims the in-memory history to the configured limit.
func (s *session) persist(ctx context.Context, before int) error {
	defer s.compact()
	if s.store == nil {
		return nil
	}

	msgs := s.agent.History()
	if before > len(msgs) {
		return fmt.Errorf("history shrank from %d to %d messages", before, len(msgs))
	}
	if before == len(msgs) {
		return nil
	}
	return s.store.Append(ctx, s.id, msgs[before:]...)
}

// reset clears the agent history and the stored conversation.
func (s *session) reset(ctx context.Context) error {
	s.agent.Reset()
	if s.store == nil {
		return nil
	}
	return s.store.Delete(ctx, s.id)
}

func (s *session) compact() {
	if s.limit > 0 {
		s.agent.Compact(s.limit)
	}
}
