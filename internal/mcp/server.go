package mcp

import (
	"context"
	"fmt"

	"scout/internal/config"
)

// startServer launches the stdio server described by cfg and connects to it.
func startServer(ctx context.Context, cfg config.MCPServerConfig) (*Client, error) {
	client, err := NewCommandClient(ctx, cfg.Name, cfg.Command, cfg.Args, config.ExpandEnvMap(cfg.Env))
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}
	return client, nil
}

// Health pings every connected server and returns the failures by name.
func (m *Manager) Health(ctx context.Context) map[string]error {
	m.mu.RLock()
	clients := make(map[string]*Client, len(m.clients))
	for name, c := range m.clients {
		clients[name] = c
	}
	m.mu.RUnlock()

	failed := make(map[string]error)
	for name, c := range clients {
		if err := c.Ping(ctx); err != nil {
			failed[name] = err
		}
	}
	return failed
}
