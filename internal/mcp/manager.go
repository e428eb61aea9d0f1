package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"scout/internal/config"
	"scout/internal/tool"
)

// Manager coordinates multiple MCP servers and registers their tools.
type Manager struct {
	clients  map[string]*Client
	registry *tool.Registry
	mu       sync.RWMutex
}

// NewManager creates a new MCP manager
func NewManager(registry *tool.Registry) *Manager {
	return &Manager{
		clients:  make(map[string]*Client),
		registry: registry,
	}
}

// Initialize starts all enabled servers from cfg concurrently. Servers that
// fail are skipped; the returned error lists them. Tools of the servers that
// started are registered either way.
func (m *Manager) Initialize(ctx context.Context, cfg config.MCPConfig) error {
	var enabled []config.MCPServerConfig
	names := make(map[string]bool)
	for _, serverCfg := range cfg.Servers {
		if serverCfg.Disabled {
			continue
		}
		if names[serverCfg.Name] {
			return fmt.Errorf("duplicate server name: %s", serverCfg.Name)
		}
		names[serverCfg.Name] = true
		enabled = append(enabled, serverCfg)
	}
	if len(enabled) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	errs := make([]error, len(enabled))
	for i, serverCfg := range enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client, err := startServer(ctx, serverCfg)
			if err == nil {
				err = m.add(client)
			}
			if err != nil {
				errs[i] = fmt.Errorf("server %s: %w", serverCfg.Name, err)
			}
		}()
	}
	wg.Wait()

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	switch {
	case len(failed) == len(enabled):
		return fmt.Errorf("all MCP servers failed to initialize: %w", errors.Join(failed...))
	case len(failed) > 0:
		return fmt.Errorf("some MCP servers failed (loaded %d/%d): %w",
			len(enabled)-len(failed), len(enabled), errors.Join(failed...))
	}
	return nil
}

// Attach connects to a server over transport and registers its tools.
func (m *Manager) Attach(ctx context.Context, name string, transport mcp.Transport) error {
	client, err := Connect(ctx, name, transport)
	if err != nil {
		return fmt.Errorf("server %s: %w", name, err)
	}
	if err := m.add(client); err != nil {
		return fmt.Errorf("server %s: %w", name, err)
	}
	return nil
}

// add registers the client's tools as one batch, so a failing server
// leaves no tools behind.
func (m *Manager) add(client *Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.clients[client.Name()]; exists {
		client.Close()
		return fmt.Errorf("duplicate server name: %s", client.Name())
	}

	tools := make([]tool.Tool, 0, len(client.Tools()))
	for _, mcpTool := range client.Tools() {
		adapter, err := NewMCPToolAdapter(client, mcpTool)
		if err != nil {
			client.Close()
			return err
		}
		tools = append(tools, adapter)
	}

	if err := m.registry.RegisterAll(tools...); err != nil {
		client.Close()
		return fmt.Errorf("failed to register tools: %w", err)
	}

	m.clients[client.Name()] = client
	return nil
}

// Close shuts down all MCP sessions
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, client := range m.clients {
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("server %s: %w", name, err))
		}
	}
	m.clients = make(map[string]*Client)

	return errors.Join(errs...)
}

// ListServers returns the connected server names, sorted
func (m *Manager) ListServers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServerCount returns the number of connected servers
func (m *Manager) ServerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}
