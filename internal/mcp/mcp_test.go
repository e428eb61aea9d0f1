package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"scout/internal/config"
	"scout/internal/tool"
)

// startTestServer serves a small glossary over in-memory transports and
// returns the client side.
func startTestServer(t *testing.T) mcp.Transport {
	t.Helper()

	server := mcp.NewServer(&mcp.Implementation{Name: "glossary", Version: "test"}, nil)
	server.AddTool(&mcp.Tool{
		Name:        "lookup",
		Description: "Look up a term",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"term": map[string]any{"type": "string"},
			},
			"required": []any{"term"},
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Term string `json:"term"`
		}
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: args.Term + ": Impact Assessment Mensenrechten en Algoritmes"}},
		}, nil
	})
	server.AddTool(&mcp.Tool{
		Name:        "broken",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: "backend unavailable"}},
		}, nil
	})

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	session, err := server.Connect(context.Background(), serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return clientTransport
}

func TestConnect_ListsTools(t *testing.T) {
	client, err := Connect(context.Background(), "kb", startTestServer(t))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	if len(client.Tools()) != 2 {
		t.Fatalf("got %d tools, want 2", len(client.Tools()))
	}
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestAdapter_Execute(t *testing.T) {
	ctx := context.Background()
	client, err := Connect(ctx, "kb", startTestServer(t))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	adapters := map[string]*MCPToolAdapter{}
	for _, mt := range client.Tools() {
		a, err := NewMCPToolAdapter(client, mt)
		if err != nil {
			t.Fatalf("NewMCPToolAdapter(%s): %v", mt.Name, err)
		}
		adapters[a.Name()] = a
	}

	lookup, ok := adapters["kb_lookup"]
	if !ok {
		t.Fatalf("kb_lookup not found in %v", adapters)
	}
	if lookup.Parameters().Properties["term"].Type != "string" {
		t.Errorf("input schema not converted: %+v", lookup.Parameters())
	}
	if !strings.Contains(lookup.Description(), "[MCP Server: kb]") {
		t.Errorf("description = %q", lookup.Description())
	}

	res, err := lookup.Execute(ctx, json.RawMessage(`{"term":"IAMA"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Success || res.Output != "IAMA: Impact Assessment Mensenrechten en Algoritmes" {
		t.Errorf("result = %+v", res)
	}

	broken, ok := adapters["kb_broken"]
	if !ok {
		t.Fatalf("kb_broken not found in: %v", adapters)
	}
	res, err = broken.Execute(ctx, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Success || res.Error != "backend unavailable" {
		t.Errorf("error result = %+v", res)
	}
}

func TestManager_Attach(t *testing.T) {
	ctx := context.Background()
	registry := tool.NewRegistry()
	m := NewManager(registry)
	defer m.Close()

	if err := m.Attach(ctx, "kb", startTestServer(t)); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if got := m.ListServers(); len(got) != 1 || got[0] != "kb" {
		t.Errorf("ListServers = %v", got)
	}
	if registry.Len() != 2 {
		t.Errorf("registered %d tools, want 2", registry.Len())
	}

	// Arguments are checked against the server's schema before any call.
	if err := registry.Validate("kb_lookup", json.RawMessage(`{"term":1}`)); !errors.Is(err, tool.ErrInvalidArguments) {
		t.Errorf("Validate = %v, want ErrInvalidArguments", err)
	}
	out, err := registry.Invoke(ctx, "kb_lookup", json.RawMessage(`{"term":"IAMA"}`))
	if err != nil || !strings.HasPrefix(out, "IAMA:") {
		t.Errorf("Invoke = %q, %v", out, err)
	}

	if err := m.Attach(ctx, "kb", startTestServer(t)); err == nil {
		t.Error("expected duplicate server error")
	}
	if registry.Len() != 2 {
		t.Errorf("duplicate attach changed the registry: %d tools", registry.Len())
	}
	if failed := m.Health(ctx); len(failed) != 0 {
		t.Errorf("Health = %v", failed)
	}
}

func TestManager_AttachCollidingToolsRegistersNothing(t *testing.T) {
	server := mcp.NewServer(&mcp.Implementation{Name: "versions", Version: "test"}, nil)
	handler := func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: "ok"}}}, nil
	}
	// Both names map to kb_lookup_v1.
	for _, name := range []string{"lookup.v1", "lookup_v1"} {
		server.AddTool(&mcp.Tool{
			Name:        name,
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		}, handler)
	}
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	session, err := server.Connect(context.Background(), serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })

	registry := tool.NewRegistry()
	m := NewManager(registry)
	defer m.Close()

	if err := m.Attach(context.Background(), "kb", clientTransport); err == nil {
		t.Fatal("expected colliding tool names to fail")
	}
	if registry.Len() != 0 {
		t.Errorf("failed attach left %d tools registered", registry.Len())
	}
	if got := m.ListServers(); len(got) != 0 {
		t.Errorf("ListServers = %v, want none", got)
	}
}

func TestManager_InitializeReportsFailures(t *testing.T) {
	m := NewManager(tool.NewRegistry())
	defer m.Close()

	err := m.Initialize(context.Background(), config.MCPConfig{Servers: []config.MCPServerConfig{
		{Name: "missing", Transport: "stdio", Command: "/nonexistent/scout-mcp-server"},
		{Name: "off", Transport: "stdio", Command: "whatever", Disabled: true},
	}})
	if err == nil || !strings.Contains(err.Error(), "all MCP servers failed") {
		t.Fatalf("Initialize error = %v", err)
	}
	if m.ServerCount() != 0 {
		t.Errorf("ServerCount = %d", m.ServerCount())
	}

	if err := m.Initialize(context.Background(), config.MCPConfig{}); err != nil {
		t.Errorf("empty config: %v", err)
	}
}

func TestToolName(t *testing.T) {
	tests := map[[2]string]string{
		{"github", "create_issue"}: "github_create_issue",
		{"fs", "read.file"}:        "fs_read_file",
		{"my-server", "a b/c"}:     "my-server_a_b_c",
	}
	for in, want := range tests {
		if got := ToolName(in[0], in[1]); got != want {
			t.Errorf("ToolName(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}

func TestFormatMCPContent(t *testing.T) {
	got := formatMCPContent(&mcp.CallToolResult{Content: []mcp.Content{
		&mcp.TextContent{Text: "line"},
		&mcp.ImageContent{MIMEType: "image/png"},
	}})
	if got != "line\n[Image: image/png]" {
		t.Errorf("got %q", got)
	}

	got = formatMCPContent(&mcp.CallToolResult{StructuredContent: map[string]any{"n": 1}})
	if got != `{"n":1}` {
		t.Errorf("structured = %q", got)
	}
}
