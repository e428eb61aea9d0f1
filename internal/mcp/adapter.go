package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"scout/internal/schema"
	"scout/internal/tool"
)

// MCPToolAdapter adapts an MCP tool to the tool.Tool interface
type MCPToolAdapter struct {
	client         *Client
	mcpTool        *mcp.Tool
	namespacedName string // e.g., "kb_lookup"
	params         *jsonschema.Schema
}

// NewMCPToolAdapter creates an adapter for an MCP tool. The tool's input
// schema is converted up front so a malformed one fails registration
// rather than the first call.
func NewMCPToolAdapter(client *Client, mcpTool *mcp.Tool) (*MCPToolAdapter, error) {
	params, err := schema.FromAny(mcpTool.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("tool %s: input schema: %w", mcpTool.Name, err)
	}
	if params.Type == "" {
		params.Type = "object"
	}

	return &MCPToolAdapter{
		client:         client,
		mcpTool:        mcpTool,
		namespacedName: ToolName(client.Name(), mcpTool.Name),
		params:         params,
	}, nil
}

// ToolName namespaces an MCP tool as server_tool, replacing characters that
// model APIs reject in function names.
func ToolName(server, name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, server+"_"+name)
}

// Name returns the namespaced tool name (server_tool)
func (a *MCPToolAdapter) Name() string {
	return a.namespacedName
}

// Description returns the MCP tool description
func (a *MCPToolAdapter) Description() string {
	desc := a.mcpTool.Description
	if desc == "" {
		desc = fmt.Sprintf("MCP tool from %s server", a.client.Name())
	}
	return fmt.Sprintf("%s\n\n[MCP Server: %s]", desc, a.client.Name())
}

func (a *MCPToolAdapter) Parameters() *jsonschema.Schema {
	return a.params
}

// Execute calls the MCP server to execute the tool
func (a *MCPToolAdapter) Execute(ctx context.Context, params json.RawMessage) (*tool.Result, error) {
	args := map[string]any{}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &args); err != nil {
			return tool.Failure(fmt.Sprintf("invalid parameters: %v", err)), nil
		}
	}

	result, err := a.client.CallTool(ctx, a.mcpTool.Name, args)
	if err != nil {
		return tool.Failure(fmt.Sprintf("MCP tool execution failed: %v", err)), nil
	}

	if result.IsError {
		msg := formatMCPContent(result)
		if msg == "" {
			msg = "MCP tool returned an error"
		}
		return tool.Failure(msg), nil
	}

	return &tool.Result{
		Success: true,
		Output:  formatMCPContent(result),
		Data: map[string]any{
			"mcp_server": a.client.Name(),
			"mcp_tool":   a.mcpTool.Name,
		},
	}, nil
}

// formatMCPContent renders a tool result as text. Structured content is
// used when the server sent no content blocks.
func formatMCPContent(result *mcp.CallToolResult) string {
	var parts []string

	for _, item := range result.Content {
		switch c := item.(type) {
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[Image: %s]", c.MIMEType))
		case *mcp.AudioContent:
			parts = append(parts, fmt.Sprintf("[Audio: %s]", c.MIMEType))
		case *mcp.ResourceLink:
			parts = append(parts, fmt.Sprintf("[Resource: %s]", c.URI))
		default:
			data, err := json.Marshal(item)
			if err != nil {
				parts = append(parts, fmt.Sprintf("[Unknown content type: %T]", item))
			} else {
				parts = append(parts, string(data))
			}
		}
	}

	if len(parts) == 0 && result.StructuredContent != nil {
		if data, err := json.Marshal(result.StructuredContent); err == nil {
			return string(data)
		}
	}

	return strings.Join(parts, "\n")
}
